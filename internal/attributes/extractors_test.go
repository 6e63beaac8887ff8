/**
 * Extractor tests
 */

package attributes

import (
	"context"
	"testing"
)

func extractOne(t *testing.T, e Extractor, source, text string) []Attribute {
	t.Helper()
	found, err := e.Extract(context.Background(), Input{Source: source, Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return found
}

func TestPriceExtractor(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		expected   string
		confidence float64
	}{
		{"dollar sign", "LAMP 12.5 x 4 x 4 in $24.99", "$24.99", 0.90},
		{"dollar with space", "now $ 19.99 only", "$19.99", 0.90},
		{"thousands", "list price $1,299.00", "$1,299.00", 0.90},
		{"usd suffix", "yours for 24.99 USD today", "24.99 USD", 0.80},
		{"labeled", "Price: 15.50 while stocks last", "15.50", 0.75},
		{"labeled with sign", "cost: $8.00", "$8.00", 0.90},
	}

	extractor := NewPriceExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := extractOne(t, extractor, SourceTranscript, tt.text)
			if len(found) != 1 {
				t.Fatalf("expected 1 price, got %d", len(found))
			}
			if found[0].Value != tt.expected {
				t.Errorf("value = %q, want %q", found[0].Value, tt.expected)
			}
			if found[0].Confidence != tt.confidence {
				t.Errorf("confidence = %f, want %f", found[0].Confidence, tt.confidence)
			}
		})
	}

	t.Run("no price", func(t *testing.T) {
		if found := extractOne(t, extractor, SourceTranscript, "red plastic lamp"); len(found) != 0 {
			t.Errorf("unexpected price: %+v", found)
		}
	})
}

func TestDimensionsExtractor(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		value    string
		unit     string
		hasMatch bool
	}{
		{"three axis inches", "RED PLASTIC LAMP 12.5 x 4 x 4 in $24.99", "12.5x4x4", "in", true},
		{"two axis cm", "cutting board 30 x 20 cm", "30x20", "cm", true},
		{"multiplication sign", "frame 10×15 cm", "10x15", "cm", true},
		{"by separator", "shelf 12 by 8 by 3 inches", "12x8x3", "in", true},
		{"spelled out", "rug 6 x 9 feet", "6x9", "ft", true},
		{"unitless", "grid 3 x 3 layout", "3x3", "", true},
		{"no dimensions", "a red plastic lamp", "", "", false},
	}

	extractor := NewDimensionsExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := extractOne(t, extractor, SourceTranscript, tt.text)
			if !tt.hasMatch {
				if len(found) != 0 {
					t.Fatalf("unexpected match: %+v", found)
				}
				return
			}
			if len(found) != 1 {
				t.Fatalf("expected 1 match, got %d", len(found))
			}
			if found[0].Value != tt.value || found[0].Unit != tt.unit {
				t.Errorf("got %q/%q, want %q/%q", found[0].Value, found[0].Unit, tt.value, tt.unit)
			}
			if tt.unit == "" && found[0].Confidence >= 0.85 {
				t.Errorf("unitless match should score lower, got %f", found[0].Confidence)
			}
		})
	}
}

func TestWeightExtractor(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		value string
		unit  string
	}{
		{"kilograms", "net weight 2.5 kg", "2.5", "kg"},
		{"spelled kilograms", "weighs 3 kilograms", "3", "kg"},
		{"pounds", "ships at 12 lbs", "12", "lb"},
		{"ounces", "12 oz tumbler", "12", "oz"},
	}

	extractor := NewWeightExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := extractOne(t, extractor, SourceTranscript, tt.text)
			if len(found) != 1 {
				t.Fatalf("expected 1 weight, got %d", len(found))
			}
			if found[0].Value != tt.value || found[0].Unit != tt.unit {
				t.Errorf("got %q/%q, want %q/%q", found[0].Value, found[0].Unit, tt.value, tt.unit)
			}
		})
	}

	t.Run("no weight", func(t *testing.T) {
		if found := extractOne(t, extractor, SourceTranscript, "12.5 x 4 x 4 in"); len(found) != 0 {
			t.Errorf("unexpected weight: %+v", found)
		}
	})
}

func TestTermExtractors(t *testing.T) {
	lexicon := DefaultLexicon()
	text := "RED PLASTIC LAMP, waterproof and durable, with a Stainless Steel base"

	colors := extractOne(t, NewColorExtractor(lexicon), SourceTranscript, text)
	if len(colors) != 1 || colors[0].Value != "red" {
		t.Errorf("colors = %+v, want [red]", colors)
	}

	materials := extractOne(t, NewMaterialExtractor(lexicon), SourceTranscript, text)
	values := map[string]bool{}
	for _, m := range materials {
		values[m.Value] = true
	}
	if !values["plastic"] || !values["steel"] {
		t.Errorf("materials = %+v, want plastic and steel", materials)
	}

	features := extractOne(t, NewFeatureExtractor(lexicon), SourceTranscript, text)
	values = map[string]bool{}
	for _, f := range features {
		values[f.Value] = true
	}
	if !values["waterproof"] || !values["durable"] {
		t.Errorf("features = %+v, want waterproof and durable", features)
	}
}

func TestTermExtractorWordBoundaries(t *testing.T) {
	lexicon := DefaultLexicon()

	// "golden" must not match "gold", "redo" must not match "red".
	found := extractOne(t, NewColorExtractor(lexicon), SourceTranscript, "golden redo scarlet")
	if len(found) != 0 {
		t.Errorf("expected no colors, got %+v", found)
	}
}

func TestKeywordExtractor(t *testing.T) {
	lexicon := DefaultLexicon()
	extractor := NewKeywordExtractor(lexicon, 3)

	text := "bottle bottle bottle insulated insulated tumbler with the and 123 cap"
	found := extractOne(t, extractor, SourceDescription, text)

	if len(found) != 3 {
		t.Fatalf("expected limit of 3 keywords, got %d", len(found))
	}
	if found[0].Value != "bottle" || found[1].Value != "insulated" {
		t.Errorf("frequency order broken: %+v", found)
	}
	for _, kw := range found {
		if kw.Value == "the" || kw.Value == "and" || kw.Value == "with" || kw.Value == "123" || kw.Value == "cap" {
			t.Errorf("keyword %q should have been filtered", kw.Value)
		}
	}
}

func TestBrandExtractor(t *testing.T) {
	lexicon := DefaultLexicon()
	extractor := NewBrandExtractor(lexicon)

	t.Run("labeled brand", func(t *testing.T) {
		found := extractOne(t, extractor, SourceTranscript, "Brand: Acme Tools, est. 1952")
		if len(found) != 1 || found[0].Value != "Acme Tools" {
			t.Fatalf("got %+v, want Acme Tools", found)
		}
		if found[0].Confidence != 0.90 {
			t.Errorf("confidence = %f, want 0.90", found[0].Confidence)
		}
	})

	t.Run("gazetteer", func(t *testing.T) {
		found := extractOne(t, extractor, SourceDescription, "compatible with canon cameras")
		if len(found) != 1 || found[0].Value != "Canon" {
			t.Fatalf("got %+v, want Canon", found)
		}
	})

	t.Run("title fallback", func(t *testing.T) {
		found := extractOne(t, extractor, SourceTitle, "Fjellborg Camping Lantern")
		if len(found) != 1 || found[0].Value != "Fjellborg" {
			t.Fatalf("got %+v, want Fjellborg", found)
		}
		if found[0].Confidence != 0.50 {
			t.Errorf("fallback confidence = %f, want 0.50", found[0].Confidence)
		}
	})

	t.Run("no fallback outside titles", func(t *testing.T) {
		if found := extractOne(t, extractor, SourceTranscript, "Sturdy build quality"); len(found) != 0 {
			t.Errorf("unexpected brand: %+v", found)
		}
	})

	t.Run("vocabulary word is not a brand", func(t *testing.T) {
		if found := extractOne(t, extractor, SourceTitle, "Red Plastic Lamp"); len(found) != 0 {
			t.Errorf("unexpected brand: %+v", found)
		}
	})
}

func TestTechSpecExtractors(t *testing.T) {
	resolution := extractOne(t, NewResolutionExtractor(), SourceTranscript, "48 MP quad camera")
	if len(resolution) != 1 || resolution[0].Value != "48" || resolution[0].Unit != "MP" {
		t.Errorf("resolution = %+v", resolution)
	}

	pixels := extractOne(t, NewResolutionExtractor(), SourceTranscript, "display 1920 x 1080 pixels")
	if len(pixels) != 1 || pixels[0].Value != "1920x1080" || pixels[0].Unit != "px" {
		t.Errorf("pixel resolution = %+v", pixels)
	}

	storage := extractOne(t, NewStorageExtractor(), SourceTranscript, "expandable to 256 GB")
	if len(storage) != 1 || storage[0].Value != "256" || storage[0].Unit != "GB" {
		t.Errorf("storage = %+v", storage)
	}

	if found := extractOne(t, NewStorageExtractor(), SourceTranscript, "no capacity listed"); len(found) != 0 {
		t.Errorf("unexpected storage: %+v", found)
	}
}

func TestLoadLexiconDefaults(t *testing.T) {
	lexicon, err := LoadLexicon("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lexicon.Colors) == 0 || len(lexicon.Materials) == 0 || len(lexicon.Features) == 0 {
		t.Error("default lexicon is missing vocabularies")
	}
	if len(lexicon.Categories) == 0 {
		t.Error("default lexicon has no categories")
	}
}
