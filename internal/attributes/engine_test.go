/**
 * Engine and category tests
 */

package attributes

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shelfwise/catalog/photoscan-worker/internal/errors"
)

type stubClassifier struct {
	category   string
	confidence float64
	err        error
	calls      int
}

func (c *stubClassifier) Name() string { return "classifier" }

func (c *stubClassifier) Classify(ctx context.Context, text string) (string, float64, error) {
	c.calls++
	if c.err != nil {
		return "", 0, c.err
	}
	return c.category, c.confidence, nil
}

func attributesByKind(attrs []Attribute, kind string) []Attribute {
	var matched []Attribute
	for _, attr := range attrs {
		if attr.Kind == kind {
			matched = append(matched, attr)
		}
	}
	return matched
}

func TestEngineProductLabelScenario(t *testing.T) {
	engine := NewDefaultEngine(DefaultLexicon(), nil, time.Second, 10, nil)
	reconciler := NewReconciler(0.50)

	candidates, warnings := engine.Run(context.Background(), "job-1", []Input{
		{Source: SourceTranscript, Text: "RED PLASTIC LAMP 12.5 x 4 x 4 in $24.99"},
	})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	final := reconciler.Reconcile(candidates)

	prices := attributesByKind(final, KindPrice)
	if len(prices) != 1 || prices[0].Value != "$24.99" {
		t.Errorf("price = %+v, want $24.99", prices)
	}

	dims := attributesByKind(final, KindDimensions)
	if len(dims) != 1 || dims[0].Value != "12.5x4x4" || dims[0].Unit != "in" {
		t.Errorf("dimensions = %+v, want 12.5x4x4 in", dims)
	}

	colors := attributesByKind(final, KindColor)
	if len(colors) != 1 || colors[0].Value != "red" {
		t.Errorf("colors = %+v, want [red]", colors)
	}

	materials := attributesByKind(final, KindMaterial)
	if len(materials) != 1 || materials[0].Value != "plastic" {
		t.Errorf("materials = %+v, want [plastic]", materials)
	}

	for _, attr := range final {
		if attr.Confidence < 0 || attr.Confidence > 1 {
			t.Errorf("attribute %s=%s confidence %f outside [0,1]", attr.Kind, attr.Value, attr.Confidence)
		}
	}
}

func TestEngineEmptyInputs(t *testing.T) {
	engine := NewDefaultEngine(DefaultLexicon(), nil, time.Second, 10, nil)

	candidates, warnings := engine.Run(context.Background(), "job-2", []Input{
		{Source: SourceTranscript, Text: ""},
		{Source: SourceTitle, Text: ""},
	})

	if len(candidates) != 0 {
		t.Errorf("expected no candidates, got %+v", candidates)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %+v", warnings)
	}
}

func TestCategoryClassifierWins(t *testing.T) {
	classifier := &stubClassifier{category: "Outdoor Lighting", confidence: 0.92}
	extractor := NewCategoryExtractor(classifier, DefaultLexicon(), time.Second)

	found, err := extractor.Extract(context.Background(), Input{
		Source: SourceTranscript,
		Text:   "solar garden lamp",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 1 || found[0].Value != "Outdoor Lighting" {
		t.Fatalf("got %+v, want classifier category", found)
	}
	if found[0].Confidence != 0.92 {
		t.Errorf("confidence = %f, want classifier's 0.92", found[0].Confidence)
	}
}

func TestCategoryFallbackWhenClassifierDown(t *testing.T) {
	classifier := &stubClassifier{err: fmt.Errorf("connection refused")}
	extractor := NewCategoryExtractor(classifier, DefaultLexicon(), time.Second)

	found, err := extractor.Extract(context.Background(), Input{
		Source: SourceTranscript,
		Text:   "waterproof jacket",
	})

	if err == nil {
		t.Fatal("expected a provider error alongside the fallback result")
	}
	if !errors.IsCode(err, errors.ErrorProviderUnavailable) {
		t.Errorf("error code mismatch: %v", err)
	}

	if len(found) != 1 || found[0].Value != "Apparel" {
		t.Fatalf("fallback = %+v, want Apparel", found)
	}
	if found[0].Confidence >= 0.80 {
		t.Errorf("fallback confidence = %f, want below classifier range", found[0].Confidence)
	}
	if found[0].Confidence < 0.50 {
		t.Errorf("fallback confidence = %f, should clear the acceptance floor", found[0].Confidence)
	}
}

func TestCategoryFallbackDegradesToWarningInEngine(t *testing.T) {
	classifier := &stubClassifier{err: fmt.Errorf("connection refused")}
	engine := NewDefaultEngine(DefaultLexicon(), classifier, time.Second, 10, nil)

	candidates, warnings := engine.Run(context.Background(), "job-3", []Input{
		{Source: SourceTranscript, Text: "waterproof jacket"},
	})

	categories := attributesByKind(candidates, KindCategory)
	if len(categories) != 1 || categories[0].Value != "Apparel" {
		t.Fatalf("categories = %+v, want fallback Apparel", categories)
	}

	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d: %v", len(warnings), warnings)
	}
	if warnings[0].Code != errors.ErrorProviderUnavailable {
		t.Errorf("warning code = %s, want %s", warnings[0].Code, errors.ErrorProviderUnavailable)
	}

	features := attributesByKind(candidates, KindFeature)
	if len(features) != 1 || features[0].Value != "waterproof" {
		t.Errorf("features = %+v, want waterproof despite classifier outage", features)
	}
}

func TestCategoryWithoutProviderUsesFallbackSilently(t *testing.T) {
	extractor := NewCategoryExtractor(nil, DefaultLexicon(), time.Second)

	found, err := extractor.Extract(context.Background(), Input{
		Source: SourceDescription,
		Text:   "ceramic mug and matching plate",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 1 || found[0].Value != "Home & Kitchen" {
		t.Errorf("got %+v, want Home & Kitchen", found)
	}
}

func TestCategoryNoSignal(t *testing.T) {
	extractor := NewCategoryExtractor(nil, DefaultLexicon(), time.Second)

	found, err := extractor.Extract(context.Background(), Input{
		Source: SourceTranscript,
		Text:   "zzz qqq vvv",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("expected no category, got %+v", found)
	}
}
