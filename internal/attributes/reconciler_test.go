/**
 * Reconciler tests
 */

package attributes

import "testing"

func TestReconcileSingleValuedKeepsBest(t *testing.T) {
	r := NewReconciler(0.50)

	final := r.Reconcile([]Attribute{
		{Kind: KindPrice, Value: "$19.99", Confidence: 0.75, Source: SourceTranscript},
		{Kind: KindPrice, Value: "$24.99", Confidence: 0.90, Source: SourceDescription},
		{Kind: KindPrice, Value: "$21.00", Confidence: 0.80, Source: SourceTitle},
	})

	prices := attributesByKind(final, KindPrice)
	if len(prices) != 1 {
		t.Fatalf("expected 1 price, got %d", len(prices))
	}
	if prices[0].Value != "$24.99" || prices[0].Source != SourceDescription {
		t.Errorf("winner = %+v, want the highest-confidence candidate", prices[0])
	}
}

func TestReconcileSingleValuedSourceTieBreak(t *testing.T) {
	r := NewReconciler(0.50)

	tests := []struct {
		name       string
		candidates []Attribute
		wantSource string
	}{
		{
			"title beats description",
			[]Attribute{
				{Kind: KindBrand, Value: "Acme", Confidence: 0.85, Source: SourceDescription},
				{Kind: KindBrand, Value: "Apex", Confidence: 0.85, Source: SourceTitle},
			},
			SourceTitle,
		},
		{
			"description beats transcript",
			[]Attribute{
				{Kind: KindBrand, Value: "Acme", Confidence: 0.85, Source: SourceTranscript},
				{Kind: KindBrand, Value: "Apex", Confidence: 0.85, Source: SourceDescription},
			},
			SourceDescription,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			final := r.Reconcile(tt.candidates)
			brands := attributesByKind(final, KindBrand)
			if len(brands) != 1 {
				t.Fatalf("expected 1 brand, got %d", len(brands))
			}
			if brands[0].Source != tt.wantSource {
				t.Errorf("winner source = %s, want %s", brands[0].Source, tt.wantSource)
			}
		})
	}
}

func TestReconcileMultiValuedUnion(t *testing.T) {
	r := NewReconciler(0.50)

	final := r.Reconcile([]Attribute{
		{Kind: KindColor, Value: "red", Confidence: 0.85, Source: SourceTranscript},
		{Kind: KindColor, Value: "Red", Confidence: 0.90, Source: SourceTitle},
		{Kind: KindColor, Value: "blue", Confidence: 0.85, Source: SourceDescription},
		{Kind: KindColor, Value: "green", Confidence: 0.30, Source: SourceTranscript},
	})

	colors := attributesByKind(final, KindColor)
	if len(colors) != 2 {
		t.Fatalf("expected 2 colors, got %d: %+v", len(colors), colors)
	}

	// "red"/"Red" dedupe to the higher-confidence candidate; "green" is
	// below the floor.
	if colors[0].Value != "Red" || colors[0].Confidence != 0.90 {
		t.Errorf("first color = %+v, want Red at 0.90", colors[0])
	}
	if colors[1].Value != "blue" {
		t.Errorf("second color = %+v, want blue", colors[1])
	}
}

func TestReconcileDropsEmptyValues(t *testing.T) {
	r := NewReconciler(0.50)

	final := r.Reconcile([]Attribute{
		{Kind: KindBrand, Value: "   ", Confidence: 0.90, Source: SourceTitle},
		{Kind: KindColor, Value: "", Confidence: 0.90, Source: SourceTitle},
	})

	if len(final) != 0 {
		t.Errorf("expected empty set, got %+v", final)
	}
}

func TestReconcileClampsConfidence(t *testing.T) {
	r := NewReconciler(0.50)

	final := r.Reconcile([]Attribute{
		{Kind: KindPrice, Value: "$5.00", Confidence: 1.7, Source: SourceTranscript},
		{Kind: KindColor, Value: "navy", Confidence: 0.95, Source: SourceTranscript},
	})

	for _, attr := range final {
		if attr.Confidence < 0 || attr.Confidence > 1 {
			t.Errorf("attribute %s confidence %f outside [0,1]", attr.Kind, attr.Confidence)
		}
	}
}

func TestReconcileEmptyInput(t *testing.T) {
	r := NewReconciler(0.50)

	if final := r.Reconcile(nil); len(final) != 0 {
		t.Errorf("expected empty set, got %+v", final)
	}
}

func TestReconcileDeterministicOrder(t *testing.T) {
	r := NewReconciler(0.50)

	candidates := []Attribute{
		{Kind: KindKeyword, Value: "lantern", Confidence: 0.60, Source: SourceTranscript},
		{Kind: KindColor, Value: "red", Confidence: 0.85, Source: SourceTranscript},
		{Kind: KindPrice, Value: "$9.99", Confidence: 0.90, Source: SourceTranscript},
	}

	first := r.Reconcile(candidates)
	second := r.Reconcile(candidates)

	if len(first) != len(second) {
		t.Fatalf("result sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("position %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}

	// Single-valued kinds come first in the fixed kind order.
	if first[0].Kind != KindPrice {
		t.Errorf("first attribute kind = %s, want %s", first[0].Kind, KindPrice)
	}
}
