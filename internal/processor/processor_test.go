package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/shelfwise/catalog/photoscan-worker/internal/attributes"
	"github.com/shelfwise/catalog/photoscan-worker/internal/errors"
	"github.com/shelfwise/catalog/photoscan-worker/internal/logging"
	"github.com/shelfwise/catalog/photoscan-worker/internal/recognition"
)

// stubRecognizer returns canned observations regardless of the image, so
// pipeline behavior can be tested without a local Tesseract install.
type stubRecognizer struct {
	observations []recognition.Observation
	err          error
}

func (s *stubRecognizer) Name() string { return "stub" }

func (s *stubRecognizer) Recognize(ctx context.Context, img image.Image, opts ...recognition.Option) ([]recognition.Observation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.observations, nil
}

// productPhoto encodes a small patterned raster. The pattern keeps the
// perceptual hash non-degenerate so near-duplicate detection behaves like it
// does on real photos.
func productPhoto(t *testing.T) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{
				R: uint8((x*7 + y*13) % 256),
				G: uint8((x*11 + y*3) % 256),
				B: uint8((x*5 + y*17) % 256),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test photo: %v", err)
	}
	return buf.Bytes()
}

func newTestProcessor(t *testing.T, strategies ...*recognition.Strategy) *PhotoProcessor {
	t.Helper()

	p, err := NewPhotoProcessor(&ProcessorConfig{
		MaxFileSize:        10 << 20,
		MaxImageDimension:  1024,
		RecognitionLangs:   []string{"eng"},
		MultilingualLangs:  []string{"eng", "spa"},
		VerticalRotations:  []int{90, 270},
		StrategyTimeout:    5 * time.Second,
		ClassifierTimeout:  time.Second,
		DedupThreshold:     0.85,
		EmbossedDiscount:   0.80,
		AcceptanceFloor:    0.50,
		CorroborationBonus: 0.05,
		KeywordLimit:       10,
	})
	if err != nil {
		t.Fatalf("NewPhotoProcessor failed: %v", err)
	}

	p.runner = recognition.NewRunner(strategies, 5*time.Second, logging.NewLogger("test"))
	return p
}

func attributesByKind(attrs []attributes.Attribute, kind string) []attributes.Attribute {
	var matched []attributes.Attribute
	for _, attr := range attrs {
		if attr.Kind == kind {
			matched = append(matched, attr)
		}
	}
	return matched
}

func hasWarningCode(warnings []errors.Warning, code errors.ErrorCode) bool {
	for _, w := range warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func TestProcessPhotoNoTextYieldsEmptyExtraction(t *testing.T) {
	p := newTestProcessor(t,
		recognition.NewHorizontalStrategy(&stubRecognizer{}, []string{"eng"}),
	)

	result, err := p.ProcessPhoto(context.Background(), &ProcessRequest{
		JobID:      "job-empty",
		Filename:   "blank.png",
		MimeType:   "image/png",
		FileBuffer: productPhoto(t),
	})
	if err != nil {
		t.Fatalf("ProcessPhoto returned error: %v", err)
	}

	if !result.Transcript.Empty() {
		t.Errorf("transcript has %d spans, want none", len(result.Transcript.Spans))
	}
	if len(result.Attributes) != 0 {
		t.Errorf("attributes = %v, want none", result.Attributes)
	}
	if !hasWarningCode(result.Warnings, errors.ErrorNoAttributesFound) {
		t.Errorf("warnings = %v, want NO_ATTRIBUTES_FOUND", result.Warnings)
	}
	if errors.HasFatal(result.Warnings) {
		t.Errorf("warnings carry a fatal code: %v", result.Warnings)
	}
	if len(result.ImageHash) != 64 {
		t.Errorf("image hash = %q, want 64 hex chars", result.ImageHash)
	}
	if result.Confidence != 0 {
		t.Errorf("confidence = %f, want 0", result.Confidence)
	}
}

func TestProcessPhotoExtractsLabelAttributes(t *testing.T) {
	label := "RED PLASTIC LAMP 12.5 x 4 x 4 in $24.99"
	p := newTestProcessor(t,
		recognition.NewHorizontalStrategy(&stubRecognizer{
			observations: []recognition.Observation{{Text: label, Confidence: 0.92}},
		}, []string{"eng"}),
	)

	result, err := p.ProcessPhoto(context.Background(), &ProcessRequest{
		JobID:      "job-label",
		Filename:   "lamp.png",
		MimeType:   "image/png",
		FileBuffer: productPhoto(t),
	})
	if err != nil {
		t.Fatalf("ProcessPhoto returned error: %v", err)
	}

	if result.Transcript.CombinedText != label {
		t.Errorf("combined text = %q, want %q", result.Transcript.CombinedText, label)
	}

	prices := attributesByKind(result.Attributes, attributes.KindPrice)
	if len(prices) != 1 || prices[0].Value != "$24.99" {
		t.Errorf("price attributes = %v, want one $24.99", prices)
	}

	dims := attributesByKind(result.Attributes, attributes.KindDimensions)
	if len(dims) != 1 || dims[0].Value != "12.5x4x4" || dims[0].Unit != "in" {
		t.Errorf("dimension attributes = %v, want one 12.5x4x4 in", dims)
	}

	colors := attributesByKind(result.Attributes, attributes.KindColor)
	if len(colors) != 1 || colors[0].Value != "red" {
		t.Errorf("color attributes = %v, want one red", colors)
	}

	materials := attributesByKind(result.Attributes, attributes.KindMaterial)
	if len(materials) != 1 || materials[0].Value != "plastic" {
		t.Errorf("material attributes = %v, want one plastic", materials)
	}

	if hasWarningCode(result.Warnings, errors.ErrorNoAttributesFound) {
		t.Errorf("warnings = %v, unexpected NO_ATTRIBUTES_FOUND", result.Warnings)
	}
	if result.Confidence <= 0 {
		t.Errorf("confidence = %f, want > 0", result.Confidence)
	}
}

func TestProcessPhotoDegradedStrategySurfacesWarning(t *testing.T) {
	p := newTestProcessor(t,
		recognition.NewHorizontalStrategy(&stubRecognizer{
			observations: []recognition.Observation{{Text: "Premium Cotton", Confidence: 0.88}},
		}, []string{"eng"}),
		recognition.NewEmbossedStrategy(&stubRecognizer{
			err: fmt.Errorf("engine crashed"),
		}, []string{"eng"}, 0.80),
	)

	result, err := p.ProcessPhoto(context.Background(), &ProcessRequest{
		JobID:      "job-degraded",
		Filename:   "shirt.png",
		MimeType:   "image/png",
		FileBuffer: productPhoto(t),
	})
	if err != nil {
		t.Fatalf("ProcessPhoto returned error: %v", err)
	}

	if result.Transcript.CombinedText != "Premium Cotton" {
		t.Errorf("combined text = %q, want text from the healthy strategy", result.Transcript.CombinedText)
	}

	degraded := false
	for _, w := range result.Warnings {
		if w.Code == errors.ErrorStrategyDegraded && w.Source == string(recognition.StrategyEmbossed) {
			degraded = true
		}
	}
	if !degraded {
		t.Errorf("warnings = %v, want STRATEGY_DEGRADED from embossed", result.Warnings)
	}
	if errors.HasFatal(result.Warnings) {
		t.Errorf("warnings carry a fatal code: %v", result.Warnings)
	}
}

func TestProcessPhotoRejectsUndecodableBytes(t *testing.T) {
	p := newTestProcessor(t,
		recognition.NewHorizontalStrategy(&stubRecognizer{}, []string{"eng"}),
	)

	_, err := p.ProcessPhoto(context.Background(), &ProcessRequest{
		JobID:      "job-broken",
		Filename:   "broken.jpg",
		MimeType:   "image/jpeg",
		FileBuffer: []byte("definitely not a photo, not even close to one, really"),
	})
	if err == nil {
		t.Fatal("ProcessPhoto accepted undecodable bytes")
	}
	if !errors.IsCode(err, errors.ErrorDecodeFailed) {
		t.Errorf("error = %v, want DECODE_ERROR", err)
	}
	if !errors.IsFatal(err) {
		t.Errorf("decode error should be fatal, got %v", err)
	}
}

func TestProcessPhotoValidatesRequest(t *testing.T) {
	p := newTestProcessor(t,
		recognition.NewHorizontalStrategy(&stubRecognizer{}, []string{"eng"}),
	)

	if _, err := p.ProcessPhoto(context.Background(), nil); err == nil {
		t.Error("nil request accepted")
	}

	_, err := p.ProcessPhoto(context.Background(), &ProcessRequest{Filename: "x.png"})
	if !errors.IsCode(err, errors.ErrorValidationFailed) {
		t.Errorf("missing job ID: error = %v, want VALIDATION_ERROR", err)
	}

	_, err = p.ProcessPhoto(context.Background(), &ProcessRequest{JobID: "job-nofile"})
	if !errors.IsCode(err, errors.ErrorValidationFailed) {
		t.Errorf("missing file: error = %v, want VALIDATION_ERROR", err)
	}
}

func TestProcessPhotoTitleOnlyStillExtracts(t *testing.T) {
	p := newTestProcessor(t,
		recognition.NewHorizontalStrategy(&stubRecognizer{}, []string{"eng"}),
	)

	result, err := p.ProcessPhoto(context.Background(), &ProcessRequest{
		JobID:      "job-title",
		Filename:   "headphones.png",
		MimeType:   "image/png",
		FileBuffer: productPhoto(t),
		Title:      "Samsung Wireless Over-Ear Headphones",
	})
	if err != nil {
		t.Fatalf("ProcessPhoto returned error: %v", err)
	}

	if !result.Transcript.Empty() {
		t.Errorf("transcript has %d spans, want none", len(result.Transcript.Spans))
	}

	brands := attributesByKind(result.Attributes, attributes.KindBrand)
	if len(brands) != 1 || brands[0].Value != "Samsung" {
		t.Errorf("brand attributes = %v, want one Samsung", brands)
	}
	if len(brands) == 1 && brands[0].Source != attributes.SourceTitle {
		t.Errorf("brand source = %q, want title", brands[0].Source)
	}

	features := attributesByKind(result.Attributes, attributes.KindFeature)
	if len(features) != 1 || features[0].Value != "wireless" {
		t.Errorf("feature attributes = %v, want one wireless", features)
	}

	if hasWarningCode(result.Warnings, errors.ErrorNoAttributesFound) {
		t.Errorf("warnings = %v, unexpected NO_ATTRIBUTES_FOUND", result.Warnings)
	}
}

func TestProcessPhotoAnnotatesNearDuplicates(t *testing.T) {
	p := newTestProcessor(t,
		recognition.NewHorizontalStrategy(&stubRecognizer{}, []string{"eng"}),
	)

	photo := productPhoto(t)

	first, err := p.ProcessPhoto(context.Background(), &ProcessRequest{
		JobID:      "job-original",
		Filename:   "shot.png",
		MimeType:   "image/png",
		FileBuffer: photo,
	})
	if err != nil {
		t.Fatalf("first ProcessPhoto returned error: %v", err)
	}
	if first.DuplicateOf != "" {
		t.Errorf("first run marked duplicate of %q", first.DuplicateOf)
	}

	second, err := p.ProcessPhoto(context.Background(), &ProcessRequest{
		JobID:      "job-resubmit",
		Filename:   "shot-copy.png",
		MimeType:   "image/png",
		FileBuffer: photo,
	})
	if err != nil {
		t.Fatalf("second ProcessPhoto returned error: %v", err)
	}
	if second.DuplicateOf != "job-original" {
		t.Errorf("duplicateOf = %q, want job-original", second.DuplicateOf)
	}
}

func TestDetectMimeTypeFromMagicBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 12)...), "image/jpeg"},
		{"png", append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 8)...), "image/png"},
		{"pdf", append([]byte("%PDF-1.7\n"), make([]byte, 8)...), "application/pdf"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image/webp"},
		{"unknown", []byte("hello world, twelve!"), ""},
		{"too short", []byte{0xFF, 0xD8}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMimeTypeFromMagicBytes(tt.data); got != tt.want {
				t.Errorf("detectMimeTypeFromMagicBytes = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOverallConfidence(t *testing.T) {
	transcript := recognition.Transcript{
		Spans: []recognition.ConsolidatedSpan{
			{Span: recognition.Span{Text: "a"}, EffectiveConfidence: 0.8},
			{Span: recognition.Span{Text: "b"}, EffectiveConfidence: 0.6},
		},
	}
	attrs := []attributes.Attribute{
		{Kind: attributes.KindColor, Value: "red", Confidence: 0.9},
	}

	approx := func(got, want float64) bool {
		diff := got - want
		return diff < 1e-9 && diff > -1e-9
	}

	if got := overallConfidence(recognition.Transcript{}, nil); got != 0 {
		t.Errorf("empty inputs: confidence = %f, want 0", got)
	}
	if got := overallConfidence(transcript, nil); !approx(got, 0.7) {
		t.Errorf("transcript only: confidence = %f, want 0.7", got)
	}
	if got := overallConfidence(recognition.Transcript{}, attrs); !approx(got, 0.9) {
		t.Errorf("attributes only: confidence = %f, want 0.9", got)
	}

	if got := overallConfidence(transcript, attrs); !approx(got, 0.7*0.4+0.9*0.6) {
		t.Errorf("blended confidence = %f, want %f", got, 0.7*0.4+0.9*0.6)
	}
}
