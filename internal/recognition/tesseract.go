/**
 * Tesseract recognition provider
 *
 * Free, offline recognition through gosseract. Each call gets a fresh
 * client; observations come from line-level bounding boxes with native
 * confidences. When box extraction is unsupported by the installed build,
 * the provider falls back to whole-image text with an estimated confidence.
 */

package recognition

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractProvider implements Provider on top of a local Tesseract install.
type TesseractProvider struct {
	clientFactory func() *gosseract.Client
}

// NewTesseractProvider creates a Tesseract-backed recognition provider.
func NewTesseractProvider() *TesseractProvider {
	return &TesseractProvider{clientFactory: gosseract.NewClient}
}

// Name returns the provider identifier.
func (p *TesseractProvider) Name() string { return "tesseract" }

// Recognize runs one recognition pass over img.
func (p *TesseractProvider) Recognize(ctx context.Context, img image.Image, opts ...Option) ([]Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	options := applyOptions(opts)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode variant: %w", err)
	}

	client := p.clientFactory()
	defer client.Close()

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	if len(options.Languages) > 0 {
		if err := client.SetLanguage(options.Languages...); err != nil {
			return nil, fmt.Errorf("failed to set languages: %w", err)
		}
	}

	if options.PageSegMode > 0 {
		if err := client.SetVariable(gosseract.SettableVariable("tessedit_pageseg_mode"), fmt.Sprint(options.PageSegMode)); err != nil {
			return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
		}
	}

	// Line-level boxes give the consolidator useful units: one label line,
	// one observation.
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err == nil && len(boxes) > 0 {
		observations := make([]Observation, 0, len(boxes))
		for _, box := range boxes {
			text := strings.TrimSpace(box.Word)
			if text == "" {
				continue
			}
			confidence := box.Confidence / 100.0
			if confidence < 0 {
				confidence = 0
			}
			if confidence > 1 {
				confidence = 1
			}
			observations = append(observations, Observation{
				Text:       text,
				Confidence: confidence,
				Region: &Region{
					X:      box.Box.Min.X,
					Y:      box.Box.Min.Y,
					Width:  box.Box.Dx(),
					Height: box.Box.Dy(),
				},
			})
		}
		return observations, nil
	}

	// Fallback: whole-image text without boxes.
	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract recognition failed: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	return []Observation{{
		Text:       collapseLines(text),
		Confidence: estimateConfidence(text),
	}}, nil
}

// collapseLines flattens multi-line engine output into one observation text.
func collapseLines(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// estimateConfidence scores text quality when the engine gave us no native
// confidence: base 0.5 plus small boosts for volume and a sane character
// mix, capped below native-confidence territory.
func estimateConfidence(text string) float64 {
	confidence := 0.5

	if len(text) > 40 {
		confidence += 0.1
	}
	if len(text) > 200 {
		confidence += 0.1
	}

	words := strings.Fields(text)
	if len(words) > 10 {
		confidence += 0.1
	}

	alphaCount := 0
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			alphaCount++
		}
	}
	if len(text) > 0 {
		alphaRatio := float64(alphaCount) / float64(len(text))
		if alphaRatio > 0.5 && alphaRatio < 0.9 {
			confidence += 0.1
		}
	}

	if confidence > 0.85 {
		confidence = 0.85
	}

	return confidence
}
