/**
 * Recognition strategies
 *
 * Four independent pathways over the normalizer's variants:
 * - horizontal:   identity variant, page-segmentation cascade, primary source
 * - vertical:     one pass per rotated variant, spans tagged with the angle
 * - embossed:     relief-enhanced variant, confidence discounted
 * - multilingual: denoised variant with multi-language hints, spans
 *                 annotated with the detected language
 *
 * Every strategy is stateless between invocations and never aborts the run:
 * the runner converts errors into degradation warnings.
 */

package recognition

import (
	"context"
	"fmt"
	"strings"

	"github.com/shelfwise/catalog/photoscan-worker/internal/imaging"
)

// Strategy is one parameterized recognition pathway.
type Strategy struct {
	Kind       StrategyKind
	provider   Provider
	psmCascade []int
	languages  []string
	discount   float64
	detector   *LanguageDetector
}

// NewHorizontalStrategy reads upright text off the identity variant. The
// cascade tries a uniform text block first, then automatic segmentation,
// then single-column mode, and keeps whichever pass read the most text.
func NewHorizontalStrategy(provider Provider, languages []string) *Strategy {
	return &Strategy{
		Kind:       StrategyHorizontal,
		provider:   provider,
		psmCascade: []int{PSMSingleBlock, PSMAutomatic, PSMSingleColumn},
		languages:  languages,
	}
}

// NewVerticalStrategy reads rotated text, one pass per rotation variant.
func NewVerticalStrategy(provider Provider, languages []string) *Strategy {
	return &Strategy{
		Kind:       StrategyVertical,
		provider:   provider,
		psmCascade: []int{PSMSingleBlock},
		languages:  languages,
	}
}

// NewEmbossedStrategy reads raised-relief text off the enhanced variant.
// Embossed recognition is inherently noisier, so confidences are multiplied
// by the discount factor before they compete with other strategies.
func NewEmbossedStrategy(provider Provider, languages []string, discount float64) *Strategy {
	if discount <= 0 || discount > 1 {
		discount = 0.80
	}
	return &Strategy{
		Kind:       StrategyEmbossed,
		provider:   provider,
		psmCascade: []int{PSMSingleBlock},
		languages:  languages,
		discount:   discount,
	}
}

// NewMultilingualStrategy reads the denoised variant with multi-language
// hints. Used as an enrichment source, not a primary one.
func NewMultilingualStrategy(provider Provider, languages []string, detector *LanguageDetector) *Strategy {
	if len(languages) == 0 {
		languages = []string{"eng", "spa", "fra", "deu"}
	}
	return &Strategy{
		Kind:       StrategyMultilingual,
		provider:   provider,
		psmCascade: []int{PSMSingleBlock},
		languages:  languages,
		detector:   detector,
	}
}

// Run executes the strategy over the variant set and returns its spans.
func (s *Strategy) Run(ctx context.Context, variants []imaging.Variant) ([]Span, error) {
	switch s.Kind {
	case StrategyHorizontal:
		return s.runHorizontal(ctx, variants)
	case StrategyVertical:
		return s.runVertical(ctx, variants)
	case StrategyEmbossed:
		return s.runEmbossed(ctx, variants)
	case StrategyMultilingual:
		return s.runMultilingual(ctx, variants)
	default:
		return nil, fmt.Errorf("unknown strategy kind: %s", s.Kind)
	}
}

func (s *Strategy) runHorizontal(ctx context.Context, variants []imaging.Variant) ([]Span, error) {
	variant := findVariant(variants, imaging.TransformIdentity, 0)
	if variant == nil {
		return nil, fmt.Errorf("identity variant not available")
	}

	var best []Observation
	bestChars := -1
	var lastErr error

	for _, psm := range s.psmCascade {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		observations, err := s.provider.Recognize(ctx, variant.Image,
			WithLanguages(s.languages...), WithPageSegMode(psm))
		if err != nil {
			lastErr = err
			continue
		}

		chars := totalChars(observations)
		if chars > bestChars {
			best = observations
			bestChars = chars
		}
	}

	if best == nil && lastErr != nil {
		return nil, lastErr
	}

	return s.toSpans(best, 0, ""), nil
}

func (s *Strategy) runVertical(ctx context.Context, variants []imaging.Variant) ([]Span, error) {
	spans := make([]Span, 0)
	passes := 0
	var lastErr error

	for i := range variants {
		variant := &variants[i]
		if variant.Kind != imaging.TransformRotate {
			continue
		}
		passes++

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		observations, err := s.provider.Recognize(ctx, variant.Image,
			WithLanguages(s.languages...), WithPageSegMode(s.psmCascade[0]))
		if err != nil {
			lastErr = err
			continue
		}

		for _, obs := range observations {
			spans = append(spans, Span{
				Text:          obs.Text,
				Confidence:    obs.Confidence,
				Strategy:      s.Kind,
				Region:        obs.Region,
				SequenceIndex: len(spans),
				Angle:         variant.Angle,
			})
		}
	}

	if passes == 0 {
		return nil, fmt.Errorf("no rotation variants available")
	}
	if len(spans) == 0 && lastErr != nil {
		return nil, lastErr
	}

	return spans, nil
}

func (s *Strategy) runEmbossed(ctx context.Context, variants []imaging.Variant) ([]Span, error) {
	variant := findVariant(variants, imaging.TransformEnhance, 0)
	if variant == nil {
		return nil, fmt.Errorf("enhanced variant not available")
	}

	observations, err := s.provider.Recognize(ctx, variant.Image,
		WithLanguages(s.languages...), WithPageSegMode(s.psmCascade[0]))
	if err != nil {
		return nil, err
	}

	spans := s.toSpans(observations, 0, "")
	for i := range spans {
		spans[i].Confidence *= s.discount
	}

	return spans, nil
}

func (s *Strategy) runMultilingual(ctx context.Context, variants []imaging.Variant) ([]Span, error) {
	variant := findVariant(variants, imaging.TransformDenoise, 0)
	if variant == nil {
		return nil, fmt.Errorf("denoised variant not available")
	}

	observations, err := s.provider.Recognize(ctx, variant.Image,
		WithLanguages(s.languages...), WithPageSegMode(s.psmCascade[0]))
	if err != nil {
		return nil, err
	}

	language := ""
	if s.detector != nil && len(observations) > 0 {
		joined := make([]string, 0, len(observations))
		for _, obs := range observations {
			joined = append(joined, obs.Text)
		}
		language = s.detector.Detect(strings.Join(joined, " "))
	}

	return s.toSpans(observations, 0, language), nil
}

func (s *Strategy) toSpans(observations []Observation, angle int, language string) []Span {
	spans := make([]Span, 0, len(observations))
	for _, obs := range observations {
		spans = append(spans, Span{
			Text:          obs.Text,
			Confidence:    obs.Confidence,
			Strategy:      s.Kind,
			Region:        obs.Region,
			SequenceIndex: len(spans),
			Angle:         angle,
			Language:      language,
		})
	}
	return spans
}

func findVariant(variants []imaging.Variant, kind imaging.TransformKind, angle int) *imaging.Variant {
	for i := range variants {
		if variants[i].Kind == kind && (kind != imaging.TransformRotate || variants[i].Angle == angle) {
			return &variants[i]
		}
	}
	return nil
}

func totalChars(observations []Observation) int {
	total := 0
	for _, obs := range observations {
		total += len(obs.Text)
	}
	return total
}
