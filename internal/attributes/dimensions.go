/**
 * Dimensions extractor
 *
 * Recognizes WxH and WxHxD measurement patterns, with "x", "×" or "by" as
 * the separator and an optional unit, and normalizes the value to a compact
 * "12.5x4x4" form.
 */

package attributes

import (
	"context"
	"regexp"
	"strings"
)

var dimensionsPattern = regexp.MustCompile(
	`(?i)(\d+(?:\.\d+)?)\s*(?:[x×]|by)\s*(\d+(?:\.\d+)?)(?:\s*(?:[x×]|by)\s*(\d+(?:\.\d+)?))?(?:\s*(inches|inch|in|cm|mm|m|ft|feet)\b)?`)

var dimensionUnits = map[string]string{
	"inches": "in", "inch": "in", "in": "in",
	"feet": "ft", "ft": "ft",
	"cm": "cm", "mm": "mm", "m": "m",
}

// DimensionsExtractor finds physical dimensions in a text source.
type DimensionsExtractor struct{}

func NewDimensionsExtractor() *DimensionsExtractor { return &DimensionsExtractor{} }

func (e *DimensionsExtractor) Kind() string { return KindDimensions }

func (e *DimensionsExtractor) Extract(ctx context.Context, input Input) ([]Attribute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	match := dimensionsPattern.FindStringSubmatch(input.Text)
	if match == nil {
		return nil, nil
	}

	parts := []string{match[1], match[2]}
	if match[3] != "" {
		parts = append(parts, match[3])
	}

	unit := dimensionUnits[strings.ToLower(match[4])]
	confidence := 0.85
	if unit == "" {
		confidence = 0.65
	}

	return []Attribute{{
		Kind:       KindDimensions,
		Value:      strings.Join(parts, "x"),
		Unit:       unit,
		Confidence: confidence,
		Source:     input.Source,
	}}, nil
}
