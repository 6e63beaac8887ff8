/**
 * Weight extractor
 */

package attributes

import (
	"context"
	"regexp"
	"strings"
)

var weightPattern = regexp.MustCompile(
	`(?i)\b(\d+(?:\.\d+)?)\s*(kilograms?|kgs?|grams?|g|pounds?|lbs?|ounces?|oz)\b`)

var weightUnits = map[string]string{
	"kilogram": "kg", "kilograms": "kg", "kg": "kg", "kgs": "kg",
	"gram": "g", "grams": "g", "g": "g",
	"pound": "lb", "pounds": "lb", "lb": "lb", "lbs": "lb",
	"ounce": "oz", "ounces": "oz", "oz": "oz",
}

// WeightExtractor finds a weight measurement in a text source.
type WeightExtractor struct{}

func NewWeightExtractor() *WeightExtractor { return &WeightExtractor{} }

func (e *WeightExtractor) Kind() string { return KindWeight }

func (e *WeightExtractor) Extract(ctx context.Context, input Input) ([]Attribute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	match := weightPattern.FindStringSubmatch(input.Text)
	if match == nil {
		return nil, nil
	}

	return []Attribute{{
		Kind:       KindWeight,
		Value:      match[1],
		Unit:       weightUnits[strings.ToLower(match[2])],
		Confidence: 0.85,
		Source:     input.Source,
	}}, nil
}
