/**
 * Price extractor
 *
 * Recognizes currency-prefixed amounts, amounts with a currency word, and
 * labeled prices. Patterns are tried in confidence order and the first hit
 * wins for a source.
 */

package attributes

import (
	"context"
	"regexp"
	"strings"
)

var pricePatterns = []struct {
	pattern    *regexp.Regexp
	group      int
	confidence float64
}{
	// $24.99, $1,299.00
	{regexp.MustCompile(`\$\s?\d{1,3}(?:,\d{3})*(?:\.\d{2})?`), 0, 0.90},
	// 24.99 USD, 25 dollars
	{regexp.MustCompile(`(?i)\b\d+(?:\.\d{2})?\s*(?:USD|dollars)\b`), 0, 0.80},
	// Price: 24.99, Cost 25
	{regexp.MustCompile(`(?i)(?:price|cost)[:\s]+(\$?\d+(?:\.\d{2})?)`), 1, 0.75},
}

// PriceExtractor finds the price in a text source.
type PriceExtractor struct{}

func NewPriceExtractor() *PriceExtractor { return &PriceExtractor{} }

func (e *PriceExtractor) Kind() string { return KindPrice }

func (e *PriceExtractor) Extract(ctx context.Context, input Input) ([]Attribute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, candidate := range pricePatterns {
		match := candidate.pattern.FindStringSubmatch(input.Text)
		if match == nil {
			continue
		}

		value := strings.Join(strings.Fields(match[candidate.group]), " ")
		value = strings.ReplaceAll(value, "$ ", "$")
		return []Attribute{{
			Kind:       KindPrice,
			Value:      value,
			Confidence: candidate.confidence,
			Source:     input.Source,
		}}, nil
	}

	return nil, nil
}
