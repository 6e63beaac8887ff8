/**
 * Brand extractor
 *
 * Three tiers, strongest first: an explicit label ("Brand: Acme"), a known
 * brand from the lexicon gazetteer, and, for titles only, a leading
 * capitalized token as a weak guess.
 */

package attributes

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var brandLabelPattern = regexp.MustCompile(
	`(?i)(?:brand|manufacturer|made\s+by)[:\s]+([A-Za-z][A-Za-z0-9&.\-]*(?:\s+[A-Za-z0-9&.\-]+){0,2})`)

// BrandExtractor finds the product brand in a text source.
type BrandExtractor struct {
	gazetteer map[string]*regexp.Regexp
	order     []string
	vocab     map[string]bool
}

func NewBrandExtractor(lexicon *Lexicon) *BrandExtractor {
	extractor := &BrandExtractor{
		gazetteer: make(map[string]*regexp.Regexp, len(lexicon.Brands)),
		order:     make([]string, 0, len(lexicon.Brands)),
		vocab:     make(map[string]bool),
	}
	for _, brand := range lexicon.Brands {
		brand = strings.TrimSpace(brand)
		if brand == "" {
			continue
		}
		extractor.gazetteer[brand] = regexp.MustCompile(
			fmt.Sprintf(`(?i)\b%s\b`, regexp.QuoteMeta(brand)))
		extractor.order = append(extractor.order, brand)
	}
	// Vocabulary words are never brand guesses.
	for _, list := range [][]string{lexicon.Colors, lexicon.Materials, lexicon.Features} {
		for _, term := range list {
			extractor.vocab[strings.ToLower(term)] = true
		}
	}
	return extractor
}

func (e *BrandExtractor) Kind() string { return KindBrand }

func (e *BrandExtractor) Extract(ctx context.Context, input Input) ([]Attribute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if match := brandLabelPattern.FindStringSubmatch(input.Text); match != nil {
		return []Attribute{{
			Kind:       KindBrand,
			Value:      strings.TrimSpace(match[1]),
			Confidence: 0.90,
			Source:     input.Source,
		}}, nil
	}

	for _, brand := range e.order {
		if e.gazetteer[brand].MatchString(input.Text) {
			return []Attribute{{
				Kind:       KindBrand,
				Value:      brand,
				Confidence: 0.85,
				Source:     input.Source,
			}}, nil
		}
	}

	// Weak guess: titles often lead with the brand name.
	if input.Source == SourceTitle {
		if token := leadingCapitalizedToken(input.Text); token != "" && !e.vocab[strings.ToLower(token)] {
			return []Attribute{{
				Kind:       KindBrand,
				Value:      token,
				Confidence: 0.50,
				Source:     input.Source,
			}}, nil
		}
	}

	return nil, nil
}

func leadingCapitalizedToken(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}

	token := strings.Trim(fields[0], ".,:;!?()[]")
	runes := []rune(token)
	if len(runes) < 3 || !unicode.IsUpper(runes[0]) {
		return ""
	}
	for _, r := range runes[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '&' {
			return ""
		}
	}
	return token
}
