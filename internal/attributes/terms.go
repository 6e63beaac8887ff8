/**
 * Lexicon term extractor
 *
 * Matches controlled-vocabulary terms (colors, materials, features) against
 * a text source on word boundaries. One extractor instance per kind.
 */

package attributes

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

const termConfidence = 0.85

// TermExtractor finds lexicon terms of one kind in a text source.
type TermExtractor struct {
	kind     string
	patterns map[string]*regexp.Regexp
	order    []string
}

// NewColorExtractor matches the lexicon's color vocabulary.
func NewColorExtractor(lexicon *Lexicon) *TermExtractor {
	return newTermExtractor(KindColor, lexicon.Colors)
}

// NewMaterialExtractor matches the lexicon's material vocabulary.
func NewMaterialExtractor(lexicon *Lexicon) *TermExtractor {
	return newTermExtractor(KindMaterial, lexicon.Materials)
}

// NewFeatureExtractor matches the lexicon's feature vocabulary.
func NewFeatureExtractor(lexicon *Lexicon) *TermExtractor {
	return newTermExtractor(KindFeature, lexicon.Features)
}

func newTermExtractor(kind string, terms []string) *TermExtractor {
	extractor := &TermExtractor{
		kind:     kind,
		patterns: make(map[string]*regexp.Regexp, len(terms)),
		order:    make([]string, 0, len(terms)),
	}
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if _, seen := extractor.patterns[term]; seen {
			continue
		}
		pattern := regexp.MustCompile(fmt.Sprintf(`(?i)\b%s\b`, regexp.QuoteMeta(term)))
		extractor.patterns[term] = pattern
		extractor.order = append(extractor.order, term)
	}
	return extractor
}

func (e *TermExtractor) Kind() string { return e.kind }

// Extract returns one attribute per lexicon term present in the text, in
// lexicon order.
func (e *TermExtractor) Extract(ctx context.Context, input Input) ([]Attribute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Text) == "" {
		return nil, nil
	}

	var found []Attribute
	for _, term := range e.order {
		if e.patterns[term].MatchString(input.Text) {
			found = append(found, Attribute{
				Kind:       e.kind,
				Value:      term,
				Confidence: termConfidence,
				Source:     input.Source,
			})
		}
	}
	return found, nil
}
