/**
 * Category extractor
 *
 * Asks the remote classifier first and falls back to lexicon keyword voting
 * when the classifier is down. Fallback confidence is capped well below the
 * classifier's range so a recovered classifier always wins reconciliation.
 */

package attributes

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shelfwise/catalog/photoscan-worker/internal/errors"
)

const fallbackCategoryCeiling = 0.70

// ClassifierProvider labels product text with a category.
type ClassifierProvider interface {
	Name() string
	Classify(ctx context.Context, text string) (category string, confidence float64, err error)
}

// CategoryExtractor resolves the product category.
type CategoryExtractor struct {
	provider ClassifierProvider
	timeout  time.Duration
	patterns map[string]map[string]*regexp.Regexp
	names    []string
}

// NewCategoryExtractor builds the extractor. provider may be nil, in which
// case only the lexicon fallback runs and no warning is raised.
func NewCategoryExtractor(provider ClassifierProvider, lexicon *Lexicon, timeout time.Duration) *CategoryExtractor {
	extractor := &CategoryExtractor{
		provider: provider,
		timeout:  timeout,
		patterns: make(map[string]map[string]*regexp.Regexp, len(lexicon.Categories)),
		names:    make([]string, 0, len(lexicon.Categories)),
	}
	for category, keywords := range lexicon.Categories {
		extractor.names = append(extractor.names, category)
		extractor.patterns[category] = make(map[string]*regexp.Regexp, len(keywords))
		for _, keyword := range keywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword == "" {
				continue
			}
			extractor.patterns[category][keyword] = regexp.MustCompile(
				fmt.Sprintf(`(?i)\b%s\b`, regexp.QuoteMeta(keyword)))
		}
	}
	sort.Strings(extractor.names)
	return extractor
}

func (e *CategoryExtractor) Kind() string { return KindCategory }

// Extract classifies the source text. When the classifier errors, the
// lexicon fallback result is returned together with a provider-unavailable
// error so the caller can record the degradation.
func (e *CategoryExtractor) Extract(ctx context.Context, input Input) ([]Attribute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Text) == "" {
		return nil, nil
	}

	if e.provider == nil {
		return e.fallback(input), nil
	}

	classifyCtx := ctx
	cancel := context.CancelFunc(func() {})
	if e.timeout > 0 {
		classifyCtx, cancel = context.WithTimeout(ctx, e.timeout)
	}
	defer cancel()

	category, confidence, err := e.provider.Classify(classifyCtx, input.Text)
	if err != nil {
		return e.fallback(input), errors.NewProviderUnavailableError("", e.provider.Name(), err)
	}

	category = strings.TrimSpace(category)
	if category == "" {
		return e.fallback(input), nil
	}

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return []Attribute{{
		Kind:       KindCategory,
		Value:      category,
		Confidence: confidence,
		Source:     input.Source,
	}}, nil
}

// fallback votes lexicon keywords per category; more distinct hits, more
// confidence, capped below the classifier's range.
func (e *CategoryExtractor) fallback(input Input) []Attribute {
	best := ""
	bestHits := 0
	for _, category := range e.names {
		hits := 0
		for _, pattern := range e.patterns[category] {
			if pattern.MatchString(input.Text) {
				hits++
			}
		}
		if hits > bestHits {
			best = category
			bestHits = hits
		}
	}

	if best == "" {
		return nil
	}

	confidence := 0.45 + 0.08*float64(bestHits)
	if confidence > fallbackCategoryCeiling {
		confidence = fallbackCategoryCeiling
	}

	return []Attribute{{
		Kind:       KindCategory,
		Value:      best,
		Confidence: confidence,
		Source:     input.Source,
	}}
}
