/**
 * Keyword extractor
 *
 * Frequency-ranked content words for search indexing. Tokens shorter than
 * four characters, stopwords, and pure numbers are skipped.
 */

package attributes

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

const keywordConfidence = 0.60

// KeywordExtractor pulls the most frequent content words out of a source.
type KeywordExtractor struct {
	lexicon *Lexicon
	limit   int
}

func NewKeywordExtractor(lexicon *Lexicon, limit int) *KeywordExtractor {
	if limit <= 0 {
		limit = 10
	}
	return &KeywordExtractor{lexicon: lexicon, limit: limit}
}

func (e *KeywordExtractor) Kind() string { return KindKeyword }

func (e *KeywordExtractor) Extract(ctx context.Context, input Input) ([]Attribute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	firstSeen := make(map[string]int)

	for i, token := range tokenize(input.Text) {
		if len(token) <= 3 || e.lexicon.IsStopword(token) || isNumeric(token) {
			continue
		}
		if _, seen := counts[token]; !seen {
			firstSeen[token] = i
		}
		counts[token]++
	}

	tokens := make([]string, 0, len(counts))
	for token := range counts {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if counts[tokens[i]] != counts[tokens[j]] {
			return counts[tokens[i]] > counts[tokens[j]]
		}
		return firstSeen[tokens[i]] < firstSeen[tokens[j]]
	})

	if len(tokens) > e.limit {
		tokens = tokens[:e.limit]
	}

	found := make([]Attribute, 0, len(tokens))
	for _, token := range tokens {
		found = append(found, Attribute{
			Kind:       KindKeyword,
			Value:      token,
			Confidence: keywordConfidence,
			Source:     input.Source,
		})
	}
	return found, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isNumeric(token string) bool {
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(token) > 0
}
