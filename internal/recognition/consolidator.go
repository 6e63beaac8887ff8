/**
 * Span consolidator
 *
 * Merges the raw spans produced by all strategies into a deduplicated,
 * confidence-ranked transcript. Near-duplicate readings of the same physical
 * text are folded into one canonical span, and agreement across independent
 * strategies earns a bounded confidence bonus.
 */

package recognition

import (
	"sort"
	"strings"
	"unicode"
)

// ConsolidatedSpan is a canonical span plus the near-duplicate readings that
// were folded into it. EffectiveConfidence includes the corroboration bonus.
type ConsolidatedSpan struct {
	Span
	EffectiveConfidence float64 `json:"effective_confidence"`
	Corroborating       []Span  `json:"corroborating,omitempty"`
}

// Transcript is the consolidated output of a recognition run.
type Transcript struct {
	Spans        []ConsolidatedSpan `json:"spans"`
	CombinedText string             `json:"combined_text"`
}

// Empty reports whether the run produced no usable text.
func (t Transcript) Empty() bool {
	return len(t.Spans) == 0
}

// Consolidator groups near-duplicate spans and ranks the survivors.
type Consolidator struct {
	threshold float64
	bonus     float64
}

// NewConsolidator builds a consolidator. threshold is the similarity ratio
// at which two normalized spans count as the same text; bonus is the
// per-strategy corroboration increment.
func NewConsolidator(threshold, bonus float64) *Consolidator {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.85
	}
	if bonus < 0 {
		bonus = 0
	}
	return &Consolidator{threshold: threshold, bonus: bonus}
}

type spanGroup struct {
	canonical     Span
	key           string
	corroborating []Span
}

// Consolidate folds the raw spans into a transcript. Spans that normalize to
// nothing are dropped. The output order is effective confidence descending,
// with ties broken by strategy priority and then sequence index.
func (c *Consolidator) Consolidate(spans []Span) Transcript {
	candidates := make([]Span, 0, len(spans))
	for _, span := range spans {
		if NormalizeText(span.Text) != "" {
			candidates = append(candidates, span)
		}
	}

	// Highest-confidence span first so each group's first member is its
	// canonical reading.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		if pi, pj := candidates[i].Strategy.Priority(), candidates[j].Strategy.Priority(); pi != pj {
			return pi < pj
		}
		return candidates[i].SequenceIndex < candidates[j].SequenceIndex
	})

	groups := make([]*spanGroup, 0, len(candidates))
	for _, span := range candidates {
		key := NormalizeText(span.Text)
		merged := false
		for _, group := range groups {
			if SimilarityRatio(key, group.key) >= c.threshold {
				group.corroborating = append(group.corroborating, span)
				merged = true
				break
			}
		}
		if !merged {
			groups = append(groups, &spanGroup{canonical: span, key: key})
		}
	}

	consolidated := make([]ConsolidatedSpan, 0, len(groups))
	for _, group := range groups {
		consolidated = append(consolidated, ConsolidatedSpan{
			Span:                group.canonical,
			EffectiveConfidence: c.effectiveConfidence(group),
			Corroborating:       group.corroborating,
		})
	}

	sort.SliceStable(consolidated, func(i, j int) bool {
		if consolidated[i].EffectiveConfidence != consolidated[j].EffectiveConfidence {
			return consolidated[i].EffectiveConfidence > consolidated[j].EffectiveConfidence
		}
		if pi, pj := consolidated[i].Strategy.Priority(), consolidated[j].Strategy.Priority(); pi != pj {
			return pi < pj
		}
		return consolidated[i].SequenceIndex < consolidated[j].SequenceIndex
	})

	texts := make([]string, 0, len(consolidated))
	for _, span := range consolidated {
		texts = append(texts, span.Text)
	}

	return Transcript{
		Spans:        consolidated,
		CombinedText: strings.Join(texts, " "),
	}
}

func (c *Consolidator) effectiveConfidence(group *spanGroup) float64 {
	others := make(map[StrategyKind]bool)
	for _, span := range group.corroborating {
		if span.Strategy != group.canonical.Strategy {
			others[span.Strategy] = true
		}
	}

	effective := group.canonical.Confidence + c.bonus*float64(len(others))
	if effective > 1.0 {
		effective = 1.0
	}
	return effective
}

// NormalizeText lowercases, strips punctuation, and collapses whitespace so
// that near-duplicate readings compare on content alone.
func NormalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}
