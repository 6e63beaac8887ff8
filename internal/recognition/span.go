/**
 * Text spans and strategy identities
 *
 * A Span is one recognized fragment with provenance: which strategy read it,
 * where, in what order. Strategy priority resolves ranking ties during
 * consolidation; horizontal reads are the most trustworthy, embossed the
 * least.
 */

package recognition

// StrategyKind identifies one recognition pathway.
type StrategyKind string

const (
	StrategyHorizontal   StrategyKind = "horizontal"
	StrategyVertical     StrategyKind = "vertical"
	StrategyEmbossed     StrategyKind = "embossed"
	StrategyMultilingual StrategyKind = "multilingual"
)

// Priority returns the tie-break rank of the strategy; lower wins.
func (k StrategyKind) Priority() int {
	switch k {
	case StrategyHorizontal:
		return 0
	case StrategyVertical:
		return 1
	case StrategyMultilingual:
		return 2
	case StrategyEmbossed:
		return 3
	default:
		return 4
	}
}

// Span is one recognized text fragment. Immutable once produced.
type Span struct {
	Text          string       `json:"text"`
	Confidence    float64      `json:"confidence"`
	Strategy      StrategyKind `json:"strategy"`
	Region        *Region      `json:"region,omitempty"`
	SequenceIndex int          `json:"sequence_index"`
	Angle         int          `json:"angle,omitempty"`    // rotation that produced it, vertical only
	Language      string       `json:"language,omitempty"` // ISO 639-1, multilingual only
}
