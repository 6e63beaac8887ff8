/**
 * Attribute types
 *
 * An attribute is one structured fact pulled out of product text: a price,
 * a dimension string, a color, a brand. Extractors emit candidates; the
 * reconciler folds candidates from all sources into the final set.
 */

package attributes

import "context"

// Attribute kinds.
const (
	KindPrice      = "price"
	KindDimensions = "dimensions"
	KindWeight     = "weight"
	KindColor      = "color"
	KindMaterial   = "material"
	KindFeature    = "feature"
	KindKeyword    = "keyword"
	KindBrand      = "brand"
	KindCategory   = "category"
	KindResolution = "resolution"
	KindStorage    = "storage"
)

// Text sources, in reconciliation priority order.
const (
	SourceTitle       = "title"
	SourceDescription = "description"
	SourceTranscript  = "transcript"
)

// Attribute is one extracted fact with its provenance.
type Attribute struct {
	Kind       string  `json:"type"`
	Value      string  `json:"value"`
	Unit       string  `json:"unit,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Input is one text source handed to the extractors.
type Input struct {
	Source string
	Text   string
}

// Extractor pulls attributes of one kind out of a text source. An extractor
// may return both attributes and an error: the attributes are a degraded
// result and the error becomes a job warning.
type Extractor interface {
	Kind() string
	Extract(ctx context.Context, input Input) ([]Attribute, error)
}

// MultiValued reports whether a kind accumulates a set of values rather
// than a single winner.
func MultiValued(kind string) bool {
	switch kind {
	case KindColor, KindMaterial, KindFeature, KindKeyword:
		return true
	default:
		return false
	}
}

// SourcePriority orders sources for tie-breaking; lower wins.
func SourcePriority(source string) int {
	switch source {
	case SourceTitle:
		return 0
	case SourceDescription:
		return 1
	case SourceTranscript:
		return 2
	default:
		return 3
	}
}
