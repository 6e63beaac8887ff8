/**
 * Recognition provider contract
 *
 * A Provider is one text-recognition capability (Tesseract today, a remote
 * vision service tomorrow). Providers are process-wide instances injected at
 * construction and reused across requests; each Recognize call is stateless
 * and safe to run concurrently with others.
 */

package recognition

import (
	"context"
	"image"
)

// Region is the pixel rectangle an observation was read from, in the
// coordinate space of the variant it was recognized on.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Observation is one recognized text fragment as returned by a provider,
// before any strategy-level tagging or discounting.
type Observation struct {
	Text       string
	Confidence float64 // [0,1]
	Region     *Region
}

// Options carries per-call recognition parameters.
type Options struct {
	// Languages are engine language codes, e.g. "eng", "spa".
	Languages []string
	// PageSegMode is the Tesseract page segmentation mode; 0 keeps the
	// engine default.
	PageSegMode int
}

// Option mutates recognition Options.
type Option func(*Options)

// WithLanguages sets the language hints for one recognition pass.
func WithLanguages(languages ...string) Option {
	return func(o *Options) {
		o.Languages = languages
	}
}

// WithPageSegMode sets the page segmentation mode for one recognition pass.
func WithPageSegMode(mode int) Option {
	return func(o *Options) {
		o.PageSegMode = mode
	}
}

func applyOptions(opts []Option) Options {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Provider is a text-recognition capability. Implementations must be safe
// for concurrent use; a nil observation slice with a nil error means the
// image simply contains no machine-readable text.
type Provider interface {
	Name() string
	Recognize(ctx context.Context, img image.Image, opts ...Option) ([]Observation, error)
}

// Page segmentation modes used by the strategies (Tesseract numbering).
const (
	PSMAutomatic    = 3
	PSMSingleColumn = 4
	PSMSingleBlock  = 6
)
