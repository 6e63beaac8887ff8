/**
 * Attribute extraction engine
 *
 * Fans every registered extractor out over every text source. Extractor
 * failures degrade into warnings; partial results from a failing extractor
 * are kept. The engine emits raw candidates; the reconciler produces the
 * final set.
 */

package attributes

import (
	"context"
	"sync"
	"time"

	"github.com/shelfwise/catalog/photoscan-worker/internal/errors"
	"github.com/shelfwise/catalog/photoscan-worker/internal/logging"
)

// Engine runs all extractors over all sources concurrently.
type Engine struct {
	extractors []Extractor
	logger     *logging.Logger
}

// NewEngine builds an engine over a fixed extractor set.
func NewEngine(extractors []Extractor, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewLogger("Attributes")
	}
	return &Engine{extractors: extractors, logger: logger}
}

// NewDefaultEngine wires the full extractor set. classifier may be nil.
func NewDefaultEngine(lexicon *Lexicon, classifier ClassifierProvider, classifierTimeout time.Duration, keywordLimit int, logger *logging.Logger) *Engine {
	return NewEngine([]Extractor{
		NewPriceExtractor(),
		NewDimensionsExtractor(),
		NewWeightExtractor(),
		NewColorExtractor(lexicon),
		NewMaterialExtractor(lexicon),
		NewFeatureExtractor(lexicon),
		NewKeywordExtractor(lexicon, keywordLimit),
		NewBrandExtractor(lexicon),
		NewCategoryExtractor(classifier, lexicon, classifierTimeout),
		NewResolutionExtractor(),
		NewStorageExtractor(),
	}, logger)
}

type extractorOutcome struct {
	attributes []Attribute
	warnings   []errors.Warning
}

// Run extracts candidates from every non-empty source. The result order is
// deterministic: extractor registration order, then source order.
func (e *Engine) Run(ctx context.Context, jobID string, inputs []Input) ([]Attribute, []errors.Warning) {
	sources := make([]Input, 0, len(inputs))
	for _, input := range inputs {
		if input.Text != "" {
			sources = append(sources, input)
		}
	}
	if len(sources) == 0 {
		return nil, nil
	}

	outcomes := make([]extractorOutcome, len(e.extractors))

	var wg sync.WaitGroup
	for i, extractor := range e.extractors {
		wg.Add(1)
		go func(idx int, ex Extractor) {
			defer wg.Done()
			outcomes[idx] = e.runOne(ctx, jobID, ex, sources)
		}(i, extractor)
	}
	wg.Wait()

	attributes := make([]Attribute, 0)
	warnings := make([]errors.Warning, 0)
	for _, outcome := range outcomes {
		attributes = append(attributes, outcome.attributes...)
		warnings = append(warnings, outcome.warnings...)
	}

	e.logger.Debug("Extraction complete",
		"job", jobID, "candidates", len(attributes), "warnings", len(warnings))
	return attributes, warnings
}

func (e *Engine) runOne(ctx context.Context, jobID string, extractor Extractor, sources []Input) extractorOutcome {
	var outcome extractorOutcome
	for _, source := range sources {
		found, err := extractor.Extract(ctx, source)
		outcome.attributes = append(outcome.attributes, found...)
		if err != nil {
			outcome.warnings = append(outcome.warnings,
				errors.WarningFromError(extractor.Kind(), err))
			e.logger.Warn("Extractor degraded",
				"job", jobID, "extractor", extractor.Kind(),
				"source", source.Source, "error", err.Error())
		}
	}
	return outcome
}
