/**
 * Strategy runner
 *
 * Fans the four strategies out over the shared variant set, each under its
 * own timeout, and gathers whatever they produced. A strategy that fails or
 * times out degrades into a warning; it never takes the other strategies
 * down with it and never fails the job.
 */

package recognition

import (
	"context"
	goerrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/shelfwise/catalog/photoscan-worker/internal/errors"
	"github.com/shelfwise/catalog/photoscan-worker/internal/imaging"
	"github.com/shelfwise/catalog/photoscan-worker/internal/logging"
)

// StrategyResult is the outcome of one strategy pass.
type StrategyResult struct {
	Kind    StrategyKind
	Spans   []Span
	Warning *errors.Warning
	Elapsed time.Duration
}

// Runner executes a set of strategies concurrently and collects their spans.
type Runner struct {
	strategies []*Strategy
	timeout    time.Duration
	logger     *logging.Logger
}

// NewRunner builds a runner with a per-strategy timeout. A non-positive
// timeout disables the deadline.
func NewRunner(strategies []*Strategy, timeout time.Duration, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NewLogger("Runner")
	}
	return &Runner{
		strategies: strategies,
		timeout:    timeout,
		logger:     logger,
	}
}

// Run executes every strategy against the variants and returns the union of
// their spans plus one warning per degraded strategy. The span order is
// stable: strategies in registration order, spans in strategy order.
func (r *Runner) Run(ctx context.Context, jobID string, variants []imaging.Variant) ([]Span, []errors.Warning) {
	results := make([]StrategyResult, len(r.strategies))

	var wg sync.WaitGroup
	for i, strategy := range r.strategies {
		wg.Add(1)
		go func(idx int, s *Strategy) {
			defer wg.Done()
			results[idx] = r.runOne(ctx, jobID, s, variants)
		}(i, strategy)
	}
	wg.Wait()

	spans := make([]Span, 0)
	warnings := make([]errors.Warning, 0)
	for _, result := range results {
		spans = append(spans, result.Spans...)
		if result.Warning != nil {
			warnings = append(warnings, *result.Warning)
		}
	}

	return spans, warnings
}

func (r *Runner) runOne(ctx context.Context, jobID string, strategy *Strategy, variants []imaging.Variant) StrategyResult {
	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	start := time.Now()
	spans, err := strategy.Run(runCtx, variants)
	elapsed := time.Since(start)

	result := StrategyResult{Kind: strategy.Kind, Spans: spans, Elapsed: elapsed}

	if err != nil {
		if goerrors.Is(err, context.DeadlineExceeded) {
			err = errors.NewStrategyDegradedError(jobID, string(strategy.Kind),
				fmt.Errorf("timed out after %s", r.timeout))
		}
		warning := errors.WarningFromError(string(strategy.Kind), err)
		result.Warning = &warning
		result.Spans = nil
		r.logger.Warn("Strategy degraded",
			"job", jobID, "strategy", strategy.Kind, "error", err.Error())
		return result
	}

	r.logger.Debug("Strategy completed",
		"job", jobID, "strategy", strategy.Kind,
		"spans", len(spans), "elapsed", elapsed.String())
	return result
}
