// Package backtest runs a strategy over purged cross-validation folds and
// aggregates the per-fold metrics.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/raykavin/walkforward/pkg/logger"
	"github.com/raykavin/walkforward/pkg/metric"
	"github.com/raykavin/walkforward/pkg/simulate"
	"github.com/raykavin/walkforward/pkg/split"
	"github.com/raykavin/walkforward/pkg/strategy"
	"golang.org/x/sync/errgroup"
)

// Runner executes backtest runs. It holds no per-run state and is safe for concurrent use.
type Runner struct {
	registry *strategy.Registry
	log      logger.Logger
}

// NewRunner creates a runner over a strategy registry
func NewRunner(registry *strategy.Registry, log logger.Logger) *Runner {
	if registry == nil {
		registry = strategy.Default()
	}
	return &Runner{registry: registry, log: logger.OrNop(log)}
}

// Registry returns the strategy registry of the runner
func (r *Runner) Registry() *strategy.Registry {
	return r.registry
}

// Run evaluates spec on every fold of the bars returned by provider.
//
// Configuration errors are returned before the provider is called, with a
// nil result. Later failures return the result in the Failed state together
// with the error. A fold that cannot be evaluated is marked skipped; only
// when every fold is skipped does the run fail with core.ErrNoValidFolds.
func (r *Runner) Run(ctx context.Context, spec core.StrategySpec, provider core.DataProvider, cfg Config) (*core.BacktestResult, error) {
	start := time.Now()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, _, err := r.registry.Resolve(spec); err != nil {
		return nil, err
	}

	result := &core.BacktestResult{Spec: spec, Symbol: cfg.Symbol}
	log := r.log.WithFields(map[string]any{"spec": spec.ID, "symbol": cfg.Symbol})

	setState := func(state core.RunState) {
		result.State = state
		log.WithField("state", state).Debug("backtest state changed")
	}
	fail := func(err error) (*core.BacktestResult, error) {
		setState(core.StateFailed)
		result.Duration = time.Since(start)
		log.WithError(err).Warn("backtest failed")
		return result, err
	}

	setState(core.StateInitialized)

	bars, err := provider.Bars(ctx, cfg.Symbol, cfg.From, cfg.To)
	if err != nil {
		return fail(fmt.Errorf("loading bars of %s: %w", cfg.Symbol, err))
	}
	if err := core.ValidateBars(bars); err != nil {
		return fail(err)
	}

	setState(core.StateSplitting)
	folds, err := split.Split(len(bars), cfg.Split)
	if err != nil {
		return fail(err)
	}
	folds = split.Bind(folds, bars)

	setState(core.StateEvaluating)
	result.Folds = make([]core.FoldResult, len(folds))
	skipped := make([]error, len(folds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.parallelism())
	for i, fold := range folds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result.Folds[i], skipped[i] = r.runFold(spec, bars, fold, cfg, log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	setState(core.StateAggregating)
	var (
		scores  []core.Metrics
		reasons []error
	)
	for i, fold := range result.Folds {
		if fold.Status == core.FoldCompleted {
			scores = append(scores, fold.Metrics)
			result.Equity = fold.Equity
			continue
		}
		reasons = append(reasons, fmt.Errorf("fold %d: %w", fold.Fold.Index, skipped[i]))
	}

	if len(scores) == 0 {
		return fail(fmt.Errorf("%w: %w", core.ErrNoValidFolds, errors.Join(reasons...)))
	}

	result.Aggregate = metric.Aggregate(scores)
	setState(core.StateCompleted)
	result.Duration = time.Since(start)

	log.WithFields(map[string]any{
		"folds":   len(folds),
		"skipped": len(reasons),
		"sharpe":  result.Aggregate.Mean.SharpeRatio,
	}).Info("backtest completed")

	return result, nil
}

// runFold evaluates, simulates and scores one fold. The evaluator sees the
// bars from the fold cutoff to the end of the test block; test bars whose
// lookback would reach before the cutoff get no decision and are dropped.
// A skipped fold comes back with the error that caused the skip.
func (r *Runner) runFold(spec core.StrategySpec, bars []core.Bar, fold core.Fold, cfg Config, log logger.Logger) (core.FoldResult, error) {
	result := core.FoldResult{Fold: fold}
	log = log.WithField("fold", fold.Index)

	skip := func(err error) (core.FoldResult, error) {
		result.Status = core.FoldSkipped
		result.Reason = err.Error()
		log.WithField("reason", result.Reason).Warn("fold skipped")
		return result, err
	}

	cutoff := fold.Cutoff()
	window := bars[cutoff:fold.Test.End]

	log.WithField("state", core.StateEvaluating).Debug("fold state changed")
	lookback, err := r.registry.Lookback(spec)
	if err != nil {
		return skip(err)
	}

	// first window index that is both inside the test block and has a decision
	first := max(fold.Test.Start-cutoff, lookback, 1)
	if first >= len(window) {
		return skip(fmt.Errorf("empty test range after lookback exclusion (lookback %d, test %d bars, cutoff %d)",
			lookback, fold.Test.Len(), cutoff))
	}

	decisions, err := r.registry.Evaluate(spec, cfg.Symbol, window)
	if err != nil {
		return skip(err)
	}

	log.WithField("state", core.StateSimulating).Debug("fold state changed")
	curve, fills, err := simulate.Run(shift(decisions, first), window[first:], cfg.Simulation)
	if err != nil {
		return skip(err)
	}

	log.WithField("state", core.StateScoring).Debug("fold state changed")
	result.Status = core.FoldCompleted
	result.Equity = curve
	result.Fills = fills
	result.Metrics = metric.Compute(curve, fills, cfg.RiskFreeRate, cfg.PeriodsPerYear)
	return result, nil
}

// shift drops decisions before offset and re-indexes the rest from zero
func shift(decisions iter.Seq[core.Decision], offset int) iter.Seq[core.Decision] {
	return func(yield func(core.Decision) bool) {
		for decision := range decisions {
			if decision.Index < offset {
				continue
			}
			decision.Index -= offset
			if !yield(decision) {
				return
			}
		}
	}
}
