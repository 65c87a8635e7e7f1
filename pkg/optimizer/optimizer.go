// Package optimizer searches a strategy parameter space for the assignment
// that maximizes an objective metric under constraints.
package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/raykavin/walkforward/pkg/logger"
)

// Stop reasons recorded in core.Study.Stopped
const (
	StoppedBudget    = "budget"
	StoppedTimeout   = "timeout"
	StoppedCancelled = "cancelled"
)

// Objective scores one parameter assignment
type Objective interface {
	// Evaluate runs a backtest with the given parameters and returns its aggregated metrics
	Evaluate(ctx context.Context, params core.ParameterSet) (core.Metrics, error)
}

// ObjectiveFunc adapts a function to the Objective interface
type ObjectiveFunc func(ctx context.Context, params core.ParameterSet) (core.Metrics, error)

func (f ObjectiveFunc) Evaluate(ctx context.Context, params core.ParameterSet) (core.Metrics, error) {
	return f(ctx, params)
}

// TrialCallback receives every finished trial. Calls are serialized.
type TrialCallback func(trial core.Trial)

// Config holds configuration for the optimization process
type Config struct {
	// Parameters to optimize
	Parameters []core.Parameter
	// Values held constant in every trial
	Fixed core.ParameterSet
	// Maximum number of trials
	MaxIterations int
	// Number of parallel evaluations
	Parallelism int
	// Logger instance
	Logger logger.Logger
	// Target metric to optimize
	TargetMetric core.MetricName
	// Whether to maximize (true) or minimize (false) the target metric
	Maximize bool
	// Top N trials to print
	TopN int
	// Seed of the sampler
	Seed int64
	// Wall-clock budget, 0 for none
	Timeout time.Duration
	// Predicates every feasible trial satisfies
	Constraints []Constraint
	// Search algorithm
	Sampler Sampler
	// Called after each trial
	OnTrial TrialCallback
}

// NewConfig creates a default configuration
func NewConfig() *Config {
	return &Config{
		Parameters:    []core.Parameter{},
		MaxIterations: 100,
		Parallelism:   1,
		TargetMetric:  core.MetricSharpeRatio,
		Maximize:      true,
		TopN:          5,
		Seed:          1,
		Sampler:       RandomSampler{},
	}
}

// WithParameters adds parameters to the configuration
func (c *Config) WithParameters(params ...core.Parameter) *Config {
	c.Parameters = append(c.Parameters, params...)
	return c
}

// WithFixed sets values shared by every trial
func (c *Config) WithFixed(params core.ParameterSet) *Config {
	c.Fixed = params.Clone()
	return c
}

// WithMaxIterations sets the maximum number of trials
func (c *Config) WithMaxIterations(iterations int) *Config {
	c.MaxIterations = iterations
	return c
}

// WithParallelism sets the number of parallel evaluations
func (c *Config) WithParallelism(n int) *Config {
	c.Parallelism = n
	return c
}

// WithLogger sets the logger
func (c *Config) WithLogger(logger logger.Logger) *Config {
	c.Logger = logger
	return c
}

// WithTargetMetric sets the target metric to optimize
func (c *Config) WithTargetMetric(metric core.MetricName, maximize bool) *Config {
	c.TargetMetric = metric
	c.Maximize = maximize
	return c
}

// WithTopN sets the number of top trials to print
func (c *Config) WithTopN(n int) *Config {
	c.TopN = n
	return c
}

// WithSeed sets the sampler seed
func (c *Config) WithSeed(seed int64) *Config {
	c.Seed = seed
	return c
}

// WithTimeout sets the wall-clock budget
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithConstraints adds feasibility constraints
func (c *Config) WithConstraints(constraints ...Constraint) *Config {
	c.Constraints = append(c.Constraints, constraints...)
	return c
}

// WithSampler sets the search algorithm
func (c *Config) WithSampler(sampler Sampler) *Config {
	c.Sampler = sampler
	return c
}

// WithTrialCallback sets the per-trial callback
func (c *Config) WithTrialCallback(callback TrialCallback) *Config {
	c.OnTrial = callback
	return c
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if len(c.Parameters) == 0 {
		return fmt.Errorf("%w: at least one parameter must be provided", core.ErrInvalidConfiguration)
	}
	for _, param := range c.Parameters {
		if err := param.Validate(); err != nil {
			return err
		}
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("%w: trial budget must be positive", core.ErrInvalidConfiguration)
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("%w: parallelism must be positive", core.ErrInvalidConfiguration)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", core.ErrInvalidConfiguration)
	}
	if _, err := core.ParseMetricName(string(c.TargetMetric)); err != nil {
		return err
	}
	for _, constraint := range c.Constraints {
		if err := constraint.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Optimizer runs studies. It keeps no state between Optimize calls.
type Optimizer struct {
	config Config
	log    logger.Logger
}

// New creates an optimizer from a validated copy of config
func New(config *Config) (*Optimizer, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config cannot be nil", core.ErrInvalidConfiguration)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cfg := *config
	if cfg.Sampler == nil {
		cfg.Sampler = RandomSampler{}
	}
	return &Optimizer{config: cfg, log: logger.OrNop(cfg.Logger)}, nil
}

// Optimize evaluates up to MaxIterations assignments of the parameter space.
//
// Assignments are drawn up-front from the seeded sampler, so a fixed seed and
// budget always produce the same trial sequence. Trials run in parallel and are
// stored by index. Cancellation and the timeout are checked before each trial
// starts; a running trial always finishes. The study is returned in every case
// after validation, together with ctx.Err() when cancelled or
// core.ErrNoFeasibleTrial when no trial satisfied the constraints.
func (o *Optimizer) Optimize(ctx context.Context, family core.Family, objective Objective) (*core.Study, error) {
	if objective == nil {
		return nil, fmt.Errorf("%w: objective cannot be nil", core.ErrInvalidConfiguration)
	}

	cfg := o.config
	rng := rand.New(rand.NewSource(cfg.Seed))
	assignments, err := cfg.Sampler.Sample(cfg.Parameters, cfg.MaxIterations, rng)
	if err != nil {
		return nil, err
	}

	study := &core.Study{
		Family:    family,
		Objective: cfg.TargetMetric,
		Maximize:  cfg.Maximize,
		Seed:      cfg.Seed,
		Budget:    cfg.MaxIterations,
		Best:      -1,
		Stopped:   StoppedBudget,
	}

	log := o.log.WithFields(map[string]any{"family": family, "objective": cfg.TargetMetric})
	log.Infof("Starting optimization with %d trials", len(assignments))

	var deadline time.Time
	if cfg.Timeout > 0 {
		deadline = time.Now().Add(cfg.Timeout)
	}

	var (
		trials     = make([]core.Trial, len(assignments))
		dispatched int
		callbackMu sync.Mutex
		wg         sync.WaitGroup
		semaphore  = make(chan struct{}, cfg.Parallelism)
	)

	// running trials are never interrupted
	trialCtx := context.WithoutCancel(ctx)

	for i, sampled := range assignments {
		semaphore <- struct{}{} // Acquire semaphore

		// trial boundary: a slot is free, decide whether to start another trial
		if ctx.Err() != nil {
			study.Stopped = StoppedCancelled
			<-semaphore
			break
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			study.Stopped = StoppedTimeout
			<-semaphore
			break
		}

		params := cfg.Fixed.Clone()
		for name, value := range sampled {
			params[name] = value
		}

		dispatched++
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-semaphore }() // Release semaphore

			trials[i] = o.runTrial(trialCtx, i, params, objective)

			log.WithFields(map[string]any{
				"trial":    i,
				"value":    trials[i].Metrics.Get(cfg.TargetMetric),
				"feasible": trials[i].Feasible,
			}).Debug("trial completed")

			if cfg.OnTrial != nil {
				callbackMu.Lock()
				cfg.OnTrial(trials[i])
				callbackMu.Unlock()
			}
		}()
	}
	wg.Wait()

	study.Trials = trials[:dispatched]
	study.Best = o.best(study.Trials)

	if study.Stopped == StoppedCancelled {
		log.Warnf("Optimization cancelled after %d trials", dispatched)
		return study, ctx.Err()
	}
	if study.Best < 0 {
		log.Warnf("Optimization finished without a feasible trial (%d trials)", dispatched)
		return study, fmt.Errorf("%w: %d trials evaluated", core.ErrNoFeasibleTrial, dispatched)
	}

	best := study.Trials[study.Best]
	log.WithFields(map[string]any{
		"trial":  best.Index,
		"value":  best.Metrics.Get(cfg.TargetMetric),
		"params": FormatParameterSet(best.Params),
	}).Infof("Optimization completed with %d trials", dispatched)

	return study, nil
}

func (o *Optimizer) runTrial(ctx context.Context, index int, params core.ParameterSet, objective Objective) core.Trial {
	start := time.Now()
	trial := core.Trial{Index: index, Params: params}

	metrics, err := objective.Evaluate(ctx, params)
	trial.Duration = time.Since(start)
	if err != nil {
		trial.Metrics = core.UndefinedMetrics()
		trial.Err = err.Error()
		return trial
	}

	trial.Metrics = metrics
	if math.IsNaN(metrics.Get(o.config.TargetMetric)) {
		trial.Violations = append(trial.Violations, fmt.Sprintf("%s is undefined", o.config.TargetMetric))
	}
	for _, constraint := range o.config.Constraints {
		if !constraint.Holds(metrics) {
			trial.Violations = append(trial.Violations, constraint.String())
		}
	}
	trial.Feasible = len(trial.Violations) == 0
	return trial
}

// best returns the index of the best feasible trial, -1 when there is none.
// Only a strictly better value replaces the current best, so ties keep the earlier trial.
func (o *Optimizer) best(trials []core.Trial) int {
	best := -1
	for i, trial := range trials {
		if !trial.Feasible {
			continue
		}
		if best < 0 || o.better(trial.Metrics, trials[best].Metrics) {
			best = i
		}
	}
	return best
}

func (o *Optimizer) better(a, b core.Metrics) bool {
	valueA, valueB := a.Get(o.config.TargetMetric), b.Get(o.config.TargetMetric)
	if o.config.Maximize {
		return valueA > valueB
	}
	return valueA < valueB
}
