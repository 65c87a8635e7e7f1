package backtest

import (
	"context"
	"fmt"

	"github.com/raykavin/walkforward/pkg/core"
)

// Objective scores a parameter assignment by running a full backtest of one
// strategy family. It satisfies optimizer.Objective.
type Objective struct {
	runner   *Runner
	family   core.Family
	provider core.DataProvider
	config   Config
	onResult func(*core.BacktestResult)
}

// NewObjective creates an objective for family over the data of provider
func NewObjective(runner *Runner, family core.Family, provider core.DataProvider, cfg Config) *Objective {
	return &Objective{
		runner:   runner,
		family:   family,
		provider: provider,
		config:   cfg,
	}
}

// OnResult registers a callback receiving every successful backtest result.
// It may be called from several goroutines at once.
func (o *Objective) OnResult(callback func(*core.BacktestResult)) *Objective {
	o.onResult = callback
	return o
}

// Parameters returns the tunable parameters of the objective family
func (o *Objective) Parameters() ([]core.Parameter, error) {
	rule, err := o.runner.Registry().Rule(o.family)
	if err != nil {
		return nil, err
	}
	return rule.Parameters(), nil
}

// Evaluate runs the backtest and returns the mean of the fold metrics
func (o *Objective) Evaluate(ctx context.Context, params core.ParameterSet) (core.Metrics, error) {
	spec := core.NewStrategySpec(fmt.Sprintf("%s[%s]", o.family, params.Format()), o.family, params)

	result, err := o.runner.Run(ctx, spec, o.provider, o.config)
	if err != nil {
		return core.Metrics{}, err
	}

	if o.onResult != nil {
		o.onResult(result)
	}
	return result.Aggregate.Mean, nil
}
