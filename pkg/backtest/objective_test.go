package backtest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/raykavin/walkforward/pkg/optimizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trendStudyConfig(parallelism int, constraints ...optimizer.Constraint) *optimizer.Config {
	return optimizer.NewConfig().
		WithParameters(core.Parameter{Name: "fast_period", Type: core.TypeInt, Default: 4, Min: 2, Max: 12, Step: 1}).
		WithFixed(core.ParameterSet{"slow_period": 30, "ma_type": "ema"}).
		WithMaxIterations(10).
		WithParallelism(parallelism).
		WithSeed(42).
		WithConstraints(constraints...)
}

func TestOptimizeBacktestIsDeterministic(t *testing.T) {
	runner := NewRunner(testRegistry(t), nil)
	provider := &countingProvider{bars: randomWalk(800, 11)}
	objective := NewObjective(runner, core.FamilyTrendFollowing, provider, testConfig())

	run := func(parallelism int) *core.Study {
		opt, err := optimizer.New(trendStudyConfig(parallelism))
		require.NoError(t, err)
		study, err := opt.Optimize(context.Background(), core.FamilyTrendFollowing, objective)
		require.NoError(t, err)
		return study
	}

	encode := func(study *core.Study) string {
		type entry struct {
			Params  core.ParameterSet
			Metrics core.Metrics
			Err     string
		}
		entries := make([]entry, len(study.Trials))
		for i, trial := range study.Trials {
			entries[i] = entry{trial.Params, trial.Metrics, trial.Err}
		}
		data, err := json.Marshal(entries)
		require.NoError(t, err)
		return string(data)
	}

	sequential, parallel := run(1), run(4)
	require.Len(t, sequential.Trials, 10)
	require.Len(t, parallel.Trials, 10)
	assert.JSONEq(t, encode(sequential), encode(parallel))
	assert.Equal(t, sequential.Best, parallel.Best)
	assert.GreaterOrEqual(t, sequential.Best, 0)

	for _, trial := range sequential.Trials {
		assert.Equal(t, 30, trial.Params["slow_period"])
		assert.Empty(t, trial.Err)
	}
}

func TestOptimizeBacktestWithoutFeasibleTrial(t *testing.T) {
	runner := NewRunner(testRegistry(t), nil)
	provider := &countingProvider{bars: randomWalk(800, 12)}
	objective := NewObjective(runner, core.FamilyTrendFollowing, provider, testConfig())

	constraint, err := optimizer.ParseConstraint("max_drawdown >= 0")
	require.NoError(t, err)

	opt, err := optimizer.New(trendStudyConfig(2, constraint))
	require.NoError(t, err)

	study, err := opt.Optimize(context.Background(), core.FamilyTrendFollowing, objective)
	require.ErrorIs(t, err, core.ErrNoFeasibleTrial)
	require.NotNil(t, study)
	assert.Len(t, study.Trials, 10)
	assert.Equal(t, -1, study.Best)
	assert.Empty(t, study.Feasible())
	for _, trial := range study.Trials {
		assert.Contains(t, trial.Violations, constraint.String())
	}
}
