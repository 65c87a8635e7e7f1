package storage

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *core.BacktestResult {
	at := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	metrics := core.Metrics{}.Set(core.MetricTotalReturn, 0.12).Set(core.MetricSharpeRatio, math.NaN())

	return &core.BacktestResult{
		Spec:   core.NewStrategySpec("trend-fast", core.FamilyTrendFollowing, core.ParameterSet{"fast_period": 10}),
		Symbol: "BTCUSDT",
		Folds: []core.FoldResult{{
			Fold:    core.Fold{Index: 0, Test: core.Window{Start: 100, End: 200}},
			Status:  core.FoldCompleted,
			Metrics: metrics,
			Equity:  core.EquityCurve{{Time: at, Equity: 100_000, Cash: 100_000}},
		}},
		Aggregate: core.Aggregate{Mean: metrics, Median: metrics, StdDev: core.UndefinedMetrics()},
		State:     core.StateCompleted,
		Duration:  time.Second,
	}
}

func sampleStudy() *core.Study {
	return &core.Study{
		Family:    core.FamilyMomentum,
		Objective: core.MetricSharpeRatio,
		Maximize:  true,
		Seed:      7,
		Budget:    2,
		Trials: []core.Trial{
			{Index: 0, Params: core.ParameterSet{"period": 12.0}, Metrics: core.UndefinedMetrics(), Err: "boom"},
			{Index: 1, Params: core.ParameterSet{"period": 20.0}, Metrics: core.Metrics{}.Set(core.MetricSharpeRatio, 1.2), Feasible: true},
		},
		Best: 1,
	}
}

func sinks(t *testing.T) map[string]Sink {
	t.Helper()

	bunt, err := NewBunt(":memory:")
	require.NoError(t, err)
	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		bunt.Close()
		sqlite.Close()
	})
	return map[string]Sink{DriverBunt: bunt, DriverSQLite: sqlite}
}

func jsonOf(t *testing.T, value any) string {
	t.Helper()
	content, err := json.Marshal(value)
	require.NoError(t, err)
	return string(content)
}

func TestSinkRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, sink := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			result, study := sampleResult(), sampleStudy()
			require.NoError(t, sink.SaveResult(ctx, "run-1", result))
			require.NoError(t, sink.SaveStudy(ctx, "study-1", study))

			loaded, err := sink.Result(ctx, "run-1")
			require.NoError(t, err)
			assert.JSONEq(t, jsonOf(t, result), jsonOf(t, loaded))
			assert.True(t, math.IsNaN(loaded.Folds[0].Metrics.SharpeRatio))
			assert.Equal(t, 10, loaded.Spec.Params.Int("fast_period", 0))

			loadedStudy, err := sink.Study(ctx, "study-1")
			require.NoError(t, err)
			assert.JSONEq(t, jsonOf(t, study), jsonOf(t, loadedStudy))
			best, ok := loadedStudy.BestTrial()
			require.True(t, ok)
			assert.Equal(t, 1.2, best.Metrics.SharpeRatio)
		})
	}
}

func TestSinkNotFound(t *testing.T) {
	ctx := context.Background()

	for name, sink := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			_, err := sink.Result(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			// ids are scoped per kind
			require.NoError(t, sink.SaveStudy(ctx, "shared", sampleStudy()))
			_, err = sink.Result(ctx, "shared")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.ErrorIs(t, sink.SaveResult(ctx, "", sampleResult()), core.ErrInvalidConfiguration)
		})
	}
}

func TestSinkReplaceAndList(t *testing.T) {
	ctx := context.Background()

	for name, sink := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			first := sampleResult()
			require.NoError(t, sink.SaveResult(ctx, "a", first))
			time.Sleep(time.Millisecond)
			require.NoError(t, sink.SaveResult(ctx, "b", sampleResult()))
			require.NoError(t, sink.SaveStudy(ctx, "s", sampleStudy()))

			ids, err := sink.List(ctx, KindResult)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids)

			ids, err = sink.List(ctx, KindStudy)
			require.NoError(t, err)
			assert.Equal(t, []string{"s"}, ids)

			replaced := sampleResult()
			replaced.Symbol = "ETHUSDT"
			require.NoError(t, sink.SaveResult(ctx, "a", replaced))

			loaded, err := sink.Result(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "ETHUSDT", loaded.Symbol)

			ids, err = sink.List(ctx, KindResult)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"a", "b"}, ids)
		})
	}
}

func TestOpenPersists(t *testing.T) {
	ctx := context.Background()

	for _, driver := range []string{DriverBunt, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "runs."+driver)

			sink, err := Open(driver, path)
			require.NoError(t, err)
			require.NoError(t, sink.SaveStudy(ctx, "study-1", sampleStudy()))
			require.NoError(t, sink.Close())

			sink, err = Open(driver, path)
			require.NoError(t, err)
			defer sink.Close()

			study, err := sink.Study(ctx, "study-1")
			require.NoError(t, err)
			assert.Len(t, study.Trials, 2)
			assert.Equal(t, "boom", study.Trials[0].Err)
		})
	}

	_, err := Open("postgres", "")
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}
