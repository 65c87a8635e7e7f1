package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/raykavin/walkforward/pkg/logger"
	"github.com/raykavin/walkforward/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAfterInterrupt(t *testing.T) {
	sink, err := storage.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	deps := &appDependencies{log: logger.Nop(), sink: sink}
	defer deps.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	study := &core.Study{
		Family:    core.FamilyMomentum,
		Objective: core.MetricSharpeRatio,
		Maximize:  true,
		Budget:    10,
		Best:      -1,
		Stopped:   "canceled",
	}
	id, err := deps.saveStudy(ctx, study)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "momentum-"))

	stored, err := sink.Study(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.FamilyMomentum, stored.Family)
	assert.Equal(t, "canceled", stored.Stopped)

	result := &core.BacktestResult{
		Spec:      core.NewStrategySpec("trend", core.FamilyTrendFollowing, nil),
		Aggregate: core.Aggregate{Mean: core.UndefinedMetrics(), Median: core.UndefinedMetrics(), StdDev: core.UndefinedMetrics()},
		State:     core.StateFailed,
	}
	id, err = deps.saveResult(ctx, result)
	require.NoError(t, err)

	loaded, err := sink.Result(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.StateFailed, loaded.State)
}

func TestSaveWithoutSink(t *testing.T) {
	deps := &appDependencies{log: logger.Nop()}

	id, err := deps.saveStudy(context.Background(), &core.Study{Family: core.FamilyHybrid})
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.NoError(t, deps.Close())
}
