package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/raykavin/walkforward/internal/config"
	"github.com/raykavin/walkforward/pkg/backtest"
	"github.com/raykavin/walkforward/pkg/core"
	"github.com/raykavin/walkforward/pkg/feed"
	"github.com/raykavin/walkforward/pkg/logger"
	"github.com/raykavin/walkforward/pkg/logger/zerolog"
	"github.com/raykavin/walkforward/pkg/storage"
	"github.com/raykavin/walkforward/pkg/strategy"
)

type appDependencies struct {
	cfg      *config.Config
	log      logger.Logger
	provider core.DataProvider
	sink     storage.Sink // nil when storage is disabled
	runner   *backtest.Runner
}

func newAppDependencies(path string) (*appDependencies, error) {
	// a .env file in the working directory may hold WALKFORWARD_* overrides
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	log, err := zerolog.FromEnv()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(cfg, log)
	if err != nil {
		return nil, err
	}

	deps := &appDependencies{
		cfg:      cfg,
		log:      log,
		provider: provider,
		runner:   backtest.NewRunner(strategy.Default(), log),
	}

	if cfg.Storage.Path != "" {
		deps.sink, err = storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
	}

	return deps, nil
}

// newProvider builds the file provider wrapped with retries and an optional cache
func newProvider(cfg *config.Config, log logger.Logger) (core.DataProvider, error) {
	data := cfg.Data

	var base core.DataProvider
	switch data.Source {
	case "parquet":
		base = feed.NewParquet(data.Path)
	case "csv", "":
		csv, err := feed.NewCSV(data.Resample, feed.SymbolFile{
			Symbol:    cfg.Backtest.Symbol,
			File:      data.Path,
			Timeframe: data.Timeframe,
		})
		if err != nil {
			return nil, err
		}
		base = csv
	default:
		return nil, fmt.Errorf("%w: unknown data source %q", core.ErrInvalidConfiguration, data.Source)
	}

	var provider core.DataProvider = feed.NewRetry(base, data.Retries, log)
	if data.CacheExpiration > 0 {
		provider = feed.NewCached(provider, data.CacheExpiration, 2*data.CacheExpiration)
	}
	return provider, nil
}

func (d *appDependencies) Close() error {
	if d.sink == nil {
		return nil
	}
	return d.sink.Close()
}

// saveResult stores result under a new id. The write ignores cancellation of
// ctx so a run interrupted by a signal is still kept.
func (d *appDependencies) saveResult(ctx context.Context, result *core.BacktestResult) (string, error) {
	if d.sink == nil {
		return "", nil
	}
	id := runID(result.Spec.ID)
	return id, d.sink.SaveResult(context.WithoutCancel(ctx), id, result)
}

// saveStudy stores study under a new id, like saveResult
func (d *appDependencies) saveStudy(ctx context.Context, study *core.Study) (string, error) {
	if d.sink == nil {
		return "", nil
	}
	id := runID(string(study.Family))
	return id, d.sink.SaveStudy(context.WithoutCancel(ctx), id, study)
}

// runID names a stored record after its subject and the current time. The
// random suffix keeps runs started within the same second apart.
func runID(subject string) string {
	return fmt.Sprintf("%s-%s-%s", subject, time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
}

// fatal reports whether err should fail the command. Run-level outcomes that
// still carry a full result are reported but not fatal.
func fatal(err error) bool {
	return err != nil && !errors.Is(err, core.ErrNoValidFolds) && !errors.Is(err, core.ErrNoFeasibleTrial)
}
