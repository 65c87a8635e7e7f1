package main

import (
	"os"

	"github.com/raykavin/walkforward/pkg/report"
	"github.com/spf13/cobra"
)

func buildBacktestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backtest",
		Short: "Backtest the configured strategy over cross-validation folds",
		RunE:  runBacktest,
	}
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	deps, err := newAppDependencies(configPath)
	if err != nil {
		return err
	}
	defer deps.Close()

	spec, err := deps.cfg.Spec()
	if err != nil {
		return err
	}
	runCfg, err := deps.cfg.BacktestConfig()
	if err != nil {
		return err
	}

	result, runErr := deps.runner.Run(cmd.Context(), spec, deps.provider, runCfg)
	if result == nil {
		return runErr
	}
	if runErr != nil {
		deps.log.WithError(runErr).Warn("backtest did not complete")
	}

	if err := report.WriteResult(os.Stdout, result); err != nil {
		return err
	}

	id, err := deps.saveResult(cmd.Context(), result)
	if err != nil {
		return err
	}
	if id != "" {
		deps.log.WithField("id", id).Info("backtest result saved")
	}

	if fatal(runErr) {
		return runErr
	}
	return nil
}
