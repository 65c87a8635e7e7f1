package main

import (
	"errors"
	"os"

	"github.com/raykavin/walkforward/pkg/backtest"
	"github.com/raykavin/walkforward/pkg/core"
	"github.com/raykavin/walkforward/pkg/optimizer"
	"github.com/raykavin/walkforward/pkg/report"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func buildOptimizeCmd() *cobra.Command {
	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "Search the parameter space of the configured strategy family",
		RunE:  runOptimize,
	}

	optimizeCmd.Flags().IntVarP(&topN, "top", "n", 0, "Number of trials to print (default from config)")
	optimizeCmd.Flags().BoolVarP(&details, "details", "d", false, "Print every metric of the top trials")

	return optimizeCmd
}

func runOptimize(cmd *cobra.Command, _ []string) error {
	deps, err := newAppDependencies(configPath)
	if err != nil {
		return err
	}
	defer deps.Close()

	family, err := deps.cfg.Family()
	if err != nil {
		return err
	}
	runCfg, err := deps.cfg.BacktestConfig()
	if err != nil {
		return err
	}

	objective := backtest.NewObjective(deps.runner, family, deps.provider, runCfg)
	space, err := objective.Parameters()
	if err != nil {
		return err
	}

	optCfg, err := deps.cfg.OptimizerConfig(space)
	if err != nil {
		return err
	}

	progressBar := progressbar.Default(int64(optCfg.MaxIterations), "trials")
	optCfg.WithLogger(deps.log).WithTrialCallback(func(core.Trial) {
		_ = progressBar.Add(1)
	})

	opt, err := optimizer.New(optCfg)
	if err != nil {
		return err
	}

	study, optErr := opt.Optimize(cmd.Context(), family, objective)
	_ = progressBar.Finish()
	if study == nil {
		return optErr
	}
	if errors.Is(optErr, core.ErrNoFeasibleTrial) {
		deps.log.WithError(optErr).Warn("no trial satisfied the constraints")
	}

	if topN == 0 {
		topN = optCfg.TopN
	}
	if err := report.WriteStudy(os.Stdout, study, topN); err != nil {
		return err
	}
	if details {
		optimizer.PrintStudy(os.Stdout, study, topN)
	}

	if path := deps.cfg.Optimizer.Output; path != "" {
		if err := optimizer.SaveStudyToCSV(study, path); err != nil {
			return err
		}
		deps.log.WithField("path", path).Info("study exported")
	}

	id, err := deps.saveStudy(cmd.Context(), study)
	if err != nil {
		return err
	}
	if id != "" {
		deps.log.WithField("id", id).Info("study saved")
	}

	if fatal(optErr) {
		return optErr
	}
	return nil
}
