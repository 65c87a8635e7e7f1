package main

import (
	"fmt"
	"os"

	"github.com/raykavin/walkforward/pkg/report"
	"github.com/raykavin/walkforward/pkg/split"
	"github.com/spf13/cobra"
)

func buildFoldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "folds",
		Short: "Print the train/test layout of the configured split",
		RunE:  runFolds,
	}
}

func runFolds(cmd *cobra.Command, _ []string) error {
	deps, err := newAppDependencies(configPath)
	if err != nil {
		return err
	}
	defer deps.Close()

	runCfg, err := deps.cfg.BacktestConfig()
	if err != nil {
		return err
	}

	bars, err := deps.provider.Bars(cmd.Context(), runCfg.Symbol, runCfg.From, runCfg.To)
	if err != nil {
		return err
	}

	folds, err := split.Split(len(bars), runCfg.Split)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s: %d bars, %d folds (%s)\n", runCfg.Symbol, len(bars), len(folds), runCfg.Split.Mode)
	report.WriteFolds(os.Stdout, split.Bind(folds, bars))
	return nil
}
