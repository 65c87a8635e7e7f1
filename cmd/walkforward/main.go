package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// DefaultConfigPath is read when --config is not given
const DefaultConfigPath = "./walkforward.yaml"

// Command line flags
var (
	configPath string
	topN       int
	details    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "walkforward",
		Short:        "Purged cross-validation backtests and parameter optimization",
		Version:      "1.0.0",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", DefaultConfigPath, "Configuration file (e.g. ./walkforward.yaml)")

	rootCmd.AddCommand(buildBacktestCmd())
	rootCmd.AddCommand(buildOptimizeCmd())
	rootCmd.AddCommand(buildFoldsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
