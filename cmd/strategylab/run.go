package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/strategylab/internal/config"
)

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run <strategy.star>",
	Short: "Backtest a strategy file",
	Long: `Load a Starlark strategy, run it against the configured price series and
print the performance statistics. The strategy must set the "position" and
"returns" columns, either on df directly or from apply_strategy(df).`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runOpts.register(runCmd)
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	a, log, err := newApp(func(cfg *config.Config) { runOpts.apply(cmd, cfg) })
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	out, err := a.BacktestFile(cmd.Context(), args[0], runOpts.request())
	if err != nil {
		log.Debug("backtest failed", zap.String("path", args[0]), zap.Error(err))
		return err
	}
	return printOutcome(cmd.OutOrStdout(), out, runOpts.asJSON, runOpts.series)
}
