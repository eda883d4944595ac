package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/strategylab/internal/app"
	"github.com/newthinker/strategylab/internal/config"
	"github.com/newthinker/strategylab/internal/core"
)

var (
	strategyOwner string
	strategyOpts  runFlags
	runAllOpts    runFlags
)

var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "Manage saved strategies",
	Long: `Save strategies under an owner and run them later. Records persist only
with storage.records.type set to sqlite.`,
}

var strategyAddCmd = &cobra.Command{
	Use:   "add <name> <strategy.star>",
	Short: "Validate and save a strategy file",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(nil, func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		rec, err := a.AddStrategyFile(ctx, strategyOwner, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s as %s\n", rec.Name, rec.ID)
		return nil
	}),
}

var strategyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved strategies",
	Args:  cobra.NoArgs,
	RunE: withApp(nil, func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		recs, err := a.ListStrategies(ctx, strategyOwner)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no strategies for %s\n", strategyOwner)
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tUPDATED\tFEEDBACK")
		for _, rec := range recs {
			fb := "-"
			if rec.Feedback != "" {
				fb = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.ID, rec.Name, rec.UpdatedAt.Format("2006-01-02 15:04"), fb)
		}
		return tw.Flush()
	}),
}

var strategyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved strategy and its last feedback",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(nil, func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		rec, err := a.GetStrategy(ctx, strategyOwner, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n\n%s\n", rec.Name, rec.ID, rec.Source)
		if rec.Feedback != "" {
			fmt.Fprintf(out, "\n=== Feedback ===\n%s\n", rec.Feedback)
		}
		return nil
	}),
}

var strategyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved strategy",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(nil, func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		if err := a.DeleteStrategy(ctx, strategyOwner, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	}),
}

var strategyRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Backtest a saved strategy",
	Args:  cobra.ExactArgs(1),
}

var strategyRunAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Backtest every saved strategy of the owner on one price series",
	Args:  cobra.NoArgs,
}

func init() {
	strategyCmd.PersistentFlags().StringVar(&strategyOwner, "owner", os.Getenv("USER"), "owner of the strategies")

	strategyRunCmd.RunE = withApp(&strategyOpts, func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		out, err := a.RunStrategy(ctx, strategyOwner, args[0], strategyOpts.request())
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), out, strategyOpts.asJSON, strategyOpts.series)
	})
	strategyOpts.register(strategyRunCmd)

	strategyRunAllCmd.RunE = withApp(&runAllOpts, runAll)
	runAllOpts.register(strategyRunAllCmd)

	strategyCmd.AddCommand(strategyAddCmd, strategyListCmd, strategyShowCmd,
		strategyDeleteCmd, strategyRunCmd, strategyRunAllCmd)
	rootCmd.AddCommand(strategyCmd)
}

func runAll(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
	results, err := a.RunOwner(ctx, strategyOwner, runAllOpts.request())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintf(out, "no strategies for %s\n", strategyOwner)
		return nil
	}

	failed := 0
	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "### %s (%s)\n", res.Strategy.Name, res.Strategy.ID)
		if res.Err != nil {
			failed++
			fmt.Fprintln(out, core.UserMessage(res.Err))
			continue
		}
		if err := printOutcome(out, res.Outcome, runAllOpts.asJSON, runAllOpts.series); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d strategies failed", failed, len(results))
	}
	return nil
}

type appFunc func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error

// withApp builds the app for one command invocation, applying flags when
// the command takes run overrides.
func withApp(flags *runFlags, fn appFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(strategyOwner) == "" {
			return core.WrapError(core.ErrConfigMissing, errors.New("--owner is required when $USER is unset"))
		}
		a, log, err := newApp(func(cfg *config.Config) {
			if flags != nil {
				flags.apply(cmd, cfg)
			}
		})
		if err != nil {
			return err
		}
		defer log.Sync()
		defer a.Close()

		if a.Config().Storage.Records.Type == "memory" {
			log.Warn("strategy records are kept in memory and will not persist")
		}
		if err := fn(cmd.Context(), cmd, a, args); err != nil {
			log.Debug("strategy command failed", zap.String("command", cmd.Name()), zap.Error(err))
			return err
		}
		return nil
	}
}
