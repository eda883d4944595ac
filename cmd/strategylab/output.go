package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/newthinker/strategylab/internal/app"
	"github.com/newthinker/strategylab/internal/backtest"
)

// printOutcome writes out as text or JSON. Per-period values are dropped
// unless withSeries is set.
func printOutcome(w io.Writer, out *app.Outcome, asJSON, withSeries bool) error {
	view := *out
	if !withSeries {
		view.Report.Series = nil
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	printReport(w, view.Report)
	if view.ExportPath != "" {
		fmt.Fprintf(w, "\nEquity curve exported to %s\n", view.ExportPath)
	}
	if view.Feedback != "" {
		fmt.Fprintf(w, "\n=== Feedback ===\n%s\n", view.Feedback)
	}
	return nil
}

func printReport(w io.Writer, rep backtest.Report) {
	fmt.Fprintf(w, "=== Backtest: %s (%s) ===\n", rep.Symbol, rep.Interval)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Periods:\t%d\n", rep.Periods)
	fmt.Fprintf(tw, "Initial Capital:\t$%.2f\n", rep.InitialCapital)
	fmt.Fprintf(tw, "Final Equity:\t$%.2f\n", rep.FinalEquity)
	fmt.Fprintf(tw, "Total Return:\t$%.2f\n", rep.TotalReturn)
	fmt.Fprintf(tw, "Win Rate:\t%.2f%%\n", rep.WinRate*100)
	fmt.Fprintf(tw, "Sharpe Ratio:\t%.4f\n", rep.SharpeRatio)
	fmt.Fprintf(tw, "Max Drawdown:\t%.2f%%\n", rep.MaxDrawdown*100)
	tw.Flush()

	if len(rep.Series) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Time\tPosition\tReturns\tStrategy\tEquity\t")
	for _, p := range rep.Series {
		fmt.Fprintf(tw, "%s\t%.2f\t%.4f\t%.4f\t%.2f\t\n",
			p.Time.Format("2006-01-02 15:04"), p.Position, p.Returns, p.StrategyReturn, p.Equity)
	}
	tw.Flush()
}
