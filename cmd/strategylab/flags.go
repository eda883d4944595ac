package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/newthinker/strategylab/internal/app"
	"github.com/newthinker/strategylab/internal/config"
)

// runFlags are the per-run overrides shared by every command that runs a
// backtest.
type runFlags struct {
	provider string
	symbol   string
	period   string
	interval string
	capital  float64
	form     string
	entry    string
	timeout  time.Duration
	maxSteps uint64
	feedback bool
	export   bool
	asJSON   bool
	series   bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.provider, "provider", "", "data provider (yahoo, alpaca, binance)")
	fs.StringVarP(&f.symbol, "symbol", "s", "", "symbol to backtest")
	fs.StringVar(&f.period, "period", "", "lookback period, e.g. 6mo, 1y, max")
	fs.StringVar(&f.interval, "interval", "", "bar interval, e.g. 1h, 1d")
	fs.Float64Var(&f.capital, "capital", 0, "initial capital")
	fs.StringVar(&f.form, "form", "", "strategy form (auto, script, function)")
	fs.StringVar(&f.entry, "entry", "", "entry point in function form")
	fs.DurationVar(&f.timeout, "timeout", 0, "strategy execution timeout")
	fs.Uint64Var(&f.maxSteps, "max-steps", 0, "strategy execution step budget")
	fs.BoolVar(&f.feedback, "feedback", false, "request LLM feedback on the strategy")
	fs.BoolVar(&f.export, "export", false, "export the equity curve as Parquet")
	fs.BoolVar(&f.asJSON, "json", false, "print the result as JSON")
	fs.BoolVar(&f.series, "series", false, "include per-period values in the output")
}

// apply copies explicitly set flags over cfg.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("provider") {
		cfg.Data.Provider = f.provider
	}
	if fs.Changed("capital") {
		cfg.Backtest.InitialCapital = f.capital
	}
	if fs.Changed("form") {
		cfg.Plugin.Form = f.form
	}
	if fs.Changed("entry") {
		cfg.Plugin.EntryPoint = f.entry
	}
	if fs.Changed("timeout") {
		cfg.Plugin.Timeout = f.timeout
	}
	if fs.Changed("max-steps") {
		cfg.Plugin.MaxSteps = f.maxSteps
	}
}

func (f *runFlags) request() app.Request {
	return app.Request{
		Symbol:   f.symbol,
		Period:   f.period,
		Interval: f.interval,
		Feedback: f.feedback,
		Export:   f.export,
	}
}
