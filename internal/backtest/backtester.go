package backtest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/strategylab/internal/core"
	"github.com/newthinker/strategylab/internal/series"
)

// OHLCVProvider defines the interface for fetching historical OHLCV data
type OHLCVProvider interface {
	FetchHistory(ctx context.Context, symbol, period, interval string) ([]core.OHLCV, error)
}

// StrategyRunner executes strategy source against a price series and returns
// the augmented series.
type StrategyRunner interface {
	Run(ctx context.Context, source string, input *series.Frame) (*series.Frame, error)
}

// Request describes one backtest.
type Request struct {
	Symbol   string
	Period   string // lookback, e.g. "1y", "6mo"
	Interval string // bar size, e.g. "1d"
	Source   string
}

// Outcome is a finished backtest together with what it was run against.
type Outcome struct {
	Symbol   string
	Period   string
	Interval string
	Start    time.Time
	End      time.Time
	Result   *Result
}

// Report returns the rounded report labelled with the symbol and interval.
func (o *Outcome) Report() Report {
	rep := o.Result.Report()
	rep.Symbol = o.Symbol
	rep.Interval = o.Interval
	return rep
}

// Backtester fetches a price series, runs a strategy over it and evaluates
// the result.
type Backtester struct {
	provider OHLCVProvider
	runner   StrategyRunner
	cfg      Config
	logger   *zap.Logger
}

// New creates a new Backtester
func New(provider OHLCVProvider, runner StrategyRunner, cfg Config, logger ...*zap.Logger) *Backtester {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Backtester{
		provider: provider,
		runner:   runner,
		cfg:      cfg.withDefaults(),
		logger:   l,
	}
}

// Config returns the evaluation config in effect.
func (b *Backtester) Config() Config {
	return b.cfg
}

// Series fetches bars and builds the price series. Invalid bars are dropped.
func (b *Backtester) Series(ctx context.Context, symbol, period, interval string) (*series.Frame, error) {
	bars, err := b.provider.FetchHistory(ctx, symbol, period, interval)
	if err != nil {
		if core.Code(err) != "" {
			return nil, err
		}
		return nil, core.WrapError(core.ErrDataUnavailable, err)
	}

	valid := bars[:0:0]
	for _, bar := range bars {
		if bar.IsValid() {
			valid = append(valid, bar)
		}
	}
	if dropped := len(bars) - len(valid); dropped > 0 {
		b.logger.Warn("dropped invalid bars",
			zap.String("symbol", symbol),
			zap.Int("dropped", dropped),
		)
	}
	if len(valid) == 0 {
		return nil, core.WrapError(core.ErrEmptySeries, fmt.Errorf("no bars for %s (%s, %s)", symbol, period, interval))
	}

	return series.FromBars(valid)
}

// Evaluate runs source against a copy of prices and evaluates the output.
func (b *Backtester) Evaluate(ctx context.Context, source string, prices *series.Frame) (*Result, error) {
	augmented, err := b.runner.Run(ctx, source, prices)
	if err != nil {
		return nil, err
	}
	return Evaluate(augmented, b.cfg)
}

// Run executes a complete backtest for req.
func (b *Backtester) Run(ctx context.Context, req Request) (*Outcome, error) {
	b.warnInterval(req.Interval)

	prices, err := b.Series(ctx, req.Symbol, req.Period, req.Interval)
	if err != nil {
		return nil, err
	}
	return b.RunOn(ctx, req, prices)
}

// RunOn evaluates req.Source against prices that were already fetched.
// prices is only read, so one series may back concurrent calls.
func (b *Backtester) RunOn(ctx context.Context, req Request, prices *series.Frame) (*Outcome, error) {
	result, err := b.Evaluate(ctx, req.Source, prices)
	if err != nil {
		return nil, err
	}

	b.logger.Info("backtest complete",
		zap.String("symbol", req.Symbol),
		zap.Int("periods", result.Stats.Periods),
		zap.Float64("final_equity", result.Stats.FinalEquity),
	)

	return &Outcome{
		Symbol:   req.Symbol,
		Period:   req.Period,
		Interval: req.Interval,
		Start:    prices.Time(0),
		End:      prices.Time(prices.Len() - 1),
		Result:   result,
	}, nil
}

func (b *Backtester) warnInterval(interval string) {
	if interval != "1d" && b.cfg.AnnualizationFactor == DefaultAnnualizationFactor {
		b.logger.Warn("annualizing non-daily bars with the daily factor",
			zap.String("interval", interval),
			zap.Float64("factor", b.cfg.AnnualizationFactor),
		)
	}
}
