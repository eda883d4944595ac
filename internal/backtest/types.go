package backtest

import (
	"time"
)

// Defaults used when a Config field is zero.
const (
	DefaultInitialCapital      = 1000.0
	DefaultAnnualizationFactor = 252.0
)

// Config parameterizes an evaluation.
type Config struct {
	InitialCapital      float64
	AnnualizationFactor float64 // periods per year used to annualize the Sharpe ratio
}

// DefaultConfig returns the daily-bar configuration with 1000 of capital.
func DefaultConfig() Config {
	return Config{
		InitialCapital:      DefaultInitialCapital,
		AnnualizationFactor: DefaultAnnualizationFactor,
	}
}

func (c Config) withDefaults() Config {
	if c.InitialCapital <= 0 {
		c.InitialCapital = DefaultInitialCapital
	}
	if c.AnnualizationFactor <= 0 {
		c.AnnualizationFactor = DefaultAnnualizationFactor
	}
	return c
}

// Result holds the complete evaluation output. All per-period slices share
// the length and order of Index.
type Result struct {
	Index          []time.Time
	Position       []float64
	Returns        []float64
	StrategyReturn []float64
	Equity         []float64
	Stats          Stats
}

// Stats holds performance statistics
type Stats struct {
	InitialCapital      float64
	FinalEquity         float64
	TotalReturn         float64 // FinalEquity - InitialCapital, in currency
	WinRate             float64 // fraction of periods with a positive strategy return
	SharpeRatio         float64 // annualized, risk-free rate 0
	MaxDrawdown         float64 // largest peak-to-trough decline as a fraction
	Periods             int
	WinningPeriods      int
	AnnualizationFactor float64
}

// Len returns the number of evaluated periods.
func (r *Result) Len() int {
	return len(r.Index)
}
