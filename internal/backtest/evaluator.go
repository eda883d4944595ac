package backtest

import (
	"fmt"
	"math"

	"github.com/newthinker/strategylab/internal/core"
	"github.com/newthinker/strategylab/internal/series"
)

// Evaluate turns an augmented series into an equity curve and statistics.
// Missing position or returns cells count as 0. Evaluate does not modify f
// and returns identical results for identical input.
func Evaluate(f *series.Frame, cfg Config) (*Result, error) {
	if err := Validate(f); err != nil {
		return nil, err
	}
	if f.Len() == 0 {
		return nil, core.ErrEmptySeries
	}
	cfg = cfg.withDefaults()

	position, err := finiteColumn(f, series.ColPosition)
	if err != nil {
		return nil, err
	}
	returns, err := finiteColumn(f, series.ColReturns)
	if err != nil {
		return nil, err
	}

	n := f.Len()
	strategyReturn := make([]float64, n)
	equity := make([]float64, n)
	growth := 1.0
	for i := 0; i < n; i++ {
		strategyReturn[i] = position[i] * returns[i]
		growth *= 1 + strategyReturn[i]
		equity[i] = cfg.InitialCapital * growth
	}

	return &Result{
		Index:          f.Index(),
		Position:       position,
		Returns:        returns,
		StrategyReturn: strategyReturn,
		Equity:         equity,
		Stats:          CalculateStats(strategyReturn, equity, cfg),
	}, nil
}

// finiteColumn reads a required column with NaN replaced by 0. Infinite
// values cannot be compounded and are rejected.
func finiteColumn(f *series.Frame, name string) ([]float64, error) {
	values, _ := f.Column(name)
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			values[i] = 0
		case math.IsInf(v, 0):
			return nil, core.WrapError(core.ErrInvalidSeries,
				fmt.Errorf("%s is infinite at %s; check for division by zero", name, f.Time(i).Format("2006-01-02 15:04:05")))
		}
	}
	return values, nil
}
