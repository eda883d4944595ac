package backtest

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Report is the presentation form of a Result: currency rounded to 2 places,
// ratios to 4.
type Report struct {
	Symbol         string  `json:"symbol,omitempty"`
	Interval       string  `json:"interval,omitempty"`
	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_equity"`
	TotalReturn    float64 `json:"total_return"`
	WinRate        float64 `json:"win_rate"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	Periods        int     `json:"periods"`
	WinningPeriods int     `json:"winning_periods"`
	Series         []Point `json:"series,omitempty"`
}

// Point is one period of the evaluated series.
type Point struct {
	Time           time.Time `json:"time"`
	Position       float64   `json:"position"`
	Returns        float64   `json:"returns"`
	StrategyReturn float64   `json:"strategy_return"`
	Equity         float64   `json:"equity"`
}

const (
	currencyPlaces = 2
	ratioPlaces    = 4
)

// Report rounds the result for display. The Result itself is unchanged.
func (r *Result) Report() Report {
	s := r.Stats
	rep := Report{
		InitialCapital: round(s.InitialCapital, currencyPlaces),
		FinalEquity:    round(s.FinalEquity, currencyPlaces),
		TotalReturn:    round(s.TotalReturn, currencyPlaces),
		WinRate:        round(s.WinRate, ratioPlaces),
		SharpeRatio:    round(s.SharpeRatio, ratioPlaces),
		MaxDrawdown:    round(s.MaxDrawdown, ratioPlaces),
		Periods:        s.Periods,
		WinningPeriods: s.WinningPeriods,
		Series:         make([]Point, r.Len()),
	}
	for i := range rep.Series {
		rep.Series[i] = Point{
			Time:           r.Index[i],
			Position:       round(r.Position[i], ratioPlaces),
			Returns:        round(r.Returns[i], ratioPlaces),
			StrategyReturn: round(r.StrategyReturn[i], ratioPlaces),
			Equity:         round(r.Equity[i], currencyPlaces),
		}
	}
	return rep
}

// Summary returns the report without per-period points.
func (r *Result) Summary() Report {
	rep := r.Report()
	rep.Series = nil
	return rep
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
