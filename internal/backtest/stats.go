package backtest

import (
	"math"

	"github.com/newthinker/strategylab/internal/indicator"
)

// CalculateStats computes performance statistics from per-period strategy
// returns and the equity curve they produced.
func CalculateStats(strategyReturns, equity []float64, cfg Config) Stats {
	cfg = cfg.withDefaults()
	stats := Stats{
		InitialCapital:      cfg.InitialCapital,
		FinalEquity:         cfg.InitialCapital,
		Periods:             len(strategyReturns),
		AnnualizationFactor: cfg.AnnualizationFactor,
	}
	if len(strategyReturns) == 0 {
		return stats
	}

	for _, r := range strategyReturns {
		if r > 0 {
			stats.WinningPeriods++
		}
	}

	if len(equity) > 0 {
		stats.FinalEquity = equity[len(equity)-1]
	}
	stats.TotalReturn = stats.FinalEquity - cfg.InitialCapital
	stats.WinRate = float64(stats.WinningPeriods) / float64(len(strategyReturns))
	stats.SharpeRatio = calculateSharpeRatio(strategyReturns, cfg.AnnualizationFactor)
	stats.MaxDrawdown = calculateMaxDrawdown(strategyReturns)
	return stats
}

// calculateMaxDrawdown finds the largest peak-to-trough decline of the
// compounded returns, measured from the starting capital onwards.
func calculateMaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	var maxDD float64
	peak := 1.0
	cumulative := 1.0

	for _, r := range returns {
		cumulative *= (1 + r)
		if cumulative > peak {
			peak = cumulative
		}
		if peak > 0 {
			dd := (peak - cumulative) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// calculateSharpeRatio computes mean/stddev*sqrt(factor) with the sample
// standard deviation. Assumes a risk-free rate of 0.
func calculateSharpeRatio(returns []float64, factor float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean := indicator.Mean(returns)
	stdDev := indicator.StdDev(returns)
	if stdDev == 0 || math.IsNaN(stdDev) {
		return 0
	}

	return mean / stdDev * math.Sqrt(factor)
}
