// Package indicator provides index-aligned series transforms. Every function
// returns a slice the same length as its input; positions without enough
// history are NaN, and any NaN inside a window makes that window NaN.
package indicator

import "math"

// SMA calculates the Simple Moving Average over window periods.
func SMA(values []float64, window int) []float64 {
	result := nanSlice(len(values))
	if window < 1 {
		return result
	}

	var sum float64
	var nans int
	for i, v := range values {
		if math.IsNaN(v) {
			nans++
		} else {
			sum += v
		}
		if i >= window {
			old := values[i-window]
			if math.IsNaN(old) {
				nans--
			} else {
				sum -= old
			}
		}
		if i >= window-1 && nans == 0 {
			result[i] = sum / float64(window)
		}
	}
	return result
}

// RollingSum sums each window.
func RollingSum(values []float64, window int) []float64 {
	return rolling(values, window, func(win []float64) float64 {
		var sum float64
		for _, v := range win {
			sum += v
		}
		return sum
	})
}

// RollingMin returns the minimum of each window.
func RollingMin(values []float64, window int) []float64 {
	return rolling(values, window, func(win []float64) float64 {
		m := win[0]
		for _, v := range win[1:] {
			m = math.Min(m, v)
		}
		return m
	})
}

// RollingMax returns the maximum of each window.
func RollingMax(values []float64, window int) []float64 {
	return rolling(values, window, func(win []float64) float64 {
		m := win[0]
		for _, v := range win[1:] {
			m = math.Max(m, v)
		}
		return m
	})
}

// RollingStd returns the sample standard deviation (n-1) of each window.
// A window of one period yields NaN.
func RollingStd(values []float64, window int) []float64 {
	return rolling(values, window, func(win []float64) float64 {
		return StdDev(win)
	})
}

// EMA calculates the Exponential Moving Average, seeded with the SMA of the
// first full window. NaN inputs produce NaN and leave the average unchanged.
func EMA(values []float64, period int) []float64 {
	result := nanSlice(len(values))
	if period < 1 {
		return result
	}

	seed := SMA(values, period)
	multiplier := 2.0 / float64(period+1)

	start := -1
	for i, v := range seed {
		if !math.IsNaN(v) {
			start = i
			break
		}
	}
	if start < 0 {
		return result
	}

	ema := seed[start]
	result[start] = ema
	for i := start + 1; i < len(values); i++ {
		if math.IsNaN(values[i]) {
			continue
		}
		ema = (values[i]-ema)*multiplier + ema
		result[i] = ema
	}
	return result
}

// Shift moves values forward by n periods (backward for negative n),
// filling the vacated positions with NaN.
func Shift(values []float64, n int) []float64 {
	result := nanSlice(len(values))
	for i := range values {
		j := i - n
		if j >= 0 && j < len(values) {
			result[i] = values[j]
		}
	}
	return result
}

// PctChange returns values[i]/values[i-n] - 1.
func PctChange(values []float64, n int) []float64 {
	prev := Shift(values, n)
	result := make([]float64, len(values))
	for i, v := range values {
		result[i] = v/prev[i] - 1
	}
	return result
}

// Diff returns values[i] - values[i-n].
func Diff(values []float64, n int) []float64 {
	prev := Shift(values, n)
	result := make([]float64, len(values))
	for i, v := range values {
		result[i] = v - prev[i]
	}
	return result
}

// CumSum returns running totals. NaN cells stay NaN and are skipped.
func CumSum(values []float64) []float64 {
	result := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		if math.IsNaN(v) {
			result[i] = v
			continue
		}
		sum += v
		result[i] = sum
	}
	return result
}

// Mean averages the non-NaN values; NaN when there are none.
func Mean(values []float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// StdDev is the sample standard deviation of the non-NaN values.
func StdDev(values []float64) float64 {
	mean := Mean(values)
	var variance float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		variance += (v - mean) * (v - mean)
		n++
	}
	if n < 2 {
		return math.NaN()
	}
	return math.Sqrt(variance / float64(n-1))
}

func rolling(values []float64, window int, fn func(win []float64) float64) []float64 {
	result := nanSlice(len(values))
	if window < 1 {
		return result
	}
	for i := window - 1; i < len(values); i++ {
		win := values[i-window+1 : i+1]
		if hasNaN(win) {
			continue
		}
		result[i] = fn(win)
	}
	return result
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func nanSlice(n int) []float64 {
	result := make([]float64, n)
	for i := range result {
		result[i] = math.NaN()
	}
	return result
}
