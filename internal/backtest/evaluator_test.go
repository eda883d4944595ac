package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/strategylab/internal/core"
	"github.com/newthinker/strategylab/internal/series"
)

// augmented builds a frame with the given position and returns columns. A nil
// slice leaves the column out.
func augmented(t *testing.T, position, returns []float64) *series.Frame {
	t.Helper()
	n := len(position)
	if returns != nil {
		n = len(returns)
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	index := make([]time.Time, n)
	for i := range index {
		index[i] = base.AddDate(0, 0, i)
	}
	f, err := series.New(index)
	require.NoError(t, err)
	if position != nil {
		require.NoError(t, f.Set(series.ColPosition, position))
	}
	if returns != nil {
		require.NoError(t, f.Set(series.ColReturns, returns))
	}
	return f
}

func TestEvaluate_EquityCurve(t *testing.T) {
	f := augmented(t, []float64{1, 1, 1}, []float64{0.01, -0.02, 0.03})

	res, err := Evaluate(f, DefaultConfig())
	require.NoError(t, err)

	want := []float64{1010.0, 989.8, 1019.494}
	require.Len(t, res.Equity, len(want))
	for i := range want {
		assert.InDelta(t, want[i], res.Equity[i], 1e-9, "equity[%d]", i)
	}
	assert.InDelta(t, 1019.494, res.Stats.FinalEquity, 1e-9)
	assert.InDelta(t, 19.494, res.Stats.TotalReturn, 1e-9)
	assert.Equal(t, 3, res.Stats.Periods)
}

func TestEvaluate_StrategyReturnIsProduct(t *testing.T) {
	f := augmented(t, []float64{1, -1, 0.5, 0}, []float64{0.02, 0.02, 0.04, 0.5})

	res, err := Evaluate(f, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, []float64{0.02, -0.02, 0.02, 0}, res.StrategyReturn)
}

func TestEvaluate_AllZero(t *testing.T) {
	f := augmented(t, []float64{0, 0, 0, 0}, []float64{0, 0, 0, 0})

	res, err := Evaluate(f, DefaultConfig())
	require.NoError(t, err)
	for _, e := range res.Equity {
		assert.Equal(t, 1000.0, e)
	}
	assert.Equal(t, 0.0, res.Stats.SharpeRatio)
	assert.Equal(t, 0.0, res.Stats.WinRate)
	assert.Equal(t, 0.0, res.Stats.TotalReturn)
}

func TestEvaluate_WinRate(t *testing.T) {
	f := augmented(t, []float64{1, 1, 1, 1}, []float64{0.01, -0.01, 0.0, 0.02})

	res, err := Evaluate(f, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 0.5, res.Stats.WinRate)
	assert.Equal(t, 2, res.Stats.WinningPeriods)
}

func TestEvaluate_ZeroVarianceSharpe(t *testing.T) {
	f := augmented(t, []float64{1, 1, 1}, []float64{0.01, 0.01, 0.01})

	res, err := Evaluate(f, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Stats.SharpeRatio)
}

func TestEvaluate_NaNCountsAsZero(t *testing.T) {
	nan := math.NaN()
	f := augmented(t, []float64{nan, 1, 1}, []float64{nan, nan, 0.1})

	res, err := Evaluate(f, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1}, res.Position)
	assert.Equal(t, []float64{0, 0, 0.1}, res.Returns)
	assert.Equal(t, 3, res.Len(), "leading NaN rows are kept, not truncated")
	assert.InDelta(t, 1100, res.Stats.FinalEquity, 1e-9)
}

func TestEvaluate_ContractViolation(t *testing.T) {
	tests := []struct {
		name      string
		position  []float64
		returns   []float64
		wantField string
	}{
		{"missing position", nil, []float64{0.1}, "position"},
		{"missing returns", []float64{1}, nil, "returns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := augmented(t, tt.position, tt.returns)
			require.NoError(t, f.Fill("signal", 1))

			_, err := Evaluate(f, DefaultConfig())
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrContractViolation))

			var coreErr *core.Error
			require.True(t, errors.As(err, &coreErr))
			assert.Equal(t, tt.wantField, coreErr.Field)
		})
	}
}

func TestEvaluate_ContractViolationBeforeEmpty(t *testing.T) {
	f, err := series.New(nil)
	require.NoError(t, err)

	_, err = Evaluate(f, DefaultConfig())
	assert.True(t, errors.Is(err, core.ErrContractViolation))
}

func TestEvaluate_EmptySeries(t *testing.T) {
	f := augmented(t, []float64{}, []float64{})

	_, err := Evaluate(f, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrEmptySeries))
}

func TestEvaluate_InfiniteReturns(t *testing.T) {
	f := augmented(t, []float64{1, 1}, []float64{math.Inf(1), 0})

	_, err := Evaluate(f, DefaultConfig())
	assert.True(t, errors.Is(err, core.ErrInvalidSeries))

	msg := core.UserMessage(err)
	assert.Contains(t, msg, "returns is infinite")
	assert.NotContains(t, msg, "timestamps")
	assert.NotContains(t, err.Error(), "strictly increasing")
}

func TestEvaluate_Idempotent(t *testing.T) {
	f := augmented(t, []float64{1, -1, 1, 0, 1}, []float64{0.013, -0.021, 0.007, 0.04, -0.002})

	first, err := Evaluate(f, DefaultConfig())
	require.NoError(t, err)
	second, err := Evaluate(f, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEvaluate_DoesNotModifyInput(t *testing.T) {
	nan := math.NaN()
	f := augmented(t, []float64{nan, 1}, []float64{0.1, 0.1})

	_, err := Evaluate(f, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, f.Missing(series.ColPosition))
}

func TestEvaluate_CustomCapital(t *testing.T) {
	f := augmented(t, []float64{1}, []float64{0.5})

	res, err := Evaluate(f, Config{InitialCapital: 10000})
	require.NoError(t, err)
	assert.Equal(t, 15000.0, res.Stats.FinalEquity)
	assert.Equal(t, DefaultAnnualizationFactor, res.Stats.AnnualizationFactor)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(augmented(t, []float64{1}, []float64{1})))
	assert.True(t, errors.Is(Validate(nil), core.ErrContractViolation))
}
