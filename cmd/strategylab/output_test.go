package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/strategylab/internal/app"
	"github.com/newthinker/strategylab/internal/backtest"
)

func sampleOutcome() *app.Outcome {
	return &app.Outcome{
		Report: backtest.Report{
			Symbol:         "BTC-USD",
			Interval:       "1d",
			InitialCapital: 1000,
			FinalEquity:    1210,
			TotalReturn:    210,
			WinRate:        0.6667,
			SharpeRatio:    1.2345,
			MaxDrawdown:    0.05,
			Periods:        3,
			Series: []backtest.Point{
				{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Position: 1, Equity: 1000},
			},
		},
		Feedback:   "Looks fine.",
		ExportPath: "exports/BTC-USD/x.parquet",
	}
}

func TestPrintOutcome_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printOutcome(&buf, sampleOutcome(), false, false))

	out := buf.String()
	assert.Contains(t, out, "=== Backtest: BTC-USD (1d) ===")
	assert.Contains(t, out, "$1210.00")
	assert.Contains(t, out, "66.67%")
	assert.Contains(t, out, "1.2345")
	assert.Contains(t, out, "5.00%")
	assert.Contains(t, out, "exports/BTC-USD/x.parquet")
	assert.Contains(t, out, "Looks fine.")
	assert.NotContains(t, out, "2024-01-01")
}

func TestPrintOutcome_TextWithSeries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printOutcome(&buf, sampleOutcome(), false, true))
	assert.Contains(t, buf.String(), "2024-01-01 00:00")
}

func TestPrintOutcome_JSON(t *testing.T) {
	out := sampleOutcome()
	var buf bytes.Buffer
	require.NoError(t, printOutcome(&buf, out, true, false))

	var got app.Outcome
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 1210.0, got.Report.FinalEquity)
	assert.Empty(t, got.Report.Series)
	// the caller's outcome keeps its series
	assert.Len(t, out.Report.Series, 1)
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.True(t, strings.HasPrefix(buf.String(), "StrategyLab dev"))
}
