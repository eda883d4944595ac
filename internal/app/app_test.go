package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/strategylab/internal/collector"
	"github.com/newthinker/strategylab/internal/config"
	"github.com/newthinker/strategylab/internal/core"
	"github.com/newthinker/strategylab/internal/feedback"
	"github.com/newthinker/strategylab/internal/llm"
	"github.com/newthinker/strategylab/internal/report"
	"github.com/newthinker/strategylab/internal/storage/archive"
)

type mockProvider struct {
	name    string
	history []core.OHLCV
	err     error

	mu    sync.Mutex
	calls int
}

func (m *mockProvider) Name() string                  { return m.name }
func (m *mockProvider) Init(cfg collector.Config) error { return nil }
func (m *mockProvider) FetchHistory(ctx context.Context, symbol, period, interval string) ([]core.OHLCV, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.history, m.err
}

type mockLLM struct {
	reply string
}

func (m *mockLLM) Name() string { return "mock" }
func (m *mockLLM) Complete(ctx context.Context, p llm.Prompt) (*llm.Completion, error) {
	return &llm.Completion{Text: m.reply}, nil
}

func bars(closes ...float64) []core.OHLCV {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]core.OHLCV, len(closes))
	for i, c := range closes {
		out[i] = core.OHLCV{Symbol: "BTC-USD", Open: c, High: c, Low: c, Close: c, Volume: 1, Time: base.AddDate(0, 0, i)}
	}
	return out
}

const buyAndHold = `
def apply_strategy(df):
    df["position"] = 1
    df["returns"] = df["close"].pct_change()
    return df
`

const flat = `
df["position"] = 0
df["returns"] = df["close"].pct_change()
`

func newTestApp(t *testing.T, provider *mockProvider, opts ...Option) (*App, archive.Storage) {
	t.Helper()
	storage, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	cfg := config.Defaults()
	opts = append([]Option{WithProvider(provider), WithArchive(storage)}, opts...)
	a, err := New(cfg, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, storage
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := config.Defaults()
	cfg.Data.Provider = "bloomberg"
	_, err := New(cfg, nil)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid), "got %v", err)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.Port = 0
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestNew_SelectedProviderMustInit(t *testing.T) {
	cfg := config.Defaults()
	cfg.Data.Provider = "alpaca" // no credentials configured
	_, err := New(cfg, nil)
	assert.True(t, errors.Is(err, core.ErrConfigMissing), "got %v", err)
}

func TestNew_RegistersBuiltins(t *testing.T) {
	a, _ := newTestApp(t, &mockProvider{name: "yahoo"})
	names := a.Providers().Names()
	assert.Contains(t, names, "yahoo")
	assert.Contains(t, names, "binance")
	assert.NotContains(t, names, "alpaca")
}

func TestBacktest(t *testing.T) {
	a, _ := newTestApp(t, &mockProvider{name: "yahoo", history: bars(100, 110, 121)})

	out, err := a.Backtest(context.Background(), Request{Source: buyAndHold})
	require.NoError(t, err)

	assert.Equal(t, "BTC-USD", out.Report.Symbol)
	assert.Equal(t, "1d", out.Report.Interval)
	assert.Equal(t, 1210.0, out.Report.FinalEquity)
	assert.Equal(t, 210.0, out.Report.TotalReturn)
	assert.Len(t, out.Report.Series, 3)
	assert.Empty(t, out.Feedback)
	assert.Empty(t, out.ExportPath)
}

func TestBacktest_FeedbackSkippedWithoutProvider(t *testing.T) {
	a, _ := newTestApp(t, &mockProvider{name: "yahoo", history: bars(1, 2)})

	out, err := a.Backtest(context.Background(), Request{Source: buyAndHold, Feedback: true})
	require.NoError(t, err)
	assert.Equal(t, feedback.SkippedMessage, out.Feedback)
}

func TestBacktest_FeedbackAndExport(t *testing.T) {
	a, storage := newTestApp(t, &mockProvider{name: "yahoo", history: bars(1, 2, 3)}, WithLLM(&mockLLM{reply: "Solid."}))

	out, err := a.Backtest(context.Background(), Request{Source: buyAndHold, Feedback: true, Export: true})
	require.NoError(t, err)
	assert.Equal(t, "Solid.", out.Feedback)
	require.NotEmpty(t, out.ExportPath)

	data, err := storage.Read(context.Background(), out.ExportPath)
	require.NoError(t, err)
	rows, err := report.Decode(data)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestBacktest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		provider *mockProvider
		source   string
		want     *core.Error
	}{
		{"provider failure", &mockProvider{name: "yahoo", err: errors.New("timeout")}, buyAndHold, core.ErrDataUnavailable},
		{"no data", &mockProvider{name: "yahoo"}, buyAndHold, core.ErrEmptySeries},
		{"syntax", &mockProvider{name: "yahoo", history: bars(1, 2)}, "def (", core.ErrPluginSyntax},
		{"contract", &mockProvider{name: "yahoo", history: bars(1, 2)}, `df["position"] = 1`, core.ErrContractViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestApp(t, tt.provider)
			_, err := a.Backtest(context.Background(), Request{Source: tt.source})
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestBacktest_RecordsMetrics(t *testing.T) {
	a, _ := newTestApp(t, &mockProvider{name: "yahoo", history: bars(1, 2)})
	ctx := context.Background()

	_, err := a.Backtest(ctx, Request{Source: buyAndHold})
	require.NoError(t, err)
	_, err = a.Backtest(ctx, Request{Source: "def ("})
	require.Error(t, err)

	mfs, err := a.Metrics().Gather()
	require.NoError(t, err)
	found := map[string]bool{}
	for _, mf := range mfs {
		found[mf.GetName()] = true
	}
	assert.True(t, found["strategylab_backtests_total"])
	assert.True(t, found["strategylab_plugin_failures_total"])
}

func TestBacktestFile(t *testing.T) {
	a, storage := newTestApp(t, &mockProvider{name: "yahoo", history: bars(1, 2)})
	ctx := context.Background()
	require.NoError(t, storage.Write(ctx, "hold.star", []byte(buyAndHold)))

	out, err := a.BacktestFile(ctx, "hold.star", Request{})
	require.NoError(t, err)
	assert.Equal(t, 2000.0, out.Report.FinalEquity)

	_, err = a.BacktestFile(ctx, "missing.star", Request{})
	assert.True(t, errors.Is(err, core.ErrSourceUnreadable), "got %v", err)
}
