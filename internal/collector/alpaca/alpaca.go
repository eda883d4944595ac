// Package alpaca provides US equity bars from the Alpaca market-data API.
package alpaca

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/newthinker/strategylab/internal/collector"
	"github.com/newthinker/strategylab/internal/core"
)

// barsClient is the subset of marketdata.Client used here.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// Alpaca implements collector.Provider over marketdata.GetBars.
type Alpaca struct {
	client barsClient
	feed   marketdata.Feed
	now    func() time.Time
}

// New creates an Alpaca provider; Init must supply credentials.
func New() *Alpaca {
	return &Alpaca{
		feed: "iex",
		now:  time.Now,
	}
}

func (a *Alpaca) Name() string {
	return "alpaca"
}

// Init builds the market-data client. Extra["feed"] selects "iex" or "sip".
func (a *Alpaca) Init(cfg collector.Config) error {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("alpaca api_key and api_secret are required"))
	}
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.BaseURL != "" {
		opts.BaseURL = cfg.BaseURL
	}
	if feed, ok := cfg.Extra["feed"].(string); ok && feed != "" {
		a.feed = marketdata.Feed(feed)
	}
	a.client = marketdata.NewClient(opts)
	return nil
}

// FetchHistory fetches split-adjusted bars from now-period until now.
func (a *Alpaca) FetchHistory(ctx context.Context, symbol, period, interval string) ([]core.OHLCV, error) {
	if a.client == nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("alpaca provider not initialized"))
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if interval == "" {
		interval = collector.DefaultInterval
	}

	timeframe, err := toTimeFrame(interval)
	if err != nil {
		return nil, err
	}
	end := a.now().UTC()
	start, err := collector.PeriodStart(period, end)
	if err != nil {
		return nil, err
	}

	bars, err := a.client.GetBars(strings.ToUpper(symbol), marketdata.GetBarsRequest{
		TimeFrame:  timeframe,
		Adjustment: marketdata.Split,
		Start:      start,
		End:        end,
		Feed:       a.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars: %w", err)
	}

	data := make([]core.OHLCV, 0, len(bars))
	for _, b := range bars {
		data = append(data, core.OHLCV{
			Symbol:   symbol,
			Interval: interval,
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			Volume:   int64(b.Volume),
			Time:     b.Timestamp,
		})
	}
	return data, nil
}

// toTimeFrame converts "15m", "1h", "1d", "1wk" or "1mo" to an Alpaca timeframe.
func toTimeFrame(interval string) (marketdata.TimeFrame, error) {
	units := []struct {
		suffix string
		unit   marketdata.TimeFrameUnit
	}{
		{"mo", marketdata.Month},
		{"wk", marketdata.Week},
		{"m", marketdata.Min},
		{"h", marketdata.Hour},
		{"d", marketdata.Day},
	}
	for _, u := range units {
		if !strings.HasSuffix(interval, u.suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(interval, u.suffix))
		if err != nil || n <= 0 {
			break
		}
		return marketdata.NewTimeFrame(n, u.unit), nil
	}
	return marketdata.TimeFrame{}, fmt.Errorf("unsupported interval %q", interval)
}
