package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/strategylab/internal/collector"
	"github.com/newthinker/strategylab/internal/core"
)

const (
	baseURL = "https://api.binance.com"

	// klineLimit is the maximum page size of /api/v3/klines.
	klineLimit = 1000
)

// Binance implements collector.Provider for spot crypto pairs
type Binance struct {
	client       *http.Client
	baseURL      string
	defaultQuote string
	now          func() time.Time
}

// New creates a new Binance provider
func New() *Binance {
	return &Binance{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:      baseURL,
		defaultQuote: "USDT",
		now:          time.Now,
	}
}

// NewWithBaseURL creates a Binance provider with custom base URL (for testing)
func NewWithBaseURL(url string) *Binance {
	b := New()
	b.baseURL = url
	return b
}

func (b *Binance) Name() string {
	return "binance"
}

func (b *Binance) Init(cfg collector.Config) error {
	if cfg.BaseURL != "" {
		b.baseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		b.client.Timeout = cfg.Timeout
	}
	if quote, ok := cfg.Extra["default_quote"].(string); ok && quote != "" {
		b.defaultQuote = strings.ToUpper(quote)
	}
	return nil
}

// FetchHistory pages through klines from now-period until now.
func (b *Binance) FetchHistory(ctx context.Context, symbol, period, interval string) ([]core.OHLCV, error) {
	pair, err := NormalizeSymbol(symbol, b.defaultQuote)
	if err != nil {
		return nil, err
	}
	if interval == "" {
		interval = collector.DefaultInterval
	}
	binanceInterval, err := toInterval(interval)
	if err != nil {
		return nil, err
	}
	end := b.now()
	start, err := collector.PeriodStart(period, end)
	if err != nil {
		return nil, err
	}

	var data []core.OHLCV
	for cursor := start; cursor.Before(end); {
		page, err := b.fetchKlines(ctx, pair, binanceInterval, cursor, end)
		if err != nil {
			return nil, err
		}
		for i := range page {
			page[i].Symbol = symbol
			page[i].Interval = interval
		}
		data = append(data, page...)
		if len(page) < klineLimit {
			break
		}
		cursor = page[len(page)-1].Time.Add(time.Millisecond)
	}
	return data, nil
}

func (b *Binance) fetchKlines(ctx context.Context, pair, interval string, start, end time.Time) ([]core.OHLCV, error) {
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&startTime=%d&endTime=%d&limit=%d",
		b.baseURL, pair, interval, start.UnixMilli(), end.UnixMilli(), klineLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var klines [][]any
	if err := json.NewDecoder(resp.Body).Decode(&klines); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	data := make([]core.OHLCV, 0, len(klines))
	for _, k := range klines {
		if len(k) < 6 {
			continue
		}

		openTime, _ := k[0].(float64)
		openStr, _ := k[1].(string)
		highStr, _ := k[2].(string)
		lowStr, _ := k[3].(string)
		closeStr, _ := k[4].(string)
		volumeStr, _ := k[5].(string)

		open, _ := strconv.ParseFloat(openStr, 64)
		high, _ := strconv.ParseFloat(highStr, 64)
		low, _ := strconv.ParseFloat(lowStr, 64)
		close, _ := strconv.ParseFloat(closeStr, 64)
		volume, _ := strconv.ParseFloat(volumeStr, 64)

		data = append(data, core.OHLCV{
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: int64(volume),
			Time:   time.UnixMilli(int64(openTime)).UTC(),
		})
	}

	return data, nil
}

func toInterval(interval string) (string, error) {
	switch interval {
	case "1m", "3m", "5m", "15m", "30m":
		return interval, nil
	case "1h", "2h", "4h", "6h", "12h":
		return interval, nil
	case "60m":
		return "1h", nil
	case "1d", "3d":
		return interval, nil
	case "1wk":
		return "1w", nil
	case "1mo":
		return "1M", nil
	default:
		return "", fmt.Errorf("unsupported interval %q", interval)
	}
}
