package collector

import (
	"context"
	"time"

	"github.com/newthinker/strategylab/internal/core"
)

// Config holds provider configuration
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string
	Timeout   time.Duration
	Extra     map[string]any
}

// Provider fetches historical bars for one symbol.
type Provider interface {
	// Name returns the registry key, e.g. "yahoo".
	Name() string

	// Init applies configuration before first use.
	Init(cfg Config) error

	// FetchHistory returns bars in ascending time order.
	// period: lookback such as "5d", "1mo", "1y", "ytd", "max"
	// interval: bar size such as "1m", "1h", "1d"
	FetchHistory(ctx context.Context, symbol, period, interval string) ([]core.OHLCV, error)
}
