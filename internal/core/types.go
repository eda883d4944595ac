package core

import "time"

// OHLCV represents a candlestick/bar
type OHLCV struct {
	Symbol   string
	Interval string // "1m", "5m", "1h", "1d"
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
	Time     time.Time
}

// IsValid checks if the bar has the fields a backtest needs
func (b OHLCV) IsValid() bool {
	return !b.Time.IsZero() && b.Close > 0
}

// StrategyForm selects how a strategy source is executed.
type StrategyForm string

const (
	FormAuto     StrategyForm = "auto"
	FormScript   StrategyForm = "script"
	FormFunction StrategyForm = "function"
)

// IsValid reports whether f names a known form.
func (f StrategyForm) IsValid() bool {
	switch f {
	case FormAuto, FormScript, FormFunction:
		return true
	}
	return false
}

// StrategyRecord is a persisted user strategy.
type StrategyRecord struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Feedback  string    `json:"feedback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
