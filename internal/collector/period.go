package collector

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultPeriod and DefaultInterval match a one-year daily backtest.
const (
	DefaultPeriod   = "1y"
	DefaultInterval = "1d"
)

// PeriodStart resolves a lookback period relative to now. Accepted forms are
// <n>d, <n>wk, <n>mo, <n>y, "ytd" and "max".
func PeriodStart(period string, now time.Time) (time.Time, error) {
	p := strings.ToLower(strings.TrimSpace(period))
	switch p {
	case "":
		p = DefaultPeriod
	case "ytd":
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()), nil
	case "max":
		return time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), nil
	}

	for _, unit := range []string{"mo", "wk", "d", "y"} {
		if !strings.HasSuffix(p, unit) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(p, unit))
		if err != nil || n <= 0 {
			return time.Time{}, fmt.Errorf("invalid period %q", period)
		}
		switch unit {
		case "d":
			return now.AddDate(0, 0, -n), nil
		case "wk":
			return now.AddDate(0, 0, -7*n), nil
		case "mo":
			return now.AddDate(0, -n, 0), nil
		default:
			return now.AddDate(-n, 0, 0), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid period %q", period)
}

// IntervalDuration returns the bar size of interval: <n>m, <n>h, <n>d or <n>wk.
func IntervalDuration(interval string) (time.Duration, error) {
	i := strings.ToLower(strings.TrimSpace(interval))
	units := []struct {
		suffix string
		size   time.Duration
	}{
		{"wk", 7 * 24 * time.Hour},
		{"m", time.Minute},
		{"h", time.Hour},
		{"d", 24 * time.Hour},
	}
	for _, u := range units {
		if !strings.HasSuffix(i, u.suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(i, u.suffix))
		if err != nil || n <= 0 {
			break
		}
		return time.Duration(n) * u.size, nil
	}
	return 0, fmt.Errorf("invalid interval %q", interval)
}
