package binance

import (
	"fmt"
	"regexp"
	"strings"
)

// Common quote currencies in order of priority for detection
var quoteCurrencies = []string{"USDT", "FDUSD", "USDC", "BTC", "ETH", "BNB"}

var validPair = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)

// NormalizeSymbol converts "BTC", "btc-usd", "BTC/USDT" or "BTCUSDT" to an
// exchange pair such as BTCUSDT. A fiat USD quote maps to defaultQuote.
func NormalizeSymbol(input, defaultQuote string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("symbol cannot be empty")
	}
	if len(input) > 30 {
		return "", fmt.Errorf("symbol too long: %s", input)
	}

	s := strings.ToUpper(input)
	if base, quote, ok := cutAny(s, "-", "/", "_"); ok {
		if quote == "USD" {
			quote = defaultQuote
		}
		s = base + quote
	} else if !hasQuote(s) {
		s += strings.ToUpper(defaultQuote)
	}

	if !validPair.MatchString(s) {
		return "", fmt.Errorf("invalid symbol format: %s", input)
	}
	return s, nil
}

func hasQuote(s string) bool {
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return true
		}
	}
	return false
}

func cutAny(s string, seps ...string) (before, after string, found bool) {
	for _, sep := range seps {
		if before, after, found = strings.Cut(s, sep); found {
			return before, after, true
		}
	}
	return s, "", false
}
