// Package symbol normalizes coin names into Bybit USDT-perp symbols.
// Signals and chat commands carry bare coin names ("btc", "SOL "); the
// exchange wants "BTCUSDT".
package symbol

import "strings"

const quote = "USDT"

// Normalize uppercases s and appends the USDT suffix when missing.
func Normalize(s string) string {
	sym := strings.ToUpper(strings.TrimSpace(s))
	if sym == "" {
		return ""
	}
	if !strings.HasSuffix(sym, quote) {
		sym += quote
	}
	return sym
}

// Coin strips the USDT suffix, returning the bare coin name.
func Coin(sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	return strings.TrimSuffix(sym, quote)
}
