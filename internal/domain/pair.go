// Package domain defines core data structures shared by the wallet and sell flow.
package domain

import (
	"fmt"
	"strings"
)

// Pair cryptocurrency trading pair.
type Pair struct {
	// From base currency symbol.
	From string
	// To quote currency symbol.
	To string
}

// NewPair builds a pair of the asset against the quote currency.
func NewPair(asset, quote string) Pair {
	return Pair{From: strings.ToUpper(asset), To: strings.ToUpper(quote)}
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation used by exchanges (e.g. ETHUSDT).
func (p Pair) Symbol() string {
	return p.From + p.To
}

// ValidTicker reports whether s is a non-empty upper-case alphanumeric ticker.
// Tickers travel inside callback tokens, so anything else (notably '_') is refused.
func ValidTicker(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
