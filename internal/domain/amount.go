package domain

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PercentPolicy decides what happens to percentages above 100.
type PercentPolicy string

const (
	// PercentPolicyReject refuses percentages above 100.
	PercentPolicyReject PercentPolicy = "reject"
	// PercentPolicyCap treats percentages above 100 as 100.
	PercentPolicyCap PercentPolicy = "cap"
)

// ParsePercentPolicy parses a policy name; empty means reject.
func ParsePercentPolicy(s string) (PercentPolicy, error) {
	switch p := PercentPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PercentPolicyReject, nil
	case PercentPolicyReject, PercentPolicyCap:
		return p, nil
	default:
		return "", errors.Errorf("unknown percent policy %q", s)
	}
}

const percentMarker = "%"

// AmountParser turns user text into a sell quantity.
type AmountParser struct {
	Policy PercentPolicy
}

// Parse parses input against the free balance.
// "20%" means 20 percent of free; anything else is a literal quantity that must be in (0, free].
func (p AmountParser) Parse(input string, free decimal.Decimal) (decimal.Decimal, error) {
	input = strings.TrimSpace(input)
	if strings.HasSuffix(input, percentMarker) {
		return p.parsePercent(strings.TrimSpace(strings.TrimSuffix(input, percentMarker)), free)
	}

	amount, err := parsePlainDecimal(input)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if amount.GreaterThan(free) {
		return decimal.Zero, ErrAmountExceedsBalance
	}
	return amount, nil
}

func (p AmountParser) parsePercent(input string, free decimal.Decimal) (decimal.Decimal, error) {
	percent, err := parsePlainDecimal(input)
	if err != nil || !percent.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if percent.GreaterThan(hundred) {
		if p.Policy == PercentPolicyCap {
			percent = hundred
		} else {
			return decimal.Zero, ErrPercentTooLarge
		}
	}

	// Shift keeps the division by 100 exact.
	amount := free.Mul(percent).Shift(-2)
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// PriceParser validates a typed limit price.
type PriceParser struct {
	// MaxDeviationPercent bounds |price-last|/last in percent. Zero disables the check.
	MaxDeviationPercent decimal.Decimal
}

// Parse parses a positive price and checks it against the last traded price.
func (p PriceParser) Parse(input string, lastPrice decimal.Decimal) (decimal.Decimal, error) {
	price, err := parsePlainDecimal(strings.TrimSpace(input))
	if err != nil || !price.IsPositive() {
		return decimal.Zero, ErrInvalidPrice
	}

	if p.MaxDeviationPercent.IsPositive() && lastPrice.IsPositive() {
		deviation := price.Sub(lastPrice).Abs().Mul(hundred).Div(lastPrice)
		if deviation.GreaterThan(p.MaxDeviationPercent) {
			return decimal.Zero, ErrPriceOutOfBounds
		}
	}
	return price, nil
}

// parsePlainDecimal accepts digits with an optional single dot. Signs, exponents
// and thousand separators are refused so the value prints back unambiguously.
func parsePlainDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, errors.New("empty number")
	}
	dots := 0
	for _, r := range s {
		switch {
		case r == '.':
			dots++
		case r < '0' || r > '9':
			return decimal.Zero, errors.Errorf("unexpected character %q", r)
		}
	}
	if dots > 1 || s == "." {
		return decimal.Zero, errors.Errorf("malformed number %q", s)
	}
	return decimal.NewFromString(s)
}
