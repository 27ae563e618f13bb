package domain

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// OrderKind is the sell order type.
type OrderKind string

const (
	OrderKindMarket OrderKind = "market"
	OrderKindLimit  OrderKind = "limit"
)

// ParseOrderKind parses "market" or "limit".
func ParseOrderKind(s string) (OrderKind, error) {
	switch OrderKind(strings.ToLower(s)) {
	case OrderKindMarket:
		return OrderKindMarket, nil
	case OrderKindLimit:
		return OrderKindLimit, nil
	default:
		return "", errors.Errorf("unknown order kind %q", s)
	}
}

// TimeInForce of a limit order.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
)

// ParseTimeInForce accepts GTC, IOC or FOK; empty means GTC.
func ParseTimeInForce(s string) (TimeInForce, error) {
	switch tif := TimeInForce(strings.ToUpper(strings.TrimSpace(s))); tif {
	case "":
		return TimeInForceGTC, nil
	case TimeInForceGTC, TimeInForceIOC, TimeInForceFOK:
		return tif, nil
	default:
		return "", errors.Errorf("unsupported time in force %q", s)
	}
}

// Side of an order. Only sells are ever built.
type Side string

const SideSell Side = "SELL"

// OrderRequest is a sell order ready for submission.
type OrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          Side
	Kind          OrderKind
	Quantity      decimal.Decimal
	// Price and TimeInForce are set for limit orders only.
	Price       decimal.Decimal
	TimeInForce TimeInForce
}

// OrderResult is what the exchange reported for an accepted order.
type OrderResult struct {
	OrderID       string
	ClientOrderID string
	Status        string
	ExecutedQty   decimal.Decimal
}

// Preview is the order a user is asked to confirm.
type Preview struct {
	Kind      OrderKind
	Asset     string
	Symbol    string
	Amount    decimal.Decimal
	Price     decimal.Decimal
	LastPrice decimal.Decimal
}

// Value is the quote currency value of the preview: at limit price for limit
// orders, at last price for market orders.
func (p Preview) Value() decimal.Decimal {
	if p.Kind == OrderKindLimit {
		return p.Amount.Mul(p.Price)
	}
	return p.Amount.Mul(p.LastPrice)
}

// Matches reports whether other describes the same order (symbol, kind, amount and, for limits, price).
func (p Preview) Matches(other Preview) bool {
	if p.Kind != other.Kind || p.Symbol != other.Symbol || !p.Amount.Equal(other.Amount) {
		return false
	}
	if p.Kind == OrderKindLimit {
		return p.Price.Equal(other.Price)
	}
	return true
}
