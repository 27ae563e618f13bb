// Package exchange implements exchange gateways the sell flow talks to.
package exchange

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/walletbot/internal/domain"
)

// Gateway is the exchange surface consumed by valuation and order submission.
type Gateway interface {
	GetBalances(ctx context.Context) ([]domain.AssetBalance, error)
	GetBalance(ctx context.Context, asset string) (domain.AssetBalance, error)
	// GetQuotes returns quotes keyed by pair symbol. Symbols the exchange does not
	// know are simply absent from the result.
	GetQuotes(ctx context.Context, symbols []string) (map[string]domain.MarketQuote, error)
	GetQuote(ctx context.Context, symbol string) (domain.MarketQuote, error)
	GetServerTime(ctx context.Context) (time.Time, error)
	SubmitMarketSell(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
	SubmitLimitSell(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
}

// quantityPrecision is the number of decimals sent to exchanges.
const quantityPrecision = 8

func formatQuantity(req domain.OrderRequest) string {
	return req.Quantity.RoundFloor(quantityPrecision).String()
}

// decimalParser parses several exchange fields, keeping the first error.
type decimalParser struct {
	subject string
	err     error
}

func (p *decimalParser) parse(field, value string) decimal.Decimal {
	if p.err != nil || value == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(value)
	if err != nil {
		p.err = errors.Wrapf(err, "failed to parse %s of %s", field, p.subject)
		return decimal.Zero
	}
	return v
}
