// Package order turns confirmed previews into exchange orders and submits them.
package order

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/walletbot/internal/domain"
)

// Builder maps a confirmed preview onto an order request.
// Lot size and min notional are left to the exchange.
type Builder struct {
	timeInForce domain.TimeInForce
	newID       func() string
}

// NewBuilder creates a builder using tif for limit orders. Empty tif means GTC.
func NewBuilder(tif domain.TimeInForce) *Builder {
	if tif == "" {
		tif = domain.TimeInForceGTC
	}
	return &Builder{
		timeInForce: tif,
		newID:       func() string { return uuid.New().String() },
	}
}

// Build creates the order request for preview.
func (b *Builder) Build(preview domain.Preview) (domain.OrderRequest, error) {
	if !domain.ValidTicker(preview.Symbol) {
		return domain.OrderRequest{}, errors.Errorf("invalid symbol %q", preview.Symbol)
	}
	if !preview.Amount.IsPositive() {
		return domain.OrderRequest{}, errors.Wrapf(domain.ErrInvalidAmount, "amount %s", preview.Amount)
	}

	req := domain.OrderRequest{
		ClientOrderID: b.newID(),
		Symbol:        preview.Symbol,
		Side:          domain.SideSell,
		Kind:          preview.Kind,
		Quantity:      preview.Amount,
	}

	switch preview.Kind {
	case domain.OrderKindMarket:
	case domain.OrderKindLimit:
		if !preview.Price.IsPositive() {
			return domain.OrderRequest{}, errors.Wrapf(domain.ErrInvalidPrice, "price %s", preview.Price)
		}
		req.Price = preview.Price
		req.TimeInForce = b.timeInForce
	default:
		return domain.OrderRequest{}, errors.Errorf("unsupported order kind %q", preview.Kind)
	}

	return req, nil
}
