package exchange

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vadiminshakov/walletbot/internal/domain"
)

// Gateway is a testify mock of exchange.Gateway.
type Gateway struct {
	mock.Mock
}

// GetBalances provides a mock function with given fields: ctx
func (_m *Gateway) GetBalances(ctx context.Context) ([]domain.AssetBalance, error) {
	ret := _m.Called(ctx)

	var r0 []domain.AssetBalance
	if v := ret.Get(0); v != nil {
		r0 = v.([]domain.AssetBalance)
	}
	return r0, ret.Error(1)
}

// GetBalance provides a mock function with given fields: ctx, asset
func (_m *Gateway) GetBalance(ctx context.Context, asset string) (domain.AssetBalance, error) {
	ret := _m.Called(ctx, asset)
	return ret.Get(0).(domain.AssetBalance), ret.Error(1)
}

// GetQuotes provides a mock function with given fields: ctx, symbols
func (_m *Gateway) GetQuotes(ctx context.Context, symbols []string) (map[string]domain.MarketQuote, error) {
	ret := _m.Called(ctx, symbols)

	var r0 map[string]domain.MarketQuote
	if v := ret.Get(0); v != nil {
		r0 = v.(map[string]domain.MarketQuote)
	}
	return r0, ret.Error(1)
}

// GetQuote provides a mock function with given fields: ctx, symbol
func (_m *Gateway) GetQuote(ctx context.Context, symbol string) (domain.MarketQuote, error) {
	ret := _m.Called(ctx, symbol)
	return ret.Get(0).(domain.MarketQuote), ret.Error(1)
}

// GetServerTime provides a mock function with given fields: ctx
func (_m *Gateway) GetServerTime(ctx context.Context) (time.Time, error) {
	ret := _m.Called(ctx)
	return ret.Get(0).(time.Time), ret.Error(1)
}

// SubmitMarketSell provides a mock function with given fields: ctx, req
func (_m *Gateway) SubmitMarketSell(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	ret := _m.Called(ctx, req)
	return ret.Get(0).(domain.OrderResult), ret.Error(1)
}

// SubmitLimitSell provides a mock function with given fields: ctx, req
func (_m *Gateway) SubmitLimitSell(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	ret := _m.Called(ctx, req)
	return ret.Get(0).(domain.OrderResult), ret.Error(1)
}

// NewGateway creates a new instance of Gateway. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewGateway(t interface {
	mock.TestingT
	Cleanup(func())
}) *Gateway {
	m := &Gateway{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
