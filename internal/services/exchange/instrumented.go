package exchange

import (
	"context"
	"time"

	"github.com/vadiminshakov/walletbot/internal/domain"
)

// CallObserver receives the duration and outcome of every gateway call.
type CallObserver interface {
	ObserveGatewayCall(method string, err error, d time.Duration)
}

type instrumentedGateway struct {
	next     Gateway
	observer CallObserver
}

// WithObserver times every call made through gw.
func WithObserver(gw Gateway, observer CallObserver) Gateway {
	return &instrumentedGateway{next: gw, observer: observer}
}

func timed[T any](o CallObserver, method string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	o.ObserveGatewayCall(method, err, time.Since(start))
	return v, err
}

func (g *instrumentedGateway) GetBalances(ctx context.Context) ([]domain.AssetBalance, error) {
	return timed(g.observer, "GetBalances", func() ([]domain.AssetBalance, error) {
		return g.next.GetBalances(ctx)
	})
}

func (g *instrumentedGateway) GetBalance(ctx context.Context, asset string) (domain.AssetBalance, error) {
	return timed(g.observer, "GetBalance", func() (domain.AssetBalance, error) {
		return g.next.GetBalance(ctx, asset)
	})
}

func (g *instrumentedGateway) GetQuotes(ctx context.Context, symbols []string) (map[string]domain.MarketQuote, error) {
	return timed(g.observer, "GetQuotes", func() (map[string]domain.MarketQuote, error) {
		return g.next.GetQuotes(ctx, symbols)
	})
}

func (g *instrumentedGateway) GetQuote(ctx context.Context, symbol string) (domain.MarketQuote, error) {
	return timed(g.observer, "GetQuote", func() (domain.MarketQuote, error) {
		return g.next.GetQuote(ctx, symbol)
	})
}

func (g *instrumentedGateway) GetServerTime(ctx context.Context) (time.Time, error) {
	return timed(g.observer, "GetServerTime", func() (time.Time, error) {
		return g.next.GetServerTime(ctx)
	})
}

func (g *instrumentedGateway) SubmitMarketSell(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	return timed(g.observer, "SubmitMarketSell", func() (domain.OrderResult, error) {
		return g.next.SubmitMarketSell(ctx, req)
	})
}

func (g *instrumentedGateway) SubmitLimitSell(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	return timed(g.observer, "SubmitLimitSell", func() (domain.OrderResult, error) {
		return g.next.SubmitLimitSell(ctx, req)
	})
}
