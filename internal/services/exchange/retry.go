package exchange

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/walletbot/internal/domain"
	"github.com/vadiminshakov/walletbot/pkg/retrier"
	"go.uber.org/zap"
)

// retryingGateway retries read calls. Order submission is never retried,
// a repeated submit could double sell.
type retryingGateway struct {
	Gateway
	retrier *retrier.Retrier
}

// WithRetry wraps gw so that balance, quote and time lookups are retried with backoff.
func WithRetry(gw Gateway, logger *zap.Logger, opts ...retrier.Option) Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]retrier.Option{
		retrier.WithRetryIf(isRetryable),
		retrier.WithOnRetry(func(attempt int, err error) {
			logger.Warn("retrying exchange call", zap.Int("attempt", attempt), zap.Error(err))
		}),
	}, opts...)

	return &retryingGateway{Gateway: gw, retrier: retrier.New(opts...)}
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, domain.ErrQuoteNotFound) || domain.IsValidation(err) {
		return false
	}
	return true
}

func (g *retryingGateway) GetBalances(ctx context.Context) ([]domain.AssetBalance, error) {
	return retrier.DoWithData(g.retrier, ctx, g.Gateway.GetBalances)
}

func (g *retryingGateway) GetBalance(ctx context.Context, asset string) (domain.AssetBalance, error) {
	return retrier.DoWithData(g.retrier, ctx, func(ctx context.Context) (domain.AssetBalance, error) {
		return g.Gateway.GetBalance(ctx, asset)
	})
}

func (g *retryingGateway) GetQuotes(ctx context.Context, symbols []string) (map[string]domain.MarketQuote, error) {
	return retrier.DoWithData(g.retrier, ctx, func(ctx context.Context) (map[string]domain.MarketQuote, error) {
		return g.Gateway.GetQuotes(ctx, symbols)
	})
}

func (g *retryingGateway) GetQuote(ctx context.Context, symbol string) (domain.MarketQuote, error) {
	return retrier.DoWithData(g.retrier, ctx, func(ctx context.Context) (domain.MarketQuote, error) {
		return g.Gateway.GetQuote(ctx, symbol)
	})
}

func (g *retryingGateway) GetServerTime(ctx context.Context) (time.Time, error) {
	return retrier.DoWithData(g.retrier, ctx, g.Gateway.GetServerTime)
}
