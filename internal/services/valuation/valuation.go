// Package valuation joins account balances with market quotes into wallet snapshots.
package valuation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/walletbot/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type marketGateway interface {
	GetBalances(ctx context.Context) ([]domain.AssetBalance, error)
	GetBalance(ctx context.Context, asset string) (domain.AssetBalance, error)
	GetQuotes(ctx context.Context, symbols []string) (map[string]domain.MarketQuote, error)
	GetQuote(ctx context.Context, symbol string) (domain.MarketQuote, error)
	GetServerTime(ctx context.Context) (time.Time, error)
}

// Engine values the account in a single quote currency.
type Engine struct {
	gateway marketGateway
	quote   string
	logger  *zap.Logger
}

// NewEngine creates a valuation engine for the given quote currency.
func NewEngine(gateway marketGateway, quote string, logger *zap.Logger) (*Engine, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if !domain.ValidTicker(quote) {
		return nil, errors.Errorf("invalid quote currency %q", quote)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{gateway: gateway, quote: quote, logger: logger}, nil
}

// Quote returns the quote currency.
func (e *Engine) Quote() string {
	return e.quote
}

// Symbol returns the exchange symbol of asset against the quote currency.
func (e *Engine) Symbol(asset string) string {
	return domain.NewPair(asset, e.quote).Symbol()
}

// BuildWallet values every balance of the account.
// A balance whose symbol is missing from the batch quote response fails the whole call.
func (e *Engine) BuildWallet(ctx context.Context) (domain.Wallet, error) {
	balances, err := e.gateway.GetBalances(ctx)
	if err != nil {
		return domain.Wallet{}, errors.Wrap(err, "failed to get balances")
	}

	symbols := make([]string, 0, len(balances))
	for _, b := range balances {
		if b.Asset == e.quote {
			continue
		}
		symbols = append(symbols, e.Symbol(b.Asset))
	}

	var (
		quotes     map[string]domain.MarketQuote
		serverTime time.Time
	)
	g, gctx := errgroup.WithContext(ctx)
	if len(symbols) > 0 {
		g.Go(func() error {
			var err error
			quotes, err = e.gateway.GetQuotes(gctx, symbols)
			return errors.Wrap(err, "failed to get quotes")
		})
	}
	g.Go(func() error {
		var err error
		serverTime, err = e.gateway.GetServerTime(gctx)
		return errors.Wrap(err, "failed to get server time")
	})
	if err := g.Wait(); err != nil {
		return domain.Wallet{}, err
	}

	items := make([]domain.WalletItem, 0, len(balances))
	for _, b := range balances {
		if b.Asset == e.quote {
			items = append(items, domain.NewQuoteCurrencyItem(b))
			continue
		}
		symbol := e.Symbol(b.Asset)
		q, ok := quotes[symbol]
		if !ok {
			e.logger.Error("quote missing from batch response", zap.String("symbol", symbol))
			return domain.Wallet{}, errors.Wrapf(domain.ErrQuoteNotFound, "symbol %s", symbol)
		}
		items = append(items, domain.NewDerivedItem(b, q))
	}

	domain.SortByBalance(items)

	return domain.Wallet{Items: items, ServerTime: serverTime}, nil
}

// BuildWalletItem values a single asset with one balance and one quote lookup.
func (e *Engine) BuildWalletItem(ctx context.Context, asset string) (domain.WalletItem, error) {
	balance, err := e.gateway.GetBalance(ctx, asset)
	if err != nil {
		return domain.WalletItem{}, errors.Wrapf(err, "failed to get %s balance", asset)
	}

	if asset == e.quote {
		return domain.NewQuoteCurrencyItem(balance), nil
	}

	q, err := e.gateway.GetQuote(ctx, e.Symbol(asset))
	if err != nil {
		return domain.WalletItem{}, errors.Wrapf(err, "failed to get %s quote", e.Symbol(asset))
	}

	return domain.NewDerivedItem(balance, q), nil
}
