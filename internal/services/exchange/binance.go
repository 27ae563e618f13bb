package exchange

import (
	"context"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/walletbot/internal/domain"
)

// BinanceGateway talks to the Binance spot API.
type BinanceGateway struct {
	client *binance.Client
}

// NewBinanceGateway creates a gateway over an (optionally unauthenticated) Binance client.
func NewBinanceGateway(client *binance.Client) *BinanceGateway {
	return &BinanceGateway{client: client}
}

// GetBalances returns non-empty spot balances.
func (g *BinanceGateway) GetBalances(ctx context.Context) ([]domain.AssetBalance, error) {
	account, err := g.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, domain.NewGatewayError("binance get account", err)
	}

	balances := make([]domain.AssetBalance, 0, len(account.Balances))
	for _, b := range account.Balances {
		balance, err := parseBinanceBalance(b)
		if err != nil {
			return nil, err
		}
		if balance.IsEmpty() {
			continue
		}
		balances = append(balances, balance)
	}
	return balances, nil
}

// GetBalance returns the balance of one asset; an unknown asset has a zero balance.
func (g *BinanceGateway) GetBalance(ctx context.Context, asset string) (domain.AssetBalance, error) {
	account, err := g.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return domain.AssetBalance{}, domain.NewGatewayError("binance get account", err)
	}

	for _, b := range account.Balances {
		if b.Asset == asset {
			return parseBinanceBalance(b)
		}
	}
	return domain.AssetBalance{Asset: asset, Free: decimal.Zero, Locked: decimal.Zero}, nil
}

// GetQuotes fetches 24h stats for all symbols in one request.
func (g *BinanceGateway) GetQuotes(ctx context.Context, symbols []string) (map[string]domain.MarketQuote, error) {
	quotes := make(map[string]domain.MarketQuote, len(symbols))
	if len(symbols) == 0 {
		return quotes, nil
	}

	stats, err := g.client.NewListPriceChangeStatsService().Symbols(symbols).Do(ctx)
	if err != nil {
		return nil, domain.NewGatewayError("binance 24h stats", err)
	}

	for _, s := range stats {
		quote, err := parseBinanceStats(s)
		if err != nil {
			return nil, err
		}
		quotes[quote.Symbol] = quote
	}
	return quotes, nil
}

// GetQuote fetches 24h stats of one symbol.
func (g *BinanceGateway) GetQuote(ctx context.Context, symbol string) (domain.MarketQuote, error) {
	stats, err := g.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return domain.MarketQuote{}, domain.NewGatewayError("binance 24h stats", err)
	}
	if len(stats) == 0 {
		return domain.MarketQuote{}, errors.Wrapf(domain.ErrQuoteNotFound, "binance returned no stats for %s", symbol)
	}
	return parseBinanceStats(stats[0])
}

// GetServerTime returns the exchange clock.
func (g *BinanceGateway) GetServerTime(ctx context.Context) (time.Time, error) {
	ms, err := g.client.NewServerTimeService().Do(ctx)
	if err != nil {
		return time.Time{}, domain.NewGatewayError("binance server time", err)
	}
	return time.UnixMilli(ms), nil
}

// SubmitMarketSell places a market sell order.
func (g *BinanceGateway) SubmitMarketSell(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	res, err := g.client.NewCreateOrderService().Symbol(req.Symbol).
		Side(binance.SideTypeSell).Type(binance.OrderTypeMarket).
		Quantity(formatQuantity(req)).
		NewClientOrderID(req.ClientOrderID).
		Do(ctx)
	if err != nil {
		return domain.OrderResult{}, domain.NewGatewayError("binance market sell", describeBinanceError(err))
	}
	return binanceOrderResult(res)
}

// SubmitLimitSell places a limit sell order.
func (g *BinanceGateway) SubmitLimitSell(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	res, err := g.client.NewCreateOrderService().Symbol(req.Symbol).
		Side(binance.SideTypeSell).Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceType(req.TimeInForce)).
		Quantity(formatQuantity(req)).
		Price(req.Price.String()).
		NewClientOrderID(req.ClientOrderID).
		Do(ctx)
	if err != nil {
		return domain.OrderResult{}, domain.NewGatewayError("binance limit sell", describeBinanceError(err))
	}
	return binanceOrderResult(res)
}

func describeBinanceError(err error) error {
	if apiErr, ok := err.(*common.APIError); ok {
		return errors.Errorf("binance rejected order: %s (code %d)", apiErr.Message, apiErr.Code)
	}
	return err
}

func binanceOrderResult(res *binance.CreateOrderResponse) (domain.OrderResult, error) {
	executed := decimal.Zero
	if res.ExecutedQuantity != "" {
		var err error
		executed, err = decimal.NewFromString(res.ExecutedQuantity)
		if err != nil {
			return domain.OrderResult{}, errors.Wrap(err, "failed to parse executed quantity")
		}
	}
	return domain.OrderResult{
		OrderID:       strconv.FormatInt(res.OrderID, 10),
		ClientOrderID: res.ClientOrderID,
		Status:        string(res.Status),
		ExecutedQty:   executed,
	}, nil
}

func parseBinanceBalance(b binance.Balance) (domain.AssetBalance, error) {
	free, err := decimal.NewFromString(b.Free)
	if err != nil {
		return domain.AssetBalance{}, errors.Wrapf(err, "failed to parse free balance of %s", b.Asset)
	}
	locked, err := decimal.NewFromString(b.Locked)
	if err != nil {
		return domain.AssetBalance{}, errors.Wrapf(err, "failed to parse locked balance of %s", b.Asset)
	}
	return domain.AssetBalance{Asset: b.Asset, Free: free, Locked: locked}, nil
}

func parseBinanceStats(s *binance.PriceChangeStats) (domain.MarketQuote, error) {
	p := decimalParser{subject: s.Symbol}
	q := domain.MarketQuote{
		Symbol:             s.Symbol,
		LastPrice:          p.parse("last price", s.LastPrice),
		BidPrice:           p.parse("bid price", s.BidPrice),
		BidQty:             p.parse("bid qty", s.BidQty),
		AskPrice:           p.parse("ask price", s.AskPrice),
		AskQty:             p.parse("ask qty", s.AskQty),
		PriceChange:        p.parse("price change", s.PriceChange),
		PriceChangePercent: p.parse("price change percent", s.PriceChangePercent),
	}
	if p.err != nil {
		return domain.MarketQuote{}, p.err
	}
	return q, nil
}
