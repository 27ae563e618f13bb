package exchange

import (
	"context"
	"strconv"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/walletbot/internal/domain"
)

const (
	bybitCategorySpot = "spot"
	bybitStatusNew    = "NEW"
)

// BybitGateway talks to the Bybit V5 API (unified trading account, spot category).
type BybitGateway struct {
	client *bybit.Client
}

// NewBybitGateway creates a gateway over an authenticated Bybit client.
func NewBybitGateway(client *bybit.Client) *BybitGateway {
	return &BybitGateway{client: client}
}

// GetBalances returns non-empty unified account balances.
func (g *BybitGateway) GetBalances(ctx context.Context) ([]domain.AssetBalance, error) {
	res, err := g.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5("UNIFIED"), nil)
	if err != nil {
		return nil, domain.NewGatewayError("bybit wallet balance", err)
	}
	if len(res.Result.List) == 0 {
		return nil, nil
	}
	return parseBybitCoins(res.Result.List[0].Coin)
}

// parseBybitCoins turns unified account coins into balances; free is wallet balance minus locked.
func parseBybitCoins(coins []bybit.V5WalletBalanceCoin) ([]domain.AssetBalance, error) {
	balances := make([]domain.AssetBalance, 0, len(coins))
	for _, coin := range coins {
		p := decimalParser{subject: string(coin.Coin)}
		total := p.parse("wallet balance", coin.WalletBalance)
		locked := p.parse("locked", coin.Locked)
		if p.err != nil {
			return nil, p.err
		}

		balance := domain.AssetBalance{Asset: string(coin.Coin), Free: total.Sub(locked), Locked: locked}
		if balance.IsEmpty() {
			continue
		}
		balances = append(balances, balance)
	}
	return balances, nil
}

// GetBalance returns the balance of one coin; an unknown coin has a zero balance.
func (g *BybitGateway) GetBalance(ctx context.Context, asset string) (domain.AssetBalance, error) {
	balances, err := g.GetBalances(ctx)
	if err != nil {
		return domain.AssetBalance{}, err
	}
	for _, b := range balances {
		if b.Asset == asset {
			return b, nil
		}
	}
	return domain.AssetBalance{Asset: asset, Free: decimal.Zero, Locked: decimal.Zero}, nil
}

// GetQuotes fetches all spot tickers once and picks the requested symbols.
func (g *BybitGateway) GetQuotes(ctx context.Context, symbols []string) (map[string]domain.MarketQuote, error) {
	quotes := make(map[string]domain.MarketQuote, len(symbols))
	if len(symbols) == 0 {
		return quotes, nil
	}

	wanted := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		wanted[s] = struct{}{}
	}

	res, err := g.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybitCategorySpot,
	})
	if err != nil {
		return nil, domain.NewGatewayError("bybit tickers", err)
	}

	if res.Result.Spot == nil {
		return quotes, nil
	}
	for _, item := range res.Result.Spot.List {
		if _, ok := wanted[string(item.Symbol)]; !ok {
			continue
		}
		quote, err := parseBybitTicker(item)
		if err != nil {
			return nil, err
		}
		quotes[quote.Symbol] = quote
	}
	return quotes, nil
}

// GetQuote fetches the spot ticker of one symbol.
func (g *BybitGateway) GetQuote(ctx context.Context, symbol string) (domain.MarketQuote, error) {
	s := bybit.SymbolV5(symbol)
	res, err := g.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybitCategorySpot,
		Symbol:   &s,
	})
	if err != nil {
		return domain.MarketQuote{}, domain.NewGatewayError("bybit tickers", err)
	}
	if res.Result.Spot == nil || len(res.Result.Spot.List) == 0 {
		return domain.MarketQuote{}, errors.Wrapf(domain.ErrQuoteNotFound, "bybit returned no ticker for %s", symbol)
	}
	return parseBybitTicker(res.Result.Spot.List[0])
}

// GetServerTime returns the exchange clock.
func (g *BybitGateway) GetServerTime(ctx context.Context) (time.Time, error) {
	res, err := g.client.NewTimeService().GetServerTime()
	if err != nil {
		return time.Time{}, domain.NewGatewayError("bybit server time", err)
	}
	nanos, err := strconv.ParseInt(res.Result.TimeNano, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "failed to parse bybit server time")
	}
	return time.Unix(0, nanos), nil
}

// SubmitMarketSell places a spot market sell; quantity is in base coin.
func (g *BybitGateway) SubmitMarketSell(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	linkID := req.ClientOrderID
	res, err := g.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:    bybitCategorySpot,
		Symbol:      bybit.SymbolV5(req.Symbol),
		Side:        bybit.SideSell,
		OrderType:   bybit.OrderTypeMarket,
		Qty:         formatQuantity(req),
		OrderLinkID: &linkID,
	})
	if err != nil {
		return domain.OrderResult{}, domain.NewGatewayError("bybit market sell", err)
	}
	return bybitOrderResult(res.Result), nil
}

// SubmitLimitSell places a spot limit sell.
func (g *BybitGateway) SubmitLimitSell(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	linkID := req.ClientOrderID
	price := req.Price.String()
	tif := bybit.TimeInForce(req.TimeInForce)
	res, err := g.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:    bybitCategorySpot,
		Symbol:      bybit.SymbolV5(req.Symbol),
		Side:        bybit.SideSell,
		OrderType:   bybit.OrderTypeLimit,
		Qty:         formatQuantity(req),
		Price:       &price,
		TimeInForce: &tif,
		OrderLinkID: &linkID,
	})
	if err != nil {
		return domain.OrderResult{}, domain.NewGatewayError("bybit limit sell", err)
	}
	return bybitOrderResult(res.Result), nil
}

// bybitOrderResult maps a create order acknowledgement. Bybit only returns ids,
// the order is accepted but not yet matched.
func bybitOrderResult(res bybit.V5CreateOrderResult) domain.OrderResult {
	return domain.OrderResult{
		OrderID:       res.OrderID,
		ClientOrderID: res.OrderLinkID,
		Status:        bybitStatusNew,
		ExecutedQty:   decimal.Zero,
	}
}

func parseBybitTicker(item bybit.V5GetTickersSpotItem) (domain.MarketQuote, error) {
	p := decimalParser{subject: string(item.Symbol)}
	last := p.parse("last price", item.LastPrice)
	prev := p.parse("prev price 24h", item.PrevPrice24H)
	// bybit reports the change as a fraction, 0.0123 is 1.23%
	changeFraction := p.parse("price 24h pcnt", item.Price24HPcnt)

	q := domain.MarketQuote{
		Symbol:             string(item.Symbol),
		LastPrice:          last,
		BidPrice:           p.parse("bid price", item.Bid1Price),
		BidQty:             p.parse("bid size", item.Bid1Size),
		AskPrice:           p.parse("ask price", item.Ask1Price),
		AskQty:             p.parse("ask size", item.Ask1Size),
		PriceChange:        last.Sub(prev),
		PriceChangePercent: changeFraction.Shift(2),
	}
	if p.err != nil {
		return domain.MarketQuote{}, p.err
	}
	return q, nil
}
