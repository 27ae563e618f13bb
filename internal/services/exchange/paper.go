package exchange

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/walletbot/internal/domain"
	"github.com/vadiminshakov/walletbot/internal/storage/paperstate"
	"go.uber.org/zap"
)

// ErrInsufficientBalance is returned by the paper gateway when a sell exceeds the free balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

// MarketData is the read-only part of a gateway the paper gateway prices against.
type MarketData interface {
	GetQuotes(ctx context.Context, symbols []string) (map[string]domain.MarketQuote, error)
	GetQuote(ctx context.Context, symbol string) (domain.MarketQuote, error)
	GetServerTime(ctx context.Context) (time.Time, error)
}

type paperStateStore interface {
	Load() (*paperstate.State, error)
	Save(state paperstate.State) error
}

type paperOrder struct {
	stored   paperstate.StoredOrder
	asset    string
	quantity decimal.Decimal
}

// PaperGateway simulates a spot account against real market data.
// Market sells fill at the best bid; limit sells lock the quantity as an open order.
type PaperGateway struct {
	mu         sync.Mutex
	quote      string
	market     MarketData
	store      paperStateStore
	logger     *zap.Logger
	free       map[string]decimal.Decimal
	locked     map[string]decimal.Decimal
	openOrders []paperOrder
	nextID     int64
}

// NewPaperGateway creates a paper gateway seeded with initial balances.
// Persisted state, when present, wins over the seed.
func NewPaperGateway(quote string, market MarketData, store paperStateStore, initial map[string]decimal.Decimal, logger *zap.Logger) (*PaperGateway, error) {
	if market == nil {
		return nil, errors.New("market data is required for paper trading")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &PaperGateway{
		quote:  quote,
		market: market,
		store:  store,
		logger: logger,
		free:   make(map[string]decimal.Decimal, len(initial)),
		locked: make(map[string]decimal.Decimal),
		nextID: 1,
	}
	for asset, amount := range initial {
		g.free[asset] = amount
	}

	if err := g.restoreState(); err != nil {
		return nil, err
	}

	logger.Info("paper wallet ready", zap.Int("assets", len(g.free)), zap.Int("open_orders", len(g.openOrders)))
	return g, nil
}

// GetBalances returns non-empty paper balances sorted by asset.
func (g *PaperGateway) GetBalances(ctx context.Context) ([]domain.AssetBalance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	assets := make([]string, 0, len(g.free)+len(g.locked))
	seen := make(map[string]struct{})
	for _, m := range []map[string]decimal.Decimal{g.free, g.locked} {
		for asset := range m {
			if _, ok := seen[asset]; ok {
				continue
			}
			seen[asset] = struct{}{}
			assets = append(assets, asset)
		}
	}
	sort.Strings(assets)

	balances := make([]domain.AssetBalance, 0, len(assets))
	for _, asset := range assets {
		b := g.balanceLocked(asset)
		if b.IsEmpty() {
			continue
		}
		balances = append(balances, b)
	}
	return balances, nil
}

// GetBalance returns the paper balance of one asset.
func (g *PaperGateway) GetBalance(ctx context.Context, asset string) (domain.AssetBalance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balanceLocked(asset), nil
}

// GetQuotes delegates to market data.
func (g *PaperGateway) GetQuotes(ctx context.Context, symbols []string) (map[string]domain.MarketQuote, error) {
	return g.market.GetQuotes(ctx, symbols)
}

// GetQuote delegates to market data.
func (g *PaperGateway) GetQuote(ctx context.Context, symbol string) (domain.MarketQuote, error) {
	return g.market.GetQuote(ctx, symbol)
}

// GetServerTime delegates to market data.
func (g *PaperGateway) GetServerTime(ctx context.Context) (time.Time, error) {
	return g.market.GetServerTime(ctx)
}

// SubmitMarketSell fills immediately at the best bid (last price when the book is empty).
func (g *PaperGateway) SubmitMarketSell(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	asset, err := g.assetOf(req.Symbol)
	if err != nil {
		return domain.OrderResult{}, err
	}

	quote, err := g.market.GetQuote(ctx, req.Symbol)
	if err != nil {
		return domain.OrderResult{}, err
	}
	price := quote.BidPrice
	if !price.IsPositive() {
		price = quote.LastPrice
	}
	if !price.IsPositive() {
		return domain.OrderResult{}, domain.NewGatewayError("paper market sell", errors.Errorf("no price for %s", req.Symbol))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.free[asset].LessThan(req.Quantity) {
		return domain.OrderResult{}, domain.NewGatewayError("paper market sell",
			errors.Wrapf(ErrInsufficientBalance, "%s free %s, requested %s", asset, g.free[asset], req.Quantity))
	}

	g.free[asset] = g.free[asset].Sub(req.Quantity)
	g.free[g.quote] = g.free[g.quote].Add(req.Quantity.Mul(price))
	id := g.nextOrderID()

	if err := g.persist(); err != nil {
		g.logger.Warn("failed to persist paper state", zap.Error(err))
	}

	g.logger.Info("paper market sell filled",
		zap.String("symbol", req.Symbol),
		zap.String("quantity", req.Quantity.String()),
		zap.String("price", price.String()))

	return domain.OrderResult{OrderID: id, ClientOrderID: req.ClientOrderID, Status: "FILLED", ExecutedQty: req.Quantity}, nil
}

// SubmitLimitSell locks the quantity and records an open order. Paper limit orders never fill.
func (g *PaperGateway) SubmitLimitSell(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	asset, err := g.assetOf(req.Symbol)
	if err != nil {
		return domain.OrderResult{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.free[asset].LessThan(req.Quantity) {
		return domain.OrderResult{}, domain.NewGatewayError("paper limit sell",
			errors.Wrapf(ErrInsufficientBalance, "%s free %s, requested %s", asset, g.free[asset], req.Quantity))
	}

	g.free[asset] = g.free[asset].Sub(req.Quantity)
	g.locked[asset] = g.locked[asset].Add(req.Quantity)
	id := g.nextOrderID()
	g.openOrders = append(g.openOrders, paperOrder{
		stored: paperstate.StoredOrder{
			OrderID:       id,
			ClientOrderID: req.ClientOrderID,
			Symbol:        req.Symbol,
			Asset:         asset,
			Quantity:      req.Quantity.String(),
			Price:         req.Price.String(),
			CreatedAt:     time.Now().UTC(),
		},
		asset:    asset,
		quantity: req.Quantity,
	})

	if err := g.persist(); err != nil {
		g.logger.Warn("failed to persist paper state", zap.Error(err))
	}

	return domain.OrderResult{OrderID: id, ClientOrderID: req.ClientOrderID, Status: "NEW", ExecutedQty: decimal.Zero}, nil
}

func (g *PaperGateway) assetOf(symbol string) (string, error) {
	asset := strings.TrimSuffix(symbol, g.quote)
	if asset == "" || asset == symbol {
		return "", domain.NewGatewayError("paper order", errors.Errorf("symbol %s is not quoted in %s", symbol, g.quote))
	}
	return asset, nil
}

func (g *PaperGateway) balanceLocked(asset string) domain.AssetBalance {
	return domain.AssetBalance{Asset: asset, Free: g.free[asset], Locked: g.locked[asset]}
}

func (g *PaperGateway) nextOrderID() string {
	id := fmt.Sprintf("paper-%d", g.nextID)
	g.nextID++
	return id
}

func (g *PaperGateway) restoreState() error {
	if g.store == nil {
		return nil
	}
	state, err := g.store.Load()
	if err != nil {
		return errors.Wrap(err, "load paper state")
	}
	if state == nil {
		return nil
	}

	free, err := paperstate.DecodeBalances(state.Free)
	if err != nil {
		return err
	}
	locked, err := paperstate.DecodeBalances(state.Locked)
	if err != nil {
		return err
	}

	orders := make([]paperOrder, 0, len(state.OpenOrders))
	for _, o := range state.OpenOrders {
		qty, err := decimal.NewFromString(o.Quantity)
		if err != nil {
			return errors.Wrapf(err, "decode paper order %s", o.OrderID)
		}
		orders = append(orders, paperOrder{stored: o, asset: o.Asset, quantity: qty})
	}

	g.free = free
	g.locked = locked
	g.openOrders = orders
	if state.NextID > g.nextID {
		g.nextID = state.NextID
	}
	return nil
}

func (g *PaperGateway) persist() error {
	if g.store == nil {
		return nil
	}
	orders := make([]paperstate.StoredOrder, 0, len(g.openOrders))
	for _, o := range g.openOrders {
		orders = append(orders, o.stored)
	}
	return g.store.Save(paperstate.State{
		Free:       paperstate.EncodeBalances(g.free),
		Locked:     paperstate.EncodeBalances(g.locked),
		OpenOrders: orders,
		NextID:     g.nextID,
	})
}
