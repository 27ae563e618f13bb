package exchange

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/walletbot/internal/domain"
	"github.com/vadiminshakov/walletbot/pkg/retrier"
)

// flakyGateway fails the first failures calls of every method.
type flakyGateway struct {
	mu       sync.Mutex
	failures int
	calls    map[string]int
	err      error
}

func newFlaky(failures int, err error) *flakyGateway {
	return &flakyGateway{failures: failures, calls: make(map[string]int), err: err}
}

func (g *flakyGateway) hit(method string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[method]++
	if g.calls[method] <= g.failures {
		return g.err
	}
	return nil
}

func (g *flakyGateway) GetBalances(context.Context) ([]domain.AssetBalance, error) {
	if err := g.hit("GetBalances"); err != nil {
		return nil, err
	}
	return []domain.AssetBalance{{Asset: "ETH", Free: dec("1")}}, nil
}

func (g *flakyGateway) GetBalance(_ context.Context, asset string) (domain.AssetBalance, error) {
	if err := g.hit("GetBalance"); err != nil {
		return domain.AssetBalance{}, err
	}
	return domain.AssetBalance{Asset: asset, Free: dec("1")}, nil
}

func (g *flakyGateway) GetQuotes(context.Context, []string) (map[string]domain.MarketQuote, error) {
	if err := g.hit("GetQuotes"); err != nil {
		return nil, err
	}
	return map[string]domain.MarketQuote{}, nil
}

func (g *flakyGateway) GetQuote(_ context.Context, symbol string) (domain.MarketQuote, error) {
	if err := g.hit("GetQuote"); err != nil {
		return domain.MarketQuote{}, err
	}
	return domain.MarketQuote{Symbol: symbol, LastPrice: dec("2000")}, nil
}

func (g *flakyGateway) GetServerTime(context.Context) (time.Time, error) {
	if err := g.hit("GetServerTime"); err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, 0), nil
}

func (g *flakyGateway) SubmitMarketSell(context.Context, domain.OrderRequest) (domain.OrderResult, error) {
	return domain.OrderResult{}, g.hit("SubmitMarketSell")
}

func (g *flakyGateway) SubmitLimitSell(context.Context, domain.OrderRequest) (domain.OrderResult, error) {
	return domain.OrderResult{}, g.hit("SubmitLimitSell")
}

func fastRetry() []retrier.Option {
	return []retrier.Option{
		retrier.WithInitialInterval(time.Millisecond),
		retrier.WithMaxInterval(time.Millisecond),
		retrier.WithMaxRetries(3),
	}
}

func TestWithRetry_RetriesReads(t *testing.T) {
	inner := newFlaky(2, errors.New("timeout"))
	gw := WithRetry(inner, nil, fastRetry()...)

	balances, err := gw.GetBalances(context.Background())
	require.NoError(t, err)
	assert.Len(t, balances, 1)
	assert.Equal(t, 3, inner.calls["GetBalances"])

	q, err := gw.GetQuote(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", q.Symbol)
	assert.Equal(t, 3, inner.calls["GetQuote"])
}

func TestWithRetry_NeverRetriesSubmits(t *testing.T) {
	inner := newFlaky(1, errors.New("timeout"))
	gw := WithRetry(inner, nil, fastRetry()...)

	_, err := gw.SubmitMarketSell(context.Background(), domain.OrderRequest{Symbol: "ETHUSDT"})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls["SubmitMarketSell"])

	_, err = gw.SubmitLimitSell(context.Background(), domain.OrderRequest{Symbol: "ETHUSDT"})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls["SubmitLimitSell"])
}

func TestWithRetry_StopsOnQuoteNotFound(t *testing.T) {
	inner := newFlaky(5, domain.ErrQuoteNotFound)
	gw := WithRetry(inner, nil, fastRetry()...)

	_, err := gw.GetQuote(context.Background(), "XYZUSDT")
	assert.True(t, errors.Is(err, domain.ErrQuoteNotFound))
	assert.Equal(t, 1, inner.calls["GetQuote"])
}

type recordingObserver struct {
	methods []string
	errs    []error
}

func (o *recordingObserver) ObserveGatewayCall(method string, err error, _ time.Duration) {
	o.methods = append(o.methods, method)
	o.errs = append(o.errs, err)
}

func TestWithObserver(t *testing.T) {
	inner := newFlaky(0, nil)
	obs := &recordingObserver{}
	gw := WithObserver(inner, obs)

	_, _ = gw.GetBalances(context.Background())
	_, _ = gw.GetServerTime(context.Background())
	_, _ = gw.SubmitLimitSell(context.Background(), domain.OrderRequest{})

	assert.Equal(t, []string{"GetBalances", "GetServerTime", "SubmitLimitSell"}, obs.methods)
	for _, err := range obs.errs {
		assert.NoError(t, err)
	}

	failing := WithObserver(newFlaky(1, errors.New("boom")), obs)
	_, err := failing.GetQuotes(context.Background(), []string{"ETHUSDT"})
	require.Error(t, err)
	assert.Error(t, obs.errs[len(obs.errs)-1])
}
