package valuation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/walletbot/internal/domain"
	exchangeMock "github.com/vadiminshakov/walletbot/mocks/exchange"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var serverTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestEngine_BuildWallet(t *testing.T) {
	gw := exchangeMock.NewGateway(t)
	gw.On("GetBalances", mock.Anything).Return([]domain.AssetBalance{
		{Asset: "USDT", Free: d("150")},
		{Asset: "ETH", Free: d("0.5")},
		{Asset: "DOGE", Free: d("10")},
	}, nil)
	gw.On("GetQuotes", mock.Anything, []string{"ETHUSDT", "DOGEUSDT"}).Return(map[string]domain.MarketQuote{
		"ETHUSDT": {
			Symbol: "ETHUSDT", LastPrice: d("2000"),
			BidPrice: d("1999"), BidQty: d("2"), AskPrice: d("2001"), AskQty: d("1"),
			PriceChange: d("40"), PriceChangePercent: d("2"),
		},
		"DOGEUSDT": {Symbol: "DOGEUSDT", LastPrice: d("0.05")},
	}, nil)
	gw.On("GetServerTime", mock.Anything).Return(serverTime, nil)

	engine, err := NewEngine(gw, "USDT", nil)
	require.NoError(t, err)

	wallet, err := engine.BuildWallet(context.Background())
	require.NoError(t, err)
	require.Len(t, wallet.Items, 3)

	assert.Equal(t, "ETH", wallet.Items[0].Asset)
	assert.Equal(t, "1000.00", wallet.Items[0].BalanceValue().StringFixed(2))
	assert.True(t, wallet.Items[0].Depth.Equal(d("5999")))
	assert.True(t, wallet.Items[0].PersonalPnLValue().Equal(d("20")))

	assert.Equal(t, "USDT", wallet.Items[1].Asset)
	assert.True(t, wallet.Items[1].IsQuoteCurrency())
	assert.True(t, wallet.Items[1].BalanceValue().Equal(d("150")))
	assert.True(t, wallet.Items[1].Depth.Equal(domain.QuoteCurrencyDepth))

	assert.Equal(t, "DOGE", wallet.Items[2].Asset)
	assert.True(t, wallet.Total().Equal(d("1150.5")))
	assert.Equal(t, serverTime, wallet.ServerTime)
}

func TestEngine_BuildWalletMissingQuote(t *testing.T) {
	gw := exchangeMock.NewGateway(t)
	gw.On("GetBalances", mock.Anything).Return([]domain.AssetBalance{
		{Asset: "ETH", Free: d("1")},
		{Asset: "LUNA", Free: d("1000")},
	}, nil)
	gw.On("GetQuotes", mock.Anything, []string{"ETHUSDT", "LUNAUSDT"}).Return(map[string]domain.MarketQuote{
		"ETHUSDT": {Symbol: "ETHUSDT", LastPrice: d("2000")},
	}, nil)
	gw.On("GetServerTime", mock.Anything).Return(serverTime, nil)

	engine, err := NewEngine(gw, "USDT", nil)
	require.NoError(t, err)

	_, err = engine.BuildWallet(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrQuoteNotFound))
	assert.Contains(t, err.Error(), "LUNAUSDT")
}

func TestEngine_BuildWalletOnlyQuoteCurrency(t *testing.T) {
	gw := exchangeMock.NewGateway(t)
	gw.On("GetBalances", mock.Anything).Return([]domain.AssetBalance{{Asset: "USDT", Free: d("42")}}, nil)
	gw.On("GetServerTime", mock.Anything).Return(serverTime, nil)

	engine, err := NewEngine(gw, "USDT", nil)
	require.NoError(t, err)

	wallet, err := engine.BuildWallet(context.Background())
	require.NoError(t, err)
	require.Len(t, wallet.Items, 1)
	assert.True(t, wallet.Items[0].IsQuoteCurrency())
	gw.AssertNotCalled(t, "GetQuotes", mock.Anything, mock.Anything)
}

func TestEngine_BuildWalletStableTies(t *testing.T) {
	gw := exchangeMock.NewGateway(t)
	gw.On("GetBalances", mock.Anything).Return([]domain.AssetBalance{
		{Asset: "AAA", Free: d("1")},
		{Asset: "BBB", Free: d("2")},
		{Asset: "CCC", Free: d("1")},
	}, nil)
	gw.On("GetQuotes", mock.Anything, mock.Anything).Return(map[string]domain.MarketQuote{
		"AAAUSDT": {LastPrice: d("10")},
		"BBBUSDT": {LastPrice: d("5")},
		"CCCUSDT": {LastPrice: d("10")},
	}, nil)
	gw.On("GetServerTime", mock.Anything).Return(serverTime, nil)

	engine, err := NewEngine(gw, "USDT", nil)
	require.NoError(t, err)

	wallet, err := engine.BuildWallet(context.Background())
	require.NoError(t, err)

	var order []string
	for _, item := range wallet.Items {
		order = append(order, item.Asset)
	}
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, order)
}

func TestEngine_BuildWalletGatewayErrors(t *testing.T) {
	t.Run("balances", func(t *testing.T) {
		gw := exchangeMock.NewGateway(t)
		gw.On("GetBalances", mock.Anything).Return(nil, errors.New("network down"))

		engine, err := NewEngine(gw, "USDT", nil)
		require.NoError(t, err)

		_, err = engine.BuildWallet(context.Background())
		assert.ErrorContains(t, err, "network down")
	})

	t.Run("server time", func(t *testing.T) {
		gw := exchangeMock.NewGateway(t)
		gw.On("GetBalances", mock.Anything).Return([]domain.AssetBalance{{Asset: "USDT", Free: d("1")}}, nil)
		gw.On("GetServerTime", mock.Anything).Return(time.Time{}, errors.New("clock"))

		engine, err := NewEngine(gw, "USDT", nil)
		require.NoError(t, err)

		_, err = engine.BuildWallet(context.Background())
		assert.ErrorContains(t, err, "server time")
	})
}

func TestEngine_BuildWalletItem(t *testing.T) {
	gw := exchangeMock.NewGateway(t)
	gw.On("GetBalance", mock.Anything, "ETH").Return(domain.AssetBalance{Asset: "ETH", Free: d("0.5")}, nil)
	gw.On("GetQuote", mock.Anything, "ETHUSDT").Return(domain.MarketQuote{Symbol: "ETHUSDT", LastPrice: d("2000")}, nil)
	gw.On("GetBalance", mock.Anything, "USDT").Return(domain.AssetBalance{Asset: "USDT", Free: d("10")}, nil)

	engine, err := NewEngine(gw, "USDT", nil)
	require.NoError(t, err)

	item, err := engine.BuildWalletItem(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, "1000.00", item.BalanceValue().StringFixed(2))
	assert.False(t, item.IsQuoteCurrency())

	usdt, err := engine.BuildWalletItem(context.Background(), "USDT")
	require.NoError(t, err)
	assert.True(t, usdt.IsQuoteCurrency())
	assert.True(t, usdt.LastPrice.Equal(decimal.NewFromInt(1)))
	gw.AssertNotCalled(t, "GetQuote", mock.Anything, "USDTUSDT")
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(nil, "USDT", nil)
	assert.Error(t, err)

	_, err = NewEngine(exchangeMock.NewGateway(t), "usd_t", nil)
	assert.Error(t, err)
}
