package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDepth(t *testing.T) {
	tests := []struct {
		name                             string
		bidPrice, bidQty, askPrice, askQty string
		expected                         string
	}{
		{"both sides", "1999", "2", "2001", "3", "10001"},
		{"empty book", "0", "0", "0", "0", "0"},
		{"one side", "100", "0.5", "0", "0", "50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Depth(d(tt.bidPrice), d(tt.bidQty), d(tt.askPrice), d(tt.askQty))
			assert.True(t, d(tt.expected).Equal(got), "got %s", got)

			swapped := Depth(d(tt.askPrice), d(tt.askQty), d(tt.bidPrice), d(tt.bidQty))
			assert.True(t, got.Equal(swapped), "depth must not depend on side labels")
		})
	}
}

func TestWalletItem_BalanceValue(t *testing.T) {
	balance := AssetBalance{Asset: "ETH", Free: d("0.5")}
	quote := MarketQuote{
		Symbol:             "ETHUSDT",
		LastPrice:          d("2000"),
		BidPrice:           d("1999"),
		BidQty:             d("1"),
		AskPrice:           d("2001"),
		AskQty:             d("1"),
		PriceChange:        d("40"),
		PriceChangePercent: d("2"),
	}

	item := NewDerivedItem(balance, quote)

	assert.Equal(t, ItemDerived, item.Kind)
	assert.Equal(t, "1000.00", item.BalanceValue().StringFixed(2))
	assert.True(t, d("4000").Equal(item.Depth))
	assert.True(t, d("20").Equal(item.PersonalPnLValue()))
	assert.True(t, d("40").Equal(item.PnLValue))
}

func TestNewQuoteCurrencyItem(t *testing.T) {
	item := NewQuoteCurrencyItem(AssetBalance{Asset: "USDT", Free: d("123.45")})

	assert.True(t, item.IsQuoteCurrency())
	assert.True(t, d("1").Equal(item.LastPrice))
	assert.True(t, QuoteCurrencyDepth.Equal(item.Depth))
	assert.True(t, item.PnLPercent.IsZero())
	assert.True(t, item.PersonalPnLValue().IsZero())
	assert.True(t, d("123.45").Equal(item.BalanceValue()))
}

func TestSortByBalance_StableDescending(t *testing.T) {
	items := []WalletItem{
		{Asset: "A", Free: d("1"), LastPrice: d("10")},
		{Asset: "B", Free: d("5"), LastPrice: d("10")},
		{Asset: "C", Free: d("2"), LastPrice: d("5")},
		{Asset: "D", Free: d("50"), LastPrice: d("1")},
	}

	SortByBalance(items)

	var order []string
	for _, item := range items {
		order = append(order, item.Asset)
	}
	assert.Equal(t, []string{"B", "D", "A", "C"}, order)
}

func TestWallet_Filters(t *testing.T) {
	wallet := Wallet{Items: []WalletItem{
		NewQuoteCurrencyItem(AssetBalance{Asset: "USDT", Free: d("50")}),
		{Asset: "ETH", Free: d("1"), LastPrice: d("2000")},
		{Asset: "DUST", Free: d("1"), LastPrice: d("0.5")},
		{Asset: "ONE", Free: d("1"), LastPrice: d("1")},
	}}

	assert.True(t, d("2051.5").Equal(wallet.Total()))
	assert.Len(t, wallet.Visible(decimal.NewFromInt(1)), 3)

	sellable := wallet.Sellable(decimal.NewFromInt(1))
	assert.Len(t, sellable, 1)
	assert.Equal(t, "ETH", sellable[0].Asset)
}
