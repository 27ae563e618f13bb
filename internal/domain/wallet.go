package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ItemKind tells how a wallet item was valued.
type ItemKind int

const (
	// ItemDerived is valued from a market quote of the asset against the quote currency.
	ItemDerived ItemKind = iota
	// ItemQuoteCurrency is the settlement asset itself, never looked up against itself.
	ItemQuoteCurrency
)

// QuoteCurrencyDepth is the sentinel liquidity reported for the quote currency.
var QuoteCurrencyDepth = decimal.New(1, 18)

var hundred = decimal.NewFromInt(100)

// WalletItem is a valued holding.
type WalletItem struct {
	Kind       ItemKind
	Asset      string
	Free       decimal.Decimal
	LastPrice  decimal.Decimal
	Depth      decimal.Decimal
	PnLValue   decimal.Decimal
	PnLPercent decimal.Decimal
}

// NewDerivedItem values a balance with the quote of its pair.
func NewDerivedItem(balance AssetBalance, quote MarketQuote) WalletItem {
	return WalletItem{
		Kind:       ItemDerived,
		Asset:      balance.Asset,
		Free:       balance.Free,
		LastPrice:  quote.LastPrice,
		Depth:      quote.Depth(),
		PnLValue:   quote.PriceChange,
		PnLPercent: quote.PriceChangePercent,
	}
}

// NewQuoteCurrencyItem values the quote currency balance at price 1.
func NewQuoteCurrencyItem(balance AssetBalance) WalletItem {
	return WalletItem{
		Kind:       ItemQuoteCurrency,
		Asset:      balance.Asset,
		Free:       balance.Free,
		LastPrice:  decimal.NewFromInt(1),
		Depth:      QuoteCurrencyDepth,
		PnLValue:   decimal.Zero,
		PnLPercent: decimal.Zero,
	}
}

// IsQuoteCurrency reports whether the item is the synthetic quote currency entry.
func (w WalletItem) IsQuoteCurrency() bool {
	return w.Kind == ItemQuoteCurrency
}

// BalanceValue is free * last price.
func (w WalletItem) BalanceValue() decimal.Decimal {
	return w.Free.Mul(w.LastPrice)
}

// PersonalPnLValue scales the 24h change percent to the held balance.
func (w WalletItem) PersonalPnLValue() decimal.Decimal {
	return w.BalanceValue().Mul(w.PnLPercent).Div(hundred)
}

// Wallet is a valuation snapshot of the whole account.
type Wallet struct {
	Items      []WalletItem
	ServerTime time.Time
}

// Total sums balance values of all items.
func (w Wallet) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range w.Items {
		total = total.Add(item.BalanceValue())
	}
	return total
}

// Visible returns items whose balance value is at least min.
func (w Wallet) Visible(min decimal.Decimal) []WalletItem {
	visible := make([]WalletItem, 0, len(w.Items))
	for _, item := range w.Items {
		if item.BalanceValue().GreaterThanOrEqual(min) {
			visible = append(visible, item)
		}
	}
	return visible
}

// Sellable returns items worth more than min, excluding the quote currency.
func (w Wallet) Sellable(min decimal.Decimal) []WalletItem {
	sellable := make([]WalletItem, 0, len(w.Items))
	for _, item := range w.Items {
		if item.IsQuoteCurrency() || !item.BalanceValue().GreaterThan(min) {
			continue
		}
		sellable = append(sellable, item)
	}
	return sellable
}

// SortByBalance orders items by balance value, largest first. Ties keep input order.
func SortByBalance(items []WalletItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].BalanceValue().GreaterThan(items[j].BalanceValue())
	})
}
