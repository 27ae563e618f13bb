package domain

import "github.com/shopspring/decimal"

// MarketQuote is a 24h ticker snapshot of one trading pair.
type MarketQuote struct {
	Symbol             string
	LastPrice          decimal.Decimal
	BidPrice           decimal.Decimal
	BidQty             decimal.Decimal
	AskPrice           decimal.Decimal
	AskQty             decimal.Decimal
	PriceChange        decimal.Decimal
	PriceChangePercent decimal.Decimal
}
