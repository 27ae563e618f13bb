package domain

import "github.com/shopspring/decimal"

// Depth estimates available liquidity from the top of the book only:
// bidPrice*bidQty + askPrice*askQty. Exchanges give us best levels, not the full book.
func Depth(bidPrice, bidQty, askPrice, askQty decimal.Decimal) decimal.Decimal {
	return bidPrice.Mul(bidQty).Add(askPrice.Mul(askQty))
}

// Depth returns the top-of-book liquidity of the quote.
func (q MarketQuote) Depth() decimal.Decimal {
	return Depth(q.BidPrice, q.BidQty, q.AskPrice, q.AskQty)
}
