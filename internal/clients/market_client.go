package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewMarketDataClient creates a keyless Binance client.
// Paper mode prices its fills against public Binance tickers.
func NewMarketDataClient() *binance.Client {
	return binance.NewClient("", "")
}
