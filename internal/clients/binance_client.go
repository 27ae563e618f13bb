package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient creates an authenticated Binance spot client.
// testnet switches the whole binance package to the spot testnet endpoints.
func NewBinanceClient(apiKey, apiSecret string, testnet bool) *binance.Client {
	binance.UseTestnet = testnet
	return binance.NewClient(apiKey, apiSecret)
}
