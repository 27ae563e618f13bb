package clients

import (
	"github.com/hirokisan/bybit/v2"
)

// NewBybitClient creates an authenticated Bybit v5 client.
func NewBybitClient(apiKey, apiSecret string) *bybit.Client {
	return bybit.NewClient().WithAuth(apiKey, apiSecret)
}
