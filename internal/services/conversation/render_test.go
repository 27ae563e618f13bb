package conversation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/vadiminshakov/walletbot/internal/domain"
)

func TestOrderPlacedReply_StatusSuffix(t *testing.T) {
	p := domain.Preview{Kind: domain.OrderKindMarket, Asset: "ETH", Amount: decimal.RequireFromString("0.4")}

	tests := []struct {
		name string
		res  domain.OrderResult
		want string
	}{
		{"with status", domain.OrderResult{OrderID: "17", Status: "FILLED"}, "Order: <code>17</code> (FILLED)"},
		{"without status", domain.OrderResult{OrderID: "ab<1>"}, "Order: <code>ab&lt;1&gt;</code>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := orderPlacedReply(p, tt.res).Text
			assert.Contains(t, text, tt.want)
			assert.NotContains(t, text, "()")
		})
	}
}
