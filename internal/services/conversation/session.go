package conversation

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/walletbot/internal/domain"
)

// State is a step of the sell flow.
type State int

const (
	// StateSelectAsset is the entry step. It is never stored: no session means asset selection.
	StateSelectAsset State = iota
	StateSelectType
	StateAwaitAmount
	StateAwaitLimitPrice
	StatePreview
)

func (s State) String() string {
	switch s {
	case StateSelectAsset:
		return "select_asset"
	case StateSelectType:
		return "select_type"
	case StateAwaitAmount:
		return "await_amount"
	case StateAwaitLimitPrice:
		return "await_limit_price"
	case StatePreview:
		return "preview"
	default:
		return "unknown"
	}
}

// Session is the sell flow progress of one user.
type Session struct {
	UserID       int64
	State        State
	Asset        string
	Kind         domain.OrderKind
	Amount       decimal.Decimal
	Preview      *domain.Preview
	LastActivity time.Time
}
