// Package paperstate persists the paper trading wallet so restarts keep balances and open orders.
package paperstate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	defaultStateDir = "./data/paper"
	stateFileName   = "wallet.json"
)

// Store reads and writes paper wallet state as a JSON file.
type Store struct {
	path string
}

// NewStore creates a store under dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		dir = defaultStateDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create paper state dir")
	}
	return &Store{path: filepath.Join(dir, stateFileName)}, nil
}

// State is everything the paper gateway needs to resume.
type State struct {
	Free       map[string]string `json:"free"`
	Locked     map[string]string `json:"locked"`
	OpenOrders []StoredOrder     `json:"open_orders,omitempty"`
	NextID     int64             `json:"next_id"`
}

// StoredOrder is an open paper limit order.
type StoredOrder struct {
	OrderID       string    `json:"order_id"`
	ClientOrderID string    `json:"client_order_id"`
	Symbol        string    `json:"symbol"`
	Asset         string    `json:"asset"`
	Quantity      string    `json:"quantity"`
	Price         string    `json:"price"`
	CreatedAt     time.Time `json:"created_at"`
}

// Load reads state from disk. A missing or empty file yields nil state.
func (s *Store) Load() (*State, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read paper state")
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode paper state")
	}
	return &state, nil
}

// Save writes state atomically via a temp file.
func (s *Store) Save(state State) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode paper state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write paper state temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist paper state")
	}
	return nil
}

// EncodeBalances converts decimal balances into their stored form.
func EncodeBalances(balances map[string]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(balances))
	for asset, amount := range balances {
		out[asset] = amount.String()
	}
	return out
}

// DecodeBalances parses stored balances.
func DecodeBalances(stored map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(stored))
	for asset, raw := range stored {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "decode paper balance of %s", asset)
		}
		out[asset] = amount
	}
	return out, nil
}
