package conversation

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/walletbot/internal/domain"
)

// maxTokenLen is the Telegram callback_data limit in bytes.
const maxTokenLen = 64

// ErrMalformedAction is returned for tokens that do not decode to a known action.
var ErrMalformedAction = errors.New("malformed action token")

// ActionKind tags the Action union.
type ActionKind int

const (
	ActionMenu ActionKind = iota
	ActionWallet
	ActionSellMenu
	ActionOrders
	ActionBack
	ActionSelectAsset
	ActionSelectType
	ActionConfirm
)

const (
	tokenMenu          = "menu"
	tokenWallet        = "wallet"
	tokenSellMenu      = "sell_menu"
	tokenOrders        = "orders"
	tokenBack          = "back"
	prefixSellAsset    = "sell_asset_"
	prefixSelectType   = "select_type_"
	prefixConfirmMkt   = "confirm_market_sell_"
	prefixConfirmLimit = "confirm_limit_sell_"
)

var canonicalDecimal = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// Action is a decoded button press. Which fields are set depends on Kind:
// SelectAsset carries Asset, SelectType carries Asset and OrderKind,
// Confirm carries OrderKind, Symbol, Amount and Price for limits.
type Action struct {
	Kind      ActionKind
	Asset     string
	Symbol    string
	OrderKind domain.OrderKind
	Amount    decimal.Decimal
	Price     decimal.Decimal
}

// SelectAsset starts the sell flow for asset.
func SelectAsset(asset string) Action {
	return Action{Kind: ActionSelectAsset, Asset: asset}
}

// SelectType picks the order kind for asset.
func SelectType(asset string, kind domain.OrderKind) Action {
	return Action{Kind: ActionSelectType, Asset: asset, OrderKind: kind}
}

// Confirm accepts preview.
func Confirm(preview domain.Preview) Action {
	a := Action{Kind: ActionConfirm, Symbol: preview.Symbol, OrderKind: preview.Kind, Amount: preview.Amount}
	if preview.Kind == domain.OrderKindLimit {
		a.Price = preview.Price
	}
	return a
}

// Matches reports whether a confirm action targets preview.
func (a Action) Matches(preview domain.Preview) bool {
	if a.Kind != ActionConfirm {
		return false
	}
	return preview.Matches(domain.Preview{Kind: a.OrderKind, Symbol: a.Symbol, Amount: a.Amount, Price: a.Price})
}

// Encode renders the action as a callback token.
func (a Action) Encode() (string, error) {
	var token string
	switch a.Kind {
	case ActionMenu:
		token = tokenMenu
	case ActionWallet:
		token = tokenWallet
	case ActionSellMenu:
		token = tokenSellMenu
	case ActionOrders:
		token = tokenOrders
	case ActionBack:
		token = tokenBack
	case ActionSelectAsset:
		if !domain.ValidTicker(a.Asset) {
			return "", errors.Errorf("invalid asset %q", a.Asset)
		}
		token = prefixSellAsset + a.Asset
	case ActionSelectType:
		if !domain.ValidTicker(a.Asset) {
			return "", errors.Errorf("invalid asset %q", a.Asset)
		}
		if _, err := domain.ParseOrderKind(string(a.OrderKind)); err != nil {
			return "", err
		}
		token = prefixSelectType + a.Asset + "_" + string(a.OrderKind)
	case ActionConfirm:
		if !domain.ValidTicker(a.Symbol) {
			return "", errors.Errorf("invalid symbol %q", a.Symbol)
		}
		if !a.Amount.IsPositive() {
			return "", errors.Errorf("invalid amount %s", a.Amount)
		}
		switch a.OrderKind {
		case domain.OrderKindMarket:
			token = prefixConfirmMkt + a.Symbol + "_" + a.Amount.String()
		case domain.OrderKindLimit:
			if !a.Price.IsPositive() {
				return "", errors.Errorf("invalid price %s", a.Price)
			}
			token = prefixConfirmLimit + a.Symbol + "_" + a.Amount.String() + "_" + a.Price.String()
		default:
			return "", errors.Errorf("unsupported order kind %q", a.OrderKind)
		}
	default:
		return "", errors.Errorf("unknown action kind %d", a.Kind)
	}

	if len(token) > maxTokenLen {
		return "", errors.Errorf("action token is %d bytes, limit is %d", len(token), maxTokenLen)
	}
	return token, nil
}

// DecodeAction parses a callback token. Prefixes are matched exactly and every
// parameterized token has a fixed number of fields.
func DecodeAction(token string) (Action, error) {
	if token == "" || len(token) > maxTokenLen {
		return Action{}, ErrMalformedAction
	}

	switch token {
	case tokenMenu:
		return Action{Kind: ActionMenu}, nil
	case tokenWallet:
		return Action{Kind: ActionWallet}, nil
	case tokenSellMenu:
		return Action{Kind: ActionSellMenu}, nil
	case tokenOrders:
		return Action{Kind: ActionOrders}, nil
	case tokenBack:
		return Action{Kind: ActionBack}, nil
	}

	switch {
	case strings.HasPrefix(token, prefixSellAsset):
		fields, err := splitFields(token, prefixSellAsset, 1)
		if err != nil {
			return Action{}, err
		}
		if !domain.ValidTicker(fields[0]) {
			return Action{}, ErrMalformedAction
		}
		return SelectAsset(fields[0]), nil

	case strings.HasPrefix(token, prefixSelectType):
		fields, err := splitFields(token, prefixSelectType, 2)
		if err != nil {
			return Action{}, err
		}
		if !domain.ValidTicker(fields[0]) {
			return Action{}, ErrMalformedAction
		}
		kind := domain.OrderKind(fields[1])
		if kind != domain.OrderKindMarket && kind != domain.OrderKindLimit {
			return Action{}, ErrMalformedAction
		}
		return SelectType(fields[0], kind), nil

	case strings.HasPrefix(token, prefixConfirmMkt):
		fields, err := splitFields(token, prefixConfirmMkt, 2)
		if err != nil {
			return Action{}, err
		}
		if !domain.ValidTicker(fields[0]) {
			return Action{}, ErrMalformedAction
		}
		amount, err := decodeDecimal(fields[1])
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: ActionConfirm, OrderKind: domain.OrderKindMarket, Symbol: fields[0], Amount: amount}, nil

	case strings.HasPrefix(token, prefixConfirmLimit):
		fields, err := splitFields(token, prefixConfirmLimit, 3)
		if err != nil {
			return Action{}, err
		}
		if !domain.ValidTicker(fields[0]) {
			return Action{}, ErrMalformedAction
		}
		amount, err := decodeDecimal(fields[1])
		if err != nil {
			return Action{}, err
		}
		price, err := decodeDecimal(fields[2])
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: ActionConfirm, OrderKind: domain.OrderKindLimit, Symbol: fields[0], Amount: amount, Price: price}, nil
	}

	return Action{}, ErrMalformedAction
}

func splitFields(token, prefix string, n int) ([]string, error) {
	fields := strings.Split(strings.TrimPrefix(token, prefix), "_")
	if len(fields) != n {
		return nil, errors.Wrapf(ErrMalformedAction, "%q wants %d fields", prefix, n)
	}
	return fields, nil
}

// decodeDecimal accepts only the canonical positive form produced by decimal.String.
func decodeDecimal(s string) (decimal.Decimal, error) {
	if !canonicalDecimal.MatchString(s) {
		return decimal.Zero, errors.Wrapf(ErrMalformedAction, "bad number %q", s)
	}
	v, err := decimal.NewFromString(s)
	if err != nil || !v.IsPositive() || v.String() != s {
		return decimal.Zero, errors.Wrapf(ErrMalformedAction, "bad number %q", s)
	}
	return v, nil
}
