// Package conversation drives the per-user sell flow:
// asset, order type, amount, limit price, preview, confirmation.
package conversation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/walletbot/internal/domain"
	"github.com/vadiminshakov/walletbot/internal/storage/orderjournal"
	"go.uber.org/zap"
)

// quantityPrecision bounds preview amounts to what exchanges accept.
const quantityPrecision = 8

const defaultRecentOrders = 10

type walletValuer interface {
	BuildWallet(ctx context.Context) (domain.Wallet, error)
	BuildWalletItem(ctx context.Context, asset string) (domain.WalletItem, error)
	Quote() string
	Symbol(asset string) string
}

type orderBuilder interface {
	Build(preview domain.Preview) (domain.OrderRequest, error)
}

type orderSubmitter interface {
	Submit(ctx context.Context, userID int64, req domain.OrderRequest) (domain.OrderResult, error)
}

type orderHistory interface {
	Recent(userID int64, n int) ([]orderjournal.Record, error)
}

// User identifies who sent an event.
type User struct {
	ID   int64
	Name string
}

// Config holds the flow rules.
type Config struct {
	// MinDisplayValue hides wallet items worth less and disables selling items worth no more.
	MinDisplayValue decimal.Decimal
	Amounts         domain.AmountParser
	Prices          domain.PriceParser
	RecentOrders    int
}

// Machine is the conversation state machine. It is safe for concurrent use;
// events of one user are serialized by the session store.
type Machine struct {
	cfg       Config
	valuer    walletValuer
	builder   orderBuilder
	submitter orderSubmitter
	history   orderHistory
	sessions  *SessionStore
	logger    *zap.Logger
}

// NewMachine creates a state machine. history may be nil.
func NewMachine(cfg Config, valuer walletValuer, builder orderBuilder, submitter orderSubmitter,
	history orderHistory, sessions *SessionStore, logger *zap.Logger) (*Machine, error) {
	if valuer == nil || builder == nil || submitter == nil || sessions == nil {
		return nil, errors.New("valuer, builder, submitter and session store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RecentOrders <= 0 {
		cfg.RecentOrders = defaultRecentOrders
	}

	return &Machine{
		cfg:       cfg,
		valuer:    valuer,
		builder:   builder,
		submitter: submitter,
		history:   history,
		sessions:  sessions,
		logger:    logger,
	}, nil
}

// Start shows the main menu and abandons any flow in progress.
func (m *Machine) Start(ctx context.Context, user User) Reply {
	h := m.sessions.Acquire(user.ID)
	defer h.Release()

	h.Clear()
	return mainMenuReply(user.Name)
}

// ShowWallet renders the wallet overview. It does not touch the sell flow.
func (m *Machine) ShowWallet(ctx context.Context, user User) Reply {
	wallet, err := m.valuer.BuildWallet(ctx)
	if err != nil {
		m.logger.Error("failed to build wallet", zap.Int64("user_id", user.ID), zap.Error(err))
		return errorReply("<b>⚠️ Could not load wallet.</b>\nPlease try again later.")
	}
	return walletReply(wallet, m.valuer.Quote(), m.cfg.MinDisplayValue)
}

// ShowSellAssets enters asset selection, listing assets worth selling.
func (m *Machine) ShowSellAssets(ctx context.Context, user User) Reply {
	h := m.sessions.Acquire(user.ID)
	defer h.Release()

	h.Clear()

	wallet, err := m.valuer.BuildWallet(ctx)
	if err != nil {
		m.logger.Error("failed to build wallet", zap.Int64("user_id", user.ID), zap.Error(err))
		return errorReply("<b>⚠️ Could not load wallet.</b>\nPlease try again later.")
	}
	return sellAssetsReply(wallet.Sellable(m.cfg.MinDisplayValue))
}

// ShowOrders lists the latest orders of the user.
func (m *Machine) ShowOrders(ctx context.Context, user User) Reply {
	if m.history == nil {
		return ordersReply(nil)
	}
	records, err := m.history.Recent(user.ID, m.cfg.RecentOrders)
	if err != nil {
		m.logger.Error("failed to read order journal", zap.Int64("user_id", user.ID), zap.Error(err))
		return errorReply("<b>⚠️ Could not load orders.</b>")
	}
	return ordersReply(records)
}

// Sweep evicts idle sessions and returns how many were removed.
func (m *Machine) Sweep(now time.Time) int {
	return m.sessions.Sweep(now)
}

// OnAction handles a button press.
func (m *Machine) OnAction(ctx context.Context, user User, a Action) Reply {
	switch a.Kind {
	case ActionMenu, ActionBack:
		return m.Start(ctx, user)
	case ActionWallet:
		return m.ShowWallet(ctx, user)
	case ActionSellMenu:
		return m.ShowSellAssets(ctx, user)
	case ActionOrders:
		return m.ShowOrders(ctx, user)
	}

	h := m.sessions.Acquire(user.ID)
	defer h.Release()

	logger := m.logger.With(zap.Int64("user_id", user.ID))

	var (
		reply Reply
		err   error
	)
	switch a.Kind {
	case ActionSelectAsset:
		reply, err = m.selectAsset(ctx, h, a.Asset)
	case ActionSelectType:
		reply, err = m.selectType(h, a)
	case ActionConfirm:
		reply, err = m.confirm(ctx, h, user, a, logger)
	default:
		err = errors.Wrapf(ErrMalformedAction, "kind %d", a.Kind)
	}

	if errors.Is(err, domain.ErrSessionNotFound) {
		logger.Debug("action without live session, back to menu")
		h.Clear()
		return mainMenuReply(user.Name)
	}
	if err != nil {
		logger.Warn("action rejected", zap.Error(err))
		return noticeReply("This button is no longer active.")
	}
	return reply
}

// OnText handles a typed message.
func (m *Machine) OnText(ctx context.Context, user User, text string) Reply {
	h := m.sessions.Acquire(user.ID)
	defer h.Release()

	sess := h.Session()
	if sess == nil {
		return Reply{Text: "Please use the menu buttons.", Buttons: mainMenuReply(user.Name).Buttons}
	}

	switch sess.State {
	case StateAwaitAmount:
		return m.onAmount(ctx, h, sess, text)
	case StateAwaitLimitPrice:
		return m.onLimitPrice(ctx, h, sess, text)
	default:
		return Reply{Text: "Please use the buttons above."}
	}
}

func (m *Machine) selectAsset(ctx context.Context, h *Handle, asset string) (Reply, error) {
	// restarting the flow for an asset is allowed from any state
	h.Clear()

	if asset == m.valuer.Quote() {
		return noticeReply(asset + " is the quote currency and cannot be sold."), nil
	}

	item, err := m.valuer.BuildWalletItem(ctx, asset)
	if err != nil {
		m.logger.Error("failed to value asset", zap.String("asset", asset), zap.Error(err))
		return errorReply("<b>⚠️ Could not load " + asset + ".</b>\nPlease try again later."), nil
	}
	if !item.BalanceValue().GreaterThan(m.cfg.MinDisplayValue) {
		return errorReply("<b>" + asset + "</b> balance is too small to sell."), nil
	}

	h.Put(&Session{State: StateSelectType, Asset: asset})
	return assetCardReply(item), nil
}

func (m *Machine) selectType(h *Handle, a Action) (Reply, error) {
	sess := h.Session()
	if sess == nil {
		return Reply{}, domain.ErrSessionNotFound
	}
	if sess.State != StateSelectType || sess.Asset != a.Asset {
		return Reply{}, errors.Errorf("select type for %s in state %s of %s", a.Asset, sess.State, sess.Asset)
	}

	sess.Kind = a.OrderKind
	sess.State = StateAwaitAmount
	return amountPromptReply(sess.Asset), nil
}

func (m *Machine) onAmount(ctx context.Context, h *Handle, sess *Session, text string) Reply {
	// the balance may have changed since the asset card was shown
	item, err := m.valuer.BuildWalletItem(ctx, sess.Asset)
	if err != nil {
		m.logger.Error("failed to refresh balance", zap.String("asset", sess.Asset), zap.Error(err))
		return Reply{Text: "Could not load your " + sess.Asset + " balance. Please try again.", Buttons: [][]Button{backRow()}}
	}

	amount, err := m.cfg.Amounts.Parse(text, item.Free)
	if err == nil {
		amount = amount.RoundFloor(quantityPrecision)
		if !amount.IsPositive() {
			err = domain.ErrInvalidAmount
		}
	}
	if err != nil {
		return validationReply("Invalid amount", err)
	}

	if sess.Kind == domain.OrderKindLimit {
		sess.Amount = amount
		sess.State = StateAwaitLimitPrice
		return pricePromptReply(m.valuer.Quote(), item.LastPrice)
	}

	return m.preview(h, domain.Preview{
		Kind:      domain.OrderKindMarket,
		Asset:     sess.Asset,
		Symbol:    m.valuer.Symbol(sess.Asset),
		Amount:    amount,
		LastPrice: item.LastPrice,
	})
}

func (m *Machine) onLimitPrice(ctx context.Context, h *Handle, sess *Session, text string) Reply {
	item, err := m.valuer.BuildWalletItem(ctx, sess.Asset)
	if err != nil {
		m.logger.Error("failed to refresh price", zap.String("asset", sess.Asset), zap.Error(err))
		return Reply{Text: "Could not load the " + sess.Asset + " price. Please try again.", Buttons: [][]Button{backRow()}}
	}

	price, err := m.cfg.Prices.Parse(text, item.LastPrice)
	if err != nil {
		return validationReply("Invalid price", err)
	}

	return m.preview(h, domain.Preview{
		Kind:      domain.OrderKindLimit,
		Asset:     sess.Asset,
		Symbol:    m.valuer.Symbol(sess.Asset),
		Amount:    sess.Amount,
		Price:     price,
		LastPrice: item.LastPrice,
	})
}

// preview moves the session to PREVIEW keeping only the immutable preview.
func (m *Machine) preview(h *Handle, p domain.Preview) Reply {
	token, err := Confirm(p).Encode()
	if err != nil {
		return validationReply("Invalid input", domain.NewValidationError("too many digits, please shorten the number"))
	}

	h.Put(&Session{State: StatePreview, Asset: p.Asset, Kind: p.Kind, Preview: &p})
	return previewReply(p, token)
}

func (m *Machine) confirm(ctx context.Context, h *Handle, user User, a Action, logger *zap.Logger) (Reply, error) {
	sess := h.Session()
	if sess == nil {
		return Reply{}, domain.ErrSessionNotFound
	}
	if sess.State != StatePreview || sess.Preview == nil || !a.Matches(*sess.Preview) {
		return Reply{}, errors.Errorf("confirmation does not match the pending preview in state %s", sess.State)
	}

	preview := *sess.Preview
	// terminal: whatever the exchange says, the flow is over
	h.Clear()

	req, err := m.builder.Build(preview)
	if err != nil {
		logger.Error("failed to build order", zap.Error(err))
		return orderFailedReply(preview, err), nil
	}

	res, err := m.submitter.Submit(ctx, user.ID, req)
	if err != nil {
		return orderFailedReply(preview, err), nil
	}
	return orderPlacedReply(preview, res), nil
}

func validationReply(prefix string, err error) Reply {
	msg := "unexpected input"
	if domain.IsValidation(err) {
		msg = err.Error()
	}
	return Reply{Text: prefix + ": " + msg + ". Please try again.", Buttons: [][]Button{backRow()}}
}
