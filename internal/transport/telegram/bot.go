// Package telegram connects the conversation state machine to the Telegram Bot API.
package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/walletbot/internal/services/conversation"
	"go.uber.org/zap"
)

const (
	parseModeHTML  = "HTML"
	pollingTimeout = 60

	// WebhookSecretHeader carries the secret_token given at registration.
	WebhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

type conversationMachine interface {
	Start(ctx context.Context, user conversation.User) conversation.Reply
	ShowWallet(ctx context.Context, user conversation.User) conversation.Reply
	ShowSellAssets(ctx context.Context, user conversation.User) conversation.Reply
	ShowOrders(ctx context.Context, user conversation.User) conversation.Reply
	OnAction(ctx context.Context, user conversation.User, a conversation.Action) conversation.Reply
	OnText(ctx context.Context, user conversation.User, text string) conversation.Reply
}

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type webhookAPI interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

type updateMetrics interface {
	IncUpdate(kind string)
}

// Options tune the transport.
type Options struct {
	// AllowedUsers restricts the bot to these Telegram user ids. Empty allows everyone.
	AllowedUsers []int64
	// MaxPending caps queued updates per user.
	MaxPending int
	// WebhookSecret must match the secret header of every webhook request.
	WebhookSecret string
}

// Bot routes Telegram updates to the conversation machine.
type Bot struct {
	api        botAPI
	machine    conversationMachine
	metrics    updateMetrics
	allowed    map[int64]struct{}
	secret     string
	dispatcher *dispatcher
	logger     *zap.Logger
}

// NewBot creates a bot. m may be nil.
func NewBot(api botAPI, machine conversationMachine, m updateMetrics, opts Options, logger *zap.Logger) (*Bot, error) {
	if api == nil || machine == nil {
		return nil, errors.New("bot api and conversation machine are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	allowed := make(map[int64]struct{}, len(opts.AllowedUsers))
	for _, id := range opts.AllowedUsers {
		allowed[id] = struct{}{}
	}

	return &Bot{
		api:        api,
		machine:    machine,
		metrics:    m,
		allowed:    allowed,
		secret:     opts.WebhookSecret,
		dispatcher: newDispatcher(opts.MaxPending, logger),
		logger:     logger,
	}, nil
}

// RunPolling consumes updates with long polling until ctx is done.
func (b *Bot) RunPolling(ctx context.Context, api *tgbotapi.BotAPI) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollingTimeout
	updates := api.GetUpdatesChan(u)

	b.logger.Info("telegram polling started", zap.String("bot", api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			b.dispatcher.wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.dispatcher.wait()
				return errors.New("telegram updates channel closed")
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// RegisterWebhook points Telegram at url. Telegram echoes secret back
// in WebhookSecretHeader on every delivery.
func RegisterWebhook(api webhookAPI, url, secret string) error {
	if url == "" || secret == "" {
		return errors.New("webhook url and secret are required")
	}
	params := tgbotapi.Params{"url": url, "secret_token": secret}
	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		return errors.Wrap(err, "failed to register webhook")
	}
	return nil
}

// WebhookHandler accepts updates pushed by Telegram.
// Updates are queued and the request returns immediately.
// Without a configured secret every request is refused.
func (b *Bot) WebhookHandler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !b.validSecret(r.Header.Get(WebhookSecretHeader)) {
			b.logger.Warn("webhook request with a bad secret", zap.String("remote", r.RemoteAddr))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			b.logger.Warn("bad webhook payload", zap.Error(err))
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		// handling must outlive the request
		b.HandleUpdate(ctx, update)
		w.WriteHeader(http.StatusOK)
	})
}

// Wait blocks until queued updates are handled.
func (b *Bot) Wait() {
	b.dispatcher.wait()
}

// HandleUpdate queues update on its sender's queue.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	from := sender(update)
	if from == nil {
		return
	}

	if !b.isAllowed(from.ID) {
		b.logger.Warn("update from a user outside the allow-list", zap.Int64("user_id", from.ID))
		if update.CallbackQuery != nil {
			b.answer(update.CallbackQuery.ID, "Not allowed")
		}
		return
	}

	user := conversation.User{ID: from.ID, Name: strings.TrimSpace(from.FirstName + " " + from.LastName)}

	var job func(ctx context.Context)
	switch {
	case update.CallbackQuery != nil:
		b.count("callback")
		cq := update.CallbackQuery
		job = func(ctx context.Context) { b.handleCallback(ctx, user, cq) }
	case update.Message != nil:
		msg := update.Message
		if msg.IsCommand() {
			b.count("command")
		} else {
			b.count("message")
		}
		job = func(ctx context.Context) { b.handleMessage(ctx, user, msg) }
	default:
		return
	}

	if !b.dispatcher.dispatch(ctx, user.ID, job) {
		b.logger.Warn("user queue is full, update dropped", zap.Int64("user_id", user.ID))
		if update.CallbackQuery != nil {
			b.answer(update.CallbackQuery.ID, "Too many requests, slow down")
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, user conversation.User, msg *tgbotapi.Message) {
	var reply conversation.Reply
	if msg.IsCommand() {
		switch msg.Command() {
		case "wallet":
			reply = b.machine.ShowWallet(ctx, user)
		case "sell":
			reply = b.machine.ShowSellAssets(ctx, user)
		case "orders":
			reply = b.machine.ShowOrders(ctx, user)
		default:
			reply = b.machine.Start(ctx, user)
		}
	} else {
		reply = b.machine.OnText(ctx, user, msg.Text)
	}

	if reply.Text == "" {
		return
	}
	out := tgbotapi.NewMessage(msg.Chat.ID, reply.Text)
	out.ParseMode = parseModeHTML
	if kb, ok := keyboard(reply.Buttons); ok {
		out.ReplyMarkup = kb
	}
	if _, err := b.api.Send(out); err != nil {
		b.logger.Error("failed to send message", zap.Int64("user_id", user.ID), zap.Error(err))
	}
}

func (b *Bot) handleCallback(ctx context.Context, user conversation.User, cq *tgbotapi.CallbackQuery) {
	action, err := conversation.DecodeAction(cq.Data)
	if err != nil {
		b.logger.Warn("undecodable callback", zap.Int64("user_id", user.ID), zap.String("data", cq.Data), zap.Error(err))
		b.answer(cq.ID, "Unknown action")
		return
	}

	reply := b.machine.OnAction(ctx, user, action)
	b.answer(cq.ID, reply.Notice)

	if reply.Text == "" || cq.Message == nil {
		return
	}
	edit := tgbotapi.NewEditMessageText(cq.Message.Chat.ID, cq.Message.MessageID, reply.Text)
	edit.ParseMode = parseModeHTML
	if kb, ok := keyboard(reply.Buttons); ok {
		edit.ReplyMarkup = &kb
	}
	if _, err := b.api.Send(edit); err != nil {
		// "message is not modified" is expected on repeated refreshes
		b.logger.Debug("failed to edit message", zap.Int64("user_id", user.ID), zap.Error(err))
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Debug("failed to answer callback", zap.Error(err))
	}
}

func sender(update tgbotapi.Update) *tgbotapi.User {
	switch {
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From
	case update.Message != nil:
		return update.Message.From
	default:
		return nil
	}
}

func (b *Bot) validSecret(got string) bool {
	if b.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(b.secret)) == 1
}

func (b *Bot) isAllowed(userID int64) bool {
	if len(b.allowed) == 0 {
		return true
	}
	_, ok := b.allowed[userID]
	return ok
}

func (b *Bot) count(kind string) {
	if b.metrics != nil {
		b.metrics.IncUpdate(kind)
	}
}

func keyboard(rows [][]conversation.Button) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...), true
}
