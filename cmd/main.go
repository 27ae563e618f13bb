// Command walletbot runs the Telegram wallet bot: wallet overview and
// market or limit sell orders on Binance, Bybit or a paper wallet.
//
// Usage:
//
//	walletbot --config config.yaml
//	walletbot --setup
//	walletbot (uses CLI arguments)
//
// Required environment variables (a .env file is loaded when present):
//
//	TELEGRAM_BOT_TOKEN
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/walletbot/config"
	"github.com/vadiminshakov/walletbot/internal/clients"
	"github.com/vadiminshakov/walletbot/internal/domain"
	"github.com/vadiminshakov/walletbot/internal/logging"
	"github.com/vadiminshakov/walletbot/internal/metrics"
	"github.com/vadiminshakov/walletbot/internal/services/conversation"
	"github.com/vadiminshakov/walletbot/internal/services/exchange"
	"github.com/vadiminshakov/walletbot/internal/services/order"
	"github.com/vadiminshakov/walletbot/internal/services/valuation"
	"github.com/vadiminshakov/walletbot/internal/setup"
	"github.com/vadiminshakov/walletbot/internal/storage/orderjournal"
	"github.com/vadiminshakov/walletbot/internal/storage/paperstate"
	"github.com/vadiminshakov/walletbot/internal/transport/telegram"
	"github.com/vadiminshakov/walletbot/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.RunSetup {
		path, err := setup.RunTUI()
		if err != nil {
			log.Fatal(err)
		}
		cfg, err = config.FromFile(path, os.Getenv)
		if err != nil {
			log.Fatal(err)
		}
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("walletbot stopped", zap.Error(err))
	}
	logger.Info("walletbot stopped")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	m := metrics.New()

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}
	gateway = exchange.WithRetry(exchange.WithObserver(gateway, m), logger)

	journal, err := orderjournal.Open(cfg.JournalDir)
	if err != nil {
		return err
	}
	defer journal.Close()

	engine, err := valuation.NewEngine(gateway, cfg.QuoteCurrency, logger)
	if err != nil {
		return err
	}
	submitter, err := order.NewSubmitter(gateway, journal, m, logger)
	if err != nil {
		return err
	}

	sessions := conversation.NewSessionStore(cfg.SessionTTL)
	machine, err := conversation.NewMachine(conversation.Config{
		MinDisplayValue: cfg.MinDisplayValue,
		Amounts:         domain.AmountParser{Policy: cfg.PercentPolicy},
		Prices:          domain.PriceParser{MaxDeviationPercent: cfg.LimitPriceMaxDeviation},
	}, engine, order.NewBuilder(cfg.TimeInForce), submitter, journal, sessions, logger)
	if err != nil {
		return err
	}

	api, err := tgbotapi.NewBotAPI(cfg.Secrets.TelegramToken)
	if err != nil {
		return errors.Wrap(err, "failed to connect to telegram")
	}
	bot, err := telegram.NewBot(api, machine, m, telegram.Options{
		AllowedUsers:  cfg.AllowedUsers,
		MaxPending:    cfg.MaxPending,
		WebhookSecret: cfg.Secrets.WebhookSecret,
	}, logger)
	if err != nil {
		return err
	}

	webCfg := web.Config{
		Addr:    cfg.HTTPAddr,
		Orders:  journal,
		Metrics: m.Handler(),
	}
	if cfg.WebhookURL != "" {
		webCfg.WebhookPath = cfg.WebhookPath()
		webCfg.Webhook = bot.WebhookHandler(ctx)
	}
	server := web.NewServer(webCfg, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if len(cfg.TLSDomains) > 0 {
			return server.StartWithAutoTLS(gctx, cfg.TLSDomains, cfg.CertCacheDir)
		}
		return server.Start(gctx)
	})

	g.Go(func() error {
		if cfg.WebhookURL == "" {
			// polling and webhooks are mutually exclusive on the Telegram side
			if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
				logger.Warn("failed to delete webhook", zap.Error(err))
			}
			return bot.RunPolling(gctx, api)
		}
		if err := telegram.RegisterWebhook(api, cfg.WebhookURL, cfg.Secrets.WebhookSecret); err != nil {
			return err
		}
		logger.Info("telegram webhook registered", zap.String("path", cfg.WebhookPath()))
		<-gctx.Done()
		bot.Wait()
		return nil
	})

	g.Go(func() error {
		sweepSessions(gctx, machine, sessions, m, cfg.SweepInterval, logger)
		return nil
	})

	logger.Info("walletbot started",
		zap.String("platform", cfg.Platform),
		zap.String("quote", cfg.QuoteCurrency),
		zap.Bool("webhook", cfg.WebhookURL != ""))

	return g.Wait()
}

func newGateway(cfg config.Config, logger *zap.Logger) (exchange.Gateway, error) {
	switch cfg.Platform {
	case config.PlatformBinance:
		client := clients.NewBinanceClient(cfg.Secrets.BinanceAPIKey, cfg.Secrets.BinanceAPISecret, cfg.Testnet)
		return exchange.NewBinanceGateway(client), nil
	case config.PlatformBybit:
		client := clients.NewBybitClient(cfg.Secrets.BybitAPIKey, cfg.Secrets.BybitAPISecret)
		return exchange.NewBybitGateway(client), nil
	case config.PlatformPaper:
		store, err := paperstate.NewStore(cfg.PaperStateDir)
		if err != nil {
			return nil, err
		}
		market := exchange.NewBinanceGateway(clients.NewMarketDataClient())
		paper, err := exchange.NewPaperGateway(cfg.QuoteCurrency, market, store, cfg.PaperBalances, logger)
		if err != nil {
			return nil, err
		}
		return paper, nil
	default:
		return nil, errors.Errorf("unsupported platform %q", cfg.Platform)
	}
}

// sweepSessions evicts idle sessions until ctx is done.
func sweepSessions(ctx context.Context, machine *conversation.Machine, sessions *conversation.SessionStore,
	m *metrics.Metrics, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if evicted := machine.Sweep(now); evicted > 0 {
				logger.Debug("idle sessions evicted", zap.Int("count", evicted))
			}
			m.SetActiveSessions(sessions.Len())
		}
	}
}
