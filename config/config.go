// Package config loads the bot configuration from a YAML file or CLI flags.
// Secrets always come from the environment.
package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/walletbot/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	PlatformBinance = "binance"
	PlatformBybit   = "bybit"
	PlatformPaper   = "paper"
)

const (
	defaultQuoteCurrency   = "USDT"
	defaultMinDisplayValue = "1"
	defaultSessionTTL      = 15 * time.Minute
	defaultSweepInterval   = time.Minute
	defaultJournalDir      = "./wal/orders"
	defaultPaperStateDir   = "./wal/paper"
	defaultHTTPAddr        = ":8080"
	defaultCertCacheDir    = "cert-cache"
	defaultMaxPending      = 32
	defaultLogLevel        = "info"
)

// Secrets are read from the environment only.
// WebhookSecret is echoed back by Telegram on every webhook delivery; a
// random one is generated per run when TELEGRAM_WEBHOOK_SECRET is unset.
type Secrets struct {
	TelegramToken    string
	BinanceAPIKey    string
	BinanceAPISecret string
	BybitAPIKey      string
	BybitAPISecret   string
	WebhookSecret    string
}

// Config is the validated runtime configuration.
type Config struct {
	Platform               string
	QuoteCurrency          string
	MinDisplayValue        decimal.Decimal
	TimeInForce            domain.TimeInForce
	PercentPolicy          domain.PercentPolicy
	LimitPriceMaxDeviation decimal.Decimal
	SessionTTL             time.Duration
	SweepInterval          time.Duration
	JournalDir             string
	PaperStateDir          string
	PaperBalances          map[string]decimal.Decimal
	HTTPAddr               string
	TLSDomains             []string
	CertCacheDir           string
	WebhookURL             string
	AllowedUsers           []int64
	MaxPending             int
	LogLevel               string
	LogFile                string
	Testnet                bool
	Secrets                Secrets

	// RunSetup is set by --setup; the caller runs the wizard before using the config.
	RunSetup bool
}

// ConfigTmp mirrors the YAML file. Decimals stay strings until validated.
type ConfigTmp struct {
	Platform               string            `yaml:"platform"`
	QuoteCurrency          string            `yaml:"quote_currency,omitempty"`
	MinDisplayValue        string            `yaml:"min_display_value,omitempty"`
	TimeInForce            string            `yaml:"time_in_force,omitempty"`
	PercentPolicy          string            `yaml:"percent_policy,omitempty"`
	LimitPriceMaxDeviation string            `yaml:"limit_price_max_deviation,omitempty"`
	SessionTTL             time.Duration     `yaml:"session_ttl,omitempty"`
	SweepInterval          time.Duration     `yaml:"sweep_interval,omitempty"`
	JournalDir             string            `yaml:"journal_dir,omitempty"`
	PaperStateDir          string            `yaml:"paper_state_dir,omitempty"`
	PaperBalances          map[string]string `yaml:"paper_balances,omitempty"`
	HTTPAddr               string            `yaml:"http_addr,omitempty"`
	TLSDomains             []string          `yaml:"tls_domains,omitempty"`
	CertCacheDir           string            `yaml:"cert_cache_dir,omitempty"`
	WebhookURL             string            `yaml:"webhook_url,omitempty"`
	AllowedUsers           []int64           `yaml:"allowed_users,omitempty"`
	MaxPending             int               `yaml:"max_pending,omitempty"`
	LogLevel               string            `yaml:"log_level,omitempty"`
	LogFile                string            `yaml:"log_file,omitempty"`
	Testnet                bool              `yaml:"testnet,omitempty"`
}

// Get reads the configuration from the process arguments and environment.
func Get() (Config, error) {
	return Load(os.Args[1:], os.Getenv)
}

// Load parses args. With --config the YAML file is used and other flags are ignored.
func Load(args []string, getenv func(string) string) (Config, error) {
	fs := flag.NewFlagSet("walletbot", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to yaml config")
	setup := fs.Bool("setup", false, "run the interactive config wizard")
	platform := fs.String("platform", PlatformPaper, "exchange platform: binance, bybit or paper")
	quote := fs.String("quote", defaultQuoteCurrency, "quote currency, example: USDT")
	minValue := fs.String("minvalue", defaultMinDisplayValue, "hide wallet items worth less than this in quote currency")
	tif := fs.String("tif", string(domain.TimeInForceGTC), "time in force for limit orders: GTC, IOC or FOK")
	percentPolicy := fs.String("percentpolicy", string(domain.PercentPolicyReject), "percent above 100: reject or cap")
	maxDeviation := fs.String("maxdeviation", "0", "max limit price deviation from last price in percent, 0 disables")
	sessionTTL := fs.Duration("sessionttl", defaultSessionTTL, "idle session lifetime")
	sweepInterval := fs.Duration("sweepinterval", defaultSweepInterval, "idle session sweep interval")
	journalDir := fs.String("journaldir", defaultJournalDir, "order journal directory")
	paperStateDir := fs.String("paperstatedir", defaultPaperStateDir, "paper trading state directory")
	paperBalances := fs.String("paperbalances", "USDT:1000", "paper balances, example: USDT:1000,BTC:0.1")
	httpAddr := fs.String("http", defaultHTTPAddr, "status server address")
	tlsDomains := fs.String("tlsdomains", "", "comma separated domains for automatic TLS")
	webhookURL := fs.String("webhook", "", "public webhook URL; polling is used when empty")
	allowedUsers := fs.String("allowedusers", "", "comma separated telegram user ids allowed to use the bot")
	logLevel := fs.String("loglevel", defaultLogLevel, "log level: debug, info, warn or error")
	logFile := fs.String("logfile", "", "optional rotated log file")
	testnet := fs.Bool("testnet", false, "use the exchange testnet")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if *configPath != "" {
		loaded, err := readYaml(*configPath)
		if err != nil {
			return Config{}, err
		}
		tmp = loaded
	} else {
		balances, err := parseBalanceList(*paperBalances)
		if err != nil {
			return Config{}, errors.Wrapf(err, "invalid --paperbalances provided, --paperbalances=%s", *paperBalances)
		}
		users, err := parseUserList(*allowedUsers)
		if err != nil {
			return Config{}, errors.Wrapf(err, "invalid --allowedusers provided, --allowedusers=%s", *allowedUsers)
		}
		tmp = ConfigTmp{
			Platform:               *platform,
			QuoteCurrency:          *quote,
			MinDisplayValue:        *minValue,
			TimeInForce:            *tif,
			PercentPolicy:          *percentPolicy,
			LimitPriceMaxDeviation: *maxDeviation,
			SessionTTL:             *sessionTTL,
			SweepInterval:          *sweepInterval,
			JournalDir:             *journalDir,
			PaperStateDir:          *paperStateDir,
			PaperBalances:          balances,
			HTTPAddr:               *httpAddr,
			TLSDomains:             splitList(*tlsDomains),
			WebhookURL:             *webhookURL,
			AllowedUsers:           users,
			LogLevel:               *logLevel,
			LogFile:                *logFile,
			Testnet:                *testnet,
		}
	}

	cfg, err := tmp.toConfig()
	if err != nil {
		return Config{}, err
	}
	cfg.RunSetup = *setup
	cfg.Secrets = readSecrets(getenv)
	cfg.ensureWebhookSecret()

	if cfg.RunSetup {
		// the wizard produces the real config; secrets are checked after it
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromFile loads and validates a YAML config.
func FromFile(path string, getenv func(string) string) (Config, error) {
	tmp, err := readYaml(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := tmp.toConfig()
	if err != nil {
		return Config{}, err
	}
	cfg.Secrets = readSecrets(getenv)
	cfg.ensureWebhookSecret()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) ensureWebhookSecret() {
	if c.WebhookURL != "" && c.Secrets.WebhookSecret == "" {
		c.Secrets.WebhookSecret = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
}

// Validate checks cross-field rules and required secrets.
func (c Config) Validate() error {
	switch c.Platform {
	case PlatformBinance:
		if c.Secrets.BinanceAPIKey == "" || c.Secrets.BinanceAPISecret == "" {
			return errors.New("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
		}
	case PlatformBybit:
		if c.Secrets.BybitAPIKey == "" || c.Secrets.BybitAPISecret == "" {
			return errors.New("BYBIT_API_KEY and BYBIT_API_SECRET environment variables must be set")
		}
	case PlatformPaper:
		if len(c.PaperBalances) == 0 {
			return errors.New("paper platform needs at least one paper balance")
		}
	default:
		return fmt.Errorf("unsupported platform %q", c.Platform)
	}

	// real funds are never exposed to every Telegram user
	if c.Platform != PlatformPaper && len(c.AllowedUsers) == 0 {
		return fmt.Errorf("'allowed_users' must list at least one telegram user id for platform %s", c.Platform)
	}
	if err := c.validateWebhook(); err != nil {
		return err
	}

	if c.Secrets.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN environment variable must be set")
	}
	if c.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	if c.SessionTTL < 0 {
		return errors.New("session ttl must not be negative")
	}
	return nil
}

func (c Config) validateWebhook() error {
	if c.WebhookURL == "" {
		return nil
	}
	u, err := url.Parse(c.WebhookURL)
	if err != nil {
		return errors.Wrapf(err, "incorrect 'webhook_url' param: %s", c.WebhookURL)
	}
	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("incorrect 'webhook_url' param (must be an absolute https URL): %s", c.WebhookURL)
	}
	if u.Path == "" || u.Path == "/" || strings.HasSuffix(u.Path, "/") {
		return fmt.Errorf("incorrect 'webhook_url' param (needs a dedicated path, example: https://bot.example.com/telegram): %s", c.WebhookURL)
	}
	if !validWebhookSecret(c.Secrets.WebhookSecret) {
		return errors.New("TELEGRAM_WEBHOOK_SECRET must be 1-256 characters of A-Z, a-z, 0-9, _ or -")
	}
	return nil
}

// WebhookPath is the path part of WebhookURL, served by the status server.
func (c Config) WebhookPath() string {
	if c.WebhookURL == "" {
		return ""
	}
	u, err := url.Parse(c.WebhookURL)
	if err != nil {
		return ""
	}
	return u.Path
}

func validWebhookSecret(s string) bool {
	if s == "" || len(s) > 256 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

func (c ConfigTmp) toConfig() (Config, error) {
	cfg := Config{
		Platform:      strings.ToLower(strings.TrimSpace(c.Platform)),
		QuoteCurrency: strings.ToUpper(strings.TrimSpace(c.QuoteCurrency)),
		SessionTTL:    c.SessionTTL,
		SweepInterval: c.SweepInterval,
		JournalDir:    c.JournalDir,
		PaperStateDir: c.PaperStateDir,
		HTTPAddr:      c.HTTPAddr,
		TLSDomains:    c.TLSDomains,
		CertCacheDir:  c.CertCacheDir,
		WebhookURL:    c.WebhookURL,
		AllowedUsers:  c.AllowedUsers,
		MaxPending:    c.MaxPending,
		LogLevel:      c.LogLevel,
		LogFile:       c.LogFile,
		Testnet:       c.Testnet,
	}

	if cfg.QuoteCurrency == "" {
		cfg.QuoteCurrency = defaultQuoteCurrency
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.JournalDir == "" {
		cfg.JournalDir = defaultJournalDir
	}
	if cfg.PaperStateDir == "" {
		cfg.PaperStateDir = defaultPaperStateDir
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	if cfg.CertCacheDir == "" {
		cfg.CertCacheDir = defaultCertCacheDir
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = defaultMaxPending
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	minValue := c.MinDisplayValue
	if minValue == "" {
		minValue = defaultMinDisplayValue
	}
	var err error
	cfg.MinDisplayValue, err = decimal.NewFromString(minValue)
	if err != nil || cfg.MinDisplayValue.IsNegative() {
		return Config{}, fmt.Errorf("incorrect 'min_display_value' param in yaml config (must be a non-negative decimal): %s", minValue)
	}

	cfg.TimeInForce, err = domain.ParseTimeInForce(c.TimeInForce)
	if err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'time_in_force' param")
	}
	cfg.PercentPolicy, err = domain.ParsePercentPolicy(c.PercentPolicy)
	if err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'percent_policy' param")
	}

	cfg.LimitPriceMaxDeviation = decimal.Zero
	if c.LimitPriceMaxDeviation != "" {
		cfg.LimitPriceMaxDeviation, err = decimal.NewFromString(c.LimitPriceMaxDeviation)
		if err != nil || cfg.LimitPriceMaxDeviation.IsNegative() {
			return Config{}, fmt.Errorf("incorrect 'limit_price_max_deviation' param in yaml config (must be a non-negative decimal): %s", c.LimitPriceMaxDeviation)
		}
	}

	cfg.PaperBalances = make(map[string]decimal.Decimal, len(c.PaperBalances))
	for asset, amount := range c.PaperBalances {
		v, err := decimal.NewFromString(amount)
		if err != nil || v.IsNegative() {
			return Config{}, fmt.Errorf("incorrect 'paper_balances' amount for %s: %s", asset, amount)
		}
		cfg.PaperBalances[strings.ToUpper(asset)] = v
	}

	return cfg, nil
}

func readYaml(path string) (ConfigTmp, error) {
	var tmp ConfigTmp

	f, err := os.ReadFile(path)
	if err != nil {
		return ConfigTmp{}, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return ConfigTmp{}, errors.Wrap(err, "failed to parse yaml config")
	}
	return tmp, nil
}

func readSecrets(getenv func(string) string) Secrets {
	if getenv == nil {
		getenv = os.Getenv
	}
	return Secrets{
		TelegramToken:    getenv("TELEGRAM_BOT_TOKEN"),
		BinanceAPIKey:    getenv("BINANCE_API_KEY"),
		BinanceAPISecret: getenv("BINANCE_API_SECRET"),
		BybitAPIKey:      getenv("BYBIT_API_KEY"),
		BybitAPISecret:   getenv("BYBIT_API_SECRET"),
		WebhookSecret:    getenv("TELEGRAM_WEBHOOK_SECRET"),
	}
}

// parseBalanceList parses "USDT:1000,BTC:0.1".
func parseBalanceList(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, item := range splitList(s) {
		parts := strings.Split(item, ":")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid balance %q, expected ASSET:AMOUNT", item)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}

func parseUserList(s string) ([]int64, error) {
	var out []int64
	for _, item := range splitList(s) {
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
