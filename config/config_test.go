package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/walletbot/internal/domain"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

var telegramOnly = env(map[string]string{"TELEGRAM_BOT_TOKEN": "token"})

var withKeys = env(map[string]string{
	"TELEGRAM_BOT_TOKEN": "token",
	"BINANCE_API_KEY":    "key",
	"BINANCE_API_SECRET": "secret",
	"BYBIT_API_KEY":      "key",
	"BYBIT_API_SECRET":   "secret",
})

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil, telegramOnly)
	require.NoError(t, err)

	assert.Equal(t, PlatformPaper, cfg.Platform)
	assert.Equal(t, "USDT", cfg.QuoteCurrency)
	assert.True(t, cfg.MinDisplayValue.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, domain.TimeInForceGTC, cfg.TimeInForce)
	assert.Equal(t, domain.PercentPolicyReject, cfg.PercentPolicy)
	assert.True(t, cfg.LimitPriceMaxDeviation.IsZero())
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, defaultMaxPending, cfg.MaxPending)
	assert.True(t, cfg.PaperBalances["USDT"].Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, "token", cfg.Secrets.TelegramToken)
	assert.Empty(t, cfg.WebhookPath())
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := Load([]string{
		"--quote", "usdc",
		"--tif", "ioc",
		"--percentpolicy", "cap",
		"--maxdeviation", "15",
		"--paperbalances", "USDC:50, eth:2",
		"--allowedusers", "1,2",
		"--webhook", "https://bot.example.com/telegram/hook",
	}, telegramOnly)
	require.NoError(t, err)

	assert.Equal(t, "USDC", cfg.QuoteCurrency)
	assert.Equal(t, domain.TimeInForceIOC, cfg.TimeInForce)
	assert.Equal(t, domain.PercentPolicyCap, cfg.PercentPolicy)
	assert.True(t, cfg.LimitPriceMaxDeviation.Equal(decimal.NewFromInt(15)))
	assert.True(t, cfg.PaperBalances["ETH"].Equal(decimal.NewFromInt(2)))
	assert.Equal(t, []int64{1, 2}, cfg.AllowedUsers)
	assert.Equal(t, "/telegram/hook", cfg.WebhookPath())
	assert.NotEmpty(t, cfg.Secrets.WebhookSecret, "a secret is generated for webhook mode")
}

func TestLoad_WebhookSecretFromEnv(t *testing.T) {
	cfg, err := Load([]string{"--webhook", "https://bot.example.com/tg"}, env(map[string]string{
		"TELEGRAM_BOT_TOKEN":      "token",
		"TELEGRAM_WEBHOOK_SECRET": "my_secret-1",
	}))
	require.NoError(t, err)
	assert.Equal(t, "my_secret-1", cfg.Secrets.WebhookSecret)

	cfg, err = Load(nil, telegramOnly)
	require.NoError(t, err)
	assert.Empty(t, cfg.Secrets.WebhookSecret, "polling mode needs no secret")
}

func TestLoad_Yaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
platform: binance
quote_currency: USDT
min_display_value: "2.5"
session_ttl: 5m
allowed_users: [42]
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load([]string{"--config", path}, telegramOnly)
	require.Error(t, err, "binance keys are required")

	cfg, err := Load([]string{"--config", path}, env(map[string]string{
		"TELEGRAM_BOT_TOKEN": "token",
		"BINANCE_API_KEY":    "key",
		"BINANCE_API_SECRET": "secret",
	}))
	require.NoError(t, err)
	assert.Equal(t, PlatformBinance, cfg.Platform)
	assert.True(t, cfg.MinDisplayValue.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []int64{42}, cfg.AllowedUsers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "key", cfg.Secrets.BinanceAPIKey)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  func(string) string
	}{
		{name: "missing telegram token", args: nil, env: env(nil)},
		{name: "unknown platform", args: []string{"--platform", "kraken"}, env: telegramOnly},
		{name: "bybit without keys", args: []string{"--platform", "bybit"}, env: telegramOnly},
		{name: "bad min value", args: []string{"--minvalue", "abc"}, env: telegramOnly},
		{name: "negative deviation", args: []string{"--maxdeviation", "-1"}, env: telegramOnly},
		{name: "bad tif", args: []string{"--tif", "DAY"}, env: telegramOnly},
		{name: "bad percent policy", args: []string{"--percentpolicy", "wrap"}, env: telegramOnly},
		{name: "bad balance list", args: []string{"--paperbalances", "USDT"}, env: telegramOnly},
		{name: "empty paper balances", args: []string{"--paperbalances", ""}, env: telegramOnly},
		{name: "bad user list", args: []string{"--allowedusers", "alice"}, env: telegramOnly},
		{name: "binance without allowed users", args: []string{"--platform", "binance"}, env: withKeys},
		{name: "bybit without allowed users", args: []string{"--platform", "bybit"}, env: withKeys},
		{name: "webhook without path", args: []string{"--webhook", "https://bot.example.com"}, env: telegramOnly},
		{name: "webhook on root", args: []string{"--webhook", "https://bot.example.com/"}, env: telegramOnly},
		{name: "webhook subtree", args: []string{"--webhook", "https://bot.example.com/tg/"}, env: telegramOnly},
		{name: "plain http webhook", args: []string{"--webhook", "http://bot.example.com/tg"}, env: telegramOnly},
		{name: "bad webhook secret", args: []string{"--webhook", "https://bot.example.com/tg"}, env: env(map[string]string{
			"TELEGRAM_BOT_TOKEN":      "token",
			"TELEGRAM_WEBHOOK_SECRET": "has spaces",
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args, tt.env)
			assert.Error(t, err)
		})
	}
}

func TestLoad_ExchangeWithAllowedUsers(t *testing.T) {
	for _, platform := range []string{PlatformBinance, PlatformBybit} {
		cfg, err := Load([]string{"--platform", platform, "--allowedusers", "7"}, withKeys)
		require.NoError(t, err, platform)
		assert.Equal(t, []int64{7}, cfg.AllowedUsers)
	}
}

func TestLoad_SetupSkipsValidation(t *testing.T) {
	cfg, err := Load([]string{"--setup"}, env(nil))
	require.NoError(t, err)
	assert.True(t, cfg.RunSetup)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("platform: paper\npaper_balances:\n  USDT: \"100\"\n"), 0o644))

	cfg, err := FromFile(path, telegramOnly)
	require.NoError(t, err)
	assert.True(t, cfg.PaperBalances["USDT"].Equal(decimal.NewFromInt(100)))

	_, err = FromFile(filepath.Join(t.TempDir(), "missing.yaml"), telegramOnly)
	assert.Error(t, err)
}
