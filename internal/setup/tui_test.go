package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/walletbot/config"
)

func TestWrite_ProducesLoadableConfig(t *testing.T) {
	a := defaultAnswers()
	a.QuoteCurrency = "usdt"
	a.PaperBalances = "usdt:250, ETH:1.5"
	a.AllowedUsers = "7, 8"
	a.SessionTTL = "5m"

	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, Write(path, a))

	cfg, err := config.FromFile(path, func(key string) string {
		if key == "TELEGRAM_BOT_TOKEN" {
			return "token"
		}
		return ""
	})
	require.NoError(t, err)

	assert.Equal(t, config.PlatformPaper, cfg.Platform)
	assert.Equal(t, "USDT", cfg.QuoteCurrency)
	assert.True(t, cfg.PaperBalances["ETH"].Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, []int64{7, 8}, cfg.AllowedUsers)
	assert.Equal(t, "5m0s", cfg.SessionTTL.String())
}

func TestWrite_RejectsBadAnswers(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)

	a := defaultAnswers()
	a.SessionTTL = "soon"
	assert.Error(t, Write(path, a))

	a = defaultAnswers()
	a.PaperBalances = ""
	assert.Error(t, Write(path, a))

	a = defaultAnswers()
	a.Platform = config.PlatformBinance
	a.AllowedUsers = ""
	assert.Error(t, Write(path, a))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateTicker("usdc"))
	assert.Error(t, validateTicker(""))
	assert.Error(t, validateTicker("US_DT"))

	assert.NoError(t, validateNonNegative("0"))
	assert.Error(t, validateNonNegative("-1"))
	assert.Error(t, validateNonNegative("ten"))

	assert.NoError(t, validateUsers(""))
	assert.Error(t, validateUsers("1,x"))
	assert.NoError(t, validateAllowedUsers(config.PlatformPaper, ""))
	assert.Error(t, validateAllowedUsers(config.PlatformBinance, ""))
	assert.Error(t, validateAllowedUsers(config.PlatformBybit, " , "))
	assert.NoError(t, validateAllowedUsers(config.PlatformBybit, "42"))
	assert.Error(t, validateBalances("BTC=1"))
}
