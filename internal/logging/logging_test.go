package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "walletbot.log")

	logger, err := New(Options{Level: "info", File: path})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("order submitted", zap.String("symbol", "ETHUSDT"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"order submitted"`)
	assert.Contains(t, string(data), `"symbol":"ETHUSDT"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_Level(t *testing.T) {
	logger, err := New(Options{Level: "debug"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = New(Options{})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))

	_, err = New(Options{Level: "loud"})
	assert.Error(t, err)
}
