package log

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"testing"
)

func TestDefaultLoggerIsUsable(t *testing.T) {
	require.NotNil(t, Logger)
	Logger.Info("discarded", zap.Int("n", 1))
}

func TestInitLogger(t *testing.T) {
	old := Logger
	defer func() { Logger = old }()

	require.NoError(t, InitLogger("warn", false))
	assert.False(t, Logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Logger.Core().Enabled(zapcore.WarnLevel))

	require.NoError(t, InitLogger("debug", true))
	assert.True(t, Logger.Core().Enabled(zapcore.DebugLevel))
}

func TestInitLoggerBadLevel(t *testing.T) {
	old := Logger
	defer func() { Logger = old }()

	assert.Error(t, InitLogger("loud", false))
	assert.Same(t, old, Logger)
}
