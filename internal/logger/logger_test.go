package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/wfunc/rps-arena/internal/config"
)

func TestInitWritesRotatedFiles(t *testing.T) {
	dir := t.TempDir()
	err := Init(&config.LogConfig{
		Level:  "info",
		Format: "json",
		Output: "file",
		File: config.LogFileConfig{
			Path:       dir,
			Filename:   "test.log",
			MaxSize:    1,
			MaxAge:     1,
			MaxBackups: 1,
		},
		Modules: map[string]string{"ledger": "debug"},
	})
	require.NoError(t, err)

	LogGameEvent("session_created", "m-1", map[string]interface{}{"stake": 50})
	Info("hello")
	Debug("hidden")
	GetModuleLogger("ledger").Debug("ledger-debug")
	Error("boom")
	_ = Sync()

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "session_created")
	assert.Contains(t, string(data), "ledger-debug")
	assert.NotContains(t, string(data), "hidden")

	errData, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errData), "boom")
	assert.NotContains(t, string(errData), "hello")

	SetLevel("warn")
	assert.Equal(t, zapcore.WarnLevel, Level())
	SetLevel("info")

	assert.NotNil(t, GetModuleLogger("ledger"))
	assert.NotNil(t, GetModuleLogger("unknown"))
}
