package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_LevelGatesOutput(t *testing.T) {
	log, err := New(&Config{Level: "warn", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	log, err := New(&Config{Level: "verbose", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("written to file")
	require.NoError(t, Sync(log))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.Contains(t, string(data), `"level":"info"`)
}

func TestNew_UnwritableOutputFallsBackToStdout(t *testing.T) {
	log, err := New(&Config{Level: "info", Format: "console", Output: "/nonexistent-dir/app.log"})
	require.NoError(t, err)
	assert.NotPanics(t, func() { log.Info("still usable") })
}
