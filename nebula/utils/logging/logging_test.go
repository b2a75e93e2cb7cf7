package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoggersUsableBeforeInit(t *testing.T) {
	require.NotPanics(t, func() {
		AppLogger.Info("before init")
		LogDuration(context.Background(), "noop")()
	})
}

func TestInitLogger_WritesRotatedFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, InitLogger(dir))
	t.Cleanup(func() {
		AppLogger, RequestLogger, TimerLogger, ErrorLogger = zap.NewNop(), zap.NewNop(), zap.NewNop(), zap.NewNop()
	})

	AppLogger.Info("hello", zap.String("k", "v"))
	ErrorLogger.Error("boom")
	LogDuration(WithTraceID(context.Background(), "abc"), "timed")()
	Sync()

	for _, name := range []string{"app.log", "error.log", "timer.log"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		require.NotEmpty(t, data, name)
	}
	timer, err := os.ReadFile(filepath.Join(dir, "timer.log"))
	require.NoError(t, err)
	require.Contains(t, string(timer), `"trace_id":"abc"`)
	require.Contains(t, string(timer), `"func":"timed"`)
}
