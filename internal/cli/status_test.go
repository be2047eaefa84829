package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harun/pointlog/pkg/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCommand(t *testing.T) {
	t.Run("stopped with no sessions", func(t *testing.T) {
		path, _ := writeTestConfig(t)

		out, err := execute(t, "status", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Status: stopped")
		assert.Contains(t, out, "Stored sessions: 0")
	})

	t.Run("running with sessions", func(t *testing.T) {
		path, dataDir := writeTestConfig(t)

		files := session.NewFiles(filepath.Join(dataDir, "sessions"), zerolog.Nop())
		require.NoError(t, files.Bootstrap())
		require.NoError(t, files.Save(context.Background(), "abc", nil))
		require.NoError(t, writePIDFile(filepath.Join(dataDir, "pointlog.pid")))

		out, err := execute(t, "status", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Status: running")
		assert.Contains(t, out, "Stored sessions: 1")
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"seconds only", 45 * time.Second, "45s"},
		{"minutes and seconds", 5*time.Minute + 30*time.Second, "5m30s"},
		{"hours minutes seconds", 2*time.Hour + 15*time.Minute + 10*time.Second, "2h15m10s"},
		{"rounds", 1500 * time.Millisecond, "2s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDuration(tt.duration))
		})
	}
}

func TestStopCommandNotRunning(t *testing.T) {
	path, dataDir := writeTestConfig(t)
	pidFile := filepath.Join(dataDir, "pointlog.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte("not-a-pid"), 0600))

	_, err := execute(t, "stop", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")

	_, statErr := os.Stat(pidFile)
	assert.True(t, os.IsNotExist(statErr), "stale PID file is removed")
}
