package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("defaults when file doesn't exist", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nonexistent.json")

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "/fcgi-bin/app.jar", cfg.Server.Path)
		assert.Equal(t, 30*time.Minute, cfg.Sweeper.IdleAfter)
		assert.NotEmpty(t, cfg.DataDir)
		assert.Equal(t, filepath.Join(cfg.DataDir, "sessions"), cfg.SessionsDir)
	})

	t.Run("json file", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "pointlog.json")

		testConfig := `{
			"data_dir": "` + filepath.ToSlash(dir) + `",
			"server": {"port": 9090, "allowed_origins": ["http://localhost:3000"]},
			"sweeper": {"idle_after": "5m", "retention": "720h"}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
		assert.Equal(t, 5*time.Minute, cfg.Sweeper.IdleAfter)
		assert.Equal(t, 720*time.Hour, cfg.Sweeper.Retention)
		assert.Equal(t, filepath.Join(dir, "sessions"), cfg.SessionsDir)
	})

	t.Run("yaml file", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "pointlog.yaml")

		testConfig := "sessions_dir: /srv/sessions\nlogging:\n  level: debug\n"
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)

		assert.Equal(t, "/srv/sessions", cfg.SessionsDir)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("POINTLOG_SERVER_PORT", "7070")
		t.Setenv("POINTLOG_SESSIONS_DIR", "/tmp/pointlog-env")

		cfg, err := NewLoader(filepath.Join(t.TempDir(), "missing.json")).Load()
		require.NoError(t, err)

		assert.Equal(t, 7070, cfg.Server.Port)
		assert.Equal(t, "/tmp/pointlog-env", cfg.SessionsDir)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "invalid.json")
		require.NoError(t, os.WriteFile(configPath, []byte("invalid json"), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoadConvenience(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}
