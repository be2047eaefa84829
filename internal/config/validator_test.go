package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatorFields(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidatePort(8080))
	assert.Error(t, v.ValidatePort(0))
	assert.Error(t, v.ValidatePort(70000))

	assert.NoError(t, v.ValidatePath("/fcgi-bin/app.jar"))
	assert.Error(t, v.ValidatePath("app.jar"))

	assert.NoError(t, v.ValidateLogLevel("debug"))
	assert.Error(t, v.ValidateLogLevel("verbose"))

	assert.NoError(t, v.ValidateSchedule("@every 5m"))
	assert.NoError(t, v.ValidateSchedule("0 3 * * *"))
	assert.Error(t, v.ValidateSchedule("every five minutes"))
}

func TestValidateConfig(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, DefaultConfig().Validate())
	})

	t.Run("collects every problem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.Port = 0
		cfg.Server.Path = "nope"
		cfg.Logging.Level = "loud"
		cfg.Sweeper.Schedule = "sometimes"

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "port")
		assert.Contains(t, err.Error(), "server path")
		assert.Contains(t, err.Error(), "log level")
		assert.Contains(t, err.Error(), "schedule")
	})

	t.Run("disabled sweeper skips schedule", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Sweeper.Enabled = false
		cfg.Sweeper.Schedule = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("tracing needs service name", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Tracing.Enabled = true
		cfg.Tracing.ServiceName = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("sample ratio out of range", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Tracing.SampleRatio = 1.5
		assert.ErrorContains(t, cfg.Validate(), "sample ratio")
	})
}

func TestConfigString(t *testing.T) {
	s := DefaultConfig().String()
	assert.Contains(t, s, `"port": 8080`)
}
