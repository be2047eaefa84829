package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidatePath validates the HTTP path the calculation endpoint is mounted on
func (v *Validator) ValidatePath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("server path must start with /, got %q", path)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateSchedule validates a standard cron expression or @descriptor
func (v *Validator) ValidateSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid sweeper schedule %q: %w", schedule, err)
	}
	return nil
}

// ValidateConfig performs comprehensive validation and joins every problem
// found into one error.
func (v *Validator) ValidateConfig(cfg *Config) error {
	var errs []error

	if err := v.ValidatePort(cfg.Server.Port); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidatePath(cfg.Server.Path); err != nil {
		errs = append(errs, err)
	}
	if cfg.Server.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("rate limit must not be negative, got %d", cfg.Server.RateLimitPerMinute))
	}
	if cfg.Server.RequestTimeout < 0 || cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("server timeouts must not be negative"))
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if cfg.Sweeper.Enabled {
		if err := v.ValidateSchedule(cfg.Sweeper.Schedule); err != nil {
			errs = append(errs, err)
		}
		if cfg.Sweeper.IdleAfter < 0 || cfg.Sweeper.Retention < 0 {
			errs = append(errs, fmt.Errorf("sweeper durations must not be negative"))
		}
	}
	if cfg.Tracing.Enabled && cfg.Tracing.ServiceName == "" {
		errs = append(errs, fmt.Errorf("tracing service name is required when tracing is enabled"))
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing sample ratio must be between 0 and 1, got %g", cfg.Tracing.SampleRatio))
	}

	return errors.Join(errs...)
}
