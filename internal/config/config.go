package config

import (
	"encoding/json"
	"time"
)

// Config represents the pointlog configuration
type Config struct {
	// Data directory; defaults to $HOME/.pointlog
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Directory holding <sessionId>.session files; defaults to <data_dir>/sessions
	SessionsDir string `json:"sessions_dir" mapstructure:"sessions_dir"`

	// Audit log for session deletions; empty writes to stderr
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`

	Server  ServerConfig  `json:"server" mapstructure:"server"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Sweeper SweeperConfig `json:"sweeper" mapstructure:"sweeper"`
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string        `json:"host" mapstructure:"host"`
	Port               int           `json:"port" mapstructure:"port"`
	Path               string        `json:"path" mapstructure:"path"`
	AllowedOrigins     []string      `json:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimitPerMinute int           `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	RequestTimeout     time.Duration `json:"request_timeout" mapstructure:"request_timeout"`
	ReadTimeout        time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// SweeperConfig holds session housekeeping configuration
type SweeperConfig struct {
	Enabled   bool          `json:"enabled" mapstructure:"enabled"`
	Schedule  string        `json:"schedule" mapstructure:"schedule"`
	IdleAfter time.Duration `json:"idle_after" mapstructure:"idle_after"`
	Retention time.Duration `json:"retention" mapstructure:"retention"` // 0 keeps files forever
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			Path:               "/fcgi-bin/app.jar",
			AllowedOrigins:     []string{"*"},
			RateLimitPerMinute: 120,
			RequestTimeout:     10 * time.Second,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Console:  true,
			Pretty:   true,
			MaxSize:  100,
			MaxAge:   7,
			Compress: true,
		},
		Sweeper: SweeperConfig{
			Enabled:   true,
			Schedule:  "@every 10m",
			IdleAfter: 30 * time.Minute,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "pointlog",
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return NewValidator().ValidateConfig(c)
}
