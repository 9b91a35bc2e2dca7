// Package config provides configuration loading and parsing for enginesync.
package config

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/mo"

	"github.com/omarluq/enginesync/internal/broker"
	"github.com/omarluq/enginesync/internal/cache"
	"github.com/omarluq/enginesync/internal/consumer"
	"github.com/omarluq/enginesync/internal/resilience"
)

// Defaults for top-level settings.
const (
	DefaultServiceID  = "enginesync"
	DefaultBaseURL    = "http://localhost:8000"
	DefaultConfigFile = "enginesync.yaml"
)

// RuntimeConfig defines the interface for accessing runtime configuration that supports hot-reload.
// Components that need to observe config changes should use this interface instead of
// holding a direct *Config pointer, which would become stale after hot-reload.
type RuntimeConfig interface {
	Get() *Config
}

// Log level constants.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Config is the root configuration.
type Config struct {
	ServiceID      string                          `yaml:"service_id" toml:"service_id"`
	DefaultBaseURL string                          `yaml:"default_base_url" toml:"default_base_url"`
	Logging        LoggingConfig                   `yaml:"logging" toml:"logging"`
	Broker         broker.Config                   `yaml:"broker" toml:"broker"`
	Cache          cache.Config                    `yaml:"cache" toml:"cache"`
	Retry          resilience.RetryConfig          `yaml:"retry" toml:"retry"`
	CircuitBreaker resilience.CircuitBreakerConfig `yaml:"circuit_breaker" toml:"circuit_breaker"`
	Consumer       consumer.Config                 `yaml:"consumer" toml:"consumer"`
}

// GetServiceID returns the service identifier or the default.
func (c *Config) GetServiceID() string {
	if c.ServiceID == "" {
		return DefaultServiceID
	}
	return c.ServiceID
}

// GetDefaultBaseURL returns the static fallback base URL.
func (c *Config) GetDefaultBaseURL() string {
	if c.DefaultBaseURL == "" {
		return DefaultBaseURL
	}
	return c.DefaultBaseURL
}

// BrokerConfig returns the broker section with the service ID filled in.
func (c *Config) BrokerConfig() broker.Config {
	b := c.Broker
	b.ServiceID = c.GetServiceID()
	return b
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // json, console, pretty
	Output string `yaml:"output" toml:"output"` // stdout, stderr, or file path
	Pretty bool   `yaml:"pretty" toml:"pretty"` // enable colored console output
}

// ParseLevel converts a string log level to zerolog.Level.
// Returns zerolog.InfoLevel if the level string is invalid.
func (l *LoggingConfig) ParseLevel() zerolog.Level {
	switch strings.ToLower(l.Level) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// FileOutput returns the log file path when output is neither stdout nor stderr.
func (l *LoggingConfig) FileOutput() mo.Option[string] {
	switch l.Output {
	case "", "stdout", "stderr":
		return mo.None[string]()
	default:
		return mo.Some(l.Output)
	}
}

// ResolvePath returns the config file to use: the explicit path if given,
// else $ENGINESYNC_CONFIG, else DefaultConfigFile.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("ENGINESYNC_CONFIG"); env != "" {
		return env
	}
	return DefaultConfigFile
}
