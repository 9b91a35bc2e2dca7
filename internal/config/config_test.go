package config_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/omarluq/enginesync/internal/config"
)

func TestConfigDefaults(t *testing.T) {
	var cfg config.Config

	assert.Equal(t, "enginesync", cfg.GetServiceID())
	assert.Equal(t, "http://localhost:8000", cfg.GetDefaultBaseURL())
	b := cfg.BrokerConfig()
	assert.Equal(t, "inference-engine.base-url.enginesync", b.GetQueue())
	assert.ErrorContains(t, cfg.Validate(), "redis", "the default cache mode needs an address")
}

func TestLoggingConfig_ParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"INFO":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"":      zerolog.InfoLevel,
		"trace": zerolog.InfoLevel,
	}
	for level, want := range tests {
		l := config.LoggingConfig{Level: level}
		assert.Equal(t, want, l.ParseLevel(), level)
	}
}

func TestLoggingConfig_FileOutput(t *testing.T) {
	assert.True(t, (&config.LoggingConfig{}).FileOutput().IsAbsent())
	assert.True(t, (&config.LoggingConfig{Output: "stderr"}).FileOutput().IsAbsent())

	path, ok := (&config.LoggingConfig{Output: "/var/log/enginesync.log"}).FileOutput().Get()
	assert.True(t, ok)
	assert.Equal(t, "/var/log/enginesync.log", path)
}

func TestResolvePath(t *testing.T) {
	t.Setenv("ENGINESYNC_CONFIG", "")
	assert.Equal(t, "enginesync.yaml", config.ResolvePath(""))

	t.Setenv("ENGINESYNC_CONFIG", "/etc/enginesync.toml")
	assert.Equal(t, "/etc/enginesync.toml", config.ResolvePath(""))
	assert.Equal(t, "explicit.yaml", config.ResolvePath("explicit.yaml"))
}
