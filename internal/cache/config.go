package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"
)

// Mode represents the cache operating mode.
type Mode string

const (
	// ModeRedis persists to an external Redis server (default).
	ModeRedis Mode = "redis"

	// ModeHA uses a distributed Olric map.
	ModeHA Mode = "ha"

	// ModeSingle uses a local Ristretto cache. Nothing survives a restart.
	ModeSingle Mode = "single"

	// ModeDisabled stores nothing.
	ModeDisabled Mode = "disabled"
)

// Defaults for the base-URL cache entry.
const (
	DefaultKey      = "InferenceEngine:BaseUrl"
	DefaultTTLHours = 7 * 24
)

// Config defines cache configuration.
type Config struct {
	Mode      Mode            `yaml:"mode" toml:"mode"`
	Key       string          `yaml:"key" toml:"key"`
	Redis     RedisConfig     `yaml:"redis" toml:"redis"`
	Olric     OlricConfig     `yaml:"olric" toml:"olric"`
	Ristretto RistrettoConfig `yaml:"ristretto" toml:"ristretto"`
	TTLHours  int             `yaml:"ttl_hours" toml:"ttl_hours"`
}

// RedisConfig configures the Redis backend.
// URL takes precedence over Addr/Password/DB when set.
type RedisConfig struct {
	URL            string `yaml:"url" toml:"url"`
	Addr           string `yaml:"addr" toml:"addr"`
	Password       string `yaml:"password" toml:"password"`
	DB             int    `yaml:"db" toml:"db"`
	DialTimeoutMS  int    `yaml:"dial_timeout_ms" toml:"dial_timeout_ms"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms" toml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms" toml:"write_timeout_ms"`
}

// RistrettoConfig configures the Ristretto local cache.
type RistrettoConfig struct {
	NumCounters int64 `yaml:"num_counters" toml:"num_counters"`
	MaxCost     int64 `yaml:"max_cost" toml:"max_cost"`
	BufferItems int64 `yaml:"buffer_items" toml:"buffer_items"`
}

// OlricConfig configures the Olric distributed map.
// Embedded mode runs a node in-process; otherwise Addresses lists cluster members.
type OlricConfig struct {
	DMapName  string   `yaml:"dmap_name" toml:"dmap_name"`
	BindAddr  string   `yaml:"bind_addr" toml:"bind_addr"`
	Addresses []string `yaml:"addresses" toml:"addresses"`
	Peers     []string `yaml:"peers" toml:"peers"`
	Embedded  bool     `yaml:"embedded" toml:"embedded"`
}

// GetMode returns the configured mode, defaulting to ModeRedis.
func (c *Config) GetMode() Mode {
	if c.Mode == "" {
		return ModeRedis
	}
	return c.Mode
}

// GetKey returns the cache key for the base URL.
func (c *Config) GetKey() string {
	if c.Key == "" {
		return DefaultKey
	}
	return c.Key
}

// GetTTL returns the entry TTL, 7 days by default.
func (c *Config) GetTTL() time.Duration {
	if c.TTLHours <= 0 {
		return DefaultTTLHours * time.Hour
	}
	return time.Duration(c.TTLHours) * time.Hour
}

// GetURLOption returns the Redis connection URL if one is configured.
func (r *RedisConfig) GetURLOption() mo.Option[string] {
	if r.URL == "" {
		return mo.None[string]()
	}
	return mo.Some(r.URL)
}

func msOrDefault(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.GetMode() {
	case ModeRedis:
		if c.Redis.URL == "" && c.Redis.Addr == "" {
			return errors.New("cache: redis.url or redis.addr is required")
		}
	case ModeHA:
		if !c.Olric.Embedded && len(c.Olric.Addresses) == 0 {
			return errors.New("cache: olric.addresses required when not embedded")
		}
		if c.Olric.Embedded && c.Olric.BindAddr == "" {
			return errors.New("cache: olric.bind_addr required when embedded")
		}
	case ModeSingle:
		if c.Ristretto.MaxCost < 0 || c.Ristretto.NumCounters < 0 {
			return errors.New("cache: ristretto sizes must not be negative")
		}
	case ModeDisabled:
	default:
		return fmt.Errorf("cache: unknown mode %q", c.Mode)
	}
	return nil
}

// DefaultRistrettoConfig returns a small config; the store holds one key.
func DefaultRistrettoConfig() RistrettoConfig {
	return RistrettoConfig{
		NumCounters: 1_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	}
}
