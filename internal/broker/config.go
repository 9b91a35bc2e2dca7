// Package broker owns the AMQP connection used to receive base URL updates.
package broker

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Default configuration values.
const (
	DefaultHost          = "localhost"
	DefaultPort          = 5672
	DefaultUsername      = "guest"
	DefaultPassword      = "guest"
	DefaultVirtualHost   = "/"
	DefaultExchange      = "inference-engine"
	DefaultRoutingKey    = "inference-engine.base-url.updated"
	DefaultQueuePrefix   = "inference-engine.base-url"
	DefaultHeartbeatMS   = 10000
	DefaultDialTimeoutMS = 5000
)

// Config holds broker connection and topology settings.
type Config struct {
	Host        string `yaml:"host" toml:"host"`
	Username    string `yaml:"username" toml:"username"`
	Password    string `yaml:"password" toml:"password"`
	VirtualHost string `yaml:"virtual_host" toml:"virtual_host"`
	Exchange    string `yaml:"exchange" toml:"exchange"`

	// Queue defaults to "inference-engine.base-url.<service_id>" so every
	// service gets its own copy of each update.
	Queue      string `yaml:"queue" toml:"queue"`
	RoutingKey string `yaml:"routing_key" toml:"routing_key"`

	// ServiceID is filled from the top-level config, never from the broker section.
	ServiceID string `yaml:"-" toml:"-"`

	Port          int `yaml:"port" toml:"port"`
	HeartbeatMS   int `yaml:"heartbeat_ms" toml:"heartbeat_ms"`
	DialTimeoutMS int `yaml:"dial_timeout_ms" toml:"dial_timeout_ms"`

	// RequeueMalformed controls whether undecodable messages are requeued on nack.
	RequeueMalformed bool `yaml:"requeue_malformed" toml:"requeue_malformed"`
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func msOrDefault(ms, def int) time.Duration {
	if ms <= 0 {
		return time.Duration(def) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

// GetHost returns the broker host or the default.
func (c *Config) GetHost() string { return orDefault(c.Host, DefaultHost) }

// GetPort returns the broker port or the default.
func (c *Config) GetPort() int {
	if c.Port <= 0 {
		return DefaultPort
	}
	return c.Port
}

// GetUsername returns the username or the default.
func (c *Config) GetUsername() string { return orDefault(c.Username, DefaultUsername) }

// GetPassword returns the password or the default.
func (c *Config) GetPassword() string { return orDefault(c.Password, DefaultPassword) }

// GetVirtualHost returns the virtual host or the default.
func (c *Config) GetVirtualHost() string { return orDefault(c.VirtualHost, DefaultVirtualHost) }

// GetExchange returns the exchange name or the default.
func (c *Config) GetExchange() string { return orDefault(c.Exchange, DefaultExchange) }

// GetRoutingKey returns the routing key or the default.
func (c *Config) GetRoutingKey() string { return orDefault(c.RoutingKey, DefaultRoutingKey) }

// GetQueue returns the queue name, deriving it from ServiceID when unset.
func (c *Config) GetQueue() string {
	if c.Queue != "" {
		return c.Queue
	}
	if c.ServiceID == "" {
		return DefaultQueuePrefix
	}
	return DefaultQueuePrefix + "." + c.ServiceID
}

// GetHeartbeat returns the heartbeat interval.
func (c *Config) GetHeartbeat() time.Duration { return msOrDefault(c.HeartbeatMS, DefaultHeartbeatMS) }

// GetDialTimeout returns the TCP dial timeout.
func (c *Config) GetDialTimeout() time.Duration {
	return msOrDefault(c.DialTimeoutMS, DefaultDialTimeoutMS)
}

// URI returns the AMQP URI for the configured endpoint.
func (c *Config) URI() amqp.URI {
	return amqp.URI{
		Scheme:   "amqp",
		Host:     c.GetHost(),
		Port:     c.GetPort(),
		Username: c.GetUsername(),
		Password: c.GetPassword(),
		Vhost:    c.GetVirtualHost(),
	}
}

// Address returns host:port without credentials, for logging.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.GetPort())
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("broker: port %d out of range", c.Port)
	}
	if c.HeartbeatMS < 0 {
		return fmt.Errorf("broker: heartbeat_ms must be >= 0, got %d", c.HeartbeatMS)
	}
	if c.DialTimeoutMS < 0 {
		return fmt.Errorf("broker: dial_timeout_ms must be >= 0, got %d", c.DialTimeoutMS)
	}
	return nil
}
