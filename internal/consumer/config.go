package consumer

import "time"

// Default configuration values.
const (
	DefaultPollIntervalMS    = 5000
	DefaultOpenCircuitWaitMS = 30000
)

// Config controls the supervisory loop.
type Config struct {
	// PollIntervalMS is how often the connection is checked.
	PollIntervalMS int `yaml:"poll_interval_ms" toml:"poll_interval_ms"`

	// OpenCircuitWaitMS is how long to back off while the circuit is open.
	OpenCircuitWaitMS int `yaml:"open_circuit_wait_ms" toml:"open_circuit_wait_ms"`
}

// GetPollInterval returns the poll interval or the default.
func (c *Config) GetPollInterval() time.Duration {
	if c.PollIntervalMS <= 0 {
		return DefaultPollIntervalMS * time.Millisecond
	}
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// GetOpenCircuitWait returns the open-circuit wait or the default.
func (c *Config) GetOpenCircuitWait() time.Duration {
	if c.OpenCircuitWaitMS <= 0 {
		return DefaultOpenCircuitWaitMS * time.Millisecond
	}
	return time.Duration(c.OpenCircuitWaitMS) * time.Millisecond
}
