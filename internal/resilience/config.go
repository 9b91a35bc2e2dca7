// Package resilience provides the retry policy and circuit breaker that guard
// broker connection attempts.
//
// The circuit breaker follows the usual state machine
// (CLOSED -> OPEN -> HALF-OPEN -> CLOSED) where one failure is one fully
// exhausted retry sequence, not a single attempt inside it.
package resilience

import "time"

// Default configuration values.
const (
	DefaultMaxAttempts      = 5     // retries after the first attempt
	DefaultBaseDelayMS      = 1000  // delay before retry n is base * 2^n
	DefaultFailureThreshold = 3     // consecutive failures to open the circuit
	DefaultBreakDurationMS  = 60000 // time spent open before a half-open probe
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	// MaxAttempts is the number of retries after the initial attempt.
	// Default: 5
	MaxAttempts int `yaml:"max_attempts" toml:"max_attempts"`

	// BaseDelayMS is the unit of the exponential schedule in milliseconds.
	// Default: 1000, giving delays of 2s, 4s, 8s, 16s, 32s.
	BaseDelayMS int `yaml:"base_delay_ms" toml:"base_delay_ms"`
}

// GetMaxAttempts returns the configured retry ceiling or the default.
func (c *RetryConfig) GetMaxAttempts() int {
	if c.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return c.MaxAttempts
}

// GetBaseDelay returns the base delay as a time.Duration.
func (c *RetryConfig) GetBaseDelay() time.Duration {
	if c.BaseDelayMS <= 0 {
		return DefaultBaseDelayMS * time.Millisecond
	}
	return time.Duration(c.BaseDelayMS) * time.Millisecond
}

// CircuitBreakerConfig defines circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	// Default: 3
	FailureThreshold int `yaml:"failure_threshold" toml:"failure_threshold"`

	// BreakDurationMS is how long the circuit stays open before allowing a probe.
	// Default: 60000 (1 minute)
	BreakDurationMS int `yaml:"break_duration_ms" toml:"break_duration_ms"`
}

// GetFailureThreshold returns the configured threshold or the default.
func (c *CircuitBreakerConfig) GetFailureThreshold() int {
	if c.FailureThreshold <= 0 {
		return DefaultFailureThreshold
	}
	return c.FailureThreshold
}

// GetBreakDuration returns the open duration as a time.Duration.
func (c *CircuitBreakerConfig) GetBreakDuration() time.Duration {
	if c.BreakDurationMS <= 0 {
		return DefaultBreakDurationMS * time.Millisecond
	}
	return time.Duration(c.BreakDurationMS) * time.Millisecond
}
