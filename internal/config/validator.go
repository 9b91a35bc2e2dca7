package config

import (
	"github.com/samber/lo"

	"github.com/omarluq/enginesync/internal/endpoint"
	"github.com/omarluq/enginesync/internal/resilience"
)

var validLogLevels = []string{"", LevelDebug, LevelInfo, LevelWarn, LevelError}

var validLogFormats = []string{"", "json", "console", "text", "pretty"}

// Validate checks the configuration for errors.
// Returns a ValidationError containing all errors found, or nil if valid.
func (c *Config) Validate() error {
	errs := &ValidationError{}

	validateService(c, errs)
	validateLogging(c, errs)
	validateBroker(c, errs)
	errs.AddErr(c.Cache.Validate())
	validateResilience(c, errs)
	validateConsumer(c, errs)

	return errs.ToError()
}

func validateService(c *Config, errs *ValidationError) {
	if c.DefaultBaseURL != "" && !endpoint.IsValid(c.DefaultBaseURL) {
		errs.Addf("default_base_url must be an http(s) URL (got %q)", c.DefaultBaseURL)
	}
}

func validateLogging(c *Config, errs *ValidationError) {
	if !lo.Contains(validLogLevels, c.Logging.Level) {
		errs.Addf("logging.level is invalid (got %q, valid: debug, info, warn, error)",
			c.Logging.Level)
	}
	if !lo.Contains(validLogFormats, c.Logging.Format) {
		errs.Addf("logging.format is invalid (got %q, valid: json, console, text, pretty)",
			c.Logging.Format)
	}
}

func validateBroker(c *Config, errs *ValidationError) {
	errs.AddErr(c.Broker.Validate())
}

func validateResilience(c *Config, errs *ValidationError) {
	if c.Retry.MaxAttempts < 0 {
		errs.Add("retry.max_attempts must be >= 0")
	}
	if c.Retry.MaxAttempts > 30 {
		errs.Addf("retry.max_attempts must be <= 30 (got %d)", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelayMS < 0 {
		errs.Add("retry.base_delay_ms must be >= 0")
	}
	if c.Retry.MaxAttempts >= 0 && c.Retry.MaxAttempts <= 30 && c.Retry.BaseDelayMS >= 0 &&
		resilience.ShiftDelay(c.Retry.GetBaseDelay(), c.Retry.GetMaxAttempts()) == resilience.MaxDelay {
		errs.Addf("retry.base_delay_ms * 2^max_attempts overflows (base_delay_ms %d, max_attempts %d)",
			c.Retry.BaseDelayMS, c.Retry.MaxAttempts)
	}
	if c.CircuitBreaker.FailureThreshold < 0 {
		errs.Add("circuit_breaker.failure_threshold must be >= 0")
	}
	if c.CircuitBreaker.BreakDurationMS < 0 {
		errs.Add("circuit_breaker.break_duration_ms must be >= 0")
	}
}

func validateConsumer(c *Config, errs *ValidationError) {
	if c.Consumer.PollIntervalMS < 0 {
		errs.Add("consumer.poll_interval_ms must be >= 0")
	}
	if c.Consumer.OpenCircuitWaitMS < 0 {
		errs.Add("consumer.open_circuit_wait_ms must be >= 0")
	}
}
