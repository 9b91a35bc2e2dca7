package resilience

import "errors"

// ErrCircuitOpen is returned when the circuit breaker short-circuits an attempt.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")
