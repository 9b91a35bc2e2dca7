package resilience

import "github.com/cenkalti/backoff/v4"

// SetTimer replaces the policy's wait timer.
func SetTimer(p *RetryPolicy, t backoff.Timer) {
	p.timer = t
}
