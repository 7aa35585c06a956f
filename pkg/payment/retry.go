package payment

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a follow-up vendor call is attempted.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff returns the wait before every attempt after the first. Nil means no wait.
	Backoff func(attempt int) time.Duration
}

// SandboxRedirectPolicy is the one retry the App Store contract requires: a
// single immediate call to the sandbox endpoint.
var SandboxRedirectPolicy = RetryPolicy{MaxAttempts: 1}

// ExponentialBackoff doubles base on every attempt.
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base << attempt
	}
}

// Do runs fn until it reports done, the attempts are exhausted or ctx ends.
// It returns the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) (done bool)) int {
	attempts := 0
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 && p.Backoff != nil {
			select {
			case <-ctx.Done():
				return attempts
			case <-time.After(p.Backoff(attempt)):
			}
		}
		attempts++
		if fn(attempt) {
			break
		}
	}
	return attempts
}
