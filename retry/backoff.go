// Package retry provides the bounded exponential backoff strategy used by
// the client connector between reconnection attempts.
package retry

import (
	"math"
	"time"
)

// Strategy defines the reconnection backoff configuration.
//
// The schedule follows: delay = min(BaseDelay * ExponentialBase^attempt, MaxDelay)
//
// Example with defaults (250ms base, 2.0 exponential, 30s max):
//
//	Attempt 0: 250ms
//	Attempt 1: 500ms
//	Attempt 2: 1s
//	Attempt 3: 2s
//	...
//	Attempt 7+: 30s (capped)
type Strategy struct {
	MaxAttempts     int           // Maximum attempts before giving up; 0 = unbounded
	BaseDelay       time.Duration // Initial delay (first attempt)
	MaxDelay        time.Duration // Delay cap
	ExponentialBase float64       // Backoff multiplier (e.g., 2.0 for doubling)
}

// DefaultStrategy returns the default reconnection strategy: unbounded
// attempts with 250ms → 30s exponential backoff, tuned for interactive
// clients that should come back quickly after a brief network blip but not
// hammer a server that stays down.
func DefaultStrategy() Strategy {
	return Strategy{
		MaxAttempts:     0,
		BaseDelay:       250 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
	}
}

// Delay calculates the backoff delay for a given attempt.
// Formula: delay = min(BaseDelay * ExponentialBase^attempt, MaxDelay)
func (s Strategy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return s.BaseDelay
	}

	delay := float64(s.BaseDelay) * math.Pow(s.ExponentialBase, float64(attempt))
	if delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// Exhausted reports whether no further attempt is allowed.
// Always false for unbounded strategies (MaxAttempts = 0).
func (s Strategy) Exhausted(attempt int) bool {
	return s.MaxAttempts > 0 && attempt >= s.MaxAttempts
}
