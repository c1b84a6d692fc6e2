// Package retrypolicy provides bounded-retry backoff for operations that
// may transiently fail: BLE GATT connects and vendor ioctl calls.
package retrypolicy

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoff implements exponential backoff with jitter and a hard
// attempt ceiling — no operation in this daemon retries indefinitely.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
	MaxAttempts  int
}

// NewExponentialBackoff returns the daemon's default policy: 3 attempts,
// matching the BLE worker's bounded connect retry (spec section 5).
func NewExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
		MaxAttempts:  3,
	}
}

// NextDelay returns the delay before the given attempt (0-indexed) and
// whether a further attempt is permitted at all.
func (e *ExponentialBackoff) NextDelay(attempt int) (time.Duration, bool) {
	if attempt >= e.MaxAttempts {
		return 0, false
	}

	delay := float64(e.InitialDelay) * math.Pow(e.Multiplier, float64(attempt))
	if delay > float64(e.MaxDelay) {
		delay = float64(e.MaxDelay)
	}

	if e.Jitter > 0 {
		jitter := delay * e.Jitter
		delay = delay - jitter + (2 * jitter * rand.Float64())
	}

	return time.Duration(delay), true
}

// Retry runs fn, retrying on error per the backoff policy until it
// succeeds, the attempt ceiling is reached, or ctx is done.
func Retry(ctx context.Context, backoff *ExponentialBackoff, fn func() error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		delay, again := backoff.NextDelay(attempt + 1)
		if !again {
			return lastErr
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
