// Package retry provides exponential backoff policies for job redelivery and
// short in-process retries.
package retry

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// Policy defines a bounded retry budget with exponential backoff.
type Policy struct {
	MaxAttempts    int           // Total attempts including the first one
	InitialBackoff time.Duration // Delay before the second attempt
	MaxBackoff     time.Duration // Upper bound on any single delay (0 = unbounded)
	BackoffFactor  float64       // Multiplier applied per attempt
	Jitter         bool          // Add ±25% jitter to each delay
}

// EventPolicy is the retry budget of event processing jobs.
func EventPolicy() Policy {
	return Policy{
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     5 * time.Minute,
		BackoffFactor:  2.0,
	}
}

// NotificationPolicy is the retry budget of notification delivery jobs.
func NotificationPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     5 * time.Minute,
		BackoffFactor:  2.0,
	}
}

// Backoff returns the delay to wait after the given failed attempt (1-based)
// before running the next one.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 2.0
	}

	backoff := float64(p.InitialBackoff) * math.Pow(factor, float64(attempt-1))
	if p.MaxBackoff > 0 && backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	if p.Jitter {
		backoff += backoff * 0.25 * (rand.Float64()*2 - 1)
	}
	return time.Duration(backoff)
}

// Exhausted reports whether attempt was the last one allowed.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}

// Do runs fn until it succeeds, the policy is exhausted, or ctx is done.
// fn always runs at least once.
func Do(ctx context.Context, p Policy, operation string, fn func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				slog.Info("Operation succeeded after retry",
					"operation", operation,
					"attempt", attempt,
				)
			}
			return nil
		}
		lastErr = err

		if p.Exhausted(attempt) {
			slog.Warn("Max retries exceeded",
				"operation", operation,
				"attempts", attempt,
				"error", err,
			)
			return err
		}

		backoff := p.Backoff(attempt)
		slog.Warn("Operation failed, retrying",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return lastErr
}
