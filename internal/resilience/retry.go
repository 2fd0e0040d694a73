// Package resilience provides retry with exponential backoff and a
// circuit breaker that pauses work while the target site is struggling.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior for a single operation.
type Policy struct {
	// Attempts is the total number of tries including the first.
	// A value of 1 disables retries.
	Attempts int

	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration

	// Multiplier scales the delay after each failed attempt.
	Multiplier float64

	// Jitter widens each delay by a random fraction (0.25 = ±25%).
	Jitter float64

	// Retryable decides whether an error is worth another attempt.
	// Nil means Temporary.
	Retryable func(error) bool

	// OnRetry runs before each retry sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// PageLoadPolicy returns a policy tuned for loading pages from a site
// that occasionally rate-limits or times out. attempts <= 0 selects
// the default of 3.
func PageLoadPolicy(attempts int) Policy {
	p := Policy{
		Attempts:   3,
		BaseDelay:  time.Second,
		MaxDelay:   20 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.25,
	}
	if attempts > 0 {
		p.Attempts = attempts
	}
	return p
}

// Do runs fn until it succeeds, the policy is exhausted, or ctx is
// cancelled. Only errors the policy deems retryable trigger another
// attempt.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for operations that return a value. On failure the zero
// value is returned alongside the last error.
func DoVal[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	retryable := p.Retryable
	if retryable == nil {
		retryable = Temporary
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) || attempt == p.Attempts-1 {
			break
		}

		delay := p.delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 20 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// delay computes the sleep before retry number attempt+1.
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// LogRetries returns an OnRetry callback that logs each attempt.
func LogRetries(component, operation string) func(int, time.Duration, error) {
	return func(attempt int, delay time.Duration, err error) {
		zap.L().Warn("retrying",
			zap.String("component", component),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
}
