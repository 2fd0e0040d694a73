package fetch

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter self-tunes below a configured ceiling: a 429 halves
// the rate, successes recover it by 10% per request. The ceiling is
// never exceeded; the configured rate is a politeness promise, not a
// starting point.
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	ceiling rate.Limit
	floor   rate.Limit
	current rate.Limit
}

// NewAdaptiveLimiter creates a limiter starting at perSec requests per
// second with the given burst.
func NewAdaptiveLimiter(perSec float64, burst int) *AdaptiveLimiter {
	ceiling := rate.Limit(perSec)
	return &AdaptiveLimiter{
		limiter: rate.NewLimiter(ceiling, burst),
		ceiling: ceiling,
		floor:   ceiling / 4,
		current: ceiling,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess recovers the rate by 10%, capped at the ceiling.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.current * 1.1
	if next > a.ceiling {
		next = a.ceiling
	}
	if next != a.current {
		a.current = next
		a.limiter.SetLimit(next)
	}
}

// OnRateLimit halves the rate after a 429, floored at a quarter of the
// ceiling.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.current / 2
	if next < a.floor {
		next = a.floor
	}
	a.current = next
	a.limiter.SetLimit(next)
	zap.L().Warn("fetch: rate limited by site, slowing down",
		zap.Float64("requests_per_sec", float64(next)),
	)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}
