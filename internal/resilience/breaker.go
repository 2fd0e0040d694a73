package resilience

import (
	"context"
	"sync"
	"time"
)

// Breaker trips after a run of consecutive failures and holds new work
// until a cooldown passes. A site erroring on every page is better left
// alone for a while than hammered through the politeness delay.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	now      func() time.Time
}

// NewBreaker returns a breaker that opens after threshold consecutive
// failures and allows a probe once cooldown has elapsed.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether work may proceed. While open it stays false
// until the cooldown elapses, then permits a probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return true
	}
	return b.now().Sub(b.openedAt) >= b.cooldown
}

// Success closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// Failure records a failed operation, opening the breaker at the
// threshold and restarting the cooldown if a probe just failed.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.openedAt = b.now()
	}
}

// Open reports whether the breaker has tripped and is still cooling down.
func (b *Breaker) Open() bool {
	return !b.Allow()
}

// Wait blocks until the breaker allows work or ctx is cancelled.
func (b *Breaker) Wait(ctx context.Context) error {
	for {
		if b.Allow() {
			return nil
		}

		b.mu.Lock()
		remaining := b.cooldown - b.now().Sub(b.openedAt)
		b.mu.Unlock()
		if remaining < 50*time.Millisecond {
			remaining = 50 * time.Millisecond
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
