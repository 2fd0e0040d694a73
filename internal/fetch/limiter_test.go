package fetch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdaptiveLimiter_StartsAtCeiling(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 1)
	assert.InDelta(t, 10.0, float64(lim.Limit()), 0.001)
}

func TestAdaptiveLimiter_OnRateLimitHalves(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 1)

	lim.OnRateLimit()
	assert.InDelta(t, 5.0, float64(lim.Limit()), 0.001)

	lim.OnRateLimit()
	assert.InDelta(t, 2.5, float64(lim.Limit()), 0.001)
}

func TestAdaptiveLimiter_FloorAtQuarterCeiling(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 1)
	for range 10 {
		lim.OnRateLimit()
	}
	assert.InDelta(t, 2.5, float64(lim.Limit()), 0.001)
}

func TestAdaptiveLimiter_RecoversTowardCeiling(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 1)
	lim.OnRateLimit() // 5.0

	lim.OnSuccess()
	assert.InDelta(t, 5.5, float64(lim.Limit()), 0.001)

	for range 50 {
		lim.OnSuccess()
	}
	assert.InDelta(t, 10.0, float64(lim.Limit()), 0.001)
}

func TestAdaptiveLimiter_NeverExceedsCeiling(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 1)
	for range 20 {
		lim.OnSuccess()
	}
	assert.InDelta(t, 10.0, float64(lim.Limit()), 0.001)
}

func TestAdaptiveLimiter_WaitContextCancelled(t *testing.T) {
	lim := NewAdaptiveLimiter(0.001, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, lim.Wait(ctx))
}
