package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Defaults(t *testing.T) {
	t.Parallel()

	o := Options{}.withDefaults()
	assert.Equal(t, 45*time.Second, o.NavTimeout)
	assert.Equal(t, 400*time.Millisecond, o.PollInterval)
	assert.Equal(t, DefaultUserAgent, o.UserAgent)
	assert.False(t, o.Headless)
}

func TestOptions_ExplicitValuesKept(t *testing.T) {
	t.Parallel()

	o := Options{
		Headless:     true,
		NavTimeout:   10 * time.Second,
		PollInterval: time.Second,
		UserAgent:    "test-agent/1.0",
	}.withDefaults()
	assert.True(t, o.Headless)
	assert.Equal(t, 10*time.Second, o.NavTimeout)
	assert.Equal(t, time.Second, o.PollInterval)
	assert.Equal(t, "test-agent/1.0", o.UserAgent)
}

func TestNavigationError(t *testing.T) {
	t.Parallel()

	inner := errors.New("net::ERR_NAME_NOT_RESOLVED")
	err := &NavigationError{URL: "https://example.com/biz", Err: inner}

	assert.Contains(t, err.Error(), "https://example.com/biz")
	assert.ErrorIs(t, err, inner)

	var navErr *NavigationError
	assert.ErrorAs(t, error(err), &navErr)
}

func TestChromeSession_CloseIdempotent(t *testing.T) {
	t.Parallel()

	s := NewChromeSession(Options{Headless: true})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestChromeSession_UseAfterClose(t *testing.T) {
	t.Parallel()

	s := NewChromeSession(Options{Headless: true})
	require.NoError(t, s.Close())

	ctx := context.Background()

	err := s.Open(ctx, "https://example.com")
	assert.ErrorIs(t, err, ErrSessionTerminated)

	_, err = s.ScrollToBottom(ctx)
	assert.ErrorIs(t, err, ErrSessionTerminated)

	_, err = s.HTML(ctx)
	assert.ErrorIs(t, err, ErrSessionTerminated)

	_, err = s.WaitForStable(ctx, time.Second)
	assert.ErrorIs(t, err, ErrSessionTerminated)
}

func TestSleepCtx_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepCtx(ctx, 5*time.Second)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
