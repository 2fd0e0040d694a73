// Package fetch is the plain-HTTP page loader. It talks to exactly one
// site, so pacing is a single adaptive limiter rather than a per-host
// registry, and every request carries the same politeness settings.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/harvest-cli/internal/resilience"
)

// Options configures the Client.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	Retries    int
}

// StatusError reports a non-200 response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: %s returned %d", e.URL, e.Code)
}

// Client fetches pages with pacing and bounded retries.
type Client struct {
	client  *http.Client
	limiter *AdaptiveLimiter
	retry   resilience.Policy
	opts    Options
}

// NewClient creates a Client with the given options. Zero values fall
// back to polite defaults.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "harvest-cli/1.0"
	}

	retry := resilience.PageLoadPolicy(opts.Retries)
	retry.Retryable = retryable
	retry.OnRetry = resilience.LogRetries("fetch", "get")

	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		MaxConnsPerHost:     8,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		client:  &http.Client{Timeout: opts.Timeout, Transport: transport},
		limiter: NewAdaptiveLimiter(opts.RatePerSec, opts.Burst),
		retry:   retry,
		opts:    opts,
	}
}

// Get fetches rawURL and returns the body. Each attempt waits on the
// limiter first, so retries are paced like fresh requests.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, rawURL)
	})
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: get")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			c.limiter.OnRateLimit()
		}
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: read body")
	}

	c.limiter.OnSuccess()
	return body, nil
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return resilience.RetryableStatus(se.Code)
	}
	return resilience.Temporary(err)
}
