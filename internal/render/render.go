// Package render drives a headless browser session against a
// JavaScript-rendered listing page. The directory site loads its
// business grid lazily, so discovery needs real scrolling and real
// clicks, not a plain GET.
package render

import (
	"context"
	"time"
)

// Session is one rendering session against the site. Implementations
// keep a browser (or a fake) alive across calls until Close.
type Session interface {
	// Open navigates to url and waits for the document to become
	// interactive.
	Open(ctx context.Context, url string) error

	// ScrollToBottom issues a scroll to the bottom of the page and
	// returns the document height after the scroll.
	ScrollToBottom(ctx context.Context) (int64, error)

	// WaitForStable polls the document height until two consecutive
	// polls agree or timeout passes. Returns true when stable.
	WaitForStable(ctx context.Context, timeout time.Duration) (bool, error)

	// TriggerLoadMore clicks any visible load-more style controls and
	// returns how many were clicked.
	TriggerLoadMore(ctx context.Context) (int, error)

	// Nudge scrolls to mid-page. Some lazy loaders only fire when the
	// viewport moves away from the bottom and back.
	Nudge(ctx context.Context) error

	// HTML returns the current rendered document.
	HTML(ctx context.Context) (string, error)

	// Title returns the current document title.
	Title(ctx context.Context) (string, error)

	// Close tears the session down. Safe to call more than once.
	Close() error
}

// DefaultUserAgent is presented when the config does not set one.
// Headless Chrome's own UA string gets bot-blocked on some hosts.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options configures a ChromeSession.
type Options struct {
	Headless     bool
	NavTimeout   time.Duration
	PollInterval time.Duration
	UserAgent    string
}

func (o Options) withDefaults() Options {
	if o.NavTimeout <= 0 {
		o.NavTimeout = 45 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 400 * time.Millisecond
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}
