package render

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	scrollBottomScript = `(() => { window.scrollTo(0, document.body.scrollHeight); return document.body.scrollHeight; })()`
	pageHeightScript   = `document.body.scrollHeight`
	nudgeScript        = `(() => { window.scrollTo(0, document.body.scrollHeight / 2); return true; })()`

	// Clicks every visible load-more style control. The directory mixes
	// button text variants with a bare .load-more class.
	loadMoreScript = `(() => {
	const wanted = ['load more', 'show more', 'view more'];
	let clicked = 0;
	for (const el of document.querySelectorAll('button, a, .load-more')) {
		const text = (el.textContent || '').trim().toLowerCase();
		const match = el.classList.contains('load-more') || wanted.some(w => text.includes(w));
		if (match && el.offsetParent !== null) {
			el.click();
			clicked++;
		}
	}
	return clicked;
})()`
)

// ChromeSession drives a headless Chrome via chromedp. The browser
// starts lazily on the first call and lives until Close. A
// ChromeSession is not safe for concurrent use.
type ChromeSession struct {
	opts Options

	browserCtx   context.Context
	cancelBrowse context.CancelFunc
	cancelAlloc  context.CancelFunc

	closeOnce sync.Once
}

var _ Session = (*ChromeSession)(nil)

// NewChromeSession prepares a browser session with the given options.
// Chrome itself is launched on the first navigation.
func NewChromeSession(opts Options) *ChromeSession {
	opts = opts.withDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(opts.UserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowse := chromedp.NewContext(allocCtx)

	return &ChromeSession{
		opts:         opts,
		browserCtx:   browserCtx,
		cancelBrowse: cancelBrowse,
		cancelAlloc:  cancelAlloc,
	}
}

func (s *ChromeSession) Open(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.NavTimeout)
	defer cancel()

	err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, ErrSessionTerminated) {
			return err
		}
		return &NavigationError{URL: url, Err: err}
	}
	return nil
}

func (s *ChromeSession) ScrollToBottom(ctx context.Context) (int64, error) {
	var height int64
	if err := s.run(ctx, chromedp.Evaluate(scrollBottomScript, &height)); err != nil {
		return 0, err
	}
	return height, nil
}

func (s *ChromeSession) WaitForStable(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)

	last, err := s.pageHeight(ctx)
	if err != nil {
		return false, err
	}

	for time.Now().Before(deadline) {
		if err := sleepCtx(ctx, s.opts.PollInterval); err != nil {
			return false, err
		}
		h, err := s.pageHeight(ctx)
		if err != nil {
			return false, err
		}
		if h == last {
			return true, nil
		}
		last = h
	}
	return false, nil
}

func (s *ChromeSession) TriggerLoadMore(ctx context.Context) (int, error) {
	var clicked int
	if err := s.run(ctx, chromedp.Evaluate(loadMoreScript, &clicked)); err != nil {
		return 0, err
	}
	return clicked, nil
}

func (s *ChromeSession) Nudge(ctx context.Context) error {
	var ok bool
	return s.run(ctx, chromedp.Evaluate(nudgeScript, &ok))
}

func (s *ChromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (s *ChromeSession) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

// Close shuts the browser down. Safe to call more than once.
func (s *ChromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancelBrowse()
		s.cancelAlloc()
	})
	return nil
}

func (s *ChromeSession) pageHeight(ctx context.Context) (int64, error) {
	var h int64
	if err := s.run(ctx, chromedp.Evaluate(pageHeightScript, &h)); err != nil {
		return 0, err
	}
	return h, nil
}

// run executes actions on the browser tab while honoring the caller's
// context. chromedp only accepts its own context chain, so the caller's
// cancellation is forwarded instead of passed down.
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.browserCtx.Err() != nil {
		return ErrSessionTerminated
	}

	runCtx, cancel := context.WithCancel(s.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if s.browserCtx.Err() != nil {
			return ErrSessionTerminated
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
