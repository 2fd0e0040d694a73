package harvest

import (
	"context"
	"errors"

	"github.com/sells-group/harvest-cli/internal/extract"
	"github.com/sells-group/harvest-cli/internal/fetch"
	"github.com/sells-group/harvest-cli/internal/render"
	"github.com/sells-group/harvest-cli/internal/resilience"
)

// PageLoader fetches one detail page and returns it parsed. Retries
// belong to the loader; the engine sees only final outcomes.
type PageLoader interface {
	Load(ctx context.Context, url string) (*extract.Page, error)
}

// HTTPLoader loads pages over plain HTTP. Detail pages on the site
// render their content server-side, so the browser is only needed for
// discovery.
type HTTPLoader struct {
	client *fetch.Client
}

func NewHTTPLoader(client *fetch.Client) *HTTPLoader {
	return &HTTPLoader{client: client}
}

func (l *HTTPLoader) Load(ctx context.Context, url string) (*extract.Page, error) {
	body, err := l.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return extract.NewPage(string(body), url)
}

// BrowserLoader loads pages through the rendering session. Navigation
// failures retry on the live session; a terminated session is final.
type BrowserLoader struct {
	session render.Session
	retry   resilience.Policy
}

func NewBrowserLoader(session render.Session, retries int) *BrowserLoader {
	p := resilience.PageLoadPolicy(retries)
	p.Retryable = func(err error) bool {
		var ne *render.NavigationError
		return errors.As(err, &ne)
	}
	p.OnRetry = resilience.LogRetries("harvest", "navigate")
	return &BrowserLoader{session: session, retry: p}
}

func (l *BrowserLoader) Load(ctx context.Context, url string) (*extract.Page, error) {
	return resilience.DoVal(ctx, l.retry, func(ctx context.Context) (*extract.Page, error) {
		if err := l.session.Open(ctx, url); err != nil {
			return nil, err
		}
		html, err := l.session.HTML(ctx)
		if err != nil {
			return nil, err
		}
		return extract.NewPage(html, url)
	})
}
