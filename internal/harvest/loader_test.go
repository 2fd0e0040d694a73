package harvest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/harvest-cli/internal/fetch"
	"github.com/sells-group/harvest-cli/internal/render"
)

// fakeSession is a render.Session serving canned HTML.
type fakeSession struct {
	mu       sync.Mutex
	html     string
	openErrs []error // consumed per Open call; nil entry means success
	opens    int
}

func (s *fakeSession) Open(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if len(s.openErrs) > 0 {
		err := s.openErrs[0]
		s.openErrs = s.openErrs[1:]
		return err
	}
	return nil
}

func (s *fakeSession) ScrollToBottom(context.Context) (int64, error) { return 0, nil }

func (s *fakeSession) WaitForStable(context.Context, time.Duration) (bool, error) { return true, nil }

func (s *fakeSession) TriggerLoadMore(context.Context) (int, error) { return 0, nil }

func (s *fakeSession) Nudge(context.Context) error { return nil }

func (s *fakeSession) HTML(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.html, nil
}

func (s *fakeSession) Title(context.Context) (string, error) { return "", nil }

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

func TestHTTPLoader_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(detailHTML("Alpha Cafe"))) //nolint:errcheck
	}))
	defer srv.Close()

	client := fetch.NewClient(fetch.Options{RatePerSec: 100, Burst: 10, Retries: 1})
	loader := NewHTTPLoader(client)

	page, err := loader.Load(context.Background(), srv.URL+"/black-owned-business/alpha-cafe/")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/black-owned-business/alpha-cafe/", page.URL)
	assert.Equal(t, "Alpha Cafe", page.Doc.Find("h1").Text())
}

func TestHTTPLoader_Load_NonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := fetch.NewClient(fetch.Options{RatePerSec: 100, Burst: 10, Retries: 1})
	loader := NewHTTPLoader(client)

	_, err := loader.Load(context.Background(), srv.URL+"/gone/")
	require.Error(t, err)

	var se *fetch.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestBrowserLoader_Load(t *testing.T) {
	session := &fakeSession{html: detailHTML("Alpha Cafe")}
	loader := NewBrowserLoader(session, 3)

	page, err := loader.Load(context.Background(), bizURL("alpha-cafe"))
	require.NoError(t, err)
	assert.Equal(t, bizURL("alpha-cafe"), page.URL)
	assert.Equal(t, "Alpha Cafe", page.Doc.Find("h1").Text())
	assert.Equal(t, 1, session.openCount())
}

func TestBrowserLoader_Load_RetriesNavigation(t *testing.T) {
	session := &fakeSession{
		html: detailHTML("Alpha Cafe"),
		openErrs: []error{
			&render.NavigationError{URL: bizURL("alpha-cafe"), Err: errors.New("timeout")},
			&render.NavigationError{URL: bizURL("alpha-cafe"), Err: errors.New("timeout")},
		},
	}
	loader := NewBrowserLoader(session, 3)
	loader.retry.BaseDelay = time.Millisecond
	loader.retry.MaxDelay = 2 * time.Millisecond
	loader.retry.Jitter = 0

	page, err := loader.Load(context.Background(), bizURL("alpha-cafe"))
	require.NoError(t, err)
	assert.Equal(t, "Alpha Cafe", page.Doc.Find("h1").Text())
	assert.Equal(t, 3, session.openCount())
}

func TestBrowserLoader_Load_SessionTerminatedIsFatal(t *testing.T) {
	session := &fakeSession{
		openErrs: []error{render.ErrSessionTerminated},
	}
	loader := NewBrowserLoader(session, 3)
	loader.retry.BaseDelay = time.Millisecond

	_, err := loader.Load(context.Background(), bizURL("alpha-cafe"))
	require.Error(t, err)
	assert.ErrorIs(t, err, render.ErrSessionTerminated)
	assert.Equal(t, 1, session.openCount())
}
