package main

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/harvest-cli/internal/discovery"
	"github.com/sells-group/harvest-cli/internal/extract"
	"github.com/sells-group/harvest-cli/internal/fetch"
	"github.com/sells-group/harvest-cli/internal/harvest"
	"github.com/sells-group/harvest-cli/internal/render"
	"github.com/sells-group/harvest-cli/internal/store"
)

// initStore opens and migrates the checkpoint store selected by config.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, store.Config{
		Driver:      cfg.Store.Driver,
		Path:        cfg.Store.Path,
		DatabaseURL: cfg.Store.DatabaseURL,
		Pool: store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newFetchClient builds the rate-limited plain-HTTP client.
func newFetchClient() *fetch.Client {
	return fetch.NewClient(fetch.Options{
		UserAgent:  cfg.Browser.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		RatePerSec: cfg.Fetch.RatePerSec,
		Burst:      cfg.Fetch.Burst,
		Retries:    cfg.Harvest.NavRetries,
	})
}

// newSession prepares a headless browser session. Chrome launches on
// first navigation; callers own Close.
func newSession() render.Session {
	return render.NewChromeSession(render.Options{
		Headless:     cfg.Browser.Headless,
		NavTimeout:   time.Duration(cfg.Browser.NavTimeoutSecs) * time.Second,
		PollInterval: time.Duration(cfg.Discovery.PollIntervalMS) * time.Millisecond,
		UserAgent:    cfg.Browser.UserAgent,
	})
}

// newExtractor builds the field extractor, with the category taxonomy
// override applied when configured.
func newExtractor() (*extract.Extractor, error) {
	opts := extract.Options{}

	if cfg.Extract.TaxonomyPath != "" {
		taxonomy, err := extract.LoadTaxonomy(cfg.Extract.TaxonomyPath)
		if err != nil {
			return nil, err
		}
		opts.Taxonomy = taxonomy
		zap.L().Info("taxonomy override loaded",
			zap.String("path", cfg.Extract.TaxonomyPath),
			zap.Int("categories", len(taxonomy)),
		)
	}

	if u, err := url.Parse(cfg.Site.RootURL); err == nil && u.Host != "" {
		opts.SiteHosts = []string{u.Host}
	}

	return extract.New(opts), nil
}

// newVerifier returns the MX email checker, or nil when verification is
// disabled.
func newVerifier() harvest.EmailChecker {
	if !cfg.Verify.EmailMX {
		return nil
	}
	return extract.NewEmailVerifier(cfg.Verify.DNSServers)
}

// newLoader builds the detail-page loader named by harvest.loader. In
// browser mode the session is returned too so the caller can reuse it
// for discovery; the closer shuts it down. In http mode the session is
// nil and the closer is a no-op.
func newLoader() (harvest.PageLoader, render.Session, func(), error) {
	switch cfg.Harvest.Loader {
	case "browser":
		session := newSession()
		loader := harvest.NewBrowserLoader(session, cfg.Harvest.NavRetries)
		return loader, session, func() { _ = session.Close() }, nil
	case "", "http":
		return harvest.NewHTTPLoader(newFetchClient()), nil, func() {}, nil
	default:
		return nil, nil, nil, eris.Errorf("unsupported harvest loader %q", cfg.Harvest.Loader)
	}
}

// discoveryOptions maps config onto the scroll-loop settings.
func discoveryOptions(autoCategories bool) discovery.Options {
	return discovery.Options{
		RootURL:        cfg.Site.RootURL,
		StallLimit:     cfg.Discovery.StallLimit,
		MaxIterations:  cfg.Discovery.MaxIterations,
		StableTimeout:  time.Duration(cfg.Discovery.StableTimeoutMS) * time.Millisecond,
		InitialWait:    time.Duration(cfg.Discovery.InitialWaitMS) * time.Millisecond,
		CategoryPaths:  cfg.Discovery.CategoryPaths,
		AutoCategories: autoCategories || cfg.Discovery.AutoCategories,
	}
}
