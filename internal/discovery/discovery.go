// Package discovery enumerates the business detail URLs reachable on
// the directory, compensating for script-driven incremental rendering
// with a scroll-until-stable loop.
package discovery

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/harvest-cli/internal/render"
)

const (
	defaultCategoryPath = "/black-owned-business-type/"

	// loadMoreWait gives a clicked load-more button time to start
	// injecting content before the stability poll runs.
	loadMoreWait = 2 * time.Second

	// nudgeEvery is the iteration interval for the mid-page scroll
	// nudge that dislodges stuck lazy loaders.
	nudgeEvery = 3
)

// Options configures a discovery pass. Zero values take defaults.
type Options struct {
	// RootURL is the directory listing page.
	RootURL string
	// StallLimit is the number of consecutive iterations with zero new
	// links after which the loop concludes the page is exhausted.
	StallLimit int
	// MaxIterations bounds worst-case runtime on a page that never
	// stops growing.
	MaxIterations int
	// StableTimeout bounds each height-stability wait.
	StableTimeout time.Duration
	// InitialWait lets the page settle after navigation before the
	// first collection.
	InitialWait time.Duration
	// CategoryPaths are category endpoints to sweep after the root page.
	// Relative paths resolve against the root URL.
	CategoryPaths []string
	// AutoCategories additionally sweeps category pages found on the
	// root page itself.
	AutoCategories bool
	// CategoryLinkPath marks category anchors when AutoCategories is
	// set.
	CategoryLinkPath string
	// Filter decides which anchors are detail links.
	Filter LinkFilter
}

func (o Options) withDefaults() Options {
	if o.StallLimit <= 0 {
		o.StallLimit = 3
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 150
	}
	if o.StableTimeout <= 0 {
		o.StableTimeout = 6 * time.Second
	}
	if o.InitialWait <= 0 {
		o.InitialWait = 3 * time.Second
	}
	if o.CategoryLinkPath == "" {
		o.CategoryLinkPath = defaultCategoryPath
	}
	o.Filter = o.Filter.withDefaults()
	return o
}

// Result is the outcome of one discovery pass. The URL count is
// reported for operators but never reconciled against any total the
// site itself advertises.
type Result struct {
	// URLs is the deduplicated set of detail URLs in first-seen order.
	URLs []string
	// Iterations is the total scroll iterations spent across pages.
	Iterations int
	// Categories lists the category pages that were swept.
	Categories []string
}

// LoopState is the explicit state of the scroll loop. It lives outside
// the loop construct so the termination policy stays auditable and
// testable apart from any rendering backend.
type LoopState struct {
	// Iteration counts collections performed so far.
	Iteration int
	// StallStreak counts consecutive iterations with no new links.
	StallStreak int
	// Found is the running total of distinct links.
	Found int
}

// Observe advances the state with the link total after a collection.
func (s LoopState) Observe(total int) LoopState {
	s.Iteration++
	if total > s.Found {
		s.Found = total
		s.StallStreak = 0
	} else {
		s.StallStreak++
	}
	return s
}

// Exhausted reports whether the loop should stop: the page yielded
// nothing new for stallLimit consecutive iterations, or the hard cap
// is spent.
func (s LoopState) Exhausted(stallLimit, maxIterations int) bool {
	return s.StallStreak >= stallLimit || s.Iteration >= maxIterations
}

// Engine drives a rendering session through the scroll loop. The
// session is borrowed, not owned; the caller closes it.
type Engine struct {
	session render.Session
	opts    Options
}

func New(session render.Session, opts Options) *Engine {
	return &Engine{session: session, opts: opts.withDefaults()}
}

// Run sweeps the root page and, when enabled, every category page
// linked from it. A failed category sweep is logged and skipped; a
// failed root sweep fails the pass.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	base, err := url.Parse(e.opts.RootURL)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: parse root url %s", e.opts.RootURL)
	}

	res := &Result{}
	seen := make(map[string]bool)

	zap.L().Info("discovery: sweeping directory", zap.String("url", e.opts.RootURL))
	iters, err := e.sweep(ctx, e.opts.RootURL, base, e.opts.MaxIterations, seen, &res.URLs)
	res.Iterations += iters
	if err != nil {
		return nil, err
	}

	// Category links must be read off the root page before any category
	// navigation replaces it.
	cats := resolveCategories(base, e.opts.CategoryPaths)
	if e.opts.AutoCategories {
		auto, err := e.rootCategories(ctx, base)
		if err != nil {
			return nil, err
		}
		cats = append(cats, auto...)
	}
	if len(cats) > 0 {
		if err := e.sweepList(ctx, base, cats, seen, res); err != nil {
			return nil, err
		}
	}

	zap.L().Info("discovery: finished",
		zap.Int("found", len(res.URLs)),
		zap.Int("iterations", res.Iterations),
		zap.Int("categories", len(res.Categories)))
	return res, nil
}

func (e *Engine) rootCategories(ctx context.Context, base *url.URL) ([]string, error) {
	html, err := e.session.HTML(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: read directory page")
	}
	return CategoryPages(html, base, e.opts.CategoryLinkPath)
}

// sweepList scroll-sweeps each category page, skipping ones already
// swept this pass. A failed category sweep is logged and skipped.
func (e *Engine) sweepList(ctx context.Context, base *url.URL, cats []string, seen map[string]bool, res *Result) error {
	swept := make(map[string]bool, len(res.Categories))
	for _, c := range res.Categories {
		swept[c] = true
	}

	// Category pages are short; a third of the main budget is plenty.
	budget := e.opts.MaxIterations / 3
	if budget < 1 {
		budget = 1
	}
	for _, cat := range cats {
		if swept[cat] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		before := len(res.URLs)
		iters, err := e.sweep(ctx, cat, base, budget, seen, &res.URLs)
		res.Iterations += iters
		if err != nil {
			if errors.Is(err, render.ErrSessionTerminated) || ctx.Err() != nil {
				return err
			}
			zap.L().Warn("discovery: category sweep failed",
				zap.String("url", cat), zap.Error(err))
			continue
		}
		swept[cat] = true
		res.Categories = append(res.Categories, cat)
		zap.L().Info("discovery: category swept",
			zap.String("url", cat),
			zap.Int("new", len(res.URLs)-before))
	}
	return nil
}

// resolveCategories turns configured category paths into absolute URLs,
// dropping ones that do not parse.
func resolveCategories(base *url.URL, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		ref, err := url.Parse(p)
		if err != nil {
			zap.L().Warn("discovery: bad category path", zap.String("path", p), zap.Error(err))
			continue
		}
		out = append(out, base.ResolveReference(ref).String())
	}
	return out
}

// sweep runs the scroll loop on one page, adding detail links to seen
// and out in first-seen order. Collection happens before each scroll
// so content rendered by the previous iteration is always captured.
func (e *Engine) sweep(ctx context.Context, pageURL string, base *url.URL, budget int, seen map[string]bool, out *[]string) (int, error) {
	if err := e.session.Open(ctx, pageURL); err != nil {
		return 0, eris.Wrapf(err, "discovery: open %s", pageURL)
	}
	if err := wait(ctx, e.opts.InitialWait); err != nil {
		return 0, err
	}

	// Seed with the union size so far: a page that only repeats links
	// found elsewhere stalls immediately.
	state := LoopState{Found: len(seen)}
	for {
		if err := ctx.Err(); err != nil {
			return state.Iteration, err
		}

		html, err := e.session.HTML(ctx)
		if err != nil {
			return state.Iteration, eris.Wrapf(err, "discovery: read %s", pageURL)
		}
		links, err := DetailLinks(html, base, e.opts.Filter)
		if err != nil {
			return state.Iteration, err
		}
		for _, link := range links {
			if seen[link] {
				continue
			}
			seen[link] = true
			*out = append(*out, link)
		}

		state = state.Observe(len(seen))
		if state.Exhausted(e.opts.StallLimit, budget) {
			break
		}
		if state.Iteration%10 == 0 {
			zap.L().Info("discovery: still scrolling",
				zap.String("url", pageURL),
				zap.Int("iteration", state.Iteration),
				zap.Int("found", len(seen)))
		}

		if _, err := e.session.ScrollToBottom(ctx); err != nil {
			return state.Iteration, eris.Wrapf(err, "discovery: scroll %s", pageURL)
		}
		if state.Iteration%nudgeEvery == 0 {
			if err := e.session.Nudge(ctx); err != nil {
				zap.L().Debug("discovery: nudge failed", zap.Error(err))
			}
		}

		clicked, err := e.session.TriggerLoadMore(ctx)
		if err != nil {
			zap.L().Debug("discovery: load-more click failed", zap.Error(err))
		}
		if clicked > 0 {
			zap.L().Info("discovery: clicked load-more", zap.Int("buttons", clicked))
			if err := wait(ctx, loadMoreWait); err != nil {
				return state.Iteration, err
			}
		}

		stable, err := e.session.WaitForStable(ctx, e.opts.StableTimeout)
		if err != nil {
			return state.Iteration, eris.Wrapf(err, "discovery: wait for %s", pageURL)
		}
		if !stable {
			zap.L().Debug("discovery: page still growing at timeout",
				zap.Int("iteration", state.Iteration))
		}
	}
	return state.Iteration, nil
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
