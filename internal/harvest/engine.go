// Package harvest runs the checkpointed harvest loop: claim the oldest
// pending identifier, load its detail page, extract a record, and
// checkpoint the outcome before moving on. Every state change lands in
// the store before the loop advances, so a run killed at any instant
// resumes where it stopped.
package harvest

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/harvest-cli/internal/extract"
	"github.com/sells-group/harvest-cli/internal/model"
	"github.com/sells-group/harvest-cli/internal/render"
	"github.com/sells-group/harvest-cli/internal/resilience"
	"github.com/sells-group/harvest-cli/internal/store"
)

// Checkpointer is the slice of the store the harvest loop drives.
type Checkpointer interface {
	ClaimIdentifier(ctx context.Context, harvestID string) (*model.Identifier, error)
	MarkDone(ctx context.Context, harvestID, url string, rec model.BusinessRecord) error
	MarkFailed(ctx context.Context, harvestID, url, cause string) error
	ReleaseStale(ctx context.Context, harvestID string) (int, error)
	UpdateHarvestStatus(ctx context.Context, harvestID string, status model.HarvestStatus) error
}

// EmailChecker verifies that an extracted email's domain can receive
// mail. extract.EmailVerifier implements it.
type EmailChecker interface {
	HasMX(ctx context.Context, email string) bool
}

// RecordExtractor turns a loaded page into a business record.
type RecordExtractor interface {
	Record(p *extract.Page) model.BusinessRecord
}

// Options tunes the harvest loop.
type Options struct {
	// Workers is the number of concurrent page processors.
	Workers int

	// Limit stops the run once that many identifiers have been claimed.
	// 0 means run until the queue drains.
	Limit int

	// Delay is the politeness pause between page loads, shared across
	// workers.
	Delay time.Duration

	// Grace bounds how long an in-flight page may keep running after
	// cancellation before it is abandoned.
	Grace time.Duration

	// BreakerThreshold and BreakerCooldown configure the
	// consecutive-failure breaker in front of the site.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Grace <= 0 {
		o.Grace = 10 * time.Second
	}
	return o
}

// Result summarizes one engine run.
type Result struct {
	HarvestID   string
	Done        int
	Failed      int
	Interrupted bool
	Elapsed     time.Duration
}

// Processed is the number of identifiers this run settled either way.
func (r Result) Processed() int {
	return r.Done + r.Failed
}

// Engine drives the harvest loop against a checkpoint store.
type Engine struct {
	store     Checkpointer
	loader    PageLoader
	extractor RecordExtractor
	verifier  EmailChecker
	pacer     *rate.Limiter
	breaker   *resilience.Breaker
	opts      Options
}

// NewEngine creates an engine. verifier may be nil to skip email
// verification.
func NewEngine(st Checkpointer, loader PageLoader, ex RecordExtractor, verifier EmailChecker, opts Options) *Engine {
	opts = opts.withDefaults()

	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}

	return &Engine{
		store:     st,
		loader:    loader,
		extractor: ex,
		verifier:  verifier,
		pacer:     rate.NewLimiter(limit, 1),
		breaker:   resilience.NewBreaker(opts.BreakerThreshold, opts.BreakerCooldown),
		opts:      opts,
	}
}

// Run processes the harvest's pending identifiers until the queue
// drains, the context is cancelled, or a checkpoint write fails.
// Cancellation is a clean outcome: the result reports Interrupted and
// the error is nil. A non-nil error means the run cannot continue and
// the harvest was left resumable.
func (e *Engine) Run(ctx context.Context, harvestID string) (*Result, error) {
	log := zap.L().With(
		zap.String("component", "harvest.engine"),
		zap.String("harvest_id", harvestID),
	)
	start := time.Now()

	// Claims orphaned by a previous crash go back to pending before
	// workers start.
	released, err := e.store.ReleaseStale(ctx, harvestID)
	if err != nil {
		return nil, err
	}
	if released > 0 {
		log.Info("released stale claims", zap.Int("count", released))
	}

	var t tallies

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.opts.Workers; i++ {
		g.Go(func() error {
			return e.worker(gctx, log, harvestID, &t)
		})
	}
	runErr := g.Wait()

	res := &Result{
		HarvestID: harvestID,
		Done:      int(t.done.Load()),
		Failed:    int(t.failed.Load()),
		Elapsed:   time.Since(start),
	}

	// Writes after cancellation go through a bounded flush context.
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.Grace)
	defer cancel()

	switch {
	case runErr == nil && t.limited.Load():
		// Stopped at the claim cap with identifiers likely still
		// pending; leave the harvest resumable.
		res.Interrupted = true
		if err := e.store.UpdateHarvestStatus(flushCtx, harvestID, model.HarvestStatusInterrupted); err != nil {
			return res, err
		}
		log.Info("harvest stopped at limit",
			zap.Int("limit", e.opts.Limit),
			zap.Int("done", res.Done),
			zap.Int("failed", res.Failed),
		)
		return res, nil

	case runErr == nil:
		if err := e.store.UpdateHarvestStatus(flushCtx, harvestID, model.HarvestStatusComplete); err != nil {
			return res, err
		}
		log.Info("harvest complete",
			zap.Int("done", res.Done),
			zap.Int("failed", res.Failed),
			zap.Duration("elapsed", res.Elapsed),
		)
		return res, nil

	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		res.Interrupted = true
		if n, err := e.store.ReleaseStale(flushCtx, harvestID); err != nil {
			log.Error("failed to release in-flight claims", zap.Error(err))
		} else if n > 0 {
			log.Info("released in-flight claims", zap.Int("count", n))
		}
		if err := e.store.UpdateHarvestStatus(flushCtx, harvestID, model.HarvestStatusInterrupted); err != nil {
			return res, err
		}
		log.Warn("harvest interrupted",
			zap.Int("done", res.Done),
			zap.Int("failed", res.Failed),
		)
		return res, nil

	default:
		if err := e.store.UpdateHarvestStatus(flushCtx, harvestID, model.HarvestStatusInterrupted); err != nil {
			log.Error("failed to record interruption", zap.Error(err))
		}
		return res, runErr
	}
}

// tallies is the shared scoreboard of one run.
type tallies struct {
	done, failed, claimed atomic.Int64
	limited               atomic.Bool
}

// worker claims and processes identifiers until the queue drains, the
// claim cap is spent, or the context ends. Page failures are isolated;
// checkpoint write failures abort the run.
func (e *Engine) worker(ctx context.Context, log *zap.Logger, harvestID string, t *tallies) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.opts.Limit > 0 && t.claimed.Add(1) > int64(e.opts.Limit) {
			t.limited.Store(true)
			return nil
		}
		if err := e.breaker.Wait(ctx); err != nil {
			return err
		}

		ident, err := e.store.ClaimIdentifier(ctx, harvestID)
		if err != nil {
			if errors.Is(err, store.ErrNoPending) {
				return nil
			}
			return err
		}

		if err := e.pacer.Wait(ctx); err != nil {
			// Nothing in flight yet; the claim is released at shutdown.
			return err
		}

		if err := e.processOne(ctx, log, harvestID, ident, t); err != nil {
			return err
		}
	}
}

// processOne loads one page and checkpoints its outcome. The returned
// error is non-nil only when the run must stop: a checkpoint write
// failed, the browser session died, or shutdown overran the grace.
func (e *Engine) processOne(ctx context.Context, log *zap.Logger, harvestID string, ident *model.Identifier, t *tallies) error {
	// The in-flight page outlives cancellation by the grace budget, so
	// nearly-finished work still checkpoints instead of being redone on
	// resume.
	pageCtx, cancel := withGrace(ctx, e.opts.Grace)
	defer cancel()

	start := time.Now()
	page, err := e.loader.Load(pageCtx, ident.URL)
	if err != nil {
		if errors.Is(err, render.ErrSessionTerminated) {
			return err
		}
		if ctx.Err() != nil {
			// Shutdown killed the load; leave the claim for resume.
			return ctx.Err()
		}

		e.breaker.Failure()
		t.failed.Add(1)
		log.Warn("page failed",
			zap.String("url", ident.URL),
			zap.Int("attempts", ident.Attempts),
			zap.Error(err),
		)
		if mfErr := e.store.MarkFailed(pageCtx, harvestID, ident.URL, err.Error()); mfErr != nil {
			return mfErr
		}
		return nil
	}

	rec := e.extractor.Record(page)
	e.verifyEmail(pageCtx, &rec)
	rec.HarvestedAt = time.Now().UTC()

	if err := e.store.MarkDone(pageCtx, harvestID, ident.URL, rec); err != nil {
		return err
	}

	e.breaker.Success()
	t.done.Add(1)
	log.Debug("page harvested",
		zap.String("url", ident.URL),
		zap.String("name", rec.Name),
		zap.Bool("contact", rec.HasContact()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// verifyEmail drops an extracted email whose domain cannot receive
// mail. A record without an email is untouched.
func (e *Engine) verifyEmail(ctx context.Context, rec *model.BusinessRecord) {
	if e.verifier == nil || rec.Email == "" {
		return
	}
	if !e.verifier.HasMX(ctx, rec.Email) {
		zap.L().Debug("harvest: dropping email without mx",
			zap.String("email", rec.Email),
			zap.String("url", rec.SourceURL),
		)
		rec.Email = ""
	}
}

// withGrace returns a context that stays live for grace after parent is
// cancelled, then cancels itself.
func withGrace(parent context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(parent, func() {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-timer.C:
			cancel()
		case <-ctx.Done():
		}
	})
	return ctx, func() {
		stop()
		cancel()
	}
}
