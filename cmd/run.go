package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/harvest-cli/internal/discovery"
	"github.com/sells-group/harvest-cli/internal/export"
	"github.com/sells-group/harvest-cli/internal/harvest"
	"github.com/sells-group/harvest-cli/internal/model"
	"github.com/sells-group/harvest-cli/internal/monitoring"
	"github.com/sells-group/harvest-cli/internal/render"
	"github.com/sells-group/harvest-cli/internal/store"
)

var (
	runFresh   bool
	runLimit   int
	runWorkers int
	runOut     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Harvest the directory end to end",
	Long: `Discovers detail pages, harvests each one through the checkpoint
queue, and exports the records to an xlsx workbook.

A resumable harvest for the configured site picks up where it left off;
--fresh forces a new one. Ctrl-C stops the run cleanly: in-flight pages
get a short grace period, progress is flushed, and the next run drains
the remainder.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := zap.L().With(zap.String("command", "run"))

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		loader, session, closeLoader, err := newLoader()
		if err != nil {
			return err
		}
		defer closeLoader()

		h, resumed, err := resolveHarvest(ctx, st, cfg.Site.RootURL, runFresh)
		if err != nil {
			return err
		}

		if resumed {
			log.Info("resuming harvest",
				zap.String("harvest_id", h.ID),
				zap.String("status", string(h.Status)),
			)
			if err := st.UpdateHarvestStatus(ctx, h.ID, model.HarvestStatusRunning); err != nil {
				return eris.Wrap(err, "mark harvest running")
			}
			// Failed identifiers get another pass on resume; done ones
			// are never reclaimed.
			reset, err := st.ResetFailed(ctx, h.ID)
			if err != nil {
				return eris.Wrap(err, "reset failed identifiers")
			}
			if reset > 0 {
				log.Info("requeued failed identifiers", zap.Int("count", reset))
			}
		} else {
			log.Info("starting harvest", zap.String("harvest_id", h.ID))
			added, err := seedIdentifiers(ctx, st, h.ID, session)
			if err != nil {
				return err
			}
			log.Info("seeded queue", zap.Int("added", added))
		}

		workers := runWorkers
		if workers == 0 {
			workers = cfg.Harvest.Workers
		}
		if session != nil && workers > 1 {
			// One Chrome tab; parallel navigation would interleave.
			log.Warn("browser loader runs single-threaded", zap.Int("requested", workers))
			workers = 1
		}

		ex, err := newExtractor()
		if err != nil {
			return err
		}

		engine := harvest.NewEngine(st, loader, ex, newVerifier(), harvest.Options{
			Workers:          workers,
			Limit:            runLimit,
			Delay:            time.Duration(cfg.Harvest.DelayMS) * time.Millisecond,
			Grace:            time.Duration(cfg.Harvest.GraceSecs) * time.Second,
			BreakerThreshold: cfg.Harvest.BreakerThreshold,
			BreakerCooldown:  time.Duration(cfg.Harvest.BreakerCooldownSecs) * time.Second,
		})

		// The watcher logs progress alongside the run; it only reads.
		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		col := monitoring.NewCollector(st)
		go monitoring.NewWatcher(col, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring).Run(watchCtx, h.ID)

		result, err := engine.Run(ctx, h.ID)
		if err != nil {
			return eris.Wrap(err, "harvest run")
		}
		stopWatch()

		out := runOut
		if out == "" {
			out = cfg.Export.Path
		}

		// The signal context may already be dead; the export still has
		// to land.
		sum, err := exportRecords(context.WithoutCancel(ctx), st, h.ID, out, result.Interrupted)
		if err != nil {
			return err
		}

		return writeRunSummary(os.Stdout, result, sum)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runFresh, "fresh", false, "start a new harvest even if one is resumable")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "stop after claiming this many pages (0 = drain the queue)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "concurrent page processors (default from config)")
	runCmd.Flags().StringVar(&runOut, "out", "", "xlsx output path (default from config)")
	rootCmd.AddCommand(runCmd)
}

// resolveHarvest picks the harvest this run operates on: the latest
// resumable one for rootURL unless fresh is set, otherwise a new one.
func resolveHarvest(ctx context.Context, st store.Store, rootURL string, fresh bool) (*model.Harvest, bool, error) {
	if !fresh {
		h, err := st.LatestHarvest(ctx, rootURL)
		if err != nil {
			return nil, false, eris.Wrap(err, "look up latest harvest")
		}
		if h != nil && h.Resumable() {
			return h, true, nil
		}
	}
	h, err := st.CreateHarvest(ctx, rootURL)
	if err != nil {
		return nil, false, eris.Wrap(err, "create harvest")
	}
	return h, false, nil
}

// seedIdentifiers discovers detail pages and enqueues them. With a live
// browser session discovery scrolls the listing; in http mode it reads
// the sitemap instead.
func seedIdentifiers(ctx context.Context, st store.Store, harvestID string, session render.Session) (int, error) {
	var (
		res *discovery.Result
		err error
	)
	if session != nil {
		res, err = discovery.New(session, discoveryOptions(false)).Run(ctx)
	} else {
		if cfg.Site.SitemapURL == "" {
			return 0, eris.New("run: http loader needs site.sitemap_url for discovery")
		}
		res, err = discovery.FromSitemap(ctx, newFetchClient(), cfg.Site.SitemapURL, discovery.LinkFilter{})
	}
	if err != nil {
		return 0, eris.Wrap(err, "discover detail pages")
	}
	return st.AddIdentifiers(ctx, harvestID, res.URLs)
}

// runSummary is the JSON document printed after a run.
type runSummary struct {
	HarvestID   string          `json:"harvest_id"`
	Done        int             `json:"done"`
	Failed      int             `json:"failed"`
	Interrupted bool            `json:"interrupted"`
	Elapsed     string          `json:"elapsed"`
	Export      *export.Summary `json:"export,omitempty"`
}

// writeRunSummary prints the run outcome as indented JSON.
func writeRunSummary(w io.Writer, res *harvest.Result, sum *export.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(runSummary{
		HarvestID:   res.HarvestID,
		Done:        res.Done,
		Failed:      res.Failed,
		Interrupted: res.Interrupted,
		Elapsed:     res.Elapsed.Round(time.Millisecond).String(),
		Export:      sum,
	})
}
