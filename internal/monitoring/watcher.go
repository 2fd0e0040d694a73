package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/harvest-cli/internal/config"
	"github.com/sells-group/harvest-cli/internal/model"
)

// Watcher periodically reports the progress of a running harvest and
// raises alerts when it stalls or its failure rate climbs. It only
// reads the store, so it runs alongside the harvest loop without
// affecting it.
type Watcher struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	prev *model.Snapshot
}

// NewWatcher creates a background progress watcher.
func NewWatcher(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Watcher {
	return &Watcher{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run starts the periodic watch loop for one harvest. It blocks until
// ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, harvestID string) {
	interval := time.Duration(w.cfg.IntervalSecs) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	log := zap.L().With(zap.String("component", "monitoring.watcher"))
	log.Info("starting progress watcher",
		zap.String("harvest_id", harvestID),
		zap.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("progress watcher stopped")
			return
		case <-ticker.C:
			w.check(ctx, harvestID, log)
		}
	}
}

func (w *Watcher) check(ctx context.Context, harvestID string, log *zap.Logger) {
	snap, err := w.collector.Collect(ctx, harvestID)
	if err != nil {
		log.Error("monitoring: failed to collect snapshot", zap.Error(err))
		return
	}

	log.Info("harvest progress",
		zap.Int("done", snap.Done),
		zap.Int("failed", snap.Failed),
		zap.Int("pending", snap.Pending),
		zap.Float64("percent_done", PercentDone(snap)),
	)

	alerts := w.alerter.Evaluate(w.prev, snap)
	w.prev = snap
	if len(alerts) == 0 {
		return
	}

	// Alerts always land in the log; the webhook is optional on top.
	for _, a := range alerts {
		log.Warn(a.Message, zap.String("type", string(a.Type)))
	}
	if sent := w.alerter.SendAlerts(ctx, alerts); sent > 0 {
		log.Info("monitoring: alerts sent", zap.Int("count", sent))
	}
}
