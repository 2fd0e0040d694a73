// Package monitoring provides a read-only progress view over the
// checkpoint store: point-in-time snapshots for the status command and
// the monitor API, plus a background watcher that reports on a running
// harvest. Nothing in this package writes, so a harvest behaves the
// same whether or not anyone is watching.
package monitoring

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/harvest-cli/internal/model"
)

// ErrNoHarvests reports that the site has never been harvested.
var ErrNoHarvests = eris.New("monitoring: no harvests recorded")

// Source abstracts the read-only store methods the collector needs.
type Source interface {
	Snapshot(ctx context.Context, harvestID string) (*model.Snapshot, error)
	LatestHarvest(ctx context.Context, rootURL string) (*model.Harvest, error)
}

// Collector gathers progress snapshots from the checkpoint store.
type Collector struct {
	source Source
}

// NewCollector creates a collector over the given store.
func NewCollector(src Source) *Collector {
	return &Collector{source: src}
}

// Collect returns the current snapshot for one harvest.
func (c *Collector) Collect(ctx context.Context, harvestID string) (*model.Snapshot, error) {
	snap, err := c.source.Snapshot(ctx, harvestID)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: collect snapshot")
	}
	return snap, nil
}

// CollectLatest resolves the most recent harvest for rootURL and returns
// its snapshot, or ErrNoHarvests when none exists.
func (c *Collector) CollectLatest(ctx context.Context, rootURL string) (*model.Snapshot, error) {
	h, err := c.source.LatestHarvest(ctx, rootURL)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: latest harvest")
	}
	if h == nil {
		return nil, ErrNoHarvests
	}
	return c.Collect(ctx, h.ID)
}

// FailureRate returns failed / (done + failed), or 0 when nothing has
// finished yet.
func FailureRate(snap *model.Snapshot) float64 {
	finished := snap.Done + snap.Failed
	if finished == 0 {
		return 0
	}
	return float64(snap.Failed) / float64(finished)
}

// PercentDone returns the share of discovered identifiers that reached a
// terminal state, in percent.
func PercentDone(snap *model.Snapshot) float64 {
	if snap.Discovered == 0 {
		return 0
	}
	return float64(snap.Done+snap.Failed) / float64(snap.Discovered) * 100
}
