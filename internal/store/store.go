// Package store persists harvest checkpoints: harvest runs, the
// identifier work queue, and extracted business records. Every write is
// durable before the call returns, so a harvest killed at any point can
// resume from the last completed identifier.
package store

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/harvest-cli/internal/model"
)

// ErrNotFound reports a lookup that matched no row.
var ErrNotFound = eris.New("store: not found")

// ErrNoPending is returned by ClaimIdentifier once every identifier of
// the harvest has left the pending state. It is the loop's normal exit
// signal, not a failure.
var ErrNoPending = eris.New("store: no pending identifiers")

// WriteError marks a checkpoint write that did not take effect. Harvesting
// must not continue past one: progress made after a failed write would be
// unrecorded and silently lost on resume.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func writeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &WriteError{Op: op, Err: err}
}

// HarvestFilter specifies criteria for listing harvests.
type HarvestFilter struct {
	Status  model.HarvestStatus `json:"status,omitempty"`
	RootURL string              `json:"root_url,omitempty"`
	Limit   int                 `json:"limit,omitempty"`
}

// IdentifierFilter specifies criteria for listing identifiers.
type IdentifierFilter struct {
	Status model.IdentifierStatus `json:"status,omitempty"`
	Limit  int                    `json:"limit,omitempty"`
}

// Store defines the checkpoint persistence interface. Mutating methods
// wrap failures in *WriteError; callers treat those as fatal.
type Store interface {
	// Harvests
	CreateHarvest(ctx context.Context, rootURL string) (*model.Harvest, error)
	GetHarvest(ctx context.Context, harvestID string) (*model.Harvest, error)
	// LatestHarvest returns the most recent harvest for rootURL, or
	// (nil, nil) when the site has never been harvested.
	LatestHarvest(ctx context.Context, rootURL string) (*model.Harvest, error)
	ListHarvests(ctx context.Context, filter HarvestFilter) ([]model.Harvest, error)
	UpdateHarvestStatus(ctx context.Context, harvestID string, status model.HarvestStatus) error

	// Identifiers
	// AddIdentifiers enqueues newly discovered detail URLs as pending.
	// URLs already present keep their state; the count covers only rows
	// actually added.
	AddIdentifiers(ctx context.Context, harvestID string, urls []string) (int, error)
	ListIdentifiers(ctx context.Context, harvestID string, filter IdentifierFilter) ([]model.Identifier, error)
	// ClaimIdentifier atomically moves the oldest pending identifier to
	// in_progress and returns it, or ErrNoPending when drained.
	ClaimIdentifier(ctx context.Context, harvestID string) (*model.Identifier, error)
	MarkDone(ctx context.Context, harvestID, url string, rec model.BusinessRecord) error
	MarkFailed(ctx context.Context, harvestID, url, cause string) error
	// ReleaseStale returns in_progress identifiers to pending. Run at
	// resume: anything still claimed belonged to a run that never finished.
	ReleaseStale(ctx context.Context, harvestID string) (int, error)
	// ResetFailed returns failed identifiers to pending for another pass.
	ResetFailed(ctx context.Context, harvestID string) (int, error)

	// Records
	ListRecords(ctx context.Context, harvestID string) ([]model.BusinessRecord, error)

	// Progress
	Snapshot(ctx context.Context, harvestID string) (*model.Snapshot, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and tunes the backing database.
type Config struct {
	Driver      string
	Path        string
	DatabaseURL string
	Pool        PoolConfig
}

// Open constructs the store named by cfg.Driver. SQLite is the default
// and needs no external service; postgres suits shared deployments.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.Path)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &cfg.Pool)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}
