package model

import "time"

// HarvestStatus represents the current state of a harvest run.
type HarvestStatus string

const (
	HarvestStatusRunning     HarvestStatus = "running"
	HarvestStatusInterrupted HarvestStatus = "interrupted"
	HarvestStatusComplete    HarvestStatus = "complete"
	HarvestStatusFailed      HarvestStatus = "failed"
)

// Harvest represents one harvest run against the directory root.
type Harvest struct {
	ID        string        `json:"id"`
	RootURL   string        `json:"root_url"`
	Status    HarvestStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Resumable reports whether a later run may pick this harvest back up.
func (h Harvest) Resumable() bool {
	return h.Status == HarvestStatusRunning || h.Status == HarvestStatusInterrupted
}

// IdentifierStatus represents the processing state of one listing identifier.
type IdentifierStatus string

const (
	IdentifierPending    IdentifierStatus = "pending"
	IdentifierInProgress IdentifierStatus = "in_progress"
	IdentifierDone       IdentifierStatus = "done"
	IdentifierFailed     IdentifierStatus = "failed"
)

// Identifier is one discovered listing keyed by its canonical detail-page URL.
type Identifier struct {
	HarvestID    string           `json:"harvest_id"`
	URL          string           `json:"url"`
	Status       IdentifierStatus `json:"status"`
	Attempts     int              `json:"attempts"`
	LastError    string           `json:"last_error,omitempty"`
	DiscoveredAt time.Time        `json:"discovered_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Snapshot is a point-in-time aggregate view of a harvest, read from the
// checkpoint store. It is the only surface the progress observer sees.
type Snapshot struct {
	HarvestID  string        `json:"harvest_id"`
	RootURL    string        `json:"root_url"`
	Status     HarvestStatus `json:"status"`
	Discovered int           `json:"discovered"`
	Pending    int           `json:"pending"`
	InProgress int           `json:"in_progress"`
	Done       int           `json:"done"`
	Failed     int           `json:"failed"`

	Records     int `json:"records"`
	WithPhone   int `json:"with_phone"`
	WithEmail   int `json:"with_email"`
	WithWebsite int `json:"with_website"`
	WithAddress int `json:"with_address"`
	Incomplete  int `json:"incomplete"`

	Categories  map[string]int `json:"categories,omitempty"`
	CollectedAt time.Time      `json:"collected_at"`
}
