package model

import "time"

// BusinessRecord holds the extracted, normalized fields for one directory entry.
// Name and SourceURL are always non-empty; every other field is best-effort
// and empty when the page did not yield it.
type BusinessRecord struct {
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Address     string    `json:"address,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	Website     string    `json:"website,omitempty"`
	SourceURL   string    `json:"source_url"`
	Incomplete  bool      `json:"incomplete,omitempty"`
	HarvestedAt time.Time `json:"harvested_at"`
}

// HasContact reports whether the record carries at least one contact field.
func (r BusinessRecord) HasContact() bool {
	return r.Phone != "" || r.Email != "" || r.Website != ""
}
