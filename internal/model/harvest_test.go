package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifierStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status IdentifierStatus
		want   string
	}{
		{IdentifierPending, "pending"},
		{IdentifierInProgress, "in_progress"},
		{IdentifierDone, "done"},
		{IdentifierFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}

func TestHarvest_Resumable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status HarvestStatus
		want   bool
	}{
		{HarvestStatusRunning, true},
		{HarvestStatusInterrupted, true},
		{HarvestStatusComplete, false},
		{HarvestStatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Harvest{Status: tt.status}.Resumable())
		})
	}
}

func TestBusinessRecord_HasContact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  BusinessRecord
		want bool
	}{
		{"phone only", BusinessRecord{Phone: "513-555-0199"}, true},
		{"email only", BusinessRecord{Email: "owner@example.net"}, true},
		{"website only", BusinessRecord{Website: "https://example.net"}, true},
		{"address only", BusinessRecord{Address: "123 Main St"}, false},
		{"none", BusinessRecord{Name: "Shop"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.rec.HasContact())
		})
	}
}
