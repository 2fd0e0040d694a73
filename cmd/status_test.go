//go:build !integration

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/harvest-cli/internal/model"
)

func testStatusSnapshot() *model.Snapshot {
	return &model.Snapshot{
		HarvestID:   "0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9",
		RootURL:     testRootURL,
		Status:      model.HarvestStatusRunning,
		Discovered:  10,
		Pending:     2,
		InProgress:  1,
		Done:        6,
		Failed:      1,
		Records:     6,
		WithPhone:   5,
		WithEmail:   3,
		WithWebsite: 4,
		WithAddress: 6,
		Incomplete:  1,
		Categories:  map[string]int{"Dining": 4, "Beauty": 2},
	}
}

func TestFormatSnapshot_Basic(t *testing.T) {
	var buf bytes.Buffer
	formatSnapshot(&buf, testStatusSnapshot(), false)

	out := buf.String()
	assert.Contains(t, out, "0a1b2c3d")
	assert.NotContains(t, out, "4e5f")
	assert.Contains(t, out, testRootURL)
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "70.0%")
	assert.NotContains(t, out, "Dining")
}

func TestFormatSnapshot_Categories(t *testing.T) {
	var buf bytes.Buffer
	formatSnapshot(&buf, testStatusSnapshot(), true)

	out := buf.String()
	assert.Contains(t, out, "Categories:")
	assert.Contains(t, out, "Dining")
	assert.Contains(t, out, "Beauty")

	// Alphabetical order keeps repeat runs diffable.
	assert.Less(t, strings.Index(out, "Beauty"), strings.Index(out, "Dining"))
}

func TestFormatSnapshot_NoCategoriesCollected(t *testing.T) {
	snap := testStatusSnapshot()
	snap.Categories = nil

	var buf bytes.Buffer
	formatSnapshot(&buf, snap, true)
	assert.NotContains(t, buf.String(), "Categories:")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "0a1b2c3d", truncateID("0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9"))
	assert.Equal(t, "short", truncateID("short"))
}
