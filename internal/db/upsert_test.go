package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "identifiers",
		Columns:      []string{"harvest_id", "url"},
		ConflictKeys: []string{"harvest_id", "url"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "identifiers",
		ConflictKeys: []string{"url"},
	}, [][]any{{"h1", "https://example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:   "identifiers",
		Columns: []string{"harvest_id", "url"},
	}, [][]any{{"h1", "https://example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestConflictAction_DoNothing(t *testing.T) {
	got := conflictAction(UpsertConfig{
		Columns:      []string{"harvest_id", "url", "status"},
		ConflictKeys: []string{"harvest_id", "url"},
		DoNothing:    true,
	})
	assert.Equal(t, "DO NOTHING", got)
}

func TestConflictAction_DefaultUpdateCols(t *testing.T) {
	got := conflictAction(UpsertConfig{
		Columns:      []string{"harvest_id", "url", "status", "updated_at"},
		ConflictKeys: []string{"harvest_id", "url"},
	})
	assert.Equal(t, `DO UPDATE SET "status" = EXCLUDED."status", "updated_at" = EXCLUDED."updated_at"`, got)
}

func TestConflictAction_ExplicitUpdateCols(t *testing.T) {
	got := conflictAction(UpsertConfig{
		Columns:      []string{"harvest_id", "url", "status", "updated_at"},
		ConflictKeys: []string{"harvest_id", "url"},
		UpdateCols:   []string{"status"},
	})
	assert.Equal(t, `DO UPDATE SET "status" = EXCLUDED."status"`, got)
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"identifiers", `"identifiers"`},
		{"public.identifiers", `"public"."identifiers"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"harvest_id", "url", "status"})
	assert.Equal(t, `"harvest_id", "url", "status"`, result)
}
