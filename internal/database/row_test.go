package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/pgedit/internal/database"
	"github.com/koustreak/pgedit/internal/database/dbtest"
	"github.com/koustreak/pgedit/internal/errs"
)

func TestScanMaps(t *testing.T) {
	h := dbtest.New().On("FROM users", []string{"id", "name"},
		[]any{int64(1), "Ada"},
		[]any{int64(2), nil},
	)
	rows, err := h.Query(context.Background(), "SELECT id, name FROM users")
	require.NoError(t, err)

	got, err := database.ScanMaps(rows)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"id": int64(1), "name": "Ada"},
		{"id": int64(2), "name": nil},
	}, got)
}

func TestScanMaps_EmptyIsNonNil(t *testing.T) {
	rows, err := dbtest.New().Query(context.Background(), "SELECT 1")
	require.NoError(t, err)

	got, err := database.ScanMaps(rows)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestScanStrings(t *testing.T) {
	h := dbtest.New().On("information_schema.tables", []string{"table_name"},
		[]any{"orders"}, []any{"users"},
	)
	rows, err := h.Query(context.Background(), "SELECT table_name FROM information_schema.tables")
	require.NoError(t, err)

	got, err := database.ScanStrings(rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, got)
}

func TestCollect_ScanErrorIsQueryFailed(t *testing.T) {
	h := dbtest.New().On("FROM t", []string{"a", "b"}, []any{"x", "y"})
	rows, err := h.Query(context.Background(), "SELECT a, b FROM t")
	require.NoError(t, err)

	_, err = database.ScanStrings(rows)
	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err))
}
