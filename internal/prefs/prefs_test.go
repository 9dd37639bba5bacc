package prefs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/pgedit/internal/errs"
)

func TestFileStore_RoundTripAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")
	ctx := context.Background()

	s, err := Open(path, nil)
	require.NoError(t, err)

	empty, err := s.Get(ctx, "public", "users")
	require.NoError(t, err)
	assert.Equal(t, &TablePreferences{}, empty)

	want := &TablePreferences{
		ColumnOrder:   []string{"name", "id"},
		HiddenColumns: []string{"role"},
		ColumnWidths:  map[string]int{"name": 240},
	}
	require.NoError(t, s.Put(ctx, "public", "users", want))

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "public", "users")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"public.users"}, reopened.Tables())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "public.users:")
	assert.Contains(t, string(raw), "columnOrder:")
}

func TestFileStore_GetReturnsCopy(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "prefs.yaml"), nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "public", "t", &TablePreferences{ColumnOrder: []string{"a"}}))
	got, err := s.Get(ctx, "public", "t")
	require.NoError(t, err)
	got.ColumnOrder[0] = "changed"

	again, err := s.Get(ctx, "public", "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again.ColumnOrder)
}

func TestFileStore_RejectsBadInput(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "prefs.yaml"), nil)
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, errs.IsInvalidInput(s.Put(ctx, "public", "t", nil)))
	assert.True(t, errs.IsInvalidInput(s.Put(ctx, "public", "t", &TablePreferences{
		ColumnWidths: map[string]int{"a": -1},
	})))
	assert.Empty(t, s.Tables())
}

func TestOpen_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tables: [not, a, map"), 0o644))

	_, err := Open(path, nil)
	assert.True(t, errs.IsInvalidInput(err))
}
