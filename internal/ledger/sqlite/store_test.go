package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"), "oldposts")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenValidates(t *testing.T) {
	t.Parallel()

	_, err := Open("", "")
	require.ErrorContains(t, err, "sqlite_path")

	_, err = Open(filepath.Join(t.TempDir(), "x.db"), "bad-name")
	require.ErrorContains(t, err, "invalid table name")
}

func TestStore_InsertExistsDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTemp(t)
	now := time.Unix(1_700_000_000, 0).UTC()

	ok, err := s.Exists(ctx, "abc")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Insert(ctx, "abc", now.Add(-2*time.Hour)))
	require.NoError(t, s.Insert(ctx, "abc", now), "duplicate insert must not fail")
	require.NoError(t, s.Insert(ctx, "def", now))

	ok, err = s.Exists(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)

	removed, err := s.DeleteBefore(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	ok, err = s.Exists(ctx, "abc")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.Exists(ctx, "def")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := Open(path, "oldposts")
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, "abc", time.Now()))
	require.NoError(t, s.Close())

	s, err = Open(path, "oldposts")
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	ok, err := s.Exists(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
}
