package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore_InsertIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	first := time.Unix(100, 0)

	require.NoError(t, s.Insert(ctx, "a", first))
	require.NoError(t, s.Insert(ctx, "a", first.Add(time.Hour)))
	require.Equal(t, 1, s.Len())

	// The original timestamp wins, so the later insert does not extend its life.
	removed, err := s.DeleteBefore(ctx, first)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
	require.Zero(t, s.Len())
}

func TestStore_DeleteBeforeKeepsNewer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	cutoff := time.Unix(1000, 0)

	require.NoError(t, s.Insert(ctx, "old", cutoff.Add(-time.Second)))
	require.NoError(t, s.Insert(ctx, "new", cutoff.Add(time.Second)))

	removed, err := s.DeleteBefore(ctx, cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	ok, err := s.Exists(ctx, "new")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.Exists(ctx, "old")
	require.NoError(t, err)
	require.False(t, ok)
}
