package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elsbot/snapshotbot/internal/bot"
	"github.com/elsbot/snapshotbot/internal/ledger/memory"
)

const (
	ttl      = 60 * 24 * time.Hour
	interval = time.Hour
)

func TestLedger_MarkThenIsProcessed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := New(memory.NewStore(), zap.NewNop())
	now := time.Unix(1_700_000_000, 0).UTC()

	ok, err := l.IsProcessed(ctx, "abc")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, l.MarkProcessed(ctx, "abc", now))
	require.NoError(t, l.MarkProcessed(ctx, "abc", now.Add(time.Minute)))

	for i := 0; i < 3; i++ {
		ok, err = l.IsProcessed(ctx, "abc")
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestLedger_RunMaintenanceExpiresOldEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	l := New(store, zap.NewNop())
	now := time.Unix(1_700_000_000, 0).UTC()

	require.NoError(t, l.MarkProcessed(ctx, "expired", now.Add(-ttl-time.Second)))
	require.NoError(t, l.MarkProcessed(ctx, "boundary", now.Add(-ttl)))
	require.NoError(t, l.MarkProcessed(ctx, "fresh", now.Add(-ttl+time.Second)))

	swept, err := l.RunMaintenance(ctx, now, ttl, interval)
	require.NoError(t, err)
	require.True(t, swept)
	require.Equal(t, now, l.LastMaintenance())

	for id, want := range map[string]bool{"expired": false, "boundary": false, "fresh": true} {
		ok, err := l.IsProcessed(ctx, id)
		require.NoError(t, err)
		require.Equal(t, want, ok, id)
	}
}

func TestLedger_RunMaintenanceThrottled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &countingStore{Store: memory.NewStore()}
	l := New(store, nil)
	now := time.Unix(1_700_000_000, 0).UTC()

	swept, err := l.RunMaintenance(ctx, now, ttl, interval)
	require.NoError(t, err)
	require.True(t, swept)

	swept, err = l.RunMaintenance(ctx, now.Add(interval-time.Second), ttl, interval)
	require.NoError(t, err)
	require.False(t, swept)

	swept, err = l.RunMaintenance(ctx, now, ttl, interval)
	require.NoError(t, err)
	require.False(t, swept)
	require.Equal(t, 1, store.deletes())

	swept, err = l.RunMaintenance(ctx, now.Add(interval), ttl, interval)
	require.NoError(t, err)
	require.True(t, swept)
	require.Equal(t, 2, store.deletes())
}

func TestLedger_StorageErrorsAreClassified(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := New(&brokenStore{err: errors.New("connection refused")}, zap.NewNop())
	now := time.Unix(1_700_000_000, 0).UTC()

	_, err := l.IsProcessed(ctx, "abc")
	require.ErrorIs(t, err, bot.ErrStorageUnavailable)

	err = l.MarkProcessed(ctx, "abc", now)
	require.ErrorIs(t, err, bot.ErrStorageUnavailable)

	swept, err := l.RunMaintenance(ctx, now, ttl, interval)
	require.ErrorIs(t, err, bot.ErrStorageUnavailable)
	require.False(t, swept)
	require.True(t, l.LastMaintenance().IsZero(), "failed sweep must not advance the clock")

	require.Error(t, l.Close())
}

type countingStore struct {
	*memory.Store
	mu    sync.Mutex
	calls int
}

func (s *countingStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.Store.DeleteBefore(ctx, cutoff)
}

func (s *countingStore) deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type brokenStore struct {
	err error
}

func (b *brokenStore) Exists(context.Context, string) (bool, error) { return false, b.err }
func (b *brokenStore) Insert(context.Context, string, time.Time) error { return b.err }
func (b *brokenStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, b.err }
func (b *brokenStore) Close() error { return b.err }

func TestLedger_SweepCutoffIsNowMinusTTL(t *testing.T) {
	t.Parallel()

	store := &MockStore{}
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	store.On("DeleteBefore", mock.Anything, now.Add(-ttl)).Return(int64(4), nil).Once()
	store.On("Close").Return(nil).Once()

	l := New(store, nil)
	swept, err := l.RunMaintenance(context.Background(), now, ttl, interval)
	require.NoError(t, err)
	require.True(t, swept)
	require.NoError(t, l.Close())
	store.AssertExpectations(t)
}
