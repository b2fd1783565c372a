// Package ledger tracks processed submissions and sweeps expired records.
//
// A Ledger wraps a Store backend and owns the maintenance clock, so every
// backend shares the same throttling and error classification.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/elsbot/snapshotbot/internal/bot"
)

// Store is the persistence backend behind a Ledger.
type Store interface {
	// Exists reports whether id has been recorded.
	Exists(ctx context.Context, id string) (bool, error)
	// Insert records id at the given time. Inserting an existing id is a no-op.
	Insert(ctx context.Context, id string, at time.Time) error
	// DeleteBefore removes every record with recorded_at <= cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// Ledger implements bot.Ledger on top of a Store.
type Ledger struct {
	store  Store
	logger *zap.Logger

	mu              sync.Mutex
	lastMaintenance time.Time
}

var _ bot.Ledger = (*Ledger)(nil)

// New constructs a Ledger. The maintenance clock starts at the zero time so
// the first RunMaintenance call always sweeps.
func New(store Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, logger: logger}
}

// IsProcessed reports whether the submission has already been handled.
func (l *Ledger) IsProcessed(ctx context.Context, id string) (bool, error) {
	ok, err := l.store.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("%w: lookup %s: %w", bot.ErrStorageUnavailable, id, err)
	}
	return ok, nil
}

// MarkProcessed records the submission. Duplicate ids are ignored.
func (l *Ledger) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	if err := l.store.Insert(ctx, id, at); err != nil {
		return fmt.Errorf("%w: insert %s: %w", bot.ErrStorageUnavailable, id, err)
	}
	return nil
}

// RunMaintenance deletes entries older than ttl, at most once per minInterval.
// It reports whether a sweep ran. A failed sweep leaves the clock untouched.
func (l *Ledger) RunMaintenance(ctx context.Context, now time.Time, ttl, minInterval time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.lastMaintenance.IsZero() && now.Sub(l.lastMaintenance) < minInterval {
		return false, nil
	}

	cutoff := now.Add(-ttl)
	l.logger.Info("running ledger maintenance", zap.Time("cutoff", cutoff))
	removed, err := l.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return false, fmt.Errorf("%w: sweep: %w", bot.ErrStorageUnavailable, err)
	}
	l.lastMaintenance = now
	l.logger.Debug("ledger maintenance finished", zap.Int64("removed", removed))
	return true, nil
}

// LastMaintenance returns when the last successful sweep ran.
func (l *Ledger) LastMaintenance() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastMaintenance
}

// Close releases the backing store.
func (l *Ledger) Close() error {
	if err := l.store.Close(); err != nil {
		return fmt.Errorf("close ledger store: %w", err)
	}
	return nil
}
