// Package memory provides an in-memory ledger store for development and tests.
package memory

import (
	"context"
	"sync"
	"time"
)

// Store keeps processed ids in a map. Contents are lost on restart.
type Store struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]time.Time)}
}

// Exists reports whether id is present.
func (s *Store) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok, nil
}

// Insert records id unless it is already present.
func (s *Store) Insert(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; ok {
		return nil
	}
	s.entries[id] = at
	return nil
}

// DeleteBefore removes entries recorded at or before cutoff.
func (s *Store) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, at := range s.entries {
		if !at.After(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
