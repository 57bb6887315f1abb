package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore provides an in-memory implementation useful for testing and
// dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore constructs an empty memory-backed ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Seen implements the Store interface.
func (s *MemoryStore) Seen(_ context.Context, key string, now time.Time) (bool, error) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[fingerprint(key)]
	if !ok {
		return false, nil
	}
	if !entry.ExpiresAt.IsZero() && !now.Before(entry.ExpiresAt) {
		delete(s.entries, fingerprint(key))
		return false, nil
	}
	return true, nil
}

// Record implements the Store interface.
func (s *MemoryStore) Record(_ context.Context, key string, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[fingerprint(key)] = Entry{
		Key:       key,
		AppliedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return nil
}

// CleanupExpired implements the Store interface.
func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time) (int, error) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if !entry.ExpiresAt.IsZero() && !now.Before(entry.ExpiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}
