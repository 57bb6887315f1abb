package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// FileStore implements Store backed by a local JSON file. Writes go through
// a temp file and rename so a killed run never leaves a torn ledger.
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
}

// OpenFileStore loads the ledger at path, creating parent directories as
// needed. A missing file is an empty ledger.
func OpenFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("ledger: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create directory for %s: %w", path, err)
	}

	store := &FileStore{path: path, entries: make(map[string]Entry)}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return store, nil
		}
		return nil, fmt.Errorf("ledger: read %s: %w", path, err)
	}
	var persisted []Entry
	if err := json.Unmarshal(raw, &persisted); err != nil {
		return nil, fmt.Errorf("ledger: parse %s: %w", path, err)
	}
	for _, entry := range persisted {
		store.entries[fingerprint(entry.Key)] = entry
	}
	return store, nil
}

// Seen implements the Store interface.
func (s *FileStore) Seen(_ context.Context, key string, now time.Time) (bool, error) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[fingerprint(key)]
	if !ok {
		return false, nil
	}
	if !entry.ExpiresAt.IsZero() && !now.Before(entry.ExpiresAt) {
		return false, nil
	}
	return true, nil
}

// Record implements the Store interface. The entry is persisted immediately
// so a run killed mid-apply still remembers what landed.
func (s *FileStore) Record(_ context.Context, key string, now time.Time, ttl time.Duration) error {
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
	return s.persistLocked()
}

// CleanupExpired implements the Store interface.
func (s *FileStore) CleanupExpired(_ context.Context, now time.Time) (int, error) {
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
	if removed == 0 {
		return 0, nil
	}
	return removed, s.persistLocked()
}

func (s *FileStore) persistLocked() error {
	persisted := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		persisted = append(persisted, entry)
	}
	raw, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: encode: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("ledger: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("ledger: replace %s: %w", s.path, err)
	}
	return nil
}
