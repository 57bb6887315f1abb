// Package ledger persists the fingerprints of applied changes so re-running
// an apply is a no-op for everything that already landed.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DefaultTTL is the default duration that applied-change records are
// retained. Entries this stale refer to runs nobody re-applies.
const DefaultTTL = 7 * 24 * time.Hour

// Entry captures one applied change.
type Entry struct {
	Key       string    `json:"key"`
	AppliedAt time.Time `json:"appliedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store persists applied-change fingerprints.
type Store interface {
	// Seen reports whether the change key was already applied and has not
	// expired.
	Seen(ctx context.Context, key string, now time.Time) (bool, error)
	// Record marks the change key applied.
	Record(ctx context.Context, key string, now time.Time, ttl time.Duration) error
	// CleanupExpired removes stale entries and reports how many were
	// dropped.
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
}

func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}
