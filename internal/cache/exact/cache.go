// Package exact provides an optional exact-match answer cache in front of
// the semantic engine. It serves only byte-identical prompts, so the
// semantic lookup semantics stay untouched; it exists to short-circuit the
// embedding call for repeated identical requests.
package exact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Entry is the cached answer for one (project, prompt) pair.
type Entry struct {
	EntryID string `json:"entry_id"`
	Answer  string `json:"answer"`
}

// Cache defines the exact-match cache contract. Absence is (nil, nil),
// matching the read-path convention of the rest of the system.
type Cache interface {
	// Get retrieves the entry for a key. Returns nil, nil on miss.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores an entry under a key with the given TTL. A zero TTL
	// uses the backend default.
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Ping checks backend health.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error

	// Stats returns hit and miss counters.
	Stats() Stats
}

// Stats holds exact-cache counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

// Key derives the cache key for a prompt within a project. Prompts hash
// through SHA-256 so arbitrarily long text maps to a bounded key.
func Key(projectID, prompt string) string {
	hash := sha256.Sum256([]byte(prompt))
	return fmt.Sprintf("exact:%s:%s", projectID, hex.EncodeToString(hash[:]))
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
