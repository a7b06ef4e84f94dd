package requestcache

import (
	"encoding/json"
	"time"
)

// Entry represents a cached upstream response.
// Entries are never modified after insertion.
type Entry struct {
	// Response is the raw JSON returned by the upstream for this fingerprint
	Response json.RawMessage

	// CachedAt is when the response was stored
	CachedAt time.Time
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CachedAt)
}

// IsExpired returns true once the entry's age exceeds ttl.
func (e *Entry) IsExpired(now time.Time, ttl time.Duration) bool {
	return e.Age(now) > ttl
}

// Remaining returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) Remaining(now time.Time, ttl time.Duration) time.Duration {
	remaining := ttl - e.Age(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
