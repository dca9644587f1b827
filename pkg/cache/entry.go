package cache

import (
	"time"
)

// Entry is a cached, already decoded upstream response body.
type Entry struct {
	// Value is the decoded JSON body
	Value any

	// Category is the partition the entry lives in
	Category Category

	// CachedAt is when the entry was stored
	CachedAt time.Time

	// Expires is when the entry becomes stale (CachedAt + partition TTL)
	Expires time.Time
}

// IsExpired returns true if the cache entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CachedAt)
}
