// Package ratelimit implements a shared cooldown gate for upstream rate
// limiting. When one request is answered with HTTP 429, every request that
// shares the gate holds off until the cooldown has passed.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyCooldownUntil = "ctgov:rate_limit:cooldown_until"
	RedisKeyHits          = "ctgov:rate_limit:hits"
	RedisKeyLastUpdate    = "ctgov:rate_limit:last_update"
)

// State represents the current rate limit cooldown.
type State struct {
	// CooldownUntil is when requests may be issued again.
	CooldownUntil time.Time `json:"cooldown_until"`

	// Hits is the number of consecutive rate-limit responses seen.
	// Reset by a successful response.
	Hits int `json:"hits"`

	// LastUpdate is the timestamp when this state was last updated.
	LastUpdate time.Time `json:"last_update"`
}

// Active returns true while the cooldown is in force.
func (s *State) Active() bool {
	return time.Now().Before(s.CooldownUntil)
}

// TimeUntilReset returns the remaining cooldown.
// Returns 0 if the cooldown has already passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.CooldownUntil)
	if duration < 0 {
		return 0
	}
	return duration
}

// IsStale returns true if the state data is older than the given duration.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}
