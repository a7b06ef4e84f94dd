// Package ratelimit tracks LeetCode throttling and gates outgoing requests.
// A 429 response opens a cooldown window, taken from its Retry-After header,
// during which no request is sent upstream. The window lives in Redis so
// every proxy instance honours it.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Redis keys for cooldown state storage.
const (
	RedisKeyBlockedUntil  = "leetleague:cooldown:blocked_until"
	RedisKeyLastThrottle  = "leetleague:cooldown:last_throttle"
	RedisKeyThrottleCount = "leetleague:cooldown:throttle_count"
)

const (
	// DefaultCooldown applies when a 429 carries no usable Retry-After.
	DefaultCooldown = 60 * time.Second

	// MaxCooldown caps any Retry-After value.
	MaxCooldown = 15 * time.Minute
)

// CooldownState is the shared throttling state.
type CooldownState struct {
	// BlockedUntil is the end of the current cooldown window.
	// The zero value means no cooldown is active.
	BlockedUntil time.Time `json:"blocked_until"`

	// LastThrottle is when the last 429 was observed.
	LastThrottle time.Time `json:"last_throttle"`

	// ThrottleCount is the number of 429 responses seen so far.
	ThrottleCount int64 `json:"throttle_count"`
}

// IsBlocked reports whether requests must be held back at now.
func (s *CooldownState) IsBlocked(now time.Time) bool {
	return now.Before(s.BlockedUntil)
}

// TimeUntilReset returns the remaining cooldown, 0 if none.
func (s *CooldownState) TimeUntilReset(now time.Time) time.Duration {
	d := s.BlockedUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// ParseRetryAfter reads a Retry-After header value, either delay-seconds or
// an HTTP date. Missing or unparsable values yield DefaultCooldown; the
// result is clamped to [1s, MaxCooldown].
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultCooldown
	}

	var d time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		d = at.Sub(now)
	} else {
		return DefaultCooldown
	}

	switch {
	case d < time.Second:
		return time.Second
	case d > MaxCooldown:
		return MaxCooldown
	default:
		return d
	}
}
