package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrCooldown is returned when a request is refused during a cooldown window.
var ErrCooldown = errors.New("leetcode rate limit cooldown active")

// Prometheus metrics for throttling.
var (
	cooldownActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leetleague_cooldown_active",
		Help: "1 while a LeetCode rate limit cooldown is in effect",
	})

	throttlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leetleague_upstream_throttles_total",
		Help: "Total number of 429 responses received from LeetCode",
	})

	blockedRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leetleague_cooldown_blocked_requests_total",
		Help: "Total number of requests refused during a cooldown window",
	})
)

// Tracker records LeetCode throttling in Redis and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a new cooldown tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
	}
}

// GetState retrieves the cooldown state from Redis.
// Missing keys yield the zero state (not blocked).
func (t *Tracker) GetState(ctx context.Context) (*CooldownState, error) {
	state := &CooldownState{}

	blockedUntil, err := t.redis.Get(ctx, RedisKeyBlockedUntil).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get blocked until: %w", err)
	}
	if err == nil {
		state.BlockedUntil = time.UnixMilli(blockedUntil)
	}

	lastThrottle, err := t.redis.Get(ctx, RedisKeyLastThrottle).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last throttle: %w", err)
	}
	if err == nil {
		state.LastThrottle = time.UnixMilli(lastThrottle)
	}

	count, err := t.redis.Get(ctx, RedisKeyThrottleCount).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get throttle count: %w", err)
	}
	state.ThrottleCount = count

	return state, nil
}

// UpdateFromResponse records a LeetCode response. Only 429 changes state:
// it opens a cooldown of the Retry-After duration.
func (t *Tracker) UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error {
	if statusCode != http.StatusTooManyRequests {
		return nil
	}

	now := t.now()
	cooldown := ParseRetryAfter(headers.Get("Retry-After"), now)
	blockedUntil := now.Add(cooldown)

	// The key expires with the window so a stale cooldown never lingers
	pipe := t.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyBlockedUntil, blockedUntil.UnixMilli(), cooldown)
	pipe.Set(ctx, RedisKeyLastThrottle, now.UnixMilli(), 0)
	pipe.Incr(ctx, RedisKeyThrottleCount)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store cooldown state in redis: %w", err)
	}

	throttlesTotal.Inc()
	cooldownActive.Set(1)

	t.logger.Warn().
		Dur("cooldown", cooldown).
		Time("blocked_until", blockedUntil).
		Msg("LeetCode rate limit hit - entering cooldown")

	return nil
}

// ShouldAllowRequest reports whether a request may be sent upstream now.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get cooldown state: %w", err)
	}

	now := t.now()
	if state.IsBlocked(now) {
		blockedRequestsTotal.Inc()
		t.logger.Debug().
			Dur("wait_duration", state.TimeUntilReset(now)).
			Msg("Cooldown active - blocking request")
		return false, nil
	}

	cooldownActive.Set(0)
	return true, nil
}

// Reset clears the cooldown window, keeping the throttle history.
func (t *Tracker) Reset(ctx context.Context) error {
	if err := t.redis.Del(ctx, RedisKeyBlockedUntil).Err(); err != nil {
		return fmt.Errorf("clear cooldown: %w", err)
	}
	cooldownActive.Set(0)
	return nil
}
