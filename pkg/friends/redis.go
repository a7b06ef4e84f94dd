package friends

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the sorted set holding the friend list.
const DefaultRedisKey = "leetleague:friends"

// RedisStore keeps friends in a sorted set scored by insertion sequence.
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore creates a Redis-backed store under key.
func NewRedisStore(redisClient *redis.Client, key string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{redis: redisClient, key: key}
}

func (s *RedisStore) seqKey() string {
	return s.key + ":seq"
}

// List returns usernames in first-insertion order.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	names, err := s.redis.ZRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Add appends username unless present.
func (s *RedisStore) Add(ctx context.Context, username string) (bool, error) {
	name, err := NormalizeUsername(username)
	if err != nil {
		return false, err
	}

	// A sequence number wasted on a duplicate only leaves a gap
	seq, err := s.redis.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return false, fmt.Errorf("redis incr: %w", err)
	}

	added, err := s.redis.ZAddNX(ctx, s.key, redis.Z{Score: float64(seq), Member: name}).Result()
	if err != nil {
		return false, fmt.Errorf("redis zadd: %w", err)
	}
	return added == 1, nil
}

// Remove deletes username.
func (s *RedisStore) Remove(ctx context.Context, username string) (bool, error) {
	name, err := NormalizeUsername(username)
	if err != nil {
		return false, err
	}

	removed, err := s.redis.ZRem(ctx, s.key, name).Result()
	if err != nil {
		return false, fmt.Errorf("redis zrem: %w", err)
	}
	return removed == 1, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}
