package sharedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis, skipping when none is running.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestCacheEntry_TTL(t *testing.T) {
	tests := []struct {
		name    string
		entry   *CacheEntry
		expired bool
	}{
		{"fresh", NewEntry(200, nil, time.Minute), false},
		{"expired", &CacheEntry{Expires: time.Now().Add(-time.Second)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.IsExpired(); got != tt.expired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.expired)
			}
			if tt.expired && tt.entry.TTL() != 0 {
				t.Errorf("TTL() = %v, want 0", tt.entry.TTL())
			}
			if !tt.expired && tt.entry.TTL() <= 0 {
				t.Errorf("TTL() = %v, want > 0", tt.entry.TTL())
			}
		})
	}
}

func TestManager_SetAndGet(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	key := CacheKey{Operation: "userPublicProfile", Digest: "abc"}
	entry := NewEntry(200, []byte(`{"data":{"matchedUser":null}}`), 5*time.Minute)

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Data) != string(entry.Data) || got.StatusCode != 200 {
		t.Errorf("Get() = %+v, want %+v", got, entry)
	}

	ttl, err := client.TTL(ctx, key.String()).Result()
	if err != nil || ttl <= 0 || ttl > 5*time.Minute {
		t.Errorf("redis TTL = %v, %v", ttl, err)
	}
}

func TestManager_Miss(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	_, err := manager.Get(context.Background(), CacheKey{Digest: "missing"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_SetExpiredIsNoop(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	key := CacheKey{Digest: "stale"}
	if err := manager.Set(ctx, key, &CacheEntry{Expires: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if n, _ := client.Exists(ctx, key.String()).Result(); n != 0 {
		t.Error("expired entry was stored")
	}
}

func TestManager_InvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	key := CacheKey{Digest: "corrupt"}
	client.Set(ctx, key.String(), "not json", time.Minute)

	_, err := manager.Get(ctx, key)
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Get() error = %v, want ErrInvalidEntry", err)
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	key := CacheKey{Digest: "gone"}
	if err := manager.Set(ctx, key, NewEntry(200, []byte(`{}`), time.Minute)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after Delete error = %v, want ErrCacheMiss", err)
	}
}
