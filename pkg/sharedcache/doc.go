// Package sharedcache is the proxy's Redis-backed response cache.
//
// Every proxy instance sees the same entries, so a profile fetched for one
// visitor is served to the next without touching LeetCode. Only successful
// responses are stored, each with a fixed TTL.
//
// # Basic Usage
//
//	manager := sharedcache.NewManager(redisClient)
//
//	key, err := sharedcache.KeyFor(req)
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, sharedcache.ErrCacheMiss) {
//		// forward to LeetCode, then
//		manager.Set(ctx, key, sharedcache.NewEntry(status, body, time.Minute))
//	}
//
// # Metrics
//
//   - leetleague_shared_cache_hits_total
//   - leetleague_shared_cache_misses_total
//   - leetleague_shared_cache_errors_total{operation}
package sharedcache
