// Package requestcache deduplicates and memoizes GraphQL requests sent to the
// LeetCode proxy.
//
// The cache sits between dashboard consumers (friend cards, leaderboard,
// activity feed) and an upstream Transport. It provides:
//
// - Deterministic request fingerprints (object keys sorted at every depth)
// - Least-recently-used eviction with a hard capacity ceiling
// - A per-entry time-to-live measured from insertion
// - Batch partitioning: only distinct uncached requests go upstream
// - In-flight coalescing for concurrent Resolve calls
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	transport, err := upstream.New(upstream.DefaultConfig("https://example.com/api/leetcode", "LeetLeague/1.0"))
//	if err != nil {
//		return err
//	}
//
//	c, err := requestcache.New(transport, requestcache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	resp, err := c.Resolve(ctx, requestcache.Request{
//		Query:     profileQuery,
//		Variables: map[string]any{"username": "alice"},
//	})
//
// # Batches
//
//	results, err := c.ResolveBatch(ctx, []requestcache.Request{a, b, a})
//	// len(results) == 3, results[0] and results[2] are the same response.
//	// At most one upstream call was made, carrying [a, b] minus cache hits.
//
// # Failures
//
// Any transport failure (network error, non-2xx status, malformed JSON) is
// returned as *UpstreamError and nothing is cached. Failed calls are never
// retried by this package.
//
// # Metrics
//
//   - leetleague_request_cache_hits_total - Live entries served from memory
//   - leetleague_request_cache_misses_total - Lookups that needed the upstream
//   - leetleague_request_cache_evictions_total - Entries dropped (capacity or TTL)
//   - leetleague_request_cache_entries - Current number of entries
//   - leetleague_request_cache_coalesced_total - Resolve calls that shared an in-flight call
//   - leetleague_request_cache_upstream_calls_total{kind,result} - Upstream round trips
//   - leetleague_request_cache_upstream_duration_seconds{kind} - Upstream latency
package requestcache
