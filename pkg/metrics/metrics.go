// Package metrics documents the LeetLeague Prometheus metrics and serves them.
// Metrics are defined in their own packages (requestcache, graphql, proxy,
// ratelimit, sharedcache, fanout, upstream, httpapi) via promauto, so this
// package only imports Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package's promauto metrics land in.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default registry for /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Cache Metrics (pkg/requestcache):
//   - leetleague_request_cache_hits_total (Counter): Descriptors answered from cache
//   - leetleague_request_cache_misses_total (Counter): Descriptors that needed upstream
//   - leetleague_request_cache_evictions_total (Counter): Entries removed by capacity or expiry
//   - leetleague_request_cache_entries (Gauge): Current entry count
//   - leetleague_request_cache_coalesced_total (Counter): Callers that joined an in-flight fetch
//   - leetleague_request_cache_upstream_calls_total{kind, result} (Counter): Transport calls
//   - leetleague_request_cache_upstream_duration_seconds{kind} (Histogram): Transport latency
//
// Proxy Client Metrics (pkg/upstream):
//   - leetleague_proxy_requests_total{kind, status} (Counter): Calls to the proxy endpoint
//   - leetleague_proxy_request_duration_seconds{kind} (Histogram): Proxy call latency
//   - leetleague_proxy_errors_total{class} (Counter): Failures by error class
//
// LeetCode Metrics (pkg/graphql):
//   - leetleague_leetcode_requests_total{status} (Counter): Forwarded requests by HTTP status,
//     "cooldown" or "network_error"
//   - leetleague_leetcode_request_duration_seconds (Histogram): LeetCode latency
//
// Cooldown Metrics (pkg/ratelimit):
//   - leetleague_cooldown_active (Gauge): 1 while LeetCode calls are suspended
//   - leetleague_upstream_throttles_total (Counter): 429 responses seen
//   - leetleague_cooldown_blocked_requests_total (Counter): Calls refused during cooldown
//
// Shared Cache Metrics (pkg/sharedcache):
//   - leetleague_shared_cache_hits_total (Counter): Redis response cache hits
//   - leetleague_shared_cache_misses_total (Counter): Redis response cache misses
//   - leetleague_shared_cache_errors_total{operation} (Counter): Redis failures
//
// Fan-out Metrics (pkg/fanout):
//   - leetleague_fanout_batch_size (Histogram): Tasks per batch
//   - leetleague_fanout_batch_duration_seconds{result} (Histogram): Batch latency
//
// HTTP Metrics (pkg/httpapi):
//   - leetleague_http_requests_total{handler, method, code} (Counter)
//   - leetleague_http_request_duration_seconds{handler, method, code} (Histogram)
//
// Example Prometheus Queries:
//
//   # Request cache hit rate
//   sum(rate(leetleague_request_cache_hits_total[5m])) /
//   (sum(rate(leetleague_request_cache_hits_total[5m])) + sum(rate(leetleague_request_cache_misses_total[5m])))
//
//   # Coalescing effectiveness
//   rate(leetleague_request_cache_coalesced_total[5m])
//
//   # Time spent in cooldown
//   avg_over_time(leetleague_cooldown_active[1h])
//
//   # P95 LeetCode latency
//   histogram_quantile(0.95, rate(leetleague_leetcode_request_duration_seconds_bucket[5m]))
