package requestcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks lookups answered by a live entry
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leetleague_request_cache_hits_total",
			Help: "Total number of request cache hits",
		},
	)

	// CacheMisses tracks lookups that needed the upstream
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leetleague_request_cache_misses_total",
			Help: "Total number of request cache misses",
		},
	)

	// CacheEvictions tracks entries dropped by capacity pressure or TTL
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leetleague_request_cache_evictions_total",
			Help: "Total number of request cache entries evicted",
		},
	)

	// CacheEntries tracks the current number of entries
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leetleague_request_cache_entries",
			Help: "Current number of request cache entries",
		},
	)

	// CoalescedRequests tracks Resolve calls that shared an in-flight upstream call
	CoalescedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leetleague_request_cache_coalesced_total",
			Help: "Total number of Resolve calls that shared an in-flight upstream call",
		},
	)

	// UpstreamCalls tracks upstream round trips by kind and result
	UpstreamCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leetleague_request_cache_upstream_calls_total",
			Help: "Total number of upstream round trips issued by the request cache",
		},
		[]string{"kind", "result"}, // "single"|"batch", "ok"|"error"
	)

	// UpstreamDuration tracks upstream latency by kind
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leetleague_request_cache_upstream_duration_seconds",
			Help:    "Upstream round trip duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"kind"},
	)
)
