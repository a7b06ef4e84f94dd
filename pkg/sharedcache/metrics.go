package sharedcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks shared cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leetleague_shared_cache_hits_total",
			Help: "Total number of shared response cache hits",
		},
	)

	// CacheMisses tracks shared cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leetleague_shared_cache_misses_total",
			Help: "Total number of shared response cache misses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leetleague_shared_cache_errors_total",
			Help: "Total number of shared cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
