package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by partition
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctgov_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"category"}, // "metadata", "statistics", "study", "search"
	)

	// CacheMisses tracks cache misses by partition
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctgov_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"category"},
	)

	// CacheEntries tracks the number of live entries per partition
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ctgov_cache_entries",
			Help: "Current number of entries per cache partition",
		},
		[]string{"category"},
	)

	// CacheClears tracks full cache clears
	CacheClears = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ctgov_cache_clears_total",
			Help: "Total number of full cache clears",
		},
	)
)
