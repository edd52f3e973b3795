package tweets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts twitterapi.io requests by response status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_tweets_requests_total",
			Help: "Total number of tweet API requests by status",
		},
		[]string{"status"},
	)

	// RequestDuration tracks tweet API latency.
	RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bangr_tweets_request_duration_seconds",
		Help:    "Duration of tweet API requests",
		Buckets: prometheus.DefBuckets,
	})

	// CacheHitsTotal counts tweet snapshots served from cache.
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bangr_tweets_cache_hits_total",
		Help: "Total number of tweet snapshots served from cache",
	})

	// CacheMissesTotal counts tweet snapshots fetched from the provider.
	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bangr_tweets_cache_misses_total",
		Help: "Total number of tweet cache misses",
	})
)
