package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal counts markets settled by the resolver by status.
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_resolver_resolutions_total",
			Help: "Total number of markets settled by the resolver",
		},
		[]string{"status"},
	)

	// FetchFailuresTotal counts failed final-value fetches.
	FetchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bangr_resolver_fetch_failures_total",
		Help: "Total number of failed tweet fetches during resolution",
	})

	// TickDuration tracks the duration of one resolver pass.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bangr_resolver_tick_duration_seconds",
		Help:    "Duration of resolver passes",
		Buckets: prometheus.DefBuckets,
	})
)
