package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LookupsTotal counts snapshot lookups by key namespace and result.
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_cache_lookups_total",
			Help: "Total number of snapshot cache lookups by namespace and result",
		},
		[]string{"namespace", "result"},
	)

	// WritesTotal counts admitted writes and deletions by key namespace.
	WritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_cache_writes_total",
			Help: "Total number of snapshot cache writes by namespace and operation",
		},
		[]string{"namespace", "operation"},
	)

	// RejectedTotal counts writes dropped by the admission policy.
	RejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_cache_rejected_total",
			Help: "Total number of snapshot cache writes dropped on admission",
		},
		[]string{"namespace"},
	)
)
