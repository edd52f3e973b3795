package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarketsCreatedTotal counts markets created by metric.
	MarketsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_markets_created_total",
			Help: "Total number of markets created",
		},
		[]string{"metric"},
	)

	// MarketsResolvedTotal counts markets reaching a terminal status.
	MarketsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_markets_resolved_total",
			Help: "Total number of markets resolved by status",
		},
		[]string{"status"},
	)
)
