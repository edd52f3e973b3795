package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts exchange operations by result ("ok" or error kind).
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_exchange_operations_total",
			Help: "Total number of exchange operations by result",
		},
		[]string{"operation", "result"},
	)

	// OperationDuration tracks time spent inside the exchange lock.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bangr_exchange_operation_duration_seconds",
			Help:    "Duration of exchange operations",
			Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .05},
		},
		[]string{"operation"},
	)
)
