package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsStoredTotal counts events handed to the sink by result.
	EventsStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_storage_events_stored_total",
			Help: "Total number of events stored by result",
		},
		[]string{"result"},
	)

	// SequenceGapsTotal counts events missing between two recorded sequences.
	SequenceGapsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bangr_storage_sequence_gaps_total",
		Help: "Total number of events missing from the recorded sequence",
	})

	// StoreDuration tracks sink write latency.
	StoreDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bangr_storage_store_duration_seconds",
		Help:    "Duration of event sink writes",
		Buckets: prometheus.DefBuckets,
	})
)
