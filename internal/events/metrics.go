package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublishedTotal counts events published to the bus by type.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_events_published_total",
			Help: "Total number of engine events published",
		},
		[]string{"event_type"},
	)

	// EventsDroppedTotal counts events a subscriber missed because its buffer was full.
	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_events_dropped_total",
			Help: "Total number of events dropped due to full subscriber buffers",
		},
		[]string{"subscriber"},
	)

	// BacklogSize tracks events queued for durable subscribers.
	BacklogSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bangr_events_backlog_size",
			Help: "Number of events queued for durable subscribers",
		},
		[]string{"subscriber"},
	)

	// ActiveSubscriptions tracks live bus subscriptions.
	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bangr_events_active_subscriptions",
		Help: "Number of active event bus subscriptions",
	})
)
