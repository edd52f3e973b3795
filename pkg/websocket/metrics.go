package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HubConnections tracks clients connected to the event stream.
	HubConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bangr_ws_hub_connections",
		Help: "Number of clients connected to the event stream",
	})

	// MessagesSentTotal tracks events written to stream clients by type.
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_ws_messages_sent_total",
			Help: "Total number of events written to stream clients",
		},
		[]string{"event_type"},
	)

	// ClientConnected is 1 while the stream client holds a connection.
	ClientConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bangr_ws_client_connected",
		Help: "Whether the event stream client is connected",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bangr_ws_reconnect_attempts_total",
		Help: "Total number of WebSocket reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bangr_ws_reconnect_failures_total",
		Help: "Total number of WebSocket reconnection failures",
	})

	// MessagesReceivedTotal tracks events received by the client by type.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_ws_messages_received_total",
			Help: "Total number of events received by the stream client",
		},
		[]string{"event_type"},
	)

	// MessagesDroppedTotal tracks client messages dropped due to a full channel.
	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_ws_messages_dropped_total",
			Help: "Total number of received events dropped",
		},
		[]string{"reason"},
	)

	// ConnectionDuration tracks WebSocket connection lifetime.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bangr_ws_connection_duration_seconds",
		Help:    "Duration of WebSocket connections before disconnect",
		Buckets: []float64{1, 10, 60, 300, 1800, 3600, 14400, 86400},
	})
)
