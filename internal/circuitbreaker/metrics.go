package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerOpen indicates whether a breaker is rejecting calls.
	BreakerOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bangr_circuit_breaker_open",
			Help: "Whether the circuit breaker is open (1=open, 0=closed)",
		},
		[]string{"breaker"},
	)

	// StateChangesTotal tracks the number of times a breaker changed state.
	StateChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_circuit_breaker_state_changes_total",
			Help: "Total number of circuit breaker state changes",
		},
		[]string{"breaker", "state"},
	)

	// RejectedTotal tracks calls rejected while open.
	RejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_circuit_breaker_rejected_total",
			Help: "Total number of calls rejected by an open circuit breaker",
		},
		[]string{"breaker"},
	)
)
