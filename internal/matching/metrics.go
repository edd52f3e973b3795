package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FillsTotal counts fills by settlement kind.
	FillsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_matching_fills_total",
			Help: "Total number of fills executed",
		},
		[]string{"kind"},
	)
)
