package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignatureChecksTotal counts request signature verifications by result.
	SignatureChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_wallet_signature_checks_total",
			Help: "Total number of request signature checks by result",
		},
		[]string{"result"},
	)
)
