package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SharesMintedTotal tracks whole shares minted by outcome.
	SharesMintedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_ledger_shares_minted_total",
			Help: "Total outcome shares minted",
		},
		[]string{"outcome"},
	)

	// SharesBurnedTotal tracks whole shares burned by outcome.
	SharesBurnedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_ledger_shares_burned_total",
			Help: "Total outcome shares burned",
		},
		[]string{"outcome"},
	)

	// CollateralFlowTotal counts collateral entering or leaving the engine.
	CollateralFlowTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_ledger_collateral_flow_total",
			Help: "Total collateral deposits and withdrawals",
		},
		[]string{"direction"},
	)
)
