package orderbook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RestingOrders tracks the number of orders sitting in all books.
	RestingOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bangr_orderbook_resting_orders",
		Help: "Number of orders resting in the order books",
	})

	// OrdersCreatedTotal counts orders stored in the arena by side.
	OrdersCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangr_orderbook_orders_created_total",
			Help: "Total number of orders accepted into the arena",
		},
		[]string{"side"},
	)
)
