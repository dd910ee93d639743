package orderstatus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_order_poll_attempts_total",
		Help: "Order status fetches issued by confirmation sessions",
	})

	pollOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_poll_outcomes_total",
		Help: "Confirmation sessions by terminal state",
	}, []string{"state"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_order_poll_active_sessions",
		Help: "Confirmation sessions currently polling",
	})
)
