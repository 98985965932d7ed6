package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_ledger_orders_created_total",
		Help: "Orders inserted locally in PENDING_STOCK state.",
	})

	OrdersConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_ledger_orders_confirmed_total",
		Help: "Orders whose remote stock adjustment was acknowledged.",
	})

	StockAdjustRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_ledger_stock_adjust_retries_total",
		Help: "Retried stock adjustment attempts after an unavailable upstream.",
	})

	ReconcilerSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_ledger_reconciler_sweeps_total",
		Help: "Completed reconciliation sweeps.",
	})

	ReconcilerResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_ledger_reconciler_resolved_total",
		Help: "Orders moved out of an in-doubt state by the reconciler.",
	})
)
