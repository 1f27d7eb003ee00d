// FILE: metrics.go
// Package main – Prometheus metrics for observability.
//
// Exposes the metrics the market maker updates during operation:
//   • mm_orders_total{side,kind,result}  – Submissions (submitted|failed|rejected)
//   • mm_fills_total{side,status}        – Reconciled fill increments
//   • mm_inventory_base                  – Net base position (gauge)
//   • mm_cancel_all_total{result}        – Cancel-all attempts (ok|failed)
//   • mm_cycle_errors_total{loop}        – Loop iterations that failed (quote|monitor|feed)
//   • mm_quote_price{side}               – Last quoted bid/ask
//   • mm_signatures_processed_total      – Signatures delivered by the monitor
//   • mm_signatures_skipped_total        – Signatures dropped after repeated decode failures
//   • mm_take_profit_total{stage}        – Take-profit lifecycle (submitted|settled|cancelled|expired)
//
// These are registered in init() and served by the ops router at /metrics.

package main

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_orders_total",
			Help: "Orders by side, kind and submission result",
		},
		[]string{"side", "kind", "result"},
	)

	mtxFills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_fills_total",
			Help: "Fill increments applied, by side and resulting status",
		},
		[]string{"side", "status"},
	)

	mtxInventory = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mm_inventory_base",
			Help: "Net base-asset position derived from fills",
		},
	)

	mtxCancelAll = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_cancel_all_total",
			Help: "Cancel-all attempts by result",
		},
		[]string{"result"},
	)

	// loop: quote|monitor|feed
	mtxCycleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_cycle_errors_total",
			Help: "Failed loop iterations by loop",
		},
		[]string{"loop"},
	)

	mtxQuotePrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mm_quote_price",
			Help: "Last quoted price by side",
		},
		[]string{"side"},
	)

	mtxSignatures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mm_signatures_processed_total",
			Help: "Transaction signatures delivered to the order manager",
		},
	)

	mtxSignaturesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mm_signatures_skipped_total",
			Help: "Signatures given up after repeated decode failures",
		},
	)

	mtxTakeProfit = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_take_profit_total",
			Help: "Take-profit orders by lifecycle stage",
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(mtxOrders, mtxFills, mtxInventory, mtxCancelAll)
	prometheus.MustRegister(mtxCycleErrors, mtxQuotePrice, mtxSignatures, mtxSignaturesSkipped, mtxTakeProfit)
}

func SetQuoteMetrics(bid, ask float64) {
	mtxQuotePrice.WithLabelValues("bid").Set(bid)
	mtxQuotePrice.WithLabelValues("ask").Set(ask)
}
