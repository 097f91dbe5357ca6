package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ewallet"

// 记账操作结果
const (
	OutcomeSuccess           = "success"
	OutcomeInvalidAmount     = "invalid_amount"
	OutcomeAccountNotFound   = "account_not_found"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeTransient         = "transient"
	OutcomeError             = "error"
)

var (
	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Total number of ledger operations by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	LedgerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_operation_duration_seconds",
			Help:      "Ledger operation latency in seconds, lock wait included.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"kind"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox messages handed to the broker, by result.",
		},
		[]string{"result"},
	)

	ReconcileDriftAccounts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconcile_drift_accounts",
			Help:      "Accounts whose stored balance differed from the ledger on the last reconcile run.",
		},
	)
)

// ObserveLedger 记录一次记账操作
func ObserveLedger(kind, outcome string, start time.Time) {
	LedgerOperations.WithLabelValues(kind, outcome).Inc()
	LedgerOperationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
