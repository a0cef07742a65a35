// Package monitoring exposes prometheus metrics for the wallet core.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Wallet session metrics
	WalletUnlocks   *prometheus.CounterVec // result: success|failure
	WalletLocks     *prometheus.CounterVec // reason: manual|auto|delete
	WalletUnlocked  prometheus.Gauge

	// Permission broker metrics
	ApprovalRequests prometheus.Counter
	ApprovalOutcomes *prometheus.CounterVec // outcome: approved|rejected|timeout
	ApprovalsPending prometheus.Gauge
	GrantedOrigins   prometheus.Gauge

	// Ledger metrics
	TransactionsSubmitted  *prometheus.CounterVec // kind
	TransactionsReconciled *prometheus.CounterVec // status: confirmed|failed|pending
	ReconcileRuns          prometheus.Counter
	ReconcileDuration      prometheus.Histogram

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a metrics collector registered on the default
// prometheus registry.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a collector on a private registry.
// Tests use this to avoid duplicate-registration panics.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletcore_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "walletcore_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30, 60, 300},
			},
			[]string{"method", "path"},
		),

		WalletUnlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletcore_wallet_unlocks_total",
				Help: "Unlock attempts by result",
			},
			[]string{"result"},
		),
		WalletLocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletcore_wallet_locks_total",
				Help: "Lock transitions by reason",
			},
			[]string{"reason"},
		),
		WalletUnlocked: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "walletcore_wallet_unlocked",
				Help: "1 while the wallet session is unlocked",
			},
		),

		ApprovalRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "walletcore_approval_requests_total",
				Help: "Capability requests that opened a negotiation",
			},
		),
		ApprovalOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletcore_approval_outcomes_total",
				Help: "Approval negotiation outcomes",
			},
			[]string{"outcome"},
		),
		ApprovalsPending: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "walletcore_approvals_pending",
				Help: "Approval requests currently awaiting a decision",
			},
		),
		GrantedOrigins: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "walletcore_granted_origins",
				Help: "Origins holding at least one capability",
			},
		),

		TransactionsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletcore_transactions_submitted_total",
				Help: "Transactions recorded by kind",
			},
			[]string{"kind"},
		),
		TransactionsReconciled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletcore_transactions_reconciled_total",
				Help: "Reconciliation results by resulting status",
			},
			[]string{"status"},
		),
		ReconcileRuns: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "walletcore_reconcile_runs_total",
				Help: "Reconciliation loop iterations",
			},
		),
		ReconcileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "walletcore_reconcile_duration_seconds",
				Help:    "Duration of a full reconciliation sweep",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30},
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "walletcore_ws_connections",
				Help: "Active approval-channel WebSocket connections",
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "walletcore_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
	}
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
