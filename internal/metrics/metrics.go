package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verimeter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verimeter_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	GatekeeperDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verimeter_gatekeeper_decisions_total",
			Help: "Admission decisions by result and reason code",
		},
		[]string{"result", "reason"},
	)

	WalletOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verimeter_wallet_operations_total",
			Help: "Wallet mutations by type and outcome",
		},
		[]string{"type", "result"},
	)

	AuditWriteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verimeter_audit_write_failures_total",
			Help: "Audit entries the store rejected, by failure mode",
		},
		[]string{"mode"},
	)

	AuditPublishFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verimeter_audit_publish_failures_total",
			Help: "Audit entries that could not be published to the event stream",
		},
	)

	AuditArchivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verimeter_audit_archived_entries_total",
			Help: "Audit entries exported to archive storage",
		},
	)

	ReconciliationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verimeter_reconciliation_runs_total",
			Help: "Ledger reconciliation runs by status",
		},
		[]string{"status"},
	)

	ReconciliationMismatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verimeter_reconciliation_mismatches_total",
			Help: "Wallets whose cached balance differs from the ledger",
		},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verimeter_cache_lookups_total",
			Help: "Cache lookups by kind and result",
		},
		[]string{"kind", "result"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordDecision counts a gatekeeper outcome. reason is empty for allowed calls.
func RecordDecision(result, reason string) {
	GatekeeperDecisionsTotal.WithLabelValues(result, reason).Inc()
}

func RecordWalletOperation(txType, result string) {
	WalletOperationsTotal.WithLabelValues(txType, result).Inc()
}

func RecordAuditWriteFailure(mode string) {
	AuditWriteFailuresTotal.WithLabelValues(mode).Inc()
}

func RecordAuditPublishFailure() {
	AuditPublishFailuresTotal.Inc()
}

func RecordAuditArchived(n int) {
	AuditArchivedTotal.Add(float64(n))
}

func RecordReconciliationRun(status string) {
	ReconciliationRunsTotal.WithLabelValues(status).Inc()
}

func RecordReconciliationMismatch() {
	ReconciliationMismatchesTotal.Inc()
}

func RecordCacheLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(kind, result).Inc()
}
