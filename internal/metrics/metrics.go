package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, route, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, route, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// StockMutations counts successful ledger changes by action kind (Addition, Withdrawal).
	StockMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labstock_stock_mutations_total",
			Help: "Total number of recorded stock additions and withdrawals",
		},
		[]string{"kind"},
	)

	// ReportBuilds counts audit report generations by outcome (ok, corrupt, error).
	ReportBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labstock_report_builds_total",
			Help: "Total number of audit report builds by outcome",
		},
		[]string{"outcome"},
	)

	// AuditQuarantines counts corrupt audit logs moved aside.
	AuditQuarantines = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "labstock_audit_quarantines_total",
			Help: "Number of times a corrupt audit log was quarantined and reinitialized",
		},
	)

	// AuditInconsistencies counts ledger changes whose audit entry could not be written.
	AuditInconsistencies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "labstock_audit_inconsistencies_total",
			Help: "Ledger mutations applied without a matching audit entry",
		},
	)

	// ScheduledExports counts cron export runs by result (ok, error).
	ScheduledExports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labstock_scheduled_exports_total",
			Help: "Scheduled spreadsheet exports by result",
		},
		[]string{"result"},
	)
)

var initOnce sync.Once

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestDuration, RequestTotal,
			StockMutations, ReportBuilds,
			AuditQuarantines, AuditInconsistencies,
			ScheduledExports,
		)
	})
}

// NormalizePath keeps label cardinality bounded: requests that matched no
// route share one label.
func NormalizePath(routePattern string) string {
	if routePattern == "" {
		return "unmatched"
	}
	return routePattern
}

// RecordRequest records duration and count for an HTTP request.
func RecordRequest(method, routePattern string, statusCode int, durationSeconds float64) {
	path := NormalizePath(routePattern)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// IncStockMutation increments the mutation counter for an action kind.
func IncStockMutation(kind string) {
	StockMutations.WithLabelValues(kind).Inc()
}

// IncReportBuild increments the report build counter for an outcome.
func IncReportBuild(outcome string) {
	ReportBuilds.WithLabelValues(outcome).Inc()
}

// IncScheduledExport increments the scheduled export counter for a result.
func IncScheduledExport(result string) {
	ScheduledExports.WithLabelValues(result).Inc()
}
