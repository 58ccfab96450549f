package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditledger_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auditledger_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Audit lifecycle metrics
	AuditsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditledger_audits_created_total",
			Help: "Total number of audits created",
		},
		[]string{"type"},
	)

	AuditItemsGenerated = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditledger_audit_items_generated",
			Help:    "Number of expected items generated per audit",
			Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000, 10000},
		},
		[]string{"type"},
	)

	AuditTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditledger_audit_transitions_total",
			Help: "Total number of audit lifecycle transition attempts",
		},
		[]string{"from", "to", "status"},
	)

	// Collection metrics
	ReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditledger_readings_total",
			Help: "Total number of processed readings by outcome",
		},
		[]string{"outcome"},
	)

	CollectBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auditledger_collect_batch_duration_seconds",
			Help:    "Time spent processing one collection batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	CollectBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auditledger_collect_batch_size",
			Help:    "Number of readings per collection batch",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
		},
	)

	AssetsMarkedVerifiedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auditledger_assets_marked_verified_total",
			Help: "Total number of assets whose last verified timestamp was propagated",
		},
	)

	// Ledger metrics
	LedgerAppendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditledger_ledger_appends_total",
			Help: "Total number of ledger append attempts",
		},
		[]string{"action", "status"},
	)

	LedgerVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditledger_ledger_verifications_total",
			Help: "Total number of chain verifications by result",
		},
		[]string{"result"},
	)

	LedgerVerifyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auditledger_ledger_verify_duration_seconds",
			Help:    "Time spent replaying one asset chain",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Activity trail metrics
	ActivityEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditledger_activity_events_total",
			Help: "Total number of activity trail events",
		},
		[]string{"status"},
	)

	// System metrics
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "auditledger_build_info",
			Help: "Build information",
		},
		[]string{"version", "go_version"},
	)
)
