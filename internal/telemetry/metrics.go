// Package telemetry provides application-level observability for the
// moderation platform.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<MODP_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint returns the Prometheus text exposition
// format and is intended to be scraped every 15–60 seconds. It is NOT served
// by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Audit ledger append counters and append latency
//   - Ledger chain verification results
//   - Moderation lifecycle event counters
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /v1/reports/:id)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as report or appeal IDs.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template (e.g. /v1/reports/:id/override),
// NOT the raw URL, to prevent unbounded cardinality.
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and
// exponential-ish buckets from 5 ms to 30 s. Use histogram_quantile to compute
// latency percentiles.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Audit ledger metrics, recorded by the API layer around every append.
//
// LedgerAppendsTotal counts appends by action kind and outcome ("ok" or
// "error"). An alert on the error outcome catches disk-full or permission
// problems on the ledger file early.
//
// LedgerAppendDuration measures the full append round trip including the
// fsync, so it is the best signal for storage latency regressions.
//
// LedgerRecordsTotal is a gauge holding the sequence number of the most
// recently committed record. A flat line during active moderation traffic
// means writes are stalling.
var (
	LedgerAppendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_appends_total",
			Help: "Total number of audit ledger append attempts, by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	LedgerAppendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_append_duration_seconds",
			Help:    "Duration of a single audit ledger append, including fsync.",
			Buckets: prometheus.DefBuckets,
		},
	)

	LedgerRecordsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_records_total",
			Help: "Sequence number of the most recently committed ledger record.",
		},
	)
)

// Chain verification metrics, recorded whenever the ledger chain is verified
// (on startup, on action log reads, and on health checks).
//
// ChainVerificationsTotal counts verification runs by result ("valid" or
// "invalid"). ChainValid is 1 while the most recent verification passed and 0
// once a break has been observed; alert on chain_valid == 0.
var (
	ChainVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chain_verifications_total",
			Help: "Total number of ledger chain verification runs, by result.",
		},
		[]string{"result"},
	)

	ChainValid = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chain_valid",
			Help: "1 when the most recent ledger chain verification passed, 0 otherwise.",
		},
	)
)

// ModerationActionsTotal counts moderation lifecycle events by action kind
// (report.created, moderation.override.applied, appeal.created,
// appeal.reviewed). Useful for dashboarding moderation load and
// appeal-to-report ratios.
var ModerationActionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "moderation_actions_total",
		Help: "Total number of moderation lifecycle events, by action kind.",
	},
	[]string{"action"},
)

// RateLimitedRequestsTotal counts requests rejected by the rate limiting
// middleware, by route template.
var RateLimitedRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limited_requests_total",
		Help: "Total number of requests rejected with 429 by the rate limiter, by route template.",
	},
	[]string{"path"},
)

// DBOpenConnections is a Gauge that tracks the number of open connections
// currently held by the sql.DB pool. It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid per-request
// sql.DB.Stats() overhead.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// RecordChainVerification updates the chain verification metrics after a run.
func RecordChainVerification(valid bool) {
	if valid {
		ChainVerificationsTotal.WithLabelValues("valid").Inc()
		ChainValid.Set(1)
		return
	}
	ChainVerificationsTotal.WithLabelValues("invalid").Inc()
	ChainValid.Set(0)
}

// StartDBStatsCollector launches a background goroutine that samples sql.DB
// connection pool statistics every 30 seconds and updates DBOpenConnections.
// The goroutine exits when the database becomes unreachable, which happens
// automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
