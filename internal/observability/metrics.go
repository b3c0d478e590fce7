// Package observability provides Prometheus metrics and structured logging.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Query metrics
	QueriesTotal    *prometheus.CounterVec // by query, cache result
	QueryDuration   *prometheus.HistogramVec
	RowsScanned     prometheus.Counter
	EstimatesTotal  *prometheus.CounterVec // by query, outcome
	BudgetRefusals  prometheus.Counter
	DataQualityRows *prometheus.CounterVec // by query

	// Cache metrics
	CacheEvictions  prometheus.Counter
	CacheStaleDrops prometheus.Counter
	CacheSize       prometheus.Gauge

	// Ingestion metrics
	RowsIngested     *prometheus.CounterVec // by kind
	IngestErrors     *prometheus.CounterVec // by kind, error_type
	WSConnections    prometheus.Gauge
	WSMessagesTotal  prometheus.Counter
	LastIngestedUnix prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on reg. Tests pass a
// fresh prometheus.NewRegistry to stay isolated; binaries pass nil for the
// default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "market_analytics"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "queries_total",
			Help:      "Total number of queries by name and cache result",
		}, []string{"query", "cache"}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "query_duration_seconds",
			Help:      "Query computation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		RowsScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rows_scanned_total",
			Help:      "Total number of store rows scanned by computations",
		}),
		EstimatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "estimates_total",
			Help:      "Total number of cost estimates by query and outcome",
		}, []string{"query", "outcome"}),
		BudgetRefusals: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "budget_refusals_total",
			Help:      "Total number of computations refused over cost budget",
		}),
		DataQualityRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "data_quality_rows_total",
			Help:      "Total number of malformed rows skipped by query",
		}, []string{"query"}),

		CacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total number of cache entries evicted",
		}),
		CacheStaleDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "stale_drops_total",
			Help:      "Total number of entries dropped for version staleness",
		}),
		CacheSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "ready_entries",
			Help:      "Current number of READY cache entries",
		}),

		RowsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "rows_total",
			Help:      "Total number of rows ingested by kind",
		}, []string{"kind"}),
		IngestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by kind and type",
		}, []string{"kind", "error_type"}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ws_connections",
			Help:      "Current number of open websocket ingest connections",
		}),
		WSMessagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ws_messages_total",
			Help:      "Total number of websocket ingest messages received",
		}),
		LastIngestedUnix: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "last_ingested_timestamp",
			Help:      "Unix timestamp of the last successful ingest",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
