package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ipwarehouse"

// Warehouse, query and enrichment Prometheus metrics.
var (
	WarehouseWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warehouse_writes_total",
			Help:      "Documents offered to the warehouse",
		},
		[]string{"category", "result"}, // "added" / "skipped"
	)

	WarehouseKeysLoaded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "warehouse_keys_loaded",
			Help:      "Dedup keys loaded per category on the last session open",
		},
		[]string{"category"},
	)

	WarehouseSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warehouse_sessions_total",
			Help:      "Warehouse session opens",
		},
		[]string{"status"},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Executed queries by outcome",
		},
		[]string{"status"}, // ok, parse_error, invalid_pipeline, error
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query execution time including the store scan",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	QueryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_total",
			Help:      "Compiled pipeline cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	LookupRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_requests_total",
			Help:      "External enrichment lookups",
		},
		[]string{"source", "status"},
	)

	LookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "External enrichment lookup duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)
)

var registerOnce sync.Once

// Register registers every metric of this package with the default registry.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			WarehouseWritesTotal,
			WarehouseKeysLoaded,
			WarehouseSessionsTotal,
			QueriesTotal,
			QueryDuration,
			QueryCacheTotal,
			LookupRequestsTotal,
			LookupDuration,
			HTTPRequestsTotal,
			HTTPRequestDuration,
			HTTPResponseBytes,
		)
	})
}
