// Package metrics holds the Prometheus instruments of the shelf service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Shelf operation results.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// Per-item reconciliation outcomes.
const (
	OutcomeInserted  = "inserted"
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeSkipped   = "skipped"
)

var (
	// HTTP metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelf_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelf_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Reconciliation metrics
	ShelfOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelf_operations_total",
			Help: "Shelf create/update/list calls by result",
		},
		[]string{"operation", "result"},
	)

	ShelfItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelf_items_total",
			Help: "Shelf payload items by reconciliation outcome",
		},
		[]string{"outcome"},
	)

	ShelfWriteBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shelf_write_batch_size",
			Help:    "Rows sent per shelf insert batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		},
	)

	// Catalog cache metrics
	CatalogCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelf_catalog_cache_lookups_total",
			Help: "Catalog existence lookups answered by the cache (hit) or the database (miss)",
		},
		[]string{"result"},
	)

	CatalogCacheErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelf_catalog_cache_errors_total",
			Help: "Redis errors that forced a fallback to the database",
		},
	)
)

// RecordAPIRequest records one served HTTP request.
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordShelfOperation counts one create/update/list call.
func RecordShelfOperation(operation, result string) {
	ShelfOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordShelfItems adds n items under the given outcome. Zero counts are skipped.
func RecordShelfItems(outcome string, n int) {
	if n <= 0 {
		return
	}
	ShelfItemsTotal.WithLabelValues(outcome).Add(float64(n))
}

// RecordWriteBatch observes the size of one flushed insert batch.
func RecordWriteBatch(rows int) {
	ShelfWriteBatchSize.Observe(float64(rows))
}

// RecordCatalogCache counts hits and misses of one batched existence lookup.
func RecordCatalogCache(hits, misses int) {
	if hits > 0 {
		CatalogCacheLookups.WithLabelValues("hit").Add(float64(hits))
	}
	if misses > 0 {
		CatalogCacheLookups.WithLabelValues("miss").Add(float64(misses))
	}
}
