// Package metrics exposes Prometheus collectors for a harvest run.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the harvester's Prometheus collectors on a dedicated
// registry. A nil *Metrics is valid and records nothing, so callers never
// guard the disabled case.
type Metrics struct {
	registry *prometheus.Registry

	pagesFetched     prometheus.Counter
	recordsProcessed prometheus.Counter
	assetsSynced     *prometheus.CounterVec
	bytesWritten     prometheus.Counter
	requestDuration  prometheus.Histogram
	errorsTotal      *prometheus.CounterVec
}

// New constructs and registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	pagesFetched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "locscraper_pages_fetched_total",
			Help: "Listing pages fetched successfully.",
		},
	)
	recordsProcessed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "locscraper_records_processed_total",
			Help: "Collection records run through the sync pipeline.",
		},
	)
	assetsSynced := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locscraper_assets_synced_total",
			Help: "Asset sync decisions by outcome.",
		},
		[]string{"outcome"},
	)
	bytesWritten := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "locscraper_bytes_written_total",
			Help: "Asset bytes published to disk.",
		},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "locscraper_request_duration_seconds",
			Help:    "HTTP request latency against the collections host.",
			Buckets: prometheus.DefBuckets,
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locscraper_errors_total",
			Help: "Errors encountered during the run, by type.",
		},
		[]string{"type"},
	)

	registry.MustRegister(pagesFetched, recordsProcessed, assetsSynced, bytesWritten, requestDuration, errorsTotal)

	return &Metrics{
		registry:         registry,
		pagesFetched:     pagesFetched,
		recordsProcessed: recordsProcessed,
		assetsSynced:     assetsSynced,
		bytesWritten:     bytesWritten,
		requestDuration:  requestDuration,
		errorsTotal:      errorsTotal,
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// PageFetched increments the fetched pages counter.
func (m *Metrics) PageFetched() {
	if m == nil {
		return
	}
	m.pagesFetched.Inc()
}

// RecordProcessed increments the processed records counter.
func (m *Metrics) RecordProcessed() {
	if m == nil {
		return
	}
	m.recordsProcessed.Inc()
}

// AssetSynced increments the sync counter for one outcome label.
func (m *Metrics) AssetSynced(outcome string) {
	if m == nil {
		return
	}
	m.assetsSynced.WithLabelValues(outcome).Inc()
}

// AddBytesWritten adds published asset bytes to the byte counter.
func (m *Metrics) AddBytesWritten(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesWritten.Add(float64(n))
}

// ObserveRequestDuration records one HTTP request latency.
func (m *Metrics) ObserveRequestDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.Observe(d.Seconds())
}

// IncError increments the error counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(errorType).Inc()
}
