// Package observability provides Prometheus metrics and search filter
// usage tracking for performance monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	// EventsIngested counts successfully ingested event records.
	EventsIngested prometheus.Counter

	// IngestFailures counts rejected or failed ingest attempts.
	IngestFailures prometheus.Counter

	// Searches counts search requests, partitioned by outcome.
	Searches *prometheus.CounterVec

	// DetailPages counts detail pages served.
	DetailPages prometheus.Counter

	// Logins counts login attempts, partitioned by outcome.
	Logins *prometheus.CounterVec

	// SegmentsArchived counts archive segments written by retention.
	SegmentsArchived prometheus.Counter

	// RequestLatency observes request handling latency per endpoint.
	RequestLatency *prometheus.HistogramVec
}

// NewMetrics creates and registers the service collectors on a private
// registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		EventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_events_ingested_total",
			Help: "Total number of event records successfully ingested",
		}),
		IngestFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_ingest_failures_total",
			Help: "Total number of failed ingest attempts",
		}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_searches_total",
			Help: "Total number of search requests by outcome",
		}, []string{"outcome"}),
		DetailPages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_detail_pages_total",
			Help: "Total number of detail pages served",
		}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_logins_total",
			Help: "Total number of login attempts by outcome",
		}, []string{"outcome"}),
		SegmentsArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_segments_archived_total",
			Help: "Total number of archive segments written by retention",
		}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sift_request_latency_seconds",
			Help:    "Request handling latency by endpoint",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}

	registry.MustRegister(
		m.EventsIngested,
		m.IngestFailures,
		m.Searches,
		m.DetailPages,
		m.Logins,
		m.SegmentsArchived,
		m.RequestLatency,
	)
	return m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
