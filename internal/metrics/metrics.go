// Package metrics exposes the Prometheus collectors used by the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"partlife-backend/internal/health"
)

// Metrics groups the collectors updated by the fleet, the persistence queue
// and the health sweep.
type Metrics struct {
	registry *prometheus.Registry

	Transitions    *prometheus.CounterVec
	PersistFailed  *prometheus.CounterVec
	PersistApplied prometheus.Counter
	QueueDepth     prometheus.Gauge
	PartsByStatus  *prometheus.GaugeVec
	AlertsSent     *prometheus.CounterVec
	ImportedRows   *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "partlife",
			Name:      "transitions_total",
			Help:      "Lifecycle transitions applied to the in-memory fleet.",
		}, []string{"operation"}),
		PersistFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "partlife",
			Name:      "persist_failures_total",
			Help:      "Store writes that failed after the in-memory transition succeeded.",
		}, []string{"entity"}),
		PersistApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "partlife",
			Name:      "persist_changes_total",
			Help:      "Changes taken off the persistence queue.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "partlife",
			Name:      "persist_queue_depth",
			Help:      "Changes waiting to be written.",
		}),
		PartsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "partlife",
			Name:      "parts",
			Help:      "Installed parts by health status at the last sweep.",
		}, []string{"status"}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "partlife",
			Name:      "alerts_total",
			Help:      "Critical-part push notifications by outcome.",
		}, []string{"outcome"}),
		ImportedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "partlife",
			Name:      "import_rows_total",
			Help:      "CSV import rows by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.Transitions,
		m.PersistFailed,
		m.PersistApplied,
		m.QueueDepth,
		m.PartsByStatus,
		m.AlertsSent,
		m.ImportedRows,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveCounts publishes the per-status part gauges.
func (m *Metrics) ObserveCounts(c health.Counts) {
	m.PartsByStatus.WithLabelValues(string(health.StatusGood)).Set(float64(c.Good))
	m.PartsByStatus.WithLabelValues(string(health.StatusWarning)).Set(float64(c.Warning))
	m.PartsByStatus.WithLabelValues(string(health.StatusCritical)).Set(float64(c.Critical))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
