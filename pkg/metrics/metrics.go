// Package metrics defines the Prometheus metrics of objektdb. A nil *Metrics
// is valid and records nothing, so core packages can take one unconditionally.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Storage operation metrics
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	tablesTotal       *prometheus.GaugeVec
	recordsTotal      *prometheus.GaugeVec
	lockConflicts     prometheus.Counter

	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// API key authentication metrics
	authRequestsTotal *prometheus.CounterVec
}

// New creates all metrics and registers them with reg. A nil reg gets a fresh
// registry that also carries the Go and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objektdb_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "status"},
		),

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "objektdb_operation_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		tablesTotal: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "objektdb_tables",
				Help: "Number of tables registered in a database catalog",
			},
			[]string{"database"},
		),

		recordsTotal: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "objektdb_records",
				Help: "Number of live records in an open table",
			},
			[]string{"database", "table"},
		),

		lockConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "objektdb_lock_conflicts_total",
				Help: "Number of database opens refused because another writer holds the lock",
			},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objektdb_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "objektdb_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "objektdb_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		authRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objektdb_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),
	}
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordOperation records a storage operation
func (m *Metrics) RecordOperation(operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, status(success)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveOperation is RecordOperation for the common defer pattern:
//
//	defer m.ObserveOperation("create_table", time.Now(), &err)
func (m *Metrics) ObserveOperation(operation string, start time.Time, err *error) {
	m.RecordOperation(operation, err == nil || *err == nil, time.Since(start))
}

// SetTables sets the table count of a database.
func (m *Metrics) SetTables(database string, n int) {
	if m == nil {
		return
	}
	m.tablesTotal.WithLabelValues(database).Set(float64(n))
}

// SetRecords sets the live record count of a table.
func (m *Metrics) SetRecords(database, table string, n int) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(database, table).Set(float64(n))
}

// ForgetDatabase drops the gauges of a deleted database and its tables.
func (m *Metrics) ForgetDatabase(database string, tables []string) {
	if m == nil {
		return
	}
	m.tablesTotal.DeleteLabelValues(database)
	for _, t := range tables {
		m.recordsTotal.DeleteLabelValues(database, t)
	}
}

// RecordLockConflict counts a refused open.
func (m *Metrics) RecordLockConflict() {
	if m == nil {
		return
	}
	m.lockConflicts.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// InFlight returns the in-flight gauge for an endpoint, or nil.
func (m *Metrics) InFlight(method, endpoint string) prometheus.Gauge {
	if m == nil {
		return nil
	}
	return m.httpRequestsInFlight.WithLabelValues(method, endpoint)
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	if m == nil {
		return
	}
	m.authRequestsTotal.WithLabelValues(status(success)).Inc()
}

func status(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}
