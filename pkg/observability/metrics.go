// Package observability holds the Prometheus metrics exported by herbtrace.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "herbtrace"

const (
	ledgerSubsystem = "ledger"
	httpSubsystem   = "http"
)

// Metrics groups the register's counters and histograms.
// All methods are safe on a nil *Metrics, which records nothing.
type Metrics struct {
	// CollectionsRecordedTotal counts collection events written.
	CollectionsRecordedTotal prometheus.Counter

	// BatchesCreatedTotal counts batches created by get-or-create.
	BatchesCreatedTotal prometheus.Counter

	// QualityTestsTotal counts recorded quality tests.
	// Labels: status (pending, passed, failed)
	QualityTestsTotal *prometheus.CounterVec

	// StatusTransitionsTotal counts batch status changes.
	// Labels: from, to
	StatusTransitionsTotal *prometheus.CounterVec

	// LocatorFailuresTotal counts batches left without a locator after retries.
	LocatorFailuresTotal prometheus.Counter

	// RequestDurationSeconds measures HTTP handling time.
	// Labels: method, route, code
	RequestDurationSeconds *prometheus.HistogramVec
}

// NewMetrics creates and registers the metrics on reg.
// Pass prometheus.NewRegistry() in tests to avoid global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CollectionsRecordedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: ledgerSubsystem,
			Name:      "collections_recorded_total",
			Help:      "Total number of collection events recorded",
		}),
		BatchesCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: ledgerSubsystem,
			Name:      "batches_created_total",
			Help:      "Total number of processing batches created",
		}),
		QualityTestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: ledgerSubsystem,
			Name:      "quality_tests_total",
			Help:      "Total number of quality tests recorded by verdict",
		}, []string{"status"}),
		StatusTransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: ledgerSubsystem,
			Name:      "batch_status_transitions_total",
			Help:      "Total number of batch status changes",
		}, []string{"from", "to"}),
		LocatorFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: ledgerSubsystem,
			Name:      "locator_failures_total",
			Help:      "Batches whose locator could not be attached at creation",
		}),
		RequestDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: httpSubsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "code"}),
	}
}

func (m *Metrics) RecordCollection() {
	if m == nil {
		return
	}
	m.CollectionsRecordedTotal.Inc()
}

func (m *Metrics) RecordBatchCreated() {
	if m == nil {
		return
	}
	m.BatchesCreatedTotal.Inc()
}

func (m *Metrics) RecordQualityTest(status string) {
	if m == nil {
		return
	}
	m.QualityTestsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordStatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordLocatorFailure() {
	if m == nil {
		return
	}
	m.LocatorFailuresTotal.Inc()
}

// ObserveRequest records one handled HTTP request. route should be the mux
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.RequestDurationSeconds.WithLabelValues(method, route, strconv.Itoa(code)).Observe(elapsed.Seconds())
}
