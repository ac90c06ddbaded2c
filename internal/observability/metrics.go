package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/helixir/citation-index-service/internal/domain"
)

// Metrics contains all Prometheus metrics for the citation index service.
// Metrics are organized by subsystem: operations, upstream collaborators and
// the enrichment pipeline. All counters and histograms are registered via
// promauto with the default Prometheus registry.
type Metrics struct {
	// OperationsTotal counts transform and parameter operations by name and status.
	OperationsTotal *prometheus.CounterVec

	// OperationDuration observes operation duration in seconds by name.
	OperationDuration *prometheus.HistogramVec

	// RowsProcessed observes the size of input tables by operation.
	RowsProcessed *prometheus.HistogramVec

	// RowsDropped counts rows removed by existence-filtering operations.
	RowsDropped *prometheus.CounterVec

	// UpstreamRequestsTotal counts calls to upstream collaborators, labeled by source and operation.
	UpstreamRequestsTotal *prometheus.CounterVec

	// UpstreamRequestsFailed counts failed upstream calls, labeled by source, operation and error type.
	UpstreamRequestsFailed *prometheus.CounterVec

	// UpstreamRequestDuration observes upstream call duration in seconds, retries included.
	UpstreamRequestDuration *prometheus.HistogramVec

	// UpstreamRateLimited counts calls that gave up on repeated 429 responses.
	UpstreamRateLimited *prometheus.CounterVec

	// DegradedChunks counts lookup chunks whose contribution was dropped
	// because the collaborator failed, labeled by component and source.
	DegradedChunks *prometheus.CounterVec

	// AmbiguousResolutions counts identifiers that resolved to more than one OMID.
	AmbiguousResolutions prometheus.Counter

	// DuplicateResources counts resources dropped by alias-set deduplication.
	DuplicateResources prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Operations
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of operations executed by name and status",
		}, []string{"operation", "status"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"operation"}),
		RowsProcessed: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_input_rows",
			Help:      "Number of input rows per operation",
			Buckets:   []float64{0, 1, 10, 100, 1000, 10000, 100000},
		}, []string{"operation"}),
		RowsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Total number of rows removed by existence filters",
		}, []string{"operation"}),

		// Upstream
		UpstreamRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of requests to upstream collaborators",
		}, []string{"source", "operation"}),
		UpstreamRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_failed_total",
			Help:      "Total number of failed requests to upstream collaborators",
		}, []string{"source", "operation", "error_type"}),
		UpstreamRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of upstream requests in seconds, retries included",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"source", "operation"}),
		UpstreamRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_rate_limited_total",
			Help:      "Total number of upstream calls abandoned after rate limiting",
		}, []string{"source"}),

		// Pipeline
		DegradedChunks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_chunks_total",
			Help:      "Total number of lookup chunks degraded to no data",
		}, []string{"component", "source"}),
		AmbiguousResolutions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ambiguous_resolutions_total",
			Help:      "Total number of identifiers resolved to several OMIDs",
		}),
		DuplicateResources: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_resources_total",
			Help:      "Total number of resources dropped as alias-set duplicates",
		}),
	}
}

// RecordOperation records one finished operation.
func (m *Metrics) RecordOperation(operation, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordInputRows records the size of an operation's input table.
func (m *Metrics) RecordInputRows(operation string, rows int) {
	if m == nil {
		return
	}
	m.RowsProcessed.WithLabelValues(operation).Observe(float64(rows))
}

// RecordRowsDropped records rows removed by an existence filter.
func (m *Metrics) RecordRowsDropped(operation string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.RowsDropped.WithLabelValues(operation).Add(float64(count))
}

// ObserveUpstream records a finished upstream call. It satisfies
// upstream.Observer.
func (m *Metrics) ObserveUpstream(source, operation string, _ int, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(source, operation).Inc()
	m.UpstreamRequestDuration.WithLabelValues(source, operation).Observe(elapsed.Seconds())
	if err == nil {
		return
	}
	m.UpstreamRequestsFailed.WithLabelValues(source, operation, ErrorType(err)).Inc()
	if errors.Is(err, domain.ErrRateLimited) {
		m.UpstreamRateLimited.WithLabelValues(source).Inc()
	}
}

// RecordDegradedChunk records a chunk whose lookup failed and was dropped.
func (m *Metrics) RecordDegradedChunk(component, source string) {
	if m == nil {
		return
	}
	m.DegradedChunks.WithLabelValues(component, source).Inc()
}

// RecordAmbiguousResolution records an identifier with several candidate OMIDs.
func (m *Metrics) RecordAmbiguousResolution() {
	if m == nil {
		return
	}
	m.AmbiguousResolutions.Inc()
}

// RecordDuplicateResources records resources dropped by deduplication.
func (m *Metrics) RecordDuplicateResources(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.DuplicateResources.Add(float64(count))
}

// ErrorType classifies err into a low-cardinality metric label.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, domain.ErrTransport):
		return "transport"
	case errors.Is(err, domain.ErrContractViolation):
		return "contract_violation"
	default:
		return "other"
	}
}
