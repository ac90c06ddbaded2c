package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-index-service/internal/domain"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_citeindex_new")

	assert.NotNil(t, m.OperationsTotal)
	assert.NotNil(t, m.OperationDuration)
	assert.NotNil(t, m.RowsProcessed)
	assert.NotNil(t, m.RowsDropped)
	assert.NotNil(t, m.UpstreamRequestsTotal)
	assert.NotNil(t, m.UpstreamRequestsFailed)
	assert.NotNil(t, m.UpstreamRequestDuration)
	assert.NotNil(t, m.UpstreamRateLimited)
	assert.NotNil(t, m.DegradedChunks)
	assert.NotNil(t, m.AmbiguousResolutions)
	assert.NotNil(t, m.DuplicateResources)
}

func TestRecordOperation(t *testing.T) {
	m := NewMetrics("test_operation")

	m.RecordOperation("merge", "ok", 0.25)
	m.RecordOperation("merge", "error", 0.5)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.OperationsTotal.WithLabelValues("merge", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OperationsTotal.WithLabelValues("merge", "error")))

	count, err := getHistogramSampleCount(m.OperationDuration.WithLabelValues("merge").(prometheus.Histogram))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestRecordRows(t *testing.T) {
	m := NewMetrics("test_rows")

	m.RecordInputRows("metadata", 12)
	m.RecordRowsDropped("metadata", 3)
	m.RecordRowsDropped("metadata", 0)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.RowsDropped.WithLabelValues("metadata")))
}

func TestObserveUpstream(t *testing.T) {
	m := NewMetrics("test_upstream")

	m.ObserveUpstream("meta-sparql", "select", 200, nil, time.Second)
	m.ObserveUpstream("meta-sparql", "select", 0, domain.NewExternalAPIError("meta-sparql", 502, "bad gateway", nil), time.Second)
	m.ObserveUpstream("unpaywall", "lookup", 0, domain.NewRateLimitError("unpaywall", time.Second), time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.UpstreamRequestsTotal.WithLabelValues("meta-sparql", "select")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamRequestsFailed.WithLabelValues("meta-sparql", "select", "transport")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamRequestsFailed.WithLabelValues("unpaywall", "lookup", "rate_limited")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamRateLimited.WithLabelValues("unpaywall")))
}

func TestRecordPipeline(t *testing.T) {
	m := NewMetrics("test_pipeline")

	m.RecordDegradedChunk("resolver", "meta-sparql")
	m.RecordAmbiguousResolution()
	m.RecordDuplicateResources(4)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.DegradedChunks.WithLabelValues("resolver", "meta-sparql")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AmbiguousResolutions))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.DuplicateResources))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordOperation("merge", "ok", 1)
		m.RecordInputRows("merge", 1)
		m.RecordRowsDropped("metadata", 1)
		m.ObserveUpstream("x", "y", 500, errors.New("boom"), time.Second)
		m.RecordDegradedChunk("resolver", "x")
		m.RecordAmbiguousResolution()
		m.RecordDuplicateResources(1)
	})
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{domain.NewRateLimitError("s", 0), "rate_limited"},
		{domain.NewMalformedResponseError("s", "m", nil), "malformed"},
		{domain.NewExternalAPIError("s", 500, "m", nil), "transport"},
		{domain.NewContractViolationError("merge", "missing %s", "col"), "contract_violation"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorType(tt.err))
	}
}

// Helper to get histogram sample count
func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var dto = &dto.Metric{}
	if err := m.Write(dto); err != nil {
		return 0, err
	}

	return dto.Histogram.GetSampleCount(), nil
}
