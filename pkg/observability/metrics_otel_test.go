package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/platinummonkey/geoqc/pkg/quality"
)

// setupTestMeterProvider creates a test meter provider with a manual reader
func setupTestMeterProvider(t *testing.T) (*metric.MeterProvider, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down provider: %v", err)
		}
	})
	return provider, reader
}

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return 0
}

func TestOTelMetrics_Recorder(t *testing.T) {
	provider, reader := setupTestMeterProvider(t)

	m, err := NewOTelMetricsWithMeter(provider.Meter("test"))
	require.NoError(t, err)

	var recorder quality.Recorder = m
	recorder.DatasetEvaluated(quality.StatusFindings)
	recorder.DatasetEvaluated(quality.StatusFindings)
	recorder.DatasetEvaluated(quality.StatusSkipped)
	recorder.FindingRecorded("duplicate-keys", quality.SeverityError)
	recorder.RuleFailed("self-intersection")
	recorder.RuleDuration("self-intersection", 250*time.Millisecond)

	metrics := collect(t, reader)

	assert.Equal(t, int64(2), sumFor(t, metrics["geoqc.datasets"], "geoqc.status", "findings"))
	assert.Equal(t, int64(1), sumFor(t, metrics["geoqc.datasets"], "geoqc.status", "skipped"))
	assert.Equal(t, int64(1), sumFor(t, metrics["geoqc.findings"], "geoqc.severity", "ERROR"))
	assert.Equal(t, int64(1), sumFor(t, metrics["geoqc.rule.failures"], "geoqc.rule", "self-intersection"))

	hist, ok := metrics["geoqc.rule.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 0.25, hist.DataPoints[0].Sum, 1e-9)
}

func TestNewOTelMetrics_GlobalProvider(t *testing.T) {
	m, err := NewOTelMetrics()
	require.NoError(t, err)
	// the global no-op provider accepts measurements silently
	m.DatasetEvaluated(quality.StatusClean)
}
