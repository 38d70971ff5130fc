package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// TestInitOTel_Disabled tests that InitOTel returns nil when disabled
func TestInitOTel_Disabled(t *testing.T) {
	logger := NewLogger(InfoLevel, FormatJSON, &bytes.Buffer{})

	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, logger)

	assert.NoError(t, err)
	assert.Nil(t, providers)
}

// OTLP exporters connect lazily, so initialization succeeds without a collector
func TestInitOTel_Lifecycle(t *testing.T) {
	prevTP := otel.GetTracerProvider()
	prevMP := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, FormatJSON, &buf)

	providers, err := InitOTel(context.Background(), OTelConfig{
		Enabled:        true,
		Endpoint:       "localhost:4317",
		ServiceName:    "geoqc-test",
		ServiceVersion: "test",
		Insecure:       true,
	}, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)
	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.MeterProvider)
	assert.Same(t, providers.TracerProvider, otel.GetTracerProvider())
	assert.Contains(t, buf.String(), "localhost:4317")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// a cancelled context may fail the final flush but must not panic
	_ = providers.Shutdown(ctx)
}

func TestOTelProviders_ShutdownNil(t *testing.T) {
	var providers *OTelProviders
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestOTelProviders_ShutdownTracerOnly(t *testing.T) {
	var buf bytes.Buffer
	providers := &OTelProviders{
		TracerProvider: sdktrace.NewTracerProvider(),
		logger:         NewLogger(DebugLevel, FormatJSON, &buf),
	}

	assert.NoError(t, providers.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "shutdown complete")
}

func TestWithTraceContext(t *testing.T) {
	t.Run("no span", func(t *testing.T) {
		logger := NewLogger(InfoLevel, FormatJSON, &bytes.Buffer{})
		assert.Same(t, logger, WithTraceContext(context.Background(), logger))
	})

	t.Run("recording span", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		ctx, span := tp.Tracer("test").Start(context.Background(), "quality.Run")
		defer span.End()

		var buf bytes.Buffer
		logger := NewLogger(InfoLevel, FormatJSON, &buf).WithField("dataset", "roads")
		WithTraceContext(ctx, logger).Info("evaluated")

		entry := decodeEntry(t, &buf)
		assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
		assert.Equal(t, "roads", entry["dataset"])
	})

	t.Run("non-recording span", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
		ctx, span := tp.Tracer("test").Start(context.Background(), "quality.Run")
		defer span.End()

		logger := NewLogger(InfoLevel, FormatJSON, &bytes.Buffer{})
		assert.Same(t, logger, WithTraceContext(ctx, logger))
	})
}
