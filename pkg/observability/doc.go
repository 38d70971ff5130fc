// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Structured Logging
//
// Logger wraps logrus and satisfies the logging collaborator of the quality
// engine:
//
//	logger := observability.NewLogger(observability.InfoLevel, observability.FormatJSON, os.Stderr)
//	engine := quality.NewEngine(registry, quality.WithLogger(logger))
//
// # Prometheus Metrics
//
// Metrics implements quality.Recorder. One-shot runs write the registry to a
// node exporter textfile; long-running watch and schedule modes may serve it:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	engine := quality.NewEngine(registry, quality.WithRecorder(metrics))
//	// ...
//	err := metrics.WriteTextfile("/var/lib/node_exporter/geoqc.prom")
//
// # OpenTelemetry
//
// InitOTel installs OTLP gRPC trace and metric exporters as the global
// providers, which the engine's spans and OTelMetrics pick up:
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "geoqc",
//	}, logger)
//	defer providers.Shutdown(ctx)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/quality: Logger and Recorder collaborators
package observability
