package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/platinummonkey/geoqc/pkg/quality"
)

const instrumentationName = "github.com/platinummonkey/geoqc"

// OTelMetrics holds OpenTelemetry metric instruments. It implements
// quality.Recorder so measurements reach an OTLP collector alongside the
// Prometheus textfile.
type OTelMetrics struct {
	datasets     metric.Int64Counter
	findings     metric.Int64Counter
	ruleDuration metric.Float64Histogram
	ruleFailures metric.Int64Counter
}

// NewOTelMetrics creates instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	return NewOTelMetricsWithMeter(otel.Meter(instrumentationName))
}

// NewOTelMetricsWithMeter creates instruments on meter
func NewOTelMetricsWithMeter(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	m.datasets, err = meter.Int64Counter(
		"geoqc.datasets",
		metric.WithDescription("Number of datasets evaluated"),
		metric.WithUnit("{dataset}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create datasets counter: %w", err)
	}

	m.findings, err = meter.Int64Counter(
		"geoqc.findings",
		metric.WithDescription("Number of findings produced"),
		metric.WithUnit("{finding}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create findings counter: %w", err)
	}

	m.ruleDuration, err = meter.Float64Histogram(
		"geoqc.rule.duration",
		metric.WithDescription("Rule execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule duration histogram: %w", err)
	}

	m.ruleFailures, err = meter.Int64Counter(
		"geoqc.rule.failures",
		metric.WithDescription("Number of rule executions that failed"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule failures counter: %w", err)
	}

	return m, nil
}

func (m *OTelMetrics) RuleDuration(rule string, d time.Duration) {
	m.ruleDuration.Record(context.Background(), d.Seconds(),
		metric.WithAttributes(attribute.String("geoqc.rule", rule)))
}

func (m *OTelMetrics) RuleFailed(rule string) {
	m.ruleFailures.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("geoqc.rule", rule)))
}

func (m *OTelMetrics) FindingRecorded(rule string, severity quality.Severity) {
	m.findings.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("geoqc.rule", rule),
		attribute.String("geoqc.severity", string(severity)),
	))
}

func (m *OTelMetrics) DatasetEvaluated(status string) {
	m.datasets.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("geoqc.status", status)))
}
