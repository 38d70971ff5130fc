package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platinummonkey/geoqc/pkg/quality"
)

// Metrics holds all Prometheus metrics. It implements quality.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	// Validation metrics
	DatasetsTotal       *prometheus.CounterVec
	FindingsTotal       *prometheus.CounterVec
	RuleDurationSeconds *prometheus.HistogramVec
	RuleFailuresTotal   *prometheus.CounterVec
	RunsTotal           *prometheus.CounterVec
	LastRunTimestamp    prometheus.Gauge

	// Storage metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CacheEvictionsTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		// Validation metrics
		DatasetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoqc_datasets_total",
				Help: "Total number of datasets evaluated, by outcome",
			},
			[]string{"status"},
		),
		FindingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoqc_findings_total",
				Help: "Total number of findings produced",
			},
			[]string{"rule", "severity"},
		),
		RuleDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geoqc_rule_duration_seconds",
				Help:    "Rule execution duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"rule"},
		),
		RuleFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoqc_rule_failures_total",
				Help: "Total number of rule executions that failed",
			},
			[]string{"rule"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoqc_runs_total",
				Help: "Total number of validation runs, by result",
			},
			[]string{"result"},
		),
		LastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "geoqc_last_run_timestamp_seconds",
				Help: "Unix time the last validation run finished",
			},
		),

		// Storage metrics
		StoreOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoqc_store_operations_total",
				Help: "Total number of report store operations",
			},
			[]string{"operation", "status"},
		),
		StoreOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geoqc_store_operation_duration_seconds",
				Help:    "Report store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "geoqc_cache_hits_total",
				Help: "Total number of report cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "geoqc_cache_misses_total",
				Help: "Total number of report cache misses",
			},
		),
		CacheEvictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "geoqc_cache_evictions_total",
				Help: "Total number of report cache evictions",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.DatasetsTotal,
		m.FindingsTotal,
		m.RuleDurationSeconds,
		m.RuleFailuresTotal,
		m.RunsTotal,
		m.LastRunTimestamp,
		m.StoreOperationsTotal,
		m.StoreOperationDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
	)

	return m
}

func (m *Metrics) RuleDuration(rule string, d time.Duration) {
	m.RuleDurationSeconds.WithLabelValues(rule).Observe(d.Seconds())
}

func (m *Metrics) RuleFailed(rule string) {
	m.RuleFailuresTotal.WithLabelValues(rule).Inc()
}

func (m *Metrics) FindingRecorded(rule string, severity quality.Severity) {
	m.FindingsTotal.WithLabelValues(rule, string(severity)).Inc()
}

func (m *Metrics) DatasetEvaluated(status string) {
	m.DatasetsTotal.WithLabelValues(status).Inc()
}

// RecordRun counts a finished run. result is "clean", "findings" or "failed".
func (m *Metrics) RecordRun(result string, finished time.Time) {
	m.RunsTotal.WithLabelValues(result).Inc()
	m.LastRunTimestamp.Set(float64(finished.Unix()))
}

// RecordStoreOperation records a report store call
func (m *Metrics) RecordStoreOperation(operation string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) RecordCacheHit()      { m.CacheHitsTotal.Inc() }
func (m *Metrics) RecordCacheMiss()     { m.CacheMissesTotal.Inc() }
func (m *Metrics) RecordCacheEviction() { m.CacheEvictionsTotal.Inc() }

// WriteTextfile writes the current metrics in the text exposition format,
// for pickup by a node exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
