package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/geoqc/pkg/config"
	"github.com/platinummonkey/geoqc/pkg/dataset"
	"github.com/platinummonkey/geoqc/pkg/observability"
	"github.com/platinummonkey/geoqc/pkg/quality"
	"github.com/platinummonkey/geoqc/pkg/quality/checks"
	"github.com/platinummonkey/geoqc/pkg/storage"
)

const (
	shutdownTimeout = 10 * time.Second
	tracerName      = "github.com/platinummonkey/geoqc/pkg/cli"
)

// globalOptions are the persistent flags. Set flags override the
// environment.
type globalOptions struct {
	rulesFile   string
	logLevel    string
	logFormat   string
	workers     int
	storeDSN    string
	metricsFile string
}

// app holds the process-wide collaborators shared by all commands
type app struct {
	version string
	stdout  io.Writer
	stderr  io.Writer
	opts    globalOptions

	cfg      *config.Config
	logger   *observability.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	recorder quality.Recorder
	shutdown *observability.ShutdownManager
	store    *storage.ReportStore
	now      func() time.Time
}

func newApp(version string, stdout, stderr io.Writer) *app {
	return &app{
		version: version,
		stdout:  stdout,
		stderr:  stderr,
		now:     time.Now,
	}
}

// setup loads configuration and builds the logger, metrics and tracing
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("rules") {
		cfg.Run.RulesFile = a.opts.rulesFile
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.opts.logFormat
	}
	if flags.Changed("workers") {
		cfg.Run.Workers = a.opts.workers
	}
	if flags.Changed("store") {
		cfg.Store.DSN = a.opts.storeDSN
	}
	if flags.Changed("metrics-file") {
		cfg.Telemetry.MetricsFile = a.opts.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	a.cfg = cfg

	a.logger = observability.NewLogger(cfg.LogLevel(), cfg.LogFormat(), a.stderr)
	cmd.SetContext(observability.WithLogger(cmd.Context(), a.logger))
	a.shutdown = observability.NewShutdownManager(a.logger, shutdownTimeout)
	a.registry = prometheus.NewRegistry()
	a.metrics = observability.NewMetrics(a.registry)
	a.recorder = a.metrics

	providers, err := observability.InitOTel(cmd.Context(), cfg.OTel(a.version), a.logger)
	if err != nil {
		return err
	}
	if providers != nil {
		a.shutdown.RegisterShutdownFunc("opentelemetry", providers.Shutdown)
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			return fmt.Errorf("failed to create OpenTelemetry metrics: %w", err)
		}
		a.recorder = quality.MultiRecorder(a.metrics, otelMetrics)
	}
	return nil
}

// close releases everything setup and the commands acquired
func (a *app) close() error {
	if a.shutdown == nil {
		return nil
	}
	return a.shutdown.Shutdown(context.Background())
}

// ruleConfig loads the rule configuration for input: the configured rules
// file, or a geoqc.yaml beside the dataset, or the defaults
func (a *app) ruleConfig(input string) (*quality.Config, error) {
	if a.cfg.Run.RulesFile != "" {
		cfg, err := quality.LoadConfig(a.cfg.Run.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load rule config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := quality.LoadConfigFromDir(configDir(input))
	if err != nil {
		return nil, fmt.Errorf("failed to load rule config: %w", err)
	}
	return cfg, nil
}

// configDir is where a rule file for input is looked up
func configDir(input string) string {
	if strings.Contains(input, "://") {
		return "."
	}
	if info, err := os.Stat(input); err == nil && info.IsDir() {
		return input
	}
	return filepath.Dir(input)
}

// accessor returns the dataset drivers, adding S3 when input needs it
func (a *app) accessor(ctx context.Context, input string) (*dataset.Accessor, error) {
	drivers := dataset.DefaultDrivers()
	if strings.HasPrefix(strings.ToLower(input), "s3://") {
		client, err := dataset.NewS3Client(ctx, dataset.S3ClientOptions{
			Region:          a.cfg.S3.Region,
			Endpoint:        a.cfg.S3.Endpoint,
			UsePathStyle:    a.cfg.S3.UsePathStyle,
			AccessKeyID:     a.cfg.S3.AccessKeyID,
			SecretAccessKey: a.cfg.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		drivers = append([]dataset.Driver{dataset.NewS3Driver(client)}, drivers...)
	}
	return dataset.NewAccessor(drivers...), nil
}

// runner builds a runner for input. It is rebuilt for every run so that
// watch and schedule pick up rule configuration changes.
func (a *app) runner(ctx context.Context, input string, cache quality.FindingCache) (*quality.Runner, error) {
	ruleCfg, err := a.ruleConfig(input)
	if err != nil {
		return nil, err
	}
	registry, err := checks.NewRegistry(ruleCfg)
	if err != nil {
		return nil, err
	}
	accessor, err := a.accessor(ctx, input)
	if err != nil {
		return nil, err
	}

	engine := quality.NewEngine(registry,
		quality.WithLogger(a.logger),
		quality.WithRecorder(a.recorder),
	)
	opts := []quality.RunnerOption{quality.WithWorkers(a.cfg.Run.Workers)}
	if cache != nil {
		opts = append(opts, quality.WithCache(cache, ruleCfg.Fingerprint()))
	}
	return quality.NewRunner(accessor, engine, opts...), nil
}

// run performs one validation run and records it: metrics, the optional
// metrics textfile and the optional report history
func (a *app) run(ctx context.Context, input string, cache quality.FindingCache) (*quality.RunResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "geoqc.run",
		trace.WithAttributes(attribute.String("geoqc.input", input)))
	defer span.End()

	result, err := a.validate(ctx, input, cache)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.metrics.RecordRun("error", a.now())
		a.writeMetrics()
		return nil, err
	}

	outcome := quality.StatusClean
	if result.TotalFindings() > 0 {
		outcome = quality.StatusFindings
	}
	a.metrics.RecordRun(outcome, result.FinishedAt)

	ctx = observability.WithRunID(ctx, result.RunID)
	logger := observability.WithTraceContext(ctx, observability.FromContext(ctx))
	logger.WithFields(map[string]interface{}{
		"datasets": len(result.Reports),
		"skipped":  len(result.Skipped),
		"findings": result.TotalFindings(),
	}).Infof("Validated %s", input)

	if err := a.saveRun(ctx, result); err != nil {
		logger.WithError(err).Error("Failed to store run in history")
	}
	a.writeMetrics()
	return result, nil
}

func (a *app) validate(ctx context.Context, input string, cache quality.FindingCache) (*quality.RunResult, error) {
	runner, err := a.runner(ctx, input, cache)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx, quality.Input{DatasetPath: input})
}

func (a *app) saveRun(ctx context.Context, result *quality.RunResult) error {
	if a.cfg.Store.DSN == "" {
		return nil
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	return store.SaveRun(ctx, result)
}

// openStore opens the report history once per process
func (a *app) openStore(ctx context.Context) (*storage.ReportStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	if a.cfg.Store.DSN == "" {
		return nil, fmt.Errorf("report history requires --store or GEOQC_STORE_DSN")
	}
	store, err := storage.Open(ctx, a.cfg.Store.DSN, storage.WithRecorder(a.metrics))
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	a.shutdown.RegisterShutdownFunc("report store", func(context.Context) error {
		return store.Close()
	})
	a.store = store
	return store, nil
}

func (a *app) writeMetrics() {
	path := a.cfg.Telemetry.MetricsFile
	if path == "" {
		return
	}
	if err := a.metrics.WriteTextfile(path); err != nil {
		a.logger.WithError(err).Warnf("Failed to write metrics to %s", path)
	}
}

// serveMetrics exposes /metrics on addr until shutdown
func (a *app) serveMetrics(addr string) error {
	if addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	observability.RegisterMetricsEndpoint(mux, a.registry)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		defer observability.RecoverPanic(a.logger, "metrics server")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("Metrics server failed")
		}
	}()
	a.shutdown.RegisterShutdownFunc("metrics server", srv.Shutdown)
	a.logger.Infof("Serving metrics on http://%s/metrics", ln.Addr())
	return nil
}
