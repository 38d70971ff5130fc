package quality

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/geoqc/pkg/dataset"
)

const tracerName = "github.com/platinummonkey/geoqc/pkg/quality"

// Engine runs the applicable rules of a registry against datasets
type Engine struct {
	registry *Registry
	logger   Logger
	recorder Recorder
	tracer   trace.Tracer
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithLogger sets the progress logger
func WithLogger(l Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithTracer overrides the tracer taken from the global provider
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// NewEngine creates an engine over registry
func NewEngine(registry *Registry, opts ...EngineOption) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	e := &Engine{
		registry: registry,
		logger:   NopLogger{},
		recorder: nopRecorder{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's registry
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Evaluate runs every applicable rule against h in registration order and
// returns their findings concatenated. A rule that fails or panics
// contributes exactly one ERROR finding in place of its own.
func (e *Engine) Evaluate(ctx context.Context, h *dataset.Handle) []Finding {
	ctx, span := e.tracer.Start(ctx, "quality.Evaluate",
		trace.WithAttributes(attribute.String("dataset", h.Name)))
	defer span.End()

	findings := make([]Finding, 0)
	for _, rule := range e.registry.ApplicableRules(h) {
		findings = append(findings, e.runRule(ctx, rule, h.Name, func(ctx context.Context) ([]Finding, error) {
			return rule.Run(ctx, h)
		})...)
	}

	span.SetAttributes(attribute.Int("findings", len(findings)))
	return findings
}

// EvaluateWorkspace runs the workspace rules across handles with the same
// failure isolation as Evaluate
func (e *Engine) EvaluateWorkspace(ctx context.Context, handles []*dataset.Handle) []Finding {
	ctx, span := e.tracer.Start(ctx, "quality.EvaluateWorkspace",
		trace.WithAttributes(attribute.Int("datasets", len(handles))))
	defer span.End()

	findings := make([]Finding, 0)
	for _, rule := range e.registry.WorkspaceRules() {
		findings = append(findings, e.runRule(ctx, rule, "", func(ctx context.Context) ([]Finding, error) {
			return rule.RunWorkspace(ctx, handles)
		})...)
	}
	return findings
}

func (e *Engine) runRule(ctx context.Context, rule Descriptor, datasetName string, run func(context.Context) ([]Finding, error)) []Finding {
	id := rule.ID()
	ctx, span := e.tracer.Start(ctx, "quality.Rule",
		trace.WithAttributes(
			attribute.String("rule.id", id),
			attribute.String("dataset", datasetName),
		))
	defer span.End()

	start := time.Now()
	findings, err := safeRun(ctx, run)
	e.recorder.RuleDuration(id, time.Since(start))

	if err != nil {
		execErr := &RuleExecutionError{RuleID: id, Dataset: datasetName, Err: err}
		span.RecordError(execErr)
		span.SetStatus(codes.Error, "rule failed")
		e.recorder.RuleFailed(id)
		e.recorder.FindingRecorded(id, SeverityError)
		e.logger.Warning(execErr.Error())

		return []Finding{{
			Rule:        id,
			Severity:    SeverityError,
			Category:    CategoryEngine,
			Target:      RuleTarget(id),
			Message:     execErr.Error(),
			Remediation: "Fix the rule or its configuration; its other findings were discarded",
			Cause:       execErr,
		}}
	}

	findings = append([]Finding(nil), findings...)
	for i := range findings {
		if findings[i].Rule == "" {
			findings[i].Rule = id
		}
		if findings[i].Category == "" {
			findings[i].Category = rule.Category()
		}
		if findings[i].Severity == "" {
			findings[i].Severity = rule.Severity()
		}
		e.recorder.FindingRecorded(findings[i].Rule, findings[i].Severity)
	}
	span.SetAttributes(attribute.Int("findings", len(findings)))
	return findings
}

// safeRun converts a panic in run into an error
func safeRun(ctx context.Context, run func(context.Context) ([]Finding, error)) (findings []Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			findings = nil
			err = &PanicError{Value: r}
		}
	}()

	findings, err = run(ctx)
	if err != nil {
		return nil, err
	}
	return findings, nil
}
