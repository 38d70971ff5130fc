package quality

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/geoqc/pkg/dataset"
)

// DefaultWorkers bounds parallel evaluation of workspace members
const DefaultWorkers = 4

// Input is the statically validated run request
type Input struct {
	DatasetPath string `json:"dataset_path" yaml:"dataset_path" validate:"required"`
}

// SkippedDataset is a workspace member that could not be read
type SkippedDataset struct {
	Name  string `json:"name" yaml:"name"`
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error" yaml:"error"`
	Err   error  `json:"-" yaml:"-"`
}

// RunResult is the outcome of one validation run
type RunResult struct {
	RunID           string           `json:"run_id" yaml:"run_id"`
	Path            string           `json:"path" yaml:"path"`
	Workspace       bool             `json:"workspace" yaml:"workspace"`
	StartedAt       time.Time        `json:"started_at" yaml:"started_at"`
	FinishedAt      time.Time        `json:"finished_at" yaml:"finished_at"`
	Reports         []*Report        `json:"reports" yaml:"reports"`
	Skipped         []SkippedDataset `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	WorkspaceReport *Report          `json:"workspace_report,omitempty" yaml:"workspace_report,omitempty"`
}

// AllReports returns the dataset reports followed by the workspace report
func (r *RunResult) AllReports() []*Report {
	all := append([]*Report(nil), r.Reports...)
	if r.WorkspaceReport != nil {
		all = append(all, r.WorkspaceReport)
	}
	return all
}

// TotalFindings counts findings across all reports
func (r *RunResult) TotalFindings() int {
	total := 0
	for _, rep := range r.AllReports() {
		total += rep.Summary.Total
	}
	return total
}

// MaxSeverity returns the most severe finding across all reports
func (r *RunResult) MaxSeverity() Severity {
	var highest Severity
	for _, rep := range r.AllReports() {
		if s := rep.MaxSeverity(); s.Rank() > highest.Rank() {
			highest = s
		}
	}
	return highest
}

// HasAtLeast reports whether any report has a finding at least as severe as threshold
func (r *RunResult) HasAtLeast(threshold Severity) bool {
	for _, rep := range r.AllReports() {
		if rep.HasAtLeast(threshold) {
			return true
		}
	}
	return false
}

// FindingCache stores the findings of unchanged datasets between runs
type FindingCache interface {
	Get(key string) ([]Finding, bool)
	Add(key string, findings []Finding)
}

// Runner resolves an input path and evaluates every dataset it names
type Runner struct {
	accessor        *dataset.Accessor
	engine          *Engine
	workers         int
	cache           FindingCache
	ruleFingerprint string
	now             func() time.Time
	newID           func() string
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithWorkers bounds the number of workspace members evaluated in parallel
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n < 1 {
			n = 1
		}
		r.workers = n
	}
}

// WithCache reuses findings for datasets whose file and rule configuration
// are unchanged
func WithCache(c FindingCache, ruleFingerprint string) RunnerOption {
	return func(r *Runner) {
		r.cache = c
		r.ruleFingerprint = ruleFingerprint
	}
}

// WithClock overrides the report timestamp source
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// WithIDGenerator overrides run ID generation
func WithIDGenerator(newID func() string) RunnerOption {
	return func(r *Runner) {
		r.newID = newID
	}
}

// NewRunner creates a runner. Logging and metrics go through the engine's
// collaborators.
func NewRunner(accessor *dataset.Accessor, engine *Engine, opts ...RunnerOption) *Runner {
	r := &Runner{
		accessor: accessor,
		engine:   engine,
		workers:  DefaultWorkers,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run validates the dataset or workspace named by in. Only resolution errors
// and cancellation are returned; everything else is part of the result.
func (r *Runner) Run(ctx context.Context, in Input) (*RunResult, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := r.engine.logger
	ctx, span := r.engine.tracer.Start(ctx, "quality.Run",
		trace.WithAttributes(attribute.String("path", in.DatasetPath)))
	defer span.End()

	result := &RunResult{
		RunID:     r.newID(),
		Path:      in.DatasetPath,
		StartedAt: r.now(),
	}
	span.SetAttributes(attribute.String("run.id", result.RunID))
	logger.Info(fmt.Sprintf("starting validation run %s of %s", result.RunID, in.DatasetPath))

	res, err := r.accessor.Open(ctx, in.DatasetPath)
	if err == nil && len(res.Members) == 0 {
		err = &dataset.NotFoundError{Path: in.DatasetPath}
	}
	if err == nil && !res.Workspace && res.Members[0].Err != nil {
		err = res.Members[0].Err
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolution failed")
		logger.Error(fmt.Sprintf("cannot open %s: %v", in.DatasetPath, err))
		return nil, err
	}
	result.Workspace = res.Workspace

	reports := make([]*Report, len(res.Members))
	g := new(errgroup.Group)
	g.SetLimit(r.workers)
	for i, m := range res.Members {
		if m.Err != nil {
			logger.Error(fmt.Sprintf("skipping dataset %s: %v", m.Name, m.Err))
			r.engine.recorder.DatasetEvaluated(StatusSkipped)
			result.Skipped = append(result.Skipped, SkippedDataset{
				Name:  m.Name,
				Path:  m.Path,
				Error: m.Err.Error(),
				Err:   m.Err,
			})
			continue
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = r.evaluate(ctx, result.RunID, m.Handle)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		logger.Warning(fmt.Sprintf("validation run %s cancelled", result.RunID))
		return nil, err
	}

	for _, rep := range reports {
		if rep != nil {
			result.Reports = append(result.Reports, rep)
		}
	}

	if res.Workspace && len(r.engine.registry.WorkspaceRules()) > 0 {
		handles := res.Handles()
		findings := r.engine.EvaluateWorkspace(ctx, handles)
		result.WorkspaceReport = Aggregate(result.RunID, res.Path, r.now(), findings)
	}

	result.FinishedAt = r.now()
	logger.Info(fmt.Sprintf("finished validation run %s: %d datasets, %d skipped, %d findings",
		result.RunID, len(result.Reports), len(result.Skipped), result.TotalFindings()))
	return result, nil
}

func (r *Runner) evaluate(ctx context.Context, runID string, h *dataset.Handle) *Report {
	logger := r.engine.logger
	logger.Info("starting validation of dataset " + describe(h))

	var key string
	if r.cache != nil {
		if k, ok := CacheKey(h, r.ruleFingerprint); ok {
			if findings, hit := r.cache.Get(k); hit {
				logger.Info(fmt.Sprintf("dataset %s unchanged, reusing %d cached findings", h.Name, len(findings)))
				r.engine.recorder.DatasetEvaluated(StatusCached)
				return Aggregate(runID, h.Path, r.now(), findings)
			}
			key = k
		}
	}

	findings := r.engine.Evaluate(ctx, h)
	if key != "" && ctx.Err() == nil {
		r.cache.Add(key, findings)
	}

	report := Aggregate(runID, h.Path, r.now(), findings)
	status := StatusClean
	if report.Summary.Total > 0 {
		status = StatusFindings
	}
	r.engine.recorder.DatasetEvaluated(status)

	logger.Info(fmt.Sprintf("finished dataset %s: %d findings (%d errors, %d warnings, %d info)",
		h.Name, report.Summary.Total,
		report.Count(SeverityError), report.Count(SeverityWarning), report.Count(SeverityInfo)))
	return report
}

// CacheKey identifies a local dataset's content and the rule configuration.
// Datasets without a local source file are never cached.
func CacheKey(h *dataset.Handle, ruleFingerprint string) (string, bool) {
	if h.SourceFile == "" {
		return "", false
	}
	info, err := os.Stat(h.SourceFile)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s|%d|%d|%s", h.Path, info.Size(), info.ModTime().UnixNano(), ruleFingerprint), true
}

func describe(h *dataset.Handle) string {
	return fmt.Sprintf("%s (%s, %s, %d rows)", h.Name, h.Format, h.GeometryType, h.Count)
}
