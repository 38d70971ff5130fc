package quality

import (
	"context"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/platinummonkey/geoqc/pkg/dataset"
)

// stubRule is a configurable rule for engine and registry tests
type stubRule struct {
	id       string
	category Category
	severity Severity
	applies  func(*dataset.Handle) bool
	run      func(ctx context.Context, h *dataset.Handle) ([]Finding, error)
}

func (s *stubRule) ID() string          { return s.id }
func (s *stubRule) Category() Category  { return s.category }
func (s *stubRule) Severity() Severity  { return s.severity }
func (s *stubRule) Description() string { return "stub " + s.id }

func (s *stubRule) AppliesTo(h *dataset.Handle) bool {
	if s.applies == nil {
		return true
	}
	return s.applies(h)
}

func (s *stubRule) Run(ctx context.Context, h *dataset.Handle) ([]Finding, error) {
	if s.run == nil {
		return nil, nil
	}
	return s.run(ctx, h)
}

type stubWorkspaceRule struct {
	id  string
	run func(ctx context.Context, handles []*dataset.Handle) ([]Finding, error)
}

func (s *stubWorkspaceRule) ID() string          { return s.id }
func (s *stubWorkspaceRule) Category() Category  { return CategoryWorkspace }
func (s *stubWorkspaceRule) Severity() Severity  { return SeverityWarning }
func (s *stubWorkspaceRule) Description() string { return "stub " + s.id }

func (s *stubWorkspaceRule) RunWorkspace(ctx context.Context, handles []*dataset.Handle) ([]Finding, error) {
	return s.run(ctx, handles)
}

// perRowRule reports one finding per row whose "v" value is negative
func perRowRule(id string, severity Severity) *stubRule {
	return &stubRule{
		id:       id,
		category: CategoryAttribute,
		severity: severity,
		run: func(ctx context.Context, h *dataset.Handle) ([]Finding, error) {
			var findings []Finding
			for row, err := range h.Rows(ctx) {
				if err != nil {
					return nil, err
				}
				if v, ok := row.Value("v").(int64); ok && v < 0 {
					findings = append(findings, Finding{
						Severity: severity,
						Target:   FeatureTarget(row.FID, "v"),
						Message:  "negative",
					})
				}
			}
			return findings, nil
		},
	}
}

func sampleHandle(name string, values ...int64) *dataset.Handle {
	rows := make([]dataset.Row, len(values))
	for i, v := range values {
		rows[i] = dataset.Row{
			FID:      int64(i + 1),
			Values:   map[string]any{"v": v},
			Geometry: orb.Point{float64(i), float64(i)},
		}
	}
	return dataset.NewMemoryHandle(name, dataset.GeometryPoint, dataset.SpatialRef{SRID: 4326},
		[]dataset.FieldSpec{{Name: "v", Type: dataset.FieldInteger, Nullable: true}}, rows)
}

type logEntry struct {
	level   string
	message string
}

// recordingLogger captures log calls from concurrent workers
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, message: msg})
}

func (l *recordingLogger) Info(msg string)    { l.add("info", msg) }
func (l *recordingLogger) Warning(msg string) { l.add("warning", msg) }
func (l *recordingLogger) Error(msg string)   { l.add("error", msg) }

func (l *recordingLogger) byLevel(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		if e.level == level {
			out = append(out, e.message)
		}
	}
	return out
}

// countingRecorder captures engine measurements
type countingRecorder struct {
	mu       sync.Mutex
	failures map[string]int
	findings map[Severity]int
	statuses map[string]int
	timings  int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		failures: make(map[string]int),
		findings: make(map[Severity]int),
		statuses: make(map[string]int),
	}
}

func (r *countingRecorder) RuleDuration(string, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timings++
}

func (r *countingRecorder) RuleFailed(rule string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[rule]++
}

func (r *countingRecorder) FindingRecorded(_ string, s Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findings[s]++
}

func (r *countingRecorder) DatasetEvaluated(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[status]++
}

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
