package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/platinummonkey/geoqc/pkg/quality"
)

const defaultPingTimeout = 10 * time.Second

var (
	// ErrRunNotFound is returned when no run has the requested ID
	ErrRunNotFound = errors.New("run not found")
	// ErrReportNotFound is returned when a run has no report for the dataset
	ErrReportNotFound = errors.New("report not found")
)

// OperationRecorder observes store operations. *observability.Metrics
// implements it.
type OperationRecorder interface {
	RecordStoreOperation(operation string, duration time.Duration, err error)
}

// RunSummary is one row of the run history
type RunSummary struct {
	RunID       string           `json:"run_id" yaml:"run_id"`
	Path        string           `json:"path" yaml:"path"`
	Workspace   bool             `json:"workspace" yaml:"workspace"`
	StartedAt   time.Time        `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time        `json:"finished_at" yaml:"finished_at"`
	Datasets    int              `json:"datasets" yaml:"datasets"`
	Skipped     int              `json:"skipped" yaml:"skipped"`
	Findings    int              `json:"findings" yaml:"findings"`
	MaxSeverity quality.Severity `json:"max_severity,omitempty" yaml:"max_severity,omitempty"`
}

// ReportStore persists validation runs and their reports
type ReportStore struct {
	db       *sql.DB
	dialect  Dialect
	recorder OperationRecorder
	ownsDB   bool
}

// Option configures a ReportStore
type Option func(*ReportStore)

// WithRecorder reports the outcome and latency of every store operation
func WithRecorder(r OperationRecorder) Option {
	return func(s *ReportStore) {
		s.recorder = r
	}
}

// Open connects to the report database named by dsn and verifies the
// connection. The returned store owns the connection pool.
func Open(ctx context.Context, dsn string, opts ...Option) (*ReportStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store DSN is required")
	}
	dialect, source := driverAndSource(dsn)

	db, err := sql.Open(string(dialect), source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s report store: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s report store: %w", dialect, err)
	}

	store, err := New(db, dialect, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	store.ownsDB = true
	return store, nil
}

// New wraps an existing connection. The caller keeps ownership of db.
func New(db *sql.DB, dialect Dialect, opts ...Option) (*ReportStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
	s := &ReportStore{db: db, dialect: dialect}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dialect returns the SQL flavour in use
func (s *ReportStore) Dialect() Dialect {
	return s.dialect
}

// Close releases the connection pool when the store opened it
func (s *ReportStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

func (s *ReportStore) observe(operation string, start time.Time, err error) {
	if s.recorder != nil {
		s.recorder.RecordStoreOperation(operation, time.Since(start), err)
	}
}

// EnsureSchema creates the history tables if they don't exist
func (s *ReportStore) EnsureSchema(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.observe("ensure_schema", start, err) }()

	for _, stmt := range s.dialect.schema() {
		if _, err = s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure report schema: %w", err)
		}
	}
	return nil
}

// SaveRun stores a run, its reports and every finding in one transaction
func (s *ReportStore) SaveRun(ctx context.Context, result *quality.RunResult) (err error) {
	start := time.Now()
	defer func() { s.observe("save_run", start, err) }()

	if result == nil || result.RunID == "" {
		return fmt.Errorf("run result with an ID is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	reports := result.AllReports()
	_, err = tx.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO geoqc_runs (
			run_id, path, workspace, started_at, finished_at,
			datasets, skipped, findings, max_severity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		result.RunID, result.Path, result.Workspace, result.StartedAt, result.FinishedAt,
		len(result.Reports), len(result.Skipped), result.TotalFindings(), string(result.MaxSeverity()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", result.RunID, err)
	}

	insertReport := s.dialect.rebind(`
		INSERT INTO geoqc_reports (run_id, dataset, generated_at, total)
		VALUES (?, ?, ?, ?)`)
	insertFinding := s.dialect.rebind(`
		INSERT INTO geoqc_findings (
			run_id, dataset, seq, rule, severity, category,
			target_kind, target_dataset, target_field, feature_id, target_rule,
			message, remediation
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	for _, rep := range reports {
		if _, err = tx.ExecContext(ctx, insertReport,
			result.RunID, rep.Dataset, rep.GeneratedAt, rep.Summary.Total,
		); err != nil {
			return fmt.Errorf("failed to insert report for %s: %w", rep.Dataset, err)
		}
		for i, f := range rep.Findings {
			if _, err = tx.ExecContext(ctx, insertFinding,
				result.RunID, rep.Dataset, i, f.Rule, string(f.Severity), string(f.Category),
				string(f.Target.Kind), nullString(f.Target.Dataset), nullString(f.Target.Field),
				nullInt64(f.Target.FeatureID), nullString(f.Target.Rule),
				f.Message, nullString(f.Remediation),
			); err != nil {
				return fmt.Errorf("failed to insert finding %d for %s: %w", i, rep.Dataset, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", result.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (s *ReportStore) ListRuns(ctx context.Context, limit int) (runs []RunSummary, err error) {
	start := time.Now()
	defer func() { s.observe("list_runs", start, err) }()

	query := `
		SELECT run_id, path, workspace, started_at, finished_at,
			datasets, skipped, findings, max_severity
		FROM geoqc_runs
		ORDER BY started_at DESC, run_id`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs = make([]RunSummary, 0)
	for rows.Next() {
		var r RunSummary
		var maxSeverity string
		if err = rows.Scan(
			&r.RunID, &r.Path, &r.Workspace, &r.StartedAt, &r.FinishedAt,
			&r.Datasets, &r.Skipped, &r.Findings, &maxSeverity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.MaxSeverity = quality.Severity(maxSeverity)
		runs = append(runs, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// ReportDatasets lists the datasets that have a report in the run
func (s *ReportStore) ReportDatasets(ctx context.Context, runID string) (datasets []string, err error) {
	start := time.Now()
	defer func() { s.observe("report_datasets", start, err) }()

	var exists int
	err = s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT COUNT(*) FROM geoqc_runs WHERE run_id = ?`), runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up run %s: %w", runID, err)
	}
	if exists == 0 {
		err = fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT dataset FROM geoqc_reports WHERE run_id = ? ORDER BY dataset`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports of run %s: %w", runID, err)
	}
	defer rows.Close()

	datasets = make([]string, 0)
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		datasets = append(datasets, name)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return datasets, nil
}

// LoadReport rebuilds the stored report for one dataset of a run. Findings
// come back in their original order, so the result equals the report that
// was saved.
func (s *ReportStore) LoadReport(ctx context.Context, runID, datasetID string) (report *quality.Report, err error) {
	start := time.Now()
	defer func() { s.observe("load_report", start, err) }()

	var generatedAt time.Time
	err = s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT generated_at FROM geoqc_reports WHERE run_id = ? AND dataset = ?`),
		runID, datasetID).Scan(&generatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: run %s dataset %s", ErrReportNotFound, runID, datasetID)
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT rule, severity, category, target_kind, target_dataset, target_field,
			feature_id, target_rule, message, remediation
		FROM geoqc_findings
		WHERE run_id = ? AND dataset = ?
		ORDER BY seq`), runID, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load findings: %w", err)
	}
	defer rows.Close()

	findings := make([]quality.Finding, 0)
	for rows.Next() {
		var (
			f                                  quality.Finding
			severity, category, kind           string
			targetDataset, targetField, target sql.NullString
			featureID                          sql.NullInt64
			remediation                        sql.NullString
		)
		if err = rows.Scan(&f.Rule, &severity, &category, &kind, &targetDataset, &targetField,
			&featureID, &target, &f.Message, &remediation); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		f.Severity = quality.Severity(severity)
		f.Category = quality.Category(category)
		f.Target = quality.Target{
			Kind:      quality.TargetKind(kind),
			Dataset:   targetDataset.String,
			Field:     targetField.String,
			FeatureID: featureID.Int64,
			Rule:      target.String,
		}
		f.Remediation = remediation.String
		findings = append(findings, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating findings: %w", err)
	}

	return quality.Aggregate(runID, datasetID, generatedAt.UTC(), findings), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}
