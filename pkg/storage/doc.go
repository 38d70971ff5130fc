// Package storage keeps the history of validation runs in a SQL database.
//
// A ReportStore saves every run with its per-dataset reports and findings,
// lists past runs and rebuilds any stored report. PostgreSQL (lib/pq) and
// SQLite (go-sqlite3) are supported; Open picks the driver from the DSN:
//
//	store, err := storage.Open(ctx, "postgres://qc@db/geoqc?sslmode=disable")
//	store, err := storage.Open(ctx, "sqlite:/var/lib/geoqc/history.db")
//	store, err := storage.Open(ctx, "history.db")
//
// Call EnsureSchema once before use. SaveRun writes a run atomically: either
// the run row, all report rows and all finding rows are stored, or none are.
//
// LoadReport returns a report equal to the one that was saved. Findings keep
// their original order and the summary is recomputed with quality.Aggregate.
//
// Pass WithRecorder to observe operation latency and failures, for example
// with *observability.Metrics.
package storage
