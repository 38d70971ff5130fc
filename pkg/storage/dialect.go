package storage

import (
	"strconv"
	"strings"
)

// Dialect selects the SQL flavour of the report database
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// driverAndSource maps a DSN onto a database/sql driver name and data source.
// postgres:// and postgresql:// URLs go to lib/pq; "sqlite:" prefixed DSNs and
// bare paths go to go-sqlite3.
func driverAndSource(dsn string) (Dialect, string) {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, dsn
	case strings.HasPrefix(lower, "sqlite://"):
		return DialectSQLite, dsn[len("sqlite://"):]
	case strings.HasPrefix(lower, "sqlite:"):
		return DialectSQLite, dsn[len("sqlite:"):]
	default:
		return DialectSQLite, dsn
	}
}

// rebind rewrites ? placeholders to $n for postgres
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) schema() []string {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	timestamp := "TIMESTAMP"
	if d == DialectPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
		timestamp = "TIMESTAMP WITH TIME ZONE"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS geoqc_runs (
			run_id VARCHAR(64) PRIMARY KEY,
			path TEXT NOT NULL,
			workspace BOOLEAN NOT NULL,
			started_at ` + timestamp + ` NOT NULL,
			finished_at ` + timestamp + ` NOT NULL,
			datasets INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			findings INTEGER NOT NULL,
			max_severity VARCHAR(20) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_geoqc_runs_started_at ON geoqc_runs(started_at DESC)`,
		`CREATE TABLE IF NOT EXISTS geoqc_reports (
			run_id VARCHAR(64) NOT NULL REFERENCES geoqc_runs(run_id) ON DELETE CASCADE,
			dataset TEXT NOT NULL,
			generated_at ` + timestamp + ` NOT NULL,
			total INTEGER NOT NULL,
			PRIMARY KEY (run_id, dataset)
		)`,
		`CREATE TABLE IF NOT EXISTS geoqc_findings (
			` + idColumn + `,
			run_id VARCHAR(64) NOT NULL,
			dataset TEXT NOT NULL,
			seq INTEGER NOT NULL,
			rule VARCHAR(100) NOT NULL,
			severity VARCHAR(20) NOT NULL,
			category VARCHAR(50) NOT NULL,
			target_kind VARCHAR(20) NOT NULL,
			target_dataset TEXT,
			target_field TEXT,
			feature_id BIGINT,
			target_rule VARCHAR(100),
			message TEXT NOT NULL,
			remediation TEXT,
			FOREIGN KEY (run_id, dataset) REFERENCES geoqc_reports(run_id, dataset) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_geoqc_findings_report ON geoqc_findings(run_id, dataset, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_geoqc_findings_rule ON geoqc_findings(rule)`,
	}
}
