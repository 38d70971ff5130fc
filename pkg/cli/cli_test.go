package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/geoqc/pkg/quality"
	"github.com/platinummonkey/geoqc/pkg/storage"
)

const parcelsGeoJSON = `{"type": "FeatureCollection", "features": [
  {"type": "Feature", "properties": {"ID": 1, "NAME": "Alpha"}, "geometry": {"type": "Point", "coordinates": [1, 1]}},
  {"type": "Feature", "properties": {"ID": 2, "NAME": null}, "geometry": {"type": "Point", "coordinates": [2, 2]}},
  {"type": "Feature", "properties": {"ID": 2, "NAME": "Gamma"}, "geometry": {"type": "Point", "coordinates": [3, 3]}}
]}`

const parcelsConfig = `version: v1
fields:
  required: [NAME]
  keys: [ID]
`

var envKeys = []string{
	"GEOQC_LOG_LEVEL", "GEOQC_LOG_FORMAT", "GEOQC_WORKERS", "GEOQC_RULES_FILE",
	"GEOQC_STORE_DSN", "GEOQC_METRICS_FILE", "GEOQC_METRICS_ADDR",
	"GEOQC_CACHE_SIZE", "GEOQC_CACHE_TTL",
	"GEOQC_S3_REGION", "GEOQC_S3_ENDPOINT", "GEOQC_S3_USE_PATH_STYLE",
	"GEOQC_S3_ACCESS_KEY_ID", "GEOQC_S3_SECRET_ACCESS_KEY",
	"GEOQC_OTEL_ENABLED", "GEOQC_OTEL_ENDPOINT", "GEOQC_OTEL_SERVICE_NAME", "GEOQC_OTEL_INSECURE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

// parcels writes the parcels fixture and its rule file into a temp dir
func parcels(t *testing.T) (dir, path string) {
	t.Helper()
	clearEnv(t)
	dir = t.TempDir()
	path = filepath.Join(dir, "parcels.geojson")
	require.NoError(t, os.WriteFile(path, []byte(parcelsGeoJSON), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "geoqc.yaml"), []byte(parcelsConfig), 0644))
	return dir, path
}

func execute(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = Execute(context.Background(), append([]string{"--log-level", "error"}, args...), &out, &errOut, "test")
	return code, out.String(), errOut.String()
}

func TestCheck_TextReport(t *testing.T) {
	_, path := parcels(t)

	code, out, _ := execute("check", path)
	assert.Equal(t, ExitFindings, code)
	assert.Contains(t, out, "Run ")
	assert.Contains(t, out, "2 findings (2 errors, 0 warnings, 0 info)")
	assert.Contains(t, out, "required-values")
	assert.Contains(t, out, "duplicate-keys")
	assert.Contains(t, out, "Summary: 1 datasets, 0 skipped, 2 findings (highest ERROR)")
}

func TestCheck_JSON(t *testing.T) {
	_, path := parcels(t)

	code, out, _ := execute("check", path, "--format", "json")
	assert.Equal(t, ExitFindings, code)

	var result quality.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.NotEmpty(t, result.RunID)
	assert.False(t, result.Workspace)
	require.Len(t, result.Reports, 1)
	assert.Equal(t, 2, result.Reports[0].Summary.Total)
	assert.Equal(t, 2, result.Reports[0].Summary.BySeverity[quality.SeverityError])
}

func TestCheck_FailOn(t *testing.T) {
	tests := []struct {
		name   string
		failOn string
		want   int
	}{
		{"error threshold reached", "error", ExitFindings},
		{"warning threshold reached", "warning", ExitFindings},
		{"none", "none", ExitOK},
		{"invalid", "fatal", ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, path := parcels(t)
			code, _, _ := execute("check", path, "--fail-on", tt.failOn)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestCheck_CleanDataset(t *testing.T) {
	dir, path := parcels(t)
	clean := filepath.Join(dir, "rules-off.yaml")
	require.NoError(t, os.WriteFile(clean, []byte("version: v1\n"), 0644))
	require.NoError(t, os.WriteFile(path, []byte(`{"type": "FeatureCollection", "features": [
  {"type": "Feature", "properties": {"ID": 1, "NAME": "Alpha"}, "geometry": {"type": "Point", "coordinates": [1, 1]}},
  {"type": "Feature", "properties": {"ID": 2, "NAME": "Beta"}, "geometry": {"type": "Point", "coordinates": [2, 2]}}
]}`), 0644))

	code, out, _ := execute("check", path, "--rules", clean)
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "no findings")
}

func TestCheck_Errors(t *testing.T) {
	clearEnv(t)

	code, _, stderr := execute("check", filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "Error:")

	code, _, _ = execute("check")
	assert.Equal(t, ExitFailure, code)

	_, path := parcels(t)
	code, _, stderr = execute("check", path, "--format", "xml")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "xml")
}

func TestCheck_InvalidEnvironment(t *testing.T) {
	_, path := parcels(t)
	t.Setenv("GEOQC_WORKERS", "0")

	code, _, stderr := execute("check", path)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "configuration validation failed")

	// a flag overrides the environment
	code, _, _ = execute("check", path, "--workers", "2")
	assert.Equal(t, ExitFindings, code)
}

func TestCheck_MetricsFile(t *testing.T) {
	dir, path := parcels(t)
	metricsFile := filepath.Join(dir, "geoqc.prom")

	code, _, _ := execute("check", path, "--metrics-file", metricsFile)
	assert.Equal(t, ExitFindings, code)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "geoqc_")
}

func TestRules(t *testing.T) {
	dir, _ := parcels(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "geoqc.yaml"),
		[]byte("version: v1\nrules:\n  duplicate-keys: false\n"), 0644))

	code, out, _ := execute("rules", dir, "--format", "json")
	require.Equal(t, ExitOK, code)

	var rules []ruleInfo
	require.NoError(t, json.Unmarshal([]byte(out), &rules))
	require.NotEmpty(t, rules)

	byID := make(map[string]ruleInfo)
	for _, r := range rules {
		byID[r.ID] = r
	}
	require.Contains(t, byID, "duplicate-keys")
	assert.False(t, byID["duplicate-keys"].Enabled)
	assert.Equal(t, "dataset", byID["duplicate-keys"].Scope)
	assert.True(t, byID["required-values"].Enabled)

	var workspace int
	for _, r := range rules {
		if r.Scope == "workspace" {
			workspace++
		}
	}
	assert.Positive(t, workspace)

	code, out, _ = execute("rules", dir)
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "Available rules")
}

func TestHistory(t *testing.T) {
	dir, path := parcels(t)
	dsn := filepath.Join(dir, "history.db")

	code, _, stderr := execute("history", "--store", dsn)
	require.Equal(t, ExitOK, code, stderr)

	code, _, _ = execute("check", path, "--store", dsn)
	require.Equal(t, ExitFindings, code)

	code, out, stderr := execute("history", "--store", dsn, "--format", "json")
	require.Equal(t, ExitOK, code, stderr)

	var runs []storage.RunSummary
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Findings)
	assert.Equal(t, quality.SeverityError, runs[0].MaxSeverity)

	code, out, stderr = execute("history", "show", runs[0].RunID, "--store", dsn, "--format", "json")
	require.Equal(t, ExitOK, code, stderr)

	var report quality.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, runs[0].RunID, report.RunID)
	assert.Equal(t, 2, report.Summary.Total)

	code, _, stderr = execute("history", "show", "no-such-run", "--store", dsn)
	assert.Equal(t, ExitFailure, code)
	assert.True(t, strings.Contains(stderr, "not found"), stderr)
}

func TestHistory_RequiresStore(t *testing.T) {
	clearEnv(t)

	code, _, stderr := execute("history")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "GEOQC_STORE_DSN")
}

func TestSchedule_InvalidCron(t *testing.T) {
	_, path := parcels(t)

	code, _, stderr := execute("schedule", path, "--cron", "not a schedule")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "invalid schedule")
}

func TestWatch_StopsWithContext(t *testing.T) {
	_, path := parcels(t)

	ctx, cancel := context.WithCancel(context.Background())
	var out, errOut bytes.Buffer
	done := make(chan int, 1)
	go func() {
		done <- Execute(ctx, []string{"--log-level", "error", "watch", path, "--debounce", "10ms"}, &out, &errOut, "test")
	}()

	select {
	case code := <-done:
		t.Fatalf("watch exited early with %d: %s", code, errOut.String())
	case <-time.After(300 * time.Millisecond):
	}
	cancel()

	select {
	case code := <-done:
		assert.Equal(t, ExitOK, code, errOut.String())
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestInit(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	code, out, stderr := execute("init", dir)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, out, "geoqc.yaml")

	cfg, err := quality.LoadConfigFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, quality.DefaultVertexLimit, cfg.Geometry.VertexLimit)

	code, _, stderr = execute("init", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "already exists")

	code, _, _ = execute("init", dir, "--force")
	assert.Equal(t, ExitOK, code)
}

func TestConfigDir(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir, configDir(dir))
	assert.Equal(t, dir, configDir(filepath.Join(dir, "parcels.geojson")))
	assert.Equal(t, ".", configDir("s3://bucket/parcels.geojson"))
}
