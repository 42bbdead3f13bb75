package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Paths.DataDir)
	assert.Equal(t, []string{"Data", "sample_data"}, cfg.Paths.DataCandidates)
	assert.Equal(t, ".", cfg.Paths.OutputDir)
	assert.Equal(t, "logs", cfg.Paths.LogsDir)

	assert.Equal(t, "detailed_credit_data.csv", cfg.Artifacts.DetailedCSV)
	assert.Equal(t, "client_metrics_results.csv", cfg.Artifacts.MetricsCSV)
	assert.Equal(t, "validation_report.json", cfg.Artifacts.ValidationReport)
	assert.Equal(t, "analysis_report.json", cfg.Artifacts.AnalysisReport)
	assert.Equal(t, "portfolio_report.xlsx", cfg.Artifacts.ExcelWorkbook)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)

	assert.False(t, cfg.Export.ExcelEnabled)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "riskcli", cfg.Telemetry.ServiceName)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RISK_LOGGING_LEVEL", "debug")
	t.Setenv("RISK_PATHS_OUTPUT_DIR", "exports")
	t.Setenv("RISK_ARTIFACTS_METRICS_CSV", "metrics.csv")
	t.Setenv("RISK_EXPORT_EXCEL_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "exports", cfg.Paths.OutputDir)
	assert.Equal(t, "metrics.csv", cfg.Artifacts.MetricsCSV)
	assert.True(t, cfg.Export.ExcelEnabled)
}

func TestLoad_InvalidLevel(t *testing.T) {
	t.Setenv("RISK_LOGGING_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "riskcli.yaml")
	content := `
logging:
  level: debug
  output: both
artifacts:
  metrics_csv: custom_metrics.csv
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "both", cfg.Logging.Output)
	assert.Equal(t, "custom_metrics.csv", cfg.Artifacts.MetricsCSV)
	// Keys absent from the file keep their defaults
	assert.Equal(t, "detailed_credit_data.csv", cfg.Artifacts.DetailedCSV)
}

func TestLoadFromFile_EnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "riskcli.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644))

	t.Setenv("RISK_LOGGING_LEVEL", "warn")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestResolveDataDir_Explicit(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.DataDir = dir

	resolved, err := cfg.ResolveDataDir()
	require.NoError(t, err)
	assert.Equal(t, dir, resolved)
}

func TestResolveDataDir_ExplicitMissing(t *testing.T) {
	cfg := Default()
	cfg.Paths.DataDir = filepath.Join(t.TempDir(), "absent")

	_, err := cfg.ResolveDataDir()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestResolveDataDir_Candidates(t *testing.T) {
	base := t.TempDir()
	second := filepath.Join(base, "sample_data")
	require.NoError(t, os.Mkdir(second, 0o755))

	cfg := Default()
	cfg.Paths.DataCandidates = []string{
		filepath.Join(base, "Data"), // absent, skipped
		second,
	}

	resolved, err := cfg.ResolveDataDir()
	require.NoError(t, err)
	assert.Equal(t, second, resolved)
	assert.Equal(t, second, cfg.Paths.DataDir)
}

func TestResolveDataDir_NoneFound(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.DataCandidates = []string{filepath.Join(base, "absent")}

	_, err := cfg.ResolveDataDir()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data directory found")
}

func TestArtifactPaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.OutputDir = "out"

	assert.Equal(t, filepath.Join("out", "detailed_credit_data.csv"), cfg.DetailedCSVPath())
	assert.Equal(t, filepath.Join("out", "client_metrics_results.csv"), cfg.MetricsCSVPath())
	assert.Equal(t, filepath.Join("out", "validation_report.json"), cfg.ValidationReportPath())
	assert.Equal(t, filepath.Join("out", "analysis_report.json"), cfg.AnalysisReportPath())
	assert.Equal(t, filepath.Join("out", "portfolio_report.xlsx"), cfg.ExcelWorkbookPath())
}

func TestEnsureOutputDir(t *testing.T) {
	cfg := Default()
	cfg.Paths.OutputDir = filepath.Join(t.TempDir(), "nested", "out")

	require.NoError(t, cfg.EnsureOutputDir())
	info, err := os.Stat(cfg.Paths.OutputDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
