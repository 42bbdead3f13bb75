package validation

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskcli/internal/config"
	"riskcli/internal/dataprocessing"
	apperrors "riskcli/internal/errors"
)

const engineDocClosed = `<?xml version="1.0" encoding="UTF-8"?>
<credres>
  <crdeal dlref="DL001" dlamt="150000.50" dlcurr="UAH">
    <deallife dlref="DL001" dlyear="2023" dlmonth="5" dlds="2023-01-10" dldpf="2024-01-10"
              dlflstat="1" dlamtcur="120000" dlamtexp="4500.25" dldayexp="45"/>
    <deallife dlref="DL001" dlyear="2023" dlmonth="6" dlds="2023-01-10" dldpf="2024-01-10"
              dldff="2023-06-20" dlflstat="2" dlamtcur="0" dlamtexp="0" dldayexp="0"/>
  </crdeal>
</credres>`

const engineDocOverdue = `<?xml version="1.0" encoding="UTF-8"?>
<credres>
  <crdeal dlref="DL003" dlamt="30000" dlcurr="UAH">
    <deallife dlref="DL003" dlyear="2023" dlmonth="3" dlds="2022-05-01" dldpf="2023-05-01"
              dlflstat="1" dlamtcur="10000" dlamtexp="750.40" dldayexp="60"/>
  </crdeal>
</credres>`

const engineDocBareDeal = `<?xml version="1.0" encoding="UTF-8"?>
<credres>
  <crdeal dlref="DL001" dlamt="1000">
    <deallife dlref="DL001" dlyear="2023" dlmonth="5" dlflstat="1" dlamtcur="500"
              dlamtexp="0" dldayexp="0"/>
  </crdeal>
  <crdeal dlref="DL002" dlamt="5000"/>
</credres>`

func engineConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.OutputDir = t.TempDir()
	return cfg
}

func writeSourceDocument(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func runPipeline(t *testing.T, cfg *config.Config, dataDir string) {
	t.Helper()
	pipe := dataprocessing.NewPipeline(cfg, slog.Default(), nil)
	_, err := pipe.Run(context.Background(), dataprocessing.RunOptions{DataDir: dataDir})
	require.NoError(t, err)
}

func issueText(issues []Issue) string {
	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = issue.Phase + ": " + issue.Message
	}
	return strings.Join(parts, "\n")
}

func TestEngine_Run_CleanPipelinePasses(t *testing.T) {
	cfg := engineConfig(t)
	dataDir := t.TempDir()
	writeSourceDocument(t, dataDir, "client_1.xml", engineDocClosed)
	writeSourceDocument(t, dataDir, "client_2.xml", engineDocOverdue)
	runPipeline(t, cfg, dataDir)

	engine := NewEngine(cfg, slog.Default(), nil)
	report := engine.Run(context.Background(), dataDir)

	require.NotNil(t, report)
	assert.True(t, report.Passed(), "unexpected findings:\n%s\n%s",
		issueText(report.Errors), issueText(report.Warnings))
	assert.Equal(t, StatusPassed, report.Status)
	assert.Zero(t, report.ErrorCount)
	assert.Zero(t, report.WarningCount)
	assert.NotEmpty(t, report.Meta.GeneratedAt)
	assert.Equal(t, "validation_report_v1", report.Meta.Format)

	require.Len(t, report.Phases, 5)
	wantPhases := []string{
		PhaseXMLProcessing,
		PhaseDataTransformation,
		PhaseMetricCalculations,
		PhaseDataQuality,
		PhaseCrossValidation,
	}
	for i, phase := range report.Phases {
		assert.Equal(t, wantPhases[i], phase.Phase)
		assert.Equal(t, "passed", phase.Status)
	}

	assert.Equal(t, 2, report.Phases[0].Totals["files"])
	assert.Equal(t, 2, report.Phases[0].Totals["processed_clients"])
	assert.Equal(t, 3, report.Phases[1].Totals["records"])
	assert.Equal(t, 2, report.Phases[1].Totals["unique_clients"])
	assert.Equal(t, 2, report.Phases[2].Totals["metrics_rows"])
	assert.Equal(t, 3, report.Phases[3].Totals["rows_checked"])
	assert.Equal(t, 2, report.Phases[4].Totals["documents_checked"])
}

func TestEngine_Run_FlagsDealWithoutHistory(t *testing.T) {
	cfg := engineConfig(t)
	dataDir := t.TempDir()
	writeSourceDocument(t, dataDir, "client_1.xml", engineDocBareDeal)
	runPipeline(t, cfg, dataDir)

	engine := NewEngine(cfg, slog.Default(), nil)
	report := engine.Run(context.Background(), dataDir)

	// The cross-check counts raw deal blocks while the pipeline only counts
	// deals with history, so a bare deal splits the two totals.
	assert.False(t, report.Passed())
	assert.Equal(t, StatusFailed, report.Status)
	assert.Contains(t, issueText(report.Errors),
		"client client_1 total_loans_count: source 2, metrics 1")

	require.Len(t, report.Phases, 5)
	for _, phase := range report.Phases[:4] {
		assert.Equal(t, "passed", phase.Status, "phase %s", phase.Phase)
	}
	assert.Equal(t, "failed", report.Phases[4].Status)
}

func TestEngine_Run_ClientWithoutDealsMissingFromMetrics(t *testing.T) {
	cfg := engineConfig(t)
	dataDir := t.TempDir()
	writeSourceDocument(t, dataDir, "client_1.xml", engineDocClosed)
	writeSourceDocument(t, dataDir, "client_3.xml", `<credres></credres>`)
	runPipeline(t, cfg, dataDir)

	engine := NewEngine(cfg, slog.Default(), nil)
	report := engine.Run(context.Background(), dataDir)

	assert.False(t, report.Passed())
	assert.Contains(t, issueText(report.Warnings), "clients without deals: client_3")
	assert.Contains(t, issueText(report.Errors), "client client_3 missing from calculated metrics")
	assert.Equal(t, "passed", report.Phases[0].Status, "warnings alone do not fail a phase")
	assert.Equal(t, "failed", report.Phases[4].Status)
}

func TestEngine_Run_ZeroOverdueDebtConsistent(t *testing.T) {
	cfg := engineConfig(t)
	dataDir := t.TempDir()
	// 60 days overdue but a zero overdue amount: the calculator, the phase-3
	// recompute and the phase-5 re-parse must all include the zero term, so
	// the three paths agree on an expired sum of 0.
	writeSourceDocument(t, dataDir, "client_1.xml", `<credres>
  <crdeal dlref="DL005" dlamt="20000">
    <deallife dlref="DL005" dlyear="2023" dlmonth="4" dlflstat="1" dlamtcur="15000"
              dlamtexp="0" dldayexp="60"/>
  </crdeal>
</credres>`)
	runPipeline(t, cfg, dataDir)

	metricsCSV, err := os.ReadFile(cfg.MetricsCSVPath())
	require.NoError(t, err)
	assert.Contains(t, string(metricsCSV), "client_1,1,0,0.0000,0.00")

	engine := NewEngine(cfg, slog.Default(), nil)
	report := engine.Run(context.Background(), dataDir)

	assert.True(t, report.Passed(), "unexpected findings:\n%s\n%s",
		issueText(report.Errors), issueText(report.Warnings))
}

func TestEngine_Run_MissingArtifacts(t *testing.T) {
	cfg := engineConfig(t)
	dataDir := t.TempDir()
	writeSourceDocument(t, dataDir, "client_1.xml", engineDocOverdue)

	engine := NewEngine(cfg, slog.Default(), nil)
	report := engine.Run(context.Background(), dataDir)

	assert.False(t, report.Passed())
	assert.Equal(t, 3, report.ErrorCount)
	assert.Equal(t, 1, report.WarningCount)

	errText := issueText(report.Errors)
	assert.Contains(t, errText, "detailed export unavailable")
	assert.Contains(t, errText, "metrics export unavailable")
	assert.Contains(t, errText, "cross-validation skipped")
	assert.Contains(t, issueText(report.Warnings), "data quality checks skipped")

	require.Len(t, report.Phases, 5)
	wantStatuses := []string{"passed", "failed", "failed", "passed", "failed"}
	for i, phase := range report.Phases {
		assert.Equal(t, wantStatuses[i], phase.Status, "phase %s", phase.Phase)
	}
}

func TestEngine_Run_TamperedMetrics(t *testing.T) {
	cfg := engineConfig(t)
	dataDir := t.TempDir()
	writeSourceDocument(t, dataDir, "client_1.xml", engineDocClosed)
	runPipeline(t, cfg, dataDir)

	tampered := "client_id,total_loans_count,closed_loans_count,closed_loans_ratio,expired_30_plus_amount\n" +
		"client_1,2,1,0.5000,0.00\n"
	require.NoError(t, os.WriteFile(cfg.MetricsCSVPath(), []byte(tampered), 0644))

	engine := NewEngine(cfg, slog.Default(), nil)
	report := engine.Run(context.Background(), dataDir)

	assert.False(t, report.Passed())
	errText := issueText(report.Errors)
	assert.Contains(t, errText, "total_loans_count: exported 2, recomputed 1")
	assert.Contains(t, errText, "closed_loans_ratio: exported 0.5, recomputed 1")
	assert.Contains(t, errText, "total_loans_count: source 1, metrics 2")
}

func TestEngine_Run_UnreadableDocumentWarns(t *testing.T) {
	cfg := engineConfig(t)
	dataDir := t.TempDir()
	writeSourceDocument(t, dataDir, "client_1.xml", engineDocClosed)
	runPipeline(t, cfg, dataDir)
	writeSourceDocument(t, dataDir, "broken.xml", `<credres><crdeal dlref="DL001"`)

	engine := NewEngine(cfg, slog.Default(), nil)
	report := engine.Run(context.Background(), dataDir)

	assert.False(t, report.Passed())
	assert.Contains(t, issueText(report.Errors), "processed 1 clients from 2 source documents")
	assert.Contains(t, issueText(report.Warnings), "broken.xml")
	assert.Equal(t, 2, report.Phases[4].Totals["documents"])
	assert.Equal(t, 1, report.Phases[4].Totals["documents_checked"])
}

func TestEngine_QuickValidate(t *testing.T) {
	metricsHeader := "client_id,total_loans_count,closed_loans_count,closed_loans_ratio,expired_30_plus_amount\n"
	detailedStub := "client_id,deal_id\nclient_1,DL001\n"

	tests := []struct {
		name        string
		detailedCSV string
		metricsCSV  string
		wantErr     string
	}{
		{
			name:        "passes on sane artifacts",
			detailedCSV: detailedStub,
			metricsCSV:  metricsHeader + "client_1,2,1,0.5000,250.50\n",
		},
		{
			name:       "missing detailed export",
			metricsCSV: metricsHeader + "client_1,1,1,1.0000,0.00\n",
			wantErr:    "detailed export unavailable",
		},
		{
			name:        "missing metrics export",
			detailedCSV: detailedStub,
			wantErr:     "metrics export unavailable",
		},
		{
			name:        "ratio above one",
			detailedCSV: detailedStub,
			metricsCSV:  metricsHeader + "client_1,1,1,1.5000,0.00\n",
			wantErr:     "exceeds 1",
		},
		{
			name:        "negative expired amount",
			detailedCSV: detailedStub,
			metricsCSV:  metricsHeader + "client_1,1,0,0.0000,-5.00\n",
			wantErr:     "is negative",
		},
		{
			name:        "zero loan count",
			detailedCSV: detailedStub,
			metricsCSV:  metricsHeader + "client_1,0,0,0.0000,0.00\n",
			wantErr:     "not positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := engineConfig(t)
			if tt.detailedCSV != "" {
				require.NoError(t, os.WriteFile(cfg.DetailedCSVPath(), []byte(tt.detailedCSV), 0644))
			}
			if tt.metricsCSV != "" {
				require.NoError(t, os.WriteFile(cfg.MetricsCSVPath(), []byte(tt.metricsCSV), 0644))
			}

			engine := NewEngine(cfg, slog.Default(), nil)
			err := engine.QuickValidate(context.Background())

			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestReport_Summary(t *testing.T) {
	report := &Report{
		Status:       StatusFailed,
		ErrorCount:   1,
		WarningCount: 1,
		Errors: []Issue{
			{Phase: PhaseCrossValidation, Message: "client client_1 missing from calculated metrics"},
		},
		Warnings: []Issue{
			{Phase: PhaseXMLProcessing, Message: "clients without deals: client_9"},
		},
		Phases: []PhaseResult{
			{Phase: PhaseXMLProcessing, Status: "passed", Warnings: 1},
			{Phase: PhaseCrossValidation, Status: "failed", Errors: 1},
		},
	}

	summary := report.Summary()

	assert.Contains(t, summary, "validation FAILED: 1 errors, 1 warnings")
	assert.Contains(t, summary, "error [cross_validation] client client_1 missing from calculated metrics")
	assert.Contains(t, summary, "warning [xml_processing] clients without deals: client_9")
	assert.Contains(t, summary, "cross_validation")
}
