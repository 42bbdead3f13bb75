package validation

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"riskcli/internal/config"
	"riskcli/internal/dataprocessing"
	apperrors "riskcli/internal/errors"
	"riskcli/internal/exporter"
	"riskcli/internal/infrastructure"
)

// Phase names as they appear in the report's category summary.
const (
	PhaseXMLProcessing      = "xml_processing"
	PhaseDataTransformation = "data_transformation"
	PhaseMetricCalculations = "metric_calculations"
	PhaseDataQuality        = "data_quality"
	PhaseCrossValidation    = "cross_validation"
)

// Report statuses.
const (
	StatusPassed = "PASSED"
	StatusFailed = "FAILED"
)

// Comparison tolerances for recomputed metrics.
var (
	ratioTolerance   = decimal.RequireFromString("0.0001")
	expiredTolerance = decimal.RequireFromString("0.01")
)

// requiredDetailedColumns are the detailed export columns the tabular phase
// insists on.
func requiredDetailedColumns() []string {
	return []string{
		"client_id",
		"deal_id",
		"transaction_amount",
		"actual_end_date",
		"overdue_debt",
		"days_overdue",
		"deal_status",
		"period_month",
		"period_year",
	}
}

// Issue is one collected validation finding.
type Issue struct {
	Phase   string `json:"phase"`
	Message string `json:"message"`
}

// PhaseResult summarizes one validation phase for the report.
type PhaseResult struct {
	Phase    string         `json:"phase"`
	Status   string         `json:"status"`
	Errors   int            `json:"errors"`
	Warnings int            `json:"warnings"`
	Totals   map[string]int `json:"totals,omitempty"`
}

// Report is the validation report artifact.
type Report struct {
	Meta         exporter.ReportMeta `json:"meta"`
	Status       string              `json:"status"`
	ErrorCount   int                 `json:"error_count"`
	WarningCount int                 `json:"warning_count"`
	Errors       []Issue             `json:"errors"`
	Warnings     []Issue             `json:"warnings"`
	Phases       []PhaseResult       `json:"phases"`
}

// Passed reports whether the validation run collected zero errors.
func (r *Report) Passed() bool {
	return r.Status == StatusPassed
}

// Summary renders the console form of the report.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "validation %s: %d errors, %d warnings\n", r.Status, r.ErrorCount, r.WarningCount)
	for _, phase := range r.Phases {
		fmt.Fprintf(&b, "  %-20s %s (%d errors, %d warnings)\n",
			phase.Phase, phase.Status, phase.Errors, phase.Warnings)
	}
	for _, issue := range r.Errors {
		fmt.Fprintf(&b, "  error [%s] %s\n", issue.Phase, issue.Message)
	}
	for _, issue := range r.Warnings {
		fmt.Fprintf(&b, "  warning [%s] %s\n", issue.Phase, issue.Message)
	}
	return b.String()
}

// collector accumulates findings across phases; nothing short-circuits.
type collector struct {
	errors   []Issue
	warnings []Issue
}

func (c *collector) errorf(phase, format string, args ...interface{}) {
	c.errors = append(c.errors, Issue{Phase: phase, Message: fmt.Sprintf(format, args...)})
}

func (c *collector) warnf(phase, format string, args ...interface{}) {
	c.warnings = append(c.warnings, Issue{Phase: phase, Message: fmt.Sprintf(format, args...)})
}

func (c *collector) counts(phase string) (errs, warns int) {
	for _, issue := range c.errors {
		if issue.Phase == phase {
			errs++
		}
	}
	for _, issue := range c.warnings {
		if issue.Phase == phase {
			warns++
		}
	}
	return errs, warns
}

// phaseResult snapshots the collector for one finished phase.
func phaseResult(phase string, c *collector, totals map[string]int) PhaseResult {
	errs, warns := c.counts(phase)
	status := "passed"
	if errs > 0 {
		status = "failed"
	}
	return PhaseResult{Phase: phase, Status: status, Errors: errs, Warnings: warns, Totals: totals}
}

// Engine is the five-phase cross-validation engine. It audits the source
// documents and the exported artifacts against each other and never
// short-circuits: every phase that has its inputs runs and all findings are
// collected into one report.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics

	validator *FileValidator
	artifacts *ArtifactReader
	extractor *dataprocessing.Extractor
}

// NewEngine creates a validation engine bound to the given configuration.
// metrics may be nil when telemetry is disabled.
func NewEngine(cfg *config.Config, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:       cfg,
		logger:    infrastructure.WithComponent(logger, "validation"),
		metrics:   metrics,
		validator: NewFileValidator(logger),
		artifacts: NewArtifactReader(logger),
		extractor: dataprocessing.NewExtractor(logger),
	}
}

// Run executes all five phases against dataDir and the configured artifacts.
func (e *Engine) Run(ctx context.Context, dataDir string) *Report {
	start := time.Now()
	ctx = infrastructure.EnsureRunID(ctx)
	e.logger.InfoContext(ctx, "validation started",
		slog.String("data_dir", dataDir),
		slog.String("output_dir", e.cfg.Paths.OutputDir))

	c := &collector{}
	phases := make([]PhaseResult, 0, 5)

	phases = append(phases, e.runXMLProcessing(ctx, c, dataDir))

	detailed, transformation := e.runDataTransformation(ctx, c)
	phases = append(phases, transformation)

	metricsRows, calculations := e.runMetricCalculations(ctx, c, detailed)
	phases = append(phases, calculations)

	phases = append(phases, e.runDataQuality(ctx, c, detailed))
	phases = append(phases, e.runCrossValidation(ctx, c, dataDir, metricsRows))

	report := e.buildReport(ctx, c, phases)
	infrastructure.RecordValidationOutcome(ctx, e.metrics, report.ErrorCount, report.WarningCount)

	e.logger.InfoContext(ctx, "validation completed",
		slog.String("status", report.Status),
		slog.Int("errors", report.ErrorCount),
		slog.Int("warnings", report.WarningCount),
		slog.Duration("duration", time.Since(start)))
	return report
}

// QuickValidate runs the fast artifact sanity checks: both CSV artifacts
// exist, every ratio is at most 1, every expired amount is non-negative and
// every loan count is positive. The first failure aborts with a named reason.
func (e *Engine) QuickValidate(ctx context.Context) error {
	detailedPath := e.cfg.DetailedCSVPath()
	if err := e.validator.ValidateCSVFile(detailedPath); err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("detailed export unavailable: %v", err))
	}

	metricsPath := e.cfg.MetricsCSVPath()
	if err := e.validator.ValidateCSVFile(metricsPath); err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("metrics export unavailable: %v", err))
	}

	rows, err := e.artifacts.ReadMetricsCSV(metricsPath)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("metrics export unreadable: %v", err))
	}

	one := decimal.NewFromInt(1)
	for _, row := range rows {
		if row.ClosedLoansRatio.GreaterThan(one) {
			return apperrors.NewValidationError(fmt.Sprintf(
				"client %s closed_loans_ratio %s exceeds 1", row.ClientID, row.ClosedLoansRatio))
		}
		if row.Expired30PlusAmount.IsNegative() {
			return apperrors.NewValidationError(fmt.Sprintf(
				"client %s expired_30_plus_amount %s is negative", row.ClientID, row.Expired30PlusAmount))
		}
		if row.TotalLoansCount <= 0 {
			return apperrors.NewValidationError(fmt.Sprintf(
				"client %s total_loans_count %d is not positive", row.ClientID, row.TotalLoansCount))
		}
	}

	e.logger.InfoContext(ctx, "quick validation passed",
		slog.Int("clients", len(rows)))
	return nil
}

// runXMLProcessing re-runs extraction over the source directory and audits
// the counts.
func (e *Engine) runXMLProcessing(ctx context.Context, c *collector, dataDir string) PhaseResult {
	_, stats, err := e.extractor.ExtractDirectory(ctx, dataDir)
	if err != nil {
		c.errorf(PhaseXMLProcessing, "failed to process source directory %s: %v", dataDir, err)
		return phaseResult(PhaseXMLProcessing, c, nil)
	}

	totals := map[string]int{
		"files":                 stats.TotalFiles,
		"processed_clients":     stats.ProcessedClients,
		"deals":                 stats.TotalDeals,
		"clients_without_deals": len(stats.ClientsWithoutDeals),
	}

	if stats.ProcessedClients != stats.TotalFiles {
		c.errorf(PhaseXMLProcessing, "processed %d clients from %d source documents",
			stats.ProcessedClients, stats.TotalFiles)
	}
	if len(stats.ClientsWithoutDeals) > 0 {
		c.warnf(PhaseXMLProcessing, "clients without deals: %s",
			strings.Join(stats.ClientsWithoutDeals, ", "))
	}
	return phaseResult(PhaseXMLProcessing, c, totals)
}

// runDataTransformation checks the detailed export's structure and content.
// A missing artifact aborts this phase only.
func (e *Engine) runDataTransformation(ctx context.Context, c *collector) (*DetailedArtifact, PhaseResult) {
	path := e.cfg.DetailedCSVPath()
	detailed, err := e.artifacts.ReadDetailedCSV(path)
	if err != nil {
		c.errorf(PhaseDataTransformation, "detailed export unavailable: %v", err)
		return nil, phaseResult(PhaseDataTransformation, c, nil)
	}

	have := columnIndex(detailed.Columns)
	var missing []string
	for _, col := range requiredDetailedColumns() {
		if _, ok := have[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		c.errorf(PhaseDataTransformation, "detailed export missing required columns: %s",
			strings.Join(missing, ", "))
	}

	type detailKey struct {
		client, deal string
		year, month  int
	}
	clients := make(map[string]struct{})
	deals := make(map[string]struct{})
	seen := make(map[detailKey]struct{})
	negativeAmounts := 0
	negativeDays := 0
	duplicates := 0

	for i := range detailed.Rows {
		row := &detailed.Rows[i]
		clients[row.ClientID] = struct{}{}
		deals[row.ClientID+"\x00"+row.DealID] = struct{}{}

		if row.TransactionAmount != nil && row.TransactionAmount.IsNegative() {
			negativeAmounts++
		}
		if row.DaysOverdue != nil && *row.DaysOverdue < 0 {
			negativeDays++
		}

		year, month := detailPeriod(row)
		key := detailKey{client: row.ClientID, deal: row.DealID, year: year, month: month}
		if _, dup := seen[key]; dup {
			duplicates++
		} else {
			seen[key] = struct{}{}
		}
	}

	if negativeAmounts > 0 {
		c.warnf(PhaseDataTransformation, "%d rows carry negative transaction amounts", negativeAmounts)
	}
	if negativeDays > 0 {
		c.errorf(PhaseDataTransformation, "%d rows carry negative days overdue", negativeDays)
	}
	if duplicates > 0 {
		c.errorf(PhaseDataTransformation, "%d duplicate (client, deal, period) keys", duplicates)
	}

	totals := map[string]int{
		"records":        len(detailed.Rows),
		"unique_clients": len(clients),
		"unique_deals":   len(deals),
		"duplicate_keys": duplicates,
	}
	return detailed, phaseResult(PhaseDataTransformation, c, totals)
}

// runMetricCalculations recomputes the four metrics from the detailed export
// and compares them with the metrics export.
func (e *Engine) runMetricCalculations(ctx context.Context, c *collector, detailed *DetailedArtifact) ([]MetricsRow, PhaseResult) {
	metricsRows, err := e.artifacts.ReadMetricsCSV(e.cfg.MetricsCSVPath())
	if err != nil {
		c.errorf(PhaseMetricCalculations, "metrics export unavailable: %v", err)
		return nil, phaseResult(PhaseMetricCalculations, c, nil)
	}
	if detailed == nil {
		c.errorf(PhaseMetricCalculations, "detailed export unavailable for recomputation")
		return metricsRows, phaseResult(PhaseMetricCalculations, c, nil)
	}

	recomputed := recomputeMetrics(detailed.Rows)
	exported := make(map[string]MetricsRow, len(metricsRows))
	for _, row := range metricsRows {
		exported[row.ClientID] = row
	}

	clientIDs := make([]string, 0, len(recomputed))
	for clientID := range recomputed {
		clientIDs = append(clientIDs, clientID)
	}
	sort.Strings(clientIDs)

	for _, clientID := range clientIDs {
		rec := recomputed[clientID]
		exp, ok := exported[clientID]
		if !ok {
			c.errorf(PhaseMetricCalculations, "client %s has detailed rows but no metrics row", clientID)
			continue
		}
		if exp.TotalLoansCount != rec.total {
			c.errorf(PhaseMetricCalculations, "client %s total_loans_count: exported %d, recomputed %d",
				clientID, exp.TotalLoansCount, rec.total)
		}
		if exp.ClosedLoansCount != rec.closed {
			c.errorf(PhaseMetricCalculations, "client %s closed_loans_count: exported %d, recomputed %d",
				clientID, exp.ClosedLoansCount, rec.closed)
		}
		if exp.ClosedLoansRatio.Sub(rec.ratio).Abs().GreaterThan(ratioTolerance) {
			c.errorf(PhaseMetricCalculations, "client %s closed_loans_ratio: exported %s, recomputed %s",
				clientID, exp.ClosedLoansRatio, rec.ratio)
		}
		if exp.Expired30PlusAmount.Sub(rec.expired).Abs().GreaterThan(expiredTolerance) {
			c.errorf(PhaseMetricCalculations, "client %s expired_30_plus_amount: exported %s, recomputed %s",
				clientID, exp.Expired30PlusAmount, rec.expired)
		}
	}

	for _, row := range metricsRows {
		if _, ok := recomputed[row.ClientID]; !ok {
			c.errorf(PhaseMetricCalculations, "client %s has a metrics row but no detailed rows", row.ClientID)
		}
	}

	totals := map[string]int{
		"metrics_rows":       len(metricsRows),
		"recomputed_clients": len(recomputed),
	}
	return metricsRows, phaseResult(PhaseMetricCalculations, c, totals)
}

// runDataQuality collects warnings only; nothing here fails the report.
func (e *Engine) runDataQuality(ctx context.Context, c *collector, detailed *DetailedArtifact) PhaseResult {
	if detailed == nil {
		c.warnf(PhaseDataQuality, "detailed export unavailable, data quality checks skipped")
		return phaseResult(PhaseDataQuality, c, nil)
	}

	missingClient := 0
	missingDeal := 0
	missingAmount := 0
	dateOrder := 0
	overdueAboveCurrent := 0

	for i := range detailed.Rows {
		row := &detailed.Rows[i]
		if isNullCell(row.ClientID) {
			missingClient++
		}
		if isNullCell(row.DealID) {
			missingDeal++
		}
		if row.TransactionAmount == nil {
			missingAmount++
		}
		if row.StartDate != nil && row.PlannedEndDate != nil {
			start, startErr := time.Parse("2006-01-02", *row.StartDate)
			planned, plannedErr := time.Parse("2006-01-02", *row.PlannedEndDate)
			if startErr == nil && plannedErr == nil && !start.Before(planned) {
				dateOrder++
			}
		}
		if row.OverdueDebt != nil && row.CurrentDebt != nil && row.OverdueDebt.GreaterThan(*row.CurrentDebt) {
			overdueAboveCurrent++
		}
	}

	if missingClient > 0 {
		c.warnf(PhaseDataQuality, "%d rows missing client_id", missingClient)
	}
	if missingDeal > 0 {
		c.warnf(PhaseDataQuality, "%d rows missing deal_id", missingDeal)
	}
	if missingAmount > 0 {
		c.warnf(PhaseDataQuality, "%d rows missing transaction_amount", missingAmount)
	}
	if dateOrder > 0 {
		c.warnf(PhaseDataQuality, "%d rows with start date on or after planned end date", dateOrder)
	}
	if overdueAboveCurrent > 0 {
		c.warnf(PhaseDataQuality, "%d rows with overdue debt above current debt", overdueAboveCurrent)
	}

	totals := map[string]int{"rows_checked": len(detailed.Rows)}
	return phaseResult(PhaseDataQuality, c, totals)
}

// runCrossValidation re-reads every source document through the independent
// reducer and compares the result against the metrics export.
func (e *Engine) runCrossValidation(ctx context.Context, c *collector, dataDir string, metricsRows []MetricsRow) PhaseResult {
	if metricsRows == nil {
		c.errorf(PhaseCrossValidation, "metrics export unavailable, cross-validation skipped")
		return phaseResult(PhaseCrossValidation, c, nil)
	}

	paths, err := listSourceDocuments(dataDir)
	if err != nil {
		c.errorf(PhaseCrossValidation, "failed to list source documents in %s: %v", dataDir, err)
		return phaseResult(PhaseCrossValidation, c, nil)
	}

	exported := make(map[string]MetricsRow, len(metricsRows))
	for _, row := range metricsRows {
		exported[row.ClientID] = row
	}

	checked := 0
	for _, path := range paths {
		src, err := readSourceTotals(path)
		if err != nil {
			c.warnf(PhaseCrossValidation, "failed to re-read source document %s: %v",
				filepath.Base(path), err)
			continue
		}
		checked++

		exp, ok := exported[src.ClientID]
		if !ok {
			c.errorf(PhaseCrossValidation, "client %s missing from calculated metrics", src.ClientID)
			continue
		}
		if exp.TotalLoansCount != src.Deals {
			c.errorf(PhaseCrossValidation, "client %s total_loans_count: source %d, metrics %d",
				src.ClientID, src.Deals, exp.TotalLoansCount)
		}
		if exp.Expired30PlusAmount.Sub(src.Expired30Plus).Abs().GreaterThan(expiredTolerance) {
			c.errorf(PhaseCrossValidation, "client %s expired_30_plus_amount: source %s, metrics %s",
				src.ClientID, src.Expired30Plus, exp.Expired30PlusAmount)
		}
	}

	totals := map[string]int{
		"documents":         len(paths),
		"documents_checked": checked,
	}
	return phaseResult(PhaseCrossValidation, c, totals)
}

func (e *Engine) buildReport(ctx context.Context, c *collector, phases []PhaseResult) *Report {
	status := StatusPassed
	if len(c.errors) > 0 {
		status = StatusFailed
	}

	errors := c.errors
	if errors == nil {
		errors = []Issue{}
	}
	warnings := c.warnings
	if warnings == nil {
		warnings = []Issue{}
	}

	return &Report{
		Meta:         exporter.NewReportMeta(infrastructure.GetRunID(ctx), "validation_report_v1"),
		Status:       status,
		ErrorCount:   len(errors),
		WarningCount: len(warnings),
		Errors:       errors,
		Warnings:     warnings,
		Phases:       phases,
	}
}

// recomputedClient is the validator's own reduction of the detailed rows.
type recomputedClient struct {
	total   int
	closed  int
	ratio   decimal.Decimal
	expired decimal.Decimal
}

// recomputeMetrics folds the detailed rows into per-client metrics with the
// same latest-period rule the calculator uses, implemented separately so the
// two paths can disagree.
func recomputeMetrics(rows []DetailedRow) map[string]recomputedClient {
	latest := make(map[string]map[string]*DetailedRow)
	for i := range rows {
		row := &rows[i]
		deals, ok := latest[row.ClientID]
		if !ok {
			deals = make(map[string]*DetailedRow)
			latest[row.ClientID] = deals
		}
		current, ok := deals[row.DealID]
		if !ok || !detailAfter(current, row) {
			deals[row.DealID] = row
		}
	}

	result := make(map[string]recomputedClient, len(latest))
	for clientID, deals := range latest {
		rec := recomputedClient{
			total:   len(deals),
			ratio:   decimal.Zero,
			expired: decimal.Zero,
		}
		for _, row := range deals {
			if row.ActualEndDate != nil {
				rec.closed++
			}
			if row.DaysOverdue != nil && *row.DaysOverdue > 30 && row.OverdueDebt != nil {
				rec.expired = rec.expired.Add(*row.OverdueDebt)
			}
		}
		if rec.total > 0 {
			rec.ratio = decimal.NewFromInt(int64(rec.closed)).
				Div(decimal.NewFromInt(int64(rec.total))).
				Round(4)
		}
		rec.expired = rec.expired.Round(2)
		result[clientID] = rec
	}
	return result
}

// detailPeriod returns the row's (year, month) with missing parts as zero.
func detailPeriod(row *DetailedRow) (year, month int) {
	if row.PeriodYear != nil {
		year = *row.PeriodYear
	}
	if row.PeriodMonth != nil {
		month = *row.PeriodMonth
	}
	return year, month
}

// detailAfter reports whether current's period strictly follows candidate's.
// Equal periods return false so the later row replaces the held one.
func detailAfter(current, candidate *DetailedRow) bool {
	cy, cm := detailPeriod(current)
	ny, nm := detailPeriod(candidate)
	if cy != ny {
		return cy > ny
	}
	return cm > nm
}
