package dataprocessing

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"riskcli/internal/config"
	apperrors "riskcli/internal/errors"
	"riskcli/internal/exporter"
	"riskcli/internal/infrastructure"
	"riskcli/pkg/contracts/domain"
)

// Pipeline runs the full extract, flatten, metrics and export sequence in one
// batch. The data directory is resolved by the caller before Run; the pipeline
// itself never probes the filesystem for fallbacks.
type Pipeline struct {
	cfg     *config.Config
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics

	extractor  *Extractor
	flattener  *Flattener
	calculator *MetricsCalculator

	detailedExporter *exporter.DetailedExporter
	metricsExporter  *exporter.MetricsExporter
	workbookExporter *exporter.WorkbookExporter
}

// NewPipeline creates a pipeline bound to the given configuration. metrics may
// be nil when telemetry is disabled.
func NewPipeline(cfg *config.Config, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	bom := cfg.Export.CSVBom
	return &Pipeline{
		cfg:     cfg,
		logger:  infrastructure.WithComponent(logger, "pipeline"),
		tracer:  otel.Tracer(infrastructure.MeterName),
		metrics: metrics,

		extractor:  NewExtractor(logger),
		flattener:  NewFlattener(logger),
		calculator: NewMetricsCalculator(logger),

		detailedExporter: exporter.NewDetailedExporter(logger, bom),
		metricsExporter:  exporter.NewMetricsExporter(logger, bom),
		workbookExporter: exporter.NewWorkbookExporter(logger),
	}
}

// RunOptions controls a single pipeline run.
type RunOptions struct {
	// DataDir is the resolved source document directory
	DataDir string
	// IncludeExcel additionally writes the portfolio workbook
	IncludeExcel bool
}

// RunSummary reports what a pipeline run produced.
type RunSummary struct {
	Documents           int
	ProcessedClients    int
	ParseErrors         int
	Deals               int
	Periods             int
	Rows                int
	DuplicatesReplaced  int
	DealsWithoutHistory int
	MetricsClients      int
	Duration            time.Duration

	DetailedPath string
	MetricsPath  string
	WorkbookPath string
}

// Run executes the pipeline. Per-document parse failures are skipped and
// counted; a missing data directory, an empty document set or an export
// failure aborts the run.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	p.logger.InfoContext(ctx, "pipeline started",
		slog.String("data_dir", opts.DataDir),
		slog.String("output_dir", p.cfg.Paths.OutputDir),
		slog.Bool("include_excel", opts.IncludeExcel))

	records, stats, err := p.runExtract(ctx, opts.DataDir)
	if err != nil {
		return nil, err
	}

	rows, flattenStats := p.runFlatten(ctx, records)
	clientMetrics := p.runMetrics(ctx, rows)

	summary := &RunSummary{
		Documents:           stats.TotalFiles,
		ProcessedClients:    stats.ProcessedClients,
		ParseErrors:         stats.ParseErrors,
		Deals:               stats.TotalDeals,
		Periods:             stats.TotalPeriods,
		Rows:                len(rows),
		DuplicatesReplaced:  flattenStats.DuplicatesReplaced,
		DealsWithoutHistory: flattenStats.DealsWithoutHistory,
		MetricsClients:      len(clientMetrics),
	}

	if err := p.runExport(ctx, rows, clientMetrics, opts.IncludeExcel, summary); err != nil {
		return nil, err
	}

	summary.Duration = time.Since(start)
	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"pipeline.documents":       summary.Documents,
		"pipeline.parse_errors":    summary.ParseErrors,
		"pipeline.rows":            summary.Rows,
		"pipeline.metrics_clients": summary.MetricsClients,
	})

	p.logger.InfoContext(ctx, "pipeline completed",
		slog.Int("documents", summary.Documents),
		slog.Int("parse_errors", summary.ParseErrors),
		slog.Int("rows", summary.Rows),
		slog.Int("metrics_clients", summary.MetricsClients),
		slog.Duration("duration", summary.Duration))
	return summary, nil
}

func (p *Pipeline) runExtract(ctx context.Context, dataDir string) ([]domain.ClientRecord, ExtractStats, error) {
	stageStart := time.Now()
	records, stats, err := p.extractor.ExtractDirectory(ctx, dataDir)
	infrastructure.RecordStageMetrics(ctx, p.metrics, "extract", time.Since(stageStart), err == nil, err)
	if err != nil {
		return nil, stats, err
	}
	if stats.TotalFiles == 0 {
		return nil, stats, apperrors.NewNotFoundError("source documents").
			WithContext("dir", dataDir)
	}

	if p.metrics != nil {
		p.metrics.DocumentsProcessed.Add(ctx, int64(stats.ProcessedClients))
		p.metrics.DocumentErrors.Add(ctx, int64(stats.ParseErrors))
		p.metrics.DealsExtracted.Add(ctx, int64(stats.TotalDeals))
		p.metrics.PeriodsExtracted.Add(ctx, int64(stats.TotalPeriods))
	}
	return records, stats, nil
}

func (p *Pipeline) runFlatten(ctx context.Context, records []domain.ClientRecord) ([]domain.FlattenedRow, FlattenStats) {
	stageStart := time.Now()
	rows, stats := p.flattener.Flatten(ctx, records)
	infrastructure.RecordStageMetrics(ctx, p.metrics, "flatten", time.Since(stageStart), true, nil)

	if p.metrics != nil {
		p.metrics.RowsFlattened.Add(ctx, int64(len(rows)))
		p.metrics.DuplicatesDropped.Add(ctx, int64(stats.DuplicatesReplaced))
	}
	return rows, stats
}

func (p *Pipeline) runMetrics(ctx context.Context, rows []domain.FlattenedRow) []domain.ClientMetrics {
	stageStart := time.Now()
	clientMetrics := p.calculator.CalculateFromRows(ctx, rows)
	infrastructure.RecordStageMetrics(ctx, p.metrics, "metrics", time.Since(stageStart), true, nil)

	if p.metrics != nil {
		p.metrics.ClientsCalculated.Add(ctx, int64(len(clientMetrics)))
	}
	return clientMetrics
}

func (p *Pipeline) runExport(ctx context.Context, rows []domain.FlattenedRow, clientMetrics []domain.ClientMetrics, includeExcel bool, summary *RunSummary) error {
	stageStart := time.Now()
	err := p.exportArtifacts(ctx, rows, clientMetrics, includeExcel, summary)
	infrastructure.RecordStageMetrics(ctx, p.metrics, "export", time.Since(stageStart), err == nil, err)
	return err
}

func (p *Pipeline) exportArtifacts(ctx context.Context, rows []domain.FlattenedRow, clientMetrics []domain.ClientMetrics, includeExcel bool, summary *RunSummary) error {
	summary.DetailedPath = p.cfg.DetailedCSVPath()
	if err := p.detailedExporter.ExportRows(ctx, rows, summary.DetailedPath); err != nil {
		return err
	}

	summary.MetricsPath = p.cfg.MetricsCSVPath()
	if err := p.metricsExporter.ExportMetrics(ctx, clientMetrics, summary.MetricsPath); err != nil {
		return err
	}

	if includeExcel {
		summary.WorkbookPath = p.cfg.ExcelWorkbookPath()
		if err := p.workbookExporter.ExportWorkbook(ctx, rows, clientMetrics, summary.WorkbookPath); err != nil {
			return err
		}
	}
	return nil
}
