package exporter

import (
	"context"
	"log/slog"

	apperrors "riskcli/internal/errors"
	"riskcli/pkg/contracts/domain"
)

// MetricsExporter writes the per-client metrics artifact. The calculator
// already sorts metrics by client id, the exporter preserves that order.
type MetricsExporter struct {
	csvWriter *CSVWriter
	logger    *slog.Logger
	bom       bool
}

// NewMetricsExporter creates a client metrics exporter.
func NewMetricsExporter(logger *slog.Logger, bom bool) *MetricsExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricsExporter{
		csvWriter: NewCSVWriter(logger),
		logger:    logger,
		bom:       bom,
	}
}

// ExportMetrics writes the metrics CSV artifact to outputPath.
func (m *MetricsExporter) ExportMetrics(ctx context.Context, metrics []domain.ClientMetrics, outputPath string) error {
	records := make([][]string, 0, len(metrics))
	for i := range metrics {
		records = append(records, metricsToCSVRow(&metrics[i]))
	}

	err := m.csvWriter.WriteCSV(outputPath, WriteOptions{
		Headers:   domain.MetricsColumns(),
		Records:   records,
		BOMPrefix: m.bom,
	})
	if err != nil {
		return apperrors.NewStorageError("failed to write metrics export", err).
			WithContext("path", outputPath)
	}

	m.logger.InfoContext(ctx, "metrics export written",
		slog.String("path", outputPath),
		slog.Int("clients", len(metrics)))
	return nil
}

// metricsToCSVRow converts client metrics to CSV cells. The ratio always
// carries 4 decimal places and the expired amount 2, so re-reads compare
// against a stable text form.
func metricsToCSVRow(m *domain.ClientMetrics) []string {
	return []string{
		m.ClientID,
		formatInt(m.TotalLoansCount),
		formatInt(m.ClosedLoansCount),
		m.ClosedLoansRatio.StringFixed(4),
		m.Expired30PlusAmount.StringFixed(2),
	}
}
