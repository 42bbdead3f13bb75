package exporter

import (
	"context"
	"log/slog"

	apperrors "riskcli/internal/errors"
	"riskcli/pkg/contracts/domain"
)

// DetailedExporter writes the flattened credit rows artifact. Rows are written
// through the streaming writer in the order the flattener produced them, one
// line per deduplicated (client, deal, period) snapshot.
type DetailedExporter struct {
	csvWriter *CSVWriter
	logger    *slog.Logger
	bom       bool
}

// NewDetailedExporter creates a detailed rows exporter. The BOM prefix is for
// spreadsheet imports and is off unless requested.
func NewDetailedExporter(logger *slog.Logger, bom bool) *DetailedExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetailedExporter{
		csvWriter: NewCSVWriter(logger),
		logger:    logger,
		bom:       bom,
	}
}

// ExportRows writes the detailed CSV artifact to outputPath.
func (d *DetailedExporter) ExportRows(ctx context.Context, rows []domain.FlattenedRow, outputPath string) error {
	stream, err := d.csvWriter.CreateStreamWriter(outputPath, domain.DetailedColumns(), d.bom)
	if err != nil {
		return apperrors.NewStorageError("failed to create detailed export", err).
			WithContext("path", outputPath)
	}

	for i := range rows {
		if err := stream.WriteRecord(rowToCSVRow(&rows[i])); err != nil {
			stream.Close()
			return apperrors.NewStorageError("failed to write detailed export row", err).
				WithContext("path", outputPath).
				WithContext("row", i)
		}
	}

	if err := stream.Close(); err != nil {
		return apperrors.NewStorageError("failed to finalize detailed export", err).
			WithContext("path", outputPath)
	}

	d.logger.InfoContext(ctx, "detailed export written",
		slog.String("path", outputPath),
		slog.Int("rows", len(rows)))
	return nil
}

// rowToCSVRow converts a flattened row to its CSV cells, in DetailedColumns
// order.
func rowToCSVRow(row *domain.FlattenedRow) []string {
	return []string{
		row.ClientID,
		row.ClientFile,
		row.DealID,
		formatDecimal(row.TransactionAmount),
		formatStringPtr(row.TransactionType),
		formatStringPtr(row.Currency),
		formatStringPtr(row.CollateralType),
		formatStringPtr(row.SubjectRole),
		formatDecimal(row.CollateralValue),
		formatIntPtr(row.PeriodMonth),
		formatIntPtr(row.PeriodYear),
		formatStringPtr(row.StartDate),
		formatStringPtr(row.PlannedEndDate),
		formatStringPtr(row.ActualEndDate),
		formatIntPtr(row.DealStatus),
		formatDecimal(row.CurrentLimit),
		formatDecimal(row.PlannedPayment),
		formatDecimal(row.CurrentDebt),
		formatDecimal(row.OverdueDebt),
		formatIntPtr(row.DaysOverdue),
		formatIntPtr(row.PaymentMade),
		formatIntPtr(row.ArrearsPresent),
		formatStringPtr(row.CalculationDate),
	}
}
