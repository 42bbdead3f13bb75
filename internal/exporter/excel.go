package exporter

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	apperrors "riskcli/internal/errors"
	"riskcli/pkg/contracts/domain"
)

// Workbook sheet names.
const (
	sheetMetrics  = "Metrics"
	sheetDetailed = "Detailed"
	sheetSummary  = "Summary"
)

// WorkbookExporter writes the portfolio workbook artifact with a metrics
// sheet, a detailed rows sheet and a summary sheet. Numeric cells are written
// as numbers so the workbook remains usable for ad-hoc aggregation; the CSV
// artifacts stay the canonical fixed-point form.
type WorkbookExporter struct {
	logger *slog.Logger
}

// NewWorkbookExporter creates a portfolio workbook exporter.
func NewWorkbookExporter(logger *slog.Logger) *WorkbookExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookExporter{logger: logger}
}

// ExportWorkbook writes the workbook artifact to outputPath.
func (e *WorkbookExporter) ExportWorkbook(ctx context.Context, rows []domain.FlattenedRow, metrics []domain.ClientMetrics, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetMetrics); err != nil {
		return apperrors.NewStorageError("failed to prepare workbook sheets", err)
	}
	if _, err := f.NewSheet(sheetDetailed); err != nil {
		return apperrors.NewStorageError("failed to prepare workbook sheets", err)
	}
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return apperrors.NewStorageError("failed to prepare workbook sheets", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return apperrors.NewStorageError("failed to create workbook header style", err)
	}

	if err := e.writeMetricsSheet(f, headerStyle, metrics); err != nil {
		return apperrors.NewStorageError("failed to write metrics sheet", err)
	}
	if err := e.writeDetailedSheet(f, headerStyle, rows); err != nil {
		return apperrors.NewStorageError("failed to write detailed sheet", err)
	}
	if err := e.writeSummarySheet(f, rows, metrics); err != nil {
		return apperrors.NewStorageError("failed to write summary sheet", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return apperrors.NewStorageError("failed to create directory for workbook", err).
			WithContext("path", outputPath)
	}
	if err := f.SaveAs(outputPath); err != nil {
		return apperrors.NewStorageError("failed to save workbook", err).
			WithContext("path", outputPath)
	}

	e.logger.InfoContext(ctx, "portfolio workbook written",
		slog.String("path", outputPath),
		slog.Int("metrics_rows", len(metrics)),
		slog.Int("detailed_rows", len(rows)))
	return nil
}

func (e *WorkbookExporter) writeMetricsSheet(f *excelize.File, headerStyle int, metrics []domain.ClientMetrics) error {
	headers := domain.MetricsColumns()
	widths := make([]float64, len(headers))
	for i, h := range headers {
		widths[i] = float64(len(h))
	}

	for col, header := range headers {
		if err := setCell(f, sheetMetrics, col+1, 1, header); err != nil {
			return err
		}
	}

	for i := range metrics {
		m := &metrics[i]
		cells := []any{
			m.ClientID,
			m.TotalLoansCount,
			m.ClosedLoansCount,
			m.ClosedLoansRatio.InexactFloat64(),
			m.Expired30PlusAmount.InexactFloat64(),
		}
		texts := metricsToCSVRow(m)
		for col, value := range cells {
			if err := setCell(f, sheetMetrics, col+1, i+2, value); err != nil {
				return err
			}
			if w := float64(len(texts[col])); w > widths[col] {
				widths[col] = w
			}
		}
	}

	if err := styleHeaderRow(f, sheetMetrics, headerStyle, len(headers)); err != nil {
		return err
	}
	if err := freezeTopRow(f, sheetMetrics); err != nil {
		return err
	}

	// Auto column sizing from the widest cell text
	for i, width := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if width > 38 {
			width = 38
		}
		if err := f.SetColWidth(sheetMetrics, name, name, width+2); err != nil {
			return err
		}
	}
	return nil
}

func (e *WorkbookExporter) writeDetailedSheet(f *excelize.File, headerStyle int, rows []domain.FlattenedRow) error {
	headers := domain.DetailedColumns()
	for col, header := range headers {
		if err := setCell(f, sheetDetailed, col+1, 1, header); err != nil {
			return err
		}
	}

	for i := range rows {
		for col, value := range rowToWorkbookCells(&rows[i]) {
			if value == nil {
				continue
			}
			if err := setCell(f, sheetDetailed, col+1, i+2, value); err != nil {
				return err
			}
		}
	}

	if err := styleHeaderRow(f, sheetDetailed, headerStyle, len(headers)); err != nil {
		return err
	}
	return freezeTopRow(f, sheetDetailed)
}

func (e *WorkbookExporter) writeSummarySheet(f *excelize.File, rows []domain.FlattenedRow, metrics []domain.ClientMetrics) error {
	totalDeals := 0
	closedDeals := 0
	expired := decimal.Zero
	for i := range metrics {
		totalDeals += metrics[i].TotalLoansCount
		closedDeals += metrics[i].ClosedLoansCount
		expired = expired.Add(metrics[i].Expired30PlusAmount)
	}

	closureRate := 0.0
	if totalDeals > 0 {
		closureRate = float64(closedDeals) / float64(totalDeals)
	}

	entries := []struct {
		label string
		value any
	}{
		{"Clients", len(metrics)},
		{"Deals", totalDeals},
		{"Closed deals", closedDeals},
		{"Closure rate", closureRate},
		{"Expired debt 30+ days", expired.InexactFloat64()},
		{"Detailed rows", len(rows)},
		{"Generated at", time.Now().Format(time.RFC3339)},
	}

	for i, entry := range entries {
		if err := setCell(f, sheetSummary, 1, i+1, entry.label); err != nil {
			return err
		}
		if err := setCell(f, sheetSummary, 2, i+1, entry.value); err != nil {
			return err
		}
	}

	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(1, len(entries))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetSummary, "A1", last, labelStyle); err != nil {
		return err
	}

	if err := f.SetColWidth(sheetSummary, "A", "A", 26); err != nil {
		return err
	}
	return f.SetColWidth(sheetSummary, "B", "B", 24)
}

// rowToWorkbookCells converts a flattened row to typed cell values in
// DetailedColumns order, nil for empty cells.
func rowToWorkbookCells(row *domain.FlattenedRow) []any {
	return []any{
		row.ClientID,
		row.ClientFile,
		row.DealID,
		decimalCell(row.TransactionAmount),
		stringCell(row.TransactionType),
		stringCell(row.Currency),
		stringCell(row.CollateralType),
		stringCell(row.SubjectRole),
		decimalCell(row.CollateralValue),
		intCell(row.PeriodMonth),
		intCell(row.PeriodYear),
		stringCell(row.StartDate),
		stringCell(row.PlannedEndDate),
		stringCell(row.ActualEndDate),
		intCell(row.DealStatus),
		decimalCell(row.CurrentLimit),
		decimalCell(row.PlannedPayment),
		decimalCell(row.CurrentDebt),
		decimalCell(row.OverdueDebt),
		intCell(row.DaysOverdue),
		intCell(row.PaymentMade),
		intCell(row.ArrearsPresent),
		stringCell(row.CalculationDate),
	}
}

func decimalCell(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.InexactFloat64()
}

func intCell(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func stringCell(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

func styleHeaderRow(f *excelize.File, sheet string, styleID, columns int) error {
	last, err := excelize.CoordinatesToCellName(columns, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, styleID)
}

func freezeTopRow(f *excelize.File, sheet string) error {
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
		Selection:   []excelize.Selection{{SQRef: "A2", ActiveCell: "A2", Pane: "bottomLeft"}},
	})
}
