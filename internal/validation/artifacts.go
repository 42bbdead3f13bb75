package validation

import (
	"encoding/csv"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "riskcli/internal/errors"
)

// DetailedRow is the validator's read-back view of one detailed export line.
// Cells are re-normalized with the same sentinel rules the extractor applies,
// so artifacts edited by hand or written by other tools validate identically.
type DetailedRow struct {
	ClientID          string
	DealID            string
	TransactionAmount *decimal.Decimal
	StartDate         *string
	PlannedEndDate    *string
	ActualEndDate     *string
	CurrentDebt       *decimal.Decimal
	OverdueDebt       *decimal.Decimal
	DaysOverdue       *int
	PeriodMonth       *int
	PeriodYear        *int
}

// DetailedArtifact is the parsed detailed export.
type DetailedArtifact struct {
	Columns []string
	Rows    []DetailedRow
}

// MetricsRow is the validator's read-back view of one metrics export line.
type MetricsRow struct {
	ClientID            string
	TotalLoansCount     int
	ClosedLoansCount    int
	ClosedLoansRatio    decimal.Decimal
	Expired30PlusAmount decimal.Decimal
}

// ArtifactReader reads exported artifacts back for validation.
type ArtifactReader struct {
	logger *slog.Logger
}

// NewArtifactReader creates an artifact reader.
func NewArtifactReader(logger *slog.Logger) *ArtifactReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactReader{logger: logger}
}

// ReadDetailedCSV reads the detailed export from path.
func (r *ArtifactReader) ReadDetailedCSV(path string) (*DetailedArtifact, error) {
	header, records, err := r.readCSV(path)
	if err != nil {
		return nil, err
	}

	index := columnIndex(header)
	artifact := &DetailedArtifact{
		Columns: header,
		Rows:    make([]DetailedRow, 0, len(records)),
	}
	for _, record := range records {
		artifact.Rows = append(artifact.Rows, DetailedRow{
			ClientID:          cellText(record, index, "client_id"),
			DealID:            cellText(record, index, "deal_id"),
			TransactionAmount: cellDecimal(record, index, "transaction_amount"),
			StartDate:         cellString(record, index, "start_date"),
			PlannedEndDate:    cellString(record, index, "planned_end_date"),
			ActualEndDate:     cellString(record, index, "actual_end_date"),
			CurrentDebt:       cellDecimal(record, index, "current_debt"),
			OverdueDebt:       cellDecimal(record, index, "overdue_debt"),
			DaysOverdue:       cellInt(record, index, "days_overdue"),
			PeriodMonth:       cellInt(record, index, "period_month"),
			PeriodYear:        cellInt(record, index, "period_year"),
		})
	}

	r.logger.Debug("detailed artifact read",
		slog.String("path", path),
		slog.Int("rows", len(artifact.Rows)))
	return artifact, nil
}

// ReadMetricsCSV reads the metrics export from path.
func (r *ArtifactReader) ReadMetricsCSV(path string) ([]MetricsRow, error) {
	header, records, err := r.readCSV(path)
	if err != nil {
		return nil, err
	}

	index := columnIndex(header)
	rows := make([]MetricsRow, 0, len(records))
	for _, record := range records {
		row := MetricsRow{
			ClientID: cellText(record, index, "client_id"),
		}
		if n := cellInt(record, index, "total_loans_count"); n != nil {
			row.TotalLoansCount = *n
		}
		if n := cellInt(record, index, "closed_loans_count"); n != nil {
			row.ClosedLoansCount = *n
		}
		if d := cellDecimal(record, index, "closed_loans_ratio"); d != nil {
			row.ClosedLoansRatio = *d
		}
		if d := cellDecimal(record, index, "expired_30_plus_amount"); d != nil {
			row.Expired30PlusAmount = *d
		}
		rows = append(rows, row)
	}

	r.logger.Debug("metrics artifact read",
		slog.String("path", path),
		slog.Int("rows", len(rows)))
	return rows, nil
}

// readCSV reads a CSV artifact and splits the header from the records. A UTF-8
// BOM on the first header cell is stripped.
func (r *ArtifactReader) readCSV(path string) ([]string, [][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, apperrors.NewNotFoundError("artifact").WithContext("path", path)
		}
		return nil, nil, apperrors.NewStorageError("failed to open artifact", err).
			WithContext("path", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, apperrors.NewParsingError("failed to parse artifact", err).
			WithContext("path", path)
	}
	if len(all) == 0 {
		return nil, nil, apperrors.NewParsingError("artifact has no header row", nil).
			WithContext("path", path)
	}

	header := all[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	return header, all[1:], nil
}

// columnIndex maps column names to positions.
func columnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	return index
}

// isNullCell reports whether a cell carries no value. Empty, whitespace-only
// and "nan" (any case) cells are null, matching the extractor's sentinel
// normalization.
func isNullCell(s string) bool {
	trimmed := strings.TrimSpace(s)
	return trimmed == "" || strings.EqualFold(trimmed, "nan")
}

// cellText returns the raw cell text, empty when the column is absent.
func cellText(record []string, index map[string]int, column string) string {
	i, ok := index[column]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

// cellString returns the cell value, nil for null cells.
func cellString(record []string, index map[string]int, column string) *string {
	value := cellText(record, index, column)
	if isNullCell(value) {
		return nil
	}
	return &value
}

// cellInt parses an integer cell, nil for null or non-integral values.
// Integral decimal texts such as "45.0" are accepted.
func cellInt(record []string, index map[string]int, column string) *int {
	value := cellText(record, index, column)
	if isNullCell(value) {
		return nil
	}
	trimmed := strings.TrimSpace(value)
	if n, err := strconv.Atoi(trimmed); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || f != float64(int64(f)) {
		return nil
	}
	n := int(f)
	return &n
}

// cellDecimal parses a decimal cell, nil for null or unparsable values.
func cellDecimal(record []string, index map[string]int, column string) *decimal.Decimal {
	value := cellText(record, index, column)
	if isNullCell(value) {
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil
	}
	return &d
}
