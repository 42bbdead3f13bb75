package exporter

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	apperrors "riskcli/internal/errors"
	"riskcli/pkg/contracts"
)

// ReportMeta is the metadata block attached to every JSON report artifact.
type ReportMeta struct {
	GeneratedAt string `json:"generated_at"`
	RunID       string `json:"run_id"`
	ToolVersion string `json:"tool_version"`
	Format      string `json:"format"`
}

// NewReportMeta builds report metadata for the given run and format label.
func NewReportMeta(runID, format string) ReportMeta {
	return ReportMeta{
		GeneratedAt: time.Now().Format(time.RFC3339),
		RunID:       runID,
		ToolVersion: contracts.Version,
		Format:      format,
	}
}

// JSONReportWriter writes report artifacts as indented JSON. Reports are typed
// structs so the key order is stable across runs.
type JSONReportWriter struct {
	logger *slog.Logger
}

// NewJSONReportWriter creates a JSON report writer.
func NewJSONReportWriter(logger *slog.Logger) *JSONReportWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONReportWriter{logger: logger}
}

// WriteReport writes report to outputPath with two-space indentation.
func (w *JSONReportWriter) WriteReport(ctx context.Context, report any, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return apperrors.NewStorageError("failed to create directory for JSON report", err).
			WithContext("path", outputPath)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return apperrors.NewStorageError("failed to create JSON report file", err).
			WithContext("path", outputPath)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(report); err != nil {
		return apperrors.NewStorageError("failed to encode JSON report", err).
			WithContext("path", outputPath)
	}

	w.logger.InfoContext(ctx, "JSON report written",
		slog.String("path", outputPath))
	return nil
}
