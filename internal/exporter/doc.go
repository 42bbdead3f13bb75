// Package exporter writes the pipeline's output artifacts.
//
// This package contains four main components:
//
// CSVWriter: Core CSV writing functionality with support for headers,
// streaming, and an optional UTF-8 BOM for spreadsheet compatibility.
//
// DetailedExporter and MetricsExporter: Write the detailed credit rows and
// per-client metrics CSV artifacts with the fixed column orders declared in
// the domain contracts.
//
// JSONReportWriter: Writes the validation and analysis report artifacts as
// indented JSON with a shared metadata block.
//
// WorkbookExporter: Writes the portfolio Excel workbook with metrics,
// detailed and summary sheets.
//
// Example usage:
//
//	detailed := exporter.NewDetailedExporter(logger, false)
//	err := detailed.ExportRows(ctx, rows, cfg.DetailedCSVPath())
//
//	metrics := exporter.NewMetricsExporter(logger, false)
//	err = metrics.ExportMetrics(ctx, clientMetrics, cfg.MetricsCSVPath())
package exporter
