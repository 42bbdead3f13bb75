package config

// Application constants for the credit risk pipeline
const (
	// Application Info
	AppName = "Credit Risk Pipeline"

	// Artifact Filenames
	DefaultDetailedCSV      = "detailed_credit_data.csv"
	DefaultMetricsCSV       = "client_metrics_results.csv"
	DefaultValidationReport = "validation_report.json"
	DefaultAnalysisReport   = "analysis_report.json"
	DefaultExcelWorkbook    = "portfolio_report.xlsx"

	// Directories
	DefaultOutputDir = "."
	DefaultLogsDir   = "logs"

	// Source Documents
	SourceExtension = ".xml"

	// Log Settings
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultLogOutput   = "stdout"
	DefaultLogFilePath = "logs/riskcli.log"

	// Config File Locations
	ConfigFileName = "riskcli.yaml"
)

// DefaultDataCandidates are the source directory names probed, in order, when
// no explicit data directory is configured.
var DefaultDataCandidates = []string{"Data", "sample_data"}
