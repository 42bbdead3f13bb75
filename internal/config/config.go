package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "riskcli/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Artifacts ArtifactsConfig `yaml:"artifacts" envconfig:"ARTIFACTS"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Export    ExportConfig    `yaml:"export" envconfig:"EXPORT"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// PathsConfig contains file system paths configuration.
// DataDir empty means the candidates are probed once at resolution time; the
// processing core itself never probes the filesystem.
type PathsConfig struct {
	DataDir        string   `yaml:"data_dir" envconfig:"DATA_DIR"`
	DataCandidates []string `yaml:"data_candidates" envconfig:"DATA_CANDIDATES"`
	OutputDir      string   `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	LogsDir        string   `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
}

// ArtifactsConfig names the exported artifact files, relative to OutputDir
type ArtifactsConfig struct {
	DetailedCSV      string `yaml:"detailed_csv" envconfig:"DETAILED_CSV" validate:"required"`
	MetricsCSV       string `yaml:"metrics_csv" envconfig:"METRICS_CSV" validate:"required"`
	ValidationReport string `yaml:"validation_report" envconfig:"VALIDATION_REPORT" validate:"required"`
	AnalysisReport   string `yaml:"analysis_report" envconfig:"ANALYSIS_REPORT" validate:"required"`
	ExcelWorkbook    string `yaml:"excel_workbook" envconfig:"EXCEL_WORKBOOK" validate:"required"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"required,oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"required,oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"required,oneof=stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required"`
}

// ExportConfig contains export tuning options
type ExportConfig struct {
	ExcelEnabled bool `yaml:"excel_enabled" envconfig:"EXCEL_ENABLED"`
	CSVBom       bool `yaml:"csv_bom" envconfig:"CSV_BOM"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED"`
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	PrettyPrint bool   `yaml:"pretty_print" envconfig:"PRETTY_PRINT"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			DataCandidates: append([]string(nil), DefaultDataCandidates...),
			OutputDir:      DefaultOutputDir,
			LogsDir:        DefaultLogsDir,
		},
		Artifacts: ArtifactsConfig{
			DetailedCSV:      DefaultDetailedCSV,
			MetricsCSV:       DefaultMetricsCSV,
			ValidationReport: DefaultValidationReport,
			AnalysisReport:   DefaultAnalysisReport,
			ExcelWorkbook:    DefaultExcelWorkbook,
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   DefaultLogOutput,
			FilePath: DefaultLogFilePath,
		},
		Export: ExportConfig{},
		Telemetry: TelemetryConfig{
			ServiceName: "riskcli",
		},
	}
}

// Load loads configuration in precedence order: defaults, then an optional
// YAML file from the standard locations, then RISK_* environment variables.
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFromFile loads configuration the same way Load does but requires the
// named YAML file to exist.
func LoadFromFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("config file %s", path), err)
	}
	return load(path)
}

func load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := applyFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Environment overrides file and defaults
	if err := envconfig.Process("RISK", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyFile overlays YAML values onto cfg; keys absent from the file leave
// the existing values untouched.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// findConfigFile returns the first config file present in the standard
// locations, or empty when none exists.
func findConfigFile() string {
	locations := []string{
		ConfigFileName,
		filepath.Join("configs", ConfigFileName),
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// validate validates the configuration
func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Paths.DataDir == "" && len(c.Paths.DataCandidates) == 0 {
		return apperrors.NewConfigError("no data directory and no candidates to probe", nil)
	}
	return nil
}

// ResolveDataDir resolves the source document directory exactly once. An
// explicitly configured directory is used verbatim but must exist; otherwise
// the candidates are probed in order and the first existing directory wins.
func (c *Config) ResolveDataDir() (string, error) {
	if c.Paths.DataDir != "" {
		if info, err := os.Stat(c.Paths.DataDir); err != nil || !info.IsDir() {
			return "", apperrors.NewConfigError(
				fmt.Sprintf("configured data directory %s does not exist", c.Paths.DataDir), nil)
		}
		return c.Paths.DataDir, nil
	}

	for _, candidate := range c.Paths.DataCandidates {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			c.Paths.DataDir = candidate
			return candidate, nil
		}
	}

	return "", apperrors.NewConfigError(
		fmt.Sprintf("no data directory found, probed %v", c.Paths.DataCandidates), nil)
}

// EnsureOutputDir creates the output directory when missing.
func (c *Config) EnsureOutputDir() error {
	if err := os.MkdirAll(c.Paths.OutputDir, 0o755); err != nil {
		return apperrors.NewStorageError(
			fmt.Sprintf("failed to create output directory %s", c.Paths.OutputDir), err)
	}
	return nil
}

// DetailedCSVPath returns the resolved detailed export path
func (c *Config) DetailedCSVPath() string {
	return filepath.Join(c.Paths.OutputDir, c.Artifacts.DetailedCSV)
}

// MetricsCSVPath returns the resolved metrics export path
func (c *Config) MetricsCSVPath() string {
	return filepath.Join(c.Paths.OutputDir, c.Artifacts.MetricsCSV)
}

// ValidationReportPath returns the resolved validation report path
func (c *Config) ValidationReportPath() string {
	return filepath.Join(c.Paths.OutputDir, c.Artifacts.ValidationReport)
}

// AnalysisReportPath returns the resolved analysis report path
func (c *Config) AnalysisReportPath() string {
	return filepath.Join(c.Paths.OutputDir, c.Artifacts.AnalysisReport)
}

// ExcelWorkbookPath returns the resolved Excel workbook path
func (c *Config) ExcelWorkbookPath() string {
	return filepath.Join(c.Paths.OutputDir, c.Artifacts.ExcelWorkbook)
}
