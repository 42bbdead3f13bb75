// Package config provides centralized configuration management for the credit
// risk pipeline. It handles loading configuration from multiple sources,
// validation, and resolves every ambient filesystem decision before the
// processing core runs.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (riskcli.yaml)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern RISK_* for namespacing:
//
//	RISK_PATHS_DATA_DIR=Data
//	RISK_PATHS_OUTPUT_DIR=exports
//	RISK_LOGGING_LEVEL=info
//	RISK_EXPORT_EXCEL_ENABLED=true
//	RISK_TELEMETRY_ENABLED=true
//
// # Data Directory Resolution
//
// The source document directory is resolved exactly once via
// Config.ResolveDataDir: an explicit setting is used verbatim, otherwise the
// candidate names (Data, sample_data) are probed in order. The processing
// core receives the resolved path and never probes the filesystem itself.
//
// # Validation
//
// All configuration is validated at load time with struct tags
// (go-playground/validator): required fields, enumerated log levels and
// output modes, non-empty artifact names.
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
