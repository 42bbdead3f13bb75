package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"riskcli/internal/config"
	"riskcli/internal/exporter"
	"riskcli/internal/infrastructure"
	"riskcli/internal/validation"
	"riskcli/pkg/contracts"
)

func main() {
	os.Exit(run())
}

func run() int {
	dataDir := flag.String("data", "", "source document directory (default: probe the configured candidates)")
	outDir := flag.String("out", "", "output directory holding the exported artifacts")
	configFile := flag.String("config", "", "path to a YAML configuration file")
	quick := flag.Bool("quick", false, "run only the quick artifact sanity checks")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetVersionString())
		return 0
	}

	_ = godotenv.Load()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}
	applyFlags(cfg, *dataDir, *outDir, *logLevel)

	logger := infrastructure.MustInitializeLogger(cfg.Logging)
	defer infrastructure.CloseLogFile()

	providers, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg.Telemetry), logger)
	if err != nil {
		logger.Error("failed to initialize telemetry", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		logger.Warn("failed to create pipeline metrics, continuing without",
			slog.String("error", err.Error()))
		metrics = nil
	}

	ctx := infrastructure.ContextWithRunID(context.Background())

	engine := validation.NewEngine(cfg, logger, metrics)

	// Quick checks gate the full engine: there is no point replaying the
	// pipeline when the artifacts are absent or obviously broken.
	if err := engine.QuickValidate(ctx); err != nil {
		fmt.Printf("quick validation failed: %v\n", err)
		return 1
	}
	fmt.Println("quick validation passed")
	if *quick {
		return 0
	}

	resolvedDataDir, err := cfg.ResolveDataDir()
	if err != nil {
		logger.Error("no usable source directory", slog.String("error", err.Error()))
		return 1
	}
	if err := cfg.EnsureOutputDir(); err != nil {
		logger.Error("failed to prepare output directory", slog.String("error", err.Error()))
		return 1
	}

	report := engine.Run(ctx, resolvedDataDir)

	writer := exporter.NewJSONReportWriter(logger)
	if err := writer.WriteReport(ctx, report, cfg.ValidationReportPath()); err != nil {
		logger.Error("failed to write validation report", slog.String("error", err.Error()))
		return 1
	}

	fmt.Print(report.Summary())
	fmt.Printf("Validation report: %s\n", cfg.ValidationReportPath())
	if !report.Passed() {
		return 1
	}
	return 0
}

// loadConfig loads the configuration, requiring the named file when one was
// given explicitly.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// applyFlags overlays explicit command-line values onto the configuration,
// the last step of the precedence chain.
func applyFlags(cfg *config.Config, dataDir, outDir, logLevel string) {
	if dataDir != "" {
		cfg.Paths.DataDir = dataDir
	}
	if outDir != "" {
		cfg.Paths.OutputDir = outDir
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}
