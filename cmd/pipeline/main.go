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
	"riskcli/internal/dataprocessing"
	"riskcli/internal/infrastructure"
	"riskcli/pkg/contracts"
)

func main() {
	os.Exit(run())
}

func run() int {
	dataDir := flag.String("data", "", "source document directory (default: probe the configured candidates)")
	outDir := flag.String("out", "", "output directory for exported artifacts")
	configFile := flag.String("config", "", "path to a YAML configuration file")
	excel := flag.Bool("excel", false, "also export the Excel workbook")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetVersionString())
		return 0
	}

	// A .env file is optional; absence is not an error.
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

	resolvedDataDir, err := cfg.ResolveDataDir()
	if err != nil {
		logger.Error("no usable source directory", slog.String("error", err.Error()))
		return 1
	}
	if err := cfg.EnsureOutputDir(); err != nil {
		logger.Error("failed to prepare output directory", slog.String("error", err.Error()))
		return 1
	}

	pipeline := dataprocessing.NewPipeline(cfg, logger, metrics)
	summary, err := pipeline.Run(ctx, dataprocessing.RunOptions{
		DataDir:      resolvedDataDir,
		IncludeExcel: *excel || cfg.Export.ExcelEnabled,
	})
	if err != nil {
		logger.Error("pipeline failed", slog.String("error", err.Error()))
		return 1
	}

	fmt.Printf("Processed %d documents: %d clients, %d deals, %d periods (%d parse errors)\n",
		summary.Documents, summary.ProcessedClients, summary.Deals, summary.Periods, summary.ParseErrors)
	fmt.Printf("Detailed rows: %d (%d duplicates replaced, %d deals without history)\n",
		summary.Rows, summary.DuplicatesReplaced, summary.DealsWithoutHistory)
	fmt.Printf("Client metrics: %d\n", summary.MetricsClients)
	fmt.Printf("Detailed export: %s\n", summary.DetailedPath)
	fmt.Printf("Metrics export: %s\n", summary.MetricsPath)
	if summary.WorkbookPath != "" {
		fmt.Printf("Excel workbook: %s\n", summary.WorkbookPath)
	}
	fmt.Printf("Completed in %s\n", summary.Duration.Round(time.Millisecond))
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
