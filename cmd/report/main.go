package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"riskcli/internal/analysis"
	"riskcli/internal/config"
	"riskcli/internal/infrastructure"
	"riskcli/pkg/contracts"
)

func main() {
	os.Exit(run())
}

func run() int {
	outDir := flag.String("out", "", "output directory holding the exported artifacts")
	configFile := flag.String("config", "", "path to a YAML configuration file")
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
	applyFlags(cfg, *outDir, *logLevel)

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

	ctx := infrastructure.ContextWithRunID(context.Background())

	if err := cfg.EnsureOutputDir(); err != nil {
		logger.Error("failed to prepare output directory", slog.String("error", err.Error()))
		return 1
	}

	analyzer := analysis.NewAnalyzer(cfg, logger)
	report, err := analyzer.Run(ctx)
	if err != nil {
		logger.Error("analysis failed", slog.String("error", err.Error()))
		return 1
	}

	fmt.Print(report.KeyFindings())
	fmt.Printf("Analysis report: %s\n", cfg.AnalysisReportPath())
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
func applyFlags(cfg *config.Config, outDir, logLevel string) {
	if outDir != "" {
		cfg.Paths.OutputDir = outDir
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}
