package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskcli/internal/config"
)

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name      string
		dataDir   string
		outDir    string
		logLevel  string
		wantData  string
		wantOut   string
		wantLevel string
	}{
		{
			name:      "empty flags keep configuration",
			wantData:  "",
			wantOut:   config.DefaultOutputDir,
			wantLevel: config.DefaultLogLevel,
		},
		{
			name:      "data flag overrides only the source directory",
			dataDir:   "/srv/bureau/data",
			wantData:  "/srv/bureau/data",
			wantOut:   config.DefaultOutputDir,
			wantLevel: config.DefaultLogLevel,
		},
		{
			name:      "all flags override",
			dataDir:   "input",
			outDir:    "artifacts",
			logLevel:  "debug",
			wantData:  "input",
			wantOut:   "artifacts",
			wantLevel: "debug",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			applyFlags(cfg, tt.dataDir, tt.outDir, tt.logLevel)

			assert.Equal(t, tt.wantData, cfg.Paths.DataDir)
			assert.Equal(t, tt.wantOut, cfg.Paths.OutputDir)
			assert.Equal(t, tt.wantLevel, cfg.Logging.Level)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("empty path falls back to defaults", func(t *testing.T) {
		cfg, err := loadConfig("")
		require.NoError(t, err)
		assert.Equal(t, config.DefaultOutputDir, cfg.Paths.OutputDir)
		assert.Equal(t, config.DefaultLogLevel, cfg.Logging.Level)
	})

	t.Run("explicit file is loaded", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "riskcli.yaml")
		content := "paths:\n  output_dir: " + filepath.Join(tmpDir, "out") + "\nlogging:\n  level: debug\n"
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

		cfg, err := loadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tmpDir, "out"), cfg.Paths.OutputDir)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("explicit missing file is an error", func(t *testing.T) {
		_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config file")
	})
}
