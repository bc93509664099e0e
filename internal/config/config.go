package config

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the ingest and publish jobs.
type Config struct {
	Ingest  Ingest  `yaml:"ingest"`
	Publish Publish `yaml:"publish"`
	Storage Storage `yaml:"storage"`
	Logging Logging `yaml:"logging"`
}

// Ingest locates the daily batch and the master dataset it is merged into.
type Ingest struct {
	CSVFilePath     string `yaml:"csv_file_path"`
	ParquetFilePath string `yaml:"parquet_file_path"`
}

// Publish locates the master dataset and the directory documents go to.
type Publish struct {
	FilePath  string `yaml:"file_path"`
	OutputDir string `yaml:"output_dir"`
}

// Storage holds paths for auxiliary persistence.
type Storage struct {
	// LedgerPath is the SQLite run ledger. Empty disables it.
	LedgerPath string `yaml:"ledger_path"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides and defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return finish(cfg)
}

// LoadOrDefault behaves like Load, except that a missing file yields the
// defaults (with environment overrides) instead of an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return finish(&Config{})
	}
	return cfg, err
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STOCKPUB_CSV_FILE_PATH"); v != "" {
		cfg.Ingest.CSVFilePath = v
	}

	if v := os.Getenv("STOCKPUB_PARQUET_FILE_PATH"); v != "" {
		cfg.Ingest.ParquetFilePath = v
	}

	if v := os.Getenv("STOCKPUB_FILE_PATH"); v != "" {
		cfg.Publish.FilePath = v
	}

	if v := os.Getenv("STOCKPUB_OUTPUT_DIR"); v != "" {
		cfg.Publish.OutputDir = v
	}

	if v := os.Getenv("STOCKPUB_LEDGER_PATH"); v != "" {
		cfg.Storage.LedgerPath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
