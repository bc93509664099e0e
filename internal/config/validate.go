package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Validate checks that the configuration is usable by both jobs.
func (c *Config) Validate() error {
	var errs []error

	if c.Ingest.CSVFilePath == "" {
		errs = append(errs, errors.New("ingest.csv_file_path is required"))
	}
	if c.Ingest.ParquetFilePath == "" {
		errs = append(errs, errors.New("ingest.parquet_file_path is required"))
	}
	if c.Ingest.CSVFilePath != "" && filepath.Clean(c.Ingest.CSVFilePath) == filepath.Clean(c.Ingest.ParquetFilePath) {
		errs = append(errs, errors.New("ingest.csv_file_path and ingest.parquet_file_path must differ"))
	}
	if c.Publish.FilePath == "" {
		errs = append(errs, errors.New("publish.file_path is required"))
	}
	if c.Publish.OutputDir == "" {
		errs = append(errs, errors.New("publish.output_dir is required"))
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
