package config

// Default values for optional configuration fields.
const (
	DefaultCSVFilePath     = "daily_upload/daily_stock_data.csv"
	DefaultParquetFilePath = "master_data.parquet"
	DefaultOutputDir       = "public/data"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

func (c *Config) applyDefaults() {
	if c.Ingest.CSVFilePath == "" {
		c.Ingest.CSVFilePath = DefaultCSVFilePath
	}
	if c.Ingest.ParquetFilePath == "" {
		c.Ingest.ParquetFilePath = DefaultParquetFilePath
	}

	// The publisher reads what the ingestor writes unless told otherwise.
	if c.Publish.FilePath == "" {
		c.Publish.FilePath = c.Ingest.ParquetFilePath
	}
	if c.Publish.OutputDir == "" {
		c.Publish.OutputDir = DefaultOutputDir
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}
