// Daily job: merge the daily batch CSV into the master Parquet dataset,
// dropping duplicate (SYMBOL, DATE) rows, then delete the batch.
//
// Usage:
//
//	go run cmd/stock-ingest/main.go
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"stockpub/internal/config"
	"stockpub/internal/ingest"
	"stockpub/internal/job"
	"stockpub/internal/store"
	"stockpub/internal/util"
)

func main() {
	cfgPath := "config/stockpub.yaml"
	if p := os.Getenv("STOCKPUB_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	runner, err := job.NewRunner(cfg.Storage.LedgerPath, logger)
	if err != nil {
		log.Fatalf("error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ingestor := ingest.New(cfg.Ingest.CSVFilePath, cfg.Ingest.ParquetFilePath, store.NewParquetStore(), logger)
	sum, err := runner.Execute(ctx, ingestor)
	runner.Close()
	if err != nil {
		log.Fatalf("ingest failed: %v", err)
	}

	if sum.Skipped {
		slog.Info("no daily batch, master dataset unchanged")
	} else {
		slog.Info("daily data update complete", "batch_rows", sum.RowsIn, "master_rows", sum.RowsOut)
	}
}
