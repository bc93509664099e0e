// Daily job: regenerate index.json and one <SYMBOL>.json per symbol from the
// master Parquet dataset.
//
// Usage:
//
//	go run cmd/stock-publish/main.go
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"stockpub/internal/config"
	"stockpub/internal/job"
	"stockpub/internal/publish"
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

	publisher := publish.New(cfg.Publish.FilePath, cfg.Publish.OutputDir, store.NewParquetStore(), logger)
	sum, err := runner.Execute(ctx, publisher)
	runner.Close()
	if err != nil {
		log.Fatalf("publish failed: %v", err)
	}

	if sum.Skipped {
		slog.Info("no master data, nothing published")
	} else {
		slog.Info("publish complete", "rows", sum.RowsIn, "documents", sum.RowsOut)
	}
}
