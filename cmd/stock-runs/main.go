// Print the most recent ingest/publish runs from the run ledger.
//
// Usage:
//
//	go run cmd/stock-runs/main.go [-job ingest] [-n 20]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"stockpub/internal/config"
	"stockpub/internal/store"
)

func main() {
	jobName := flag.String("job", "", "only show runs of this job (ingest, publish)")
	n := flag.Int("n", 20, "number of runs to show")
	flag.Parse()

	cfgPath := "config/stockpub.yaml"
	if p := os.Getenv("STOCKPUB_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Storage.LedgerPath == "" {
		log.Fatalf("storage.ledger_path is not set; no runs are recorded")
	}

	ledger, err := store.OpenRunLedger(cfg.Storage.LedgerPath)
	if err != nil {
		log.Fatalf("error: %v", err)
	}
	defer ledger.Close()

	runs, err := ledger.RecentRuns(context.Background(), *jobName, *n)
	if err != nil {
		log.Fatalf("error: %v", err)
	}

	fmt.Printf("%-20s  %-8s  %-8s  %8s  %8s  %9s  %s\n", "STARTED", "JOB", "STATUS", "IN", "OUT", "TOOK", "DETAIL")
	for _, r := range runs {
		fmt.Printf("%-20s  %-8s  %-8s  %8d  %8d  %9s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Job, r.Status, r.RowsIn, r.RowsOut,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond), r.Detail)
	}
}
