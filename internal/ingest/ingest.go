// Package ingest folds a daily batch file into the durable master dataset.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"stockpub/internal/domain"
	"stockpub/internal/job"
	"stockpub/internal/store"
)

var _ job.Job = (*Ingestor)(nil)

// Ingestor merges the daily batch at CSVPath into the master dataset at
// ParquetPath, keeping at most one row per (SYMBOL, DATE).
type Ingestor struct {
	CSVPath     string
	ParquetPath string
	Store       store.FrameStore
	Log         *slog.Logger
}

// Result describes a completed ingest.
type Result struct {
	BatchRows  int
	MasterRows int
	MergedRows int
	// Skipped is set when there was no daily batch to consume.
	Skipped bool
}

// New creates an Ingestor. A nil logger discards progress output.
func New(csvPath, parquetPath string, fs store.FrameStore, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Ingestor{
		CSVPath:     csvPath,
		ParquetPath: parquetPath,
		Store:       fs,
		Log:         log,
	}
}

// Name returns the job identifier.
func (in *Ingestor) Name() string { return "ingest" }

// Run performs Ingest and reports it as a job summary.
func (in *Ingestor) Run(ctx context.Context) (job.Summary, error) {
	res, err := in.Ingest(ctx)
	sum := job.Summary{RowsIn: res.BatchRows, RowsOut: res.MergedRows, Skipped: res.Skipped}
	switch {
	case res.Skipped:
		sum.Detail = "no daily batch"
	case err == nil:
		sum.Detail = fmt.Sprintf("master %d -> %d rows", res.MasterRows, res.MergedRows)
	}
	return sum, err
}

// Ingest loads the batch and the master dataset, merges them, saves the
// master, and only then deletes the batch. A missing batch is a no-op. Any
// failure before the save leaves both files untouched; a failed save leaves
// the batch in place for the next run.
func (in *Ingestor) Ingest(ctx context.Context) (Result, error) {
	in.Log.Info("starting daily data update", "batch", in.CSVPath, "master", in.ParquetPath)

	batch, err := store.ReadCSV(in.CSVPath)
	if errors.Is(err, domain.ErrMissingInput) {
		in.Log.Info("daily batch not found, no update to perform", "path", in.CSVPath)
		return Result{Skipped: true}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("loading daily batch: %w", err)
	}
	if missing := batch.MissingColumns(domain.ColumnSymbol, domain.ColumnDate); len(missing) > 0 {
		return Result{}, &domain.SchemaError{Path: in.CSVPath, Missing: missing}
	}
	in.Log.Info("loaded daily batch", "rows", batch.Len())

	master, err := in.loadMaster(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{BatchRows: batch.Len(), MasterRows: master.Len()}
	merged := Merge(master, batch)
	res.MergedRows = merged.Len()
	in.Log.Info("removed duplicates",
		"rows", merged.Len(),
		"dropped", res.MasterRows+res.BatchRows-res.MergedRows)

	if err := in.Store.WriteFrame(ctx, in.ParquetPath, merged); err != nil {
		return res, fmt.Errorf("saving master dataset, daily batch kept: %w", err)
	}
	in.Log.Info("saved master dataset", "path", in.ParquetPath, "rows", merged.Len())

	if err := os.Remove(in.CSVPath); err != nil {
		return res, &domain.IOError{Op: "remove", Path: in.CSVPath, Err: err}
	}
	in.Log.Info("removed daily batch", "path", in.CSVPath)

	return res, nil
}

// loadMaster returns the current master dataset, or an empty frame when the
// file does not exist yet.
func (in *Ingestor) loadMaster(ctx context.Context) (*domain.Frame, error) {
	master, err := in.Store.ReadFrame(ctx, in.ParquetPath)
	if errors.Is(err, domain.ErrMissingInput) {
		in.Log.Info("master dataset not found, a new one will be created", "path", in.ParquetPath)
		return &domain.Frame{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading master dataset: %w", err)
	}
	if len(master.Columns) == 0 {
		return master, nil
	}

	if missing := master.MissingColumns(domain.ColumnSymbol, domain.ColumnDate); len(missing) > 0 {
		return nil, &domain.SchemaError{Path: in.ParquetPath, Missing: missing}
	}
	// A master written elsewhere may hold DATE as text; keys must compare as
	// instants on both sides.
	if err := master.NormalizeDates(); err != nil {
		return nil, &domain.SchemaError{Path: in.ParquetPath, Reason: err.Error()}
	}
	in.Log.Info("loaded master dataset", "rows", master.Len())
	return master, nil
}

// Merge appends batch to master and drops duplicate (SYMBOL, DATE) keys,
// keeping the last occurrence. Batch rows therefore replace master rows,
// and later batch rows replace earlier ones.
func Merge(master, batch *domain.Frame) *domain.Frame {
	merged := domain.Concat(master, batch)
	merged.DropDuplicates(domain.ColumnSymbol, domain.ColumnDate)
	return merged
}
