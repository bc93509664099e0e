// Package job runs the batch jobs and records how each run ended.
package job

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"stockpub/internal/store"
	"stockpub/internal/util"
)

// recordRetry covers short SQLite lock contention when two jobs finish
// together.
var recordRetry = util.Backoff{Attempts: 3, Base: 50 * time.Millisecond, Retryable: store.IsBusy}

// Job is the interface for all batch jobs.
type Job interface {
	// Name returns the job identifier used in logs and the run ledger.
	Name() string
	// Run performs the job once, to completion or failure.
	Run(ctx context.Context) (Summary, error)
}

// Summary is the job-independent outcome of a run.
type Summary struct {
	RowsIn  int
	RowsOut int
	// Skipped is set when a missing input made the run a no-op.
	Skipped bool
	Detail  string
}

// Runner executes jobs and, when a recorder is configured, writes one ledger
// row per run.
type Runner struct {
	Recorder store.RunRecorder
	Log      *slog.Logger

	closer io.Closer
	now    func() time.Time
}

// NewRunner creates a Runner. An empty ledgerPath disables the run ledger.
func NewRunner(ledgerPath string, log *slog.Logger) (*Runner, error) {
	r := &Runner{Log: log}
	if ledgerPath == "" {
		return r, nil
	}
	ledger, err := store.OpenRunLedger(ledgerPath)
	if err != nil {
		return nil, fmt.Errorf("opening run ledger: %w", err)
	}
	r.Recorder, r.closer = ledger, ledger
	return r, nil
}

// Close releases the run ledger, if one was opened by NewRunner.
func (r *Runner) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Execute runs j and records the outcome. Failing to record is logged and
// never changes the job's own result.
func (r *Runner) Execute(ctx context.Context, j Job) (Summary, error) {
	now := r.now
	if now == nil {
		now = time.Now
	}

	started := now()
	sum, err := j.Run(ctx)
	run := store.Run{
		Job:        j.Name(),
		StartedAt:  started,
		FinishedAt: now(),
		RowsIn:     sum.RowsIn,
		RowsOut:    sum.RowsOut,
		Detail:     sum.Detail,
	}
	switch {
	case err != nil:
		run.Status = store.RunFailed
		run.Detail = err.Error()
	case sum.Skipped:
		run.Status = store.RunSkipped
	default:
		run.Status = store.RunOK
	}

	if r.Recorder != nil {
		rerr := recordRetry.Do(ctx, func() error { return r.Recorder.RecordRun(ctx, run) })
		if rerr != nil && r.Log != nil {
			r.Log.Warn("recording run", "job", run.Job, "error", rerr)
		}
	}
	return sum, err
}
