package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunRecorder = (*RunLedger)(nil)

// RunStatus is the outcome of a job run.
type RunStatus string

const (
	RunOK      RunStatus = "ok"
	RunSkipped RunStatus = "skipped"
	RunFailed  RunStatus = "failed"
)

// Run is one row of the run ledger.
type Run struct {
	ID         string
	Job        string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     RunStatus
	RowsIn     int
	RowsOut    int
	Detail     string
}

// RunLedger records job runs in a SQLite database.
type RunLedger struct {
	db *sql.DB
}

var ledgerSchema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		job         TEXT NOT NULL,
		started_at  INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		status      TEXT NOT NULL,
		rows_in     INTEGER NOT NULL,
		rows_out    INTEGER NOT NULL,
		detail      TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS runs_job_started ON runs (job, started_at)`,
}

// OpenRunLedger opens (or creates) the ledger database at dbPath.
func OpenRunLedger(dbPath string) (*RunLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	for _, stmt := range ledgerSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating ledger schema: %w", err)
		}
	}
	return &RunLedger{db: db}, nil
}

// Close closes the underlying database connection.
func (l *RunLedger) Close() error {
	return l.db.Close()
}

// RecordRun inserts a run. A run without an ID is given a random one.
func (l *RunLedger) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, job, started_at, finished_at, status, rows_in, rows_out, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Job, run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(),
		string(run.Status), run.RowsIn, run.RowsOut, run.Detail,
	)
	if err != nil {
		return fmt.Errorf("recording %s run: %w", run.Job, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first. An empty job matches
// every job.
func (l *RunLedger) RecentRuns(ctx context.Context, job string, limit int) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, job, started_at, finished_at, status, rows_in, rows_out, detail
		 FROM runs
		 WHERE ? = '' OR job = ?
		 ORDER BY started_at DESC, id
		 LIMIT ?`,
		job, job, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished int64
			status            string
		)
		if err := rows.Scan(&r.ID, &r.Job, &started, &finished, &status, &r.RowsIn, &r.RowsOut, &r.Detail); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started).UTC()
		r.FinishedAt = time.Unix(0, finished).UTC()
		r.Status = RunStatus(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// IsBusy reports whether err comes from another connection holding the
// ledger's write lock, which clears on its own.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
