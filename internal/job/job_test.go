package job

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stockpub/internal/store"
)

type fakeJob struct {
	sum Summary
	err error
}

func (f *fakeJob) Name() string { return "fake" }

func (f *fakeJob) Run(context.Context) (Summary, error) { return f.sum, f.err }

type memRecorder struct {
	runs []store.Run
	err  error
}

func (m *memRecorder) RecordRun(_ context.Context, run store.Run) error {
	m.runs = append(m.runs, run)
	return m.err
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestExecuteRecordsStatus(t *testing.T) {
	cases := []struct {
		name string
		job  *fakeJob
		want store.RunStatus
	}{
		{"ok", &fakeJob{sum: Summary{RowsIn: 2, RowsOut: 5}}, store.RunOK},
		{"skipped", &fakeJob{sum: Summary{Skipped: true, Detail: "no batch"}}, store.RunSkipped},
		{"failed", &fakeJob{err: errors.New("disk full")}, store.RunFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &memRecorder{}
			r := &Runner{Recorder: rec, now: fixedClock()}

			sum, err := r.Execute(context.Background(), tc.job)
			if err != tc.job.err {
				t.Fatalf("Execute error = %v, want %v", err, tc.job.err)
			}
			if sum != tc.job.sum {
				t.Errorf("Execute summary = %+v, want %+v", sum, tc.job.sum)
			}
			if len(rec.runs) != 1 {
				t.Fatalf("recorded %d runs, want 1", len(rec.runs))
			}
			run := rec.runs[0]
			if run.Job != "fake" || run.Status != tc.want {
				t.Errorf("run = %+v, want job fake status %s", run, tc.want)
			}
			if !run.FinishedAt.After(run.StartedAt) {
				t.Errorf("FinishedAt %v should follow StartedAt %v", run.FinishedAt, run.StartedAt)
			}
			if tc.job.err != nil && run.Detail != tc.job.err.Error() {
				t.Errorf("run.Detail = %q, want the error text", run.Detail)
			}
		})
	}
}

func TestExecuteIgnoresRecorderFailure(t *testing.T) {
	var buf bytes.Buffer
	r := &Runner{
		Recorder: &memRecorder{err: errors.New("database is locked")},
		Log:      slog.New(slog.NewTextHandler(&buf, nil)),
	}

	if _, err := r.Execute(context.Background(), &fakeJob{}); err != nil {
		t.Fatalf("Execute should not fail when recording fails: %v", err)
	}
	if !strings.Contains(buf.String(), "database is locked") {
		t.Errorf("recorder failure should be logged, got %q", buf.String())
	}
}

func TestNewRunnerWithLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	r, err := NewRunner(path, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	defer r.Close()

	if _, err := r.Execute(context.Background(), &fakeJob{sum: Summary{RowsOut: 1}}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	ledger := r.Recorder.(*store.RunLedger)
	runs, err := ledger.RecentRuns(context.Background(), "fake", 5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != store.RunOK || runs[0].RowsOut != 1 {
		t.Errorf("ledger runs = %+v", runs)
	}
}

func TestNewRunnerWithoutLedger(t *testing.T) {
	r, err := NewRunner("", nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if r.Recorder != nil {
		t.Error("Recorder should be nil when no ledger path is set")
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestExecuteRetriesBusyLedger(t *testing.T) {
	rec := &flakyRecorder{failures: 2}
	r := &Runner{Recorder: rec}

	if _, err := r.Execute(context.Background(), &fakeJob{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rec.calls != 3 || len(rec.runs) != 1 {
		t.Errorf("calls = %d, stored = %d, want 3 calls and 1 stored run", rec.calls, len(rec.runs))
	}
}

type flakyRecorder struct {
	failures int
	calls    int
	runs     []store.Run
}

func (f *flakyRecorder) RecordRun(_ context.Context, run store.Run) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("recording fake run: database is locked (5) (SQLITE_BUSY)")
	}
	f.runs = append(f.runs, run)
	return nil
}
