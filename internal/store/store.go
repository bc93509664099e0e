// Package store persists the master dataset, reads daily batch files, and
// keeps an optional ledger of job runs.
package store

import (
	"context"

	"stockpub/internal/domain"
)

// FrameStore reads and replaces a whole tabular dataset at a path.
type FrameStore interface {
	// ReadFrame loads every row stored at path. A missing file yields an
	// error wrapping domain.ErrMissingInput.
	ReadFrame(ctx context.Context, path string) (*domain.Frame, error)

	// WriteFrame replaces the dataset at path. Readers observe either the
	// previous file or the complete new one.
	WriteFrame(ctx context.Context, path string, frame *domain.Frame) error
}

// RunRecorder records the outcome of a job run.
type RunRecorder interface {
	RecordRun(ctx context.Context, run Run) error
}
