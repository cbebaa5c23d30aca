// Package state contains the persistence of sync runs: checkpoints, history and
// the resume state read back when a stopped run is resumed.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/urbanmap/tilesync/internal/status"
)

// ErrRunNotFound is returned when a run can't be found.
var ErrRunNotFound = errors.New("sync run not found")

// RunStore persists SyncRun records.
//
//go:generate mockgen -destination=mocks/mock_run_store.go -package=mocks -source=store.go RunStore
type RunStore interface {
	// SaveRun inserts the run or overwrites the record with the same ID.
	SaveRun(ctx context.Context, run *status.SyncRun) error
	// GetRun returns the run with the given ID or ErrRunNotFound.
	GetRun(ctx context.Context, id uuid.UUID) (*status.SyncRun, error)
	// LatestResumable returns the most recently started run of the dataset if
	// it is Stopped. Otherwise it returns ErrRunNotFound.
	LatestResumable(ctx context.Context, dataset string) (*status.SyncRun, error)
	// ListRuns returns a page of runs of the dataset, newest first.
	ListRuns(ctx context.Context, dataset string, limit, offset int) (*status.RunPage, error)
	// MarkInterrupted moves every Running run of the dataset to Stopped,
	// appending message to its error messages. It returns the number of runs changed.
	MarkInterrupted(ctx context.Context, dataset, message string, at time.Time) (int, error)
	// LastCompletedAt returns the completion time of the latest Completed run
	// of the dataset, or nil when there is none.
	LastCompletedAt(ctx context.Context, dataset string) (*time.Time, error)
}
