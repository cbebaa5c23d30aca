package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urbanmap/tilesync/internal/db/sqlc"
	"github.com/urbanmap/tilesync/internal/status"
)

type dbRunStore struct {
	pool *pgxpool.Pool
}

// NewDBRunStore creates a new database-backed run store
func NewDBRunStore(pool *pgxpool.Pool) (RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}
	return &dbRunStore{pool: pool}, nil
}

func (d *dbRunStore) SaveRun(ctx context.Context, run *status.SyncRun) error {
	resumeState, err := json.Marshal(run.ResumeState)
	if err != nil {
		return fmt.Errorf("failed to encode resume state: %w", err)
	}

	var errorMessages *string
	if joined := status.JoinErrors(run.ErrorMessages); joined != "" {
		errorMessages = &joined
	}

	err = sqlc.New(d.pool).UpsertSyncRun(ctx, sqlc.UpsertSyncRunParams{
		ID:                 run.ID,
		Dataset:            run.Dataset,
		Status:             runStatusToDB(run.Status),
		StartedAt:          run.StartedAt,
		CompletedAt:        run.CompletedAt,
		TotalTiles:         toInt32(run.TotalTiles),
		CompletedTileCount: toInt32(run.CompletedTileCount),
		ErrorTileCount:     toInt32(run.ErrorTileCount),
		CreatedCount:       toInt32(run.CreatedCount),
		UpdatedCount:       toInt32(run.UpdatedCount),
		ErrorMessages:      errorMessages,
		ResumeState:        resumeState,
		ResumedFrom:        run.ResumedFrom,
	})
	if err != nil {
		return fmt.Errorf("failed to save sync run %s: %w", run.ID, err)
	}
	return nil
}

func (d *dbRunStore) GetRun(ctx context.Context, id uuid.UUID) (*status.SyncRun, error) {
	row, err := sqlc.New(d.pool).GetSyncRun(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return dbRunToStatus(row)
}

func (d *dbRunStore) LatestResumable(ctx context.Context, dataset string) (*status.SyncRun, error) {
	row, err := sqlc.New(d.pool).GetLatestSyncRun(ctx, dataset)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	if row.Status != sqlc.SyncRunStatusSTOPPED {
		return nil, ErrRunNotFound
	}
	return dbRunToStatus(row)
}

func (d *dbRunStore) ListRuns(ctx context.Context, dataset string, limit, offset int) (*status.RunPage, error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	queries := sqlc.New(d.pool).WithTx(tx)

	total, err := queries.CountSyncRuns(ctx, dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to count sync runs: %w", err)
	}
	rows, err := queries.ListSyncRuns(ctx, sqlc.ListSyncRunsParams{
		Dataset:    dataset,
		PageLimit:  toInt32(limit),
		PageOffset: toInt32(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}

	page := &status.RunPage{
		Runs:   make([]*status.SyncRunStatus, 0, len(rows)),
		Total:  int(total),
		Limit:  limit,
		Offset: offset,
	}
	for _, row := range rows {
		run, err := dbRunToStatus(row)
		if err != nil {
			return nil, err
		}
		page.Runs = append(page.Runs, run.Snapshot())
	}
	return page, nil
}

func (d *dbRunStore) MarkInterrupted(ctx context.Context, dataset, message string, at time.Time) (int, error) {
	n, err := sqlc.New(d.pool).StopRunningSyncRuns(ctx, sqlc.StopRunningSyncRunsParams{
		CompletedAt: &at,
		Message:     message,
		Dataset:     dataset,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to mark running sync runs as stopped: %w", err)
	}
	return int(n), nil
}

func (d *dbRunStore) LastCompletedAt(ctx context.Context, dataset string) (*time.Time, error) {
	completedAt, err := sqlc.New(d.pool).GetLastCompletedAt(ctx, dataset)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return completedAt, nil
}

// dbRunToStatus converts a database SyncRun to a status.SyncRun
func dbRunToStatus(row sqlc.SyncRun) (*status.SyncRun, error) {
	run := &status.SyncRun{
		ID:                 row.ID,
		Dataset:            row.Dataset,
		Status:             dbStatusToRunStatus(row.Status),
		StartedAt:          row.StartedAt,
		CompletedAt:        row.CompletedAt,
		TotalTiles:         int(row.TotalTiles),
		CompletedTileCount: int(row.CompletedTileCount),
		ErrorTileCount:     int(row.ErrorTileCount),
		CreatedCount:       int(row.CreatedCount),
		UpdatedCount:       int(row.UpdatedCount),
		ResumedFrom:        row.ResumedFrom,
	}
	if row.ErrorMessages != nil {
		run.ErrorMessages = status.SplitErrors(*row.ErrorMessages)
	}
	if len(row.ResumeState) > 0 {
		if err := json.Unmarshal(row.ResumeState, &run.ResumeState); err != nil {
			return nil, fmt.Errorf("failed to decode resume state of run %s: %w", row.ID, err)
		}
	}
	return run, nil
}

// dbStatusToRunStatus converts database sync_run_status enum to status.RunStatus
func dbStatusToRunStatus(s sqlc.SyncRunStatus) status.RunStatus {
	switch s {
	case sqlc.SyncRunStatusRUNNING:
		return status.RunStatusRunning
	case sqlc.SyncRunStatusCOMPLETED:
		return status.RunStatusCompleted
	case sqlc.SyncRunStatusSTOPPED:
		return status.RunStatusStopped
	default:
		return status.RunStatusFailed
	}
}

// runStatusToDB converts status.RunStatus to database sync_run_status enum
func runStatusToDB(s status.RunStatus) sqlc.SyncRunStatus {
	switch s {
	case status.RunStatusRunning:
		return sqlc.SyncRunStatusRUNNING
	case status.RunStatusCompleted:
		return sqlc.SyncRunStatusCOMPLETED
	case status.RunStatusStopped:
		return sqlc.SyncRunStatusSTOPPED
	default:
		return sqlc.SyncRunStatusFAILED
	}
}

func toInt32(n int) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	if n < 0 {
		return 0
	}
	return int32(n) // #nosec G115 -- bounds checked above
}
