package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/maptile"
	"go.opentelemetry.io/otel/trace"

	"github.com/urbanmap/tilesync/internal/otel"
	"github.com/urbanmap/tilesync/internal/status"
	"github.com/urbanmap/tilesync/internal/sync/fetch"
	"github.com/urbanmap/tilesync/internal/sync/state"
	"github.com/urbanmap/tilesync/internal/sync/writer"
	"github.com/urbanmap/tilesync/internal/telemetry"
	"github.com/urbanmap/tilesync/internal/tiles"
)

const (
	// DefaultCheckpointInterval is the number of processed tiles between checkpoints
	DefaultCheckpointInterval = 10

	// DefaultLogLimit is the page size of GetLogs when none is given
	DefaultLogLimit = 20

	// MaxLogLimit is the largest page GetLogs returns
	MaxLogLimit = 100

	// InterruptedMessage is recorded on runs found RUNNING at startup
	InterruptedMessage = "interrupted"
)

// ErrNotRunning is returned by StopSync when no run is active.
var ErrNotRunning = errors.New("no sync run in progress")

// Dataset describes the area and layers a Manager synchronizes.
type Dataset struct {
	Name           string
	BBox           tiles.BoundingBox
	Zoom           int
	Classification tiles.Classification
}

// Option configures a Manager
type Option func(*Manager)

// WithMetrics records pipeline metrics
func WithMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithCheckpointInterval sets the number of processed tiles between checkpoints
func WithCheckpointInterval(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.checkpointInterval = n
		}
	}
}

// WithErrorLogLimit sets the number of error messages kept per run
func WithErrorLogLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.errorLogLimit = n
		}
	}
}

// Service is the sync surface of one dataset used by the API and the
// coordinator.
//
//go:generate mockgen -destination=mocks/mock_service.go -package=mocks github.com/urbanmap/tilesync/internal/sync Service
type Service interface {
	// Name returns the dataset name
	Name() string
	// StartSync starts a run, or returns the active run unchanged
	StartSync(ctx context.Context, resume bool) (*status.SyncRunStatus, error)
	// StopSync cancels the active run or returns ErrNotRunning
	StopSync(ctx context.Context) (*status.SyncRunStatus, error)
	// GetStatus returns the active run, or nil when idle
	GetStatus() *status.SyncRunStatus
	// GetLogs returns persisted runs, newest first
	GetLogs(ctx context.Context, limit, offset int) (*status.RunPage, error)
	// GetStatistics returns stored feature counts
	GetStatistics(ctx context.Context) (*status.Statistics, error)
}

var _ Service = (*Manager)(nil)

// Manager runs and tracks sync runs of one dataset. At most one run is active
// at a time.
type Manager struct {
	dataset      Dataset
	planned      []maptile.Tile
	orchestrator *fetch.Orchestrator
	decoder      *tiles.Decoder
	engine       *writer.Engine
	features     writer.FeatureStore
	runs         state.RunStore
	metrics      *telemetry.SyncMetrics

	checkpointInterval int
	errorLogLimit      int

	active atomic.Pointer[activeRun]
}

// New creates a Manager. The tile grid is planned once here, so an invalid
// bounding box or zoom fails before any run starts.
func New(
	dataset Dataset,
	orchestrator *fetch.Orchestrator,
	features writer.FeatureStore,
	runs state.RunStore,
	opts ...Option,
) (*Manager, error) {
	if dataset.Name == "" {
		return nil, errors.New("dataset name is required")
	}
	if orchestrator == nil {
		return nil, errors.New("fetch orchestrator is required")
	}
	if features == nil {
		return nil, errors.New("feature store is required")
	}
	if runs == nil {
		return nil, errors.New("run store is required")
	}
	if err := dataset.Classification.Validate(); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", dataset.Name, err)
	}

	planned, err := tiles.Plan(dataset.BBox, dataset.Zoom)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", dataset.Name, err)
	}

	m := &Manager{
		dataset:            dataset,
		planned:            planned,
		orchestrator:       orchestrator,
		decoder:            tiles.NewDecoder(dataset.Classification),
		engine:             writer.NewEngine(features),
		features:           features,
		runs:               runs,
		checkpointInterval: DefaultCheckpointInterval,
		errorLogLimit:      status.DefaultErrorLogLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Name returns the dataset name
func (m *Manager) Name() string {
	return m.dataset.Name
}

// TotalTiles returns the number of tiles covering the dataset area
func (m *Manager) TotalTiles() int {
	return len(m.planned)
}

// Recover marks runs of the dataset left RUNNING by a previous process as
// STOPPED so they can be resumed. It must be called before the first StartSync.
func (m *Manager) Recover(ctx context.Context) error {
	if m.active.Load() != nil {
		return errors.New("cannot recover while a run is active")
	}
	n, err := m.runs.MarkInterrupted(ctx, m.dataset.Name, InterruptedMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark interrupted runs: %w", err)
	}
	if n > 0 {
		slog.Warn("Marked interrupted sync runs as stopped",
			"dataset", m.dataset.Name,
			"runs", n)
	}
	return nil
}

// StartSync starts a run and returns its status. When a run is already
// active its status is returned unchanged and nothing is started. With resume
// set and the latest run of the dataset STOPPED, the tiles it completed are
// excluded from the work list and counted as completed from the start.
//
// The run continues after ctx is cancelled; use StopSync to end it.
func (m *Manager) StartSync(ctx context.Context, resume bool) (*status.SyncRunStatus, error) {
	if cur := m.active.Load(); cur != nil {
		return cur.status(), nil
	}

	run := &status.SyncRun{
		ID:         uuid.New(),
		Dataset:    m.dataset.Name,
		Status:     status.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
		TotalTiles: len(m.planned),
	}
	completed := make(map[string]struct{})
	work := m.planned

	if resume {
		prev, err := m.runs.LatestResumable(ctx, m.dataset.Name)
		switch {
		case err == nil:
			done := prev.ResumeState.CompletedSet()
			for _, t := range m.planned {
				if _, ok := done[tiles.Key(t)]; ok {
					completed[tiles.Key(t)] = struct{}{}
				}
			}
			work = tiles.Exclude(m.planned, done)
			prevID := prev.ID
			run.ResumedFrom = &prevID
		case errors.Is(err, state.ErrRunNotFound):
			slog.Info("No stopped run to resume, starting a full sync", "dataset", m.dataset.Name)
		default:
			return nil, fmt.Errorf("failed to load resume state: %w", err)
		}
	}
	run.CompletedTileCount = len(completed)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ar := newActiveRun(run, completed, m.errorLogLimit, cancel)

	for !m.active.CompareAndSwap(nil, ar) {
		if cur := m.active.Load(); cur != nil {
			cancel()
			return cur.status(), nil
		}
	}

	if err := m.runs.SaveRun(ctx, ar.snapshot()); err != nil {
		m.active.CompareAndSwap(ar, nil)
		cancel()
		close(ar.done)
		return nil, fmt.Errorf("failed to save sync run: %w", err)
	}

	slog.Info("Sync run started",
		"dataset", m.dataset.Name,
		"run_id", run.ID,
		"total_tiles", run.TotalTiles,
		"work_tiles", len(work),
		"resumed_from", run.ResumedFrom)

	st := ar.status()
	m.metrics.RunStarted(runCtx, m.dataset.Name)
	go m.execute(runCtx, ar, work)

	return st, nil
}

// StopSync cancels the active run and returns its status. No new tile is
// fetched afterwards; tiles in flight finish and are recorded before the run
// becomes STOPPED. It returns ErrNotRunning when no run is active.
func (m *Manager) StopSync(_ context.Context) (*status.SyncRunStatus, error) {
	cur := m.active.Load()
	if cur == nil {
		return nil, ErrNotRunning
	}
	cur.cancel()
	slog.Info("Sync run stop requested", "dataset", m.dataset.Name, "run_id", cur.run.ID)
	return cur.status(), nil
}

// GetStatus returns a snapshot of the active run, or nil when idle.
func (m *Manager) GetStatus() *status.SyncRunStatus {
	cur := m.active.Load()
	if cur == nil {
		return nil
	}
	return cur.status()
}

// Wait blocks until the active run, if any, has finished and its terminal
// record is saved.
func (m *Manager) Wait(ctx context.Context) error {
	cur := m.active.Load()
	if cur == nil {
		return nil
	}
	select {
	case <-cur.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetLogs returns persisted runs of the dataset, newest first. A limit <= 0
// selects DefaultLogLimit and limits above MaxLogLimit are clamped.
func (m *Manager) GetLogs(ctx context.Context, limit, offset int) (*status.RunPage, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}
	if offset < 0 {
		offset = 0
	}
	page, err := m.runs.ListRuns(ctx, m.dataset.Name, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	return page, nil
}

// GetStatistics counts stored features of every synchronized layer of the
// dataset and reports when the latest COMPLETED run finished.
func (m *Manager) GetStatistics(ctx context.Context) (*status.Statistics, error) {
	counts, err := m.features.CountByLayer(ctx, m.dataset.Classification.Layers())
	if err != nil {
		return nil, fmt.Errorf("failed to count features: %w", err)
	}
	lastCompleted, err := m.runs.LastCompletedAt(ctx, m.dataset.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load last completed run: %w", err)
	}

	stats := &status.Statistics{
		Dataset:         m.dataset.Name,
		Layers:          make([]status.LayerCount, 0, len(counts)),
		LastCompletedAt: lastCompleted,
	}
	for _, c := range counts {
		if c.Category == "" {
			if class, ok := m.dataset.Classification.Lookup(c.SourceLayer); ok {
				c.Category = class.Category
			}
		}
		stats.Layers = append(stats.Layers, c)
		stats.TotalFeatures += c.Count
	}
	return stats, nil
}

func (m *Manager) execute(ctx context.Context, ar *activeRun, work []maptile.Tile) {
	defer close(ar.done)
	start := time.Now()

	runErr := m.orchestrator.Run(ctx, work, func(ctx context.Context, res fetch.Result) error {
		return m.handleTile(ctx, ar, res)
	})

	rec := ar.finish(runErr, time.Now().UTC())
	if err := m.runs.SaveRun(context.WithoutCancel(ctx), rec); err != nil {
		slog.Error("Failed to save final sync run state",
			"dataset", m.dataset.Name,
			"run_id", rec.ID,
			"error", err)
	}
	m.active.CompareAndSwap(ar, nil)
	ar.cancel()

	m.metrics.RunFinished(context.WithoutCancel(ctx), m.dataset.Name, string(rec.Status), time.Since(start))

	attrs := []any{
		"dataset", m.dataset.Name,
		"run_id", rec.ID,
		"status", rec.Status,
		"completed_tiles", rec.CompletedTileCount,
		"error_tiles", rec.ErrorTileCount,
		"total_tiles", rec.TotalTiles,
		"created", rec.CreatedCount,
		"updated", rec.UpdatedCount,
		"duration", time.Since(start),
	}
	if runErr != nil {
		slog.Error("Sync run failed", append(attrs, "error", runErr)...)
		return
	}
	slog.Info("Sync run finished", attrs...)
}

// handleTile decodes and writes one fetched tile. Tile and feature errors are
// recorded on the run; only a failed checkpoint is returned.
func (m *Manager) handleTile(ctx context.Context, ar *activeRun, res fetch.Result) error {
	key := tiles.Key(res.Tile)
	outcome := res.Outcome.String()

	ctx, span := otel.StartSpan(ctx, otel.Tracer("tilesync/sync"), "sync.tile",
		trace.WithAttributes(
			otel.AttrDataset.String(m.dataset.Name),
			otel.AttrTile.String(key),
		))
	defer span.End()

	var (
		tileErr string
		written writer.Result
	)
	switch res.Outcome {
	case fetch.OutcomeFetched:
		features, err := m.decoder.Decode(res.Data, res.Tile)
		if err != nil {
			otel.RecordError(span, err)
			tileErr = err.Error()
			outcome = fetch.OutcomeError.String()
			break
		}
		span.SetAttributes(otel.AttrFeatureCount.Int(len(features)))
		for _, f := range features {
			f.DedupKey = tiles.ResolveKey(f.Attributes)
		}
		written = m.engine.Write(ctx, features)
	case fetch.OutcomeNotFound:
	default:
		tileErr = fmt.Sprintf("failed to fetch tile %s: %v", key, res.Err)
	}

	if tileErr != "" {
		slog.Warn("Tile failed", "dataset", m.dataset.Name, "tile", key, "error", tileErr)
	}
	m.metrics.RecordTile(ctx, m.dataset.Name, outcome)
	m.metrics.RecordFeatures(ctx, m.dataset.Name, written.Created, written.Updated, written.Failed)

	checkpoint := ar.recordTile(key, tileErr, written, m.checkpointInterval)
	if checkpoint == nil {
		return nil
	}
	if err := m.runs.SaveRun(ctx, checkpoint); err != nil {
		otel.RecordError(span, err)
		return fmt.Errorf("failed to checkpoint sync run after tile %s: %w", key, err)
	}
	return nil
}

// activeRun is the in-memory state of the running run. All fields behind mu
// are written by workers and read by status callers.
type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu              sync.Mutex
	run             *status.SyncRun
	errors          *status.ErrorLog
	completed       map[string]struct{}
	errored         map[string]struct{}
	sinceCheckpoint int
}

func newActiveRun(run *status.SyncRun, completed map[string]struct{}, errorLimit int, cancel context.CancelFunc) *activeRun {
	return &activeRun{
		cancel:    cancel,
		done:      make(chan struct{}),
		run:       run,
		errors:    status.NewErrorLog(errorLimit),
		completed: completed,
		errored:   make(map[string]struct{}),
	}
}

// recordTile accounts one processed tile and returns a checkpoint record
// when one is due.
func (a *activeRun) recordTile(key, tileErr string, written writer.Result, interval int) *status.SyncRun {
	a.mu.Lock()
	defer a.mu.Unlock()

	if tileErr != "" {
		a.errored[key] = struct{}{}
		a.run.ErrorTileCount++
		a.errors.Add(tileErr)
	} else {
		a.completed[key] = struct{}{}
		a.run.CompletedTileCount++
	}
	a.run.CreatedCount += written.Created
	a.run.UpdatedCount += written.Updated
	for _, msg := range written.Errors {
		a.errors.Add(msg)
	}

	a.sinceCheckpoint++
	if a.sinceCheckpoint < interval {
		return nil
	}
	a.sinceCheckpoint = 0
	return a.recordLocked()
}

// finish moves the run to its terminal status.
func (a *activeRun) finish(runErr error, at time.Time) *status.SyncRun {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case runErr != nil:
		a.run.Status = status.RunStatusFailed
		a.errors.Add(fmt.Sprintf("sync failed: %v", runErr))
	case a.run.CompletedTileCount+a.run.ErrorTileCount >= a.run.TotalTiles:
		a.run.Status = status.RunStatusCompleted
	default:
		a.run.Status = status.RunStatusStopped
	}
	a.run.CompletedAt = &at
	return a.recordLocked()
}

func (a *activeRun) snapshot() *status.SyncRun {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recordLocked()
}

func (a *activeRun) recordLocked() *status.SyncRun {
	rec := *a.run
	rec.ErrorMessages = a.errors.Entries()
	rec.ResumeState = status.NewResumeState(a.completed, a.errored)
	if a.run.CompletedAt != nil {
		t := *a.run.CompletedAt
		rec.CompletedAt = &t
	}
	return &rec
}

func (a *activeRun) status() *status.SyncRunStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.run.Snapshot()
	s.ErrorMessages = a.errors.Entries()
	return s
}
