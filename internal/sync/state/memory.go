package state

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/urbanmap/tilesync/internal/status"
)

// MemoryRunStore is a RunStore held in process memory.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*status.SyncRun
}

var _ RunStore = (*MemoryRunStore)(nil)

// NewMemoryRunStore creates an empty MemoryRunStore.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[uuid.UUID]*status.SyncRun)}
}

func (m *MemoryRunStore) SaveRun(_ context.Context, run *status.SyncRun) error {
	stored := cloneRun(run)
	stored.ErrorMessages = status.SplitErrors(status.JoinErrors(run.ErrorMessages))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = stored
	return nil
}

func (m *MemoryRunStore) GetRun(_ context.Context, id uuid.UUID) (*status.SyncRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return cloneRun(run), nil
}

func (m *MemoryRunStore) LatestResumable(_ context.Context, dataset string) (*status.SyncRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *status.SyncRun
	for _, run := range m.runs {
		if run.Dataset != dataset {
			continue
		}
		if latest == nil || run.StartedAt.After(latest.StartedAt) {
			latest = run
		}
	}
	if latest == nil || latest.Status != status.RunStatusStopped {
		return nil, ErrRunNotFound
	}
	return cloneRun(latest), nil
}

func (m *MemoryRunStore) ListRuns(_ context.Context, dataset string, limit, offset int) (*status.RunPage, error) {
	m.mu.RLock()
	var runs []*status.SyncRun
	for _, run := range m.runs {
		if run.Dataset == dataset {
			runs = append(runs, run)
		}
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	page := &status.RunPage{
		Runs:   []*status.SyncRunStatus{},
		Total:  len(runs),
		Limit:  limit,
		Offset: offset,
	}
	if offset >= len(runs) {
		return page, nil
	}
	end := len(runs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	for _, run := range runs[offset:end] {
		page.Runs = append(page.Runs, run.Snapshot())
	}
	return page, nil
}

func (m *MemoryRunStore) MarkInterrupted(_ context.Context, dataset, message string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, run := range m.runs {
		if run.Dataset != dataset || run.Status != status.RunStatusRunning {
			continue
		}
		completedAt := at
		run.Status = status.RunStatusStopped
		run.CompletedAt = &completedAt
		run.ErrorMessages = append(run.ErrorMessages, message)
		n++
	}
	return n, nil
}

func (m *MemoryRunStore) LastCompletedAt(_ context.Context, dataset string) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var last *time.Time
	for _, run := range m.runs {
		if run.Dataset != dataset || run.Status != status.RunStatusCompleted || run.CompletedAt == nil {
			continue
		}
		if last == nil || run.CompletedAt.After(*last) {
			t := *run.CompletedAt
			last = &t
		}
	}
	return last, nil
}

func cloneRun(run *status.SyncRun) *status.SyncRun {
	out := *run
	out.ErrorMessages = append([]string(nil), run.ErrorMessages...)
	out.ResumeState = status.ResumeState{
		CompletedTileKeys: append([]string{}, run.ResumeState.CompletedTileKeys...),
		ErrorTileKeys:     append([]string{}, run.ResumeState.ErrorTileKeys...),
	}
	if run.CompletedAt != nil {
		t := *run.CompletedAt
		out.CompletedAt = &t
	}
	if run.ResumedFrom != nil {
		id := *run.ResumedFrom
		out.ResumedFrom = &id
	}
	return &out
}
