// Package status defines the sync run model shared by the sync manager, the
// run stores and the API: run status, resume state, the bounded error log and
// the read-only views exposed to callers.
package status

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a sync run.
type RunStatus string

const (
	// RunStatusRunning means the run is in progress
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusCompleted means every planned tile was processed
	RunStatusCompleted RunStatus = "COMPLETED"

	// RunStatusFailed means a pipeline-level fault aborted the run
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusStopped means the run was cancelled before all tiles finished
	RunStatusStopped RunStatus = "STOPPED"
)

// IsTerminal reports whether no further transition can happen.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusStopped
}

// ResumeState is the part of a run read back to resume it.
type ResumeState struct {
	CompletedTileKeys []string `json:"completedTileKeys"`
	ErrorTileKeys     []string `json:"errorTileKeys"`
}

// CompletedSet returns the completed tile keys as a set.
func (r ResumeState) CompletedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(r.CompletedTileKeys))
	for _, k := range r.CompletedTileKeys {
		set[k] = struct{}{}
	}
	return set
}

// NewResumeState builds a ResumeState with sorted keys from two sets.
func NewResumeState(completed, errored map[string]struct{}) ResumeState {
	return ResumeState{
		CompletedTileKeys: sortedKeys(completed),
		ErrorTileKeys:     sortedKeys(errored),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SyncRun is the persisted record of one pipeline execution. A run is saved
// when it starts, at every checkpoint and once more when it terminates.
type SyncRun struct {
	ID                 uuid.UUID
	Dataset            string
	Status             RunStatus
	StartedAt          time.Time
	CompletedAt        *time.Time
	TotalTiles         int
	CompletedTileCount int
	ErrorTileCount     int
	CreatedCount       int
	UpdatedCount       int
	ErrorMessages      []string
	ResumeState        ResumeState
	// ResumedFrom is the run whose resume state seeded this one, if any.
	ResumedFrom *uuid.UUID
}

// Snapshot returns the caller-facing view of the run.
func (r *SyncRun) Snapshot() *SyncRunStatus {
	s := &SyncRunStatus{
		ID:                 r.ID,
		Dataset:            r.Dataset,
		Status:             r.Status,
		StartedAt:          r.StartedAt,
		TotalTiles:         r.TotalTiles,
		CompletedTileCount: r.CompletedTileCount,
		ErrorTileCount:     r.ErrorTileCount,
		CreatedCount:       r.CreatedCount,
		UpdatedCount:       r.UpdatedCount,
		ErrorMessages:      append([]string(nil), r.ErrorMessages...),
		ResumedFrom:        r.ResumedFrom,
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		s.CompletedAt = &t
	}
	return s
}

// SyncRunStatus is a read-only snapshot of a run. Tile keys of the resume
// state are omitted.
type SyncRunStatus struct {
	ID                 uuid.UUID  `json:"id"`
	Dataset            string     `json:"dataset"`
	Status             RunStatus  `json:"status"`
	StartedAt          time.Time  `json:"startedAt"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	TotalTiles         int        `json:"totalTiles"`
	CompletedTileCount int        `json:"completedTileCount"`
	ErrorTileCount     int        `json:"errorTileCount"`
	CreatedCount       int        `json:"createdCount"`
	UpdatedCount       int        `json:"updatedCount"`
	ErrorMessages      []string   `json:"errorMessages,omitempty"`
	ResumedFrom        *uuid.UUID `json:"resumedFrom,omitempty"`
}

// Progress returns the processed share of planned tiles in [0, 1].
func (s *SyncRunStatus) Progress() float64 {
	if s.TotalTiles == 0 {
		return 1
	}
	return float64(s.CompletedTileCount+s.ErrorTileCount) / float64(s.TotalTiles)
}

// RunPage is a page of persisted run summaries, newest first.
type RunPage struct {
	Runs   []*SyncRunStatus `json:"runs"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// LayerCount is the number of stored features of one layer and geometry type.
type LayerCount struct {
	SourceLayer  string `json:"sourceLayer"`
	GeometryType string `json:"geometryType"`
	Category     string `json:"category,omitempty"`
	Count        int64  `json:"count"`
}

// Statistics summarizes the stored features of a dataset.
type Statistics struct {
	Dataset         string       `json:"dataset"`
	Layers          []LayerCount `json:"layers"`
	TotalFeatures   int64        `json:"totalFeatures"`
	LastCompletedAt *time.Time   `json:"lastCompletedAt,omitempty"`
}
