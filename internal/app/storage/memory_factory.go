package storage

import (
	"context"
	"log/slog"

	"github.com/urbanmap/tilesync/internal/sync/state"
	"github.com/urbanmap/tilesync/internal/sync/writer"
)

// MemoryFactory creates in-memory storage components. Every call returns the
// same stores, so all datasets share them for the life of the process.
type MemoryFactory struct {
	runs     *state.MemoryRunStore
	features *writer.MemoryFeatureStore
}

var _ Factory = (*MemoryFactory)(nil)

// NewMemoryFactory creates a MemoryFactory
func NewMemoryFactory() *MemoryFactory {
	slog.Info("Creating in-memory storage factory; data is lost on restart")
	return &MemoryFactory{
		runs:     state.NewMemoryRunStore(),
		features: writer.NewMemoryFeatureStore(),
	}
}

// CreateRunStore returns the in-memory run store.
func (m *MemoryFactory) CreateRunStore(_ context.Context) (state.RunStore, error) {
	return m.runs, nil
}

// CreateFeatureStore returns the in-memory feature store.
func (m *MemoryFactory) CreateFeatureStore(_ context.Context) (writer.FeatureStore, error) {
	return m.features, nil
}

// CheckReadiness always succeeds.
func (*MemoryFactory) CheckReadiness(_ context.Context) error {
	return nil
}

// Cleanup is a no-op.
func (*MemoryFactory) Cleanup() {}
