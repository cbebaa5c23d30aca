// Package storage creates the storage backed components of tilesync as a
// family, so the run store and the feature store always share a backend.
package storage

import (
	"context"
	"fmt"

	"github.com/urbanmap/tilesync/internal/config"
	"github.com/urbanmap/tilesync/internal/sync/state"
	"github.com/urbanmap/tilesync/internal/sync/writer"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks -source=factory.go Factory

// Factory creates storage-dependent components.
type Factory interface {
	// CreateRunStore creates the store of sync run records
	CreateRunStore(ctx context.Context) (state.RunStore, error)

	// CreateFeatureStore creates the store of synchronized features
	CreateFeatureStore(ctx context.Context) (writer.FeatureStore, error)

	// CheckReadiness reports whether the backend can serve requests
	CheckReadiness(ctx context.Context) error

	// Cleanup releases resources held by the factory, such as the database pool
	Cleanup()
}

// NewStorageFactory creates a storage factory based on the configured storage type.
func NewStorageFactory(ctx context.Context, cfg *config.Config) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		return NewDatabaseFactory(ctx, cfg)
	case config.StorageTypeMemory:
		return NewMemoryFactory(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.GetStorageType())
	}
}
