// Package writer contains the Upsert Engine and the FeatureStore implementations
package writer

import (
	"context"

	"github.com/urbanmap/tilesync/internal/status"
	"github.com/urbanmap/tilesync/internal/tiles"
)

//go:generate mockgen -destination=mocks/mock_feature_store.go -package=mocks -source=store.go FeatureStore

// FeatureStore persists features keyed by (source layer, dedup key).
type FeatureStore interface {
	// Upsert inserts the feature or replaces the geometry and attributes of the
	// record with the same key. inserted reports whether a new record was created.
	// The classification is decided by the store itself and is atomic with the write.
	Upsert(ctx context.Context, feature *tiles.Feature) (inserted bool, err error)
	// CountByLayer returns the number of stored records of the given layers,
	// grouped by layer and geometry type.
	CountByLayer(ctx context.Context, layers []string) ([]status.LayerCount, error)
}
