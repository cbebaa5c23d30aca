package writer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb/geojson"

	"github.com/urbanmap/tilesync/internal/db/sqlc"
	"github.com/urbanmap/tilesync/internal/status"
	"github.com/urbanmap/tilesync/internal/tiles"
)

// dbFeatureStore is a FeatureStore backed by PostgreSQL with PostGIS
type dbFeatureStore struct {
	pool *pgxpool.Pool
}

// NewDBFeatureStore creates a new dbFeatureStore with the given connection pool.
// The caller is responsible for closing the pool when done.
func NewDBFeatureStore(pool *pgxpool.Pool) (FeatureStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}
	return &dbFeatureStore{pool: pool}, nil
}

// Upsert writes the feature with a single INSERT .. ON CONFLICT statement.
// PostgreSQL reports xmax = 0 only for freshly inserted rows.
func (d *dbFeatureStore) Upsert(ctx context.Context, feature *tiles.Feature) (bool, error) {
	geometry, err := geojson.NewGeometry(feature.Geometry).MarshalJSON()
	if err != nil {
		return false, fmt.Errorf("failed to encode geometry: %w", err)
	}
	attributes, err := json.Marshal(feature.Attributes)
	if err != nil {
		return false, fmt.Errorf("failed to encode attributes: %w", err)
	}

	var category *string
	if feature.Category != "" {
		category = &feature.Category
	}

	inserted, err := sqlc.New(d.pool).UpsertFeature(ctx, sqlc.UpsertFeatureParams{
		SourceLayer:  feature.SourceLayer,
		DedupKey:     feature.DedupKey,
		GeometryType: string(feature.GeometryType),
		Category:     category,
		Geometry:     string(geometry),
		Attributes:   attributes,
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (d *dbFeatureStore) CountByLayer(ctx context.Context, layers []string) ([]status.LayerCount, error) {
	rows, err := sqlc.New(d.pool).CountFeaturesByLayer(ctx, layers)
	if err != nil {
		return nil, fmt.Errorf("failed to count features: %w", err)
	}

	counts := make([]status.LayerCount, 0, len(rows))
	for _, row := range rows {
		lc := status.LayerCount{
			SourceLayer:  row.SourceLayer,
			GeometryType: row.GeometryType,
			Count:        row.FeatureCount,
		}
		if row.Category != nil {
			lc.Category = *row.Category
		}
		counts = append(counts, lc)
	}
	return counts, nil
}
