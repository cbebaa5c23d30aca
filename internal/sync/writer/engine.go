package writer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urbanmap/tilesync/internal/tiles"
)

// Result summarizes one Write call.
type Result struct {
	Created    int
	Updated    int
	Duplicates int
	Failed     int
	// Errors holds one message per failed feature.
	Errors []string
}

// Engine writes decoded features of a tile to a FeatureStore.
type Engine struct {
	store FeatureStore
}

// NewEngine creates an Engine on top of store.
func NewEngine(store FeatureStore) *Engine {
	return &Engine{store: store}
}

type featureKey struct {
	layer string
	key   string
}

// Write upserts every feature whose DedupKey is set. Features sharing a
// (SourceLayer, DedupKey) within the batch are collapsed, keeping the first.
// A failing feature is logged and counted; it never aborts the batch.
func (e *Engine) Write(ctx context.Context, features []*tiles.Feature) Result {
	var res Result
	seen := make(map[featureKey]struct{}, len(features))

	for _, f := range features {
		k := featureKey{layer: f.SourceLayer, key: f.DedupKey}
		if _, dup := seen[k]; dup {
			res.Duplicates++
			continue
		}
		seen[k] = struct{}{}

		inserted, err := e.store.Upsert(ctx, f)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf(
				"failed to upsert feature %s/%s (%s, %d parts): %v",
				f.SourceLayer, f.DedupKey, f.GeometryType, f.PartCount(), err))
			slog.Warn("Failed to upsert feature",
				"layer", f.SourceLayer,
				"dedup_key", f.DedupKey,
				"geometry_type", f.GeometryType,
				"parts", f.PartCount(),
				"error", err)
			continue
		}
		if inserted {
			res.Created++
		} else {
			res.Updated++
		}
	}

	return res
}
