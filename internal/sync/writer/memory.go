package writer

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/urbanmap/tilesync/internal/status"
	"github.com/urbanmap/tilesync/internal/tiles"
)

// MemoryFeatureStore is a FeatureStore held in process memory. It is used
// when no database is configured and in tests.
type MemoryFeatureStore struct {
	mu       sync.Mutex
	features map[featureKey]*tiles.Feature
}

var _ FeatureStore = (*MemoryFeatureStore)(nil)

// NewMemoryFeatureStore creates an empty MemoryFeatureStore.
func NewMemoryFeatureStore() *MemoryFeatureStore {
	return &MemoryFeatureStore{features: make(map[featureKey]*tiles.Feature)}
}

func (m *MemoryFeatureStore) Upsert(ctx context.Context, feature *tiles.Feature) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	stored := *feature
	stored.Attributes = maps.Clone(feature.Attributes)

	m.mu.Lock()
	defer m.mu.Unlock()

	k := featureKey{layer: feature.SourceLayer, key: feature.DedupKey}
	_, exists := m.features[k]
	m.features[k] = &stored
	return !exists, nil
}

func (m *MemoryFeatureStore) CountByLayer(_ context.Context, layers []string) ([]status.LayerCount, error) {
	wanted := make(map[string]struct{}, len(layers))
	for _, l := range layers {
		wanted[l] = struct{}{}
	}

	type group struct {
		layer, geometryType string
	}
	counts := make(map[group]*status.LayerCount)

	m.mu.Lock()
	for k, f := range m.features {
		if _, ok := wanted[k.layer]; !ok {
			continue
		}
		g := group{layer: k.layer, geometryType: string(f.GeometryType)}
		lc, ok := counts[g]
		if !ok {
			lc = &status.LayerCount{SourceLayer: g.layer, GeometryType: g.geometryType, Category: f.Category}
			counts[g] = lc
		}
		lc.Count++
	}
	m.mu.Unlock()

	result := make([]status.LayerCount, 0, len(counts))
	for _, lc := range counts {
		result = append(result, *lc)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SourceLayer != result[j].SourceLayer {
			return result[i].SourceLayer < result[j].SourceLayer
		}
		return result[i].GeometryType < result[j].GeometryType
	})
	return result, nil
}

// Get returns a copy of the stored feature, if any.
func (m *MemoryFeatureStore) Get(layer, dedupKey string) (*tiles.Feature, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.features[featureKey{layer: layer, key: dedupKey}]
	if !ok {
		return nil, false
	}
	out := *f
	out.Attributes = maps.Clone(f.Attributes)
	return &out, true
}

// Len returns the number of stored features.
func (m *MemoryFeatureStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.features)
}
