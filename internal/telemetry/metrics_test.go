package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewSyncMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	m, err := NewSyncMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	// a nil receiver records nothing and does not panic
	m.RecordTile(context.Background(), "roads", "fetched")
	m.RecordFeatures(context.Background(), "roads", 1, 2, 3)
	m.RunStarted(context.Background(), "roads")
	m.RunFinished(context.Background(), "roads", "COMPLETED", time.Second)
}

func TestSyncMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewSyncMetrics(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RunStarted(ctx, "roads")
	m.RecordTile(ctx, "roads", "fetched")
	m.RecordTile(ctx, "roads", "fetched")
	m.RecordTile(ctx, "roads", "not_found")
	m.RecordFeatures(ctx, "roads", 5, 2, 0)
	m.RunFinished(ctx, "roads", "COMPLETED", 90*time.Second)

	metrics := collect(t, reader)

	tiles, ok := metrics["tilesync_tiles_processed_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range tiles.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)

	features, ok := metrics["tilesync_features_written_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, features.DataPoints, 2, "zero counts are not recorded")

	duration, ok := metrics["tilesync_sync_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.InDelta(t, 90.0, duration.DataPoints[0].Sum, 1e-9)

	active, ok := metrics["tilesync_active_runs"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, active.DataPoints, 1)
	assert.Equal(t, int64(0), active.DataPoints[0].Value)
}
