package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/urbanmap/tilesync/sync"
)

// SyncMetrics holds the OpenTelemetry instruments of the sync pipeline.
// A nil *SyncMetrics records nothing.
type SyncMetrics struct {
	tilesProcessed  metric.Int64Counter
	featuresWritten metric.Int64Counter
	runDuration     metric.Float64Histogram
	activeRuns      metric.Int64UpDownCounter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	tilesProcessed, err := meter.Int64Counter(
		"tilesync_tiles_processed_total",
		metric.WithDescription("Number of tiles processed by outcome"),
		metric.WithUnit("{tile}"),
	)
	if err != nil {
		return nil, err
	}

	featuresWritten, err := meter.Int64Counter(
		"tilesync_features_written_total",
		metric.WithDescription("Number of feature writes by operation"),
		metric.WithUnit("{feature}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"tilesync_sync_duration_seconds",
		metric.WithDescription("Duration of sync runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 10, 30, 60, 300, 600, 1800, 3600, 7200),
	)
	if err != nil {
		return nil, err
	}

	activeRuns, err := meter.Int64UpDownCounter(
		"tilesync_active_runs",
		metric.WithDescription("Number of sync runs in progress"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		tilesProcessed:  tilesProcessed,
		featuresWritten: featuresWritten,
		runDuration:     runDuration,
		activeRuns:      activeRuns,
	}, nil
}

// RecordTile counts one processed tile of a dataset.
func (m *SyncMetrics) RecordTile(ctx context.Context, dataset, outcome string) {
	if m == nil {
		return
	}
	m.tilesProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dataset", dataset),
		attribute.String("outcome", outcome),
	))
}

// RecordFeatures counts the feature writes of one tile.
func (m *SyncMetrics) RecordFeatures(ctx context.Context, dataset string, created, updated, failed int) {
	if m == nil {
		return
	}
	for op, n := range map[string]int{"created": created, "updated": updated, "failed": failed} {
		if n == 0 {
			continue
		}
		m.featuresWritten.Add(ctx, int64(n), metric.WithAttributes(
			attribute.String("dataset", dataset),
			attribute.String("operation", op),
		))
	}
}

// RunStarted marks a run of the dataset as active.
func (m *SyncMetrics) RunStarted(ctx context.Context, dataset string) {
	if m == nil {
		return
	}
	m.activeRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("dataset", dataset)))
}

// RunFinished records the duration and terminal status of a run.
func (m *SyncMetrics) RunFinished(ctx context.Context, dataset, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.activeRuns.Add(ctx, -1, metric.WithAttributes(attribute.String("dataset", dataset)))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("dataset", dataset),
		attribute.String("status", status),
	))
}
