package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/urbanmap/tilesync/internal/httpclient"
	"github.com/urbanmap/tilesync/internal/status"
	"github.com/urbanmap/tilesync/internal/sync/fetch"
	"github.com/urbanmap/tilesync/internal/sync/state"
	"github.com/urbanmap/tilesync/internal/sync/state/mocks"
	"github.com/urbanmap/tilesync/internal/sync/writer"
	"github.com/urbanmap/tilesync/internal/tiles"
)

const (
	testZoom  = 14
	roadLayer = "designated_road_line"
)

var originTile = maptile.At(orb.Point{127.0, 37.5}, testZoom)

// gridArea returns a bounding box covering exactly cols x rows tiles starting
// at originTile.
func gridArea(cols, rows int) tiles.BoundingBox {
	const eps = 1e-7
	nw := originTile.Bound()
	se := maptile.New(originTile.X+uint32(cols-1), originTile.Y+uint32(rows-1), testZoom).Bound()
	return tiles.BoundingBox{
		MinLng: nw.Min[0] + eps,
		MaxLat: nw.Max[1] - eps,
		MaxLng: se.Max[0] - eps,
		MinLat: se.Min[1] + eps,
	}
}

func roadsDataset(cols, rows int) Dataset {
	class, _ := tiles.Profile(tiles.ProfileRoads)
	return Dataset{
		Name:           "roads",
		BBox:           gridArea(cols, rows),
		Zoom:           testZoom,
		Classification: class,
	}
}

// roadTile encodes a tile holding one road line per property set.
func roadTile(t *testing.T, tile maptile.Tile, props ...map[string]any) []byte {
	t.Helper()

	b := tile.Bound()
	at := func(fx, fy float64) orb.Point {
		return orb.Point{
			b.Min[0] + fx*(b.Max[0]-b.Min[0]),
			b.Min[1] + fy*(b.Max[1]-b.Min[1]),
		}
	}

	fc := geojson.NewFeatureCollection()
	for i, p := range props {
		off := 0.1 * float64(i%5)
		f := geojson.NewFeature(orb.LineString{at(0.1+off, 0.1), at(0.5, 0.5), at(0.9, 0.2+off)})
		for k, v := range p {
			f.Properties[k] = v
		}
		fc.Append(f)
	}

	layers := mvt.NewLayers(map[string]*geojson.FeatureCollection{roadLayer: fc})
	layers.ProjectToTile(tile)
	data, err := mvt.Marshal(layers)
	require.NoError(t, err)
	return data
}

// tileServer serves {z}/{x}/{y}.pbf. By default every tile holds one road
// keyed by its tile key.
type tileServer struct {
	*httptest.Server
	t *testing.T

	mu       sync.Mutex
	requests []string
	statuses map[string]int
	bodies   map[string][]byte
	gate     chan struct{}
}

func newTileServer(t *testing.T) *tileServer {
	t.Helper()

	ts := &tileServer{
		t:        t,
		statuses: make(map[string]int),
		bodies:   make(map[string][]byte),
	}
	ts.Server = httptest.NewUnstartedServer(http.HandlerFunc(ts.serve))
	ts.Config.SetKeepAlivesEnabled(false)
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tileServer) serve(w http.ResponseWriter, r *http.Request) {
	var z, x, y uint32
	if _, err := fmt.Sscanf(r.URL.Path, "/%d/%d/%d.pbf", &z, &x, &y); err != nil {
		http.Error(w, "bad tile path", http.StatusBadRequest)
		return
	}
	tile := maptile.New(x, y, maptile.Zoom(z))
	key := tiles.Key(tile)

	ts.mu.Lock()
	ts.requests = append(ts.requests, key)
	code := ts.statuses[key]
	body, hasBody := ts.bodies[key]
	gate := ts.gate
	ts.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if code != 0 {
		w.WriteHeader(code)
		return
	}
	if !hasBody {
		body = roadTile(ts.t, tile, map[string]any{"official_code": "RD-" + key, "name": "road " + key})
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	_, _ = w.Write(body)
}

func (ts *tileServer) setStatus(key string, code int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.statuses[key] = code
}

func (ts *tileServer) setAllStatus(code int, keys []string) {
	for _, k := range keys {
		ts.setStatus(k, code)
	}
}

func (ts *tileServer) setBody(key string, body []byte) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.bodies[key] = body
}

func (ts *tileServer) block() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.gate = make(chan struct{})
}

func (ts *tileServer) release() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.gate != nil {
		close(ts.gate)
		ts.gate = nil
	}
}

func (ts *tileServer) requested() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.requests...)
}

func newOrchestrator(t *testing.T, baseURL string, concurrency int) *fetch.Orchestrator {
	t.Helper()
	o, err := fetch.New(httpclient.NewDefaultClient(5*time.Second), fetch.Config{
		BaseURL:     baseURL,
		Concurrency: concurrency,
	})
	require.NoError(t, err)
	return o
}

type fixture struct {
	server   *tileServer
	features *writer.MemoryFeatureStore
	runs     *state.MemoryRunStore
	manager  *Manager
}

func newFixture(t *testing.T, ds Dataset, concurrency int, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		server:   newTileServer(t),
		features: writer.NewMemoryFeatureStore(),
		runs:     state.NewMemoryRunStore(),
	}
	m, err := New(ds, newOrchestrator(t, f.server.URL, concurrency), f.features, f.runs, opts...)
	require.NoError(t, err)
	f.manager = m
	return f
}

// runToEnd starts a run, waits for it and returns its persisted record.
func (f *fixture) runToEnd(t *testing.T, resume bool) *status.SyncRun {
	t.Helper()
	ctx := context.Background()

	started, err := f.manager.StartSync(ctx, resume)
	require.NoError(t, err)
	require.Equal(t, status.RunStatusRunning, started.Status)

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	require.NoError(t, f.manager.Wait(waitCtx))

	run, err := f.runs.GetRun(ctx, started.ID)
	require.NoError(t, err)
	return run
}

func plannedKeys(t *testing.T, ds Dataset) []string {
	t.Helper()
	planned, err := tiles.Plan(ds.BBox, ds.Zoom)
	require.NoError(t, err)
	keys := make([]string, len(planned))
	for i, p := range planned {
		keys[i] = tiles.Key(p)
	}
	return keys
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, "http://localhost", 1)
	fs := writer.NewMemoryFeatureStore()
	rs := state.NewMemoryRunStore()

	tests := []struct {
		name    string
		mutate  func(ds *Dataset)
		is      error
		wantErr string
	}{
		{
			name:    "missing name",
			mutate:  func(ds *Dataset) { ds.Name = "" },
			wantErr: "dataset name is required",
		},
		{
			name:   "inverted bbox",
			mutate: func(ds *Dataset) { ds.BBox.MinLng, ds.BBox.MaxLng = ds.BBox.MaxLng, ds.BBox.MinLng },
			is:     tiles.ErrInvalidBoundingBox,
		},
		{
			name:   "zoom too deep",
			mutate: func(ds *Dataset) { ds.Zoom = 30 },
			is:     tiles.ErrInvalidZoom,
		},
		{
			name:    "no synchronized layers",
			mutate:  func(ds *Dataset) { ds.Classification = tiles.Classification{} },
			wantErr: "no line or polygon layers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ds := roadsDataset(2, 2)
			tt.mutate(&ds)
			_, err := New(ds, o, fs, rs)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			} else {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}

	_, err := New(roadsDataset(1, 1), nil, fs, rs)
	assert.Error(t, err)
	_, err = New(roadsDataset(1, 1), o, nil, rs)
	assert.Error(t, err)
	_, err = New(roadsDataset(1, 1), o, fs, nil)
	assert.Error(t, err)
}

func TestManager_TotalTiles(t *testing.T) {
	t.Parallel()

	f := newFixture(t, roadsDataset(10, 10), 4)
	assert.Equal(t, 100, f.manager.TotalTiles())
	assert.Equal(t, "roads", f.manager.Name())
}

func TestManager_IdempotentUpsert(t *testing.T) {
	t.Parallel()

	ds := roadsDataset(3, 3)
	f := newFixture(t, ds, 4)

	first := f.runToEnd(t, false)
	assert.Equal(t, status.RunStatusCompleted, first.Status)
	assert.Equal(t, 9, first.TotalTiles)
	assert.Equal(t, 9, first.CompletedTileCount)
	assert.Equal(t, 0, first.ErrorTileCount)
	assert.Equal(t, 9, first.CreatedCount)
	assert.Equal(t, 0, first.UpdatedCount)
	require.NotNil(t, first.CompletedAt)
	assert.Len(t, first.ResumeState.CompletedTileKeys, 9)

	key := plannedKeys(t, ds)[4]
	before, ok := f.features.Get(roadLayer, "RD-"+key)
	require.True(t, ok)

	second := f.runToEnd(t, false)
	assert.Equal(t, status.RunStatusCompleted, second.Status)
	assert.Equal(t, 0, second.CreatedCount)
	assert.Equal(t, 9, second.UpdatedCount)
	assert.Equal(t, 9, f.features.Len())

	after, ok := f.features.Get(roadLayer, "RD-"+key)
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, key, after.Attributes[tiles.AttrSourceTile])
}

func TestManager_ResumeSkipsCompletedTiles(t *testing.T) {
	t.Parallel()

	ds := roadsDataset(10, 10)
	f := newFixture(t, ds, 4)
	keys := plannedKeys(t, ds)
	require.Len(t, keys, 100)

	done := keys[:40]
	prev := &status.SyncRun{
		ID:                 uuid.New(),
		Dataset:            ds.Name,
		Status:             status.RunStatusStopped,
		StartedAt:          time.Now().Add(-time.Hour).UTC(),
		TotalTiles:         100,
		CompletedTileCount: 40,
		ErrorTileCount:     1,
		ResumeState: status.ResumeState{
			CompletedTileKeys: done,
			ErrorTileKeys:     []string{keys[40]},
		},
	}
	require.NoError(t, f.runs.SaveRun(context.Background(), prev))

	started, err := f.manager.StartSync(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 40, started.CompletedTileCount)
	require.NotNil(t, started.ResumedFrom)
	assert.Equal(t, prev.ID, *started.ResumedFrom)

	require.NoError(t, f.manager.Wait(context.Background()))
	run, err := f.runs.GetRun(context.Background(), started.ID)
	require.NoError(t, err)

	requested := f.server.requested()
	assert.Len(t, requested, 60)
	assert.ElementsMatch(t, keys[40:], requested)

	assert.Equal(t, status.RunStatusCompleted, run.Status)
	assert.Equal(t, 100, run.CompletedTileCount)
	assert.Equal(t, 0, run.ErrorTileCount)
	assert.Equal(t, 60, run.CreatedCount)
	assert.Len(t, run.ResumeState.CompletedTileKeys, 100)
	assert.Empty(t, run.ResumeState.ErrorTileKeys)
}

func TestManager_ResumeWithoutStoppedRun(t *testing.T) {
	t.Parallel()

	ds := roadsDataset(2, 2)
	f := newFixture(t, ds, 2)

	f.runToEnd(t, false)
	run := f.runToEnd(t, true)

	assert.Nil(t, run.ResumedFrom)
	assert.Len(t, f.server.requested(), 8)
	assert.Equal(t, 4, run.UpdatedCount)
}

func TestManager_NotFoundTilesComplete(t *testing.T) {
	t.Parallel()

	ds := roadsDataset(4, 4)
	f := newFixture(t, ds, 4)
	f.server.setAllStatus(http.StatusNotFound, plannedKeys(t, ds))

	run := f.runToEnd(t, false)
	assert.Equal(t, status.RunStatusCompleted, run.Status)
	assert.Equal(t, 16, run.CompletedTileCount)
	assert.Equal(t, run.TotalTiles, run.CompletedTileCount)
	assert.Equal(t, 0, run.ErrorTileCount)
	assert.Equal(t, 0, run.CreatedCount+run.UpdatedCount)
	assert.Empty(t, run.ErrorMessages)
	assert.Equal(t, 0, f.features.Len())
}

func TestManager_NoContentTilesComplete(t *testing.T) {
	t.Parallel()

	ds := roadsDataset(2, 2)
	f := newFixture(t, ds, 2)
	empty := plannedKeys(t, ds)[0]
	f.server.setStatus(empty, http.StatusNoContent)

	run := f.runToEnd(t, false)
	assert.Equal(t, status.RunStatusCompleted, run.Status)
	assert.Equal(t, 4, run.CompletedTileCount)
	assert.Equal(t, 0, run.ErrorTileCount)
	assert.Equal(t, 3, run.CreatedCount)
	assert.Empty(t, run.ErrorMessages)
	assert.Contains(t, run.ResumeState.CompletedTileKeys, empty)
}

func TestManager_PartialFailureCompletes(t *testing.T) {
	t.Parallel()

	ds := roadsDataset(3, 3)
	f := newFixture(t, ds, 4)
	failing := plannedKeys(t, ds)[2]
	f.server.setStatus(failing, http.StatusInternalServerError)

	run := f.runToEnd(t, false)
	assert.Equal(t, status.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.ErrorTileCount)
	assert.Equal(t, 8, run.CompletedTileCount)
	assert.Equal(t, 8, run.CreatedCount)
	assert.Equal(t, 8, f.features.Len())
	assert.Equal(t, []string{failing}, run.ResumeState.ErrorTileKeys)
	assert.NotContains(t, run.ResumeState.CompletedTileKeys, failing)
	require.Len(t, run.ErrorMessages, 1)
	assert.Contains(t, run.ErrorMessages[0], failing)

	_, ok := f.features.Get(roadLayer, "RD-"+failing)
	assert.False(t, ok)
}

func TestManager_UndecodableTileIsTileError(t *testing.T) {
	t.Parallel()

	ds := roadsDataset(2, 1)
	f := newFixture(t, ds, 2)
	broken := plannedKeys(t, ds)[0]
	f.server.setBody(broken, []byte{0x1f, 0x8b, 0x00, 0x01, 0x02})

	run := f.runToEnd(t, false)
	assert.Equal(t, status.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.ErrorTileCount)
	assert.Equal(t, 1, run.CompletedTileCount)
	require.Len(t, run.ErrorMessages, 1)
	assert.Contains(t, run.ErrorMessages[0], "failed to decode tile "+broken)
}

func TestManager_DedupCollapseKeepsFirst(t *testing.T) {
	t.Parallel()

	ds := roadsDataset(1, 1)
	f := newFixture(t, ds, 1)
	key := plannedKeys(t, ds)[0]
	f.server.setBody(key, roadTile(t, originTile,
		map[string]any{"official_code": "RD-1", "name": "first"},
		map[string]any{"official_code": "RD-1", "name": "second"},
		map[string]any{"surface": "gravel"},
	))

	run := f.runToEnd(t, false)
	assert.Equal(t, status.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.CreatedCount)
	assert.Equal(t, 2, f.features.Len())

	got, ok := f.features.Get(roadLayer, "RD-1")
	require.True(t, ok)
	assert.Equal(t, "first", got.Attributes["name"])

	_, ok = f.features.Get(roadLayer, tiles.UnknownKey)
	assert.True(t, ok)
}

func TestManager_StopIsCooperative(t *testing.T) {
	t.Parallel()

	ds := roadsDataset(5, 4)
	f := newFixture(t, ds, 2)
	f.server.block()

	started, err := f.manager.StartSync(context.Background(), false)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(f.server.requested()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	stopped, err := f.manager.StopSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, started.ID, stopped.ID)
	assert.Equal(t, status.RunStatusRunning, stopped.Status)

	f.server.release()
	require.NoError(t, f.manager.Wait(context.Background()))

	run, err := f.runs.GetRun(context.Background(), started.ID)
	require.NoError(t, err)

	inFlight := f.server.requested()
	assert.Len(t, inFlight, 2)
	assert.Equal(t, status.RunStatusStopped, run.Status)
	assert.Equal(t, 2, run.CompletedTileCount)
	assert.ElementsMatch(t, inFlight, run.ResumeState.CompletedTileKeys)
	assert.Nil(t, f.manager.GetStatus())

	// the stopped run is picked up where it left off
	resumed := f.runToEnd(t, true)
	assert.Equal(t, status.RunStatusCompleted, resumed.Status)
	assert.Equal(t, 20, resumed.CompletedTileCount)
	assert.Len(t, f.server.requested(), 20)
}

func TestManager_SingleRunExclusivity(t *testing.T) {
	t.Parallel()

	ds := roadsDataset(2, 2)
	f := newFixture(t, ds, 1)
	f.server.block()

	first, err := f.manager.StartSync(context.Background(), false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 10)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := f.manager.StartSync(context.Background(), i%2 == 0)
			assert.NoError(t, err)
			if st != nil {
				ids[i] = st.ID
				assert.Equal(t, status.RunStatusRunning, st.Status)
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, first.ID, id)
	}

	current := f.manager.GetStatus()
	require.NotNil(t, current)
	assert.Equal(t, first.ID, current.ID)

	f.server.release()
	require.NoError(t, f.manager.Wait(context.Background()))

	page, err := f.manager.GetLogs(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Len(t, f.server.requested(), 4)
}

func TestManager_StopSyncWhenIdle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, roadsDataset(1, 1), 1)

	_, err := f.manager.StopSync(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.Nil(t, f.manager.GetStatus())
	assert.NoError(t, f.manager.Wait(context.Background()))
}

func TestManager_CheckpointsProgress(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runs := mocks.NewMockRunStore(ctrl)

	var (
		mu    sync.Mutex
		saved []*status.SyncRun
	)
	runs.EXPECT().SaveRun(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r *status.SyncRun) error {
			mu.Lock()
			defer mu.Unlock()
			saved = append(saved, r)
			return nil
		}).Times(1 + 2 + 1)

	srv := newTileServer(t)
	m, err := New(roadsDataset(5, 1), newOrchestrator(t, srv.URL, 1), writer.NewMemoryFeatureStore(), runs,
		WithCheckpointInterval(2))
	require.NoError(t, err)

	_, err = m.StartSync(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, m.Wait(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, saved, 4)
	assert.Equal(t, status.RunStatusRunning, saved[0].Status)
	assert.Equal(t, 0, saved[0].CompletedTileCount)
	assert.Equal(t, 2, saved[1].CompletedTileCount)
	assert.Equal(t, 4, saved[2].CompletedTileCount)
	assert.Len(t, saved[2].ResumeState.CompletedTileKeys, 4)
	assert.Equal(t, status.RunStatusCompleted, saved[3].Status)
	assert.Equal(t, 5, saved[3].CompletedTileCount)
}

func TestManager_CheckpointFailureFailsRun(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runs := mocks.NewMockRunStore(ctrl)

	var final *status.SyncRun
	gomock.InOrder(
		runs.EXPECT().SaveRun(gomock.Any(), gomock.Any()).Return(nil),
		runs.EXPECT().SaveRun(gomock.Any(), gomock.Any()).Return(errors.New("disk full")),
		runs.EXPECT().SaveRun(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, r *status.SyncRun) error {
				final = r
				return nil
			}),
	)

	srv := newTileServer(t)
	m, err := New(roadsDataset(4, 1), newOrchestrator(t, srv.URL, 1), writer.NewMemoryFeatureStore(), runs,
		WithCheckpointInterval(2))
	require.NoError(t, err)

	_, err = m.StartSync(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, m.Wait(context.Background()))

	require.NotNil(t, final)
	assert.Equal(t, status.RunStatusFailed, final.Status)
	assert.Equal(t, 2, final.CompletedTileCount)
	require.NotNil(t, final.CompletedAt)
	require.NotEmpty(t, final.ErrorMessages)
	assert.Contains(t, final.ErrorMessages[len(final.ErrorMessages)-1], "disk full")
	assert.Len(t, srv.requested(), 2)
}

func TestManager_StartFailsWhenRunCannotBeSaved(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runs := mocks.NewMockRunStore(ctrl)
	runs.EXPECT().SaveRun(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	srv := newTileServer(t)
	m, err := New(roadsDataset(1, 1), newOrchestrator(t, srv.URL, 1), writer.NewMemoryFeatureStore(), runs)
	require.NoError(t, err)

	_, err = m.StartSync(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Nil(t, m.GetStatus())
	assert.Empty(t, srv.requested())
}

func TestManager_ResumeLookupError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runs := mocks.NewMockRunStore(ctrl)
	runs.EXPECT().LatestResumable(gomock.Any(), "roads").Return(nil, errors.New("timeout"))

	m, err := New(roadsDataset(1, 1), newOrchestrator(t, "http://localhost", 1), writer.NewMemoryFeatureStore(), runs)
	require.NoError(t, err)

	_, err = m.StartSync(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load resume state")
	assert.Nil(t, m.GetStatus())
}

func TestManager_Recover(t *testing.T) {
	t.Parallel()

	ds := roadsDataset(3, 1)
	f := newFixture(t, ds, 1)
	keys := plannedKeys(t, ds)

	crashed := &status.SyncRun{
		ID:                 uuid.New(),
		Dataset:            ds.Name,
		Status:             status.RunStatusRunning,
		StartedAt:          time.Now().Add(-time.Hour).UTC(),
		TotalTiles:         3,
		CompletedTileCount: 1,
		ResumeState:        status.ResumeState{CompletedTileKeys: keys[:1], ErrorTileKeys: []string{}},
	}
	require.NoError(t, f.runs.SaveRun(context.Background(), crashed))

	require.NoError(t, f.manager.Recover(context.Background()))

	got, err := f.runs.GetRun(context.Background(), crashed.ID)
	require.NoError(t, err)
	assert.Equal(t, status.RunStatusStopped, got.Status)
	assert.Contains(t, got.ErrorMessages, InterruptedMessage)

	run := f.runToEnd(t, true)
	require.NotNil(t, run.ResumedFrom)
	assert.Equal(t, crashed.ID, *run.ResumedFrom)
	assert.ElementsMatch(t, keys[1:], f.server.requested())
}

func TestManager_GetLogsClampsPaging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                  string
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{name: "defaults", limit: 0, offset: -3, wantLimit: DefaultLogLimit, wantOffset: 0},
		{name: "clamped", limit: 500, offset: 10, wantLimit: MaxLogLimit, wantOffset: 10},
		{name: "passthrough", limit: 5, offset: 5, wantLimit: 5, wantOffset: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			runs := mocks.NewMockRunStore(ctrl)
			runs.EXPECT().ListRuns(gomock.Any(), "roads", tt.wantLimit, tt.wantOffset).
				Return(&status.RunPage{Limit: tt.wantLimit, Offset: tt.wantOffset}, nil)

			m, err := New(roadsDataset(1, 1), newOrchestrator(t, "http://localhost", 1), writer.NewMemoryFeatureStore(), runs)
			require.NoError(t, err)

			page, err := m.GetLogs(context.Background(), tt.limit, tt.offset)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, page.Limit)
		})
	}
}

func TestManager_GetStatistics(t *testing.T) {
	t.Parallel()

	ds := roadsDataset(2, 2)
	f := newFixture(t, ds, 2)

	stats, err := f.manager.GetStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalFeatures)
	assert.Nil(t, stats.LastCompletedAt)

	run := f.runToEnd(t, false)

	stats, err = f.manager.GetStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "roads", stats.Dataset)
	assert.Equal(t, int64(4), stats.TotalFeatures)
	require.Len(t, stats.Layers, 1)
	assert.Equal(t, roadLayer, stats.Layers[0].SourceLayer)
	assert.Equal(t, string(tiles.GeometryLine), stats.Layers[0].GeometryType)
	assert.Equal(t, "Designated road centerline", stats.Layers[0].Category)
	require.NotNil(t, stats.LastCompletedAt)
	assert.True(t, run.CompletedAt.Equal(*stats.LastCompletedAt))
}
