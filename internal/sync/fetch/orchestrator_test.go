package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"

	"github.com/urbanmap/tilesync/internal/httpclient"
	"github.com/urbanmap/tilesync/internal/httpclient/mocks"
)

// fakeClient answers Get calls from a callback and tracks concurrency.
type fakeClient struct {
	respond  func(ctx context.Context, url string) ([]byte, error)
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (f *fakeClient) Get(ctx context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return f.respond(ctx, url)
}

func planTiles(n int) []maptile.Tile {
	out := make([]maptile.Tile, n)
	for i := range out {
		out[i] = maptile.New(uint32(i), 0, 14)
	}
	return out
}

type collector struct {
	mu      sync.Mutex
	results []Result
}

func (c *collector) handle(_ context.Context, r Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
	return nil
}

func (c *collector) count(o Outcome) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	tests := []struct {
		name    string
		client  httpclient.Client
		cfg     Config
		wantErr bool
	}{
		{name: "valid", client: client, cfg: Config{BaseURL: "https://tiles.example.org"}},
		{name: "missing client", cfg: Config{BaseURL: "https://tiles.example.org"}, wantErr: true},
		{name: "missing base URL", client: client, wantErr: true},
		{name: "negative delay", client: client, cfg: Config{BaseURL: "x", Delay: -time.Second}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o, err := New(tt.client, tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultConcurrency, o.workers)
		})
	}
}

func TestOrchestrator_TileURL(t *testing.T) {
	t.Parallel()

	o, err := New(&fakeClient{}, Config{BaseURL: "https://tiles.example.org/roads/"})
	require.NoError(t, err)
	assert.Equal(t, "https://tiles.example.org/roads/14/13970/6344.pbf", o.TileURL(maptile.New(13970, 6344, 14)))
}

func TestOrchestrator_Run_ConcurrencyCap(t *testing.T) {
	t.Parallel()

	client := &fakeClient{respond: func(context.Context, string) ([]byte, error) {
		time.Sleep(5 * time.Millisecond)
		return []byte("tile"), nil
	}}
	o, err := New(client, Config{BaseURL: "http://host", Concurrency: 3})
	require.NoError(t, err)

	c := &collector{}
	require.NoError(t, o.Run(context.Background(), planTiles(30), c.handle))

	assert.Equal(t, 30, c.count(OutcomeFetched))
	assert.LessOrEqual(t, client.peak.Load(), int32(3))
	assert.Equal(t, int32(30), client.calls.Load())
}

func TestOrchestrator_Run_Delay(t *testing.T) {
	t.Parallel()

	client := &fakeClient{respond: func(context.Context, string) ([]byte, error) {
		return nil, nil
	}}
	o, err := New(client, Config{BaseURL: "http://host", Concurrency: 1, Delay: 20 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, o.Run(context.Background(), planTiles(5), (&collector{}).handle))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestOrchestrator_Run_Outcomes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/14/0/0.pbf":
			_, _ = w.Write([]byte{0x1a, 0x00})
		case "/14/1/0.pbf":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	server.Config.SetKeepAlivesEnabled(false)
	defer server.Close()

	o, err := New(httpclient.NewDefaultClient(time.Second), Config{BaseURL: server.URL, Concurrency: 2})
	require.NoError(t, err)

	c := &collector{}
	require.NoError(t, o.Run(context.Background(), planTiles(3), c.handle))

	assert.Equal(t, 1, c.count(OutcomeFetched))
	assert.Equal(t, 1, c.count(OutcomeNotFound))
	assert.Equal(t, 1, c.count(OutcomeError))
	for _, r := range c.results {
		if r.Outcome == OutcomeError {
			var httpErr *httpclient.HTTPError
			require.ErrorAs(t, r.Err, &httpErr)
			assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
		}
	}
}

func TestOrchestrator_Run_CancelStopsDispatch(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 100)
	release := make(chan struct{})

	client := &fakeClient{respond: func(reqCtx context.Context, _ string) ([]byte, error) {
		started <- struct{}{}
		<-release
		// the in-flight request must not observe the cancellation
		return []byte("tile"), reqCtx.Err()
	}}
	o, err := New(client, Config{BaseURL: "http://host", Concurrency: 2})
	require.NoError(t, err)

	c := &collector{}
	done := make(chan error, 1)
	go func() {
		done <- o.Run(ctx, planTiles(50), c.handle)
	}()

	<-started
	<-started
	cancel()
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	// the two requests in flight at cancellation complete and are handled
	assert.GreaterOrEqual(t, c.count(OutcomeFetched), 2)
	assert.Equal(t, 0, c.count(OutcomeError))
	assert.Less(t, int(client.calls.Load()), 50)
}

func TestOrchestrator_Run_HandlerErrorIsFatal(t *testing.T) {
	t.Parallel()

	client := &fakeClient{respond: func(context.Context, string) ([]byte, error) {
		return []byte("tile"), nil
	}}
	o, err := New(client, Config{BaseURL: "http://host", Concurrency: 1, Delay: time.Millisecond})
	require.NoError(t, err)

	boom := errors.New("checkpoint failed")
	var handled atomic.Int32
	err = o.Run(context.Background(), planTiles(20), func(context.Context, Result) error {
		if handled.Add(1) == 3 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Less(t, int(handled.Load()), 20)
}

func TestOrchestrator_Run_PanicIsFatal(t *testing.T) {
	t.Parallel()

	client := &fakeClient{respond: func(context.Context, string) ([]byte, error) {
		return []byte("tile"), nil
	}}
	o, err := New(client, Config{BaseURL: "http://host", Concurrency: 2})
	require.NoError(t, err)

	err = o.Run(context.Background(), planTiles(4), func(context.Context, Result) error {
		panic("decoder bug")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic while processing tile")
}

func TestOrchestrator_Run_RateLimit(t *testing.T) {
	t.Parallel()

	client := &fakeClient{respond: func(context.Context, string) ([]byte, error) {
		return nil, nil
	}}
	o, err := New(client, Config{BaseURL: "http://host", Concurrency: 4, RateLimit: 50})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, o.Run(context.Background(), planTiles(11), (&collector{}).handle))
	// 11 requests at 50/s need at least 10 intervals of 20ms
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "fetched", OutcomeFetched.String())
	assert.Equal(t, "not_found", OutcomeNotFound.String())
	assert.Equal(t, "error", OutcomeError.String())
}

func TestOrchestrator_Run_Spans(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	client := &fakeClient{respond: func(_ context.Context, url string) ([]byte, error) {
		if url == "http://tiles.local/14/1/0.pbf" {
			return nil, errors.New("connection reset")
		}
		return nil, httpclient.ErrNotFound
	}}
	o, err := New(client, Config{BaseURL: "http://tiles.local", Tracer: tp.Tracer("test")})
	require.NoError(t, err)

	c := &collector{}
	require.NoError(t, o.Run(context.Background(), planTiles(2), c.handle))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	outcomes := map[string]codes.Code{}
	for _, s := range spans {
		assert.Equal(t, "fetch.tile", s.Name)
		for _, attr := range s.Attributes {
			if attr.Key == "tile.outcome" {
				outcomes[attr.Value.AsString()] = s.Status.Code
			}
		}
	}
	assert.Equal(t, map[string]codes.Code{
		"not_found": codes.Unset,
		"error":     codes.Error,
	}, outcomes)
}

func TestOrchestrator_Run_RequestsEveryTileOnce(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	for _, url := range []string{
		"http://tiles.local/base/14/0/0.pbf",
		"http://tiles.local/base/14/1/0.pbf",
		"http://tiles.local/base/14/2/0.pbf",
	} {
		client.EXPECT().Get(gomock.Any(), url).Return([]byte{0x1a, 0x00}, nil).Times(1)
	}

	o, err := New(client, Config{BaseURL: "http://tiles.local/base/", Concurrency: 3})
	require.NoError(t, err)

	c := &collector{}
	require.NoError(t, o.Run(context.Background(), planTiles(3), c.handle))
	assert.Equal(t, 3, c.count(OutcomeFetched))
}
