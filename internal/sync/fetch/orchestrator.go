// Package fetch downloads planned tiles from the tile host with bounded
// concurrency and hands every result to a caller supplied handler.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb/maptile"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"

	"github.com/urbanmap/tilesync/internal/httpclient"
	"github.com/urbanmap/tilesync/internal/otel"
	"github.com/urbanmap/tilesync/internal/tiles"
)

const (
	// DefaultConcurrency is the number of tiles fetched at once
	DefaultConcurrency = 4

	// DefaultDelay is the pause a worker takes before each request
	DefaultDelay = 100 * time.Millisecond
)

// Outcome classifies a tile fetch.
type Outcome int

const (
	// OutcomeFetched means the host returned tile data
	OutcomeFetched Outcome = iota
	// OutcomeNotFound means the host has no data for the tile
	OutcomeNotFound
	// OutcomeError means the request failed
	OutcomeError
)

// String returns the outcome name used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeFetched:
		return "fetched"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "error"
	}
}

// Result is the outcome of fetching one tile.
type Result struct {
	Tile    maptile.Tile
	Outcome Outcome
	Data    []byte
	Err     error
}

// Handler processes one Result. It is called concurrently from up to
// Concurrency workers. A returned error is fatal and ends the run.
type Handler func(ctx context.Context, result Result) error

// Config holds orchestrator tuning.
type Config struct {
	BaseURL     string
	Concurrency int
	Delay       time.Duration
	// RateLimit caps requests per second across all workers. Zero disables it.
	RateLimit int
	// Tracer records a span per tile. Defaults to the global provider.
	Tracer trace.Tracer
}

// Orchestrator fetches tiles with at most Concurrency requests in flight.
type Orchestrator struct {
	client  httpclient.Client
	baseURL string
	workers int
	delay   time.Duration
	limiter ratelimit.Limiter
	tracer  trace.Tracer
}

// New creates an Orchestrator.
func New(client httpclient.Client, cfg Config) (*Orchestrator, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("tile base URL is required")
	}
	if cfg.Delay < 0 {
		return nil, fmt.Errorf("delay must not be negative: %s", cfg.Delay)
	}

	o := &Orchestrator{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		workers: cfg.Concurrency,
		delay:   cfg.Delay,
		limiter: ratelimit.NewUnlimited(),
		tracer:  cfg.Tracer,
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer("tilesync/fetch")
	}
	if o.workers <= 0 {
		o.workers = DefaultConcurrency
	}
	if cfg.RateLimit > 0 {
		o.limiter = ratelimit.New(cfg.RateLimit, ratelimit.WithoutSlack)
	}
	return o, nil
}

// TileURL returns the address of a tile: {baseURL}/{z}/{x}/{y}.pbf
func (o *Orchestrator) TileURL(t maptile.Tile) string {
	return fmt.Sprintf("%s/%d/%d/%d.pbf", o.baseURL, t.Z, t.X, t.Y)
}

// Run fetches every tile and calls handle with each result. No new tile is
// started once ctx is cancelled; requests already in flight finish on a
// context detached from cancellation and bounded by the client timeout, and
// their results are still handled. Run returns when all started work has
// finished. The returned error is the first handler error or worker panic.
func (o *Orchestrator) Run(ctx context.Context, planned []maptile.Tile, handle Handler) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for _, tile := range planned {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic while processing tile %s: %v", tiles.Key(tile), r)
				}
			}()
			return o.process(gctx, tile, handle)
		})
	}

	return g.Wait()
}

func (o *Orchestrator) process(ctx context.Context, tile maptile.Tile, handle Handler) error {
	if o.delay > 0 {
		timer := time.NewTimer(o.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
	o.limiter.Take()
	if ctx.Err() != nil {
		return nil
	}

	// Cancellation stops dispatch only; a started request runs to completion.
	workCtx := context.WithoutCancel(ctx)
	workCtx, span := otel.StartSpan(workCtx, o.tracer, "fetch.tile",
		trace.WithAttributes(otel.AttrTile.String(tiles.Key(tile))))
	defer span.End()

	result := o.fetch(workCtx, tile)
	span.SetAttributes(otel.AttrTileOutcome.String(result.Outcome.String()))
	otel.RecordError(span, result.Err)

	return handle(workCtx, result)
}

func (o *Orchestrator) fetch(ctx context.Context, tile maptile.Tile) Result {
	data, err := o.client.Get(ctx, o.TileURL(tile))
	switch {
	case err == nil:
		return Result{Tile: tile, Outcome: OutcomeFetched, Data: data}
	case errors.Is(err, httpclient.ErrNotFound):
		return Result{Tile: tile, Outcome: OutcomeNotFound}
	default:
		return Result{Tile: tile, Outcome: OutcomeError, Err: err}
	}
}
