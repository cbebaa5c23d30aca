package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/urbanmap/tilesync/internal/api"
	"github.com/urbanmap/tilesync/internal/app/storage"
	"github.com/urbanmap/tilesync/internal/config"
	"github.com/urbanmap/tilesync/internal/httpclient"
	pkgsync "github.com/urbanmap/tilesync/internal/sync"
	"github.com/urbanmap/tilesync/internal/sync/coordinator"
	"github.com/urbanmap/tilesync/internal/sync/fetch"
	"github.com/urbanmap/tilesync/internal/telemetry"
	"github.com/urbanmap/tilesync/internal/versions"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// AppOptions is a function that configures the app builder
type AppOptions func(*appConfig) error

// appConfig collects what NewApp needs. Injected components take precedence
// over the ones built from the configuration.
type appConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	storageFactory storage.Factory
	telemetry      *telemetry.Telemetry
	transport      http.RoundTripper

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...AppOptions) (*appConfig, error) {
	cfg := &appConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return cfg, nil
}

// NewApp builds the application: one sync manager per dataset, the schedule
// coordinator and the HTTP server.
func NewApp(ctx context.Context, opts ...AppOptions) (*App, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if err := cfg.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Telemetry comes first so its providers feed every component
	ownsTelemetry := false
	if cfg.telemetry == nil {
		cfg.telemetry, err = telemetry.New(ctx, cfg.config.Telemetry)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		ownsTelemetry = true
	}

	if cfg.storageFactory == nil {
		cfg.storageFactory, err = storage.NewStorageFactory(ctx, cfg.config)
		if err != nil {
			shutdownTelemetry(cfg.telemetry, ownsTelemetry)
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	// Ensure cleanup happens on error
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			cfg.storageFactory.Cleanup()
			shutdownTelemetry(cfg.telemetry, ownsTelemetry)
		}
	}()

	managers, err := buildManagers(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync managers: %w", err)
	}

	components := &AppComponents{
		Managers:        managers,
		SyncCoordinator: coordinator.New(buildSchedules(cfg.config, managers)),
	}

	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	cleanupNeeded = false

	app := &App{
		config:         cfg.config,
		components:     components,
		httpServer:     httpServer,
		storageFactory: cfg.storageFactory,
		ctx:            appCtx,
		cancelFunc:     cancel,
	}
	if ownsTelemetry {
		app.telemetry = cfg.telemetry
	}
	return app, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) AppOptions {
	return func(cfg *appConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) AppOptions {
	return func(cfg *appConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) AppOptions {
	return func(cfg *appConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) AppOptions {
	return func(cfg *appConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithTelemetry injects telemetry providers. The caller keeps ownership and
// shuts them down.
func WithTelemetry(t *telemetry.Telemetry) AppOptions {
	return func(cfg *appConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// WithTransport sets the round tripper used for tile requests
func WithTransport(rt http.RoundTripper) AppOptions {
	return func(cfg *appConfig) error {
		cfg.transport = rt
		return nil
	}
}

// buildManagers creates a sync manager per dataset and recovers runs left
// RUNNING by a previous process.
func buildManagers(ctx context.Context, b *appConfig) ([]*pkgsync.Manager, error) {
	slog.Info("Initializing sync components", "datasets", len(b.config.Datasets))

	runs, err := b.storageFactory.CreateRunStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create run store: %w", err)
	}
	features, err := b.storageFactory.CreateFeatureStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create feature store: %w", err)
	}

	syncMetrics, err := telemetry.NewSyncMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	managers := make([]*pkgsync.Manager, 0, len(b.config.Datasets))
	for i := range b.config.Datasets {
		ds := &b.config.Datasets[i]

		classification, err := ds.Classification()
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
		}

		userAgent := ds.Source.UserAgent
		if userAgent == "" {
			userAgent = versions.UserAgent()
		}
		clientOpts := []httpclient.Option{httpclient.WithUserAgent(userAgent)}
		if b.transport != nil {
			clientOpts = append(clientOpts, httpclient.WithTransport(b.transport))
		}
		client := httpclient.NewDefaultClient(ds.GetTimeout(), clientOpts...)

		orchestrator, err := fetch.New(client, fetch.Config{
			BaseURL:     ds.Source.BaseURL,
			Concurrency: ds.GetConcurrency(),
			Delay:       ds.GetDelay(),
			RateLimit:   ds.GetRateLimit(),
		})
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
		}

		manager, err := pkgsync.New(
			pkgsync.Dataset{
				Name:           ds.Name,
				BBox:           ds.Area.BBox,
				Zoom:           ds.Area.Zoom,
				Classification: classification,
			},
			orchestrator,
			features,
			runs,
			pkgsync.WithMetrics(syncMetrics),
			pkgsync.WithCheckpointInterval(ds.GetCheckpointInterval()),
			pkgsync.WithErrorLogLimit(ds.GetErrorLogLimit()),
		)
		if err != nil {
			return nil, err
		}
		if err := manager.Recover(ctx); err != nil {
			return nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
		}

		slog.Info("Dataset configured",
			"dataset", ds.Name,
			"zoom", ds.Area.Zoom,
			"tiles", manager.TotalTiles(),
			"concurrency", ds.GetConcurrency())
		managers = append(managers, manager)
	}

	slog.Info("Sync components initialized successfully")
	return managers, nil
}

// buildSchedules returns a schedule for every dataset with an interval.
func buildSchedules(cfg *config.Config, managers []*pkgsync.Manager) []coordinator.Schedule {
	var schedules []coordinator.Schedule
	for i, m := range managers {
		ds := cfg.Datasets[i]
		interval := ds.GetScheduleInterval()
		if interval <= 0 {
			continue
		}
		schedules = append(schedules, coordinator.Schedule{
			Service:  m,
			Interval: interval,
			Resume:   ds.Schedule.Resume,
		})
	}
	return schedules
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *appConfig, components *AppComponents) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	httpMetrics, err := telemetry.NewHTTPMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	// Tracing and metrics wrap everything else so they observe every request
	middlewares := append([]func(http.Handler) http.Handler{
		telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
		httpMetrics.Middleware,
	}, b.middlewares...)

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(middlewares...),
		api.WithReadinessCheck(b.storageFactory.CheckReadiness),
	}
	if h := b.telemetry.MetricsHandler(); h != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(h))
	}

	router := api.NewServer(components.services(), serverOpts...)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}

func shutdownTelemetry(t *telemetry.Telemetry, owned bool) {
	if !owned || t == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.Shutdown(ctx); err != nil {
		slog.Warn("Failed to shut down telemetry", "error", err)
	}
}
