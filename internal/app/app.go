// Package app provides application lifecycle management for tilesync.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/urbanmap/tilesync/internal/app/storage"
	"github.com/urbanmap/tilesync/internal/config"
	pkgsync "github.com/urbanmap/tilesync/internal/sync"
	"github.com/urbanmap/tilesync/internal/telemetry"
)

// App encapsulates all components needed to run the sync service.
// It provides lifecycle management and graceful shutdown capabilities.
type App struct {
	config         *config.Config
	components     *AppComponents
	httpServer     *http.Server
	storageFactory storage.Factory
	// telemetry is set only when the app created it
	telemetry *telemetry.Telemetry

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start starts the sync coordinator in the background and serves HTTP.
// It blocks until the HTTP server stops or encounters an error.
func (app *App) Start() error {
	go func() {
		if err := app.components.SyncCoordinator.Start(app.ctx); err != nil {
			slog.Error("Sync coordinator failed", "error", err)
		}
	}()

	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the application within timeout. Schedules end first,
// then active runs are stopped and awaited so their final state is saved,
// then the HTTP server shuts down and storage is released.
func (app *App) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.components.SyncCoordinator.Stop(); err != nil {
		slog.Error("Failed to stop sync coordinator", "error", err)
	}

	var errs []error
	if err := app.StopRuns(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if app.telemetry != nil {
		if err := app.telemetry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	app.storageFactory.Cleanup()

	slog.Info("Server shutdown complete")
	return errors.Join(errs...)
}

// StopRuns requests every active run to stop and waits for them to finish.
func (app *App) StopRuns(ctx context.Context) error {
	for _, m := range app.components.Managers {
		if _, err := m.StopSync(ctx); err != nil && !errors.Is(err, pkgsync.ErrNotRunning) {
			slog.Error("Failed to stop sync run", "dataset", m.Name(), "error", err)
		}
	}

	var errs []error
	for _, m := range app.components.Managers {
		if err := m.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("dataset %s did not stop: %w", m.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Manager returns the sync manager of the named dataset.
func (app *App) Manager(name string) (*pkgsync.Manager, bool) {
	for _, m := range app.components.Managers {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// GetConfig returns the application configuration
func (app *App) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *App) GetHTTPServer() *http.Server {
	return app.httpServer
}
