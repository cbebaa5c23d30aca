package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/urbanmap/tilesync/internal/app"
)

// defaultGracefulTimeout bounds shutdown, including waiting for active runs
// to save their final state
const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sync API server",
		Long: `Start the HTTP API that starts, stops and reports sync runs of the
configured datasets. Datasets with a schedule are synced periodically.

Flags can also be set through TILESYNC_* environment variables, e.g.
TILESYNC_ADDRESS.`,
		RunE: runServe,
	}
	cmd.Flags().String("address", ":8080", "Address to listen on")
	addConfigFlag(cmd, false)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	v, err := newViper(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(v.GetString("config"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	syncApp, err := app.NewApp(ctx,
		app.WithConfig(cfg),
		app.WithAddress(v.GetString("address")),
	)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- syncApp.Start()
	}()

	select {
	case err := <-errCh:
		if stopErr := syncApp.Stop(defaultGracefulTimeout); stopErr != nil {
			slog.Error("Shutdown failed", "error", stopErr)
		}
		return err
	case <-ctx.Done():
	}

	if err := syncApp.Stop(defaultGracefulTimeout); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}
