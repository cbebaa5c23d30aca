package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/urbanmap/tilesync/internal/app"
	"github.com/urbanmap/tilesync/internal/status"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <dataset>",
		Short: "Run one sync of a dataset and wait for it",
		Long: `Run a single sync of the named dataset in the foreground and print the
final run as JSON. An interrupt stops the run cooperatively; the stopped run
can be continued later with --resume.

Examples:
  # Full sync
  tilesync sync roads --config config.yaml

  # Continue the latest stopped run
  tilesync sync roads --config config.yaml --resume`,
		Args: cobra.ExactArgs(1),
		RunE: runSync,
	}
	cmd.Flags().Bool("resume", false, "Continue the latest stopped run of the dataset")
	addConfigFlag(cmd, false)
	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	dataset := args[0]

	v, err := newViper(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(v.GetString("config"))
	if err != nil {
		return err
	}

	syncApp, err := app.NewApp(cmd.Context(), app.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer func() {
		if err := syncApp.Stop(defaultGracefulTimeout); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
	}()

	manager, ok := syncApp.Manager(dataset)
	if !ok {
		return fmt.Errorf("dataset not found: %s", dataset)
	}

	run, err := manager.StartSync(context.Background(), v.GetBool("resume"))
	if err != nil {
		return fmt.Errorf("failed to start sync: %w", err)
	}
	slog.Info("Sync started",
		"dataset", dataset,
		"run_id", run.ID,
		"total_tiles", run.TotalTiles,
		"completed_tiles", run.CompletedTileCount)

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-sigCtx.Done()
		if manager.GetStatus() != nil {
			slog.Info("Interrupt received, stopping sync", "dataset", dataset)
			_, _ = manager.StopSync(context.Background())
		}
	}()

	if err := manager.Wait(context.Background()); err != nil {
		return err
	}

	page, err := manager.GetLogs(context.Background(), 1, 0)
	if err != nil {
		return fmt.Errorf("failed to read final run: %w", err)
	}
	if len(page.Runs) == 0 {
		return fmt.Errorf("run %s was not recorded", run.ID)
	}
	final := page.Runs[0]

	output, err := json.MarshalIndent(final, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format run: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(output))

	if final.Status == status.RunStatusFailed {
		return fmt.Errorf("sync failed")
	}
	return nil
}
