package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/urbanmap/tilesync/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long:  `Database migration tool for managing schema versions. Use with 'up' or 'down' subcommands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}
	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate (0 = all)")
	addConfigFlag(cmd, true)

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		Long: `Apply pending database migrations to bring the schema up to date. The
connection parameters are read from the database section of the config file.`,
		RunE: runMigrateUp,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Migrate the database down",
		Long: `Migrate the database schema down by reverting migrations.
WARNING: This operation can result in data loss. Use with caution.

Examples:
  # Migrate down by 1 step
  tilesync migrate down --config config.yaml --num-steps 1 --yes

  # Migrate down all the way (WARNING: destroys all synced features and run history)
  tilesync migrate down --config config.yaml --yes`,
		RunE: runMigrateDown,
	})
	return cmd
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	m, numSteps, err := setupMigration(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := confirmMigration(cmd, "Apply pending migrations?"); err != nil {
		return err
	}
	if err := executeMigrateUp(m, numSteps); err != nil {
		return err
	}
	displayMigrationVersion(m, false)
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	m, numSteps, err := setupMigration(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	var prompt string
	if numSteps == 0 {
		prompt = "WARNING: This will migrate down ALL steps and may result in complete data loss. Continue?"
	} else {
		prompt = fmt.Sprintf("WARNING: This will migrate down %d step(s) and may result in data loss. Continue?", numSteps)
	}
	if err := confirmMigration(cmd, prompt); err != nil {
		return err
	}

	if err := executeMigrateDown(m, numSteps); err != nil {
		return err
	}
	displayMigrationVersion(m, numSteps == 0)
	return nil
}

// setupMigration loads the configuration and opens a migrator on its database.
func setupMigration(cmd *cobra.Command) (database.Migrator, uint, error) {
	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get num-steps flag: %w", err)
	}
	if numSteps > math.MaxInt {
		return nil, 0, fmt.Errorf("number of steps exceeds maximum allowed value")
	}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, 0, err
	}
	if cfg.Database == nil {
		return nil, 0, fmt.Errorf("database configuration is required")
	}

	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build connection string: %w", err)
	}

	slog.Info("Opening migration connection",
		"host", cfg.Database.Host,
		"database", cfg.Database.Database,
		"user", cfg.Database.User)
	m, err := database.NewFromConnectionString(connString)
	if err != nil {
		return nil, 0, err
	}
	return m, numSteps, nil
}

func closeMigrator(m database.Migrator) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		slog.Error("Error closing migrator", "error", err)
	}
}

// confirmMigration asks for confirmation unless --yes is set.
func confirmMigration(cmd *cobra.Command, prompt string) error {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}
	if yes {
		return nil
	}

	if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
		slog.Info("Migration cancelled")
		return fmt.Errorf("migration cancelled by user")
	}
	return nil
}

// confirm prints prompt and reports whether the answer read from in is yes.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	_, _ = fmt.Fprintf(out, "%s (yes/no): ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func executeMigrateUp(m database.Migrator, numSteps uint) error {
	var err error
	if numSteps == 0 {
		slog.Info("Applying all pending migrations...")
		err = m.Up()
	} else {
		slog.Info("Applying migrations", "steps", numSteps)
		err = m.Steps(int(numSteps)) // #nosec G115 -- bounded in setupMigration
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("No migrations to apply - database is up to date")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("Migration completed successfully")
	return nil
}

func executeMigrateDown(m database.Migrator, numSteps uint) error {
	var err error
	if numSteps == 0 {
		slog.Warn("Migrating down all steps - this will remove all schema!")
		err = m.Down()
	} else {
		slog.Info("Reverting migrations", "steps", numSteps)
		err = m.Steps(-1 * int(numSteps)) // #nosec G115 -- bounded in setupMigration
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("No migrations to revert - database is already at the oldest version")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("Migration completed successfully")
	return nil
}

func displayMigrationVersion(m database.Migrator, removedAll bool) {
	version, dirty, err := m.Version()
	if err != nil {
		if removedAll && errors.Is(err, migrate.ErrNilVersion) {
			slog.Info("Database schema has been completely removed")
		} else {
			slog.Warn("Failed to get migration version", "error", err)
		}
		return
	}

	if dirty {
		slog.Warn("Database is in a dirty state - manual intervention may be required", "version", version)
	} else {
		slog.Info("Current migration version", "version", version)
	}
}
