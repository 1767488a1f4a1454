package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/sofatutor/portfolio-api/internal/config"
	"github.com/sofatutor/portfolio-api/internal/database"
	"github.com/sofatutor/portfolio-api/internal/database/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// migrateCmd is the parent command for migration operations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
	Long:  `Apply, roll back and inspect schema migrations for the configured database.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last migration",
	RunE:  runMigrateDown,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE:  runMigrateStatus,
}

// migrateVersionCmd prints only the current version
var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current migration version",
	Long:  `Display the current migration version. Returns 0 if no migrations have been applied.`,
	RunE:  runMigrateVersion,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd, migrateVersionCmd)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	return withMigrationRunner(cmd, func(ctx context.Context, runner *migrations.MigrationRunner) error {
		applied, err := runner.Up(ctx)
		if err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s)\n", applied)
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	return withMigrationRunner(cmd, func(ctx context.Context, runner *migrations.MigrationRunner) error {
		if err := runner.Down(ctx); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Migration rolled back successfully")
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	return withMigrationRunner(cmd, func(ctx context.Context, runner *migrations.MigrationRunner) error {
		statuses, err := runner.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tSOURCE")
		for _, st := range statuses {
			applied := "-"
			if !st.AppliedAt.IsZero() {
				applied = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", st.Source.Version, st.State, applied, st.Source.Path)
		}
		return w.Flush()
	})
}

func runMigrateVersion(cmd *cobra.Command, args []string) error {
	return withMigrationRunner(cmd, func(ctx context.Context, runner *migrations.MigrationRunner) error {
		version, err := runner.Version(ctx)
		if err != nil {
			return fmt.Errorf("failed to get migration version: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Current migration version: %d\n", version)
		return nil
	})
}

// withMigrationRunner opens the configured database without auto-migrating
// and hands a runner to fn.
func withMigrationRunner(cmd *cobra.Command, fn func(context.Context, *migrations.MigrationRunner) error) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	dbConfig := buildDatabaseConfig(cfg, zap.NewNop())
	dbConfig.SkipMigrations = true

	db, err := database.New(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to close database connection: %v\n", closeErr)
		}
	}()

	runner, err := migrations.NewMigrationRunner(db.DB(), string(dbConfig.Driver))
	if err != nil {
		return err
	}
	return fn(cmd.Context(), runner)
}
