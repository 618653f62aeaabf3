package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devasignhq/devasign-api-sub002/internal/config"
	"github.com/devasignhq/devasign-api-sub002/internal/db"
	"github.com/devasignhq/devasign-api-sub002/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withDatabase(func(conn *db.DB) error {
			if err := conn.RunMigrations(); err != nil {
				return err
			}
			successColor.Println("Database schema is up to date.")
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withDatabase(func(conn *db.DB) error {
			if err := conn.MigrateDown(); err != nil {
				return err
			}
			warnColor.Println("All migrations rolled back.")
			return nil
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withDatabase(func(conn *db.DB) error {
			version, dirty, err := conn.Version()
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(map[string]any{"version": version, "dirty": dirty})
			}
			fmt.Printf("version %d", version)
			if dirty {
				errorColor.Print(" (dirty)")
			}
			fmt.Println()
			return nil
		})
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

// withDatabase connects without applying migrations, unlike the service injector.
func withDatabase(fn func(conn *db.DB) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	conn, cleanup, err := db.NewDatabase(&cfg.Database, logger.NewLogger(cfg.Logging, nil))
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(conn)
}
