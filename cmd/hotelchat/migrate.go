package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syltwerk/hotelchat/internal/adapter/postgres"
	"github.com/syltwerk/hotelchat/internal/adapter/sqlite"
	"github.com/syltwerk/hotelchat/internal/config"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the exchange log schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()
		if err := checkMigratable(cfg); err != nil {
			return err
		}

		ctx := cmd.Context()
		if cfg.Store.Backend == "postgres" {
			err = postgres.RunMigrations(ctx, cfg.Postgres.DSN)
		} else {
			err = sqlite.RunMigrations(ctx, cfg.SQLite.Path)
		}
		if err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if migrateSteps < 1 {
			return errors.New("--steps must be >= 1")
		}
		cfg, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()
		if err := checkMigratable(cfg); err != nil {
			return err
		}

		ctx := cmd.Context()
		if cfg.Store.Backend == "postgres" {
			err = postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, migrateSteps)
		} else {
			err = sqlite.RollbackMigrations(ctx, cfg.SQLite.Path, migrateSteps)
		}
		if err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", migrateSteps)
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()
		if err := checkMigratable(cfg); err != nil {
			return err
		}

		var version int64
		ctx := cmd.Context()
		if cfg.Store.Backend == "postgres" {
			version, err = postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
		} else {
			version, err = sqlite.MigrationVersion(ctx, cfg.SQLite.Path)
		}
		if err != nil {
			return fmt.Errorf("migrate version: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\n", version)
		return nil
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "Number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

func checkMigratable(cfg *config.Config) error {
	if cfg.Store.Backend == "none" {
		return errors.New("store backend \"none\" has no schema to migrate")
	}
	return nil
}
