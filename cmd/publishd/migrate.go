package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the content and profile tables",
	Long:  `Create the per-category content tables and the profile table in the configured database. Safe to run repeatedly.`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	kind, _, err := cfg.Database()
	if err != nil {
		return err
	}
	if err := cfg.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	slog.Info("database migration complete", "database", kind)
	return nil
}
