package main

import (
	"fmt"

	"tradeline/internal/config"
	"tradeline/pkg/utils"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the embedded schema",
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "postgres:// URL (defaults to the DB_* environment)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, dsn, utils.MigrateUp)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, dsn, utils.MigrateDown)
		},
	})
	return cmd
}

func runMigrate(cmd *cobra.Command, dsn string, step func(string) (uint, error)) error {
	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		dsn = cfg.PostgresURL()
	}

	version, err := step(dsn)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
	return nil
}
