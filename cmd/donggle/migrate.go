package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/store/postgres"
)

// migrateCmd applies the embedded PostgreSQL migrations.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  `Apply every pending PostgreSQL migration and print the resulting schema version.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := validConfig(configPath)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg.Logging)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		db, err := postgres.Connect(ctx, cfg.Database, log.Component("postgres"))
		if err != nil {
			return err
		}
		defer db.Close()

		if err := postgres.Migrate(ctx, db, log); err != nil {
			return err
		}
		v, err := postgres.MigrationVersion(ctx, db)
		if err != nil {
			return err
		}

		log.Info("migrations applied", logger.Field{Key: "version", Value: v})
		fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", v)
		return nil
	},
}
