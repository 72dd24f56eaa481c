package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/database"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/logger"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/config"
	"github.com/Kilat-Pet-Delivery/service-adoption/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, err := logger.NewNamed(cfg.AppEnv, serviceName)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			return database.RunMigrations(postgresConfig(cfg).DatabaseURL(), migrations.FS, log)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, err := logger.NewNamed(cfg.AppEnv, serviceName)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			return database.RollbackMigrations(postgresConfig(cfg).DatabaseURL(), migrations.FS, steps, log)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}
