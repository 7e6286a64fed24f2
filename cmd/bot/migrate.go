package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/edgard/supportbot/internal/config"
	"github.com/edgard/supportbot/internal/database"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cfg.Database.Path == "" {
				return errors.New("config: database.path is empty")
			}

			// NewDB applies migrations before returning.
			db, err := database.NewDB(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer database.CloseDB(db)

			version, _, err := database.SchemaVersion(db, cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			slog.Info("Migrations applied", "path", cfg.Database.Path, "schema_version", version)
			return nil
		},
	}
}
