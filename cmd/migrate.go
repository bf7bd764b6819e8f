package main

import (
	"errors"
	"fmt"

	"github.com/Vasu1712/listenparty-backend/internal/storage/postgres"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply postgres migrations (DATABASE_URL)",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("migrate: DATABASE_URL is required")
	}
	applied, err := postgres.MigrateUp(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if applied {
		cmd.Println("migrations applied")
	} else {
		cmd.Println("no change")
	}
	return nil
}
