package main

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/aerolink-systems/aerolink-agent/internal/config"
)

var migrateDownSteps int

var migrateCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Apply database migrations and exit",
	RunE:         runMigrate,
	SilenceUsage: true,
}

func init() {
	migrateCmd.Flags().IntVar(&migrateDownSteps, "down", 0, "roll back this many migrations instead of migrating up")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	m, err := migrate.New("file://"+cfg.Database.Migrations, cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	if migrateDownSteps > 0 {
		if err := m.Steps(-migrateDownSteps); err != nil {
			return fmt.Errorf("failed to roll back migrations: %w", err)
		}
		fmt.Printf("rolled back %d migration(s)\n", migrateDownSteps)
		return nil
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("database schema already up to date")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	fmt.Println("database migrations applied")
	return nil
}
