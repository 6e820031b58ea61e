package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"consensuscore/internal/config"
	"consensuscore/internal/logging"
	"consensuscore/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "run C1's schema migrations against the configured database and exit",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dbPath != "" {
		cfg.Store.DatabasePath = dbPath
	}

	actor, err := store.NewActor(cfg.Store.DatabasePath, cfg.Store.QueueCapacity)
	if err != nil {
		return fmt.Errorf("open and migrate database: %w", err)
	}
	defer actor.Close()

	logging.Boot("migrations applied at %s", cfg.Store.DatabasePath)
	fmt.Printf("migrations applied at %s\n", cfg.Store.DatabasePath)
	return nil
}
