package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"locallibrary/internal/config"
	"locallibrary/pkg/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the catalog schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Load)
		if err != nil {
			return err
		}
		st, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		slog.Info("schema up to date")
		return st.Close()
	},
}
