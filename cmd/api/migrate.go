package main

import (
	"errors"
	"fmt"

	pg "slot-swapper/internal/adapters/storage/postgres"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Crea/actualiza el esquema de Postgres y sale",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.DBDSN == "" {
				return errors.New("DB_DSN is required")
			}

			db, err := pg.Open(cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			if err := pg.RunMigrations(cmd.Context(), db); err != nil {
				return err
			}
			newLogger(cfg).Info("migrations applied", nil)
			return nil
		},
	}
}
