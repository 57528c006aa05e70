package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RomanRochniak/CapstoneGym/internal/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the chat and catalog tables",
		Long: `Runs GORM auto-migration for users, trainers, programs, memberships,
chat sessions and chat messages. Intended for development databases.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
			if err != nil {
				return err
			}
			if sqlDB, err := gdb.DB(); err == nil {
				defer sqlDB.Close()
			}

			if err := db.AutoMigrate(gdb); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables (%s)\n", len(db.AllModels()), cfg.DBDriver)
			return nil
		},
	}
}
