package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/history"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "History database migration commands",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistoryDB(func(db *gorm.DB, driver string) error {
			if err := history.Migrate(db, driver); err != nil {
				return err
			}
			printMessage("Migrations applied successfully")
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Rollback the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistoryDB(func(db *gorm.DB, driver string) error {
			if err := history.Rollback(db, driver); err != nil {
				return err
			}
			printMessage("Migration rolled back successfully")
			return nil
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current migration version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistoryDB(func(db *gorm.DB, driver string) error {
			version, dirty, err := history.Version(db, driver)
			if err != nil {
				return err
			}
			if version == 0 {
				printMessage("No migrations applied")
				return nil
			}
			printMessage(fmt.Sprintf("Version: %d (dirty: %t)", version, dirty))
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

// withHistoryDB opens the configured history database regardless of
// history.enabled, so the schema can be prepared ahead of a run.
func withHistoryDB(fn func(db *gorm.DB, driver string) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	hcfg := history.ConfigFrom(cfg)
	db, err := history.Open(hcfg)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	defer sqlDB.Close()

	return fn(db, hcfg.Driver)
}
