package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coregx/livehook"
	"github.com/coregx/livehook/adapters/relica"
	"github.com/coregx/livehook/adapters/zlog"
	"github.com/coregx/livehook/cmd/livehook/internal/config"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Only the database section matters here; Twitch and Discord
			// credentials may be absent.
			cfg, err := config.Read(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Database.Validate(); err != nil {
				return fmt.Errorf("invalid database configuration: %w", err)
			}

			logger := zlog.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
			return runMigrate(cfg.Database, logger)
		},
	}
}

func runMigrate(db config.DatabaseConfig, logger livehook.Logger) error {
	if db.Driver == config.DriverMemory {
		logger.Info("In-memory store selected, nothing to migrate")
		return nil
	}
	if db.Prefix != relica.DefaultTablePrefix {
		logger.Warnf("Bundled migrations create %s* tables; prefix %s must be provisioned separately",
			relica.DefaultTablePrefix, db.Prefix)
	}
	return relica.Migrate(db.Driver, db.GetDSN(), logger)
}
