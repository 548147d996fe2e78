package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/playvote/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the template when missing, then runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if r.config == nil {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			r.logger.Info("config file not found, creating from template", "path", configPath)
			if err := shared.CreateConfigFile(configPath); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}
			r.logger.Info("config file created", "path", configPath)
		}
	}

	config, err := r.loadConfig(configPath)
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "driver", config.Database.Driver)
	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := shared.AppliedVersions(db)
	if err != nil {
		return fmt.Errorf("failed to read migration state: %w", err)
	}
	r.logger.Info("setup complete", "migrations", len(applied))
	return nil
}

// Rollback reverts the most recently applied migration.
func (r *Runner) Rollback(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	db, err := shared.OpenFromConfig(config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	r.logger.Info("rolled back latest migration")
	return nil
}
