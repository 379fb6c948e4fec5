package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/flacsync/internal/shared"
	"github.com/desertthunder/flacsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// SetupDatabase creates the database file and runs migrations. With --rollback the
// most recent migration is undone afterwards.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	path := r.config.DatabasePath()
	r.logger.Info("initializing database", "path", path)

	db, err := r.openDatabase()
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(db); err != nil {
			return err
		}
		version, err := shared.SchemaVersion(db)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		r.logger.Info("rolled back migration", "version", version)
		r.writePlain("%s Rolled back %s to schema v%d\n", ui.Styles.OK("✓"), path, version)
		return nil
	}

	version, err := shared.SchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", path)
	r.writePlain("%s Database ready at %s (schema v%d)\n", ui.Styles.OK("✓"), path, version)
	return nil
}

// SetupConfig writes the example configuration to --output, or to --config when unset.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if path == "" {
		path = r.configPath
	}
	if path == "" {
		return fmt.Errorf("%w: output path", shared.ErrMissingArgument)
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("%s Config written to %s\n", ui.Styles.OK("✓"), path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret (or SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET)\n")
	r.writePlain("2. Run 'flacsync setup database'\n")
	r.writePlain("3. Run 'flacsync download run --playlist <url>'\n")
	return nil
}
