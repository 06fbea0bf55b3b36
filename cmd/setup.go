package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/songrip/internal/shared"
)

// SetupConfig writes a config file populated with the embedded defaults.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		path = r.configPath
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Wrote %s\n", path)
	r.writePlain("  Set credentials.spotify.client_id/client_secret to use the spotify-api provider.\n")
	return nil
}

// SetupDatabase initializes the job history database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Database
	r.logger.Info("initializing database", "path", cfg.Path)

	if dir := filepath.Dir(cfg.Path); dir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := shared.OpenDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", cfg.Path)
	r.writePlain("✓ Database ready at %s\n", cfg.Path)
	return nil
}

// SetupCheck verifies that the interpreter and collaborator scripts can be found.
func (r *Runner) SetupCheck(ctx context.Context, cmd *cli.Command) error {
	cc := r.config.Collaborators
	var problems int

	python, err := shared.ResolvePython(cc.PythonPath)
	if err != nil {
		problems++
		r.writePlain("✗ Python interpreter: %v\n", err)
	} else {
		r.writePlain("✓ Python interpreter: %s\n", python)
	}

	for _, s := range []struct{ name, path string }{
		{"metadata script", cc.MetadataScript},
		{"playlist script", cc.PlaylistScript},
		{"search script", cc.SearchScript},
		{"download script", cc.DownloadScript},
	} {
		if _, err := os.Stat(s.path); err != nil {
			problems++
			r.writePlain("✗ %s: %s not found\n", s.name, s.path)
			continue
		}
		r.writePlain("✓ %s: %s\n", s.name, s.path)
	}

	if _, err := exec.LookPath("ffmpeg"); err != nil {
		r.writePlain("! ffmpeg not found on PATH; audio conversion may fail\n")
	}

	if problems > 0 {
		return fmt.Errorf("%w: %d setup problem(s) found", shared.ErrToolNotInstalled, problems)
	}
	r.writePlain("\nAll collaborators available.\n")
	return nil
}
