package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/songrip/internal/shared"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}

	configPath := defaultConfigPath
	if v := os.Getenv("SONGRIP_CONFIG"); v != "" {
		configPath = v
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := shared.LoadConfig(configPath)
		if err != nil {
			logger.Fatal("invalid configuration", "path", configPath, "error", err)
		}
		config = loaded
	}
	config.ApplyEnv()
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	if err := config.Validate(); err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collaborators, err := NewCollaborators(ctx, config, logger)
	if err != nil {
		logger.Fatal("failed to initialize collaborators", "error", err)
	}

	runner := NewRunner(RunnerOpts{
		Config:        config,
		ConfigPath:    configPath,
		Collaborators: collaborators,
		Logger:        logger,
	})
	defer runner.Close()

	app := &cli.Command{
		Name:     "songrip",
		Usage:    "Download Spotify tracks and playlists as audio files",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		code := exitCode(logger, err)
		runner.Close()
		stop()
		os.Exit(code)
	}
}
