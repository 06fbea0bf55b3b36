package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/reference"
	"github.com/desertthunder/songrip/internal/shared"
	"github.com/desertthunder/songrip/internal/tasks"
	"github.com/desertthunder/songrip/internal/ui"
)

const tuiLogPath = "./tmp/songrip-tui.log"

// playlistTUI runs a playlist job behind the interactive progress view.
//
// The reference is validated before the terminal is taken over so a typo
// fails fast with a normal error message.
func (r *Runner) playlistTUI(ctx context.Context, raw string, concurrency int) (*models.PlaylistResult, error) {
	if _, err := reference.Classify(raw); err != nil {
		return nil, err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	previous := r.logger
	r.SetLogger(fileLogger)
	defer r.SetLogger(previous)

	engine := r.engine(concurrency)
	return ui.Run(ctx, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*models.PlaylistResult, error) {
		return engine.Playlist(ctx, raw, progress)
	})
}
