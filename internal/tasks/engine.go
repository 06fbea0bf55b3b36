package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/naming"
	"github.com/desertthunder/songrip/internal/reference"
	"github.com/desertthunder/songrip/internal/shared"
)

// EngineOpts configures an [Engine].
type EngineOpts struct {
	Root     string
	Naming   naming.Policy
	Recorder JobRecorder
}

// Engine is the entry point shared by the CLI and HTTP surfaces. It validates
// a raw locator before any collaborator runs, then dispatches to the
// single-track pipeline or the playlist orchestrator.
type Engine struct {
	pipeline     *TrackPipeline
	orchestrator *PlaylistOrchestrator
	opts         EngineOpts
	logger       *log.Logger
}

// NewEngine creates an [Engine].
func NewEngine(pipeline *TrackPipeline, orchestrator *PlaylistOrchestrator, opts EngineOpts, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{pipeline: pipeline, orchestrator: orchestrator, opts: opts, logger: logger}
}

// Validate classifies raw without side effects.
func (e *Engine) Validate(raw string) (models.Reference, error) {
	return reference.Classify(raw)
}

// classifyAs classifies raw and rejects references of the wrong kind.
func classifyAs(raw string, kind models.ReferenceKind) (models.Reference, error) {
	ref, err := reference.Classify(raw)
	if err != nil {
		return ref, err
	}
	if ref.Kind != kind {
		return models.Reference{}, &reference.ValidationError{
			Reference: ref.Locator,
			Reason:    reference.ReasonUnsupportedResource,
			Detail:    fmt.Sprintf("expected a %s reference, got %s", kind, ref.Resource),
		}
	}
	return ref, nil
}

// Track downloads a single track into the download root as "Title - Artist.ext".
//
// A rejected locator returns a [*reference.ValidationError] and invokes no
// collaborator. A pipeline failure returns the outcome together with its cause.
func (e *Engine) Track(ctx context.Context, raw string) (models.TrackOutcome, error) {
	ref, err := classifyAs(raw, models.KindTrack)
	if err != nil {
		return models.TrackOutcome{}, err
	}

	if err := os.MkdirAll(e.opts.Root, 0755); err != nil {
		return models.TrackOutcome{}, fmt.Errorf("failed to create download directory: %w", err)
	}

	job := &models.Job{
		ID:        shared.GenerateID(),
		Kind:      models.KindTrack,
		Reference: ref.Locator,
		Status:    models.JobRunning,
		Directory: e.opts.Root,
		StartedAt: time.Now().UTC(),
	}
	logger := shared.WithLogger(e.logger, "job", job.ID[:8])
	e.record(logger, "start", func() error { return e.opts.Recorder.StartJob(ctx, job) })

	outcome := e.pipeline.RunReference(ctx, ref, func(md models.TrackMetadata) string {
		return filepath.Join(e.opts.Root, e.opts.Naming.SingleFileName(md.Title, md.Artist))
	})
	outcome.Ordinal = 1

	job.TrackCount = 1
	if outcome.Track.Complete() {
		job.Name = outcome.Track.String()
	}
	now := time.Now().UTC()
	job.CompletedAt = &now
	if outcome.OK() {
		job.Status, job.Succeeded = models.JobCompleted, 1
	} else {
		job.Status, job.Failed, job.ErrorMessage = models.JobFailed, 1, outcome.Reason
	}
	e.record(logger, "outcome", func() error { return e.opts.Recorder.RecordOutcome(ctx, job.ID, outcome) })
	e.record(logger, "finish", func() error { return e.opts.Recorder.FinishJob(ctx, job) })

	if !outcome.OK() {
		return outcome, outcome.Err
	}
	logger.Info("track finished", "path", outcome.OutputPath, "bytes", outcome.BytesWritten, "skipped", outcome.Skipped)
	return outcome, nil
}

// Playlist downloads every eligible track of a playlist, album or show.
func (e *Engine) Playlist(ctx context.Context, raw string, progress chan<- ProgressUpdate) (*models.PlaylistResult, error) {
	ref, err := classifyAs(raw, models.KindPlaylist)
	if err != nil {
		return nil, err
	}
	return e.orchestrator.Run(ctx, ref, progress)
}

// Metadata resolves the metadata of a track reference without searching or
// downloading anything.
func (e *Engine) Metadata(ctx context.Context, raw string) (*models.TrackMetadata, error) {
	ref, err := classifyAs(raw, models.KindTrack)
	if err != nil {
		return nil, err
	}
	return e.pipeline.metadata.Resolve(ctx, ref)
}

// Source maps a title and artist to an audio source without downloading it.
func (e *Engine) Source(ctx context.Context, md models.TrackMetadata) (*models.AudioSource, error) {
	return e.pipeline.sources.Resolve(ctx, md)
}

func (e *Engine) record(logger *log.Logger, what string, fn func() error) {
	if e.opts.Recorder == nil {
		return
	}
	if err := fn(); err != nil {
		logger.Warn("failed to record job "+what, "err", err)
	}
}
