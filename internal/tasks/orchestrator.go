package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/songrip/internal/formatter"
	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/naming"
	"github.com/desertthunder/songrip/internal/services"
	"github.com/desertthunder/songrip/internal/shared"
)

// DefaultConcurrency bounds simultaneous track pipelines when none is configured.
const DefaultConcurrency = 4

// JobRecorder persists job history. Recording is best effort: failures are
// logged and never affect the job.
type JobRecorder interface {
	StartJob(ctx context.Context, job *models.Job) error
	RecordOutcome(ctx context.Context, jobID string, outcome models.TrackOutcome) error
	FinishJob(ctx context.Context, job *models.Job) error
}

// OrchestratorOpts configures a [PlaylistOrchestrator].
type OrchestratorOpts struct {
	Root        string // download root; playlist directories are created under it
	Concurrency int
	Naming      naming.Policy
	Recorder    JobRecorder
}

// PlaylistOrchestrator resolves a playlist into its tracks and runs a
// [TrackPipeline] per track through a bounded worker pool.
type PlaylistOrchestrator struct {
	manifests *services.ManifestResolver
	pipeline  *TrackPipeline
	opts      OrchestratorOpts
	logger    *log.Logger
}

// NewPlaylistOrchestrator creates a [PlaylistOrchestrator].
func NewPlaylistOrchestrator(manifests *services.ManifestResolver, pipeline *TrackPipeline, opts OrchestratorOpts, logger *log.Logger) *PlaylistOrchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PlaylistOrchestrator{manifests: manifests, pipeline: pipeline, opts: opts, logger: logger}
}

// Run executes a playlist job.
//
// The manifest is written to the playlist directory before any track starts.
// Every eligible track yields exactly one outcome, stored at its manifest
// position regardless of completion order. Track failures never fail the job;
// only a manifest that cannot be resolved or persisted does.
func (o *PlaylistOrchestrator) Run(ctx context.Context, ref models.Reference, progress chan<- ProgressUpdate) (*models.PlaylistResult, error) {
	job := &models.Job{
		ID:        shared.GenerateID(),
		Kind:      models.KindPlaylist,
		Reference: ref.Locator,
		Status:    models.JobRunning,
		StartedAt: time.Now().UTC(),
	}
	logger := shared.WithLogger(o.logger, "job", job.ID[:8])
	o.startJob(ctx, logger, job)

	sendProgress(progress, resolvingManifestUpdate(ref.Locator))
	manifest, err := o.manifests.Resolve(ctx, ref)
	if err != nil {
		o.finishJob(ctx, logger, job, nil, err)
		return nil, err
	}

	dir := filepath.Join(o.opts.Root, o.opts.Naming.PlaylistDirectoryName(manifest.Name))
	if err := os.MkdirAll(dir, 0755); err != nil {
		err = fmt.Errorf("failed to create playlist directory: %w", err)
		o.finishJob(ctx, logger, job, nil, err)
		return nil, err
	}
	if _, err := formatter.WriteManifest(dir, manifest); err != nil {
		o.finishJob(ctx, logger, job, nil, err)
		return nil, err
	}

	job.Name, job.Directory, job.TrackCount = manifest.Name, dir, manifest.TrackCount
	eligible := manifest.Eligible()
	logger = shared.WithLogger(logger, "playlist", manifest.Name)
	logger.Info("manifest written", "dir", dir, "tracks", len(manifest.Tracks), "eligible", len(eligible))
	sendProgress(progress, manifestWrittenUpdate(manifest, len(eligible)))

	outcomes := o.fanOut(ctx, logger, job.ID, manifest, dir, eligible, progress)

	result := &models.PlaylistResult{
		JobID:     job.ID,
		Manifest:  *manifest,
		Outcomes:  outcomes,
		Excluded:  len(manifest.Tracks) - len(eligible),
		Directory: dir,
	}
	result.Tally()

	if _, err := formatter.WriteSummary(result); err != nil {
		logger.Warn("failed to write summary", "err", err)
	}
	o.finishJob(ctx, logger, job, result, nil)
	sendProgress(progress, summaryUpdate(result))

	logger.Info("playlist finished", "succeeded", result.Succeeded, "failed", result.Failed, "excluded", result.Excluded)
	return result, nil
}

// fanOut runs the eligible tracks with at most opts.Concurrency in flight.
// outcomes[i] belongs to eligible[i]; each worker writes only its own slot.
func (o *PlaylistOrchestrator) fanOut(
	ctx context.Context,
	logger *log.Logger,
	jobID string,
	manifest *models.PlaylistManifest,
	dir string,
	eligible []int,
	progress chan<- ProgressUpdate,
) []models.TrackOutcome {
	outcomes := make([]models.TrackOutcome, len(eligible))
	total := len(eligible)
	var done atomic.Int64

	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)

	for slot, idx := range eligible {
		track := manifest.Tracks[idx]
		ordinal := idx + 1
		g.Go(func() error {
			sendProgress(progress, trackStartedUpdate(ordinal, total, track))

			path := o.opts.Naming.TrackPath(dir, ordinal, track.Title, track.Artist)
			outcome := o.pipeline.RunMetadata(ctx, track, path)
			outcome.Ordinal = ordinal
			outcomes[slot] = outcome

			if o.opts.Recorder != nil {
				if err := o.opts.Recorder.RecordOutcome(ctx, jobID, outcome); err != nil {
					logger.Warn("failed to record outcome", "ordinal", ordinal, "err", err)
				}
			}
			sendProgress(progress, trackFinishedUpdate(int(done.Add(1)), total, outcome))
			return nil
		})
	}

	g.Wait()
	return outcomes
}

func (o *PlaylistOrchestrator) startJob(ctx context.Context, logger *log.Logger, job *models.Job) {
	if o.opts.Recorder == nil {
		return
	}
	if err := o.opts.Recorder.StartJob(ctx, job); err != nil {
		logger.Warn("failed to record job start", "err", err)
	}
}

func (o *PlaylistOrchestrator) finishJob(ctx context.Context, logger *log.Logger, job *models.Job, result *models.PlaylistResult, jobErr error) {
	now := time.Now().UTC()
	job.CompletedAt = &now
	if jobErr != nil {
		job.Status, job.ErrorMessage = models.JobFailed, jobErr.Error()
	} else {
		job.Status = models.JobCompleted
		job.Succeeded, job.Failed, job.Excluded = result.Succeeded, result.Failed, result.Excluded
	}

	if o.opts.Recorder == nil {
		return
	}
	if err := o.opts.Recorder.FinishJob(ctx, job); err != nil {
		logger.Warn("failed to record job completion", "err", err)
	}
}
