package tasks

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/services"
	"github.com/desertthunder/songrip/internal/shared"
)

// State is a step of the linear track pipeline.
type State int

const (
	StateStart State = iota
	StateMetadataResolved
	StateSourceResolved
	StateAcquired
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateMetadataResolved:
		return "metadata_resolved"
	case StateSourceResolved:
		return "source_resolved"
	case StateAcquired:
		return "acquired"
	case StateFailed:
		return "failed"
	default:
		return ""
	}
}

// PipelineOpts controls re-run behavior of a [TrackPipeline].
type PipelineOpts struct {
	// SkipExisting treats a non-empty file at the target path as already
	// acquired; no collaborator is invoked for that track.
	SkipExisting bool
	// Overwrite replaces an existing file instead of failing acquisition.
	Overwrite bool
}

// TrackPipeline runs metadata → source → acquisition for one track. Stages are
// never retried or skipped; the first failure is terminal.
type TrackPipeline struct {
	metadata *services.MetadataResolver
	sources  *services.AudioSourceResolver
	acquirer *services.AcquisitionService
	opts     PipelineOpts
	logger   *log.Logger
}

// NewTrackPipeline creates a [TrackPipeline].
func NewTrackPipeline(
	metadata *services.MetadataResolver,
	sources *services.AudioSourceResolver,
	acquirer *services.AcquisitionService,
	opts PipelineOpts,
	logger *log.Logger,
) *TrackPipeline {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &TrackPipeline{
		metadata: metadata,
		sources:  sources,
		acquirer: acquirer,
		opts:     opts,
		logger:   logger,
	}
}

// RunReference runs the full pipeline from a track reference. pathFor derives
// the output path once metadata is known.
func (p *TrackPipeline) RunReference(ctx context.Context, ref models.Reference, pathFor func(models.TrackMetadata) string) models.TrackOutcome {
	p.logger.Debug("pipeline", "state", StateStart, "ref", ref.Locator)

	md, err := p.metadata.Resolve(ctx, ref)
	if err != nil {
		p.logger.Warn("metadata failed", "ref", ref.Locator, "state", StateFailed, "err", err)
		return models.FailedWith(models.TrackMetadata{}, models.StageMetadata, err)
	}
	return p.RunMetadata(ctx, *md, pathFor(*md))
}

// RunMetadata runs the pipeline for a track whose metadata is already known,
// starting at the metadata-resolved state.
func (p *TrackPipeline) RunMetadata(ctx context.Context, md models.TrackMetadata, outputPath string) models.TrackOutcome {
	logger := shared.WithLogger(p.logger, "track", md.String())
	logger.Debug("pipeline", "state", StateMetadataResolved, "path", outputPath)

	if p.opts.SkipExisting && !p.opts.Overwrite {
		if size, err := services.FileSize(outputPath); err == nil && size > 0 {
			logger.Info("already present, skipping", "path", outputPath)
			o := models.Succeeded(md, outputPath, size)
			o.Skipped = true
			return o
		}
	}

	src, err := p.sources.Resolve(ctx, md)
	if err != nil {
		logger.Warn("source resolution failed", "state", StateFailed, "err", err)
		return failure(md, err)
	}
	logger.Debug("pipeline", "state", StateSourceResolved, "locator", src.Locator)

	res, err := p.acquirer.Acquire(ctx, *src, outputPath, p.opts.Overwrite)
	if err != nil {
		logger.Warn("acquisition failed", "state", StateFailed, "err", err)
		return failure(md, err)
	}

	logger.Debug("pipeline", "state", StateAcquired, "bytes", res.BytesWritten)
	return models.Succeeded(md, res.Path, res.BytesWritten)
}

// failure converts a stage error into a failed outcome.
func failure(md models.TrackMetadata, err error) models.TrackOutcome {
	stage, ok := services.StageOf(err)
	if !ok {
		stage = models.StageAcquisition
		if errors.Is(err, shared.ErrNoSourceFound) {
			stage = models.StageSourceResolution
		}
	}
	return models.FailedWith(md, stage, err)
}
