package tasks

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/naming"
	"github.com/desertthunder/songrip/internal/services"
	"github.com/desertthunder/songrip/internal/shared"
	tu "github.com/desertthunder/songrip/internal/testing"
)

const (
	trackURL    = "https://open.spotify.com/track/0ZwxY7c7xpBlj3vBqW1RyN"
	playlistURL = "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M"
)

// memRecorder is an in-memory [JobRecorder].
type memRecorder struct {
	mu       sync.Mutex
	started  []models.Job
	finished []models.Job
	outcomes map[string][]models.TrackOutcome
}

func (r *memRecorder) StartJob(ctx context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, *job)
	return nil
}

func (r *memRecorder) RecordOutcome(ctx context.Context, jobID string, o models.TrackOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string][]models.TrackOutcome)
	}
	r.outcomes[jobID] = append(r.outcomes[jobID], o)
	return nil
}

func (r *memRecorder) FinishJob(ctx context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, *job)
	return nil
}

type fixture struct {
	root       string
	extractor  *tu.MockExtractor
	searcher   *tu.MockSearcher
	downloader *tu.MockDownloader
	recorder   *memRecorder
	pipeline   *TrackPipeline
	engine     *Engine
}

type fixtureOpts struct {
	concurrency int
	pipeline    PipelineOpts
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()
	logger := shared.NewLogger(io.Discard)

	f := &fixture{
		root:       t.TempDir(),
		extractor:  &tu.MockExtractor{Tracks: map[string]models.TrackMetadata{}},
		searcher:   &tu.MockSearcher{},
		downloader: &tu.MockDownloader{},
		recorder:   &memRecorder{},
	}

	f.pipeline = NewTrackPipeline(
		services.NewMetadataResolver(f.extractor, logger),
		services.NewAudioSourceResolver(f.searcher, logger),
		services.NewAcquisitionService(f.downloader, logger),
		opts.pipeline,
		logger,
	)
	policy := naming.NewPolicy(naming.DefaultExtension, naming.DefaultPadding)
	orchestrator := NewPlaylistOrchestrator(
		services.NewManifestResolver(f.extractor, logger),
		f.pipeline,
		OrchestratorOpts{Root: f.root, Concurrency: opts.concurrency, Naming: policy, Recorder: f.recorder},
		logger,
	)
	f.engine = NewEngine(f.pipeline, orchestrator, EngineOpts{Root: f.root, Naming: policy, Recorder: f.recorder}, logger)
	return f
}

func manifestOf(name string, tracks ...models.TrackMetadata) *models.PlaylistManifest {
	return &models.PlaylistManifest{Name: name, Tracks: tracks}
}

// locatorFor is the source locator [tu.MockSearcher] returns by default.
func locatorFor(title, artist string) string {
	return "https://www.youtube.com/watch?v=" + tu.Key(title, artist)
}
