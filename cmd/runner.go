package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/songrip/internal/naming"
	"github.com/desertthunder/songrip/internal/repositories"
	"github.com/desertthunder/songrip/internal/services"
	"github.com/desertthunder/songrip/internal/shared"
	"github.com/desertthunder/songrip/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config        *shared.Config
	configPath    string
	collaborators Collaborators
	logger        *log.Logger
	output        io.Writer
	db            *sql.DB
	ownsDB        bool
	jobs          *repositories.JobRepository
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config        *shared.Config
	ConfigPath    string
	Collaborators Collaborators
	Logger        *log.Logger
	Output        io.Writer
	// DB is the job history database. When nil it is opened from
	// Config.Database on first use.
	DB *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = defaultConfigPath
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:        opts.Config,
		configPath:    opts.ConfigPath,
		collaborators: opts.Collaborators,
		logger:        opts.Logger,
		output:        opts.Output,
		db:            opts.DB,
	}
	if opts.DB != nil {
		r.jobs = repositories.NewJobRepository(opts.DB)
	}
	return r
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the history database if the runner opened it.
func (r *Runner) Close() {
	if r.ownsDB && r.db != nil {
		r.db.Close()
		r.db, r.jobs, r.ownsDB = nil, nil, false
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		trackCommand, playlistCommand, validateCommand, metadataCommand, searchCommand, fetchCommand, serveCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// history returns the job repository, opening and migrating the database on
// first use.
func (r *Runner) history() (*repositories.JobRepository, error) {
	if r.jobs != nil {
		return r.jobs, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	r.db, r.ownsDB = db, true
	r.jobs = repositories.NewJobRepository(db)
	return r.jobs, nil
}

// recorder returns the history repository as a [tasks.JobRecorder], or nil
// when the database is unavailable. Downloads never fail because of history.
func (r *Runner) recorder() tasks.JobRecorder {
	jobs, err := r.history()
	if err != nil {
		r.logger.Warn("job history disabled", "error", err)
		return nil
	}
	return jobs
}

// engine builds the download engine. A concurrency <= 0 uses the configured value.
func (r *Runner) engine(concurrency int) *tasks.Engine {
	cfg := r.config
	if concurrency <= 0 {
		concurrency = cfg.Pipeline.Concurrency
	}

	logger := r.logger
	policy := naming.NewPolicy(cfg.Downloads.Extension, cfg.Downloads.TrackNumberPadding)
	recorder := r.recorder()

	pipeline := tasks.NewTrackPipeline(
		services.NewMetadataResolver(r.collaborators.Extractor, logger),
		services.NewAudioSourceResolver(r.collaborators.Searcher, logger),
		services.NewAcquisitionService(r.collaborators.Downloader, logger),
		tasks.PipelineOpts{SkipExisting: cfg.Pipeline.SkipExisting, Overwrite: cfg.Pipeline.Overwrite},
		logger,
	)
	orchestrator := tasks.NewPlaylistOrchestrator(
		services.NewManifestResolver(r.collaborators.Extractor, logger),
		pipeline,
		tasks.OrchestratorOpts{
			Root:        cfg.Downloads.Dir,
			Concurrency: concurrency,
			Naming:      policy,
			Recorder:    recorder,
		},
		logger,
	)

	return tasks.NewEngine(pipeline, orchestrator, tasks.EngineOpts{
		Root:     cfg.Downloads.Dir,
		Naming:   policy,
		Recorder: recorder,
	}, logger)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
