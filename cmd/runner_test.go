package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/songrip/internal/formatter"
	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/reference"
	"github.com/desertthunder/songrip/internal/shared"
	tu "github.com/desertthunder/songrip/internal/testing"
)

const (
	trackURL    = "https://open.spotify.com/track/0ZwxY7c7xpBlj3vBqW1RyN"
	playlistURL = "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M"
)

type fakeFetcher struct {
	calls int
	err   error
}

func (f *fakeFetcher) SearchAndDownload(ctx context.Context, title, artist, outputDir string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(outputDir, fmt.Sprintf("%s - %s.mp3", title, artist))
	return path, os.WriteFile(path, []byte("audio"), 0644)
}

type harness struct {
	runner     *Runner
	output     *bytes.Buffer
	root       string
	extractor  *tu.MockExtractor
	searcher   *tu.MockSearcher
	downloader *tu.MockDownloader
	fetcher    *fakeFetcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return newHarnessWithDB(t, db)
}

func newHarnessWithDB(t *testing.T, db *sql.DB) *harness {
	t.Helper()

	h := &harness{
		output:     &bytes.Buffer{},
		root:       t.TempDir(),
		extractor:  &tu.MockExtractor{Tracks: map[string]models.TrackMetadata{}},
		searcher:   &tu.MockSearcher{},
		downloader: &tu.MockDownloader{},
		fetcher:    &fakeFetcher{},
	}

	config := shared.DefaultConfig()
	config.Downloads.Dir = h.root
	config.Database.Path = filepath.Join(t.TempDir(), "songrip.db")
	config.Pipeline.Concurrency = 2

	h.runner = NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: filepath.Join(t.TempDir(), "config.toml"),
		Collaborators: Collaborators{
			Extractor:  h.extractor,
			Searcher:   h.searcher,
			Downloader: h.downloader,
			Fetcher:    h.fetcher,
		},
		Logger: shared.NewLogger(io.Discard),
		Output: h.output,
		DB:     db,
	})
	t.Cleanup(h.runner.Close)
	return h
}

// run executes the CLI with args as if typed after the program name.
func (h *harness) run(args ...string) error {
	app := &cli.Command{
		Name:     "songrip",
		Writer:   io.Discard,
		Commands: h.runner.register(),
	}
	return app.Run(context.Background(), append([]string{"songrip"}, args...))
}

func TestNewRunner(t *testing.T) {
	t.Run("with nil options uses defaults", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})

		if runner.config == nil {
			t.Error("expected default config to be set")
		}
		if runner.logger == nil {
			t.Error("expected default logger to be set")
		}
		if runner.output != os.Stdout {
			t.Error("expected output to default to stdout")
		}
		if runner.configPath != defaultConfigPath {
			t.Errorf("expected config path %s, got %s", defaultConfigPath, runner.configPath)
		}
		if runner.jobs != nil {
			t.Error("expected history to open lazily")
		}
	})

	t.Run("registers every command", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		names := map[string]bool{}
		for _, c := range runner.register() {
			names[c.Name] = true
		}
		for _, want := range []string{"track", "playlist", "validate", "metadata", "search", "fetch", "serve", "history", "setup"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})

	t.Run("opens history database on first use", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Database.Path = filepath.Join(t.TempDir(), "history.db")
		runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard)})
		defer runner.Close()

		jobs, err := runner.history()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if jobs == nil || !runner.ownsDB {
			t.Error("expected runner to own the opened database")
		}
		tu.AssertFileExists(t, config.Database.Path)
	})
}

func TestTrackCommand(t *testing.T) {
	t.Run("downloads and reports the file", func(t *testing.T) {
		h := newHarness(t)
		h.extractor.Tracks[trackURL] = models.TrackMetadata{Title: "Rude", Artist: "Magic!"}

		if err := h.run("track", trackURL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(h.root, "Rude - Magic!.mp3"))
		if !strings.Contains(h.output.String(), "Downloaded Magic! - Rude") {
			t.Errorf("unexpected output: %s", h.output.String())
		}
	})

	t.Run("json output carries the outcome", func(t *testing.T) {
		h := newHarness(t)
		h.extractor.Tracks[trackURL] = models.TrackMetadata{Title: "Rude", Artist: "Magic!"}
		h.downloader.Size = 2048

		if err := h.run("track", "--json", trackURL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var o models.TrackOutcome
		if err := json.Unmarshal(h.output.Bytes(), &o); err != nil {
			t.Fatalf("invalid JSON output: %v", err)
		}
		if o.Status != models.OutcomeSucceeded || o.BytesWritten != 2048 {
			t.Errorf("unexpected outcome: %+v", o)
		}
	})

	t.Run("second run skips existing file", func(t *testing.T) {
		h := newHarness(t)
		h.extractor.Tracks[trackURL] = models.TrackMetadata{Title: "Rude", Artist: "Magic!"}

		if err := h.run("track", trackURL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := h.run("track", trackURL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := h.downloader.Calls.Load(); got != 1 {
			t.Errorf("expected one download, got %d", got)
		}
		if !strings.Contains(h.output.String(), "already present") {
			t.Errorf("expected skip message, got: %s", h.output.String())
		}
	})

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "missing url", args: []string{"track"}, want: shared.ErrMissingArgument},
		{name: "playlist url", args: []string{"track", playlistURL}},
		{name: "unsupported host", args: []string{"track", "https://example.com/track/1"}},
	}

	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			h := newHarness(t)

			err := h.run(tt.args...)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if h.extractor.TrackCalls.Load() != 0 || h.downloader.Calls.Load() != 0 {
				t.Error("no collaborator should run for a rejected reference")
			}
		})
	}
}

func TestPlaylistCommand(t *testing.T) {
	manifest := &models.PlaylistManifest{
		Name:       "Road Trip",
		TrackCount: 3,
		Tracks: []models.TrackMetadata{
			{Title: "Rude", Artist: "Magic!"},
			{Title: "Missing"},
			{Title: "Hello", Artist: "Adele"},
		},
	}

	t.Run("downloads tracks and writes a report", func(t *testing.T) {
		h := newHarness(t)
		h.extractor.Manifest = manifest
		h.searcher.Errs = map[string]error{tu.Key("Hello", "Adele"): shared.ErrNoSourceFound}

		if err := h.run("playlist", "--report", "csv", playlistURL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		dir := filepath.Join(h.root, "Road Trip")
		tu.AssertDirExists(t, dir)
		tu.AssertFileExists(t, filepath.Join(dir, "01 - Rude - Magic!.mp3"))
		tu.AssertNoFile(t, filepath.Join(dir, "03 - Hello - Adele.mp3"))

		report := tu.MustReadFile(t, filepath.Join(dir, "report.csv"))
		if !strings.Contains(report, "Hello") || !strings.Contains(report, "Rude") {
			t.Errorf("report missing tracks: %s", report)
		}

		out := h.output.String()
		for _, want := range []string{"Playlist Complete!", "1 tracks downloaded successfully, 1 tracks failed", "source-resolution"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got: %s", want, out)
			}
		}
	})

	t.Run("json summary", func(t *testing.T) {
		h := newHarness(t)
		h.extractor.Manifest = manifest

		if err := h.run("playlist", "--json", "--concurrency", "1", playlistURL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var s formatter.Summary
		if err := json.Unmarshal(h.output.Bytes(), &s); err != nil {
			t.Fatalf("invalid JSON output: %v\n%s", err, h.output.String())
		}
		if s.PlaylistName != "Road Trip" || s.SuccessfulDownloads != 2 || s.Excluded != 1 {
			t.Errorf("unexpected summary: %+v", s)
		}
		if h.downloader.MaxInFlight.Load() > 1 {
			t.Errorf("expected at most one download in flight, got %d", h.downloader.MaxInFlight.Load())
		}
	})

	t.Run("rejects unknown report format", func(t *testing.T) {
		h := newHarness(t)
		h.extractor.Manifest = manifest

		err := h.run("playlist", "--report", "pdf", playlistURL)
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
		if h.extractor.PlaylistCalls.Load() != 0 {
			t.Error("manifest should not be fetched")
		}
	})

	t.Run("manifest failure", func(t *testing.T) {
		h := newHarness(t)
		h.extractor.ManifestErr = shared.ErrCollaboratorFailed

		err := h.run("playlist", playlistURL)
		if !errors.Is(err, shared.ErrCollaboratorFailed) {
			t.Fatalf("expected ErrCollaboratorFailed, got %v", err)
		}
		if got := tu.CountFiles(t, h.root, ".mp3"); got != 0 {
			t.Errorf("expected no files, got %d", got)
		}
	})
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid playlist", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("validate", "--json", playlistURL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var out map[string]any
		if err := json.Unmarshal(h.output.Bytes(), &out); err != nil {
			t.Fatalf("invalid JSON output: %v", err)
		}
		if out["valid"] != true || out["kind"] != "playlist" || out["id"] != "37i9dQZF1DXcBWIGoYBM5M" {
			t.Errorf("unexpected output: %v", out)
		}
	})

	t.Run("invalid host reports reason", func(t *testing.T) {
		h := newHarness(t)

		err := h.run("validate", "--json", "https://example.com/track/1")
		if reason, ok := reference.ReasonOf(err); !ok || reason != reference.ReasonUnsupportedHost {
			t.Fatalf("expected unsupported-host, got %v", err)
		}
		if !strings.Contains(h.output.String(), `"reason": "unsupported-host"`) {
			t.Errorf("expected reason in output, got: %s", h.output.String())
		}
	})

	t.Run("plain output", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("validate", trackURL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(h.output.String(), "Valid track reference") {
			t.Errorf("unexpected output: %s", h.output.String())
		}
	})
}

func TestMetadataCommand(t *testing.T) {
	h := newHarness(t)
	h.extractor.Tracks[trackURL] = models.TrackMetadata{Title: "Rude", Artist: "Magic!", Album: "Don't Kill the Magic", DurationMs: 224840}

	if err := h.run("metadata", trackURL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := h.output.String()
	for _, want := range []string{"Title: Rude", "Artist: Magic!", "Album: Don't Kill the Magic", "Duration: 3:44"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output: %s", want, out)
		}
	}
	if h.searcher.Calls.Load() != 0 || h.downloader.Calls.Load() != 0 {
		t.Error("metadata must not search or download")
	}
	tu.AssertNoFile(t, filepath.Join(h.root, "Rude - Magic!.mp3"))
}

func TestSearchCommand(t *testing.T) {
	h := newHarness(t)
	h.searcher.Sources = map[string]models.AudioSource{
		tu.Key("Rude", "Magic!"): {Locator: "https://www.youtube.com/watch?v=PIh2xe4jnpk", ResolvedTitle: "MAGIC! - Rude"},
	}

	if err := h.run("search", "--json", "--title", "Rude", "--artist", "Magic!"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var src models.AudioSource
	if err := json.Unmarshal(h.output.Bytes(), &src); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if src.Locator != "https://www.youtube.com/watch?v=PIh2xe4jnpk" {
		t.Errorf("unexpected source %+v", src)
	}
	if h.downloader.Calls.Load() != 0 {
		t.Error("search must not download")
	}
}

func TestFetchCommand(t *testing.T) {
	t.Run("downloads into dir", func(t *testing.T) {
		h := newHarness(t)
		dir := filepath.Join(t.TempDir(), "out")

		if err := h.run("fetch", "--title", "Rude", "--artist", "Magic!", "--dir", dir); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(dir, "Rude - Magic!.mp3"))
	})

	t.Run("propagates tool errors", func(t *testing.T) {
		h := newHarness(t)
		h.fetcher.err = shared.ErrToolNotInstalled

		err := h.run("fetch", "--title", "Rude", "--artist", "Magic!")
		if !errors.Is(err, shared.ErrToolNotInstalled) {
			t.Fatalf("expected ErrToolNotInstalled, got %v", err)
		}
	})

	t.Run("requires title and artist", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("fetch", "--title", "Rude"); err == nil {
			t.Fatal("expected error, got nil")
		}
		if h.fetcher.calls != 0 {
			t.Error("fetcher should not run")
		}
	})
}

func TestHistoryCommand(t *testing.T) {
	h := newHarness(t)
	h.extractor.Tracks[trackURL] = models.TrackMetadata{Title: "Rude", Artist: "Magic!"}

	if err := h.run("history"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(h.output.String(), "No jobs recorded yet.") {
		t.Errorf("expected empty history, got: %s", h.output.String())
	}

	if err := h.run("track", trackURL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("lists jobs", func(t *testing.T) {
		h.output.Reset()
		if err := h.run("history"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := h.output.String()
		if !strings.Contains(out, "#1") || !strings.Contains(out, "completed") {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("shows one job as json", func(t *testing.T) {
		h.output.Reset()
		if err := h.run("history", "--json", "1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var v jobView
		if err := json.Unmarshal(h.output.Bytes(), &v); err != nil {
			t.Fatalf("invalid JSON output: %v", err)
		}
		if v.Number != 1 || v.Kind != "track" || v.Status != models.JobCompleted {
			t.Errorf("unexpected job: %+v", v)
		}
		if len(v.Tracks) != 1 || v.Tracks[0].Track.Title != "Rude" {
			t.Errorf("expected one recorded track, got %+v", v.Tracks)
		}
	})

	t.Run("unknown job", func(t *testing.T) {
		if err := h.run("history", "42"); !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound, got %v", err)
		}
	})

	t.Run("deletes a job", func(t *testing.T) {
		if err := h.run("history", "--delete", "1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := h.run("history", "1"); !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound after delete, got %v", err)
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("config writes defaults once", func(t *testing.T) {
		h := newHarness(t)
		path := filepath.Join(t.TempDir(), "nested", "config.toml")

		if err := h.run("setup", "config", "--config", path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tu.AssertFileExists(t, path)

		loaded, err := shared.LoadConfig(path)
		if err != nil {
			t.Fatalf("written config does not load: %v", err)
		}
		if loaded.Pipeline.Concurrency != 4 {
			t.Errorf("expected default concurrency 4, got %d", loaded.Pipeline.Concurrency)
		}

		if err := h.run("setup", "config", "--config", path); err == nil {
			t.Error("expected error when config already exists")
		}
	})

	t.Run("database creates file", func(t *testing.T) {
		h := newHarness(t)
		h.runner.config.Database.Path = filepath.Join(t.TempDir(), "data", "songrip.db")

		if err := h.run("setup", "database"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tu.AssertFileExists(t, h.runner.config.Database.Path)
	})

	t.Run("check reports missing scripts", func(t *testing.T) {
		h := newHarness(t)
		h.runner.config.Collaborators.MetadataScript = filepath.Join(t.TempDir(), "missing.py")

		err := h.run("setup", "check")
		if !errors.Is(err, shared.ErrToolNotInstalled) {
			t.Fatalf("expected ErrToolNotInstalled, got %v", err)
		}
		if !strings.Contains(h.output.String(), "missing.py not found") {
			t.Errorf("unexpected output: %s", h.output.String())
		}
	})
}

func TestServeRejectsBadPort(t *testing.T) {
	h := newHarness(t)

	err := h.run("serve", "--port", "70000")
	if !errors.Is(err, shared.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRunnerOutput(t *testing.T) {
	t.Run("writeJSON fails on broken writer", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
		if err := runner.writeJSON(map[string]int{"a": 1}, false); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("writeJSON fails writing trailing newline", func(t *testing.T) {
		var buf bytes.Buffer
		w := tu.NewLimitedWriter(1, 0, &buf)
		runner := NewRunner(RunnerOpts{Output: &w})
		err := runner.writeJSON(map[string]int{"a": 1}, false)
		if err == nil || !strings.Contains(err.Error(), "newline") {
			t.Errorf("expected newline write error, got %v", err)
		}
		if buf.String() != `{"a":1}` {
			t.Errorf("expected payload to be written, got %q", buf.String())
		}
	})

	t.Run("writePlain fails on broken writer", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
		if err := runner.writePlain("hello %s", "world"); err == nil {
			t.Error("expected error, got nil")
		}
		if err := runner.writePlainln("hello"); err == nil {
			t.Error("expected error, got nil")
		}
	})
}

func TestExitCode(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation error", &reference.ValidationError{Reference: "x", Reason: reference.ReasonNotURL}, exitUsage},
		{"missing argument", fmt.Errorf("%w: url", shared.ErrMissingArgument), exitUsage},
		{"invalid argument", shared.ErrInvalidArgument, exitUsage},
		{"tool not installed", fmt.Errorf("search: %w", shared.ErrToolNotInstalled), exitToolMissing},
		{"interrupted", context.Canceled, exitInterrupted},
		{"anything else", errors.New("boom"), exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(logger, tt.err); got != tt.want {
				t.Errorf("expected exit code %d, got %d", tt.want, got)
			}
		})
	}
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{4_500_000, "4.3 MiB"},
	}
	for _, tt := range tests {
		if got := humanBytes(tt.n); got != tt.want {
			t.Errorf("humanBytes(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}
