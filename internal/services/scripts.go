package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/shared"
)

// ScriptPaths locates the collaborator scripts.
type ScriptPaths struct {
	Metadata string
	Playlist string
	Search   string
	Download string
}

// ScriptOpts configures a [ScriptCollaborator].
type ScriptOpts struct {
	Python    string // interpreter resolved at startup
	Scripts   ScriptPaths
	Runner    ProcessRunner
	SpawnRate float64 // spawns per second; <= 0 disables throttling
	Logger    *log.Logger
}

// ScriptCollaborator implements every collaborator capability by spawning
// interpreter scripts and decoding the JSON object they print.
type ScriptCollaborator struct {
	python  string
	scripts ScriptPaths
	runner  ProcessRunner
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewScriptCollaborator creates a [ScriptCollaborator].
func NewScriptCollaborator(opts ScriptOpts) *ScriptCollaborator {
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.SpawnRate > 0 {
		burst := max(1, int(opts.SpawnRate))
		limiter = rate.NewLimiter(rate.Limit(opts.SpawnRate), burst)
	}

	return &ScriptCollaborator{
		python:  opts.Python,
		scripts: opts.Scripts,
		runner:  opts.Runner,
		limiter: limiter,
		logger:  opts.Logger,
	}
}

type metadataPayload struct {
	Success  *bool  `json:"success"`
	Error    string `json:"error"`
	Metadata *struct {
		Title      string  `json:"title"`
		Artist     string  `json:"artist"`
		Album      string  `json:"album"`
		DurationMs int     `json:"duration_ms"`
		DurationS  float64 `json:"duration_s"`
	} `json:"metadata"`
}

type playlistPayload struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Playlist *struct {
		Name       string                 `json:"name"`
		Owner      string                 `json:"owner"`
		TrackCount int                    `json:"track_count"`
		Tracks     []models.TrackMetadata `json:"tracks"`
	} `json:"playlist"`
}

type searchPayload struct {
	Success    *bool   `json:"success"`
	Error      string  `json:"error"`
	YouTubeURL string  `json:"youtube_url"`
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"` // seconds
}

type downloadPayload struct {
	Success    *bool  `json:"success"`
	Error      string `json:"error"`
	OutputFile string `json:"output_file"`
}

// run throttles, spawns script with args and returns its stdout.
//
// When a script exits non-zero but printed an {"error": ...} object, that
// message is attached to the returned error.
func (c *ScriptCollaborator) run(ctx context.Context, script string, args ...string) ([]byte, error) {
	if script == "" {
		return nil, fmt.Errorf("%w: collaborator script path is empty", shared.ErrMissingConfig)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	c.logger.Debug("spawning collaborator", "script", filepath.Base(script), "args", args)
	res, err := c.runner.Run(ctx, c.python, append([]string{script}, args...)...)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			var p struct {
				Error string `json:"error"`
			}
			if shared.DecodeJSON(exitErr.Stdout, &p) == nil && p.Error != "" {
				return nil, fmt.Errorf("%s: %w", p.Error, err)
			}
		}
		return nil, err
	}

	if len(res.Stderr) > 0 {
		c.logger.Debug("collaborator stderr", "script", filepath.Base(script), "stderr", tail(res.Stderr))
	}
	return res.Stdout, nil
}

// ExtractTrack implements [MetadataExtractor].
func (c *ScriptCollaborator) ExtractTrack(ctx context.Context, ref models.Reference) (*models.TrackMetadata, error) {
	out, err := c.run(ctx, c.scripts.Metadata, ref.Locator)
	if err != nil {
		return nil, err
	}

	var p metadataPayload
	if err := shared.DecodeJSON(out, &p); err != nil {
		return nil, err
	}
	if p.Error != "" || (p.Success != nil && !*p.Success) {
		return nil, fmt.Errorf("%w: %s", shared.ErrCollaboratorError, p.Error)
	}
	if p.Metadata == nil {
		return nil, fmt.Errorf("%w: payload has no metadata object", shared.ErrNoPayload)
	}

	md := &models.TrackMetadata{
		Title:      p.Metadata.Title,
		Artist:     p.Metadata.Artist,
		Album:      p.Metadata.Album,
		DurationMs: p.Metadata.DurationMs,
	}
	if md.DurationMs == 0 && p.Metadata.DurationS > 0 {
		md.DurationMs = int(math.Round(p.Metadata.DurationS * 1000))
	}
	return md, nil
}

// ExtractPlaylist implements [PlaylistExtractor].
func (c *ScriptCollaborator) ExtractPlaylist(ctx context.Context, ref models.Reference) (*models.PlaylistManifest, error) {
	out, err := c.run(ctx, c.scripts.Playlist, ref.Locator)
	if err != nil {
		return nil, err
	}

	var p playlistPayload
	if err := shared.DecodeJSON(out, &p); err != nil {
		return nil, err
	}
	if !p.Success || p.Error != "" {
		msg := p.Error
		if msg == "" {
			msg = "playlist extraction reported failure"
		}
		return nil, fmt.Errorf("%w: %s", shared.ErrCollaboratorError, msg)
	}
	if p.Playlist == nil {
		return nil, fmt.Errorf("%w: payload has no playlist object", shared.ErrNoPayload)
	}

	m := &models.PlaylistManifest{
		Name:            p.Playlist.Name,
		Owner:           p.Playlist.Owner,
		TrackCount:      p.Playlist.TrackCount,
		SourceReference: ref.Locator,
		Tracks:          p.Playlist.Tracks,
	}
	if m.TrackCount == 0 {
		m.TrackCount = len(m.Tracks)
	}
	return m, nil
}

// Search implements [AudioSearcher].
func (c *ScriptCollaborator) Search(ctx context.Context, title, artist string) (*models.AudioSource, error) {
	out, err := c.run(ctx, c.scripts.Search, title, artist)
	if err != nil {
		return nil, err
	}

	var p searchPayload
	if err := shared.DecodeJSON(out, &p); err != nil {
		return nil, err
	}
	if p.Error != "" {
		return nil, fmt.Errorf("%w: %s", shared.ErrCollaboratorError, p.Error)
	}

	locator := p.YouTubeURL
	if locator == "" {
		locator = p.URL
	}
	if locator == "" {
		return nil, shared.ErrNoSourceFound
	}
	return &models.AudioSource{
		Locator:            locator,
		ResolvedTitle:      p.Title,
		ResolvedDurationMs: int(math.Round(p.Duration * 1000)),
	}, nil
}

// Download implements [AudioDownloader]. Structured output is optional; an
// explicit {"success": false} is still a failure.
func (c *ScriptCollaborator) Download(ctx context.Context, locator, outputPath string) error {
	out, err := c.run(ctx, c.scripts.Download, locator, outputPath)
	if err != nil {
		return err
	}

	var p downloadPayload
	if shared.DecodeJSON(out, &p) != nil {
		return nil
	}
	if p.Success != nil && !*p.Success {
		msg := p.Error
		if msg == "" {
			msg = "download reported failure"
		}
		return fmt.Errorf("%w: %s", shared.ErrCollaboratorError, msg)
	}
	return nil
}

// SearchAndDownload runs the download script in its metadata-driven mode,
// letting it search and save into outputDir. The largest new non-empty audio
// file that appears in outputDir is returned.
func (c *ScriptCollaborator) SearchAndDownload(ctx context.Context, title, artist, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	before, err := snapshotDir(outputDir)
	if err != nil {
		return "", err
	}

	out, err := c.run(ctx, c.scripts.Download, title, artist, outputDir)
	if err != nil {
		return "", err
	}

	var p downloadPayload
	if shared.DecodeJSON(out, &p) == nil && p.Success != nil && !*p.Success {
		return "", fmt.Errorf("%w: %s", shared.ErrCollaboratorError, p.Error)
	}

	after, err := snapshotDir(outputDir)
	if err != nil {
		return "", err
	}
	if name := newestArtifact(before, after); name != "" {
		return filepath.Join(outputDir, name), nil
	}
	return "", shared.ErrEmptyArtifact
}

// newestArtifact picks the largest non-empty file present in after but not in
// before, breaking ties by name.
func newestArtifact(before, after map[string]int64) string {
	var best string
	var bestSize int64
	for name, size := range after {
		if _, existed := before[name]; existed || size == 0 || isPartial(name) {
			continue
		}
		if size > bestSize || (size == bestSize && name < best) {
			best, bestSize = name, size
		}
	}
	return best
}

// snapshotDir maps regular file names in dir to their sizes.
func snapshotDir(dir string) (map[string]int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	files := make(map[string]int64, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files[e.Name()] = info.Size()
	}
	return files, nil
}

func isPartial(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(strings.TrimSuffix(lower, filepath.Ext(lower)), ".part") {
		return true
	}
	switch filepath.Ext(lower) {
	case ".part", ".ytdl", ".tmp", ".temp":
		return true
	}
	return false
}
