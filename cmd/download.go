package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/songrip/internal/formatter"
	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/reference"
	"github.com/desertthunder/songrip/internal/shared"
	"github.com/desertthunder/songrip/internal/tasks"
)

func urlArg(cmd *cli.Command) (string, error) {
	raw := strings.TrimSpace(cmd.StringArg("url"))
	if raw == "" {
		return "", fmt.Errorf("%w: a Spotify URL is required", shared.ErrMissingArgument)
	}
	return raw, nil
}

// Track downloads a single track into the downloads directory.
func (r *Runner) Track(ctx context.Context, cmd *cli.Command) error {
	raw, err := urlArg(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("track download requested", "url", raw)
	outcome, err := r.engine(0).Track(ctx, raw)
	if cmd.Bool("json") && outcome.Status != "" {
		if werr := r.writeJSON(outcome, true); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return nil
	}

	if outcome.Skipped {
		r.writePlain("✓ %s already present: %s\n", outcome.Track, outcome.OutputPath)
		return nil
	}
	r.writePlain("✓ Downloaded %s\n", outcome.Track)
	r.writePlain("  %s (%s)\n", outcome.OutputPath, humanBytes(outcome.BytesWritten))
	return nil
}

// Playlist downloads every track of a playlist reference into its own folder.
func (r *Runner) Playlist(ctx context.Context, cmd *cli.Command) error {
	raw, err := urlArg(cmd)
	if err != nil {
		return err
	}

	format := strings.ToLower(cmd.String("report"))
	switch format {
	case "", "csv", "markdown", "md", "text", "txt":
	default:
		return fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, format)
	}

	var result *models.PlaylistResult
	if cmd.Bool("tui") {
		result, err = r.playlistTUI(ctx, raw, int(cmd.Int("concurrency")))
	} else {
		result, err = r.playlistPlain(ctx, raw, int(cmd.Int("concurrency")), !cmd.Bool("json"))
	}
	if err != nil {
		return err
	}

	if format != "" {
		path, err := formatter.WriteReport(result, format, cmd.String("output"))
		if err != nil {
			return err
		}
		r.logger.Info("report written", "path", path)
		if !cmd.Bool("json") {
			r.writePlain("Report: %s\n", path)
		}
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(formatter.NewSummary(result), true); err != nil {
			return err
		}
	}

	if cmd.Bool("open") {
		if err := shared.OpenPath(result.Directory); err != nil {
			r.logger.Warn("could not open folder", "path", result.Directory, "error", err)
		}
	}
	return nil
}

// playlistPlain runs a playlist job, printing progress lines when verbose.
func (r *Runner) playlistPlain(ctx context.Context, raw string, concurrency int, verbose bool) (*models.PlaylistResult, error) {
	r.logger.Info("playlist download requested", "url", raw, "concurrency", concurrency)

	progressCh := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if !verbose {
				continue
			}
			switch update.Phase {
			case tasks.ResolveManifest:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.WriteManifest:
				r.writePlain("📝 %s\n\n", update.Message)
			case tasks.TrackFinished:
				r.writePlain("   [%d/%d] %s\n", update.Step, update.Total, update.Message)
			}
		}
	}()

	result, err := r.engine(concurrency).Playlist(ctx, raw, progressCh)
	close(progressCh)
	<-done

	if err != nil {
		return nil, err
	}
	if verbose {
		r.printPlaylistResult(result)
	}
	return result, nil
}

func (r *Runner) printPlaylistResult(result *models.PlaylistResult) {
	r.writePlain("\n")
	r.writePlainHeader("Playlist Complete!")
	r.writePlain("Playlist: %s (%d tracks)\n", result.Manifest.Name, result.Manifest.TrackCount)
	r.writePlain("Folder: %s\n", result.Directory)
	r.writePlain("%s\n", formatter.SummaryLine(result))

	if result.Failed > 0 {
		r.writePlain("\nFailed tracks:\n")
		for _, o := range result.Outcomes {
			if !o.OK() {
				r.writePlain("  %02d. %s [%s] %s\n", o.Ordinal, o.Track, o.Stage, o.Reason)
			}
		}
	}
}

// Validate reports whether a URL is a supported reference and what it denotes.
func (r *Runner) Validate(ctx context.Context, cmd *cli.Command) error {
	raw, err := urlArg(cmd)
	if err != nil {
		return err
	}

	ref, err := reference.Classify(raw)
	if cmd.Bool("json") {
		out := map[string]any{"valid": err == nil, "url": raw}
		if err == nil {
			out["kind"] = ref.Kind.String()
			out["resource"] = ref.Resource
			out["id"] = ref.ID
		} else if reason, ok := reference.ReasonOf(err); ok {
			out["reason"] = reason
		}
		if werr := r.writeJSON(out, true); werr != nil {
			return werr
		}
		return err
	}
	if err != nil {
		return err
	}

	r.writePlain("✓ Valid %s reference\n", ref.Kind)
	r.writePlain("  Resource: %s\n", ref.Resource)
	r.writePlain("  ID: %s\n", ref.ID)
	return nil
}

// Metadata prints the metadata of a track reference.
func (r *Runner) Metadata(ctx context.Context, cmd *cli.Command) error {
	raw, err := urlArg(cmd)
	if err != nil {
		return err
	}

	md, err := r.engine(0).Metadata(ctx, raw)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(md, true)
	}

	r.writePlain("Title: %s\n", md.Title)
	r.writePlain("Artist: %s\n", md.Artist)
	if md.Album != "" {
		r.writePlain("Album: %s\n", md.Album)
	}
	r.writePlain("Duration: %s\n", formatter.FormatDuration(md.DurationMs))
	return nil
}

// Search prints the audio source a title and artist resolve to.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	md := models.TrackMetadata{
		Title:  strings.TrimSpace(cmd.String("title")),
		Artist: strings.TrimSpace(cmd.String("artist")),
	}
	if !md.Complete() {
		return fmt.Errorf("%w: --title and --artist are required", shared.ErrMissingArgument)
	}

	src, err := r.engine(0).Source(ctx, md)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(src, true)
	}

	r.writePlain("✓ %s\n", md)
	r.writePlain("  %s\n", src.Locator)
	if src.ResolvedTitle != "" {
		r.writePlain("  matched: %s\n", src.ResolvedTitle)
	}
	return nil
}

// Fetch searches by title and artist and downloads the best match.
func (r *Runner) Fetch(ctx context.Context, cmd *cli.Command) error {
	if r.collaborators.Fetcher == nil {
		return fmt.Errorf("%w: no fetcher configured", shared.ErrServiceUnavailable)
	}

	title := strings.TrimSpace(cmd.String("title"))
	artist := strings.TrimSpace(cmd.String("artist"))
	if title == "" || artist == "" {
		return fmt.Errorf("%w: --title and --artist are required", shared.ErrMissingArgument)
	}

	dir := cmd.String("dir")
	if dir == "" {
		dir = r.config.Downloads.Dir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	r.logger.Info("fetch requested", "title", title, "artist", artist, "dir", dir)
	path, err := r.collaborators.Fetcher.SearchAndDownload(ctx, title, artist, dir)
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New("download reported success but produced no file")
	}

	r.writePlain("✓ Downloaded %s - %s\n", artist, title)
	r.writePlain("  %s\n", filepath.Clean(path))
	return nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
