// package formatter writes playlist job state to disk: the manifest sidecar,
// the completion summary, and human-readable reports (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/naming"
	"github.com/desertthunder/songrip/internal/shared"
)

// Summary is the serialized form of a finished playlist job.
type Summary struct {
	Message             string                `json:"message"`
	JobID               string                `json:"jobId,omitempty"`
	PlaylistName        string                `json:"playlistName"`
	URL                 string                `json:"url"`
	TotalTracks         int                   `json:"totalTracks"`
	SuccessfulDownloads int                   `json:"successfulDownloads"`
	FailedDownloads     int                   `json:"failedDownloads"`
	Skipped             int                   `json:"skipped"`
	Excluded            int                   `json:"excluded"`
	Directory           string                `json:"directory"`
	CompletedAt         time.Time             `json:"completedAt"`
	Details             []models.TrackOutcome `json:"details"`
}

// NewSummary builds a [Summary] from a playlist result.
func NewSummary(r *models.PlaylistResult) Summary {
	return Summary{
		Message:             SummaryLine(r),
		JobID:               r.JobID,
		PlaylistName:        r.Manifest.Name,
		URL:                 r.Manifest.SourceReference,
		TotalTracks:         r.Manifest.TrackCount,
		SuccessfulDownloads: r.Succeeded,
		FailedDownloads:     r.Failed,
		Skipped:             r.Skipped,
		Excluded:            r.Excluded,
		Directory:           r.Directory,
		CompletedAt:         time.Now().UTC(),
		Details:             r.Outcomes,
	}
}

// SummaryLine renders the one-line completion message for a playlist job.
func SummaryLine(r *models.PlaylistResult) string {
	msg := fmt.Sprintf("Playlist download completed. %d tracks downloaded successfully, %d tracks failed.", r.Succeeded, r.Failed)
	if r.Skipped > 0 {
		msg += fmt.Sprintf(" %d already present.", r.Skipped)
	}
	if r.Excluded > 0 {
		msg += fmt.Sprintf(" %d skipped for missing title or artist.", r.Excluded)
	}
	return msg
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so readers never observe a half-written file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// WriteManifest persists m as the playlist_info.json sidecar in dir.
func WriteManifest(dir string, m *models.PlaylistManifest) (string, error) {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}

	path := filepath.Join(dir, naming.ManifestFile)
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads the playlist_info.json sidecar from dir.
func ReadManifest(dir string) (*models.PlaylistManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, naming.ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m models.PlaylistManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

// WriteSummary persists the job summary as download_summary.json in the result directory.
func WriteSummary(r *models.PlaylistResult) (string, error) {
	data, err := shared.MarshalJSON(NewSummary(r), true)
	if err != nil {
		return "", fmt.Errorf("failed to encode summary: %w", err)
	}

	path := filepath.Join(r.Directory, naming.SummaryFile)
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	return path, nil
}

// ResultToCSV renders one row per outcome.
func ResultToCSV(r *models.PlaylistResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Ordinal", "Title", "Artist", "Album", "Duration", "Status", "Stage", "Reason", "Path", "Bytes"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, o := range r.Outcomes {
		record := []string{
			strconv.Itoa(o.Ordinal),
			o.Track.Title,
			o.Track.Artist,
			o.Track.Album,
			FormatDuration(o.Track.DurationMs),
			statusLabel(o),
			string(o.Stage),
			o.Reason,
			o.OutputPath,
			strconv.FormatInt(o.BytesWritten, 10),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ResultToMarkdown renders the result as a Markdown document.
func ResultToMarkdown(r *models.PlaylistResult) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", r.Manifest.Name)
	if r.Manifest.Owner != "" {
		fmt.Fprintf(&buf, "**Owner**: %s\n", r.Manifest.Owner)
	}
	fmt.Fprintf(&buf, "**Source**: %s\n", r.Manifest.SourceReference)
	fmt.Fprintf(&buf, "**Tracks**: %d\n", r.Manifest.TrackCount)
	fmt.Fprintf(&buf, "**Downloaded**: %d, **Failed**: %d", r.Succeeded, r.Failed)
	if r.Excluded > 0 {
		fmt.Fprintf(&buf, ", **Excluded**: %d", r.Excluded)
	}
	buf.WriteString("\n\n## Tracks\n\n")

	for _, o := range r.Outcomes {
		mark := "x"
		if !o.OK() {
			mark = " "
		}
		fmt.Fprintf(&buf, "- [%s] %02d. %s - %s [%s]", mark, o.Ordinal, o.Track.Artist, o.Track.Title, FormatDuration(o.Track.DurationMs))
		if !o.OK() {
			fmt.Fprintf(&buf, " (%s: %s)", o.Stage, oneLine(o.Reason))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// ResultToText renders the result as plain text.
func ResultToText(r *models.PlaylistResult) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", r.Manifest.Name)
	fmt.Fprintf(&buf, "Directory: %s\n", r.Directory)
	fmt.Fprintf(&buf, "%s\n\n", SummaryLine(r))

	for _, o := range r.Outcomes {
		fmt.Fprintf(&buf, "%d. %s - %s: %s", o.Ordinal, o.Track.Artist, o.Track.Title, statusLabel(o))
		if !o.OK() {
			fmt.Fprintf(&buf, " at %s (%s)", o.Stage, oneLine(o.Reason))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Render dispatches on format: csv, markdown (md) or text (txt).
func Render(r *models.PlaylistResult, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "csv":
		return ResultToCSV(r)
	case "markdown", "md":
		return ResultToMarkdown(r)
	case "text", "txt", "":
		return ResultToText(r)
	default:
		return nil, fmt.Errorf("%w: unsupported report format %q", shared.ErrInvalidArgument, format)
	}
}

// ReportExtension returns the file extension used for a report format.
func ReportExtension(format string) string {
	switch strings.ToLower(format) {
	case "csv":
		return ".csv"
	case "markdown", "md":
		return ".md"
	default:
		return ".txt"
	}
}

// WriteReport renders r and writes it to path. An empty path puts
// "report.<ext>" in the result directory.
func WriteReport(r *models.PlaylistResult, format, path string) (string, error) {
	data, err := Render(r, format)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = filepath.Join(r.Directory, "report"+ReportExtension(format))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// FormatDuration renders milliseconds as m:ss, or "-" when unknown.
func FormatDuration(ms int) string {
	if ms <= 0 {
		return "-"
	}
	s := ms / 1000
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func statusLabel(o models.TrackOutcome) string {
	if o.Skipped {
		return "present"
	}
	return string(o.Status)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
