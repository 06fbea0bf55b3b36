// package models defines the data model for the song resolution pipeline
package models

import (
	"fmt"
	"strings"
	"time"
)

// ReferenceKind discriminates single tracks from ordered track collections.
type ReferenceKind int

const (
	KindTrack ReferenceKind = iota
	KindPlaylist
)

func (k ReferenceKind) String() string {
	switch k {
	case KindTrack:
		return "track"
	case KindPlaylist:
		return "playlist"
	default:
		return ""
	}
}

// Reference is a validated streaming-service locator.
//
// Resource keeps the original path segment (track, episode, playlist, album, show)
// while Kind collapses it to the two shapes the pipeline knows how to run.
type Reference struct {
	Locator  string
	Kind     ReferenceKind
	Resource string
	ID       string
}

// TrackMetadata holds the canonical attributes of a single track.
type TrackMetadata struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	DurationMs int    `json:"duration_ms,omitempty"`
}

// Complete reports whether both title and artist are present.
func (m TrackMetadata) Complete() bool {
	return strings.TrimSpace(m.Title) != "" && strings.TrimSpace(m.Artist) != ""
}

// Validate returns an error naming the missing attribute, if any.
func (m TrackMetadata) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("missing title")
	}
	if strings.TrimSpace(m.Artist) == "" {
		return fmt.Errorf("missing artist")
	}
	return nil
}

func (m TrackMetadata) String() string {
	return fmt.Sprintf("%s - %s", m.Artist, m.Title)
}

// AudioSource is the playable asset a track was mapped to.
type AudioSource struct {
	Locator            string `json:"locator"`
	ResolvedTitle      string `json:"resolved_title,omitempty"`
	ResolvedDurationMs int    `json:"resolved_duration_ms,omitempty"`
}

// AcquisitionResult describes the artifact written by a successful acquisition.
type AcquisitionResult struct {
	Path         string `json:"path"`
	BytesWritten int64  `json:"bytes_written"`
	Format       string `json:"format,omitempty"`    // container/tag format when it could be probed
	FileType     string `json:"file_type,omitempty"` // e.g. MP3, M4A
}

// Stage names the pipeline step a track failed in.
type Stage string

const (
	StageMetadata         Stage = "metadata"
	StageSourceResolution Stage = "source-resolution"
	StageAcquisition      Stage = "acquisition"
)

// OutcomeStatus is the tag of a [TrackOutcome].
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// TrackOutcome is the terminal result of one track's pipeline run.
//
// Succeeded outcomes carry OutputPath; Failed outcomes carry Stage and Reason.
// Skipped marks a success satisfied by a file that already existed.
type TrackOutcome struct {
	Ordinal      int           `json:"ordinal,omitempty"`
	Track        TrackMetadata `json:"track"`
	Status       OutcomeStatus `json:"status"`
	OutputPath   string        `json:"output_path,omitempty"`
	BytesWritten int64         `json:"bytes_written,omitempty"`
	Skipped      bool          `json:"skipped,omitempty"`
	Stage        Stage         `json:"stage,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	Err          error         `json:"-"` // underlying cause of a failure, not persisted
}

// Succeeded builds a successful outcome.
func Succeeded(track TrackMetadata, path string, bytes int64) TrackOutcome {
	return TrackOutcome{Track: track, Status: OutcomeSucceeded, OutputPath: path, BytesWritten: bytes}
}

// Failed builds a failed outcome for the given stage.
func Failed(track TrackMetadata, stage Stage, reason string) TrackOutcome {
	return TrackOutcome{Track: track, Status: OutcomeFailed, Stage: stage, Reason: reason}
}

// FailedWith builds a failed outcome keeping err as the cause.
func FailedWith(track TrackMetadata, stage Stage, err error) TrackOutcome {
	o := Failed(track, stage, err.Error())
	o.Err = err
	return o
}

// OK reports whether the outcome is a success.
func (o TrackOutcome) OK() bool { return o.Status == OutcomeSucceeded }

// PlaylistManifest is the persisted description of a playlist job's expected tracks.
type PlaylistManifest struct {
	Name            string          `json:"name"`
	Owner           string          `json:"owner,omitempty"`
	TrackCount      int             `json:"trackCount"`
	SourceReference string          `json:"url"`
	Tracks          []TrackMetadata `json:"tracks"`
}

// Eligible returns the manifest indexes of tracks that have both title and artist.
func (m PlaylistManifest) Eligible() []int {
	idx := make([]int, 0, len(m.Tracks))
	for i, t := range m.Tracks {
		if t.Complete() {
			idx = append(idx, i)
		}
	}
	return idx
}

// PlaylistResult aggregates the outcomes of a playlist job in manifest order.
type PlaylistResult struct {
	JobID     string           `json:"job_id,omitempty"`
	Manifest  PlaylistManifest `json:"manifest"`
	Outcomes  []TrackOutcome   `json:"outcomes"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`  // successes satisfied by existing files
	Excluded  int              `json:"excluded"` // tracks missing title or artist, never run
	Directory string           `json:"directory"`
}

// Tally recomputes the success/failure counters from Outcomes.
func (r *PlaylistResult) Tally() {
	r.Succeeded, r.Failed, r.Skipped = 0, 0, 0
	for _, o := range r.Outcomes {
		if o.OK() {
			r.Succeeded++
			if o.Skipped {
				r.Skipped++
			}
		} else {
			r.Failed++
		}
	}
}

// JobStatus tracks a job row through its lifecycle.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is a persisted record of one track or playlist run.
type Job struct {
	ID           string
	Sequence     int
	Kind         ReferenceKind
	Reference    string
	Name         string
	Directory    string
	Status       JobStatus
	TrackCount   int
	Succeeded    int
	Failed       int
	Excluded     int
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// Validate checks the fields required to insert a job.
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if j.Reference == "" {
		return fmt.Errorf("job reference is required")
	}
	switch j.Status {
	case JobRunning, JobCompleted, JobFailed:
	default:
		return fmt.Errorf("invalid job status %q", j.Status)
	}
	return nil
}
