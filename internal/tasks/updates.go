package tasks

import (
	"fmt"

	"github.com/desertthunder/songrip/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ResolveManifest Phase = iota
	WriteManifest
	TrackStarted
	TrackFinished
	Summarize
)

func (p Phase) String() string {
	switch p {
	case ResolveManifest:
		return "resolve_manifest"
	case WriteManifest:
		return "write_manifest"
	case TrackStarted:
		return "track_started"
	case TrackFinished:
		return "track_finished"
	case Summarize:
		return "summarize"
	default:
		return ""
	}
}

// sendProgress sends an update without blocking; a full channel drops it.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func resolvingManifestUpdate(locator string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveManifest,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Reading playlist %s...", locator),
	}
}

func manifestWrittenUpdate(m *models.PlaylistManifest, eligible int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks, %d downloadable)", m.Name, len(m.Tracks), eligible),
		Data:    m,
	}
}

func trackStartedUpdate(ordinal, total int, md models.TrackMetadata) ProgressUpdate {
	return ProgressUpdate{
		Phase:   TrackStarted,
		Step:    ordinal,
		Total:   total,
		Message: fmt.Sprintf("[%02d] %s - %s", ordinal, md.Artist, md.Title),
		Data:    md,
	}
}

func trackFinishedUpdate(done, total int, o models.TrackOutcome) ProgressUpdate {
	var msg string
	switch {
	case o.Skipped:
		msg = fmt.Sprintf("[%d/%d] = %s (already present)", done, total, o.Track)
	case o.OK():
		msg = fmt.Sprintf("[%d/%d] ✓ %s", done, total, o.Track)
	default:
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %s failed", done, total, o.Track, o.Stage)
	}
	return ProgressUpdate{
		Phase:   TrackFinished,
		Step:    done,
		Total:   total,
		Message: msg,
		Data:    o,
	}
}

func summaryUpdate(r *models.PlaylistResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Summarize,
		Step:    len(r.Outcomes),
		Total:   len(r.Outcomes),
		Message: fmt.Sprintf("Done: %d succeeded, %d failed", r.Succeeded, r.Failed),
		Data:    r,
	}
}
