package services

import (
	"errors"
	"fmt"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/shared"
)

// MetadataError wraps a failed single-track metadata extraction.
type MetadataError struct {
	Reference string
	Err       error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("metadata extraction failed for %s: %v", e.Reference, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// SourceResolutionError wraps a failed audio-source search.
type SourceResolutionError struct {
	Title  string
	Artist string
	Err    error
}

func (e *SourceResolutionError) Error() string {
	return fmt.Sprintf("no audio source for %q by %q: %v", e.Title, e.Artist, e.Err)
}

func (e *SourceResolutionError) Unwrap() error { return e.Err }

// AcquisitionError wraps a failed download or an artifact that did not verify.
type AcquisitionError struct {
	Locator string
	Path    string
	Err     error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquisition of %s to %s failed: %v", e.Locator, e.Path, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// ManifestError wraps a playlist-level extraction failure. It is fatal to the job.
type ManifestError struct {
	Reference string
	Err       error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("playlist extraction failed for %s: %v", e.Reference, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// StageOf maps a track-level error to the pipeline stage that produced it.
func StageOf(err error) (models.Stage, bool) {
	var (
		me *MetadataError
		se *SourceResolutionError
		ae *AcquisitionError
	)
	switch {
	case errors.As(err, &me):
		return models.StageMetadata, true
	case errors.As(err, &se):
		return models.StageSourceResolution, true
	case errors.As(err, &ae):
		return models.StageAcquisition, true
	default:
		return "", false
	}
}

// IsToolMissing reports whether err stems from a collaborator that could not be started.
func IsToolMissing(err error) bool {
	return errors.Is(err, shared.ErrToolNotInstalled)
}
