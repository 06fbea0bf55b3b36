package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/shared"
)

// MetadataResolver obtains canonical track attributes and enforces that both
// title and artist are present.
type MetadataResolver struct {
	extractor MetadataExtractor
	logger    *log.Logger
}

// NewMetadataResolver creates a [MetadataResolver].
func NewMetadataResolver(extractor MetadataExtractor, logger *log.Logger) *MetadataResolver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &MetadataResolver{extractor: extractor, logger: logger}
}

// Resolve returns the metadata for a track reference or a [*MetadataError].
func (r *MetadataResolver) Resolve(ctx context.Context, ref models.Reference) (*models.TrackMetadata, error) {
	fail := func(err error) (*models.TrackMetadata, error) {
		return nil, &MetadataError{Reference: ref.Locator, Err: err}
	}

	if ref.Kind != models.KindTrack {
		return fail(fmt.Errorf("%w: %s is not a track reference", shared.ErrInvalidInput, ref.Resource))
	}
	if r.extractor == nil {
		return fail(fmt.Errorf("%w: metadata extractor not configured", shared.ErrServiceUnavailable))
	}

	md, err := r.extractor.ExtractTrack(ctx, ref)
	if err != nil {
		return fail(err)
	}
	if md == nil {
		return fail(shared.ErrNoPayload)
	}

	out := trimMetadata(*md)
	if err := out.Validate(); err != nil {
		return fail(fmt.Errorf("%w: %v", shared.ErrIncompleteMetadata, err))
	}

	r.logger.Debug("metadata resolved", "title", out.Title, "artist", out.Artist)
	return &out, nil
}

// ManifestResolver obtains the ordered track list of a playlist-like reference.
type ManifestResolver struct {
	extractor PlaylistExtractor
	logger    *log.Logger
}

// NewManifestResolver creates a [ManifestResolver].
func NewManifestResolver(extractor PlaylistExtractor, logger *log.Logger) *ManifestResolver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ManifestResolver{extractor: extractor, logger: logger}
}

// Resolve returns the playlist manifest or a [*ManifestError]. A playlist
// without a name or without tracks is an error.
func (r *ManifestResolver) Resolve(ctx context.Context, ref models.Reference) (*models.PlaylistManifest, error) {
	fail := func(err error) (*models.PlaylistManifest, error) {
		return nil, &ManifestError{Reference: ref.Locator, Err: err}
	}

	if ref.Kind != models.KindPlaylist {
		return fail(fmt.Errorf("%w: %s is not a playlist reference", shared.ErrInvalidInput, ref.Resource))
	}
	if r.extractor == nil {
		return fail(fmt.Errorf("%w: playlist extractor not configured", shared.ErrServiceUnavailable))
	}

	m, err := r.extractor.ExtractPlaylist(ctx, ref)
	if err != nil {
		return fail(err)
	}
	if m == nil || strings.TrimSpace(m.Name) == "" {
		return fail(fmt.Errorf("%w: playlist has no name", shared.ErrNoPayload))
	}
	if len(m.Tracks) == 0 {
		return fail(shared.ErrEmptyPlaylist)
	}

	out := *m
	out.Name = strings.TrimSpace(out.Name)
	out.Tracks = make([]models.TrackMetadata, len(m.Tracks))
	for i, t := range m.Tracks {
		out.Tracks[i] = trimMetadata(t)
	}
	if out.SourceReference == "" {
		out.SourceReference = ref.Locator
	}
	if out.TrackCount == 0 {
		out.TrackCount = len(out.Tracks)
	}

	r.logger.Debug("manifest resolved", "name", out.Name, "tracks", len(out.Tracks))
	return &out, nil
}

func trimMetadata(md models.TrackMetadata) models.TrackMetadata {
	md.Title = strings.TrimSpace(md.Title)
	md.Artist = strings.TrimSpace(md.Artist)
	md.Album = strings.TrimSpace(md.Album)
	return md
}
