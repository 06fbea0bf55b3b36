// package services defines the collaborator capabilities the download pipeline
// depends on and the resolvers that wrap them with stage-specific errors.
package services

import (
	"context"

	"github.com/desertthunder/songrip/internal/models"
)

// MetadataExtractor reads canonical attributes for a single track reference.
type MetadataExtractor interface {
	ExtractTrack(ctx context.Context, ref models.Reference) (*models.TrackMetadata, error)
}

// PlaylistExtractor reads the ordered track list of a playlist-like reference.
type PlaylistExtractor interface {
	ExtractPlaylist(ctx context.Context, ref models.Reference) (*models.PlaylistManifest, error)
}

// AudioSearcher maps a (title, artist) pair to a playable asset.
type AudioSearcher interface {
	Search(ctx context.Context, title, artist string) (*models.AudioSource, error)
}

// AudioDownloader materializes a source locator at outputPath.
type AudioDownloader interface {
	Download(ctx context.Context, locator, outputPath string) error
}

// Extractor is implemented by collaborators that handle both reference shapes.
type Extractor interface {
	MetadataExtractor
	PlaylistExtractor
}
