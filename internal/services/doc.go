// Package services defines the collaborator capabilities used by the download
// pipeline and their production adapters.
//
// # Capabilities
//
// Each external step sits behind a single-method interface:
//   - [MetadataExtractor] : track reference → [models.TrackMetadata]
//   - [PlaylistExtractor] : playlist/album/show reference → [models.PlaylistManifest]
//   - [AudioSearcher] : (title, artist) → [models.AudioSource]
//   - [AudioDownloader] : (locator, output path) → file on disk
//
// # Script Collaborator
//
// [ScriptCollaborator] implements all four by spawning interpreter scripts via a
// [ProcessRunner]. Scripts may print log lines around their JSON result; the
// object is located with [shared.ExtractJSON]. A process that cannot be started
// yields [shared.ErrToolNotInstalled]; a non-zero exit yields [*ExitError]
// (wrapping [shared.ErrCollaboratorFailed]). Spawns are throttled with a token
// bucket limiter.
//
// # Spotify API
//
// [SpotifyAPIExtractor] reads track and playlist metadata from the Web API with
// an app token obtained through the OAuth2 client-credentials grant.
//
// # Resolvers
//
// [MetadataResolver], [ManifestResolver], [AudioSourceResolver] and
// [AcquisitionService] wrap the capabilities and convert failures into
// [*MetadataError], [*ManifestError], [*SourceResolutionError] and
// [*AcquisitionError]. [StageOf] maps those back to a [models.Stage].
package services
