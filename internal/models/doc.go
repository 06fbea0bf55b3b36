// Package models defines the domain entities shared by the resolution and acquisition pipeline.
//
// Transient values, created and discarded within one pipeline run:
//   - [Reference] : a classified streaming-service locator (track or playlist-like)
//   - [TrackMetadata] : canonical title/artist/album/duration for one track
//   - [AudioSource] : a playable asset locator on the video platform
//   - [AcquisitionResult] : the file materialized by the downloader
//
// Entities with on-disk lifetime:
//   - [PlaylistManifest] : written as playlist_info.json before any download starts
//   - [PlaylistResult] : aggregated per-track [TrackOutcome] values, written as a summary
//   - [Job] : a row in the job history database
package models
