// Package tasks runs download jobs with real-time progress reporting.
//
// # Jobs
//
// [Engine] is the entry point for both job kinds. It classifies the raw
// locator first, so a rejected reference never reaches a collaborator.
//
//  1. [Engine.Track] : one track into the download root
//     - Runs a [TrackPipeline] from the reference
//     - Writes "Title - Artist.mp3"
//
//  2. [Engine.Playlist] : a playlist, album or show into its own directory
//     - Resolves the manifest and writes playlist_info.json before any download
//     - Runs each eligible track through a [TrackPipeline] on a bounded pool
//     - Aggregates outcomes in manifest order and writes download_summary.json
//
// # Track Pipeline
//
// A [TrackPipeline] moves through Start, MetadataResolved, SourceResolved and
// Acquired. The first failing stage ends the run with a failed
// [models.TrackOutcome] naming that stage. Stages are never retried.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Job History
//
// The optional [JobRecorder] interface persists jobs and per-track outcomes
// (repositories.JobRepository). Recording errors are logged and ignored.
package tasks
