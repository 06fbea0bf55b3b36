// Package ui implements the terminal progress view for playlist downloads using bubbletea's Elm architecture.
//
// The view moves through three states:
//  1. [ManifestView] : spinner while the playlist manifest is resolved
//  2. [DownloadView] : progress bar and the most recently finished tracks
//  3. [ResultView] : summary counts and a scrollable list of outcomes, failures first
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the PlaylistOrchestrator; quitting while a job runs cancels its context.
//
// Logging must go to a file while the view owns the terminal (see shared.NewFileLogger).
package ui
