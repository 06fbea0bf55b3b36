// Package server exposes the download engine over HTTP.
//
// # Routes
//
//	GET  /health        → liveness
//	POST /api/validate  → classify a locator without running anything
//	POST /api/track     → download one track
//	POST /api/playlist  → download a playlist, album or show
//
// Request bodies are {"url": "..."}; "spotifyUrl" is accepted as an alias.
// Locators are validated before any collaborator process starts, so a bad
// locator is always a 400. Successful responses carry "success": true; every
// other response carries "error". A collaborator that is not installed maps to
// 503 so callers can tell setup problems from download failures.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
package server
