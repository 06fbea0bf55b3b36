// Package repositories implements SQLite persistence for download job history.
//
// Key Implementations:
//   - [JobRepository] : one row per track or playlist job, plus one row per
//     track outcome. It satisfies tasks.JobRecorder, so the engine records
//     history as a side effect of running jobs.
//
// Sequence numbers provide stable, human-readable ordering (e.g., job #42) independent of UUIDs and start timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
