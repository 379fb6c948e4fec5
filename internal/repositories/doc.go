// Package repositories implements SQLite persistence for download bookkeeping.
//
// Key Implementations:
//   - [TrackRepository] : Playlist entries keyed by normalized (title, artist) with their last status
//   - [DownloadRepository] : Completed downloads with file sizes for reporting
//   - [SessionRepository] : One row per download session with its counters
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
//
// The store is advisory. The JSON failure ledger remains the source of truth for skip decisions.
package repositories
