// Package models defines the value types that flow between the catalog client, the resolver,
// the failure ledger and the reporting store.
//
// Transient values:
//   - [Track] : a catalog record normalized from list- or object-shaped responses
//   - [StreamInfo] : a track plus a URL its audio can be fetched from
//   - [Outcome] : the terminal [Status] of one track request
//
// Persistent values:
//   - [FailureRecord] : one entry of the JSON failure ledger
//   - [TrackRecord], [DownloadRecord], [SessionRecord] : SQLite rows implementing [Model]
package models
