// package models defines the value types shared by the catalog client, the resolver and the store
package models

import "time"

// DefaultQuality is the audio quality requested when none is specified.
const DefaultQuality = "LOSSLESS"

// Model defines the base interface for rows persisted by the repositories package.
type Model interface {
	Identifier() string // Identifier returns the row's unique identifier
	Validate() error    // Validate checks if the model's data is valid and returns an error if not
}

// TrackRef is a requested (title, artist) pair as read from a playlist.
type TrackRef struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

func (r TrackRef) String() string { return r.Artist + " - " + r.Title }

// Track is a catalog record normalized from any response shape.
//
// ID 0 means the record was synthesized from a request rather than sourced from the catalog.
type Track struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Duration int    `json:"duration"`
	Quality  string `json:"quality"`
	CoverID  string `json:"cover_id,omitempty"`
}

func (t Track) String() string { return t.Artist + " - " + t.Title }

// StreamInfo is a track together with a URL its audio can be fetched from.
//
// Values are only built once a non-empty URL exists and are used for a single download.
type StreamInfo struct {
	Track     Track  `json:"track"`
	StreamURL string `json:"stream_url"`
	Manifest  string `json:"manifest,omitempty"`
}

// FailureRecord is a ledger entry for a track that definitively failed.
//
// Timestamp is unix seconds with a fractional part.
type FailureRecord struct {
	Title     string  `json:"title"`
	Artist    string  `json:"artist"`
	Error     string  `json:"error"`
	Timestamp float64 `json:"timestamp"`
	Attempts  int     `json:"attempts"`
}

// Time converts the record timestamp.
func (f FailureRecord) Time() time.Time {
	sec := int64(f.Timestamp)
	nsec := int64((f.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// UnixSeconds renders t in the ledger's timestamp format.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
