package models

import (
	"fmt"
	"time"
)

// TrackStatus is the lifecycle state of a playlist entry in the store.
type TrackStatus string

const (
	TrackPending    TrackStatus = "pending"
	TrackDownloaded TrackStatus = "downloaded"
	TrackError      TrackStatus = "error"
	TrackSkipped    TrackStatus = "skipped"
)

// TrackRecord is a playlist entry persisted for reporting.
type TrackRecord struct {
	ID        string      `json:"id"`
	Sequence  int         `json:"sequence"`
	Playlist  string      `json:"playlist"`
	Title     string      `json:"title"`
	Artist    string      `json:"artist"`
	Status    TrackStatus `json:"status"`
	CatalogID int64       `json:"catalog_id"`
	FilePath  string      `json:"file_path"`
	FileSize  int64       `json:"file_size"`
	Error     string      `json:"error"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	DeletedAt *time.Time  `json:"deleted_at,omitempty"`
}

// NewTrackRecord creates a pending record for a playlist entry.
func NewTrackRecord(playlist string, ref TrackRef) *TrackRecord {
	now := time.Now()
	return &TrackRecord{
		Playlist:  playlist,
		Title:     ref.Title,
		Artist:    ref.Artist,
		Status:    TrackPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *TrackRecord) Identifier() string { return r.ID }

func (r *TrackRecord) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	switch r.Status {
	case TrackPending, TrackDownloaded, TrackError, TrackSkipped:
	default:
		return fmt.Errorf("unknown track status %q", r.Status)
	}
	return nil
}

// DownloadRecord is a completed download persisted for reporting.
type DownloadRecord struct {
	ID           string    `json:"id"`
	Sequence     int       `json:"sequence"`
	CatalogID    int64     `json:"catalog_id"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	Album        string    `json:"album"`
	FilePath     string    `json:"file_path"`
	FileSize     int64     `json:"file_size"`
	Quality      string    `json:"quality"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// NewDownloadRecord builds a record from a successful outcome.
func NewDownloadRecord(o Outcome) *DownloadRecord {
	quality := o.Track.Quality
	if quality == "" {
		quality = DefaultQuality
	}
	return &DownloadRecord{
		CatalogID:    o.Track.ID,
		Title:        o.Track.Title,
		Artist:       o.Track.Artist,
		Album:        o.Track.Album,
		FilePath:     o.FilePath,
		FileSize:     o.Size,
		Quality:      quality,
		DownloadedAt: time.Now(),
	}
}

func (r *DownloadRecord) Identifier() string { return r.ID }

func (r *DownloadRecord) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	if r.FilePath == "" {
		return fmt.Errorf("file path is required")
	}
	return nil
}

// SessionRecord summarizes one download session.
type SessionRecord struct {
	ID          string     `json:"id"`
	Playlist    string     `json:"playlist"`
	Total       int        `json:"total"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	Skipped     int        `json:"skipped"`
	Interrupted bool       `json:"interrupted"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

func (r *SessionRecord) Identifier() string { return r.ID }

func (r *SessionRecord) Validate() error {
	if r.StartedAt.IsZero() {
		return fmt.Errorf("started_at is required")
	}
	return nil
}
