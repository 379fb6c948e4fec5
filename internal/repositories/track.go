package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/shared"
)

const trackColumns = `id, sequence, playlist, title, artist, status, catalog_id, file_path, file_size, error, created_at, updated_at, deleted_at`

// TrackRepository persists playlist entries keyed by their normalized (title, artist) pair.
//
// Re-running a playlist updates existing rows instead of duplicating them.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Upsert inserts track or, when its key already exists, refreshes the playlist and
// restores a soft-deleted row. ID, Sequence and CreatedAt are filled from the stored row.
func (r *TrackRepository) Upsert(track *models.TrackRecord) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO tracks (id, sequence, playlist, title, artist, track_key, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_key) DO UPDATE SET
			playlist = excluded.playlist,
			updated_at = excluded.updated_at,
			deleted_at = NULL
	`

	_, err = r.db.Exec(query,
		shared.GenerateID(),
		sequence,
		track.Playlist,
		track.Title,
		track.Artist,
		shared.NormalizeTrackKey(track.Title, track.Artist),
		track.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert track: %w", err)
	}

	stored, err := r.GetByKey(track.Title, track.Artist)
	if err != nil {
		return err
	}
	*track = *stored
	return nil
}

// Get retrieves a track by ID, excluding soft-deleted tracks
func (r *TrackRepository) Get(id string) (*models.TrackRecord, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByKey retrieves a track by its normalized title and artist.
func (r *TrackRepository) GetByKey(title, artist string) (*models.TrackRecord, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE track_key = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, shared.NormalizeTrackKey(title, artist)))
}

// UpdateStatus writes the outcome fields of track.
func (r *TrackRepository) UpdateStatus(track *models.TrackRecord) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	query := `
		UPDATE tracks
		SET status = ?, catalog_id = ?, file_path = ?, file_size = ?, error = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		track.Status,
		track.CatalogID,
		track.FilePath,
		track.FileSize,
		track.Error,
		now,
		track.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: track %s", shared.ErrNotFound, track.ID)
	}

	track.UpdatedAt = now
	return nil
}

// Delete soft-deletes a track by ID
func (r *TrackRepository) Delete(id string) error {
	query := `UPDATE tracks SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: track %s", shared.ErrNotFound, id)
	}

	return nil
}

// ListByStatus returns live tracks in sequence order. An empty status lists all of them.
func (r *TrackRepository) ListByStatus(status models.TrackStatus) ([]*models.TrackRecord, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE deleted_at IS NULL`
	args := []any{}

	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.TrackRecord
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// Counts returns the number of live tracks per status.
func (r *TrackRepository) Counts() (map[models.TrackStatus]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM tracks WHERE deleted_at IS NULL GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tracks: %w", err)
	}
	defer rows.Close()

	counts := map[models.TrackStatus]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.TrackStatus(status)] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanOne scans a single [sql.Row] into a [models.TrackRecord]
func (r *TrackRepository) scanOne(row *sql.Row) (*models.TrackRecord, error) {
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: track", shared.ErrNotFound)
	}
	return track, err
}

func scanTrack(s scanner) (*models.TrackRecord, error) {
	var (
		track     models.TrackRecord
		status    string
		deletedAt sql.NullTime
	)

	err := s.Scan(
		&track.ID, &track.Sequence, &track.Playlist, &track.Title, &track.Artist, &status,
		&track.CatalogID, &track.FilePath, &track.FileSize, &track.Error,
		&track.CreatedAt, &track.UpdatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	track.Status = models.TrackStatus(status)
	if deletedAt.Valid {
		track.DeletedAt = &deletedAt.Time
	}
	return &track, nil
}
