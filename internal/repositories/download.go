package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/shared"
)

// DownloadRepository records completed downloads.
type DownloadRepository struct {
	db *sql.DB
}

func NewDownloadRepository(db *sql.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

// DownloadStats aggregates the downloads table.
type DownloadStats struct {
	Count      int
	TotalBytes int64
}

// Create inserts a new [models.DownloadRecord] with generated ID and sequence
func (r *DownloadRepository) Create(rec *models.DownloadRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "downloads")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	rec.ID = shared.GenerateID()
	rec.Sequence = sequence

	query := `
		INSERT INTO downloads (id, sequence, catalog_id, title, artist, album, file_path, file_size, quality, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		rec.ID, rec.Sequence, rec.CatalogID, rec.Title, rec.Artist, rec.Album,
		rec.FilePath, rec.FileSize, rec.Quality, rec.DownloadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert download: %w", err)
	}
	return nil
}

// List returns the most recent downloads first. limit <= 0 returns everything.
func (r *DownloadRepository) List(limit int) ([]*models.DownloadRecord, error) {
	query := `
		SELECT id, sequence, catalog_id, title, artist, album, file_path, file_size, quality, downloaded_at
		FROM downloads
		ORDER BY sequence DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	var downloads []*models.DownloadRecord
	for rows.Next() {
		var d models.DownloadRecord
		err := rows.Scan(&d.ID, &d.Sequence, &d.CatalogID, &d.Title, &d.Artist, &d.Album,
			&d.FilePath, &d.FileSize, &d.Quality, &d.DownloadedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		downloads = append(downloads, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return downloads, nil
}

// Stats returns the number of downloads and their combined size.
func (r *DownloadRepository) Stats() (DownloadStats, error) {
	var stats DownloadStats
	err := r.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM downloads`).Scan(&stats.Count, &stats.TotalBytes)
	if err != nil {
		return DownloadStats{}, fmt.Errorf("failed to aggregate downloads: %w", err)
	}
	return stats, nil
}
