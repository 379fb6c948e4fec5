package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/shared"
)

// SessionRepository stores one row per download session.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Start inserts an open session row and assigns its ID.
func (r *SessionRepository) Start(s *models.SessionRecord) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	s.ID = shared.GenerateID()
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, playlist, total, started_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.Playlist, s.Total, s.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Finish writes the final counters and stamps finished_at.
func (r *SessionRepository) Finish(s *models.SessionRecord) error {
	now := time.Now()
	result, err := r.db.Exec(`
		UPDATE sessions
		SET total = ?, succeeded = ?, failed = ?, skipped = ?, interrupted = ?, finished_at = ?
		WHERE id = ?
	`, s.Total, s.Succeeded, s.Failed, s.Skipped, s.Interrupted, now, s.ID)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: session %s", shared.ErrNotFound, s.ID)
	}

	s.FinishedAt = &now
	return nil
}

// Recent returns up to limit sessions, newest first.
func (r *SessionRepository) Recent(limit int) ([]*models.SessionRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, playlist, total, succeeded, failed, skipped, interrupted, started_at, finished_at
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, max(limit, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.SessionRecord
	for rows.Next() {
		var (
			s          models.SessionRecord
			finishedAt sql.NullTime
		)
		err := rows.Scan(&s.ID, &s.Playlist, &s.Total, &s.Succeeded, &s.Failed, &s.Skipped,
			&s.Interrupted, &s.StartedAt, &finishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if finishedAt.Valid {
			s.FinishedAt = &finishedAt.Time
		}
		sessions = append(sessions, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}
