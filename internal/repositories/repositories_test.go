package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "downloads")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for unknown sequence table")
	}
}

func TestTrackRepository(t *testing.T) {
	t.Run("Upsert", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTrackRepository(db)

		track := models.NewTrackRecord("road trip", models.TrackRef{Title: "One More Time", Artist: "Daft Punk"})
		if err := repo.Upsert(track); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}
		if track.ID == "" || track.Sequence != 1 {
			t.Errorf("expected ID and sequence 1, got %q / %d", track.ID, track.Sequence)
		}

		again := models.NewTrackRecord("other list", models.TrackRef{Title: "  one more TIME ", Artist: "daft punk"})
		if err := repo.Upsert(again); err != nil {
			t.Fatalf("failed to upsert again: %v", err)
		}
		if again.ID != track.ID {
			t.Errorf("expected same row for equivalent key, got %s vs %s", again.ID, track.ID)
		}
		if again.Playlist != "other list" {
			t.Errorf("expected playlist refreshed, got %s", again.Playlist)
		}

		all, err := repo.ListByStatus("")
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 1 {
			t.Errorf("expected 1 track, got %d", len(all))
		}
	})

	t.Run("Upsert validation", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		if err := repo.Upsert(&models.TrackRecord{Status: models.TrackPending}); err == nil {
			t.Error("expected validation error for empty title")
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))

		track := models.NewTrackRecord("", models.TrackRef{Title: "Aerodynamic", Artist: "Daft Punk"})
		if err := repo.Upsert(track); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		track.Status = models.TrackDownloaded
		track.CatalogID = 42
		track.FilePath = "/music/Daft Punk - Aerodynamic.flac"
		track.FileSize = 1024
		if err := repo.UpdateStatus(track); err != nil {
			t.Fatalf("failed to update: %v", err)
		}

		got, err := repo.Get(track.ID)
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got.Status != models.TrackDownloaded || got.CatalogID != 42 || got.FileSize != 1024 {
			t.Errorf("unexpected stored track %+v", got)
		}

		missing := &models.TrackRecord{ID: "nope", Title: "x", Status: models.TrackError}
		if err := repo.UpdateStatus(missing); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListByStatus and Counts", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))

		statuses := []models.TrackStatus{models.TrackDownloaded, models.TrackError, models.TrackDownloaded, models.TrackSkipped}
		for i, status := range statuses {
			track := models.NewTrackRecord("", models.TrackRef{Title: string(rune('A' + i)), Artist: "X"})
			if err := repo.Upsert(track); err != nil {
				t.Fatalf("failed to upsert: %v", err)
			}
			track.Status = status
			if err := repo.UpdateStatus(track); err != nil {
				t.Fatalf("failed to update: %v", err)
			}
		}

		downloaded, err := repo.ListByStatus(models.TrackDownloaded)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(downloaded) != 2 || downloaded[0].Title != "A" || downloaded[1].Title != "C" {
			t.Errorf("expected A and C in sequence order, got %d tracks", len(downloaded))
		}

		counts, err := repo.Counts()
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if counts[models.TrackDownloaded] != 2 || counts[models.TrackError] != 1 || counts[models.TrackSkipped] != 1 {
			t.Errorf("unexpected counts %v", counts)
		}
	})

	t.Run("Delete and restore", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))

		track := models.NewTrackRecord("", models.TrackRef{Title: "Veridis Quo", Artist: "Daft Punk"})
		if err := repo.Upsert(track); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}
		if err := repo.Delete(track.ID); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := repo.Get(track.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected deleted track hidden, got %v", err)
		}
		if err := repo.Delete(track.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected second delete to fail, got %v", err)
		}

		if err := repo.Upsert(models.NewTrackRecord("", models.TrackRef{Title: "Veridis Quo", Artist: "Daft Punk"})); err != nil {
			t.Fatalf("failed to restore: %v", err)
		}
		if _, err := repo.Get(track.ID); err != nil {
			t.Errorf("expected upsert to restore the row: %v", err)
		}
	})
}

func TestDownloadRepository(t *testing.T) {
	t.Run("Create List Stats", func(t *testing.T) {
		repo := NewDownloadRepository(setupTestDB(t))

		for i, size := range []int64{100, 250, 650} {
			rec := models.NewDownloadRecord(models.Outcome{
				Status:   models.StatusSuccess,
				Track:    models.Track{ID: int64(i + 1), Title: "Track", Artist: "Artist"},
				FilePath: "/music/file.flac",
				Size:     size,
			})
			if err := repo.Create(rec); err != nil {
				t.Fatalf("failed to create: %v", err)
			}
			if rec.Quality != models.DefaultQuality {
				t.Errorf("expected default quality, got %s", rec.Quality)
			}
		}

		recent, err := repo.List(2)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(recent) != 2 || recent[0].CatalogID != 3 {
			t.Errorf("expected newest first, got %d records", len(recent))
		}

		stats, err := repo.Stats()
		if err != nil {
			t.Fatalf("failed to get stats: %v", err)
		}
		if stats.Count != 3 || stats.TotalBytes != 1000 {
			t.Errorf("unexpected stats %+v", stats)
		}
	})

	t.Run("Stats on empty table", func(t *testing.T) {
		stats, err := NewDownloadRepository(setupTestDB(t)).Stats()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.Count != 0 || stats.TotalBytes != 0 {
			t.Errorf("expected zero stats, got %+v", stats)
		}
	})

	t.Run("Create validation", func(t *testing.T) {
		repo := NewDownloadRepository(setupTestDB(t))
		if err := repo.Create(&models.DownloadRecord{Title: "x"}); err == nil {
			t.Error("expected validation error for missing file path")
		}
	})
}

func TestSessionRepository(t *testing.T) {
	repo := NewSessionRepository(setupTestDB(t))

	first := &models.SessionRecord{Playlist: "pl", Total: 3, StartedAt: time.Now().Add(-time.Hour)}
	if err := repo.Start(first); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	first.Succeeded, first.Failed, first.Skipped, first.Interrupted = 1, 1, 1, true
	if err := repo.Finish(first); err != nil {
		t.Fatalf("failed to finish: %v", err)
	}
	if first.FinishedAt == nil {
		t.Error("expected FinishedAt set")
	}

	second := &models.SessionRecord{Playlist: "pl", Total: 1, StartedAt: time.Now()}
	if err := repo.Start(second); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	sessions, err := repo.Recent(10)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != second.ID || sessions[0].FinishedAt != nil {
		t.Errorf("expected open newest session first")
	}
	if !sessions[1].Interrupted || sessions[1].Succeeded != 1 {
		t.Errorf("unexpected stored session %+v", sessions[1])
	}

	if err := repo.Finish(&models.SessionRecord{ID: "missing"}); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Start(&models.SessionRecord{}); err == nil {
		t.Error("expected validation error for zero start time")
	}
}
