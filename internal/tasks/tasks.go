package tasks

import (
	"context"

	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/services"
)

// FailureLookup answers whether a track already failed permanently.
type FailureLookup interface {
	IsKnownFailure(title, artist string) bool
	Reason(title, artist string) string
}

// FailureLedger is a [FailureLookup] that also records new failures.
type FailureLedger interface {
	FailureLookup
	Record(title, artist, reason string) (models.FailureRecord, error)
}

// DownloadRecorder persists completed downloads. Implemented by repositories.DownloadRepository.
type DownloadRecorder interface {
	Create(rec *models.DownloadRecord) error
}

// TrackStore persists playlist entries and their status. Implemented by repositories.TrackRepository.
type TrackStore interface {
	Upsert(track *models.TrackRecord) error
	UpdateStatus(track *models.TrackRecord) error
}

// SessionStore persists session rows. Implemented by repositories.SessionRepository.
type SessionStore interface {
	Start(s *models.SessionRecord) error
	Finish(s *models.SessionRecord) error
}

// Processor runs one attempt for one track.
type Processor interface {
	Process(ctx context.Context, title, artist string) models.Outcome
	Stats() services.RouterStats
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
