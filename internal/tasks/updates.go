package tasks

import (
	"fmt"

	"github.com/desertthunder/flacsync/internal/models"
)

// ProgressUpdate represents a progress event during a download session.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current track number
	Total   int    // Total tracks in this session
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Session phase enumeration
type Phase int

const (
	ScanFolder Phase = iota
	ProcessTrack
	RetryTrack
	SkipTrack
	TrackDone
	TrackFailed
	Finished
)

func (p Phase) String() string {
	switch p {
	case ScanFolder:
		return "scan_folder"
	case ProcessTrack:
		return "process_track"
	case RetryTrack:
		return "retry_track"
	case SkipTrack:
		return "skip_track"
	case TrackDone:
		return "track_done"
	case TrackFailed:
		return "track_failed"
	case Finished:
		return "finished"
	default:
		return ""
	}
}

func scanFolderUpdate(existing, pending, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanFolder,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("%d already downloaded, %d to download", existing, pending),
	}
}

func processTrackUpdate(step, total int, ref models.TrackRef) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ProcessTrack,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, ref),
		Data:    ref,
	}
}

func retryTrackUpdate(step, total, attempt, maxAttempts int, ref models.TrackRef) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RetryTrack,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] retry %d/%d: %s", step, total, attempt, maxAttempts, ref),
		Data:    ref,
	}
}

func skipTrackUpdate(step, total int, ref models.TrackRef, reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SkipTrack,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] skipped %s (%s)", step, total, ref, reason),
		Data:    ref,
	}
}

func trackDoneUpdate(step, total int, outcome models.Outcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   TrackDone,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, outcome.Track),
		Data:    outcome,
	}
}

func trackFailedUpdate(step, total int, ref models.TrackRef, outcome models.Outcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   TrackFailed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, ref, outcome.Reason),
		Data:    outcome,
	}
}

func finishedUpdate(summary models.Summary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finished,
		Step:    summary.Total,
		Total:   summary.Total,
		Message: fmt.Sprintf("%d succeeded, %d failed, %d skipped", summary.Succeeded, summary.Failed, summary.Skipped),
		Data:    summary,
	}
}
