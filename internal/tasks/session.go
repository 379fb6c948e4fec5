package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/flacsync/internal/formatter"
	"github.com/desertthunder/flacsync/internal/matching"
	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/shared"
	"golang.org/x/time/rate"
)

// SessionOpts configures a [Session].
type SessionOpts struct {
	Processor     Processor
	Ledger        FailureLedger // optional
	Tracks        TrackStore    // optional
	Sessions      SessionStore  // optional
	Folder        string
	RetryMaxCount int
	RetryWait     time.Duration
	TrackInterval time.Duration
	SkipExisting  bool
	FailedLogPath string // empty disables the CSV
	Logger        *log.Logger
}

// Session downloads a list of tracks one at a time with whole-track retries.
type Session struct {
	opts   SessionOpts
	logger *log.Logger
	now    func() time.Time
}

func NewSession(opts SessionOpts) (*Session, error) {
	if opts.Processor == nil {
		return nil, fmt.Errorf("%w: session needs a processor", shared.ErrInvalidConfig)
	}
	if opts.RetryMaxCount < 1 {
		opts.RetryMaxCount = 1
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Session{
		opts:   opts,
		logger: shared.WithLogger(opts.Logger, "component", "session"),
		now:    time.Now,
	}, nil
}

// Run processes refs in order and returns the tally.
//
// Cancelling ctx stops the loop between attempts; the summary is still returned with
// Interrupted set and the failed-downloads CSV is still written. A failure is recorded
// in the ledger only after its final attempt, and never for an interrupted track.
// The returned error is non-nil only for failures the caller cannot treat as a
// per-track outcome (folder unreadable, ledger unwritable, CSV unwritable).
func (s *Session) Run(ctx context.Context, playlist string, refs []models.TrackRef, progress chan<- ProgressUpdate) (*models.Summary, error) {
	start := s.now()
	summary := &models.Summary{Playlist: playlist, Total: len(refs)}

	files, err := matching.ListAudioFiles(s.opts.Folder)
	if err != nil {
		return summary, err
	}
	record := s.startRecord(playlist, len(refs), start)

	pending := refs
	if s.opts.SkipExisting {
		pending = pending[:0:0]
		for _, ref := range refs {
			if matching.IsDownloaded(ref.Title, ref.Artist, files) {
				summary.Existing++
				s.storeTrack(playlist, ref, models.Outcome{Status: models.StatusSuccess})
				continue
			}
			pending = append(pending, ref)
		}
	}
	s.logger.Info("starting session", "playlist", playlist, "total", len(refs), "existing", summary.Existing, "pending", len(pending))
	sendProgress(progress, scanFolderUpdate(summary.Existing, len(pending), len(refs)))

	var limiter *rate.Limiter
	if s.opts.TrackInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(s.opts.TrackInterval), 1)
	}

	var fatal error
	total := len(pending)
	for i, ref := range pending {
		step := i + 1
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				summary.Interrupted = true
				break
			}
		}

		// Playlists can repeat an entry; the refreshed listing catches copies fetched earlier in this run.
		if s.opts.SkipExisting && matching.IsDownloaded(ref.Title, ref.Artist, files) {
			summary.Existing++
			sendProgress(progress, skipTrackUpdate(step, total, ref, "already downloaded"))
			continue
		}

		if s.opts.Ledger != nil && s.opts.Ledger.IsKnownFailure(ref.Title, ref.Artist) {
			reason := s.opts.Ledger.Reason(ref.Title, ref.Artist)
			s.logger.Info("skipping cached failure", "track", ref.String(), "reason", reason)
			summary.Skipped++
			s.storeTrack(playlist, ref, models.Outcome{Status: models.StatusSkipped, Reason: reason})
			sendProgress(progress, skipTrackUpdate(step, total, ref, reason))
			continue
		}

		sendProgress(progress, processTrackUpdate(step, total, ref))
		outcome, attempts := s.attempt(ctx, step, total, ref, progress)

		if !outcome.Succeeded() && ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		s.storeTrack(playlist, ref, outcome)
		switch {
		case outcome.Succeeded():
			summary.Succeeded++
			sendProgress(progress, trackDoneUpdate(step, total, outcome))
			if refreshed, err := matching.ListAudioFiles(s.opts.Folder); err == nil {
				files = refreshed
			}
		case outcome.Status == models.StatusSkipped:
			summary.Skipped++
			sendProgress(progress, skipTrackUpdate(step, total, ref, outcome.Reason))
		default:
			if outcome.Reason == "" {
				outcome.Reason = outcome.Status.Reason()
			}
			summary.Failed++
			summary.Failures = append(summary.Failures, models.FailedDownload{
				Title:     ref.Title,
				Artist:    ref.Artist,
				Status:    outcome.Reason,
				Timestamp: s.now(),
			})
			sendProgress(progress, trackFailedUpdate(step, total, ref, outcome))
			s.logger.Warn("track failed", "track", ref.String(), "reason", outcome.Reason, "attempts", attempts)

			if s.opts.Ledger != nil {
				if _, err := s.opts.Ledger.Record(ref.Title, ref.Artist, outcome.Reason); err != nil {
					fatal = fmt.Errorf("failed to record failure for %s: %w", ref, err)
				}
			}
		}
		if fatal != nil {
			break
		}
	}

	summary.Elapsed = s.now().Sub(start)
	if summary.Interrupted {
		s.logger.Warn("session interrupted", "succeeded", summary.Succeeded, "failed", summary.Failed)
	}

	if s.opts.FailedLogPath != "" {
		if err := formatter.WriteFailedCSV(s.opts.FailedLogPath, summary.Failures); err != nil {
			fatal = errors.Join(fatal, err)
		} else if len(summary.Failures) > 0 {
			s.logger.Info("failed downloads saved", "path", s.opts.FailedLogPath, "count", len(summary.Failures))
		}
	}

	s.finishRecord(record, summary)
	sendProgress(progress, finishedUpdate(*summary))
	return summary, fatal
}

// attempt runs up to RetryMaxCount attempts, stopping early on success, a skip, or cancellation.
// Cancellation is observed between attempts; an attempt in flight runs to completion.
func (s *Session) attempt(ctx context.Context, step, total int, ref models.TrackRef, progress chan<- ProgressUpdate) (models.Outcome, int) {
	var outcome models.Outcome
	attempts := 0
	inflight := context.WithoutCancel(ctx)
	for attempts < s.opts.RetryMaxCount {
		attempts++
		outcome = s.opts.Processor.Process(inflight, ref.Title, ref.Artist)
		if !outcome.Status.IsTerminalFailure() || ctx.Err() != nil {
			break
		}
		if attempts < s.opts.RetryMaxCount {
			sendProgress(progress, retryTrackUpdate(step, total, attempts+1, s.opts.RetryMaxCount, ref))
			s.logger.Debug("retrying track", "track", ref.String(), "attempt", attempts+1, "reason", outcome.Reason)
			if !wait(ctx, s.opts.RetryWait) {
				break
			}
		}
	}
	return outcome, attempts
}

// wait sleeps for d and reports false if ctx ended first.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Session) storeTrack(playlist string, ref models.TrackRef, outcome models.Outcome) {
	if s.opts.Tracks == nil {
		return
	}
	track := models.NewTrackRecord(playlist, ref)
	if err := s.opts.Tracks.Upsert(track); err != nil {
		s.logger.Warn("failed to store track", "track", ref.String(), "err", err)
		return
	}

	switch outcome.Status {
	case models.StatusSuccess:
		track.Status = models.TrackDownloaded
		track.CatalogID = outcome.Track.ID
		track.FilePath = outcome.FilePath
		track.FileSize = outcome.Size
		track.Error = ""
	case models.StatusSkipped:
		track.Status = models.TrackSkipped
		track.Error = outcome.Reason
	default:
		track.Status = models.TrackError
		track.Error = outcome.Reason
	}
	if err := s.opts.Tracks.UpdateStatus(track); err != nil {
		s.logger.Warn("failed to update track status", "track", ref.String(), "err", err)
	}
}

func (s *Session) startRecord(playlist string, total int, start time.Time) *models.SessionRecord {
	if s.opts.Sessions == nil {
		return nil
	}
	rec := &models.SessionRecord{Playlist: playlist, Total: total, StartedAt: start}
	if err := s.opts.Sessions.Start(rec); err != nil {
		s.logger.Warn("failed to store session", "err", err)
		return nil
	}
	return rec
}

func (s *Session) finishRecord(rec *models.SessionRecord, summary *models.Summary) {
	if rec == nil {
		return
	}
	rec.Succeeded = summary.Succeeded
	rec.Failed = summary.Failed
	rec.Skipped = summary.Skipped
	rec.Interrupted = summary.Interrupted
	if err := s.opts.Sessions.Finish(rec); err != nil {
		s.logger.Warn("failed to finish session", "err", err)
	}
}
