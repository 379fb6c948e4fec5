package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/flacsync/internal/matching"
	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/services"
	"github.com/desertthunder/flacsync/internal/shared"
	"github.com/desertthunder/flacsync/internal/tagging"
	"github.com/dustin/go-humanize"
	"github.com/gosimple/slug"
)

// OrchestratorOpts configures an [Orchestrator].
type OrchestratorOpts struct {
	Catalog  services.Catalog
	Memo     FailureLookup    // optional; nil disables the known-failure skip
	Tagger   tagging.Tagger   // optional; nil leaves files untagged
	Recorder DownloadRecorder // optional
	Folder   string
	Quality  string
	Covers   bool
	Logger   *log.Logger

	// NewProgress returns a byte progress callback for one transfer and a func to call when it ends.
	NewProgress func(label string) (services.ProgressFunc, func())
}

// Orchestrator turns one (title, artist) request into a file on disk.
//
// It reads the failure ledger but never writes to it; recording failures is the session's job.
type Orchestrator struct {
	opts   OrchestratorOpts
	logger *log.Logger
}

func NewOrchestrator(opts OrchestratorOpts) (*Orchestrator, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("%w: orchestrator needs a catalog", shared.ErrInvalidConfig)
	}
	if opts.Folder == "" {
		return nil, fmt.Errorf("%w: orchestrator needs a download folder", shared.ErrInvalidConfig)
	}
	if opts.Quality == "" {
		opts.Quality = models.DefaultQuality
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Orchestrator{opts: opts, logger: shared.WithLogger(opts.Logger, "component", "orchestrator")}, nil
}

// Stats passes through the catalog's request counters.
func (o *Orchestrator) Stats() services.RouterStats { return o.opts.Catalog.Stats() }

// DestPath is where a track is written: "<artist> - <title>.flac" inside the folder.
func (o *Orchestrator) DestPath(title, artist string) string {
	name := shared.SanitizeFileName(artist) + " - " + shared.SanitizeFileName(title) + ".flac"
	return filepath.Join(o.opts.Folder, name)
}

// Process runs the resolve and download pipeline once. Expected failures come back as
// the outcome status, never as errors.
func (o *Orchestrator) Process(ctx context.Context, title, artist string) models.Outcome {
	requested := models.Track{Title: title, Artist: artist}

	if o.opts.Memo != nil && o.opts.Memo.IsKnownFailure(title, artist) {
		reason := o.opts.Memo.Reason(title, artist)
		o.logger.Info("skipping known failure", "title", title, "artist", artist, "reason", reason)
		return models.Outcome{Status: models.StatusSkipped, Track: requested, Reason: reason}
	}

	stream, err := o.resolve(ctx, title, artist)
	if err != nil {
		o.logger.Warn("track not found", "title", title, "artist", artist, "err", err)
		return models.Outcome{Status: models.StatusNotFound, Track: requested, Reason: models.StatusNotFound.Reason()}
	}

	dest := o.DestPath(title, artist)
	size, err := o.download(ctx, stream.StreamURL, dest, stream.Track)
	if err != nil {
		o.logger.Error("download failed", "title", title, "artist", artist, "err", err)
		return models.Outcome{Status: models.StatusDownloadError, Track: stream.Track, Reason: models.StatusDownloadError.Reason()}
	}

	outcome := models.Outcome{Status: models.StatusSuccess, Track: stream.Track, FilePath: dest, Size: size}
	o.finish(ctx, outcome)
	o.logger.Info("download complete", "track", stream.Track.String(), "size", humanize.Bytes(uint64(size)))
	return outcome
}

// resolve tries direct resolution first, then search, match and stream lookup.
// The first path to produce a URL wins.
func (o *Orchestrator) resolve(ctx context.Context, title, artist string) (models.StreamInfo, error) {
	query := strings.TrimSpace(title + " " + artist)

	stream, err := o.opts.Catalog.DirectResolution(ctx, query, o.opts.Quality)
	if err == nil && stream.StreamURL != "" {
		o.logger.Debug("direct resolution hit", "query", query)
		return withRequested(stream, query, title, artist), nil
	}
	if ctx.Err() != nil {
		return models.StreamInfo{}, ctx.Err()
	}
	o.logger.Debug("direct resolution missed, searching", "query", query, "err", err)

	candidates, err := o.opts.Catalog.SearchTracks(ctx, query)
	if err != nil {
		return models.StreamInfo{}, err
	}
	if len(candidates) == 0 {
		return models.StreamInfo{}, shared.ErrTrackNotFound
	}

	match, ok := matching.BestMatch(title, artist, candidates)
	if !ok {
		return models.StreamInfo{}, fmt.Errorf("%w: %d candidates for %q", shared.ErrNoMatch, len(candidates), query)
	}
	o.logger.Debug("matched candidate", "id", match.Track.ID, "score", match.Score, "track", match.Track.String())

	stream, err = o.opts.Catalog.StreamInfo(ctx, match.Track.ID, o.opts.Quality)
	if err != nil {
		return models.StreamInfo{}, err
	}
	if stream.StreamURL == "" {
		return models.StreamInfo{}, shared.ErrNoStream
	}
	if stream.Track.Title == "" || stream.Track.Title == "Unknown" {
		stream.Track = match.Track
	}
	return stream, nil
}

// withRequested fills metadata the direct payload left out from the request. A title
// equal to the query means the payload carried none.
func withRequested(stream models.StreamInfo, query, title, artist string) models.StreamInfo {
	if stream.Track.Title == "" || stream.Track.Title == "Unknown" || stream.Track.Title == query {
		stream.Track.Title = title
	}
	if stream.Track.Artist == "" || stream.Track.Artist == "Unknown" {
		stream.Track.Artist = artist
	}
	return stream
}

func (o *Orchestrator) download(ctx context.Context, url, dest string, track models.Track) (int64, error) {
	var progress services.ProgressFunc
	if o.opts.NewProgress != nil {
		fn, done := o.opts.NewProgress(track.String())
		defer done()
		progress = fn
	}

	size, err := o.opts.Catalog.DownloadTrack(ctx, url, dest, progress)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(dest)
		return 0, fmt.Errorf("%w: %s", shared.ErrEmptyDownload, dest)
	}
	return size, nil
}

// finish runs the best-effort steps after a successful transfer: cover, tags, store.
func (o *Orchestrator) finish(ctx context.Context, outcome models.Outcome) {
	track := outcome.Track

	coverPath := ""
	if o.opts.Covers && o.opts.Tagger != nil && track.CoverID != "" {
		coverPath = filepath.Join(o.opts.Folder, ".cover_"+slug.Make(track.Artist+" "+track.Title)+".jpg")
		if err := o.opts.Catalog.DownloadCover(ctx, track.CoverID, coverPath); err != nil {
			if !errors.Is(err, shared.ErrInvalidCoverID) {
				o.logger.Warn("cover download failed", "track", track.String(), "err", err)
			}
			coverPath = ""
		}
	}

	if o.opts.Tagger != nil {
		info := tagging.TagInfo{
			TrackID:   track.ID,
			Title:     track.Title,
			Artist:    track.Artist,
			Album:     track.Album,
			CoverPath: coverPath,
		}
		if err := o.opts.Tagger.Embed(outcome.FilePath, info); err != nil {
			o.logger.Warn("failed to tag file", "path", outcome.FilePath, "err", err)
		}
	}

	if coverPath != "" {
		if err := os.Remove(coverPath); err != nil && !os.IsNotExist(err) {
			o.logger.Warn("failed to remove temp cover", "path", coverPath, "err", err)
		}
	}

	if o.opts.Recorder != nil {
		if err := o.opts.Recorder.Create(models.NewDownloadRecord(outcome)); err != nil {
			o.logger.Warn("failed to record download", "track", track.String(), "err", err)
		}
	}
}
