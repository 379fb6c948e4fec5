package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/flacsync/internal/formatter"
	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/repositories"
	"github.com/desertthunder/flacsync/internal/shared"
	"github.com/desertthunder/flacsync/internal/tagging"
	"github.com/desertthunder/flacsync/internal/tasks"
	"github.com/desertthunder/flacsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// DownloadRun fetches a playlist and downloads every track that is not already on disk.
func (r *Runner) DownloadRun(ctx context.Context, cmd *cli.Command) error {
	r.applyDownloadFlags(cmd)

	playlist := cmd.String("playlist")
	if playlist == "" {
		playlist = r.config.Playlist.URL
	}
	if playlist == "" {
		return fmt.Errorf("%w: --playlist or SPOTIFY_PLAYLIST_URL", shared.ErrMissingArgument)
	}

	source, err := r.playlistSource()
	if err != nil {
		return err
	}

	r.writePlain("📥 Fetching playlist %s\n", playlist)
	refs, err := source.Tracks(ctx, playlist)
	if err != nil {
		return fmt.Errorf("failed to fetch playlist: %w", err)
	}
	r.writePlain("   %d tracks\n", len(refs))

	return r.runSession(ctx, playlist, refs)
}

// DownloadTrack downloads a single track by title and artist.
func (r *Runner) DownloadTrack(ctx context.Context, cmd *cli.Command) error {
	r.applyDownloadFlags(cmd)

	title := strings.TrimSpace(cmd.String("title"))
	artist := strings.TrimSpace(cmd.String("artist"))
	if title == "" || artist == "" {
		return fmt.Errorf("%w: --title and --artist", shared.ErrMissingArgument)
	}

	return r.runSession(ctx, "manual", []models.TrackRef{{Title: title, Artist: artist}})
}

// DownloadFailed lists the tracks in the failed-downloads log. With --retry their
// ledger entries are cleared and they are downloaded again.
func (r *Runner) DownloadFailed(ctx context.Context, cmd *cli.Command) error {
	r.applyDownloadFlags(cmd)

	path := r.config.FailedLogPath()
	rows, err := formatter.ReadFailedCSV(path)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		r.writePlain("No failed downloads logged at %s\n", path)
		return nil
	}

	if !cmd.Bool("retry") {
		if cmd.Bool("json") {
			return r.writeJSON(rows, true)
		}
		r.writePlainHeader(fmt.Sprintf("Failed downloads (%d)", len(rows)))
		for i, row := range rows {
			r.writePlain("%3d. %s - %s  %s\n", i+1, row.Artist, row.Title, ui.Styles.Help(row.Status))
		}
		return nil
	}

	memo, err := r.openLedger()
	if err != nil {
		return err
	}

	refs := make([]models.TrackRef, 0, len(rows))
	for _, row := range rows {
		if _, err := memo.Clear(row.Title, row.Artist); err != nil {
			return fmt.Errorf("failed to clear ledger entry: %w", err)
		}
		refs = append(refs, models.TrackRef{Title: row.Title, Artist: row.Artist})
	}
	r.logger.Info("retrying failed downloads", "count", len(refs))

	return r.runSession(ctx, "retry", refs)
}

func (r *Runner) applyDownloadFlags(cmd *cli.Command) {
	if folder := cmd.String("folder"); folder != "" {
		r.config.Download.Folder = folder
	}
	if retries := cmd.Int("retries"); retries > 0 {
		r.config.Download.RetryMaxCount = retries
	}
	if cmd.Bool("no-tags") {
		r.config.Download.Tags = false
	}
}

// runSession wires the catalog, ledger, store and tagger into a session and prints its summary.
func (r *Runner) runSession(ctx context.Context, playlist string, refs []models.TrackRef) error {
	catalog, err := r.openCatalog()
	if err != nil {
		return err
	}

	memo, err := r.openLedger()
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	folder := r.config.DownloadFolder()

	var tagger tagging.Tagger
	if r.config.Download.Tags {
		tagger = tagging.NewFLACTagger(r.logger)
	}

	orchestrator, err := tasks.NewOrchestrator(tasks.OrchestratorOpts{
		Catalog:     catalog,
		Memo:        memo,
		Tagger:      tagger,
		Recorder:    repositories.NewDownloadRepository(db),
		Folder:      folder,
		Quality:     r.config.Catalog.Quality,
		Covers:      r.config.Download.Covers,
		Logger:      r.logger,
		NewProgress: r.progress.Track,
	})
	if err != nil {
		return err
	}

	session, err := tasks.NewSession(tasks.SessionOpts{
		Processor:     orchestrator,
		Ledger:        memo,
		Tracks:        repositories.NewTrackRepository(db),
		Sessions:      repositories.NewSessionRepository(db),
		Folder:        folder,
		RetryMaxCount: r.config.Download.RetryMaxCount,
		RetryWait:     r.config.Download.RetryWaitDuration(),
		TrackInterval: r.config.Download.TrackInterval(),
		SkipExisting:  r.config.Download.SkipExisting,
		FailedLogPath: r.config.FailedLogPath(),
		Logger:        r.logger,
	})
	if err != nil {
		return err
	}

	r.writePlain("📁 Downloading to %s\n\n", folder)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.printUpdate(update)
		}
	}()

	summary, runErr := session.Run(ctx, playlist, refs, progressCh)
	close(progressCh)
	<-done

	r.writePlain("\n")
	r.writePlainHeader("Download Summary")
	formatter.WriteSummary(r.output, *summary, orchestrator.Stats(), r.config.FailedLogPath())
	r.writePlain("\n")
	formatter.LedgerSummary(r.output, memo.Count(), memo.CountByReason(), memo.Recent(5))

	return runErr
}

func (r *Runner) printUpdate(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.ScanFolder:
		r.writePlain("🔍 %s\n", update.Message)
	case tasks.ProcessTrack:
		r.writePlain("%s\n", update.Message)
	case tasks.RetryTrack, tasks.SkipTrack:
		r.writePlain("   %s\n", ui.Styles.Warn(update.Message))
	case tasks.TrackDone:
		r.writePlain("   %s\n", ui.Styles.OK(update.Message))
	case tasks.TrackFailed:
		r.writePlain("   %s\n", ui.Styles.Err(update.Message))
	}
}
