package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/flacsync/internal/formatter"
	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/repositories"
	"github.com/desertthunder/flacsync/internal/shared"
	"github.com/desertthunder/flacsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// LedgerList prints ledger entries, newest first.
func (r *Runner) LedgerList(ctx context.Context, cmd *cli.Command) error {
	memo, err := r.openLedger()
	if err != nil {
		return err
	}

	records := memo.Recent(cmd.Int("limit"))
	if cmd.Bool("json") {
		return r.writeJSON(records, cmd.Bool("pretty"))
	}
	if len(records) == 0 {
		r.writePlain("Failure ledger is empty.\n")
		return nil
	}
	r.writePlain("%s\n", formatter.LedgerTable(records))
	return nil
}

// LedgerSummary prints counts by reason and the five most recent entries.
func (r *Runner) LedgerSummary(ctx context.Context, cmd *cli.Command) error {
	memo, err := r.openLedger()
	if err != nil {
		return err
	}

	formatter.LedgerSummary(r.output, memo.Count(), memo.CountByReason(), memo.Recent(5))
	return nil
}

// LedgerClear removes one track so the next run tries it again. A stored track row
// left in the error state is dropped too so stats stop counting it.
func (r *Runner) LedgerClear(ctx context.Context, cmd *cli.Command) error {
	title := strings.TrimSpace(cmd.String("title"))
	artist := strings.TrimSpace(cmd.String("artist"))
	if title == "" || artist == "" {
		return fmt.Errorf("%w: --title and --artist", shared.ErrMissingArgument)
	}

	memo, err := r.openLedger()
	if err != nil {
		return err
	}

	removed, err := memo.Clear(title, artist)
	if err != nil {
		return err
	}
	if !removed {
		r.writePlain("%s %s - %s is not in the ledger\n", ui.Styles.Warn("!"), artist, title)
		return nil
	}
	r.writePlain("%s Cleared %s - %s\n", ui.Styles.OK("✓"), artist, title)
	return r.forgetErrorTrack(title, artist)
}

func (r *Runner) forgetErrorTrack(title, artist string) error {
	db, err := r.openDatabase()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	tracks := repositories.NewTrackRepository(db)
	track, err := tracks.GetByKey(title, artist)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if track.Status != models.TrackError {
		return nil
	}
	if err := tracks.Delete(track.ID); err != nil {
		return err
	}
	r.logger.Debug("stored error track removed", "id", track.ID, "title", title, "artist", artist)
	return nil
}

// LedgerClearAll empties the ledger.
func (r *Runner) LedgerClearAll(ctx context.Context, cmd *cli.Command) error {
	memo, err := r.openLedger()
	if err != nil {
		return err
	}

	n, err := memo.ClearAll()
	if err != nil {
		return err
	}
	r.logger.Info("ledger cleared", "entries", n)
	r.writePlain("%s Cleared %d entries\n", ui.Styles.OK("✓"), n)
	return nil
}
