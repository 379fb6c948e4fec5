package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/flacsync/internal/formatter"
	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/repositories"
	"github.com/desertthunder/flacsync/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// StatsReport is the JSON shape of the stats command.
type StatsReport struct {
	Tracks         map[models.TrackStatus]int `json:"tracks"`
	Downloads      int                        `json:"downloads"`
	DownloadBytes  int64                      `json:"download_bytes"`
	LedgerEntries  int                        `json:"ledger_entries"`
	RecentSessions []*models.SessionRecord    `json:"recent_sessions"`
	Listed         []*models.TrackRecord      `json:"listed,omitempty"`
}

var trackStatuses = []models.TrackStatus{models.TrackDownloaded, models.TrackError, models.TrackSkipped, models.TrackPending}

func parseTrackStatus(s string) (models.TrackStatus, error) {
	for _, status := range trackStatuses {
		if strings.EqualFold(s, string(status)) {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: status %q", shared.ErrInvalidArgument, s)
}

// Stats prints store counters: track statuses, download volume, ledger size and recent sessions.
// --status additionally lists the stored tracks in that state.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	var status models.TrackStatus
	if s := cmd.String("status"); s != "" {
		parsed, err := parseTrackStatus(s)
		if err != nil {
			return err
		}
		status = parsed
	}

	db, err := r.openDatabase()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	memo, err := r.openLedger()
	if err != nil {
		return err
	}

	tracks := repositories.NewTrackRepository(db)
	counts, err := tracks.Counts()
	if err != nil {
		return err
	}
	var listed []*models.TrackRecord
	if status != "" {
		if listed, err = tracks.ListByStatus(status); err != nil {
			return err
		}
	}
	downloads, err := repositories.NewDownloadRepository(db).Stats()
	if err != nil {
		return err
	}
	sessions, err := repositories.NewSessionRepository(db).Recent(5)
	if err != nil {
		return err
	}

	report := StatsReport{
		Tracks:         counts,
		Downloads:      downloads.Count,
		DownloadBytes:  downloads.TotalBytes,
		LedgerEntries:  memo.Count(),
		RecentSessions: sessions,
		Listed:         listed,
	}
	if cmd.Bool("json") {
		return r.writeJSON(report, cmd.Bool("pretty"))
	}

	r.writePlainHeader("flacsync stats")
	for _, s := range trackStatuses {
		r.writePlain("%-12s %d\n", string(s)+":", counts[s])
	}
	r.writePlain("%-12s %d (%s)\n", "files:", downloads.Count, humanize.Bytes(uint64(downloads.TotalBytes)))
	r.writePlain("%-12s %d\n", "ledger:", report.LedgerEntries)

	if len(sessions) > 0 {
		r.writePlainln("Recent sessions")
		r.writePlain("%s\n", formatter.SessionTable(sessions))
	}

	if status != "" {
		r.writePlain("Tracks with status %s\n", status)
		if len(listed) == 0 {
			r.writePlain("None.\n")
			return nil
		}
		r.writePlain("%s\n", formatter.TrackRecordTable(listed))
	}
	return nil
}
