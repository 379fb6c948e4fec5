// package formatter renders download results: the failed-downloads CSV, ledger tables and session summaries
package formatter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/flacsync/internal/ledger"
	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/services"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

var failedHeaders = []string{"title", "artist", "status", "timestamp"}

// ExportFailedCSV converts failed downloads to CSV with columns: title, artist, status, timestamp
func ExportFailedCSV(rows []models.FailedDownload) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(failedHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range rows {
		record := []string{row.Title, row.Artist, row.Status, row.Timestamp.Format(time.RFC3339)}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteFailedCSV replaces the log at path. Nothing is written when rows is empty.
func WriteFailedCSV(path string, rows []models.FailedDownload) error {
	if len(rows) == 0 {
		return nil
	}

	data, err := ExportFailedCSV(rows)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}
	return nil
}

// ReadFailedCSV loads a log written by [WriteFailedCSV]. A missing file yields no rows.
func ReadFailedCSV(path string) ([]models.FailedDownload, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV file: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	rows := make([]models.FailedDownload, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < len(failedHeaders) {
			continue
		}
		ts, _ := time.Parse(time.RFC3339, rec[3])
		rows = append(rows, models.FailedDownload{Title: rec[0], Artist: rec[1], Status: rec[2], Timestamp: ts})
	}
	return rows, nil
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// LedgerTable renders ledger entries as a table, in the order given.
func LedgerTable(records []models.FailureRecord) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Title,
			r.Artist,
			r.Error,
			strconv.Itoa(r.Attempts),
			humanize.Time(r.Time()),
		})
	}
	return renderTable(
		[]string{"Title", "Artist", "Reason", "Attempts", "Last failure"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

// ReasonTable renders per-reason counts.
func ReasonTable(counts []ledger.ReasonCount) string {
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{c.Reason, strconv.Itoa(c.Count)})
	}
	return renderTable([]string{"Reason", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}

// TrackTable renders catalog search results.
func TrackTable(tracks []models.Track) string {
	rows := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			t.Title,
			t.Artist,
			t.Album,
			formatDuration(t.Duration),
			t.Quality,
		})
	}
	return renderTable(
		[]string{"ID", "Title", "Artist", "Album", "Length", "Quality"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

// TrackRecordTable renders stored playlist entries.
func TrackRecordTable(tracks []*models.TrackRecord) string {
	rows := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		detail := t.Error
		if t.Status == models.TrackDownloaded {
			detail = humanize.Bytes(uint64(t.FileSize))
		}
		rows = append(rows, []string{
			strconv.Itoa(t.Sequence),
			t.Title,
			t.Artist,
			string(t.Status),
			detail,
			humanize.Time(t.UpdatedAt),
		})
	}
	return renderTable(
		[]string{"#", "Title", "Artist", "Status", "Detail", "Updated"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}

// SessionTable renders stored download sessions.
func SessionTable(sessions []*models.SessionRecord) string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		state := "running"
		switch {
		case s.Interrupted:
			state = "interrupted"
		case s.FinishedAt != nil:
			state = "finished"
		}
		rows = append(rows, []string{
			s.Playlist,
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Succeeded),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Skipped),
			state,
			humanize.Time(s.StartedAt),
		})
	}
	return renderTable(
		[]string{"Playlist", "Total", "OK", "Failed", "Skipped", "State", "Started"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	)
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// LedgerSummary writes the total, the per-reason breakdown and the most recent entries.
func LedgerSummary(w io.Writer, total int, counts []ledger.ReasonCount, recent []models.FailureRecord) {
	if total == 0 {
		fmt.Fprintln(w, "Failure ledger is empty.")
		return
	}
	fmt.Fprintf(w, "Failure ledger: %d tracks\n", total)
	fmt.Fprintln(w, ReasonTable(counts))
	if len(recent) > 0 {
		fmt.Fprintf(w, "Most recent %d:\n", len(recent))
		fmt.Fprintln(w, LedgerTable(recent))
	}
}

// FormatElapsed renders d as "Xm Ys".
func FormatElapsed(d time.Duration) string {
	secs := int(d.Seconds())
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}

// WriteSummary writes the end-of-session report.
func WriteSummary(w io.Writer, s models.Summary, api services.RouterStats, failedLog string) {
	var b strings.Builder

	if s.Interrupted {
		fmt.Fprintf(&b, "Interrupted. Downloaded before stop: %d\n", s.Succeeded)
	}
	fmt.Fprintf(&b, "Total time:   %s\n", FormatElapsed(s.Elapsed))
	fmt.Fprintf(&b, "Already here: %d\n", s.Existing)
	fmt.Fprintf(&b, "Successful:   %d/%d\n", s.Succeeded, s.Attempted())
	fmt.Fprintf(&b, "Failed:       %d/%d\n", s.Failed, s.Attempted())
	fmt.Fprintf(&b, "Skipped:      %d (known failures)\n", s.Skipped)
	fmt.Fprintf(&b, "Success rate: %.1f%%\n", s.SuccessRate())
	fmt.Fprintf(&b, "API requests: %d (success: %.1f%%)\n", api.Total, api.SuccessRate)

	if len(s.Failures) > 0 && failedLog != "" {
		fmt.Fprintf(&b, "Failed downloads saved to: %s\n", failedLog)
	} else if s.Failed == 0 && !s.Interrupted {
		b.WriteString("All downloads successful!\n")
	}

	io.WriteString(w, b.String())
}
