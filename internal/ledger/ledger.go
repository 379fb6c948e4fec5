// package ledger persists tracks that definitively failed so later sessions skip them
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/shared"
	"github.com/gofrs/flock"
)

// Key returns the ledger identity for a track: case-folded, trimmed and
// whitespace-collapsed title and artist joined by "|".
func Key(title, artist string) string {
	return shared.NormalizeTrackKey(title, artist)
}

// Memo is a write-through failure ledger backed by a JSON file.
//
// All methods are safe for concurrent use. Writes additionally take an advisory
// file lock so separate processes sharing the file serialize their updates.
type Memo struct {
	mu      sync.Mutex
	path    string
	lock    *flock.Flock
	records map[string]models.FailureRecord
	logger  *log.Logger
	now     func() time.Time
}

// Open loads the ledger at path. A missing file yields an empty ledger and a
// malformed one is discarded with a warning. Permission and other I/O errors are returned.
func Open(path string, logger *log.Logger) (*Memo, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	m := &Memo{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: shared.WithLogger(logger, "component", "ledger"),
		now:    time.Now,
	}

	records, err := m.load()
	if err != nil {
		return nil, err
	}
	m.records = records

	m.logger.Debug("ledger loaded", "entries", len(m.records))
	return m, nil
}

// load reads the ledger file. Missing, empty and malformed files all yield an empty map.
func (m *Memo) load() (map[string]models.FailureRecord, error) {
	records := make(map[string]models.FailureRecord)

	data, err := os.ReadFile(m.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return records, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return records, nil
	}

	var stored map[string]models.FailureRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		m.logger.Warn("ledger is corrupted, starting fresh", "path", m.path, "error", err)
		return records, nil
	}
	for key, record := range stored {
		records[key] = record
	}
	return records, nil
}

// Path returns the ledger file location.
func (m *Memo) Path() string { return m.path }

// Record upserts a failure: attempts is incremented, the reason replaced and the timestamp refreshed.
// The ledger is persisted before Record returns.
func (m *Memo) Record(title, artist, reason string) (models.FailureRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key(title, artist)
	var record models.FailureRecord
	err := m.update(func(records map[string]models.FailureRecord) bool {
		record = models.FailureRecord{
			Title:     title,
			Artist:    artist,
			Error:     reason,
			Timestamp: models.UnixSeconds(m.now()),
			Attempts:  records[key].Attempts + 1,
		}
		records[key] = record
		return true
	})

	m.logger.Debug("failure recorded", "title", title, "artist", artist, "reason", reason, "attempts", record.Attempts)
	return record, err
}

// IsKnownFailure reports whether the track has a ledger entry.
func (m *Memo) IsKnownFailure(title, artist string) bool {
	_, ok := m.Get(title, artist)
	return ok
}

// Reason returns the recorded failure reason, or "" when the track is not in the ledger.
func (m *Memo) Reason(title, artist string) string {
	record, ok := m.Get(title, artist)
	if !ok {
		return ""
	}
	if record.Error == "" {
		return "Unknown error"
	}
	return record.Error
}

// Get returns the ledger entry for a track.
func (m *Memo) Get(title, artist string) (models.FailureRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[Key(title, artist)]
	return record, ok
}

// Clear removes one entry and reports whether it existed.
func (m *Memo) Clear(title, artist string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key(title, artist)
	var found bool
	err := m.update(func(records map[string]models.FailureRecord) bool {
		_, found = records[key]
		delete(records, key)
		return found
	})
	if found {
		m.logger.Debug("failure cleared", "title", title, "artist", artist)
	}
	return found, err
}

// ClearAll empties the ledger and returns how many entries were removed.
func (m *Memo) ClearAll() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	err := m.update(func(records map[string]models.FailureRecord) bool {
		n = len(records)
		clear(records)
		return true
	})
	m.logger.Info("ledger cleared", "removed", n)
	return n, err
}

// Count returns the number of entries.
func (m *Memo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Records returns every entry, newest first.
func (m *Memo) Records() []models.FailureRecord {
	m.mu.Lock()
	records := make([]models.FailureRecord, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r)
	}
	m.mu.Unlock()

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp != records[j].Timestamp {
			return records[i].Timestamp > records[j].Timestamp
		}
		return Key(records[i].Title, records[i].Artist) < Key(records[j].Title, records[j].Artist)
	})
	return records
}

// Recent returns at most n entries, newest first.
func (m *Memo) Recent(n int) []models.FailureRecord {
	records := m.Records()
	if n >= 0 && len(records) > n {
		records = records[:n]
	}
	return records
}

// ReasonCount is the number of entries sharing a failure reason.
type ReasonCount struct {
	Reason string
	Count  int
}

// CountByReason groups entries by reason, most frequent first.
func (m *Memo) CountByReason() []ReasonCount {
	m.mu.Lock()
	counts := make(map[string]int)
	for _, r := range m.records {
		reason := r.Error
		if reason == "" {
			reason = "Unknown"
		}
		counts[reason]++
	}
	m.mu.Unlock()

	out := make([]ReasonCount, 0, len(counts))
	for reason, count := range counts {
		out = append(out, ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// update applies mutate to the on-disk ledger while holding the file lock, so
// entries written by other processes since Open are kept. The reloaded map
// becomes the in-memory view. Nothing is written when mutate returns false.
// Callers hold m.mu.
func (m *Memo) update(mutate func(map[string]models.FailureRecord) bool) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	if err := m.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock ledger: %w", err)
	}
	defer m.lock.Unlock()

	records, err := m.load()
	if err != nil {
		return err
	}
	m.records = records

	if !mutate(records) {
		return nil
	}
	return m.write(dir, records)
}

// write replaces the ledger file atomically. Callers hold the file lock.
func (m *Memo) write(dir string, records map[string]models.FailureRecord) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(m.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace ledger: %w", err)
	}

	m.logger.Debug("ledger saved", "entries", len(records))
	return nil
}
