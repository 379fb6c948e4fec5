package tasks

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/services"
	"github.com/desertthunder/flacsync/internal/shared"
	"github.com/desertthunder/flacsync/internal/tagging"
)

var errTransfer = errors.New("connection reset")

type mockCatalog struct {
	mu sync.Mutex

	direct      models.StreamInfo
	directErr   error
	search      []models.Track
	searchErr   error
	stream      models.StreamInfo
	streamErr   error
	body        []byte
	downloadErr error
	coverErr    error

	calls      map[string]int
	streamID   int64
	coverPaths []string
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		directErr: shared.ErrNotFound,
		body:      []byte("fLaC-audio"),
		calls:     map[string]int{},
	}
}

func (m *mockCatalog) count(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
}

func (m *mockCatalog) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockCatalog) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mockCatalog) SearchTracks(ctx context.Context, query string) ([]models.Track, error) {
	m.count("search")
	return m.search, m.searchErr
}

func (m *mockCatalog) DirectResolution(ctx context.Context, query, quality string) (models.StreamInfo, error) {
	m.count("direct")
	return m.direct, m.directErr
}

func (m *mockCatalog) StreamInfo(ctx context.Context, trackID int64, quality string) (models.StreamInfo, error) {
	m.count("stream")
	m.streamID = trackID
	return m.stream, m.streamErr
}

func (m *mockCatalog) DownloadTrack(ctx context.Context, url, dest string, progress services.ProgressFunc) (int64, error) {
	m.count("download")
	if m.downloadErr != nil {
		return 0, m.downloadErr
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(dest, m.body, 0644); err != nil {
		return 0, err
	}
	if progress != nil {
		progress(int64(len(m.body)), int64(len(m.body)))
	}
	return int64(len(m.body)), nil
}

func (m *mockCatalog) DownloadCover(ctx context.Context, coverID, dest string) error {
	m.count("cover")
	if m.coverErr != nil {
		return m.coverErr
	}
	m.coverPaths = append(m.coverPaths, dest)
	return os.WriteFile(dest, []byte("jpeg"), 0644)
}

func (m *mockCatalog) Stats() services.RouterStats {
	return services.RouterStats{Total: int64(m.total()), Succeeded: int64(m.total())}
}

type mockTagger struct {
	infos       []tagging.TagInfo
	coverOnDisk []bool
	err         error
}

func (m *mockTagger) Embed(path string, info tagging.TagInfo) error {
	m.infos = append(m.infos, info)
	onDisk := false
	if info.CoverPath != "" {
		_, err := os.Stat(info.CoverPath)
		onDisk = err == nil
	}
	m.coverOnDisk = append(m.coverOnDisk, onDisk)
	return m.err
}

func (m *mockTagger) TrackID(path string) (int64, error) { return 0, tagging.ErrNoTrackID }

type mockRecorder struct {
	records []*models.DownloadRecord
	err     error
}

func (m *mockRecorder) Create(rec *models.DownloadRecord) error {
	m.records = append(m.records, rec)
	return m.err
}

type mockLedger map[string]string

func (m mockLedger) IsKnownFailure(title, artist string) bool {
	_, ok := m[shared.NormalizeTrackKey(title, artist)]
	return ok
}

func (m mockLedger) Reason(title, artist string) string {
	return m[shared.NormalizeTrackKey(title, artist)]
}

// mockProcessor replays scripted outcomes per track key; the last outcome repeats.
type mockProcessor struct {
	mu       sync.Mutex
	folder   string
	outcomes map[string][]models.Outcome
	calls    map[string]int
	onCall   func(ref models.TrackRef, call int)
	// delay simulates a transfer that aborts when its context ends.
	delay time.Duration
}

func newMockProcessor(folder string) *mockProcessor {
	return &mockProcessor{folder: folder, outcomes: map[string][]models.Outcome{}, calls: map[string]int{}}
}

func (m *mockProcessor) script(title, artist string, statuses ...models.Status) {
	var outcomes []models.Outcome
	for _, status := range statuses {
		outcomes = append(outcomes, models.Outcome{
			Status: status,
			Track:  models.Track{Title: title, Artist: artist},
			Reason: status.Reason(),
		})
	}
	m.outcomes[shared.NormalizeTrackKey(title, artist)] = outcomes
}

func (m *mockProcessor) Process(ctx context.Context, title, artist string) models.Outcome {
	m.mu.Lock()
	key := shared.NormalizeTrackKey(title, artist)
	m.calls[key]++
	call := m.calls[key]
	script := m.outcomes[key]
	m.mu.Unlock()

	if m.onCall != nil {
		m.onCall(models.TrackRef{Title: title, Artist: artist}, call)
	}
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return models.Outcome{Status: models.StatusDownloadError, Reason: models.ReasonDownloadError}
		case <-time.After(m.delay):
		}
	}

	outcome := models.Outcome{Status: models.StatusSuccess, Track: models.Track{Title: title, Artist: artist}}
	if len(script) > 0 {
		outcome = script[min(call, len(script))-1]
	}
	if outcome.Succeeded() {
		outcome.FilePath = filepath.Join(m.folder, shared.SanitizeFileName(artist)+" - "+shared.SanitizeFileName(title)+".flac")
		outcome.Size = 4
		_ = os.WriteFile(outcome.FilePath, []byte("flac"), 0644)
	}
	return outcome
}

func (m *mockProcessor) Calls(title, artist string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[shared.NormalizeTrackKey(title, artist)]
}

func (m *mockProcessor) Stats() services.RouterStats { return services.RouterStats{} }

type mockTrackStore struct {
	tracks map[string]*models.TrackRecord
}

func newMockTrackStore() *mockTrackStore {
	return &mockTrackStore{tracks: map[string]*models.TrackRecord{}}
}

func (m *mockTrackStore) Upsert(track *models.TrackRecord) error {
	key := shared.NormalizeTrackKey(track.Title, track.Artist)
	if existing, ok := m.tracks[key]; ok {
		*track = *existing
		return nil
	}
	track.ID = shared.GenerateID()
	stored := *track
	m.tracks[key] = &stored
	return nil
}

func (m *mockTrackStore) UpdateStatus(track *models.TrackRecord) error {
	stored := *track
	m.tracks[shared.NormalizeTrackKey(track.Title, track.Artist)] = &stored
	return nil
}

func (m *mockTrackStore) status(title, artist string) models.TrackStatus {
	if t, ok := m.tracks[shared.NormalizeTrackKey(title, artist)]; ok {
		return t.Status
	}
	return ""
}

type mockSessionStore struct {
	started  []*models.SessionRecord
	finished []*models.SessionRecord
}

func (m *mockSessionStore) Start(s *models.SessionRecord) error {
	s.ID = shared.GenerateID()
	m.started = append(m.started, s)
	return nil
}

func (m *mockSessionStore) Finish(s *models.SessionRecord) error {
	m.finished = append(m.finished, s)
	return nil
}

var testLogger = shared.NewLogger(io.Discard)
