package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/shared"
	spotifyclient "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const spotifyPageSize = 100

// SpotifyOpts configures a [SpotifySource].
type SpotifyOpts struct {
	ClientID     string
	ClientSecret string
	CachePath    string
	CacheExpiry  time.Duration
	// TokenURL and BaseURL override the public endpoints.
	TokenURL   string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// SpotifySource reads playlist entries through the Spotify Web API with client
// credentials and caches them on disk.
type SpotifySource struct {
	opts   SpotifyOpts
	logger *log.Logger
	now    func() time.Time
}

type playlistCache struct {
	PlaylistID string            `json:"playlist_id"`
	Name       string            `json:"name"`
	FetchedAt  float64           `json:"fetched_at"`
	Tracks     []models.TrackRef `json:"tracks"`
}

// NewSpotifySource validates credentials. Placeholder values from the example config count as missing.
func NewSpotifySource(opts SpotifyOpts) (*SpotifySource, error) {
	if !usableCredential(opts.ClientID) || !usableCredential(opts.ClientSecret) {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyauth.TokenURL
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &SpotifySource{
		opts:   opts,
		logger: shared.WithLogger(opts.Logger, "component", "spotify"),
		now:    time.Now,
	}, nil
}

func usableCredential(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.HasPrefix(v, "your_")
}

// ParsePlaylistID accepts an open.spotify.com playlist URL, a spotify:playlist: URI or a bare id.
func ParsePlaylistID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty playlist reference", shared.ErrInvalidPlaylist)
	}

	if rest, ok := strings.CutPrefix(ref, "spotify:playlist:"); ok {
		ref = rest
	} else if strings.Contains(ref, "open.spotify.com/") {
		_, after, _ := strings.Cut(ref, "open.spotify.com/")
		parts := strings.Split(after, "/")
		if len(parts) < 2 || parts[0] != "playlist" {
			return "", fmt.Errorf("%w: %s", shared.ErrInvalidPlaylist, ref)
		}
		ref = parts[1]
	} else if strings.Contains(ref, "/") || strings.Contains(ref, ":") {
		return "", fmt.Errorf("%w: %s", shared.ErrInvalidPlaylist, ref)
	}

	ref, _, _ = strings.Cut(ref, "?")
	if ref == "" {
		return "", fmt.Errorf("%w: missing playlist id", shared.ErrInvalidPlaylist)
	}
	return ref, nil
}

// Tracks returns the playlist's entries, preferring a fresh on-disk cache.
func (s *SpotifySource) Tracks(ctx context.Context, ref string) ([]models.TrackRef, error) {
	id, err := ParsePlaylistID(ref)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.readCache(id); ok {
		s.logger.Info("using cached playlist", "id", id, "tracks", len(cached.Tracks))
		return cached.Tracks, nil
	}

	name, tracks, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("fetched playlist", "name", name, "tracks", len(tracks))

	if err := s.writeCache(playlistCache{PlaylistID: id, Name: name, FetchedAt: models.UnixSeconds(s.now()), Tracks: tracks}); err != nil {
		s.logger.Warn("failed to write playlist cache", "error", err)
	}
	return tracks, nil
}

func (s *SpotifySource) client(ctx context.Context) (*spotifyclient.Client, error) {
	if s.opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.opts.HTTPClient)
	}

	config := &clientcredentials.Config{
		ClientID:     s.opts.ClientID,
		ClientSecret: s.opts.ClientSecret,
		TokenURL:     s.opts.TokenURL,
	}
	token, err := config.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: spotify token: %v", shared.ErrMissingCredentials, err)
	}

	httpClient := spotifyauth.New().Client(ctx, token)
	var opts []spotifyclient.ClientOption
	if s.opts.BaseURL != "" {
		opts = append(opts, spotifyclient.WithBaseURL(strings.TrimRight(s.opts.BaseURL, "/")+"/"))
	}
	return spotifyclient.New(httpClient, opts...), nil
}

func (s *SpotifySource) fetch(ctx context.Context, id string) (string, []models.TrackRef, error) {
	client, err := s.client(ctx)
	if err != nil {
		return "", nil, err
	}

	playlist, err := client.GetPlaylist(ctx, spotifyclient.ID(id), spotifyclient.Fields("name"))
	if err != nil {
		return "", nil, classifySpotifyError(id, err)
	}

	page, err := client.GetPlaylistItems(ctx, spotifyclient.ID(id), spotifyclient.Limit(spotifyPageSize))
	if err != nil {
		return "", nil, classifySpotifyError(id, err)
	}

	var tracks []models.TrackRef
	for {
		for _, item := range page.Items {
			track := item.Track.Track
			if track == nil || track.Name == "" {
				continue
			}
			ref := models.TrackRef{Title: track.Name}
			if len(track.Artists) > 0 {
				ref.Artist = track.Artists[0].Name
			}
			tracks = append(tracks, ref)
		}

		err := client.NextPage(ctx, page)
		if errors.Is(err, spotifyclient.ErrNoMorePages) {
			break
		}
		if err != nil {
			return "", nil, classifySpotifyError(id, err)
		}
	}

	return playlist.Name, tracks, nil
}

func classifySpotifyError(id string, err error) error {
	var apiErr spotifyclient.Error
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusForbidden) {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return fmt.Errorf("spotify playlist %s: %w", id, err)
}

func (s *SpotifySource) readCache(id string) (playlistCache, bool) {
	if s.opts.CachePath == "" || s.opts.CacheExpiry <= 0 {
		return playlistCache{}, false
	}

	data, err := os.ReadFile(s.opts.CachePath)
	if err != nil {
		return playlistCache{}, false
	}

	var cached playlistCache
	if err := json.Unmarshal(data, &cached); err != nil {
		s.logger.Warn("ignoring unreadable playlist cache", "path", s.opts.CachePath, "error", err)
		return playlistCache{}, false
	}
	if cached.PlaylistID != id {
		return playlistCache{}, false
	}

	age := s.now().Sub(time.Unix(0, int64(cached.FetchedAt*float64(time.Second))))
	if age < 0 || age > s.opts.CacheExpiry {
		return playlistCache{}, false
	}
	return cached, true
}

func (s *SpotifySource) writeCache(cache playlistCache) error {
	if s.opts.CachePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.opts.CachePath), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.opts.CachePath, data, 0644)
}
