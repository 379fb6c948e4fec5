package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/shared"
)

const (
	maxQueryRunes       = 100
	defaultSearchLimit  = 10
	defaultImageHost    = "https://resources.tidal.com"
	defaultDownloadTime = 120 * time.Second
)

// CatalogOpts configures a [CatalogClient].
type CatalogOpts struct {
	Router               *Router
	MaxAttemptsPerServer int
	SearchLimit          int
	ImageHost            string
	DownloadTimeout      time.Duration
	DownloadClient       *http.Client
	Headers              map[string]string
	Logger               *log.Logger
}

// CatalogClient talks to the catalog backend through a [Router] and normalizes its
// list- or object-shaped responses into [models.Track] and [models.StreamInfo].
type CatalogClient struct {
	router          *Router
	maxAttempts     int
	searchLimit     int
	imageHost       string
	downloadTimeout time.Duration
	downloadClient  *http.Client
	headers         map[string]string
	logger          *log.Logger
}

// NewCatalogClient creates a client. A nil router is an error.
func NewCatalogClient(opts CatalogOpts) (*CatalogClient, error) {
	if opts.Router == nil {
		return nil, fmt.Errorf("%w: catalog client requires a router", shared.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = defaultSearchLimit
	}
	if opts.ImageHost == "" {
		opts.ImageHost = defaultImageHost
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = defaultDownloadTime
	}
	if opts.DownloadClient == nil {
		opts.DownloadClient = http.DefaultClient
	}

	return &CatalogClient{
		router:          opts.Router,
		maxAttempts:     max(opts.MaxAttemptsPerServer, 1),
		searchLimit:     opts.SearchLimit,
		imageHost:       opts.ImageHost,
		downloadTimeout: opts.DownloadTimeout,
		downloadClient:  opts.DownloadClient,
		headers:         opts.Headers,
		logger:          shared.WithLogger(opts.Logger, "component", "catalog"),
	}, nil
}

// NewCatalogFromConfig wires a router and catalog client from configuration.
func NewCatalogFromConfig(cfg *shared.Config, client *http.Client, logger *log.Logger) (*CatalogClient, error) {
	router, err := NewRouter(RouterOpts{
		Servers:        cfg.Catalog.Servers,
		HTTPClient:     client,
		Headers:        cfg.Catalog.Headers,
		RequestTimeout: cfg.Catalog.RequestTimeoutDuration(),
		RateLimitWait:  cfg.Catalog.RateLimitWaitDuration(),
		RetryWait:      cfg.Catalog.RetryWaitDuration(),
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	return NewCatalogClient(CatalogOpts{
		Router:               router,
		MaxAttemptsPerServer: cfg.Catalog.MaxAttemptsPerServer,
		SearchLimit:          cfg.Catalog.SearchLimit,
		ImageHost:            cfg.Catalog.ImageHost,
		DownloadTimeout:      cfg.Download.TimeoutDuration(),
		DownloadClient:       client,
		Headers:              cfg.Catalog.Headers,
		Logger:               logger,
	})
}

// Stats returns the router's request counters.
func (c *CatalogClient) Stats() RouterStats { return c.router.Stats() }

func truncateQuery(q string) string {
	r := []rune(q)
	if len(r) > maxQueryRunes {
		return string(r[:maxQueryRunes])
	}
	return q
}

// SearchTracks returns up to the search limit of parseable tracks for query.
//
// Not-found and exhausted requests return no tracks together with the router error.
func (c *CatalogClient) SearchTracks(ctx context.Context, query string) ([]models.Track, error) {
	resp, err := c.router.Execute(ctx, "/search/", url.Values{"s": {truncateQuery(query)}}, c.maxAttempts)
	if err != nil {
		return nil, err
	}

	p, err := decodePayload(resp.Body)
	if err != nil {
		c.logger.Debug("unparseable search response", "error", err)
		return nil, err
	}

	items := searchItems(p)
	if len(items) > c.searchLimit {
		items = items[:c.searchLimit]
	}

	var tracks []models.Track
	for _, item := range items {
		if track, ok := parseTrack(item); ok {
			tracks = append(tracks, track)
		}
	}
	return tracks, nil
}

// DirectResolution asks the backend to search and resolve a stream in one request.
// Failure is expected for many queries and only logged at debug level.
func (c *CatalogClient) DirectResolution(ctx context.Context, query, quality string) (models.StreamInfo, error) {
	if quality == "" {
		quality = models.DefaultQuality
	}

	resp, err := c.router.Execute(ctx, "/song/", url.Values{"q": {truncateQuery(query)}, "quality": {quality}}, c.maxAttempts)
	if err != nil {
		c.logger.Debug("direct resolution failed", "query", query, "error", err)
		return models.StreamInfo{}, err
	}

	p, err := decodePayload(resp.Body)
	if err != nil {
		c.logger.Debug("unparseable direct resolution response", "error", err)
		return models.StreamInfo{}, err
	}

	var info models.StreamInfo
	switch p.kind {
	case listPayload:
		info = directFromList(p, query, quality)
	case objectPayload:
		info = directFromObject(p.object, query, quality)
	}

	if info.StreamURL == "" {
		c.logger.Debug("direct resolution returned no stream", "query", query)
		return models.StreamInfo{}, shared.ErrNoStream
	}

	c.logger.Info("resolved directly", "title", info.Track.Title, "artist", info.Track.Artist)
	return info, nil
}

func directFromList(p payload, query, quality string) models.StreamInfo {
	if len(p.list) == 0 {
		return models.StreamInfo{}
	}

	var streamURL, manifest string
	if s, ok := asString(p.at(2)); ok {
		streamURL = s
	}
	if streamURL == "" {
		if info, ok := asObject(p.at(1)); ok {
			manifest = info.str("manifest")
			if manifest != "" {
				streamURL = ExtractManifestURL(manifest)
			}
		}
	}
	if streamURL == "" {
		return models.StreamInfo{}
	}

	track, ok := parseTrack(p.at(0))
	if !ok {
		track = models.Track{Title: query, Quality: quality}
	}
	return models.StreamInfo{Track: track, StreamURL: streamURL, Manifest: manifest}
}

func directFromObject(obj object, query, quality string) models.StreamInfo {
	streamURL := obj.str("url")
	if streamURL == "" {
		streamURL = obj.str("stream_url")
	}
	manifest := obj.str("manifest")
	if streamURL == "" && manifest != "" {
		streamURL = ExtractManifestURL(manifest)
	}
	if streamURL == "" {
		return models.StreamInfo{}
	}

	track := models.Track{
		ID:       obj.num("id"),
		Title:    obj.str("title"),
		Artist:   obj.name("artist"),
		Album:    obj.name("album"),
		Duration: int(obj.num("duration")),
		Quality:  quality,
		CoverID:  obj.str("cover"),
	}
	if track.Title == "" {
		track.Title = query
	}
	return models.StreamInfo{Track: track, StreamURL: streamURL, Manifest: manifest}
}

// StreamInfo fetches the stream location for a catalog track id.
func (c *CatalogClient) StreamInfo(ctx context.Context, trackID int64, quality string) (models.StreamInfo, error) {
	if quality == "" {
		quality = models.DefaultQuality
	}

	params := url.Values{"id": {strconv.FormatInt(trackID, 10)}, "quality": {quality}}
	resp, err := c.router.Execute(ctx, "/track/", params, c.maxAttempts)
	if err != nil {
		return models.StreamInfo{}, err
	}

	p, err := decodePayload(resp.Body)
	if err != nil {
		return models.StreamInfo{}, err
	}

	var (
		trackRaw  []byte
		info      object
		streamURL string
	)
	switch p.kind {
	case listPayload:
		if len(p.list) == 0 {
			return models.StreamInfo{}, shared.ErrNoStream
		}
		trackRaw = p.at(0)
		info, _ = asObject(p.at(1))
		streamURL, _ = asString(p.at(2))
	case objectPayload:
		trackRaw = resp.Body
		if nested, ok := p.object["track"]; ok {
			trackRaw = nested
		}
		info, _ = asObject(p.object["info"])
		streamURL = p.object.str("originalTrackUrl")
		if streamURL == "" {
			streamURL = p.object.str("OriginalTrackUrl")
		}
	}

	manifest := info.str("manifest")
	if streamURL == "" && manifest != "" {
		streamURL = ExtractManifestURL(manifest)
	}
	if streamURL == "" {
		c.logger.Warn("no stream for track", "id", trackID)
		return models.StreamInfo{}, shared.ErrNoStream
	}

	track, ok := parseTrack(trackRaw)
	if !ok {
		track = models.Track{ID: trackID, Title: "Unknown", Artist: "Unknown", Album: "Unknown", Quality: quality}
	}
	return models.StreamInfo{Track: track, StreamURL: streamURL, Manifest: manifest}, nil
}

// IsNotFound reports whether err means the catalog authoritatively has nothing.
func IsNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrNoStream)
}
