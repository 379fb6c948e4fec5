package services

import (
	"context"

	"github.com/desertthunder/flacsync/internal/models"
)

// Catalog is the subset of [CatalogClient] the download pipeline depends on.
type Catalog interface {
	SearchTracks(ctx context.Context, query string) ([]models.Track, error)
	DirectResolution(ctx context.Context, query, quality string) (models.StreamInfo, error)
	StreamInfo(ctx context.Context, trackID int64, quality string) (models.StreamInfo, error)
	DownloadTrack(ctx context.Context, url, dest string, progress ProgressFunc) (int64, error)
	DownloadCover(ctx context.Context, coverID, dest string) error
	Stats() RouterStats
}

// PlaylistSource yields the (title, artist) entries of a playlist reference.
type PlaylistSource interface {
	Tracks(ctx context.Context, ref string) ([]models.TrackRef, error)
}

var (
	_ Catalog        = (*CatalogClient)(nil)
	_ PlaylistSource = (*SpotifySource)(nil)
)
