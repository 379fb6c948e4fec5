package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/flacsync/internal/formatter"
	"github.com/desertthunder/flacsync/internal/models"
	"github.com/desertthunder/flacsync/internal/services"
	"github.com/desertthunder/flacsync/internal/shared"
	"github.com/desertthunder/flacsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// CatalogSearch runs a catalog search and prints the candidates.
func (r *Runner) CatalogSearch(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	catalog, err := r.openCatalog()
	if err != nil {
		return err
	}

	r.logger.Info("searching catalog", "query", query)
	tracks, err := catalog.SearchTracks(ctx, query)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}
	if len(tracks) == 0 {
		r.writePlain("No results for %q\n", query)
		return nil
	}
	r.writePlain("%s\n", formatter.TrackTable(tracks))
	r.writeStats(catalog.Stats())
	return nil
}

// CatalogResolve asks the catalog for a direct stream by free-text query.
func (r *Runner) CatalogResolve(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	catalog, err := r.openCatalog()
	if err != nil {
		return err
	}

	stream, err := catalog.DirectResolution(ctx, query, r.quality(cmd))
	if err != nil {
		if services.IsNotFound(err) {
			r.writePlain("%s no direct stream for %q\n", ui.Styles.Warn("!"), query)
			return nil
		}
		return err
	}
	return r.writeStream(cmd, stream)
}

// CatalogStream looks up the stream URL for a catalog track id.
func (r *Runner) CatalogStream(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Int64("id")
	if id <= 0 {
		return fmt.Errorf("%w: --id must be positive", shared.ErrInvalidArgument)
	}

	catalog, err := r.openCatalog()
	if err != nil {
		return err
	}

	stream, err := catalog.StreamInfo(ctx, id, r.quality(cmd))
	if err != nil {
		return err
	}
	return r.writeStream(cmd, stream)
}

func (r *Runner) quality(cmd *cli.Command) string {
	if q := cmd.String("quality"); q != "" {
		return q
	}
	return r.config.Catalog.Quality
}

func (r *Runner) writeStream(cmd *cli.Command, stream models.StreamInfo) error {
	if cmd.Bool("json") {
		return r.writeJSON(stream, cmd.Bool("pretty"))
	}

	r.writePlain("%s %s\n", ui.Styles.OK("✓"), stream.Track.String())
	if stream.Track.ID != 0 {
		r.writePlain("ID: %d\n", stream.Track.ID)
	}
	if stream.Track.Album != "" {
		r.writePlain("Album: %s\n", stream.Track.Album)
	}
	if stream.Track.Quality != "" {
		r.writePlain("Quality: %s\n", stream.Track.Quality)
	}
	r.writePlain("URL: %s\n", stream.StreamURL)
	return nil
}

func (r *Runner) writeStats(stats services.RouterStats) {
	r.writePlain("%s\n", ui.Styles.Help(fmt.Sprintf("%d requests, %.1f%% successful", stats.Total, stats.SuccessRate)))
}
