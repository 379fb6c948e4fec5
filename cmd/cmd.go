// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

func downloadFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "folder",
			Aliases: []string{"o"},
			Usage:   "Download folder (overrides download.folder)",
		},
		&cli.IntFlag{
			Name:  "retries",
			Usage: "Attempts per track (overrides download.retry_max_count)",
		},
		&cli.BoolFlag{
			Name:  "no-tags",
			Usage: "Skip writing tags and cover art",
		},
	}
	return append(flags, extra...)
}

// setupCommand initializes local state
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Create the database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write the example configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (defaults to --config)",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// downloadCommand handles playlist and single track downloads
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Download tracks as FLAC",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Download every track of a playlist",
				Flags: downloadFlags(
					&cli.StringFlag{
						Name:    "playlist",
						Aliases: []string{"p"},
						Usage:   "Playlist URL, URI or ID (overrides playlist.url)",
					},
				),
				Action: r.DownloadRun,
			},
			{
				Name:  "track",
				Usage: "Download a single track",
				Flags: downloadFlags(
					&cli.StringFlag{
						Name:     "title",
						Aliases:  []string{"t"},
						Usage:    "Track title",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "artist",
						Aliases:  []string{"a"},
						Usage:    "Track artist",
						Required: true,
					},
				),
				Action: r.DownloadTrack,
			},
			{
				Name:  "failed",
				Usage: "List or retry tracks from the failed-downloads log",
				Flags: downloadFlags(append(outputFlags(),
					&cli.BoolFlag{
						Name:  "retry",
						Usage: "Clear their ledger entries and download them again",
					},
				)...),
				Action: r.DownloadFailed,
			},
		},
	}
}

// catalogCommand exposes raw catalog lookups for debugging
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Query the catalog server pool",
		Commands: []*cli.Command{
			{
				Name:  "search",
				Usage: "Search tracks by free text",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "query",
					},
				},
				Flags:  outputFlags(),
				Action: r.CatalogSearch,
			},
			{
				Name:  "resolve",
				Usage: "Resolve a stream directly from free text",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "query",
					},
				},
				Flags: append(outputFlags(),
					&cli.StringFlag{
						Name:  "quality",
						Usage: "Requested audio quality (defaults to catalog.quality)",
					},
				),
				Action: r.CatalogResolve,
			},
			{
				Name:  "stream",
				Usage: "Look up the stream for a catalog track id",
				Flags: append(outputFlags(),
					&cli.Int64Flag{
						Name:     "id",
						Usage:    "Catalog track id",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "quality",
						Usage: "Requested audio quality (defaults to catalog.quality)",
					},
				),
				Action: r.CatalogStream,
			},
		},
	}
}

// ledgerCommand manages the persistent failure ledger
func ledgerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ledger",
		Usage: "Inspect and clear tracks that failed permanently",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List ledger entries, newest first",
				Flags: append(outputFlags(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries (-1 for all)",
						Value: 20,
					},
				),
				Action: r.LedgerList,
			},
			{
				Name:   "summary",
				Usage:  "Show counts by reason and the most recent entries",
				Action: r.LedgerSummary,
			},
			{
				Name:  "clear",
				Usage: "Remove one track from the ledger",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "title",
						Aliases:  []string{"t"},
						Usage:    "Track title",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "artist",
						Aliases:  []string{"a"},
						Usage:    "Track artist",
						Required: true,
					},
				},
				Action: r.LedgerClear,
			},
			{
				Name:   "clear-all",
				Usage:  "Remove every ledger entry",
				Action: r.LedgerClearAll,
			},
		},
	}
}

// statsCommand prints the store dashboard
func statsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage: "Show download counts from the local database",
		Flags: append(outputFlags(), &cli.StringFlag{
			Name:  "status",
			Usage: "List stored tracks with this status (downloaded, error, skipped, pending)",
		}),
		Action: r.Stats,
	}
}
