package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/flacsync/internal/shared"
	"github.com/desertthunder/flacsync/internal/ui"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

func main() {
	logger := shared.NewLogger(nil)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}

	runner := NewRunner(RunnerOpts{
		Logger:   logger,
		Progress: ui.NewProgress(os.Stderr),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(runner)

	err := app.Run(ctx, os.Args)
	if err != nil {
		runner.reporter.Capture(err, map[string]string{"version": version})
	}
	runner.reporter.Flush()

	if err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "flacsync",
		Usage:   "Download a playlist as lossless FLAC files from a pool of catalog mirrors",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Before:   r.Before,
		Commands: r.register(),
	}
}
