package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/playvote/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "playvote",
		Usage:    "Vote on changes to collaborative Spotify playlists",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
