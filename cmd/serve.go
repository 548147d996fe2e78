package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/playvote/internal/events"
	"github.com/desertthunder/playvote/internal/repositories"
	"github.com/desertthunder/playvote/internal/requests"
	"github.com/desertthunder/playvote/internal/server"
	"github.com/desertthunder/playvote/internal/services"
	"github.com/desertthunder/playvote/internal/shared"
	"github.com/desertthunder/playvote/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// Serve runs the HTTP API and the reaper until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	spotify, err := services.NewSpotifyServiceFromConfig(config)
	if err != nil {
		return fmt.Errorf("failed to configure spotify: %w", err)
	}

	publisher, closePublisher, err := r.publisher(ctx, config.Redis)
	if err != nil {
		return err
	}
	defer closePublisher()

	users := repositories.NewUserRepository(db)
	songRequests := repositories.NewSongRequestRepository(db)

	engine := requests.NewEngine(requests.Options{
		Users:             users,
		Requests:          songRequests,
		Votes:             repositories.NewVoteRepository(db),
		Admins:            repositories.NewAdministratorRepository(db),
		Playlists:         spotify,
		Events:            publisher,
		Logger:            shared.WithLogger(r.logger, "component", "engine"),
		GracePeriod:       config.Requests.GracePeriod,
		MaxAdministrators: config.Requests.MaxAdministrators,
	})

	srv := server.New(server.Options{
		API:      engine,
		OAuth:    spotify,
		Profiles: spotify,
		Users:    users,
		Config:   config.Server,
		Logger:   shared.WithLogger(r.logger, "component", "http"),
	})

	reaper := tasks.NewReaper(songRequests,
		tasks.WithInterval(config.Requests.ReapInterval),
		tasks.WithLogger(shared.WithLogger(r.logger, "component", "reaper")),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.ListenAndServe(gctx)
		stop()
		return err
	})
	g.Go(func() error {
		if err := reaper.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	r.logger.Info("shutdown complete")
	return nil
}

// publisher connects to Redis when configured, and otherwise drops events.
// Either way failures are logged rather than returned.
func (r *Runner) publisher(ctx context.Context, cfg shared.RedisConfig) (events.Publisher, func(), error) {
	logger := shared.WithLogger(r.logger, "component", "events")
	if cfg.URL == "" {
		logger.Info("redis not configured, events disabled")
		return events.NewLoggingPublisher(events.NopPublisher{}, logger), func() {}, nil
	}

	rdb, err := events.Connect(ctx, cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	pub := events.NewRedisPublisher(rdb, cfg.Channel)
	logger.Info("publishing events", "channel", pub.Channel())
	return events.NewLoggingPublisher(pub, logger), func() { rdb.Close() }, nil
}
