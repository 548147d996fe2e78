package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/playvote/internal/models"
	"github.com/desertthunder/playvote/internal/repositories"
	"github.com/desertthunder/playvote/internal/requests"
	"github.com/desertthunder/playvote/internal/shared"
	"github.com/desertthunder/playvote/internal/tasks"
	"github.com/urfave/cli/v3"
)

// AdminsList prints the administrators of a playlist.
func (r *Runner) AdminsList(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	admins, err := repositories.NewAdministratorRepository(db).List(ctx, cmd.String("playlist"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(admins, true)
	}

	r.writePlainHeader(fmt.Sprintf("Administrators of %s", cmd.String("playlist")))
	if len(admins) == 0 {
		return r.writePlain("(none)\n")
	}
	for _, a := range admins {
		r.writePlain("%-32s since %s\n", a.UserID, a.CreatedAt.UTC().Format(time.RFC3339))
	}
	return nil
}

// AdminsAdd grants administrator to the user IDs given as arguments.
func (r *Runner) AdminsAdd(ctx context.Context, cmd *cli.Command) error {
	return r.changeAdmins(ctx, cmd, cmd.Args().Slice(), nil)
}

// AdminsRemove revokes administrator from the user IDs given as arguments.
func (r *Runner) AdminsRemove(ctx context.Context, cmd *cli.Command) error {
	return r.changeAdmins(ctx, cmd, nil, cmd.Args().Slice())
}

func (r *Runner) changeAdmins(ctx context.Context, cmd *cli.Command, add, remove []string) error {
	if len(add)+len(remove) == 0 {
		return fmt.Errorf("%w: at least one user ID is required", shared.ErrMissingArgument)
	}

	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	engine := requests.NewEngine(requests.Options{
		Admins:            repositories.NewAdministratorRepository(db),
		Logger:            r.logger,
		MaxAdministrators: config.Requests.MaxAdministrators,
	})

	plan, err := engine.ApplyAdministratorChanges(ctx, cmd.String("playlist"), cmd.String("owner"), add, remove)
	if err != nil {
		return err
	}

	r.logger.Info("administrators updated", "playlist", cmd.String("playlist"), "added", plan.ToAdd, "removed", plan.ToRemove)
	return r.writePlain("administrators: %s\n", strings.Join(plan.Result, ", "))
}

// RequestsList prints a playlist's requests. Pending requests come first in
// vote order; --all appends resolved ones.
func (r *Runner) RequestsList(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewSongRequestRepository(db)
	playlistID := cmd.String("playlist")

	pending, err := repo.ListPending(ctx, playlistID, "")
	if err != nil {
		return err
	}

	var resolved []*models.SongRequest
	if cmd.Bool("all") {
		all, err := repo.ListByPlaylist(ctx, playlistID)
		if err != nil {
			return err
		}
		for _, req := range all {
			if !req.IsPending() {
				resolved = append(resolved, req)
			}
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"pending": pending, "resolved": resolved}, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Requests for %s", playlistID))
	for _, t := range pending {
		r.writePlain("%-36s %-6s %-22s %3d votes\n", t.Request.ID, t.Request.RequestType, t.Request.SongID, t.NumVotes)
	}
	for _, req := range resolved {
		deleteAt := "-"
		if req.DeleteAt != nil {
			deleteAt = req.DeleteAt.UTC().Format(time.RFC3339)
		}
		r.writePlain("%-36s %-6s %-22s %-8s reaped after %s\n", req.ID, req.RequestType, req.SongID, req.Status, deleteAt)
	}
	if len(pending)+len(resolved) == 0 {
		return r.writePlain("(none)\n")
	}
	return nil
}

// Reap runs a single reaper sweep.
func (r *Runner) Reap(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := tasks.NewReaper(repositories.NewSongRequestRepository(db), tasks.WithLogger(r.logger)).Sweep(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("reaped %d requests\n", n)
}
