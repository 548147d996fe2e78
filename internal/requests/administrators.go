package requests

import (
	"context"

	"github.com/desertthunder/playvote/internal/events"
	"github.com/desertthunder/playvote/internal/services"
	"github.com/desertthunder/playvote/internal/shared"
	"golang.org/x/sync/errgroup"
)

// AdminPlan is the set of grant changes needed to reach Result.
type AdminPlan struct {
	ToAdd    []string
	ToRemove []string
	Result   []string
}

// PlanAdministratorChanges computes the administrator set (current ∪ add) \ remove,
// with the owner excluded, and the grants to add and revoke to reach it.
// A result larger than maxAdmins fails with UnprocessableEntity.
func PlanAdministratorChanges(current, add, remove []string, ownerID string, maxAdmins int) (*AdminPlan, error) {
	current = shared.Dedupe(current)
	add = shared.Dedupe(add)
	remove = shared.Dedupe(remove)

	inCurrent := make(map[string]bool, len(current))
	for _, id := range current {
		inCurrent[id] = true
	}
	removing := make(map[string]bool, len(remove))
	for _, id := range remove {
		removing[id] = true
	}

	plan := &AdminPlan{ToAdd: []string{}, ToRemove: []string{}, Result: []string{}}
	for _, id := range current {
		if removing[id] || id == ownerID {
			continue
		}
		plan.Result = append(plan.Result, id)
	}
	for _, id := range add {
		if inCurrent[id] || removing[id] || id == ownerID {
			continue
		}
		plan.ToAdd = append(plan.ToAdd, id)
		plan.Result = append(plan.Result, id)
	}
	for _, id := range remove {
		if inCurrent[id] {
			plan.ToRemove = append(plan.ToRemove, id)
		}
	}
	if inCurrent[ownerID] && !removing[ownerID] {
		plan.ToRemove = append(plan.ToRemove, ownerID)
	}

	if maxAdmins > 0 && len(plan.Result) > maxAdmins {
		return nil, shared.E(shared.KindUnprocessable, "a playlist may have at most %d administrators", maxAdmins).
			WithDetail("maxAdministrators", maxAdmins).
			WithDetail("requestedAdministrators", len(plan.Result))
	}
	return plan, nil
}

// GetAdministrators returns the playlist owner and its administrators.
// Any authenticated caller may read it.
func (e *Engine) GetAdministrators(ctx context.Context, playlistID, authHeader string) (*UserList, error) {
	caller, err := e.resolver.Resolve(ctx, authHeader)
	if err != nil {
		return nil, err
	}

	playlist, err := e.playlists.GetPlaylist(ctx, caller.Token, playlistID)
	if err != nil {
		return nil, err
	}
	return e.userList(ctx, caller.Token, playlist)
}

// UpdateAdministrators grants and revokes administrators. Only the owner may
// do this; nothing is written when the resulting set would exceed the limit.
func (e *Engine) UpdateAdministrators(ctx context.Context, playlistID, authHeader string, usersToAdd, usersToRemove []string) (*UserList, error) {
	caller, err := e.resolver.Resolve(ctx, authHeader)
	if err != nil {
		return nil, err
	}

	playlist, err := e.playlists.GetPlaylist(ctx, caller.Token, playlistID)
	if err != nil {
		return nil, err
	}
	if playlist.OwnerID != caller.UserID {
		return nil, shared.E(shared.KindForbidden, "only the playlist owner may change administrators")
	}

	plan, err := e.planFor(ctx, playlist, usersToAdd, usersToRemove)
	if err != nil {
		return nil, err
	}

	if err := e.applyPlan(ctx, playlist.ID, plan); err != nil {
		return nil, err
	}

	if len(plan.ToAdd) > 0 || len(plan.ToRemove) > 0 {
		e.logger.Info("administrators updated", "playlist", playlist.ID, "added", plan.ToAdd, "removed", plan.ToRemove)
		e.publish(ctx, events.Event{
			Type:       events.AdministratorsUpdated,
			PlaylistID: playlist.ID,
			Payload:    map[string]any{"added": plan.ToAdd, "removed": plan.ToRemove},
		})
	}

	return e.userList(ctx, caller.Token, playlist)
}

// ApplyAdministratorChanges updates grants without an owner check, for
// operators. ownerID is excluded from the result as usual.
func (e *Engine) ApplyAdministratorChanges(ctx context.Context, playlistID, ownerID string, usersToAdd, usersToRemove []string) (*AdminPlan, error) {
	playlist := &services.Playlist{ID: playlistID, OwnerID: ownerID}
	plan, err := e.planFor(ctx, playlist, usersToAdd, usersToRemove)
	if err != nil {
		return nil, err
	}
	return plan, e.applyPlan(ctx, playlistID, plan)
}

func (e *Engine) planFor(ctx context.Context, playlist *services.Playlist, add, remove []string) (*AdminPlan, error) {
	admins, err := e.admins.List(ctx, playlist.ID)
	if err != nil {
		return nil, storeErr(err, "failed to list administrators")
	}
	current := make([]string, len(admins))
	for i, a := range admins {
		current[i] = a.UserID
	}
	return PlanAdministratorChanges(current, add, remove, playlist.OwnerID, e.maxAdmins)
}

func (e *Engine) applyPlan(ctx context.Context, playlistID string, plan *AdminPlan) error {
	for _, id := range plan.ToRemove {
		if _, err := e.admins.Remove(ctx, playlistID, id); err != nil {
			return storeErr(err, "failed to remove administrator")
		}
	}
	for _, id := range plan.ToAdd {
		if _, err := e.admins.Add(ctx, playlistID, id); err != nil {
			return storeErr(err, "failed to add administrator")
		}
	}
	return nil
}

// userList builds the owner and administrator list, fetching display names
// concurrently. Unknown profiles get an empty name.
func (e *Engine) userList(ctx context.Context, token string, playlist *services.Playlist) (*UserList, error) {
	admins, err := e.admins.List(ctx, playlist.ID)
	if err != nil {
		return nil, storeErr(err, "failed to list administrators")
	}

	list := &UserList{
		Owner:          User{UserID: playlist.OwnerID, DisplayName: playlist.OwnerDisplayName},
		Administrators: make([]User, 0, len(admins)),
	}
	for _, a := range admins {
		if a.UserID == playlist.OwnerID {
			continue
		}
		list.Administrators = append(list.Administrators, User{UserID: a.UserID})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range list.Administrators {
		g.Go(func() error {
			profile, err := e.playlists.GetUser(gctx, token, list.Administrators[i].UserID)
			if shared.IsKind(err, shared.KindNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			list.Administrators[i].DisplayName = profile.DisplayName
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return list, nil
}
