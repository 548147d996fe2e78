package repositories

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/playvote/internal/models"
	"github.com/desertthunder/playvote/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *shared.Database {
	t.Helper()

	db, err := shared.NewMemoryDatabase()
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Upsert And Get", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))

		user := &models.User{UserID: "alice", AccessToken: "tok-1", RefreshToken: "ref-1"}
		if err := repo.Upsert(ctx, user); err != nil {
			t.Fatalf("failed to upsert user: %v", err)
		}

		retrieved, err := repo.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if retrieved.AccessToken != "tok-1" || retrieved.RefreshToken != "ref-1" {
			t.Errorf("unexpected tokens %q/%q", retrieved.AccessToken, retrieved.RefreshToken)
		}
	})

	t.Run("Upsert Replaces Tokens", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))

		if err := repo.Upsert(ctx, &models.User{UserID: "alice", AccessToken: "old", RefreshToken: "r1"}); err != nil {
			t.Fatalf("first upsert: %v", err)
		}
		if err := repo.Upsert(ctx, &models.User{UserID: "alice", AccessToken: "new", RefreshToken: "r2"}); err != nil {
			t.Fatalf("second upsert: %v", err)
		}

		users, err := repo.ListByAccessToken(ctx, "old")
		if err != nil {
			t.Fatalf("list by old token: %v", err)
		}
		if len(users) != 0 {
			t.Errorf("old token should no longer resolve, got %d users", len(users))
		}

		users, err = repo.ListByAccessToken(ctx, "new")
		if err != nil {
			t.Fatalf("list by new token: %v", err)
		}
		if len(users) != 1 || users[0].UserID != "alice" {
			t.Errorf("expected alice for new token, got %v", users)
		}
	})

	t.Run("Get NotFound", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))

		_, err := repo.Get(ctx, "nobody")
		if !errors.Is(err, shared.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("Upsert ValidationError", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		if err := repo.Upsert(ctx, &models.User{UserID: "alice"}); err == nil {
			t.Fatal("expected validation error for empty access token")
		}
	})

	t.Run("UpdateAccessToken", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		if err := repo.Upsert(ctx, &models.User{UserID: "bob", AccessToken: "a1", RefreshToken: "r1"}); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		userID, err := repo.UpdateAccessToken(ctx, "r1", "a2")
		if err != nil {
			t.Fatalf("failed to update access token: %v", err)
		}
		if userID != "bob" {
			t.Errorf("expected bob, got %s", userID)
		}

		user, _ := repo.Get(ctx, "bob")
		if user.AccessToken != "a2" {
			t.Errorf("expected refreshed token a2, got %s", user.AccessToken)
		}

		if _, err := repo.UpdateAccessToken(ctx, "unknown", "a3"); !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound for unknown refresh token, got %v", err)
		}
	})
}

func TestSongRequestRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("CreatePending", func(t *testing.T) {
		repo := NewSongRequestRepository(setupTestDB(t))

		req := models.NewSongRequest("p1", "s1", models.RequestAdd, now)
		stored, created, err := repo.CreatePending(ctx, req)
		if err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
		if !created || stored.ID != req.ID {
			t.Errorf("expected new request %s, got %s (created=%v)", req.ID, stored.ID, created)
		}

		dup := models.NewSongRequest("p1", "s1", models.RequestAdd, now)
		stored, created, err = repo.CreatePending(ctx, dup)
		if err != nil {
			t.Fatalf("failed on duplicate: %v", err)
		}
		if created {
			t.Error("duplicate proposal should not create a request")
		}
		if stored.ID != req.ID {
			t.Errorf("expected existing request %s, got %s", req.ID, stored.ID)
		}
	})

	t.Run("CreatePending Scoped Per Playlist And Direction", func(t *testing.T) {
		repo := NewSongRequestRepository(setupTestDB(t))

		for _, req := range []*models.SongRequest{
			models.NewSongRequest("p1", "s1", models.RequestAdd, now),
			models.NewSongRequest("p2", "s1", models.RequestAdd, now),
			models.NewSongRequest("p1", "s1", models.RequestRemove, now),
		} {
			if _, created, err := repo.CreatePending(ctx, req); err != nil || !created {
				t.Errorf("expected %s/%s/%s to be created (created=%v, err=%v)", req.PlaylistID, req.SongID, req.RequestType, created, err)
			}
		}
	})

	t.Run("CreatePending Concurrent", func(t *testing.T) {
		repo := NewSongRequestRepository(setupTestDB(t))

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			ids     = map[string]bool{}
			created int
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				stored, ok, err := repo.CreatePending(ctx, models.NewSongRequest("p1", "s9", models.RequestAdd, now))
				if err != nil {
					t.Errorf("concurrent create failed: %v", err)
					return
				}
				mu.Lock()
				defer mu.Unlock()
				ids[stored.ID] = true
				if ok {
					created++
				}
			}()
		}
		wg.Wait()

		if created != 1 || len(ids) != 1 {
			t.Errorf("expected exactly one request, got created=%d ids=%v", created, ids)
		}
	})

	t.Run("Transition", func(t *testing.T) {
		repo := NewSongRequestRepository(setupTestDB(t))
		req, _, err := repo.CreatePending(ctx, models.NewSongRequest("p1", "s1", models.RequestAdd, now))
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		deleteAt := now.Add(5 * time.Minute)
		updated, err := repo.Transition(ctx, req.ID, models.StatusApproved, deleteAt)
		if err != nil {
			t.Fatalf("failed to transition: %v", err)
		}
		if updated.Status != models.StatusApproved {
			t.Errorf("expected approved, got %s", updated.Status)
		}
		if updated.DeleteAt == nil || !updated.DeleteAt.Equal(deleteAt) {
			t.Errorf("expected delete_at %s, got %v", deleteAt, updated.DeleteAt)
		}

		current, err := repo.Transition(ctx, req.ID, models.StatusRejected, deleteAt)
		if !errors.Is(err, shared.ErrRequestNotPending) {
			t.Fatalf("expected ErrRequestNotPending, got %v", err)
		}
		if current == nil || current.Status != models.StatusApproved {
			t.Errorf("expected current approved request alongside error, got %v", current)
		}

		if _, err := repo.Transition(ctx, "missing", models.StatusApproved, deleteAt); !errors.Is(err, shared.ErrRequestNotFound) {
			t.Errorf("expected ErrRequestNotFound, got %v", err)
		}

		again, created, err := repo.CreatePending(ctx, models.NewSongRequest("p1", "s1", models.RequestAdd, now))
		if err != nil || !created {
			t.Fatalf("resolved request should free the tuple (created=%v, err=%v)", created, err)
		}
		if again.ID == req.ID {
			t.Error("expected a new request id")
		}
	})

	t.Run("ListPending", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSongRequestRepository(db)
		votes := NewVoteRepository(db)

		older, _, _ := repo.CreatePending(ctx, models.NewSongRequest("p1", "a", models.RequestAdd, now))
		newer, _, _ := repo.CreatePending(ctx, models.NewSongRequest("p1", "b", models.RequestAdd, now.Add(time.Minute)))
		popular, _, _ := repo.CreatePending(ctx, models.NewSongRequest("p1", "c", models.RequestRemove, now.Add(2*time.Minute)))
		resolved, _, _ := repo.CreatePending(ctx, models.NewSongRequest("p1", "d", models.RequestAdd, now))
		other, _, _ := repo.CreatePending(ctx, models.NewSongRequest("p2", "e", models.RequestAdd, now))

		for _, v := range []struct{ req, user string }{
			{popular.ID, "u1"}, {popular.ID, "u2"}, {older.ID, "u1"}, {newer.ID, "u2"}, {other.ID, "u1"},
		} {
			if _, err := votes.Add(ctx, v.req, v.user); err != nil {
				t.Fatalf("vote: %v", err)
			}
		}
		if _, err := repo.Transition(ctx, resolved.ID, models.StatusRejected, now); err != nil {
			t.Fatalf("transition: %v", err)
		}

		tallies, err := repo.ListPending(ctx, "p1", "u1")
		if err != nil {
			t.Fatalf("failed to list pending: %v", err)
		}
		if len(tallies) != 3 {
			t.Fatalf("expected 3 pending requests, got %d", len(tallies))
		}

		want := []struct {
			id    string
			votes int
			yours bool
		}{
			{popular.ID, 2, true},
			{older.ID, 1, true},
			{newer.ID, 1, false},
		}
		for i, w := range want {
			got := tallies[i]
			if got.Request.ID != w.id || got.NumVotes != w.votes || got.HasYourVote != w.yours {
				t.Errorf("tally %d = {%s %d %v}, want {%s %d %v}", i, got.Request.ID, got.NumVotes, got.HasYourVote, w.id, w.votes, w.yours)
			}
		}
	})

	t.Run("PurgeExpired", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSongRequestRepository(db)
		votes := NewVoteRepository(db)

		expired, _, _ := repo.CreatePending(ctx, models.NewSongRequest("p1", "a", models.RequestAdd, now))
		fresh, _, _ := repo.CreatePending(ctx, models.NewSongRequest("p1", "b", models.RequestAdd, now))
		pending, _, _ := repo.CreatePending(ctx, models.NewSongRequest("p1", "c", models.RequestAdd, now))
		votes.Add(ctx, expired.ID, "u1")

		repo.Transition(ctx, expired.ID, models.StatusApproved, now.Add(-time.Second))
		repo.Transition(ctx, fresh.ID, models.StatusApproved, now.Add(time.Hour))

		n, err := repo.PurgeExpired(ctx, now)
		if err != nil {
			t.Fatalf("failed to purge: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 purged request, got %d", n)
		}

		if _, err := repo.Get(ctx, expired.ID); !errors.Is(err, shared.ErrRequestNotFound) {
			t.Errorf("expired request should be gone, got %v", err)
		}
		for _, id := range []string{fresh.ID, pending.ID} {
			if _, err := repo.Get(ctx, id); err != nil {
				t.Errorf("request %s should remain: %v", id, err)
			}
		}
		if c, _ := votes.Count(ctx, expired.ID); c != 0 {
			t.Errorf("expected votes purged with request, got %d", c)
		}
	})
}

func TestVoteRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Add Is Idempotent", func(t *testing.T) {
		db := setupTestDB(t)
		req, _, _ := NewSongRequestRepository(db).CreatePending(ctx, models.NewSongRequest("p1", "s1", models.RequestAdd, now))
		repo := NewVoteRepository(db)

		added, err := repo.Add(ctx, req.ID, "u1")
		if err != nil || !added {
			t.Fatalf("first vote should be added (added=%v, err=%v)", added, err)
		}
		added, err = repo.Add(ctx, req.ID, "u1")
		if err != nil {
			t.Fatalf("second vote should not fail: %v", err)
		}
		if added {
			t.Error("second vote should be a no-op")
		}

		if n, _ := repo.Count(ctx, req.ID); n != 1 {
			t.Errorf("expected one vote row, got %d", n)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		db := setupTestDB(t)
		req, _, _ := NewSongRequestRepository(db).CreatePending(ctx, models.NewSongRequest("p1", "s1", models.RequestAdd, now))
		repo := NewVoteRepository(db)

		removed, err := repo.Remove(ctx, req.ID, "u1")
		if err != nil || removed {
			t.Errorf("removing a missing vote should be a silent no-op (removed=%v, err=%v)", removed, err)
		}

		repo.Add(ctx, req.ID, "u1")
		if n, _ := repo.Count(ctx, req.ID); n != 1 {
			t.Errorf("expected one vote, got %d", n)
		}

		removed, err = repo.Remove(ctx, req.ID, "u1")
		if err != nil || !removed {
			t.Errorf("expected vote removed (removed=%v, err=%v)", removed, err)
		}
		if n, _ := repo.Count(ctx, req.ID); n != 0 {
			t.Errorf("expected vote to be gone, got %d", n)
		}
	})

	t.Run("Concurrent Adds", func(t *testing.T) {
		db := setupTestDB(t)
		req, _, _ := NewSongRequestRepository(db).CreatePending(ctx, models.NewSongRequest("p1", "s1", models.RequestAdd, now))
		repo := NewVoteRepository(db)

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.Add(ctx, req.ID, "u1"); err != nil {
					t.Errorf("concurrent vote failed: %v", err)
				}
			}()
		}
		wg.Wait()

		if n, _ := repo.Count(ctx, req.ID); n != 1 {
			t.Errorf("expected one vote row, got %d", n)
		}
	})
}

func TestAdministratorRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Add List Remove", func(t *testing.T) {
		repo := NewAdministratorRepository(setupTestDB(t))

		for _, u := range []string{"u1", "u2"} {
			if added, err := repo.Add(ctx, "p1", u); err != nil || !added {
				t.Fatalf("add %s: added=%v err=%v", u, added, err)
			}
		}
		if added, err := repo.Add(ctx, "p1", "u1"); err != nil || added {
			t.Errorf("duplicate grant should be a no-op (added=%v, err=%v)", added, err)
		}
		repo.Add(ctx, "p2", "u3")

		admins, err := repo.List(ctx, "p1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(admins) != 2 {
			t.Errorf("expected 2 administrators, got %d", len(admins))
		}

		if ok, _ := repo.IsAdmin(ctx, "p1", "u3"); ok {
			t.Error("u3 administers p2, not p1")
		}

		if removed, err := repo.Remove(ctx, "p1", "u1"); err != nil || !removed {
			t.Errorf("expected removal (removed=%v, err=%v)", removed, err)
		}
		if removed, _ := repo.Remove(ctx, "p1", "u1"); removed {
			t.Error("second removal should be a no-op")
		}
		if ok, _ := repo.IsAdmin(ctx, "p1", "u1"); ok {
			t.Error("u1 should no longer be an administrator")
		}
	})
}
