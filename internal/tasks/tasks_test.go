package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playvote/internal/models"
	"github.com/desertthunder/playvote/internal/repositories"
	tu "github.com/desertthunder/playvote/internal/testing"
)

type stubPurger struct {
	mu    sync.Mutex
	calls int
	n     int64
	err   error
}

func (s *stubPurger) PurgeExpired(_ context.Context, _ time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.n, s.err
}

func (s *stubPurger) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func quietLogger() *log.Logger {
	return log.New(&tu.FWriter{})
}

func TestReaper(t *testing.T) {
	ctx := context.Background()

	t.Run("Sweep removes only expired resolved requests", func(t *testing.T) {
		db := tu.MustDB(t)
		repo := repositories.NewSongRequestRepository(db)
		votes := repositories.NewVoteRepository(db)
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		mk := func(song string) *models.SongRequest {
			req, _, err := repo.CreatePending(ctx, models.NewSongRequest("pl1", song, models.RequestAdd, now.Add(-time.Hour)))
			if err != nil {
				t.Fatalf("CreatePending failed: %v", err)
			}
			if _, err := votes.Add(ctx, req.ID, "alice"); err != nil {
				t.Fatalf("vote failed: %v", err)
			}
			return req
		}

		expired := mk("A")
		grace := mk("B")
		pending := mk("C")

		if _, err := repo.Transition(ctx, expired.ID, models.StatusApproved, now.Add(-time.Minute)); err != nil {
			t.Fatalf("Transition failed: %v", err)
		}
		if _, err := repo.Transition(ctx, grace.ID, models.StatusRejected, now.Add(time.Minute)); err != nil {
			t.Fatalf("Transition failed: %v", err)
		}

		reaper := NewReaper(repo, WithClock(func() time.Time { return now }), WithLogger(quietLogger()))
		n, err := reaper.Sweep(ctx)
		if err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 request reaped, got %d", n)
		}

		if _, err := repo.Get(ctx, expired.ID); err == nil {
			t.Error("expected expired request to be gone")
		}
		for _, id := range []string{grace.ID, pending.ID} {
			if _, err := repo.Get(ctx, id); err != nil {
				t.Errorf("expected request %s to survive: %v", id, err)
			}
		}
		if c, _ := votes.Count(ctx, expired.ID); c != 0 {
			t.Errorf("expected votes of reaped request to be gone, got %d", c)
		}
	})

	t.Run("Sweep reports updates", func(t *testing.T) {
		updates := make(chan SweepUpdate, 1)
		purger := &stubPurger{n: 3}
		reaper := NewReaper(purger, WithUpdates(updates), WithLogger(quietLogger()))

		if _, err := reaper.Sweep(ctx); err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}
		select {
		case u := <-updates:
			if u.Deleted != 3 || u.Err != nil {
				t.Errorf("unexpected update %+v", u)
			}
		default:
			t.Fatal("expected an update")
		}

		// full channel never blocks
		updates <- SweepUpdate{}
		if _, err := reaper.Sweep(ctx); err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}
	})

	t.Run("Sweep returns purge errors", func(t *testing.T) {
		purger := &stubPurger{err: errors.New("disk full")}
		reaper := NewReaper(purger, WithLogger(quietLogger()))

		if _, err := reaper.Sweep(ctx); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("Run sweeps until cancelled", func(t *testing.T) {
		purger := &stubPurger{err: errors.New("transient")}
		reaper := NewReaper(purger, WithInterval(5*time.Millisecond), WithLogger(quietLogger()))

		ctx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- reaper.Run(ctx) }()

		deadline := time.After(2 * time.Second)
		for purger.count() < 3 {
			select {
			case <-deadline:
				t.Fatalf("expected at least 3 sweeps, got %d", purger.count())
			case <-time.After(5 * time.Millisecond):
			}
		}
		cancel()

		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		reaper := NewReaper(&stubPurger{}, WithInterval(0))
		if reaper.Interval() != DefaultInterval {
			t.Errorf("expected default interval, got %v", reaper.Interval())
		}
	})
}
