package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultInterval is how often [Reaper.Run] sweeps when no interval is set.
const DefaultInterval = time.Minute

// Purger deletes resolved requests whose delete time is at or before now.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// SweepUpdate reports the outcome of one sweep.
type SweepUpdate struct {
	At      time.Time // Time the sweep ran
	Deleted int64     // Requests removed
	Err     error     // Non-nil if the sweep failed
}

// Reaper removes resolved requests once their grace period has elapsed.
type Reaper struct {
	purger   Purger
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time
	updates  chan<- SweepUpdate
}

// ReaperOption configures a [Reaper].
type ReaperOption func(*Reaper)

// WithInterval sets the time between sweeps.
func WithInterval(d time.Duration) ReaperOption {
	return func(r *Reaper) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets the reaper's logger.
func WithLogger(l *log.Logger) ReaperOption {
	return func(r *Reaper) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ReaperOption {
	return func(r *Reaper) {
		if now != nil {
			r.now = now
		}
	}
}

// WithUpdates sends a [SweepUpdate] on ch after every sweep.
func WithUpdates(ch chan<- SweepUpdate) ReaperOption {
	return func(r *Reaper) {
		r.updates = ch
	}
}

// NewReaper creates a reaper over purger.
func NewReaper(purger Purger, opts ...ReaperOption) *Reaper {
	r := &Reaper{
		purger:   purger,
		interval: DefaultInterval,
		logger:   log.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Interval returns the time between sweeps.
func (r *Reaper) Interval() time.Duration {
	return r.interval
}

// Sweep deletes every expired request once and returns how many were removed.
func (r *Reaper) Sweep(ctx context.Context) (int64, error) {
	at := r.now()
	n, err := r.purger.PurgeExpired(ctx, at)
	if err != nil {
		r.logger.Error("sweep failed", "error", err)
	} else if n > 0 {
		r.logger.Info("reaped expired requests", "count", n)
	} else {
		r.logger.Debug("nothing to reap")
	}
	r.report(SweepUpdate{At: at, Deleted: n, Err: err})
	return n, err
}

// Run sweeps immediately and then every interval until ctx is done.
// Sweep failures are logged and do not stop the loop.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", "interval", r.interval)
	_, _ = r.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return ctx.Err()
		case <-ticker.C:
			_, _ = r.Sweep(ctx)
		}
	}
}

func (r *Reaper) report(u SweepUpdate) {
	if r.updates == nil {
		return
	}
	select {
	case r.updates <- u:
	default:
	}
}
