// Package reconciler re-enqueues notifications that were committed but
// never reached the delivery queue.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olajoao/signal-desk/internal/events"
	"github.com/olajoao/signal-desk/internal/model"
)

const (
	DefaultSchedule   = "@every 5m"
	DefaultStaleAfter = 10 * time.Minute
	DefaultBatchSize  = 500

	runTimeout = time.Minute
)

// Store lists notifications still pending.
type Store interface {
	ClaimStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Notification, error)
}

// Enqueuer schedules delivery jobs.
type Enqueuer interface {
	EnqueueDeliveries(ctx context.Context, jobs []events.DeliveryJob) error
}

// Config holds the reconciler settings.
type Config struct {
	Schedule   string        // cron spec or descriptor such as "@every 5m"
	StaleAfter time.Duration // how long a notification may stay pending
	BatchSize  int           // max notifications re-enqueued per run
}

// Reconciler periodically re-enqueues stale pending notifications.
type Reconciler struct {
	store    Store
	enqueuer Enqueuer
	cfg      Config
	now      func() time.Time
	cron     *cron.Cron
}

// New creates a reconciler. Zero config fields take their defaults.
func New(store Store, enqueuer Enqueuer, cfg Config) (*Reconciler, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", cfg.Schedule, err)
	}

	return &Reconciler{
		store:    store,
		enqueuer: enqueuer,
		cfg:      cfg,
		now:      time.Now,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}, nil
}

// Start schedules RunOnce. Runs stop when ctx is cancelled or Stop is called.
func (r *Reconciler) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.cfg.Schedule, func() {
		if ctx.Err() != nil {
			return
		}
		runCtx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()
		if _, err := r.RunOnce(runCtx); err != nil {
			slog.Error("Pending reconcile failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reconciler: %w", err)
	}

	r.cron.Start()
	slog.Info("Pending reconciler started",
		"schedule", r.cfg.Schedule,
		"stale_after", r.cfg.StaleAfter,
		"batch_size", r.cfg.BatchSize,
	)
	return nil
}

// Stop stops scheduling and waits for a running pass to finish.
func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
}

// RunOnce re-enqueues one batch of stale pending notifications and returns
// how many were enqueued.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.cfg.StaleAfter)
	stale, err := r.store.ClaimStalePending(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale notifications: %w", err)
	}
	if len(stale) == 0 {
		slog.Debug("No stale pending notifications")
		return 0, nil
	}

	jobs := make([]events.DeliveryJob, 0, len(stale))
	for i := range stale {
		jobs = append(jobs, events.NewDeliveryJob(&stale[i]))
	}
	if err := r.enqueuer.EnqueueDeliveries(ctx, jobs); err != nil {
		return 0, fmt.Errorf("failed to re-enqueue %d notifications: %w", len(jobs), err)
	}

	slog.Warn("Re-enqueued stale pending notifications",
		"count", len(jobs),
		"older_than", cutoff,
	)
	return len(jobs), nil
}
