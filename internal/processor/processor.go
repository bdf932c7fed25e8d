// Package processor runs the per-event pipeline: record the event in the
// sliding window, evaluate rules, persist notifications together with the
// processed flag, then enqueue their deliveries.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olajoao/signal-desk/internal/database"
	"github.com/olajoao/signal-desk/internal/evaluator"
	"github.com/olajoao/signal-desk/internal/events"
	"github.com/olajoao/signal-desk/internal/metrics"
	"github.com/olajoao/signal-desk/internal/model"
	"github.com/olajoao/signal-desk/internal/queue"
	"github.com/olajoao/signal-desk/internal/window"
)

// rollbackTimeout bounds the window cleanup after a failed step. It runs on
// a context detached from the job so shutdown does not skip it.
const rollbackTimeout = 5 * time.Second

// Processor handles event jobs.
type Processor struct {
	store     EventStore
	window    window.Store
	evaluator *evaluator.Evaluator
	enqueuer  DeliveryEnqueuer
	usage     UsageTracker
	metrics   metrics.Recorder
}

// Option configures a Processor.
type Option func(*Processor)

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(p *Processor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithUsage sets the usage tracker.
func WithUsage(u UsageTracker) Option {
	return func(p *Processor) {
		if u != nil {
			p.usage = u
		}
	}
}

// NewProcessor creates a processor. The evaluator must read the same window
// store that w writes to.
func NewProcessor(store EventStore, w window.Store, ev *evaluator.Evaluator, enqueuer DeliveryEnqueuer, opts ...Option) *Processor {
	p := &Processor{
		store:     store,
		window:    w,
		evaluator: ev,
		enqueuer:  enqueuer,
		usage:     noopUsage{},
		metrics:   metrics.NewNoOp(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleJob is the queue.Handler for event jobs.
func (p *Processor) HandleJob(ctx context.Context, env *queue.Envelope, attempt queue.Attempt) error {
	var job events.EventJob
	if err := env.Decode(&job); err != nil {
		slog.Error("Dropping undecodable event job", "job_id", env.ID, "error", err)
		p.metrics.RecordSkipped()
		return nil
	}

	slog.Debug("Processing event job",
		"event_id", job.EventID,
		"tenant_id", job.TenantID,
		"attempt", attempt.Number,
		"max_attempts", attempt.Max,
	)
	err := p.Process(ctx, job)
	if err != nil && attempt.IsFinal() {
		p.markExhausted(ctx, job, err)
	}
	return err
}

// markExhausted closes out an event whose last attempt failed, so it is not
// left unprocessed forever. Best effort: a failure is only logged.
func (p *Processor) markExhausted(ctx context.Context, job events.EventJob, cause error) {
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	slog.Error("Event attempts exhausted, marking processed",
		"event_id", job.EventID,
		"tenant_id", job.TenantID,
		"error", cause,
	)
	if err := p.store.MarkEventProcessed(mctx, job.EventID); err != nil && !errors.Is(err, database.ErrNotFound) {
		slog.Error("Failed to mark exhausted event processed",
			"event_id", job.EventID,
			"error", err,
		)
		p.metrics.RecordError()
	}
}

// Process runs the pipeline for one event. A returned error means nothing
// was persisted and the window entry was removed, so the job can be retried.
// Redelivery of an already processed event is a no-op.
func (p *Processor) Process(ctx context.Context, job events.EventJob) error {
	if err := job.Validate(); err != nil {
		slog.Error("Dropping invalid event job", "event_id", job.EventID, "error", err)
		p.metrics.RecordSkipped()
		return nil
	}

	processed, err := p.store.GetEventState(ctx, job.EventID)
	if errors.Is(err, database.ErrNotFound) {
		slog.Warn("Event no longer exists, skipping",
			"event_id", job.EventID,
			"tenant_id", job.TenantID,
		)
		p.metrics.RecordSkipped()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load event state: %w", err)
	}
	if processed {
		slog.Debug("Event already processed, skipping", "event_id", job.EventID)
		p.metrics.RecordSkipped()
		return nil
	}

	ts, _ := job.Time()
	if err := p.window.Record(ctx, job.TenantID, job.Type, job.EventID, ts); err != nil {
		return fmt.Errorf("failed to record event in window: %w", err)
	}

	created, err := p.evaluateAndPersist(ctx, job)
	if err != nil {
		p.rollback(ctx, job)
		return err
	}

	p.enqueue(ctx, job, created)

	p.usage.TrackEvent(job.TenantID)
	p.usage.TrackNotifications(job.TenantID, len(created))
	return nil
}

// evaluateAndPersist returns the notifications created by this call. On
// redelivery after a partial failure the store may return fewer than the
// evaluator produced.
func (p *Processor) evaluateAndPersist(ctx context.Context, job events.EventJob) ([]model.Notification, error) {
	rules, err := p.store.ListEnabledRules(ctx, job.TenantID, job.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	intents, err := p.evaluator.Evaluate(ctx, evaluator.EvaluationInput{
		TenantID:  job.TenantID,
		EventID:   job.EventID,
		EventType: job.Type,
		Metadata:  job.Metadata,
		Rules:     rules,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate rules: %w", err)
	}

	if len(intents) == 0 {
		if err := p.store.MarkEventProcessed(ctx, job.EventID); err != nil {
			return nil, fmt.Errorf("failed to mark event processed: %w", err)
		}
		return nil, nil
	}

	notifications := make([]model.Notification, 0, len(intents))
	for _, in := range intents {
		notifications = append(notifications, model.Notification{
			RuleID:      in.RuleID,
			EventID:     in.EventID,
			TenantID:    in.TenantID,
			Channel:     in.Channel,
			ActionIndex: in.ActionIndex,
			Payload:     in.Payload,
			Status:      model.StatusPending,
		})
	}

	created, err := p.store.CreateNotificationsAndMarkProcessed(ctx, job.EventID, notifications)
	if err != nil {
		return nil, fmt.Errorf("failed to persist notifications: %w", err)
	}

	slog.Info("Rules fired for event",
		"event_id", job.EventID,
		"tenant_id", job.TenantID,
		"event_type", job.Type,
		"intents", len(intents),
		"created", len(created),
	)
	return created, nil
}

func (p *Processor) rollback(ctx context.Context, job events.EventJob) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	if err := p.window.Remove(rctx, job.TenantID, job.Type, job.EventID); err != nil {
		slog.Error("Failed to roll back window entry",
			"event_id", job.EventID,
			"tenant_id", job.TenantID,
			"event_type", job.Type,
			"error", err,
		)
		p.metrics.RecordError()
		return
	}
	slog.Warn("Rolled back window entry", "event_id", job.EventID, "tenant_id", job.TenantID)
}

// enqueue schedules deliveries for committed notifications. A failure here
// is not returned: the rows stay pending and the reconciler picks them up.
func (p *Processor) enqueue(ctx context.Context, job events.EventJob, created []model.Notification) {
	if len(created) == 0 {
		return
	}

	jobs := make([]events.DeliveryJob, 0, len(created))
	for i := range created {
		jobs = append(jobs, events.NewDeliveryJob(&created[i]))
	}

	if err := p.enqueuer.EnqueueDeliveries(ctx, jobs); err != nil {
		slog.Error("Failed to enqueue deliveries, leaving notifications pending",
			"event_id", job.EventID,
			"tenant_id", job.TenantID,
			"count", len(jobs),
			"error", err,
		)
		p.metrics.RecordError()
		return
	}

	for range jobs {
		p.metrics.RecordPublished()
	}
}
