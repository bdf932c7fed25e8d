// Package dispatcher delivers notification jobs through the channel senders
// and writes the outcome back to the notification record.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olajoao/signal-desk/internal/database"
	"github.com/olajoao/signal-desk/internal/events"
	"github.com/olajoao/signal-desk/internal/metrics"
	"github.com/olajoao/signal-desk/internal/model"
	"github.com/olajoao/signal-desk/internal/queue"
	"github.com/olajoao/signal-desk/internal/retry"
	"github.com/olajoao/signal-desk/internal/sender"
	"github.com/olajoao/signal-desk/internal/sender/strategy"
)

// NotificationStore reads and updates notification records.
type NotificationStore interface {
	GetNotification(ctx context.Context, notificationID string) (*model.Notification, error)
	UpdateNotificationStatus(ctx context.Context, notificationID string, status model.NotificationStatus, lastError string, sentAt *time.Time) error
}

// statusWritePolicy retries the status write-back in process, so a
// delivered notification is not redelivered because of a brief store outage.
var statusWritePolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     time.Second,
	BackoffFactor:  2.0,
}

// Dispatcher routes delivery jobs to channel senders.
type Dispatcher struct {
	store    NotificationStore
	registry *strategy.Registry
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. A nil recorder discards metrics.
func NewDispatcher(store NotificationStore, registry *strategy.Registry, m metrics.Recorder) *Dispatcher {
	if m == nil {
		m = metrics.NewNoOp()
	}
	return &Dispatcher{
		store:    store,
		registry: registry,
		metrics:  m,
		now:      time.Now,
	}
}

// HandleJob is the queue.Handler for delivery jobs.
func (d *Dispatcher) HandleJob(ctx context.Context, env *queue.Envelope, attempt queue.Attempt) error {
	var job events.DeliveryJob
	if err := env.Decode(&job); err != nil {
		slog.Error("Dropping undecodable delivery job", "job_id", env.ID, "error", err)
		d.metrics.RecordSkipped()
		return nil
	}
	return d.Dispatch(ctx, job, attempt)
}

// Dispatch delivers one notification. On failure the record is marked
// retrying, or failed on the final attempt, and the send error is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, job events.DeliveryJob, attempt queue.Attempt) error {
	if err := job.Validate(); err != nil {
		slog.Error("Dropping invalid delivery job", "notification_id", job.NotificationID, "error", err)
		d.metrics.RecordSkipped()
		return nil
	}

	current, err := d.store.GetNotification(ctx, job.NotificationID)
	if errors.Is(err, database.ErrNotFound) {
		slog.Warn("Notification no longer exists, skipping", "notification_id", job.NotificationID)
		d.metrics.RecordSkipped()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load notification: %w", err)
	}
	if current.Status.IsTerminal() {
		slog.Debug("Notification already finalized, skipping",
			"notification_id", job.NotificationID,
			"status", current.Status,
		)
		d.metrics.RecordSkipped()
		return nil
	}

	sendErr := d.send(ctx, job)
	if sendErr == nil {
		sentAt := d.now().UTC()
		if err := d.writeStatus(ctx, job.NotificationID, model.StatusSent, "", &sentAt); err != nil {
			// Delivered; returning an error would send it again.
			slog.Error("Notification sent but status update failed",
				"notification_id", job.NotificationID,
				"error", err,
			)
			d.metrics.RecordError()
		}
		d.metrics.RecordSent()
		slog.Info("Notification sent",
			"notification_id", job.NotificationID,
			"channel", job.Channel,
			"tenant_id", job.TenantID,
			"attempt", attempt.Number,
		)
		return nil
	}
	if ctx.Err() != nil {
		return sendErr
	}

	status, message := model.StatusRetrying, fmt.Sprintf("Attempt %d failed: %s", attempt.Number, sender.UserMessage(sendErr))
	if attempt.IsFinal() {
		status, message = model.StatusFailed, sender.UserMessage(sendErr)
	}
	if err := d.writeStatus(ctx, job.NotificationID, status, message, nil); err != nil {
		slog.Error("Failed to record delivery failure",
			"notification_id", job.NotificationID,
			"status", status,
			"error", err,
		)
	}

	slog.Warn("Notification delivery failed",
		"notification_id", job.NotificationID,
		"channel", job.Channel,
		"attempt", attempt.Number,
		"max_attempts", attempt.Max,
		"status", status,
		"error", sendErr,
	)
	return sendErr
}

func (d *Dispatcher) send(ctx context.Context, job events.DeliveryJob) error {
	s, ok := d.registry.Get(job.Channel)
	if !ok {
		return &sender.DeliveryError{
			Message: "Unsupported channel: " + string(job.Channel),
			Err:     fmt.Errorf("unsupported channel: %s", job.Channel),
		}
	}
	payload := job.Payload
	return s.Send(ctx, &payload, job.TenantID, job.NotificationID)
}

func (d *Dispatcher) writeStatus(ctx context.Context, id string, status model.NotificationStatus, message string, sentAt *time.Time) error {
	return retry.Do(ctx, statusWritePolicy, "update notification status", func() error {
		err := d.store.UpdateNotificationStatus(ctx, id, status, message, sentAt)
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		return err
	})
}
