// Package ingest records tenant events and hands them to the event queue.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/olajoao/signal-desk/internal/model"
)

// EventRecorder durably records events.
type EventRecorder interface {
	CreateEvent(ctx context.Context, e *model.Event) error
}

// JobEnqueuer schedules event jobs.
type JobEnqueuer interface {
	EnqueueEventJob(ctx context.Context, eventID, eventType string, metadata json.RawMessage, timestampISO, tenantID string) error
}

// Ingestor records an event before enqueueing it, so every job refers to a
// stored event.
type Ingestor struct {
	store EventRecorder
	queue JobEnqueuer
	now   func() time.Time
}

// NewIngestor creates an ingestor.
func NewIngestor(store EventRecorder, queue JobEnqueuer) *Ingestor {
	return &Ingestor{store: store, queue: queue, now: time.Now}
}

// Submit fills in a missing id and timestamp, records e and enqueues its job.
// When the enqueue fails the event stays recorded and unprocessed.
func (i *Ingestor) Submit(ctx context.Context, e *model.Event) error {
	if e.TenantID == "" {
		return fmt.Errorf("tenant id cannot be empty")
	}
	if e.Type == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = i.now()
	}
	e.Timestamp = e.Timestamp.UTC()
	e.Metadata = model.NormalizeMetadata(e.Metadata)

	if err := i.store.CreateEvent(ctx, e); err != nil {
		return err
	}
	if err := i.queue.EnqueueEventJob(ctx, e.ID, e.Type, e.Metadata, model.FormatTime(e.Timestamp), e.TenantID); err != nil {
		return fmt.Errorf("event %s recorded but not enqueued: %w", e.ID, err)
	}

	slog.Debug("Submitted event", "event_id", e.ID, "tenant_id", e.TenantID, "type", e.Type)
	return nil
}
