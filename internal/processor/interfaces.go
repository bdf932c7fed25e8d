package processor

import (
	"context"

	"github.com/olajoao/signal-desk/internal/events"
	"github.com/olajoao/signal-desk/internal/model"
)

// EventStore is the durable state the processor reads and writes.
type EventStore interface {
	GetEventState(ctx context.Context, eventID string) (processed bool, err error)
	ListEnabledRules(ctx context.Context, tenantID, eventType string) ([]model.Rule, error)
	MarkEventProcessed(ctx context.Context, eventID string) error
	CreateNotificationsAndMarkProcessed(ctx context.Context, eventID string, notifications []model.Notification) ([]model.Notification, error)
}

// DeliveryEnqueuer schedules delivery jobs on the notifications queue.
type DeliveryEnqueuer interface {
	EnqueueDeliveries(ctx context.Context, jobs []events.DeliveryJob) error
}

// UsageTracker counts tenant usage. Implementations must not block.
type UsageTracker interface {
	TrackEvent(tenantID string)
	TrackNotifications(tenantID string, n int)
}

type noopUsage struct{}

func (noopUsage) TrackEvent(string)              {}
func (noopUsage) TrackNotifications(string, int) {}
