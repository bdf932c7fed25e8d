// Package strategy defines the channel sender interface and its registry.
package strategy

import (
	"context"
	"sort"

	"github.com/olajoao/signal-desk/internal/model"
)

// NotificationSender delivers a notification payload over one channel.
// The channel-specific destination is read from payload.ActionConfig.
type NotificationSender interface {
	Send(ctx context.Context, payload *model.Payload, tenantID, notificationID string) error

	// Type returns the channel this sender handles.
	Type() model.Channel
}

// Registry manages notification sender strategies.
type Registry struct {
	senders map[model.Channel]NotificationSender
}

// NewRegistry creates a new sender registry.
func NewRegistry() *Registry {
	return &Registry{
		senders: make(map[model.Channel]NotificationSender),
	}
}

// Register registers a sender strategy, replacing any sender of the same type.
func (r *Registry) Register(sender NotificationSender) {
	r.senders[sender.Type()] = sender
}

// Get retrieves a sender strategy by channel.
func (r *Registry) Get(channel model.Channel) (NotificationSender, bool) {
	sender, ok := r.senders[channel]
	return sender, ok
}

// List returns all registered channels in sorted order.
func (r *Registry) List() []string {
	types := make([]string, 0, len(r.senders))
	for t := range r.senders {
		types = append(types, string(t))
	}
	sort.Strings(types)
	return types
}
