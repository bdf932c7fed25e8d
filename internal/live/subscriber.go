package live

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/olajoao/signal-desk/internal/sender/inapp"
)

// Subscriber feeds the hub from the tenant broadcast channels.
type Subscriber struct {
	client *redis.Client
	hub    *Hub
}

// NewSubscriber creates a subscriber.
func NewSubscriber(client *redis.Client, hub *Hub) *Subscriber {
	return &Subscriber{client: client, hub: hub}
}

// Run pattern-subscribes to every tenant channel and relays messages until
// ctx is cancelled. ready, if non-nil, is closed once the subscription is
// active.
func (s *Subscriber) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := s.client.PSubscribe(ctx, inapp.ChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to broadcasts: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	slog.Info("Subscribed to tenant broadcasts", "pattern", inapp.ChannelPrefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			tenantID := strings.TrimPrefix(msg.Channel, inapp.ChannelPrefix)
			if tenantID == "" || tenantID == msg.Channel {
				continue
			}
			n := s.hub.Broadcast(tenantID, []byte(msg.Payload))
			slog.Debug("Relayed broadcast", "tenant_id", tenantID, "clients", n)
		}
	}
}
