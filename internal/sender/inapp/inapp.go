// Package inapp pushes notifications to connected dashboards through Redis
// pub/sub. The live gateway relays them to websocket clients.
package inapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/olajoao/signal-desk/internal/model"
)

// ChannelPrefix is the pub/sub channel prefix, followed by the tenant id.
const ChannelPrefix = "ws:broadcast:"

// MessageTypeNotification tags in-app notification messages.
const MessageTypeNotification = "notification:new"

// Channel returns the broadcast channel for a tenant.
func Channel(tenantID string) string {
	return ChannelPrefix + tenantID
}

// Message is the broadcast envelope.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Sender implements strategy.NotificationSender for the in_app channel.
type Sender struct {
	client *redis.Client
}

// NewSender creates an in-app sender publishing through client.
func NewSender(client *redis.Client) *Sender {
	return &Sender{client: client}
}

func (s *Sender) Type() model.Channel {
	return model.ChannelInApp
}

// Send publishes the payload with the notification id merged in. Publish
// failures are logged and never returned.
func (s *Sender) Send(ctx context.Context, p *model.Payload, tenantID, notificationID string) error {
	data, err := BuildMessage(p, notificationID)
	if err != nil {
		slog.Error("Failed to build in-app message",
			"error", err,
			"tenant_id", tenantID,
			"notification_id", notificationID,
		)
		return nil
	}

	if err := s.client.Publish(ctx, Channel(tenantID), data).Err(); err != nil {
		slog.Error("Failed to broadcast in-app notification",
			"error", err,
			"tenant_id", tenantID,
			"notification_id", notificationID,
		)
		return nil
	}

	slog.Debug("Broadcast in-app notification", "tenant_id", tenantID, "notification_id", notificationID)
	return nil
}

// BuildMessage encodes {type: "notification:new", payload: {...p, notificationId}}.
func BuildMessage(p *model.Payload, notificationID string) ([]byte, error) {
	fields, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(fields, &merged); err != nil {
		return nil, fmt.Errorf("failed to merge payload: %w", err)
	}
	id, _ := json.Marshal(notificationID)
	merged["notificationId"] = id

	payload, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged payload: %w", err)
	}

	return json.Marshal(Message{Type: MessageTypeNotification, Payload: payload})
}
