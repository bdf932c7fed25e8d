// Package webhook delivers notifications as JSON POSTs to tenant endpoints.
package webhook

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/olajoao/signal-desk/internal/model"
	"github.com/olajoao/signal-desk/internal/sender"
)

// Sender implements webhook notification sending via HTTP POST.
type Sender struct {
	httpClient *http.Client
}

// NewSender creates a new webhook sender. A nil client uses the default
// sender client.
func NewSender(client *http.Client) *Sender {
	if client == nil {
		client = sender.NewHTTPClient()
	}
	return &Sender{httpClient: client}
}

// Type returns the channel this sender handles.
func (s *Sender) Type() model.Channel {
	return model.ChannelWebhook
}

// Send POSTs the notification payload to config.url with config.headers.
func (s *Sender) Send(ctx context.Context, payload *model.Payload, tenantID, notificationID string) error {
	var cfg model.WebhookConfig
	if err := sender.DecodeConfig(payload.ActionConfig, &cfg); err != nil {
		return err
	}
	if cfg.URL == "" {
		return &sender.ConfigError{Channel: model.ChannelWebhook, Message: "Webhook URL not configured"}
	}

	if err := sender.PostJSON(ctx, s.httpClient, cfg.URL, cfg.Headers, payload, "Webhook"); err != nil {
		return err
	}

	slog.Info("Successfully sent webhook notification",
		"notification_id", notificationID,
		"tenant_id", tenantID,
	)
	return nil
}
