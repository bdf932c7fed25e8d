// Package discord delivers notifications to Discord webhooks as embeds.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/olajoao/signal-desk/internal/model"
	"github.com/olajoao/signal-desk/internal/sender"
)

// alertColor is the embed side-bar color.
const alertColor = 0xff4444

// Message is a Discord webhook message.
type Message struct {
	Embeds []Embed `json:"embeds"`
}

// Embed is a Discord rich embed.
type Embed struct {
	Title     string  `json:"title"`
	Color     int     `json:"color"`
	Fields    []Field `json:"fields"`
	Timestamp string  `json:"timestamp"`
	Footer    Footer  `json:"footer"`
}

// Field is one embed field.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Footer is the embed footer.
type Footer struct {
	Text string `json:"text"`
}

// BuildMessage renders a notification payload as a Discord message.
func BuildMessage(p *model.Payload) Message {
	return Message{
		Embeds: []Embed{{
			Title: "Alert: " + p.RuleName,
			Color: alertColor,
			Fields: []Field{
				{Name: "Event Type", Value: "`" + p.EventType + "`", Inline: true},
				{Name: "Count", Value: fmt.Sprintf("%d / %d", p.Count, p.Threshold), Inline: true},
				{Name: "Window", Value: fmt.Sprintf("%ds", p.WindowSeconds), Inline: true},
				{Name: "Metadata", Value: "```json\n" + sender.PrettyMetadata(p.EventMetadata) + "\n```"},
			},
			Timestamp: model.FormatTime(p.TriggeredAt),
			Footer:    Footer{Text: "SignalDesk"},
		}},
	}
}

// Sender implements Discord notification sending.
type Sender struct {
	httpClient *http.Client
}

// NewSender creates a new Discord sender. A nil client uses the default
// sender client.
func NewSender(client *http.Client) *Sender {
	if client == nil {
		client = sender.NewHTTPClient()
	}
	return &Sender{httpClient: client}
}

// Type returns the channel this sender handles.
func (s *Sender) Type() model.Channel {
	return model.ChannelDiscord
}

// Send posts the embed message to config.webhookUrl.
func (s *Sender) Send(ctx context.Context, payload *model.Payload, tenantID, notificationID string) error {
	var cfg model.ChatWebhookConfig
	if err := sender.DecodeConfig(payload.ActionConfig, &cfg); err != nil {
		return err
	}
	if cfg.WebhookURL == "" {
		return &sender.ConfigError{Channel: model.ChannelDiscord, Message: "Discord webhook URL not configured"}
	}

	if err := sender.PostJSON(ctx, s.httpClient, cfg.WebhookURL, nil, BuildMessage(payload), "Discord webhook"); err != nil {
		return err
	}

	slog.Info("Successfully sent Discord notification",
		"notification_id", notificationID,
		"tenant_id", tenantID,
	)
	return nil
}
