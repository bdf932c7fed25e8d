// Package slack delivers notifications to Slack incoming webhooks as Block
// Kit messages.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/olajoao/signal-desk/internal/model"
	"github.com/olajoao/signal-desk/internal/sender"
)

// Message is a Slack incoming-webhook message.
type Message struct {
	Blocks []Block `json:"blocks"`
}

// Block is one Block Kit layout block.
type Block struct {
	Type     string `json:"type"`
	Text     *Text  `json:"text,omitempty"`
	Fields   []Text `json:"fields,omitempty"`
	Elements []Text `json:"elements,omitempty"`
}

// Text is a Block Kit text object.
type Text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwn(s string) Text { return Text{Type: "mrkdwn", Text: s} }

// BuildMessage renders a notification payload as a Slack message.
func BuildMessage(p *model.Payload) Message {
	return Message{
		Blocks: []Block{
			{
				Type: "header",
				Text: &Text{Type: "plain_text", Text: "Alert: " + p.RuleName},
			},
			{
				Type: "section",
				Fields: []Text{
					mrkdwn(fmt.Sprintf("*Event Type*\n`%s`", p.EventType)),
					mrkdwn(fmt.Sprintf("*Count*\n%d / %d", p.Count, p.Threshold)),
					mrkdwn(fmt.Sprintf("*Window*\n%ds", p.WindowSeconds)),
					mrkdwn("*Time*\n" + model.FormatTime(p.TriggeredAt)),
				},
			},
			{
				Type: "section",
				Text: &Text{Type: "mrkdwn", Text: "*Metadata*\n```" + sender.PrettyMetadata(p.EventMetadata) + "```"},
			},
			{
				Type:     "context",
				Elements: []Text{mrkdwn("Sent by *SignalDesk*")},
			},
		},
	}
}

// Sender implements Slack notification sending.
type Sender struct {
	httpClient *http.Client
}

// NewSender creates a new Slack sender. A nil client uses the default
// sender client.
func NewSender(client *http.Client) *Sender {
	if client == nil {
		client = sender.NewHTTPClient()
	}
	return &Sender{httpClient: client}
}

// Type returns the channel this sender handles.
func (s *Sender) Type() model.Channel {
	return model.ChannelSlack
}

// Send posts the Block Kit message to config.webhookUrl.
func (s *Sender) Send(ctx context.Context, payload *model.Payload, tenantID, notificationID string) error {
	var cfg model.ChatWebhookConfig
	if err := sender.DecodeConfig(payload.ActionConfig, &cfg); err != nil {
		return err
	}
	if cfg.WebhookURL == "" {
		return &sender.ConfigError{Channel: model.ChannelSlack, Message: "Slack webhook URL not configured"}
	}

	if err := sender.PostJSON(ctx, s.httpClient, cfg.WebhookURL, nil, BuildMessage(payload), "Slack webhook"); err != nil {
		return err
	}

	slog.Info("Successfully sent Slack notification",
		"notification_id", notificationID,
		"tenant_id", tenantID,
	)
	return nil
}
