// Package email delivers alert emails through the provider registry.
package email

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/olajoao/signal-desk/internal/model"
	"github.com/olajoao/signal-desk/internal/sender"
	"github.com/olajoao/signal-desk/internal/sender/email/provider"
)

// DefaultFrom is used when no sender address is configured.
const DefaultFrom = "SignalDesk <noreply@signaldesk.dev>"

// Mailer is the subset of the provider registry the sender needs.
type Mailer interface {
	Available() bool
	Send(ctx context.Context, req *provider.EmailRequest) error
}

// Config holds the email sender settings.
type Config struct {
	From string
	// RatePerSecond caps outbound sends; zero or negative disables the limit.
	RatePerSecond float64
	Burst         int
}

// Sender implements strategy.NotificationSender for the email channel.
type Sender struct {
	mailer  Mailer
	from    string
	limiter *rate.Limiter
}

// NewSender creates an email sender over mailer.
func NewSender(mailer Mailer, cfg Config) *Sender {
	from := cfg.From
	if from == "" {
		from = DefaultFrom
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Sender{mailer: mailer, from: from, limiter: limiter}
}

func (s *Sender) Type() model.Channel {
	return model.ChannelEmail
}

// Send emails the alert to config.to. With no configured provider the alert
// is logged and skipped without error.
func (s *Sender) Send(ctx context.Context, p *model.Payload, tenantID, notificationID string) error {
	var cfg model.EmailConfig
	if err := sender.DecodeConfig(p.ActionConfig, &cfg); err != nil {
		return err
	}
	if cfg.To == "" {
		return &sender.ConfigError{Channel: model.ChannelEmail, Message: "Email address not configured"}
	}

	if s.mailer == nil || !s.mailer.Available() {
		slog.Info("Email alert skipped, no email provider configured",
			"to", cfg.To,
			"rule_name", p.RuleName,
			"event_type", p.EventType,
			"count", p.Count,
			"threshold", p.Threshold,
			"notification_id", notificationID,
		)
		return nil
	}

	html, err := RenderHTML(p)
	if err != nil {
		return err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("email rate limiter: %w", err)
	}

	req := &provider.EmailRequest{
		From:    s.from,
		To:      []string{cfg.To},
		Subject: Subject(p),
		HTML:    html,
		Text:    RenderText(p),
	}
	if err := s.mailer.Send(ctx, req); err != nil {
		return &sender.DeliveryError{
			Message: "Email alert failed: " + err.Error(),
			Err:     fmt.Errorf("email alert failed: %w", err),
		}
	}

	slog.Debug("Email alert sent",
		"tenant_id", tenantID,
		"notification_id", notificationID,
		"to", cfg.To,
	)
	return nil
}
