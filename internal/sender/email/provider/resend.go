package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// ResendProvider sends email through the Resend API.
type ResendProvider struct {
	client *resend.Client
}

// NewResendProvider returns a provider for apiKey. An empty key yields an
// unconfigured provider.
func NewResendProvider(apiKey string) *ResendProvider {
	if apiKey == "" {
		return &ResendProvider{}
	}
	return &ResendProvider{client: resend.NewClient(apiKey)}
}

func (p *ResendProvider) Name() string { return "resend" }

func (p *ResendProvider) IsConfigured() bool { return p.client != nil }

func (p *ResendProvider) Send(ctx context.Context, req *EmailRequest) error {
	if p.client == nil {
		return fmt.Errorf("resend client not initialized")
	}
	if len(req.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    req.From,
		To:      req.To,
		Subject: req.Subject,
		Html:    req.HTML,
		Text:    req.Text,
	}

	result, err := p.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}

	slog.Debug("Email sent via Resend", "email_id", result.Id, "to", req.To)
	return nil
}
