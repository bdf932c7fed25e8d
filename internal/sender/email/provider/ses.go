package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESProvider sends email through AWS SES v2.
type SESProvider struct {
	client *sesv2.Client
	region string
}

// NewSESProvider loads the default AWS config for region. SES is opt-in:
// when enabled is false, or the config cannot be loaded, the provider is
// returned unconfigured.
func NewSESProvider(ctx context.Context, region string, enabled bool) *SESProvider {
	if !enabled {
		return &SESProvider{region: region}
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		slog.Warn("Failed to load AWS config, SES provider unavailable", "error", err)
		return &SESProvider{region: region}
	}

	return &SESProvider{client: sesv2.NewFromConfig(cfg), region: region}
}

func (p *SESProvider) Name() string { return "ses" }

func (p *SESProvider) IsConfigured() bool { return p.client != nil }

func (p *SESProvider) Send(ctx context.Context, req *EmailRequest) error {
	if p.client == nil {
		return fmt.Errorf("SES client not initialized")
	}
	if len(req.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	var body types.Body
	if req.HTML != "" {
		body.Html = &types.Content{Data: aws.String(req.HTML), Charset: aws.String("UTF-8")}
	}
	if req.Text != "" {
		body.Text = &types.Content{Data: aws.String(req.Text), Charset: aws.String("UTF-8")}
	}

	out, err := p.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(req.From),
		Destination:      &types.Destination{ToAddresses: req.To},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(req.Subject)},
				Body:    &body,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES send failed: %w", err)
	}

	slog.Debug("Email sent via SES", "message_id", aws.ToString(out.MessageId), "region", p.region)
	return nil
}
