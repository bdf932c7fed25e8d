package main

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/olajoao/signal-desk/internal/config"
	"github.com/olajoao/signal-desk/internal/sender"
	"github.com/olajoao/signal-desk/internal/sender/discord"
	"github.com/olajoao/signal-desk/internal/sender/email"
	"github.com/olajoao/signal-desk/internal/sender/email/provider"
	"github.com/olajoao/signal-desk/internal/sender/inapp"
	"github.com/olajoao/signal-desk/internal/sender/slack"
	"github.com/olajoao/signal-desk/internal/sender/strategy"
	"github.com/olajoao/signal-desk/internal/sender/webhook"
)

// newSenderRegistry registers one sender per channel.
func newSenderRegistry(ctx context.Context, cfg *config.DispatcherConfig, redisClient *redis.Client) *strategy.Registry {
	httpClient := sender.NewHTTPClient()

	providers := provider.NewRegistry()
	providers.Register(provider.NewResendProvider(cfg.ResendAPIKey))
	providers.Register(provider.NewSESProvider(ctx, cfg.AWSRegion, cfg.SESEnabled))
	if err := providers.SetPrimary("resend"); err != nil {
		slog.Warn("Failed to set primary email provider", "error", err)
	}
	if err := providers.SetFallback("ses"); err != nil {
		slog.Warn("Failed to set fallback email provider", "error", err)
	}
	if !providers.Available() {
		slog.Warn("No email provider configured, email alerts will be skipped")
	}

	registry := strategy.NewRegistry()
	registry.Register(webhook.NewSender(httpClient))
	registry.Register(slack.NewSender(httpClient))
	registry.Register(discord.NewSender(httpClient))
	registry.Register(email.NewSender(providers, email.Config{
		From:          cfg.EmailFrom,
		RatePerSecond: cfg.EmailRateLimit,
		Burst:         int(cfg.EmailRateLimit) + 1,
	}))
	registry.Register(inapp.NewSender(redisClient))
	return registry
}
