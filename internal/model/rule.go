package model

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
)

// Rule limits.
const (
	MaxWindowSeconds   = 86400
	MaxCooldownSeconds = 86400
)

// Comparator is the count condition a rule applies to its window.
type Comparator string

const (
	CountGTE Comparator = "count_gte"
	CountGT  Comparator = "count_gt"
	CountEQ  Comparator = "count_eq"
)

// Matches reports whether count satisfies the comparator against threshold.
// Unknown comparators never match.
func (c Comparator) Matches(count, threshold int64) bool {
	switch c {
	case CountGTE:
		return count >= threshold
	case CountGT:
		return count > threshold
	case CountEQ:
		return count == threshold
	default:
		return false
	}
}

// Valid reports whether c is a known comparator.
func (c Comparator) Valid() bool {
	switch c {
	case CountGTE, CountGT, CountEQ:
		return true
	}
	return false
}

// Channel identifies a notification delivery mechanism.
type Channel string

const (
	ChannelWebhook Channel = "webhook"
	ChannelSlack   Channel = "slack"
	ChannelDiscord Channel = "discord"
	ChannelEmail   Channel = "email"
	ChannelInApp   Channel = "in_app"
)

// Action is one delivery target of a rule. Config is channel specific JSON.
type Action struct {
	Channel Channel         `json:"channel"`
	Config  json.RawMessage `json:"config"`
}

// Rule is a tenant-owned threshold policy over a sliding window.
type Rule struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenantId"`
	Name            string     `json:"name"`
	EventType       string     `json:"eventType"`
	Condition       Comparator `json:"condition"`
	Threshold       int64      `json:"threshold"`
	WindowSeconds   int64      `json:"windowSeconds"`
	CooldownSeconds int64      `json:"cooldownSeconds"`
	Actions         []Action   `json:"actions"`
	Enabled         bool       `json:"enabled"`
}

// Validate checks the structural invariants of a rule.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	if r.EventType == "" {
		return fmt.Errorf("event type is required")
	}
	if !r.Condition.Valid() {
		return fmt.Errorf("invalid condition %q", r.Condition)
	}
	if r.Threshold < 1 {
		return fmt.Errorf("threshold must be >= 1")
	}
	if r.WindowSeconds < 1 || r.WindowSeconds > MaxWindowSeconds {
		return fmt.Errorf("window must be between 1 and %d seconds", MaxWindowSeconds)
	}
	if r.CooldownSeconds < 0 || r.CooldownSeconds > MaxCooldownSeconds {
		return fmt.Errorf("cooldown must be between 0 and %d seconds", MaxCooldownSeconds)
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("at least one action is required")
	}
	for i, a := range r.Actions {
		if err := ValidateAction(a); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

// WebhookConfig is the action config of the webhook channel.
type WebhookConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ChatWebhookConfig is the action config of the slack and discord channels.
type ChatWebhookConfig struct {
	WebhookURL string `json:"webhookUrl"`
}

// EmailConfig is the action config of the email channel.
type EmailConfig struct {
	To string `json:"to"`
}

// ValidateAction checks that an action's config is structurally valid for its
// channel. Chat webhooks must point at their provider's host.
func ValidateAction(a Action) error {
	switch a.Channel {
	case ChannelWebhook:
		var cfg WebhookConfig
		if err := decodeConfig(a.Config, &cfg); err != nil {
			return err
		}
		if _, err := parseHTTPURL(cfg.URL); err != nil {
			return fmt.Errorf("webhook url: %w", err)
		}
	case ChannelSlack:
		var cfg ChatWebhookConfig
		if err := decodeConfig(a.Config, &cfg); err != nil {
			return err
		}
		u, err := parseHTTPURL(cfg.WebhookURL)
		if err != nil {
			return fmt.Errorf("slack webhookUrl: %w", err)
		}
		if !strings.EqualFold(u.Hostname(), "hooks.slack.com") {
			return fmt.Errorf("must be a Slack webhook URL")
		}
	case ChannelDiscord:
		var cfg ChatWebhookConfig
		if err := decodeConfig(a.Config, &cfg); err != nil {
			return err
		}
		u, err := parseHTTPURL(cfg.WebhookURL)
		if err != nil {
			return fmt.Errorf("discord webhookUrl: %w", err)
		}
		host := strings.ToLower(u.Hostname())
		if (host != "discord.com" && host != "discordapp.com") || !strings.HasPrefix(u.Path, "/api/webhooks") {
			return fmt.Errorf("must be a Discord webhook URL")
		}
	case ChannelEmail:
		var cfg EmailConfig
		if err := decodeConfig(a.Config, &cfg); err != nil {
			return err
		}
		if _, err := mail.ParseAddress(cfg.To); err != nil {
			return fmt.Errorf("invalid email address %q", cfg.To)
		}
	case ChannelInApp:
		// any object (or nothing) is accepted
	default:
		return fmt.Errorf("unknown channel %q", a.Channel)
	}
	return nil
}

func decodeConfig(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("config is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("malformed config: %w", err)
	}
	return nil
}

func parseHTTPURL(s string) (*url.URL, error) {
	if s == "" {
		return nil, fmt.Errorf("url is required")
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("must be an http or https URL")
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}
