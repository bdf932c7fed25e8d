// Package evaluator decides which rules fire for an incoming event.
// It reads the sliding window and claims cooldowns but never writes durable
// state.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/olajoao/signal-desk/internal/cooldown"
	"github.com/olajoao/signal-desk/internal/model"
	"github.com/olajoao/signal-desk/internal/window"
)

// EvaluationInput is everything the evaluator needs about one event.
type EvaluationInput struct {
	TenantID  string
	EventID   string
	EventType string
	Metadata  json.RawMessage
	// Rules are the enabled rules for (TenantID, EventType), evaluated in order.
	Rules []model.Rule
}

// Intent is an in-memory decision to notify one action of one rule.
type Intent struct {
	RuleID      string
	TenantID    string
	EventID     string
	ActionIndex int
	Channel     model.Channel
	Payload     model.Payload
}

// Evaluator evaluates rules against the window under cooldown suppression.
type Evaluator struct {
	window   window.Store
	cooldown cooldown.Tracker
	now      func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock overrides the clock used for trigger timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// New creates an Evaluator.
func New(w window.Store, c cooldown.Tracker, opts ...Option) *Evaluator {
	e := &Evaluator{window: w, cooldown: c, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns one intent per action of every rule that fires.
// A rule fires when it is not suppressed, its comparator matches the current
// window count, and this call wins the cooldown claim.
func (e *Evaluator) Evaluate(ctx context.Context, in EvaluationInput) ([]Intent, error) {
	var intents []Intent
	metadata := model.NormalizeMetadata(in.Metadata)

	for i := range in.Rules {
		rule := &in.Rules[i]
		if !rule.Enabled || rule.EventType != in.EventType || rule.TenantID != in.TenantID {
			continue
		}

		suppressed, err := e.cooldown.IsSuppressed(ctx, rule.ID)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if suppressed {
			slog.Debug("Rule in cooldown, skipping", "rule_id", rule.ID, "event_id", in.EventID)
			continue
		}

		count, err := e.window.CountInWindow(ctx, in.TenantID, in.EventType, rule.WindowSeconds)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}

		if !rule.Condition.Matches(count, rule.Threshold) {
			if !rule.Condition.Valid() {
				slog.Warn("Rule has unknown condition, never fires",
					"rule_id", rule.ID,
					"condition", rule.Condition,
				)
			}
			continue
		}

		won, err := e.cooldown.Claim(ctx, rule.ID, rule.CooldownSeconds)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if !won {
			slog.Debug("Rule fired concurrently elsewhere, skipping", "rule_id", rule.ID, "event_id", in.EventID)
			continue
		}

		triggeredAt := e.now().UTC()
		for idx, action := range rule.Actions {
			intents = append(intents, Intent{
				RuleID:      rule.ID,
				TenantID:    in.TenantID,
				EventID:     in.EventID,
				ActionIndex: idx,
				Channel:     action.Channel,
				Payload: model.Payload{
					RuleName:      rule.Name,
					EventType:     in.EventType,
					EventMetadata: metadata,
					Threshold:     rule.Threshold,
					WindowSeconds: rule.WindowSeconds,
					Count:         count,
					TriggeredAt:   triggeredAt,
					ActionConfig:  actionConfig(action.Config),
				},
			})
		}

		slog.Info("Rule fired",
			"rule_id", rule.ID,
			"tenant_id", in.TenantID,
			"event_id", in.EventID,
			"count", count,
			"threshold", rule.Threshold,
			"actions", len(rule.Actions),
		)
	}

	return intents, nil
}

func actionConfig(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}
