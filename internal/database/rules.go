package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/olajoao/signal-desk/internal/model"
)

// ListEnabledRules returns the enabled rules of a tenant for one event type,
// oldest first.
func (db *DB) ListEnabledRules(ctx context.Context, tenantID, eventType string) ([]model.Rule, error) {
	query := `
		SELECT id, tenant_id, name, event_type, condition, threshold,
		       window_seconds, cooldown_seconds, actions, enabled
		FROM rules
		WHERE tenant_id = $1 AND event_type = $2 AND enabled = TRUE
		ORDER BY created_at ASC, id ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, tenantID, eventType)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []model.Rule
	for rows.Next() {
		var r model.Rule
		var actionsJSON []byte
		if err := rows.Scan(
			&r.ID,
			&r.TenantID,
			&r.Name,
			&r.EventType,
			&r.Condition,
			&r.Threshold,
			&r.WindowSeconds,
			&r.CooldownSeconds,
			&actionsJSON,
			&r.Enabled,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if err := json.Unmarshal(actionsJSON, &r.Actions); err != nil {
			// A rule with unreadable actions cannot notify anyone.
			slog.Warn("Skipping rule with malformed actions", "rule_id", r.ID, "error", err)
			continue
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

// CreateRule validates and stores a rule, assigning its id.
func (db *DB) CreateRule(ctx context.Context, r *model.Rule) (string, error) {
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("invalid rule: %w", err)
	}
	actionsJSON, err := json.Marshal(r.Actions)
	if err != nil {
		return "", fmt.Errorf("failed to marshal actions: %w", err)
	}

	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := `
		INSERT INTO rules (id, tenant_id, name, event_type, condition, threshold,
		                   window_seconds, cooldown_seconds, actions, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = db.conn.ExecContext(ctx, query,
		id,
		r.TenantID,
		r.Name,
		r.EventType,
		string(r.Condition),
		r.Threshold,
		r.WindowSeconds,
		r.CooldownSeconds,
		string(actionsJSON),
		r.Enabled,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return "", fmt.Errorf("rule already exists: %s", r.Name)
		}
		return "", fmt.Errorf("failed to create rule: %w", err)
	}

	r.ID = id
	slog.Info("Created rule", "rule_id", id, "tenant_id", r.TenantID, "event_type", r.EventType)
	return id, nil
}
