package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/olajoao/signal-desk/internal/model"
)

// CreateNotificationsAndMarkProcessed inserts the notifications of an event
// and marks the event processed in one transaction.
//
// Inserts are idempotent on (rule_id, event_id, action_index): rows that
// already exist are skipped. Only newly created notifications are returned,
// with their id, status and created_at filled in.
func (db *DB) CreateNotificationsAndMarkProcessed(ctx context.Context, eventID string, notifications []model.Notification) ([]model.Notification, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO notifications (id, rule_id, event_id, tenant_id, channel, action_index, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
		ON CONFLICT (rule_id, event_id, action_index) DO NOTHING
		RETURNING id, created_at
	`

	created := make([]model.Notification, 0, len(notifications))
	for _, n := range notifications {
		payloadJSON, err := json.Marshal(n.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}

		id := uuid.NewString()
		var createdAt time.Time
		err = tx.QueryRowContext(ctx, query,
			id,
			n.RuleID,
			n.EventID,
			n.TenantID,
			string(n.Channel),
			n.ActionIndex,
			string(payloadJSON),
		).Scan(&id, &createdAt)
		if errors.Is(err, sql.ErrNoRows) {
			slog.Debug("Notification already exists, skipping",
				"rule_id", n.RuleID,
				"event_id", n.EventID,
				"action_index", n.ActionIndex,
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert notification: %w", err)
		}

		n.ID = id
		n.Status = model.StatusPending
		n.CreatedAt = createdAt
		created = append(created, n)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE events SET processed = TRUE WHERE id = $1`, eventID); err != nil {
		return nil, fmt.Errorf("failed to mark event processed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("Created notifications",
		"event_id", eventID,
		"created", len(created),
		"requested", len(notifications),
	)
	return created, nil
}

const notificationColumns = `id, rule_id, event_id, tenant_id, channel, action_index, payload, status, sent_at, error, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*model.Notification, error) {
	var n model.Notification
	var payloadJSON []byte
	var sentAt sql.NullTime
	var lastError sql.NullString
	if err := row.Scan(
		&n.ID,
		&n.RuleID,
		&n.EventID,
		&n.TenantID,
		&n.Channel,
		&n.ActionIndex,
		&payloadJSON,
		&n.Status,
		&sentAt,
		&lastError,
		&n.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payloadJSON, &n.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload of notification %s: %w", n.ID, err)
	}
	if sentAt.Valid {
		t := sentAt.Time
		n.SentAt = &t
	}
	n.Error = lastError.String
	return &n, nil
}

// GetNotification retrieves a notification by id.
func (db *DB) GetNotification(ctx context.Context, notificationID string) (*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	n, err := scanNotification(db.conn.QueryRowContext(ctx, query, notificationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// UpdateNotificationStatus records a delivery outcome. sentAt is stored only
// when non-nil; lastError is stored as NULL when empty.
func (db *DB) UpdateNotificationStatus(ctx context.Context, notificationID string, status model.NotificationStatus, lastError string, sentAt *time.Time) error {
	query := `
		UPDATE notifications
		SET status = $2, error = $3, sent_at = COALESCE($4, sent_at), updated_at = NOW()
		WHERE id = $1
	`
	errArg := sql.NullString{String: lastError, Valid: lastError != ""}
	var sentArg sql.NullTime
	if sentAt != nil {
		sentArg = sql.NullTime{Time: *sentAt, Valid: true}
	}

	result, err := db.conn.ExecContext(ctx, query, notificationID, string(status), errArg, sentArg)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}

	slog.Debug("Updated notification status",
		"notification_id", notificationID,
		"status", status,
	)
	return nil
}

// ClaimStalePending returns up to limit pending notifications untouched
// since olderThan, oldest first, and bumps their updated_at in the same
// statement. A claimed row is not returned again until it goes stale anew,
// and concurrent callers never claim the same row.
func (db *DB) ClaimStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Notification, error) {
	query := `
		UPDATE notifications
		SET updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notifications
			WHERE status = 'pending' AND updated_at < $1
			ORDER BY updated_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + notificationColumns
	rows, err := db.conn.QueryContext(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	// RETURNING carries no order.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
