package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/olajoao/signal-desk/internal/model"
)

// CreateEvent durably records an event. Recording the same id twice fails
// with an "already exists" error.
func (db *DB) CreateEvent(ctx context.Context, e *model.Event) error {
	query := `
		INSERT INTO events (id, tenant_id, type, metadata, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := db.conn.ExecContext(ctx, query,
		e.ID,
		e.TenantID,
		e.Type,
		string(model.NormalizeMetadata(e.Metadata)),
		e.Timestamp,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return fmt.Errorf("event already exists: %s", e.ID)
		}
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// GetEventState reports whether an event has been processed.
// Returns ErrNotFound when the event no longer exists.
func (db *DB) GetEventState(ctx context.Context, eventID string) (processed bool, err error) {
	query := `SELECT processed FROM events WHERE id = $1`
	err = db.conn.QueryRowContext(ctx, query, eventID).Scan(&processed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("failed to get event state: %w", err)
	}
	return processed, nil
}

// MarkEventProcessed sets the event's processed flag.
func (db *DB) MarkEventProcessed(ctx context.Context, eventID string) error {
	result, err := db.conn.ExecContext(ctx, `UPDATE events SET processed = TRUE WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}

	slog.Debug("Marked event processed", "event_id", eventID)
	return nil
}
