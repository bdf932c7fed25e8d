// Package window implements the per-tenant, per-event-type sliding window
// counter used by rule evaluation.
package window

import (
	"context"
	"fmt"
	"time"
)

// KeyTTL is how long an idle window key is retained. It equals the largest
// window a rule may request.
const KeyTTL = 24 * time.Hour

// PruneMode selects which cutoff CountInWindow uses when discarding entries.
type PruneMode int

const (
	// PruneMaxWindow discards only entries older than KeyTTL and counts the
	// entries inside the requested window. Rules with different window sizes
	// on the same event type never undercount each other.
	PruneMaxWindow PruneMode = iota
	// PruneRequestedWindow discards everything older than the requested window.
	// A later call with a larger window only sees what survived earlier calls.
	PruneRequestedWindow
)

// String returns the flag form of the mode.
func (m PruneMode) String() string {
	switch m {
	case PruneRequestedWindow:
		return "requested"
	default:
		return "max"
	}
}

// ParsePruneMode parses the flag form of a prune mode.
func ParsePruneMode(s string) (PruneMode, error) {
	switch s {
	case "", "max":
		return PruneMaxWindow, nil
	case "requested":
		return PruneRequestedWindow, nil
	default:
		return PruneMaxWindow, fmt.Errorf("unknown prune mode %q (want max or requested)", s)
	}
}

// Store is a sliding window of event timestamps keyed by (tenant, event type).
type Store interface {
	// Record inserts eventID at timestamp and refreshes the key TTL.
	// Recording the same eventID again does not change the count.
	Record(ctx context.Context, tenantID, eventType, eventID string, timestamp time.Time) error
	// CountInWindow prunes stale entries and returns how many entries have a
	// timestamp at or after now - windowSeconds.
	CountInWindow(ctx context.Context, tenantID, eventType string, windowSeconds int64) (int64, error)
	// Remove deletes a single entry. Used to roll back a Record.
	Remove(ctx context.Context, tenantID, eventType, eventID string) error
}

// Key returns the storage key of a (tenant, event type) window.
func Key(tenantID, eventType string) string {
	return fmt.Sprintf("org:%s:events:%s", tenantID, eventType)
}

// cutoffs returns the count cutoff and the prune cutoff, in unix milliseconds.
func cutoffs(mode PruneMode, now time.Time, windowSeconds int64) (countFrom, pruneBefore int64) {
	nowMs := now.UnixMilli()
	countFrom = nowMs - windowSeconds*1000
	if mode == PruneRequestedWindow {
		return countFrom, countFrom
	}
	return countFrom, nowMs - KeyTTL.Milliseconds()
}
