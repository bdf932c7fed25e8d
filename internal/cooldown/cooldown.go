// Package cooldown tracks per-rule suppression after a rule fires.
package cooldown

import (
	"context"
	"time"
)

// Tracker records which rules are inside their cooldown period.
type Tracker interface {
	// IsSuppressed reports whether the rule fired within its cooldown.
	IsSuppressed(ctx context.Context, ruleID string) (bool, error)
	// Suppress starts a cooldown. A non-positive cooldown is a no-op.
	Suppress(ctx context.Context, ruleID string, cooldownSeconds int64) error
	// Claim atomically starts a cooldown if none is active and reports
	// whether the caller won. A non-positive cooldown always wins and sets
	// nothing.
	Claim(ctx context.Context, ruleID string, cooldownSeconds int64) (bool, error)
}

// Key returns the storage key of a rule's cooldown flag.
func Key(ruleID string) string {
	return "cooldown:" + ruleID
}

func ttl(cooldownSeconds int64) time.Duration {
	return time.Duration(cooldownSeconds) * time.Second
}
