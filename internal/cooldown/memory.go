package cooldown

import (
	"context"
	"sync"
	"time"
)

// MemoryTracker is an in-process cooldown tracker.
type MemoryTracker struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryTracker creates an in-process tracker. A nil clock uses time.Now.
func NewMemoryTracker(now func() time.Time) *MemoryTracker {
	if now == nil {
		now = time.Now
	}
	return &MemoryTracker{expires: make(map[string]time.Time), now: now}
}

// IsSuppressed reports whether the rule's cooldown has not yet expired.
func (t *MemoryTracker) IsSuppressed(_ context.Context, ruleID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeLocked(ruleID), nil
}

// Suppress starts or restarts the rule's cooldown.
func (t *MemoryTracker) Suppress(_ context.Context, ruleID string, cooldownSeconds int64) error {
	if cooldownSeconds <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expires[ruleID] = t.now().Add(ttl(cooldownSeconds))
	return nil
}

// Claim starts the cooldown only if none is active.
func (t *MemoryTracker) Claim(_ context.Context, ruleID string, cooldownSeconds int64) (bool, error) {
	if cooldownSeconds <= 0 {
		return true, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.activeLocked(ruleID) {
		return false, nil
	}
	t.expires[ruleID] = t.now().Add(ttl(cooldownSeconds))
	return true, nil
}

func (t *MemoryTracker) activeLocked(ruleID string) bool {
	exp, ok := t.expires[ruleID]
	if !ok {
		return false
	}
	if !t.now().Before(exp) {
		delete(t.expires, ruleID)
		return false
	}
	return true
}
