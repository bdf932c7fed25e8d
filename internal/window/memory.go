package window

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

type series struct {
	entries   map[string]int64 // event id -> unix ms
	expiresAt time.Time
}

type shard struct {
	mu     sync.Mutex
	series map[string]*series
}

// MemoryStore is an in-process window store for single-instance deployments
// and tests. Keys are spread over mutex-guarded shards.
type MemoryStore struct {
	shards [shardCount]*shard
	mode   PruneMode
	now    func() time.Time
}

// NewMemoryStore creates an in-process window store. A nil clock uses time.Now.
func NewMemoryStore(mode PruneMode, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	s := &MemoryStore{mode: mode, now: now}
	for i := range s.shards {
		s.shards[i] = &shard{series: make(map[string]*series)}
	}
	return s
}

func (s *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

// Record adds the event to the window and refreshes the key TTL.
func (s *MemoryStore) Record(_ context.Context, tenantID, eventType, eventID string, timestamp time.Time) error {
	key := Key(tenantID, eventType)
	sh := s.shardFor(key)
	now := s.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	ser := sh.live(key, now)
	if ser == nil {
		ser = &series{entries: make(map[string]int64)}
		sh.series[key] = ser
	}
	ser.entries[eventID] = timestamp.UnixMilli()
	ser.expiresAt = now.Add(KeyTTL)
	return nil
}

// CountInWindow prunes and counts the window under the shard lock.
func (s *MemoryStore) CountInWindow(_ context.Context, tenantID, eventType string, windowSeconds int64) (int64, error) {
	key := Key(tenantID, eventType)
	sh := s.shardFor(key)
	now := s.now()
	countFrom, pruneBefore := cutoffs(s.mode, now, windowSeconds)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	ser := sh.live(key, now)
	if ser == nil {
		return 0, nil
	}

	var n int64
	for id, ts := range ser.entries {
		if ts < pruneBefore {
			delete(ser.entries, id)
			continue
		}
		if ts >= countFrom {
			n++
		}
	}
	if len(ser.entries) == 0 {
		delete(sh.series, key)
	}
	return n, nil
}

// Remove deletes the event from the window.
func (s *MemoryStore) Remove(_ context.Context, tenantID, eventType, eventID string) error {
	key := Key(tenantID, eventType)
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if ser, ok := sh.series[key]; ok {
		delete(ser.entries, eventID)
		if len(ser.entries) == 0 {
			delete(sh.series, key)
		}
	}
	return nil
}

// live returns the series for key, dropping it if its TTL has passed.
// Caller holds the shard lock.
func (sh *shard) live(key string, now time.Time) *series {
	ser, ok := sh.series[key]
	if !ok {
		return nil
	}
	if !now.Before(ser.expiresAt) {
		delete(sh.series, key)
		return nil
	}
	return ser
}
