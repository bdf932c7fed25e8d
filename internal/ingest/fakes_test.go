package ingest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/olajoao/signal-desk/internal/model"
)

// FakeStore records created events.
type FakeStore struct {
	mu     sync.Mutex
	Events []model.Event
	Err    error
}

func (f *FakeStore) CreateEvent(ctx context.Context, e *model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Events = append(f.Events, *e)
	return nil
}

// EnqueuedJob captures one EnqueueEventJob call.
type EnqueuedJob struct {
	EventID   string
	Type      string
	Metadata  json.RawMessage
	Timestamp string
	TenantID  string
}

// FakeQueue records enqueued event jobs.
type FakeQueue struct {
	mu   sync.Mutex
	Jobs []EnqueuedJob
	Err  error
}

func (f *FakeQueue) EnqueueEventJob(ctx context.Context, eventID, eventType string, metadata json.RawMessage, timestampISO, tenantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Jobs = append(f.Jobs, EnqueuedJob{eventID, eventType, metadata, timestampISO, tenantID})
	return nil
}

// fixedSource always returns a copy of the same event.
type fixedSource struct {
	event model.Event
}

func (s fixedSource) Generate() *model.Event {
	e := s.event
	return &e
}
