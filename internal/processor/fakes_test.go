package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/olajoao/signal-desk/internal/database"
	"github.com/olajoao/signal-desk/internal/events"
	"github.com/olajoao/signal-desk/internal/model"
)

// FakeStore is an in-memory EventStore that also serves the dispatcher's
// NotificationStore, so a test can drive the whole pipeline.
type FakeStore struct {
	mu            sync.Mutex
	Processed     map[string]bool // event id -> processed; absent means deleted
	Rules         []model.Rule
	Notifications []*model.Notification

	GetStateErr error
	RulesErr    error
	CreateErr   error
	MarkErr     error

	MarkCalls   int
	CreateCalls int
	nextID      int
}

func NewFakeStore(rules ...model.Rule) *FakeStore {
	return &FakeStore{Processed: make(map[string]bool), Rules: rules}
}

// AddEvent registers an unprocessed event.
func (f *FakeStore) AddEvent(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Processed[id] = false
}

func (f *FakeStore) GetEventState(_ context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetStateErr != nil {
		return false, f.GetStateErr
	}
	processed, ok := f.Processed[eventID]
	if !ok {
		return false, database.ErrNotFound
	}
	return processed, nil
}

func (f *FakeStore) ListEnabledRules(_ context.Context, tenantID, eventType string) ([]model.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RulesErr != nil {
		return nil, f.RulesErr
	}
	var out []model.Rule
	for _, r := range f.Rules {
		if r.TenantID == tenantID && r.EventType == eventType && r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *FakeStore) MarkEventProcessed(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MarkCalls++
	if f.MarkErr != nil {
		return f.MarkErr
	}
	if _, ok := f.Processed[eventID]; !ok {
		return database.ErrNotFound
	}
	f.Processed[eventID] = true
	return nil
}

func (f *FakeStore) CreateNotificationsAndMarkProcessed(_ context.Context, eventID string, ns []model.Notification) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	var created []model.Notification
	for _, n := range ns {
		if f.findLocked(n.RuleID, n.EventID, n.ActionIndex) != nil {
			continue
		}
		f.nextID++
		n.ID = fmt.Sprintf("n-%d", f.nextID)
		n.CreatedAt = time.Now()
		stored := n
		f.Notifications = append(f.Notifications, &stored)
		created = append(created, n)
	}
	f.Processed[eventID] = true
	return created, nil
}

func (f *FakeStore) findLocked(ruleID, eventID string, idx int) *model.Notification {
	for _, n := range f.Notifications {
		if n.RuleID == ruleID && n.EventID == eventID && n.ActionIndex == idx {
			return n
		}
	}
	return nil
}

func (f *FakeStore) GetNotification(_ context.Context, id string) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.Notifications {
		if n.ID == id {
			cp := *n
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *FakeStore) UpdateNotificationStatus(_ context.Context, id string, status model.NotificationStatus, lastError string, sentAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.Notifications {
		if n.ID == id {
			n.Status = status
			n.Error = lastError
			if sentAt != nil {
				n.SentAt = sentAt
			}
			return nil
		}
	}
	return database.ErrNotFound
}

// FakeEnqueuer records enqueued delivery jobs.
type FakeEnqueuer struct {
	mu   sync.Mutex
	Jobs []events.DeliveryJob
	Err  error
}

func (f *FakeEnqueuer) EnqueueDeliveries(_ context.Context, jobs []events.DeliveryJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Jobs = append(f.Jobs, jobs...)
	return nil
}

// Drain returns and clears the recorded jobs.
func (f *FakeEnqueuer) Drain() []events.DeliveryJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	jobs := f.Jobs
	f.Jobs = nil
	return jobs
}

// FakeUsage counts usage samples per tenant.
type FakeUsage struct {
	mu            sync.Mutex
	Events        map[string]int
	Notifications map[string]int
}

func NewFakeUsage() *FakeUsage {
	return &FakeUsage{Events: make(map[string]int), Notifications: make(map[string]int)}
}

func (f *FakeUsage) TrackEvent(tenantID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events[tenantID]++
}

func (f *FakeUsage) TrackNotifications(tenantID string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Notifications[tenantID] += n
}

// CountingRecorder is a metrics.Recorder that counts calls.
type CountingRecorder struct {
	mu                        sync.Mutex
	Published, Skipped, Error int
}

func (c *CountingRecorder) RecordReceived()               {}
func (c *CountingRecorder) RecordProcessed(time.Duration) {}
func (c *CountingRecorder) RecordRetried()                {}
func (c *CountingRecorder) RecordFailed()                 {}
func (c *CountingRecorder) RecordSent()                   {}

func (c *CountingRecorder) RecordPublished() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Published++
}

func (c *CountingRecorder) RecordSkipped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Skipped++
}

func (c *CountingRecorder) RecordError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Error++
}

var errStore = errors.New("connection reset by peer")
