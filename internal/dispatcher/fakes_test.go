package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/olajoao/signal-desk/internal/database"
	"github.com/olajoao/signal-desk/internal/model"
)

// StatusUpdate is one recorded UpdateNotificationStatus call.
type StatusUpdate struct {
	ID     string
	Status model.NotificationStatus
	Error  string
	SentAt *time.Time
}

// FakeStore is a test fake for NotificationStore.
type FakeStore struct {
	mu            sync.Mutex
	Notifications map[string]*model.Notification
	GetErr        error
	UpdateErr     error
	Updates       []StatusUpdate
}

func NewFakeStore(ns ...*model.Notification) *FakeStore {
	s := &FakeStore{Notifications: make(map[string]*model.Notification)}
	for _, n := range ns {
		s.Notifications[n.ID] = n
	}
	return s
}

func (f *FakeStore) GetNotification(_ context.Context, id string) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	n, ok := f.Notifications[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *FakeStore) UpdateNotificationStatus(_ context.Context, id string, status model.NotificationStatus, lastError string, sentAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Updates = append(f.Updates, StatusUpdate{ID: id, Status: status, Error: lastError, SentAt: sentAt})
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	n, ok := f.Notifications[id]
	if !ok {
		return database.ErrNotFound
	}
	n.Status = status
	n.Error = lastError
	if sentAt != nil {
		n.SentAt = sentAt
	}
	return nil
}

// FakeSender is a test fake for strategy.NotificationSender.
type FakeSender struct {
	Channel model.Channel
	Err     error
	Calls   []string
}

func (f *FakeSender) Type() model.Channel { return f.Channel }

func (f *FakeSender) Send(_ context.Context, _ *model.Payload, _ string, notificationID string) error {
	f.Calls = append(f.Calls, notificationID)
	return f.Err
}

// CountingRecorder is a metrics.Recorder that counts calls.
type CountingRecorder struct {
	Sent, Skipped, Errors int
}

func (c *CountingRecorder) RecordReceived()               {}
func (c *CountingRecorder) RecordProcessed(time.Duration) {}
func (c *CountingRecorder) RecordPublished()              {}
func (c *CountingRecorder) RecordError()                  { c.Errors++ }
func (c *CountingRecorder) RecordSkipped()                { c.Skipped++ }
func (c *CountingRecorder) RecordRetried()                {}
func (c *CountingRecorder) RecordFailed()                 {}
func (c *CountingRecorder) RecordSent()                   { c.Sent++ }

var errSend = errors.New("Webhook failed: 500 Internal Server Error")
