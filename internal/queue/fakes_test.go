package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"
)

// FakeWriter records written messages.
type FakeWriter struct {
	mu       sync.Mutex
	Messages []kafka.Message
	Err      error
	Closed   bool
}

func (w *FakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *FakeWriter) Close() error {
	w.Closed = true
	return nil
}

// FakeReader serves queued messages and records commits.
type FakeReader struct {
	msgs chan kafka.Message

	mu      sync.Mutex
	commits []kafka.Message
}

func NewFakeReader(msgs ...kafka.Message) *FakeReader {
	r := &FakeReader{msgs: make(chan kafka.Message, 100)}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *FakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *FakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, msgs...)
	return nil
}

func (r *FakeReader) Close() error { return nil }

func (r *FakeReader) Commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commits)
}

// FakeTopic is an in-memory topic: republished envelopes are fetched again.
type FakeTopic struct {
	ch     chan *Envelope
	offset int64

	mu          sync.Mutex
	commits     int
	committed   []int64
	republished []*Envelope
	FailPublish bool
}

func NewFakeTopic(envs ...*Envelope) *FakeTopic {
	t := &FakeTopic{ch: make(chan *Envelope, 100)}
	for _, e := range envs {
		t.ch <- e
	}
	return t
}

func (t *FakeTopic) Fetch(ctx context.Context) (*Envelope, *kafka.Message, error) {
	select {
	case env := <-t.ch:
		t.mu.Lock()
		t.offset++
		off := t.offset
		t.mu.Unlock()
		return env, &kafka.Message{Offset: off}, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (t *FakeTopic) Commit(_ context.Context, msg *kafka.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commits++
	t.committed = append(t.committed, msg.Offset)
	return nil
}

func (t *FakeTopic) Committed() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int64(nil), t.committed...)
}

func (t *FakeTopic) Republish(_ context.Context, env *Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.FailPublish {
		return errors.New("broker unavailable")
	}
	t.republished = append(t.republished, env)
	t.ch <- env
	return nil
}

func (t *FakeTopic) Commits() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.commits
}

func (t *FakeTopic) Republished() []*Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Envelope(nil), t.republished...)
}
