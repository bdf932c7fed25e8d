package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/olajoao/signal-desk/internal/events"
	"github.com/olajoao/signal-desk/internal/model"
	"github.com/segmentio/kafka-go"
)

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProducer_EnqueueEventJob(t *testing.T) {
	w := &FakeWriter{}
	p := NewProducerWithWriter(w, "events", JSONCodec{}, 5)

	err := p.EnqueueEventJob(context.Background(), "e1", "login", json.RawMessage(`{"ip":"1.1.1.1"}`), "2025-03-01T12:00:00Z", "org-1")
	if err != nil {
		t.Fatalf("EnqueueEventJob() error = %v", err)
	}
	if len(w.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.Messages))
	}

	msg := w.Messages[0]
	if string(msg.Key) != "org-1" {
		t.Errorf("Key = %s, want org-1", msg.Key)
	}
	if got := headerValue(msg, "content-type"); got != ContentTypeJSON {
		t.Errorf("content-type = %q", got)
	}
	if got := headerValue(msg, "kind"); got != KindEvent {
		t.Errorf("kind header = %q", got)
	}

	env, err := JSONCodec{}.Decode(msg.Value)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if env.Attempt != 1 || env.MaxAttempts != 5 {
		t.Errorf("attempts = %d/%d, want 1/5", env.Attempt, env.MaxAttempts)
	}
	var job events.EventJob
	if err := env.Decode(&job); err != nil {
		t.Fatalf("Decode job error = %v", err)
	}
	if job.EventID != "e1" || job.TenantID != "org-1" || string(job.Metadata) != `{"ip":"1.1.1.1"}` {
		t.Errorf("unexpected job: %+v", job)
	}
}

func TestProducer_EnqueueEventJobRejectsInvalid(t *testing.T) {
	w := &FakeWriter{}
	p := NewProducerWithWriter(w, "events", JSONCodec{}, 5)

	if err := p.EnqueueEventJob(context.Background(), "", "login", nil, "2025-03-01T12:00:00Z", "org-1"); err == nil {
		t.Error("expected error for missing event id")
	}
	if len(w.Messages) != 0 {
		t.Errorf("invalid job was written")
	}
}

func TestProducer_EnqueueDeliveries(t *testing.T) {
	w := &FakeWriter{}
	p := NewProducerWithWriter(w, "notifications", ProtoCodec{}, 3)

	jobs := []events.DeliveryJob{
		{NotificationID: "n1", TenantID: "org-1", Channel: model.ChannelWebhook},
		{NotificationID: "n2", TenantID: "org-1", Channel: model.ChannelInApp},
	}
	if err := p.EnqueueDeliveries(context.Background(), jobs); err != nil {
		t.Fatalf("EnqueueDeliveries() error = %v", err)
	}
	if len(w.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(w.Messages))
	}

	env, err := codecForMessage(&w.Messages[1]).Decode(w.Messages[1].Value)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	var job events.DeliveryJob
	if err := env.Decode(&job); err != nil {
		t.Fatalf("Decode job error = %v", err)
	}
	if env.Kind != KindNotification || env.MaxAttempts != 3 || job.NotificationID != "n2" {
		t.Errorf("unexpected envelope %+v job %+v", env, job)
	}

	if err := p.EnqueueDeliveries(context.Background(), nil); err != nil {
		t.Errorf("empty batch error = %v", err)
	}
}

func TestProducer_WriteError(t *testing.T) {
	w := &FakeWriter{Err: errors.New("leader not available")}
	p := NewProducerWithWriter(w, "notifications", JSONCodec{}, 3)

	err := p.EnqueueDeliveries(context.Background(), []events.DeliveryJob{{NotificationID: "n1", TenantID: "org-1", Channel: model.ChannelEmail}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestConsumer_FetchAndCommit(t *testing.T) {
	w := &FakeWriter{}
	p := NewProducerWithWriter(w, "events", ProtoCodec{}, 5)
	_ = p.EnqueueEventJob(context.Background(), "e1", "login", nil, "2025-03-01T12:00:00Z", "org-1")

	r := NewFakeReader(w.Messages[0])
	c := NewConsumerWithReader(r, "events")

	env, msg, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if env.Kind != KindEvent {
		t.Errorf("Kind = %s", env.Kind)
	}
	if err := c.Commit(context.Background(), msg); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if r.Commits() != 1 {
		t.Errorf("commits = %d, want 1", r.Commits())
	}
}
