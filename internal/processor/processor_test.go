package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/olajoao/signal-desk/internal/cooldown"
	"github.com/olajoao/signal-desk/internal/evaluator"
	"github.com/olajoao/signal-desk/internal/events"
	"github.com/olajoao/signal-desk/internal/model"
	"github.com/olajoao/signal-desk/internal/queue"
	"github.com/olajoao/signal-desk/internal/window"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	proc     *Processor
	store    *FakeStore
	window   *window.MemoryStore
	cooldown *cooldown.MemoryTracker
	enqueuer *FakeEnqueuer
	usage    *FakeUsage
	metrics  *CountingRecorder
	now      time.Time
}

func newHarness(t *testing.T, rules ...model.Rule) *harness {
	t.Helper()
	h := &harness{now: baseTime}
	clock := func() time.Time { return h.now }

	h.store = NewFakeStore(rules...)
	h.window = window.NewMemoryStore(window.PruneMaxWindow, clock)
	h.cooldown = cooldown.NewMemoryTracker(clock)
	h.enqueuer = &FakeEnqueuer{}
	h.usage = NewFakeUsage()
	h.metrics = &CountingRecorder{}

	ev := evaluator.New(h.window, h.cooldown, evaluator.WithClock(clock))
	h.proc = NewProcessor(h.store, h.window, ev, h.enqueuer, WithMetrics(h.metrics), WithUsage(h.usage))
	return h
}

// submit registers the event and returns its job, timestamped at the
// current harness time.
func (h *harness) submit(eventID string) events.EventJob {
	h.store.AddEvent(eventID)
	return events.EventJob{
		EventID:   eventID,
		Type:      "payment_failed",
		Metadata:  json.RawMessage(`{"amount":42}`),
		Timestamp: h.now.Format(time.RFC3339Nano),
		TenantID:  "org-1",
	}
}

func (h *harness) windowCount(t *testing.T) int64 {
	t.Helper()
	n, err := h.window.CountInWindow(context.Background(), "org-1", "payment_failed", 60)
	if err != nil {
		t.Fatalf("CountInWindow() error = %v", err)
	}
	return n
}

func paymentRule(threshold int64, actions ...model.Action) model.Rule {
	if len(actions) == 0 {
		actions = []model.Action{{Channel: model.ChannelWebhook, Config: json.RawMessage(`{"url":"https://example.com/hook"}`)}}
	}
	return model.Rule{
		ID:              "rule-1",
		TenantID:        "org-1",
		Name:            "payment failures",
		EventType:       "payment_failed",
		Condition:       model.CountGTE,
		Threshold:       threshold,
		WindowSeconds:   60,
		CooldownSeconds: 60,
		Actions:         actions,
		Enabled:         true,
	}
}

func TestProcess_NoRuleFires(t *testing.T) {
	h := newHarness(t, paymentRule(3))

	if err := h.proc.Process(context.Background(), h.submit("e1")); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if !h.store.Processed["e1"] {
		t.Error("event should be marked processed")
	}
	if h.store.MarkCalls != 1 || h.store.CreateCalls != 0 {
		t.Errorf("mark calls = %d, create calls = %d", h.store.MarkCalls, h.store.CreateCalls)
	}
	if len(h.enqueuer.Jobs) != 0 {
		t.Errorf("enqueued %d jobs, want 0", len(h.enqueuer.Jobs))
	}
	if h.windowCount(t) != 1 {
		t.Errorf("window count = %d, want 1", h.windowCount(t))
	}
	if h.usage.Events["org-1"] != 1 || h.usage.Notifications["org-1"] != 0 {
		t.Errorf("usage = %v / %v", h.usage.Events, h.usage.Notifications)
	}
}

func TestProcess_RuleFires(t *testing.T) {
	h := newHarness(t, paymentRule(2,
		model.Action{Channel: model.ChannelWebhook, Config: json.RawMessage(`{"url":"https://example.com/hook"}`)},
		model.Action{Channel: model.ChannelInApp},
	))

	if err := h.proc.Process(context.Background(), h.submit("e1")); err != nil {
		t.Fatalf("Process(e1) error = %v", err)
	}
	if err := h.proc.Process(context.Background(), h.submit("e2")); err != nil {
		t.Fatalf("Process(e2) error = %v", err)
	}

	if len(h.store.Notifications) != 2 {
		t.Fatalf("notifications = %d, want 2", len(h.store.Notifications))
	}
	jobs := h.enqueuer.Jobs
	if len(jobs) != 2 {
		t.Fatalf("enqueued = %d, want 2", len(jobs))
	}
	if jobs[0].Channel != model.ChannelWebhook || jobs[1].Channel != model.ChannelInApp {
		t.Errorf("channels = %s, %s", jobs[0].Channel, jobs[1].Channel)
	}
	for _, j := range jobs {
		if j.NotificationID == "" || j.EventID != "e2" || j.TenantID != "org-1" || j.Payload.Count != 2 {
			t.Errorf("unexpected job: %+v", j)
		}
	}
	if h.store.Notifications[0].Status != model.StatusPending {
		t.Errorf("status = %s, want pending", h.store.Notifications[0].Status)
	}
	if h.metrics.Published != 2 {
		t.Errorf("published = %d, want 2", h.metrics.Published)
	}
	if h.usage.Notifications["org-1"] != 2 || h.usage.Events["org-1"] != 2 {
		t.Errorf("usage = %v / %v", h.usage.Events, h.usage.Notifications)
	}
}

func TestProcess_IdempotentReplay(t *testing.T) {
	h := newHarness(t, paymentRule(1))
	job := h.submit("e1")

	if err := h.proc.Process(context.Background(), job); err != nil {
		t.Fatalf("first Process() error = %v", err)
	}
	if err := h.proc.Process(context.Background(), job); err != nil {
		t.Fatalf("replayed Process() error = %v", err)
	}

	if h.windowCount(t) != 1 {
		t.Errorf("window count = %d, want 1", h.windowCount(t))
	}
	if len(h.store.Notifications) != 1 || len(h.enqueuer.Jobs) != 1 {
		t.Errorf("notifications = %d, jobs = %d, want 1 each", len(h.store.Notifications), len(h.enqueuer.Jobs))
	}
	if h.metrics.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", h.metrics.Skipped)
	}
}

func TestProcess_ReplayAfterCrashBeforeMark(t *testing.T) {
	h := newHarness(t, paymentRule(1))
	h.store.Rules[0].CooldownSeconds = 0
	job := h.submit("e1")

	if err := h.proc.Process(context.Background(), job); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	// Simulate a redelivery that raced the commit: the row exists but the
	// event reads as unprocessed.
	h.store.Processed["e1"] = false
	h.enqueuer.Drain()

	if err := h.proc.Process(context.Background(), job); err != nil {
		t.Fatalf("replayed Process() error = %v", err)
	}
	if len(h.store.Notifications) != 1 {
		t.Errorf("notifications = %d, want 1", len(h.store.Notifications))
	}
	if len(h.enqueuer.Jobs) != 0 {
		t.Errorf("replay enqueued %d jobs, want 0", len(h.enqueuer.Jobs))
	}
	if h.windowCount(t) != 1 {
		t.Errorf("window count = %d, want 1", h.windowCount(t))
	}
}

func TestProcess_RollbackOnPersistFailure(t *testing.T) {
	h := newHarness(t, paymentRule(1))
	h.store.CreateErr = errStore
	job := h.submit("e1")

	err := h.proc.Process(context.Background(), job)
	if !errors.Is(err, errStore) {
		t.Fatalf("Process() error = %v, want %v", err, errStore)
	}
	if h.windowCount(t) != 0 {
		t.Errorf("window count after rollback = %d, want 0", h.windowCount(t))
	}
	if h.store.Processed["e1"] {
		t.Error("event must stay unprocessed")
	}
	if len(h.enqueuer.Jobs) != 0 {
		t.Error("nothing should be enqueued")
	}
	if h.usage.Events["org-1"] != 0 {
		t.Error("usage should not be tracked for a failed attempt")
	}

	// The retry re-records the event; the cooldown claimed on the failed
	// attempt still suppresses the rule.
	h.store.CreateErr = nil
	if err := h.proc.Process(context.Background(), job); err != nil {
		t.Fatalf("retried Process() error = %v", err)
	}
	if h.windowCount(t) != 1 {
		t.Errorf("window count after retry = %d, want 1", h.windowCount(t))
	}
	if !h.store.Processed["e1"] || len(h.store.Notifications) != 0 {
		t.Errorf("processed = %v, notifications = %d", h.store.Processed["e1"], len(h.store.Notifications))
	}
}

func TestProcess_RollbackOnEarlierFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*FakeStore)
	}{
		{"rules load fails", func(s *FakeStore) { s.RulesErr = errStore }},
		{"mark processed fails", func(s *FakeStore) { s.MarkErr = errStore }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, paymentRule(5))
			tt.setup(h.store)

			if err := h.proc.Process(context.Background(), h.submit("e1")); !errors.Is(err, errStore) {
				t.Fatalf("Process() error = %v, want %v", err, errStore)
			}
			if h.windowCount(t) != 0 {
				t.Errorf("window count = %d, want 0", h.windowCount(t))
			}
		})
	}
}

func TestProcess_Skips(t *testing.T) {
	h := newHarness(t, paymentRule(1))

	missing := events.EventJob{
		EventID:   "gone",
		Type:      "payment_failed",
		Timestamp: baseTime.Format(time.RFC3339),
		TenantID:  "org-1",
	}
	if err := h.proc.Process(context.Background(), missing); err != nil {
		t.Errorf("Process(missing) error = %v", err)
	}

	invalid := h.submit("e1")
	invalid.Timestamp = "yesterday"
	if err := h.proc.Process(context.Background(), invalid); err != nil {
		t.Errorf("Process(invalid) error = %v", err)
	}

	if h.windowCount(t) != 0 {
		t.Errorf("window count = %d, want 0", h.windowCount(t))
	}
	if h.metrics.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", h.metrics.Skipped)
	}
}

func TestProcess_StateLoadError(t *testing.T) {
	h := newHarness(t, paymentRule(1))
	h.store.GetStateErr = errStore

	if err := h.proc.Process(context.Background(), h.submit("e1")); !errors.Is(err, errStore) {
		t.Fatalf("Process() error = %v, want %v", err, errStore)
	}
	if h.windowCount(t) != 0 {
		t.Error("window should be untouched")
	}
}

func TestProcess_EnqueueFailureKeepsCommit(t *testing.T) {
	h := newHarness(t, paymentRule(1))
	h.enqueuer.Err = errors.New("kafka unavailable")

	if err := h.proc.Process(context.Background(), h.submit("e1")); err != nil {
		t.Fatalf("Process() error = %v, want nil", err)
	}
	if !h.store.Processed["e1"] || len(h.store.Notifications) != 1 {
		t.Error("notification and processed flag should be committed")
	}
	if h.store.Notifications[0].Status != model.StatusPending {
		t.Errorf("status = %s, want pending", h.store.Notifications[0].Status)
	}
	if h.windowCount(t) != 1 {
		t.Error("window entry should be kept")
	}
	if h.metrics.Error != 1 || h.metrics.Published != 0 {
		t.Errorf("errors = %d, published = %d", h.metrics.Error, h.metrics.Published)
	}
}

func TestHandleJob(t *testing.T) {
	h := newHarness(t, paymentRule(1))

	env, err := queue.NewEnvelope(queue.KindEvent, "org-1", 5, h.submit("e1"))
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	if err := h.proc.HandleJob(context.Background(), env, env.AttemptInfo()); err != nil {
		t.Fatalf("HandleJob() error = %v", err)
	}
	if len(h.enqueuer.Jobs) != 1 {
		t.Errorf("enqueued = %d, want 1", len(h.enqueuer.Jobs))
	}

	bad := &queue.Envelope{ID: "bad", Kind: queue.KindEvent, Data: json.RawMessage(`[]`)}
	if err := h.proc.HandleJob(context.Background(), bad, bad.AttemptInfo()); err != nil {
		t.Errorf("HandleJob(bad) error = %v", err)
	}
}

func TestHandleJob_FinalAttemptMarksProcessed(t *testing.T) {
	tests := []struct {
		name          string
		attempt       queue.Attempt
		wantProcessed bool
	}{
		{"retry remains", queue.Attempt{Number: 4, Max: 5}, false},
		{"final attempt", queue.Attempt{Number: 5, Max: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, paymentRule(1))
			h.store.CreateErr = errStore

			env, err := queue.NewEnvelope(queue.KindEvent, "org-1", 5, h.submit("e1"))
			if err != nil {
				t.Fatalf("NewEnvelope() error = %v", err)
			}
			err = h.proc.HandleJob(context.Background(), env, tt.attempt)
			if !errors.Is(err, errStore) {
				t.Fatalf("HandleJob() error = %v, want %v", err, errStore)
			}

			if got := h.store.Processed["e1"]; got != tt.wantProcessed {
				t.Errorf("processed = %v, want %v", got, tt.wantProcessed)
			}
			if h.windowCount(t) != 0 {
				t.Errorf("window count = %d, want 0 after rollback", h.windowCount(t))
			}
			if len(h.store.Notifications) != 0 || len(h.enqueuer.Jobs) != 0 {
				t.Errorf("notifications = %d, jobs = %d, want none", len(h.store.Notifications), len(h.enqueuer.Jobs))
			}
		})
	}
}

func TestHandleJob_FinalAttemptMarkFailureStillReturnsCause(t *testing.T) {
	h := newHarness(t, paymentRule(1))
	h.store.CreateErr = errStore
	h.store.MarkErr = errors.New("db gone")

	env, _ := queue.NewEnvelope(queue.KindEvent, "org-1", 5, h.submit("e1"))
	err := h.proc.HandleJob(context.Background(), env, queue.Attempt{Number: 5, Max: 5})
	if !errors.Is(err, errStore) {
		t.Fatalf("HandleJob() error = %v, want %v", err, errStore)
	}
	if h.store.MarkCalls != 1 {
		t.Errorf("mark calls = %d, want 1", h.store.MarkCalls)
	}
	if h.metrics.Error == 0 {
		t.Error("a failed close-out should be counted")
	}
}
