package slack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/olajoao/signal-desk/internal/model"
	"github.com/olajoao/signal-desk/internal/sender"
)

func testPayload(config string) *model.Payload {
	return &model.Payload{
		RuleName:      "login burst",
		EventType:     "login_failed",
		EventMetadata: json.RawMessage(`{"ip":"10.0.0.1"}`),
		Threshold:     5,
		WindowSeconds: 300,
		Count:         7,
		TriggeredAt:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		ActionConfig:  json.RawMessage(config),
	}
}

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage(testPayload(`{}`))

	if len(msg.Blocks) != 4 {
		t.Fatalf("blocks = %d, want 4", len(msg.Blocks))
	}
	if msg.Blocks[0].Type != "header" || msg.Blocks[0].Text.Text != "Alert: login burst" {
		t.Errorf("header = %+v", msg.Blocks[0])
	}
	fields := msg.Blocks[1].Fields
	if len(fields) != 4 {
		t.Fatalf("fields = %d, want 4", len(fields))
	}
	if fields[1].Text != "*Count*\n7 / 5" || fields[2].Text != "*Window*\n300s" {
		t.Errorf("unexpected fields: %+v", fields)
	}
	if fields[3].Text != "*Time*\n2025-03-01T12:00:00.000Z" {
		t.Errorf("time field = %q", fields[3].Text)
	}
	if !strings.Contains(msg.Blocks[2].Text.Text, `"ip": "10.0.0.1"`) {
		t.Errorf("metadata block = %q", msg.Blocks[2].Text.Text)
	}
	if msg.Blocks[3].Elements[0].Text != "Sent by *SignalDesk*" {
		t.Errorf("context = %+v", msg.Blocks[3])
	}
}

func TestSender_Send(t *testing.T) {
	var got Message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	s := NewSender(server.Client())
	if err := s.Send(context.Background(), testPayload(`{"webhookUrl":"`+server.URL+`"}`), "org-1", "n1"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(got.Blocks) != 4 {
		t.Errorf("server received %d blocks", len(got.Blocks))
	}
}

func TestSender_SendErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer server.Close()
	s := NewSender(server.Client())

	err := s.Send(context.Background(), testPayload(`{}`), "org-1", "n1")
	var cfgErr *sender.ConfigError
	if !errors.As(err, &cfgErr) || err.Error() != "Slack webhook URL not configured" {
		t.Errorf("missing url error = %v", err)
	}

	err = s.Send(context.Background(), testPayload(`{"webhookUrl":"`+server.URL+`"}`), "org-1", "n1")
	if err == nil || err.Error() != "Slack webhook failed: 403 Forbidden" {
		t.Errorf("status error = %v", err)
	}
}
