// Package events defines the job payloads carried on the events and
// notifications topics.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/olajoao/signal-desk/internal/model"
)

// EventJob asks the event processor to evaluate one durably recorded event.
type EventJob struct {
	EventID   string          `json:"eventId"`
	Type      string          `json:"type"`
	Metadata  json.RawMessage `json:"metadata"`
	Timestamp string          `json:"timestamp"` // RFC 3339
	TenantID  string          `json:"tenantId"`
}

// Validate checks required fields.
func (j *EventJob) Validate() error {
	if j.EventID == "" {
		return fmt.Errorf("eventId is required")
	}
	if j.TenantID == "" {
		return fmt.Errorf("tenantId is required")
	}
	if j.Type == "" {
		return fmt.Errorf("type is required")
	}
	if _, err := j.Time(); err != nil {
		return err
	}
	return nil
}

// Time parses the job timestamp.
func (j *EventJob) Time() (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, j.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", j.Timestamp, err)
	}
	return ts, nil
}

// DeliveryJob asks the dispatcher to deliver one notification.
type DeliveryJob struct {
	NotificationID string        `json:"notificationId"`
	RuleID         string        `json:"ruleId"`
	EventID        string        `json:"eventId"`
	Channel        model.Channel `json:"channel"`
	Payload        model.Payload `json:"payload"`
	TenantID       string        `json:"tenantId"`
}

// Validate checks required fields.
func (j *DeliveryJob) Validate() error {
	if j.NotificationID == "" {
		return fmt.Errorf("notificationId is required")
	}
	if j.TenantID == "" {
		return fmt.Errorf("tenantId is required")
	}
	if j.Channel == "" {
		return fmt.Errorf("channel is required")
	}
	return nil
}

// NewDeliveryJob builds the delivery job of a persisted notification.
func NewDeliveryJob(n *model.Notification) DeliveryJob {
	return DeliveryJob{
		NotificationID: n.ID,
		RuleID:         n.RuleID,
		EventID:        n.EventID,
		Channel:        n.Channel,
		Payload:        n.Payload,
		TenantID:       n.TenantID,
	}
}
