package model

import (
	"encoding/json"
	"time"
)

// NotificationStatus represents the delivery state of a notification.
type NotificationStatus string

const (
	StatusPending  NotificationStatus = "pending"
	StatusSent     NotificationStatus = "sent"
	StatusFailed   NotificationStatus = "failed"
	StatusRetrying NotificationStatus = "retrying"
)

// String returns the string representation of the status.
func (s NotificationStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further delivery attempt is expected.
func (s NotificationStatus) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Payload is the wire-stable body handed to every channel sender.
type Payload struct {
	RuleName      string          `json:"ruleName"`
	EventType     string          `json:"eventType"`
	EventMetadata json.RawMessage `json:"eventMetadata"`
	Threshold     int64           `json:"threshold"`
	WindowSeconds int64           `json:"windowSeconds"`
	Count         int64           `json:"count"`
	TriggeredAt   time.Time       `json:"triggeredAt"`
	ActionConfig  json.RawMessage `json:"actionConfig"`
}

// Notification is the durable record of one rule action firing for one event.
type Notification struct {
	ID          string             `json:"id"`
	RuleID      string             `json:"ruleId"`
	EventID     string             `json:"eventId"`
	TenantID    string             `json:"tenantId"`
	Channel     Channel            `json:"channel"`
	ActionIndex int                `json:"actionIndex"`
	Payload     Payload            `json:"payload"`
	Status      NotificationStatus `json:"status"`
	SentAt      *time.Time         `json:"sentAt,omitempty"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
}
