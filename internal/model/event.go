// Package model defines the durable entities shared by the event processor
// and the notification dispatcher.
package model

import (
	"encoding/json"
	"time"
)

// Event is an immutable fact submitted by a tenant.
// Metadata is kept as the raw JSON object the tenant sent so key order and
// value types survive every hop untouched.
type Event struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenantId"`
	Type      string          `json:"type"`
	Metadata  json.RawMessage `json:"metadata"`
	Timestamp time.Time       `json:"timestamp"`
	Processed bool            `json:"processed"`
}

// EmptyMetadata is the canonical empty metadata object.
var EmptyMetadata = json.RawMessage(`{}`)

// NormalizeMetadata returns m, or an empty JSON object when m is blank or null.
func NormalizeMetadata(m json.RawMessage) json.RawMessage {
	if len(m) == 0 || string(m) == "null" {
		return EmptyMetadata
	}
	return m
}

// FormatTime renders an instant as UTC with millisecond precision, the form
// used in job payloads and rendered alerts.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
