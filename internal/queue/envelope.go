// Package queue carries event and delivery jobs over Kafka with bounded,
// backed-off redelivery.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job kinds.
const (
	KindEvent        = "event"
	KindNotification = "notification"
)

// Envelope wraps a job payload with its delivery bookkeeping.
type Envelope struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Key         string          `json:"key,omitempty"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"maxAttempts"`
	NotBefore   time.Time       `json:"notBefore"`
	Data        json.RawMessage `json:"data"`
}

// NewEnvelope creates the first-attempt envelope of a job.
func NewEnvelope(kind, key string, maxAttempts int, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s job: %w", kind, err)
	}
	return &Envelope{
		ID:          uuid.NewString(),
		Kind:        kind,
		Key:         key,
		Attempt:     1,
		MaxAttempts: maxAttempts,
		Data:        raw,
	}, nil
}

// Decode unmarshals the job payload into v.
func (e *Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s job %s: %w", e.Kind, e.ID, err)
	}
	return nil
}

// Next returns the envelope of the following attempt, due at notBefore.
func (e *Envelope) Next(notBefore time.Time) *Envelope {
	next := *e
	next.Attempt++
	next.NotBefore = notBefore.UTC()
	return &next
}

// Attempt describes where a job stands in its retry budget.
type Attempt struct {
	Number int // 1-based
	Max    int
}

// IsFinal reports whether no further attempt will be made after this one.
func (a Attempt) IsFinal() bool {
	return a.Number >= a.Max
}

// AttemptInfo returns the envelope's attempt position.
func (e *Envelope) AttemptInfo() Attempt {
	return Attempt{Number: e.Attempt, Max: e.MaxAttempts}
}
