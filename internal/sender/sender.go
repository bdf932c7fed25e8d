// Package sender holds the pieces shared by the channel senders: typed
// delivery errors, the JSON POST helper and payload formatting.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/olajoao/signal-desk/internal/model"
)

// DefaultHTTPTimeout bounds a single outbound delivery request.
const DefaultHTTPTimeout = 30 * time.Second

// maxDrainBytes caps how much of a response body is read before closing.
const maxDrainBytes = 64 << 10

// ConfigError reports an action config that is missing a required field.
// Retrying does not help, but it goes through the same bounded retries as
// any other failure.
type ConfigError struct {
	Channel model.Channel
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// StatusError reports a non-2xx reply from a delivery endpoint.
type StatusError struct {
	Target     string // e.g. "Webhook", "Slack webhook"
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: %d %s", e.Target, e.StatusCode, http.StatusText(e.StatusCode))
}

// DeliveryError pairs a failure with the text recorded on the notification.
type DeliveryError struct {
	Message string
	Err     error
}

func (e *DeliveryError) Error() string {
	return e.Err.Error()
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text recorded on a notification for err.
func UserMessage(err error) string {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// NewHTTPClient returns the client used by HTTP-based senders.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultHTTPTimeout}
}

// PostJSON marshals body and POSTs it to url. Any status outside 2xx is
// returned as a *StatusError naming target.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any, target string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", target, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", target, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Target: target, StatusCode: resp.StatusCode}
	}
	return nil
}

// DecodeConfig unmarshals an action config. A blank config decodes to the
// zero value.
func DecodeConfig(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("malformed action config: %w", err)
	}
	return nil
}

// PrettyMetadata renders event metadata as indented JSON.
func PrettyMetadata(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, model.NormalizeMetadata(raw), "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
