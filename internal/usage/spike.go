package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultSpikeSampleRate is the share of event writes followed by a spike check.
	DefaultSpikeSampleRate = 0.01

	spikeFactor    = 10
	spikeMinEvents = 1000
	dailyKeyTTL    = 48 * time.Hour
	spikeAlertTTL  = 24 * time.Hour
)

// DailyKey returns the per-day event counter key of a tenant.
func DailyKey(tenantID string, t time.Time) string {
	return fmt.Sprintf("daily:%s:%s", tenantID, t.UTC().Format("2006-01-02"))
}

// SpikeAlertKey returns the key holding a tenant's open usage spike alert.
func SpikeAlertKey(tenantID string) string {
	return fmt.Sprintf("alert:%s:usage_spike", tenantID)
}

// SpikeAlert records a day whose event count far exceeds the month's daily average.
type SpikeAlert struct {
	TenantID     string    `json:"tenant_id"`
	TodayCount   int64     `json:"today_count"`
	DailyAverage float64   `json:"daily_average"`
	Threshold    float64   `json:"threshold"`
	Message      string    `json:"message"`
	DetectedAt   time.Time `json:"detected_at"`
}

// checkSpike compares today's count with the month's daily average and
// opens an alert when today is over spikeFactor times the average and over
// spikeMinEvents. An open alert is not replaced until it expires.
func (t *Tracker) checkSpike(ctx context.Context, tenantID string, at time.Time) {
	monthly, err := t.client.HGet(ctx, Key(tenantID, at), FieldEvents).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		slog.Warn("Failed to read monthly usage for spike check", "tenant_id", tenantID, "error", err)
		return
	}
	today, err := t.client.Get(ctx, DailyKey(tenantID, at)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		slog.Warn("Failed to read daily usage for spike check", "tenant_id", tenantID, "error", err)
		return
	}

	average := float64(monthly) / float64(at.UTC().Day())
	threshold := average * spikeFactor
	if float64(today) <= threshold || today <= spikeMinEvents {
		return
	}

	alert := SpikeAlert{
		TenantID:     tenantID,
		TodayCount:   today,
		DailyAverage: average,
		Threshold:    threshold,
		Message:      "Unusual activity detected: " + strconv.FormatInt(today, 10) + " events today vs " + strconv.FormatFloat(average, 'f', 0, 64) + " daily average",
		DetectedAt:   at.UTC(),
	}
	data, _ := json.Marshal(alert)

	opened, err := t.client.SetNX(ctx, SpikeAlertKey(tenantID), data, spikeAlertTTL).Result()
	if err != nil {
		slog.Warn("Failed to record usage spike alert", "tenant_id", tenantID, "error", err)
		return
	}
	if opened {
		slog.Warn("Usage spike detected",
			"tenant_id", tenantID,
			"today_count", today,
			"daily_average", average,
		)
	}
}

// GetSpikeAlert returns the tenant's open spike alert, or nil when there is none.
func GetSpikeAlert(ctx context.Context, client *redis.Client, tenantID string) (*SpikeAlert, error) {
	data, err := client.Get(ctx, SpikeAlertKey(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read spike alert: %w", err)
	}

	var alert SpikeAlert
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, fmt.Errorf("failed to unmarshal spike alert: %w", err)
	}
	return &alert, nil
}
