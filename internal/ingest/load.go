package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/olajoao/signal-desk/internal/model"
)

const (
	progressLogInterval   = 5 * time.Second
	burstProgressInterval = 100
)

// Source yields events to submit.
type Source interface {
	Generate() *model.Event
}

// Load drives an ingestor with generated events.
type Load struct {
	ingestor *Ingestor
	source   Source
}

// NewLoad creates a load driver.
func NewLoad(ingestor *Ingestor, source Source) *Load {
	return &Load{ingestor: ingestor, source: source}
}

// Burst submits n events back to back and returns how many were submitted.
func (l *Load) Burst(ctx context.Context, n int) (int, error) {
	slog.Info("Starting burst mode", "total_events", n)

	start := time.Now()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			slog.Warn("Burst mode cancelled", "sent", i, "requested", n)
			return i, err
		}
		if err := l.submitOne(ctx); err != nil {
			return i, fmt.Errorf("failed to submit event %d: %w", i+1, err)
		}
		if (i+1)%burstProgressInterval == 0 {
			slog.Info("Burst progress",
				"sent", i+1,
				"total", n,
				"rate_per_sec", fmt.Sprintf("%.2f", float64(i+1)/time.Since(start).Seconds()),
			)
		}
	}

	slog.Info("Burst mode completed",
		"total_sent", n,
		"duration_sec", fmt.Sprintf("%.2f", time.Since(start).Seconds()),
	)
	return n, nil
}

// Continuous submits events at rps until duration elapses or ctx is done.
func (l *Load) Continuous(ctx context.Context, rps float64, duration time.Duration) (int, error) {
	if rps <= 0 {
		return 0, fmt.Errorf("rps must be > 0")
	}
	slog.Info("Starting continuous mode", "target_rps", rps, "duration", duration)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / rps))
	defer ticker.Stop()

	start := time.Now()
	deadline := start.Add(duration)
	lastLog := start
	sent := 0
	for {
		select {
		case <-ctx.Done():
			slog.Warn("Continuous mode cancelled", "sent", sent, "duration_requested", duration)
			return sent, ctx.Err()
		case now := <-ticker.C:
			if now.After(deadline) {
				slog.Info("Duration reached",
					"total_sent", sent,
					"target_rps", rps,
					"actual_rps", fmt.Sprintf("%.2f", float64(sent)/time.Since(start).Seconds()),
				)
				return sent, nil
			}
			if err := l.submitOne(ctx); err != nil {
				return sent, fmt.Errorf("failed to submit event: %w", err)
			}
			sent++

			if time.Since(lastLog) >= progressLogInterval {
				slog.Info("Progress update",
					"sent", sent,
					"actual_rps", fmt.Sprintf("%.2f", float64(sent)/time.Since(start).Seconds()),
				)
				lastLog = time.Now()
			}
		}
	}
}

func (l *Load) submitOne(ctx context.Context) error {
	e := l.source.Generate()
	if err := l.ingestor.Submit(ctx, e); err != nil {
		slog.Error("Failed to submit event",
			"tenant_id", e.TenantID,
			"type", e.Type,
			"error", err,
		)
		return err
	}
	return nil
}
