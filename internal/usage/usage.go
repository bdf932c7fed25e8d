// Package usage keeps best-effort per-tenant monthly counters of processed
// events and created notifications in Redis, plus daily event counters that
// a sampled spike check compares against the monthly average.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	FieldEvents        = "events"
	FieldNotifications = "notifications"

	// DefaultBufferSize is the number of samples held before new ones are dropped.
	DefaultBufferSize = 1024

	// keyTTL keeps last month's counters readable for a while after rollover.
	keyTTL = 62 * 24 * time.Hour

	writeTimeout = 2 * time.Second
)

// Key returns the usage hash key for a tenant and month.
func Key(tenantID string, t time.Time) string {
	return fmt.Sprintf("usage:%s:%s", tenantID, t.UTC().Format("2006-01"))
}

type sample struct {
	tenantID string
	field    string
	n        int64
	at       time.Time
}

// Tracker buffers samples and writes them from a single goroutine. Calls
// never block the caller: when the buffer is full the sample is dropped.
type Tracker struct {
	client     *redis.Client
	samples    chan sample
	now        func() time.Time
	sampleRate float64
	draw       func() float64

	mu       sync.Mutex
	dropped  uint64
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSpikeSampleRate sets the share of event writes followed by a spike
// check. 0 disables the check.
func WithSpikeSampleRate(rate float64) Option {
	return func(t *Tracker) {
		t.sampleRate = rate
	}
}

// NewTracker creates a tracker writing through client.
func NewTracker(client *redis.Client, bufferSize int, opts ...Option) *Tracker {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	t := &Tracker{
		client:     client,
		samples:    make(chan sample, bufferSize),
		now:        time.Now,
		sampleRate: DefaultSpikeSampleRate,
		draw:       rand.Float64,
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start launches the writer goroutine.
func (t *Tracker) Start(ctx context.Context) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case s := <-t.samples:
				t.write(s)
			case <-ctx.Done():
				t.drain()
				return
			case <-t.stopCh:
				t.drain()
				return
			}
		}
	}()
}

// Stop flushes buffered samples and waits for the writer to exit.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	t.wg.Wait()
}

func (t *Tracker) drain() {
	for {
		select {
		case s := <-t.samples:
			t.write(s)
		default:
			return
		}
	}
}

// TrackEvent counts one processed event.
func (t *Tracker) TrackEvent(tenantID string) {
	t.enqueue(tenantID, FieldEvents, 1)
}

// TrackNotifications counts n created notifications.
func (t *Tracker) TrackNotifications(tenantID string, n int) {
	if n <= 0 {
		return
	}
	t.enqueue(tenantID, FieldNotifications, int64(n))
}

// Dropped returns how many samples were discarded on a full buffer.
func (t *Tracker) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

func (t *Tracker) enqueue(tenantID, field string, n int64) {
	select {
	case t.samples <- sample{tenantID: tenantID, field: field, n: n, at: t.now()}:
	default:
		t.mu.Lock()
		t.dropped++
		t.mu.Unlock()
		slog.Debug("Usage buffer full, dropping sample", "tenant_id", tenantID, "field", field)
	}
}

func (t *Tracker) write(s sample) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	key := Key(s.tenantID, s.at)
	pipe := t.client.TxPipeline()
	pipe.HIncrBy(ctx, key, s.field, s.n)
	pipe.Expire(ctx, key, keyTTL)
	if s.field == FieldEvents {
		daily := DailyKey(s.tenantID, s.at)
		pipe.IncrBy(ctx, daily, s.n)
		pipe.Expire(ctx, daily, dailyKeyTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("Failed to record usage",
			"tenant_id", s.tenantID,
			"field", s.field,
			"error", err,
		)
		return
	}

	if s.field == FieldEvents && t.sampleRate > 0 && t.draw() < t.sampleRate {
		t.checkSpike(ctx, s.tenantID, s.at)
	}
}

// Counts is one tenant's usage for a month.
type Counts struct {
	Events        int64 `json:"events"`
	Notifications int64 `json:"notifications"`
}

// Get reads the counters for tenantID in the month containing at.
func Get(ctx context.Context, client *redis.Client, tenantID string, at time.Time) (Counts, error) {
	vals, err := client.HGetAll(ctx, Key(tenantID, at)).Result()
	if err != nil {
		return Counts{}, fmt.Errorf("failed to read usage: %w", err)
	}

	var c Counts
	if v, ok := vals[FieldEvents]; ok {
		c.Events, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := vals[FieldNotifications]; ok {
		c.Notifications, _ = strconv.ParseInt(v, 10, 64)
	}
	return c, nil
}
