package cooldown

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type harness struct {
	tracker Tracker
	advance func(d time.Duration)
}

func newRedisHarness(t *testing.T) harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return harness{tracker: NewRedisTracker(client), advance: mr.FastForward}
}

func newMemoryHarness(t *testing.T) harness {
	var mu sync.Mutex
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	return harness{
		tracker: NewMemoryTracker(clock),
		advance: func(d time.Duration) {
			mu.Lock()
			now = now.Add(d)
			mu.Unlock()
		},
	}
}

var harnesses = map[string]func(t *testing.T) harness{
	"redis":  newRedisHarness,
	"memory": newMemoryHarness,
}

func TestTracker_SuppressionWindow(t *testing.T) {
	for name, newHarness := range harnesses {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)

			suppressed, err := h.tracker.IsSuppressed(ctx, "rule-1")
			if err != nil {
				t.Fatalf("IsSuppressed() error = %v", err)
			}
			if suppressed {
				t.Fatal("rule suppressed before firing")
			}

			if err := h.tracker.Suppress(ctx, "rule-1", 60); err != nil {
				t.Fatalf("Suppress() error = %v", err)
			}

			h.advance(59 * time.Second)
			if suppressed, _ := h.tracker.IsSuppressed(ctx, "rule-1"); !suppressed {
				t.Error("rule not suppressed at t0+59s")
			}
			if suppressed, _ := h.tracker.IsSuppressed(ctx, "rule-2"); suppressed {
				t.Error("unrelated rule suppressed")
			}

			h.advance(1 * time.Second)
			if suppressed, _ := h.tracker.IsSuppressed(ctx, "rule-1"); suppressed {
				t.Error("rule still suppressed at t0+60s")
			}
		})
	}
}

func TestTracker_ZeroCooldownIsNoop(t *testing.T) {
	for name, newHarness := range harnesses {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)

			if err := h.tracker.Suppress(ctx, "rule-1", 0); err != nil {
				t.Fatalf("Suppress() error = %v", err)
			}
			if suppressed, _ := h.tracker.IsSuppressed(ctx, "rule-1"); suppressed {
				t.Error("zero cooldown suppressed the rule")
			}

			for i := 0; i < 3; i++ {
				ok, err := h.tracker.Claim(ctx, "rule-1", 0)
				if err != nil || !ok {
					t.Fatalf("Claim(0) = %v, %v; want true, nil", ok, err)
				}
			}
		})
	}
}

func TestTracker_ClaimIsExclusive(t *testing.T) {
	for name, newHarness := range harnesses {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)

			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := h.tracker.Claim(ctx, "rule-1", 30)
					if err != nil {
						t.Errorf("Claim() error = %v", err)
						return
					}
					if ok {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()

			if got := wins.Load(); got != 1 {
				t.Errorf("concurrent claims won = %d, want 1", got)
			}

			h.advance(30 * time.Second)
			ok, _ := h.tracker.Claim(ctx, "rule-1", 30)
			if !ok {
				t.Error("claim after cooldown expiry lost")
			}
		})
	}
}

func TestRedisTracker_Key(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	tr := NewRedisTracker(client)
	if err := tr.Suppress(context.Background(), "rule-42", 120); err != nil {
		t.Fatalf("Suppress() error = %v", err)
	}
	if !mr.Exists("cooldown:rule-42") {
		t.Fatal("cooldown key not written")
	}
	if ttl := mr.TTL("cooldown:rule-42"); ttl != 120*time.Second {
		t.Errorf("TTL = %v, want 2m", ttl)
	}
}

func TestRedisTracker_Errors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	tr := NewRedisTracker(client)
	mr.Close()

	ctx := context.Background()
	if _, err := tr.IsSuppressed(ctx, "rule-1"); err == nil {
		t.Error("IsSuppressed() expected error")
	}
	if err := tr.Suppress(ctx, "rule-1", 10); err == nil {
		t.Error("Suppress() expected error")
	}
	if _, err := tr.Claim(ctx, "rule-1", 10); err == nil {
		t.Error("Claim() expected error")
	}
}
