package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestPolicyBackoff(t *testing.T) {
	p := Policy{InitialBackoff: 2 * time.Second, MaxBackoff: 10 * time.Second, BackoffFactor: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPolicyBackoffJitter(t *testing.T) {
	p := Policy{InitialBackoff: time.Second, BackoffFactor: 2, Jitter: true}
	for i := 0; i < 100; i++ {
		got := p.Backoff(2)
		if got < 1500*time.Millisecond || got > 2500*time.Millisecond {
			t.Fatalf("Backoff(2) = %v, outside ±25%% of 2s", got)
		}
	}
}

func TestDefaultPolicies(t *testing.T) {
	if p := EventPolicy(); p.MaxAttempts != 5 || p.InitialBackoff != 2*time.Second {
		t.Errorf("EventPolicy() = %+v", p)
	}
	if p := NotificationPolicy(); p.MaxAttempts != 3 || p.InitialBackoff != 2*time.Second {
		t.Errorf("NotificationPolicy() = %+v", p)
	}
	p := NotificationPolicy()
	if p.Exhausted(2) || !p.Exhausted(3) {
		t.Error("NotificationPolicy should be exhausted at attempt 3")
	}
}

func TestDo(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, BackoffFactor: 1}

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), p, "test", func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("gives up after budget", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), p, "test", func() error {
			calls++
			return errors.New("always")
		})
		if err == nil {
			t.Fatal("Do() expected error")
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		slow := Policy{MaxAttempts: 3, InitialBackoff: time.Hour, BackoffFactor: 1}
		err := Do(ctx, slow, "test", func() error { return errors.New("fail") })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() error = %v, want context.Canceled", err)
		}
	})

	for _, n := range []int{0, -1} {
		t.Run(fmt.Sprintf("max attempts %d runs once", n), func(t *testing.T) {
			calls := 0
			cause := errors.New("down")
			err := Do(context.Background(), Policy{MaxAttempts: n}, "test", func() error {
				calls++
				return cause
			})
			if !errors.Is(err, cause) {
				t.Errorf("Do() error = %v, want %v", err, cause)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
		})
	}
}
