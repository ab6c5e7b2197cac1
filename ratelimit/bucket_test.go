package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-integrations/core"
)

// testClock drives a limiter deterministically: sleeps advance the clock
// instead of blocking.
type testClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestLimiter(clock *testClock, rate, burst float64) *Limiter {
	return NewLimiter(LimiterConfig{
		Limits: func(core.IntegrationType) core.RateLimitConfig {
			return core.RateLimitConfig{TokensPerSecond: rate, MaxBurst: burst}
		},
		Now:   clock.Now,
		Sleep: clock.Sleep,
	})
}

func TestLimiter_BurstThenWait(t *testing.T) {
	clock := newTestClock()
	limiter := newTestLimiter(clock, 1, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := limiter.Acquire(ctx, core.IntegrationSlack); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("did not expect waits within burst capacity, got %v", clock.sleeps)
	}

	if err := limiter.Acquire(ctx, core.IntegrationSlack); err != nil {
		t.Fatalf("acquire past burst: %v", err)
	}
	if len(clock.sleeps) != 1 {
		t.Fatalf("expected one wait, got %d", len(clock.sleeps))
	}
	if clock.sleeps[0] != time.Second {
		t.Fatalf("expected 1s wait at 1 token/s, got %s", clock.sleeps[0])
	}
}

func TestLimiter_RefillRestoresTokens(t *testing.T) {
	clock := newTestClock()
	limiter := newTestLimiter(clock, 2, 4)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := limiter.Acquire(ctx, core.IntegrationGitHub); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}

	// Two tokens/s for three seconds refills past burst; only four fit.
	clock.Advance(3 * time.Second)
	for i := 0; i < 4; i++ {
		if err := limiter.Acquire(ctx, core.IntegrationGitHub); err != nil {
			t.Fatalf("refilled acquire %d: %v", i, err)
		}
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("did not expect waits after refill, got %v", clock.sleeps)
	}

	if err := limiter.Acquire(ctx, core.IntegrationGitHub); err != nil {
		t.Fatalf("acquire past refill: %v", err)
	}
	if len(clock.sleeps) != 1 {
		t.Fatalf("expected one wait after draining refill, got %d", len(clock.sleeps))
	}
}

func TestLimiter_PessimisticResetAfterWait(t *testing.T) {
	clock := newTestClock()
	limiter := newTestLimiter(clock, 1, 1)
	ctx := context.Background()

	if err := limiter.Acquire(ctx, core.IntegrationNotion); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := limiter.Acquire(ctx, core.IntegrationNotion); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if err := limiter.Acquire(ctx, core.IntegrationNotion); err != nil {
		t.Fatalf("third acquire: %v", err)
	}

	// Each empty-bucket acquire pays the full token price; no credit
	// carries across the wait.
	if len(clock.sleeps) != 2 {
		t.Fatalf("expected two waits, got %d", len(clock.sleeps))
	}
	for i, slept := range clock.sleeps {
		if slept != time.Second {
			t.Fatalf("wait %d: expected 1s, got %s", i, slept)
		}
	}
}

func TestLimiter_FractionalRate(t *testing.T) {
	clock := newTestClock()
	limiter := newTestLimiter(clock, 0.5, 1)
	ctx := context.Background()

	if err := limiter.Acquire(ctx, core.IntegrationAsana); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := limiter.Acquire(ctx, core.IntegrationAsana); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if len(clock.sleeps) != 1 {
		t.Fatalf("expected one wait, got %d", len(clock.sleeps))
	}
	if clock.sleeps[0] != 2*time.Second {
		t.Fatalf("expected 2s wait at 0.5 token/s, got %s", clock.sleeps[0])
	}
}

func TestLimiter_ProvidersDoNotShareBuckets(t *testing.T) {
	clock := newTestClock()
	limiter := newTestLimiter(clock, 1, 1)
	ctx := context.Background()

	if err := limiter.Acquire(ctx, core.IntegrationSlack); err != nil {
		t.Fatalf("slack acquire: %v", err)
	}
	if err := limiter.Acquire(ctx, core.IntegrationGitHub); err != nil {
		t.Fatalf("github acquire: %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("expected independent buckets, got waits %v", clock.sleeps)
	}
}

func TestLimiter_ContextCancelledDuringWait(t *testing.T) {
	clock := newTestClock()
	limiter := NewLimiter(LimiterConfig{
		Limits: func(core.IntegrationType) core.RateLimitConfig {
			return core.RateLimitConfig{TokensPerSecond: 1, MaxBurst: 1}
		},
		Now: clock.Now,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			return context.Canceled
		},
	})
	ctx := context.Background()

	if err := limiter.Acquire(ctx, core.IntegrationFigma); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	err := limiter.Acquire(ctx, core.IntegrationFigma)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLimiter_CancelledContextFailsFast(t *testing.T) {
	limiter := NewLimiter(LimiterConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Acquire(ctx, core.IntegrationSlack); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLimiter_EmptyIntegrationFails(t *testing.T) {
	limiter := NewLimiter(LimiterConfig{})
	if err := limiter.Acquire(context.Background(), core.IntegrationType("")); err == nil {
		t.Fatalf("expected error for empty integration")
	}
}

func TestLimiter_DefaultsWhenLimitsUnknown(t *testing.T) {
	clock := newTestClock()
	limiter := NewLimiter(LimiterConfig{Now: clock.Now, Sleep: clock.Sleep})
	ctx := context.Background()

	if err := limiter.Acquire(ctx, core.IntegrationTrello); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := limiter.Acquire(ctx, core.IntegrationTrello); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != time.Second {
		t.Fatalf("expected default 1 token/s fallback, got %v", clock.sleeps)
	}
}
