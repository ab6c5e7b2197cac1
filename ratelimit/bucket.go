package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-integrations/core"
)

const (
	defaultRefillRate = 1.0
	defaultMaxBurst   = 1.0
)

// bucket is one provider's token balance. Fractional tokens accumulate
// between refills so non-integer rates work without drift.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// LimiterConfig customizes quota lookup and, in tests, time.
type LimiterConfig struct {
	// Limits resolves the provider's quota. Defaults to a conservative
	// one request per second when nil or when the lookup returns a zero
	// rate.
	Limits func(integration core.IntegrationType) core.RateLimitConfig
	Now    func() time.Time
	Sleep  func(ctx context.Context, d time.Duration) error
}

// Limiter is a per-provider token bucket. Buckets are created lazily on
// first acquire; all callers hitting the same provider share one bucket.
type Limiter struct {
	cfg LimiterConfig

	mu      sync.Mutex
	buckets map[core.IntegrationType]*bucket
}

func NewLimiter(cfg LimiterConfig) *Limiter {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &Limiter{
		cfg:     cfg,
		buckets: map[core.IntegrationType]*bucket{},
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Limiter) limitsFor(integration core.IntegrationType) core.RateLimitConfig {
	var limits core.RateLimitConfig
	if l.cfg.Limits != nil {
		limits = l.cfg.Limits(integration)
	}
	if limits.TokensPerSecond <= 0 {
		limits.TokensPerSecond = defaultRefillRate
	}
	if limits.MaxBurst < 1 {
		limits.MaxBurst = defaultMaxBurst
	}
	return limits
}

func (l *Limiter) bucketFor(integration core.IntegrationType, burst float64) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	existing, ok := l.buckets[integration]
	if ok {
		return existing
	}
	// New buckets start full so bursts up to capacity pass untouched.
	created := &bucket{tokens: burst, lastRefill: l.cfg.Now()}
	l.buckets[integration] = created
	return created
}

// Acquire blocks until a token is available for the provider or the
// context ends. When the bucket is empty the waiter is charged the full
// wait and the bucket restarts from zero, so concurrent waiters released
// together cannot burst past the quota.
func (l *Limiter) Acquire(ctx context.Context, integration core.IntegrationType) error {
	if l == nil {
		return fmt.Errorf("ratelimit: limiter is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(string(integration)) == "" {
		return fmt.Errorf("ratelimit: integration is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	limits := l.limitsFor(integration)
	b := l.bucketFor(integration, limits.MaxBurst)

	b.mu.Lock()
	now := l.cfg.Now()
	refill(b, now, limits)

	if b.tokens >= 1 {
		b.tokens--
		b.mu.Unlock()
		return nil
	}

	wait := time.Duration((1 - b.tokens) / limits.TokensPerSecond * float64(time.Second))
	b.mu.Unlock()

	if err := l.cfg.Sleep(ctx, wait); err != nil {
		return err
	}

	// Pessimistic reset: the slept-for token is consumed in full and the
	// refill clock restarts now.
	b.mu.Lock()
	b.tokens = 0
	b.lastRefill = l.cfg.Now()
	b.mu.Unlock()
	return nil
}

// refill credits tokens for elapsed time, capped at burst capacity. The
// caller holds the bucket lock.
func refill(b *bucket, now time.Time, limits core.RateLimitConfig) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed.Seconds() * limits.TokensPerSecond
	if b.tokens > limits.MaxBurst {
		b.tokens = limits.MaxBurst
	}
	b.lastRefill = now
}

var _ core.TokenAcquirer = (*Limiter)(nil)
