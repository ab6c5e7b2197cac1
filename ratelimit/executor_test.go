package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-integrations/core"
)

type sequenceDoer struct {
	responses []*http.Response
	requests  []*http.Request
}

func (d *sequenceDoer) Do(req *http.Request) (*http.Response, error) {
	d.requests = append(d.requests, req)
	if len(d.responses) == 0 {
		return nil, fmt.Errorf("unexpected request %s %s", req.Method, req.URL)
	}
	response := d.responses[0]
	d.responses = d.responses[1:]
	return response, nil
}

func stubResponse(status int, headers map[string]string, body string) *http.Response {
	header := http.Header{}
	for key, value := range headers {
		header.Set(key, value)
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type passLimiter struct {
	acquired int
}

func (l *passLimiter) Acquire(_ context.Context, _ core.IntegrationType) error {
	l.acquired++
	return nil
}

func newTestExecutor(t *testing.T, doer core.HTTPDoer, limiter core.TokenAcquirer, sleeps *[]time.Duration) *Executor {
	t.Helper()
	executor, err := NewExecutor(ExecutorConfig{
		Limiter:      limiter,
		HTTPClient:   doer,
		MaxRetries:   3,
		InitialDelay: time.Second,
		Now:          func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
		Sleep: func(_ context.Context, d time.Duration) error {
			*sleeps = append(*sleeps, d)
			return nil
		},
		Jitter: func() float64 { return 0 },
	})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	return executor
}

func TestExecutor_SuccessPassesThrough(t *testing.T) {
	doer := &sequenceDoer{responses: []*http.Response{
		stubResponse(http.StatusOK, nil, `{"ok":true}`),
	}}
	limiter := &passLimiter{}
	var sleeps []time.Duration
	executor := newTestExecutor(t, doer, limiter, &sleeps)

	response, err := executor.Do(context.Background(), core.IntegrationSlack, Request{
		Method: http.MethodGet,
		URL:    "https://slack.com/api/conversations.list",
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.StatusCode)
	}
	if string(response.Body) != `{"ok":true}` {
		t.Fatalf("expected body passthrough, got %q", response.Body)
	}
	if limiter.acquired != 1 {
		t.Fatalf("expected one token acquired, got %d", limiter.acquired)
	}
	if len(sleeps) != 0 {
		t.Fatalf("did not expect retry sleeps, got %v", sleeps)
	}
}

func TestExecutor_RetriesOn429WithRetryAfterSeconds(t *testing.T) {
	doer := &sequenceDoer{responses: []*http.Response{
		stubResponse(http.StatusTooManyRequests, map[string]string{"Retry-After": "7"}, ""),
		stubResponse(http.StatusOK, nil, "done"),
	}}
	limiter := &passLimiter{}
	var sleeps []time.Duration
	executor := newTestExecutor(t, doer, limiter, &sleeps)

	response, err := executor.Do(context.Background(), core.IntegrationGitHub, Request{URL: "https://api.github.com/user"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected success after retry, got %d", response.StatusCode)
	}
	if len(sleeps) != 1 || sleeps[0] != 7*time.Second {
		t.Fatalf("expected single 7s wait from Retry-After, got %v", sleeps)
	}
	if limiter.acquired != 2 {
		t.Fatalf("expected a token per attempt, got %d", limiter.acquired)
	}
}

func TestExecutor_ProviderRetryAfterHeader(t *testing.T) {
	doer := &sequenceDoer{responses: []*http.Response{
		stubResponse(http.StatusTooManyRequests, map[string]string{"X-Ratelimit-Reset": "30"}, ""),
		stubResponse(http.StatusOK, nil, ""),
	}}
	var sleeps []time.Duration
	executor, err := NewExecutor(ExecutorConfig{
		Limiter:    &passLimiter{},
		HTTPClient: doer,
		Limits: func(core.IntegrationType) core.RateLimitConfig {
			return core.RateLimitConfig{RetryAfterHeader: "X-Ratelimit-Reset"}
		},
		InitialDelay: time.Millisecond,
		Now:          func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
		Sleep: func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		},
		Jitter: func() float64 { return 0 },
	})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	if _, err := executor.Do(context.Background(), core.IntegrationGitHub, Request{URL: "https://api.github.com/user"}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if len(sleeps) != 1 || sleeps[0] != 30*time.Second {
		t.Fatalf("expected 30s wait from provider header, got %v", sleeps)
	}
}

func TestExecutor_RetryAfterHTTPDate(t *testing.T) {
	retryAt := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)
	doer := &sequenceDoer{responses: []*http.Response{
		stubResponse(http.StatusTooManyRequests, map[string]string{
			"Retry-After": retryAt.Format(time.RFC1123),
		}, ""),
		stubResponse(http.StatusOK, nil, ""),
	}}
	var sleeps []time.Duration
	executor := newTestExecutor(t, doer, &passLimiter{}, &sleeps)

	if _, err := executor.Do(context.Background(), core.IntegrationGoogleDrive, Request{URL: "https://www.googleapis.com/drive/v3/files"}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if len(sleeps) != 1 || sleeps[0] != 30*time.Second {
		t.Fatalf("expected 30s wait from http-date Retry-After, got %v", sleeps)
	}
}

func TestExecutor_BackoffDoublesAndCaps(t *testing.T) {
	executor, err := NewExecutor(ExecutorConfig{
		Limiter:      &passLimiter{},
		InitialDelay: time.Second,
		Jitter:       func() float64 { return 0 },
	})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	previous := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		delay := executor.backoffDelay(attempt)
		if delay < previous {
			t.Fatalf("attempt %d: backoff decreased from %s to %s", attempt, previous, delay)
		}
		if delay > maxRetryDelay {
			t.Fatalf("attempt %d: backoff %s exceeds cap", attempt, delay)
		}
		previous = delay
	}
	if executor.backoffDelay(1) != time.Second {
		t.Fatalf("expected initial delay on first attempt")
	}
	if executor.backoffDelay(10) != maxRetryDelay {
		t.Fatalf("expected cap on late attempts")
	}
}

func TestExecutor_BackoffJitterBounded(t *testing.T) {
	executor, err := NewExecutor(ExecutorConfig{
		Limiter:      &passLimiter{},
		InitialDelay: time.Second,
		Jitter:       func() float64 { return 0.999 },
	})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	delay := executor.backoffDelay(1)
	if delay < time.Second {
		t.Fatalf("jitter must not shorten the delay, got %s", delay)
	}
	if delay > time.Second+time.Duration(float64(time.Second)*jitterFraction) {
		t.Fatalf("jitter exceeds 10%% of delay, got %s", delay)
	}
}

func TestExecutor_ExhaustsRetryBudget(t *testing.T) {
	doer := &sequenceDoer{responses: []*http.Response{
		stubResponse(http.StatusTooManyRequests, nil, ""),
		stubResponse(http.StatusTooManyRequests, nil, ""),
		stubResponse(http.StatusTooManyRequests, nil, ""),
		stubResponse(http.StatusTooManyRequests, nil, ""),
	}}
	limiter := &passLimiter{}
	var sleeps []time.Duration
	executor := newTestExecutor(t, doer, limiter, &sleeps)

	_, err := executor.Do(context.Background(), core.IntegrationDropbox, Request{URL: "https://api.dropboxapi.com/2/files/list_folder"})
	var exceeded *RateLimitExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected RateLimitExceededError, got %v", err)
	}
	if exceeded.Attempts != 4 {
		t.Fatalf("expected initial attempt plus three retries, got %d", exceeded.Attempts)
	}
	if len(doer.requests) != 4 {
		t.Fatalf("expected four requests, got %d", len(doer.requests))
	}
	if len(sleeps) != 3 {
		t.Fatalf("expected three retry waits, got %d", len(sleeps))
	}
}

func TestExecutor_NoRetryOnServerError(t *testing.T) {
	doer := &sequenceDoer{responses: []*http.Response{
		stubResponse(http.StatusInternalServerError, nil, "boom"),
	}}
	var sleeps []time.Duration
	executor := newTestExecutor(t, doer, &passLimiter{}, &sleeps)

	response, err := executor.Do(context.Background(), core.IntegrationAsana, Request{URL: "https://app.asana.com/api/1.0/tasks"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if response.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 returned to caller, got %d", response.StatusCode)
	}
	if len(sleeps) != 0 {
		t.Fatalf("did not expect retries on non-429 status, got %v", sleeps)
	}
}

func TestExecutor_DoFuncRetriesRateLimitErrors(t *testing.T) {
	limiter := &passLimiter{}
	var sleeps []time.Duration
	executor := newTestExecutor(t, &sequenceDoer{}, limiter, &sleeps)

	calls := 0
	err := executor.DoFunc(context.Background(), core.IntegrationSlack, func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("slack: rate limit hit, slow down")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do func: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected three calls, got %d", calls)
	}
	if len(sleeps) != 2 {
		t.Fatalf("expected two retry waits, got %d", len(sleeps))
	}
}

func TestExecutor_DoFuncDoesNotRetryOtherErrors(t *testing.T) {
	var sleeps []time.Duration
	executor := newTestExecutor(t, &sequenceDoer{}, &passLimiter{}, &sleeps)

	calls := 0
	wantErr := fmt.Errorf("network unreachable")
	err := executor.DoFunc(context.Background(), core.IntegrationSlack, func(context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected original error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestExecutor_DoFuncExhaustsBudget(t *testing.T) {
	var sleeps []time.Duration
	executor := newTestExecutor(t, &sequenceDoer{}, &passLimiter{}, &sleeps)

	err := executor.DoFunc(context.Background(), core.IntegrationTrello, func(context.Context) error {
		return fmt.Errorf("throttled by upstream")
	})
	var exceeded *RateLimitExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected RateLimitExceededError, got %v", err)
	}
	if exceeded.Attempts != 4 {
		t.Fatalf("expected four attempts, got %d", exceeded.Attempts)
	}
}

func TestExecutor_LimiterErrorAborts(t *testing.T) {
	executor, err := NewExecutor(ExecutorConfig{
		Limiter: limiterFunc(func(context.Context, core.IntegrationType) error {
			return context.DeadlineExceeded
		}),
	})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	if _, doErr := executor.Do(context.Background(), core.IntegrationSlack, Request{URL: "https://slack.com/api/auth.test"}); !errors.Is(doErr, context.DeadlineExceeded) {
		t.Fatalf("expected limiter error, got %v", doErr)
	}
}

type limiterFunc func(ctx context.Context, integration core.IntegrationType) error

func (f limiterFunc) Acquire(ctx context.Context, integration core.IntegrationType) error {
	return f(ctx, integration)
}
