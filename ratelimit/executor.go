package ratelimit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-integrations/core"
)

const (
	defaultMaxRetries   = 5
	defaultInitialDelay = time.Second
	maxRetryDelay       = time.Minute
	jitterFraction      = 0.1

	maxExecutorBodyBytes = 1 << 20 // 1 MiB
)

// Request is a provider API call described without an *http.Request so
// retries can rebuild the body each attempt.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is the terminal outcome of an executed request with the body
// fully drained.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// RateLimitExceededError reports a request abandoned after exhausting its
// retry budget against a throttling provider.
type RateLimitExceededError struct {
	Integration core.IntegrationType
	Attempts    int
	RetryAfter  time.Duration
}

func (e *RateLimitExceededError) Error() string {
	if e == nil {
		return "ratelimit: rate limit exceeded"
	}
	return fmt.Sprintf(
		"ratelimit: %s rate limit exceeded after %d attempts",
		e.Integration,
		e.Attempts,
	)
}

// ToServiceError maps the failure into the shared error envelope.
func (e *RateLimitExceededError) ToServiceError() error {
	if e == nil {
		return nil
	}
	metadata := map[string]any{
		"integration": string(e.Integration),
		"attempts":    e.Attempts,
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.IntegrationsErrorRateLimited).
		WithMetadata(metadata)
}

// ExecutorConfig wires the executor's collaborators. Limiter and
// HTTPClient are required for Do; DoFunc needs only the limiter.
type ExecutorConfig struct {
	Limiter    core.TokenAcquirer
	HTTPClient core.HTTPDoer
	// Limits supplies the provider's quota row so throttled responses are
	// read through its documented retry-after header. Unset, every
	// provider is assumed to use Retry-After.
	Limits     func(integration core.IntegrationType) core.RateLimitConfig
	MaxRetries int
	// InitialDelay seeds the exponential backoff used when a throttled
	// response carries no usable Retry-After hint.
	InitialDelay time.Duration
	Now          func() time.Time
	Sleep        func(ctx context.Context, d time.Duration) error
	// Jitter returns a value in [0, 1); replaced in tests for
	// determinism.
	Jitter func() float64
}

// Executor runs provider API calls through the shared limiter and
// retries throttled responses. Retries cover HTTP 429 only: other
// failures return to the caller on the first attempt.
type Executor struct {
	cfg ExecutorConfig
}

func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("ratelimit: limiter is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaultInitialDelay
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	if cfg.Jitter == nil {
		cfg.Jitter = rand.Float64
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Executor{cfg: cfg}, nil
}

// Do executes the request, acquiring a limiter token before every
// attempt. A 429 response consumes one retry; the wait honors the
// provider's Retry-After when present and falls back to exponential
// backoff with jitter otherwise.
func (e *Executor) Do(ctx context.Context, integration core.IntegrationType, req Request) (Response, error) {
	if e == nil {
		return Response{}, fmt.Errorf("ratelimit: executor is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !integration.Valid() {
		return Response{}, fmt.Errorf("ratelimit: unknown integration %q", integration)
	}
	if strings.TrimSpace(req.URL) == "" {
		return Response{}, fmt.Errorf("ratelimit: request url is required")
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	retryHeader := e.retryAfterHeader(integration)
	var lastRetryAfter time.Duration
	attempts := 0
	for {
		if err := e.cfg.Limiter.Acquire(ctx, integration); err != nil {
			return Response{}, err
		}
		attempts++

		response, err := e.doOnce(ctx, method, req)
		if err != nil {
			return Response{}, err
		}
		if response.StatusCode != http.StatusTooManyRequests {
			return response, nil
		}

		if attempts > e.cfg.MaxRetries {
			return Response{}, &RateLimitExceededError{
				Integration: integration,
				Attempts:    attempts,
				RetryAfter:  lastRetryAfter,
			}
		}

		delay, fromHeader := e.retryDelay(response.Headers, retryHeader, attempts)
		if fromHeader {
			lastRetryAfter = delay
		}
		if err := e.cfg.Sleep(ctx, delay); err != nil {
			return Response{}, err
		}
	}
}

// DoFunc runs an arbitrary provider call with the same acquire-and-retry
// policy. Throttling is detected from the error text since client
// libraries rarely surface the raw response.
func (e *Executor) DoFunc(ctx context.Context, integration core.IntegrationType, fn func(ctx context.Context) error) error {
	if e == nil {
		return fmt.Errorf("ratelimit: executor is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return fmt.Errorf("ratelimit: call function is required")
	}
	if !integration.Valid() {
		return fmt.Errorf("ratelimit: unknown integration %q", integration)
	}

	attempts := 0
	for {
		if err := e.cfg.Limiter.Acquire(ctx, integration); err != nil {
			return err
		}
		attempts++

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !isRateLimitError(err) {
			return err
		}
		if attempts > e.cfg.MaxRetries {
			return &RateLimitExceededError{Integration: integration, Attempts: attempts}
		}

		delay := e.backoffDelay(attempts)
		if sleepErr := e.cfg.Sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}

func (e *Executor) doOnce(ctx context.Context, method string, req Request) (Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return Response{}, err
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	httpRes, err := e.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("ratelimit: request failed: %w", err)
	}
	defer httpRes.Body.Close()

	payload, readErr := io.ReadAll(io.LimitReader(httpRes.Body, maxExecutorBodyBytes+1))
	if readErr != nil {
		return Response{}, fmt.Errorf("ratelimit: read response: %w", readErr)
	}
	if int64(len(payload)) > maxExecutorBodyBytes {
		return Response{}, fmt.Errorf("ratelimit: response exceeds %d bytes", maxExecutorBodyBytes)
	}
	return Response{
		StatusCode: httpRes.StatusCode,
		Headers:    httpRes.Header,
		Body:       payload,
	}, nil
}

// retryAfterHeader resolves the header name the provider documents for
// throttle hints, defaulting to Retry-After.
func (e *Executor) retryAfterHeader(integration core.IntegrationType) string {
	if e.cfg.Limits != nil {
		if header := strings.TrimSpace(e.cfg.Limits(integration).RetryAfterHeader); header != "" {
			return header
		}
	}
	return "Retry-After"
}

// retryDelay prefers the provider's retry-after header, then falls back
// to backoff. The second return reports whether the header supplied the
// delay.
func (e *Executor) retryDelay(headers http.Header, retryHeader string, attempt int) (time.Duration, bool) {
	if retryAfter, ok := parseRetryAfter(headers.Get(retryHeader), e.cfg.Now()); ok {
		return retryAfter, true
	}
	return e.backoffDelay(attempt), false
}

// backoffDelay doubles the initial delay per attempt, caps at one
// minute, and adds up to 10% jitter so synchronized retries spread out.
func (e *Executor) backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := e.cfg.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			delay = maxRetryDelay
			break
		}
	}
	jitter := time.Duration(float64(delay) * jitterFraction * e.cfg.Jitter())
	return delay + jitter
}

func parseRetryAfter(raw string, now time.Time) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if retryAt, err := httpDate(raw); err == nil {
		if retryAt.After(now) {
			return retryAt.Sub(now), true
		}
	}
	return 0, false
}

func httpDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("ratelimit: empty date")
	}
	if parsed, err := time.Parse(time.RFC1123, value); err == nil {
		return parsed.UTC(), nil
	}
	if parsed, err := time.Parse(time.RFC1123Z, value); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("ratelimit: invalid http date")
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var exceeded *RateLimitExceededError
	if goerrors.As(err, &exceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "throttl") ||
		strings.Contains(msg, "429")
}
