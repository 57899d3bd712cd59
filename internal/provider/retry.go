package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// RetryConfig configures the retry behavior for upstream calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for model API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups error substrings by category, matched
// case-insensitively against err.Error().
//
// NOTE: String matching is used because provider SDKs do not expose typed
// errors for transient failures. ErrTimeout is matched structurally below.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},     // rate limiting
	{"500", "502", "503", "504", "unavailable"}, // transient server errors
	{"connection reset", "connection refused", "temporary"}, // network errors
}

// retryableError reports whether err is transient and should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, sub := range group {
			if strings.Contains(errStr, sub) {
				return true
			}
		}
	}
	return false
}

// RetryingClient wraps a Client with client-side rate limiting, bounded
// per-call timeouts, and exponential backoff on retryable failures.
//
// Retry is safe here because Embed and Complete are stateless per call:
// no conversation state changes until the caller persists the result.
type RetryingClient struct {
	inner   Client
	cfg     RetryConfig
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
}

var _ Client = (*RetryingClient)(nil)

// WithRetry wraps inner with retry, rate limiting, and a per-call timeout.
// A nil limiter installs the default (10 req/s sustained, burst of 30).
// A zero timeout disables the per-call deadline.
func WithRetry(inner Client, cfg RetryConfig, limiter *rate.Limiter, timeout time.Duration, logger *slog.Logger) *RetryingClient {
	if cfg.MaxRetries == 0 {
		cfg = DefaultRetryConfig()
	}
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingClient{
		inner:   inner,
		cfg:     cfg,
		limiter: limiter,
		timeout: timeout,
		logger:  logger,
	}
}

// Embed calls the inner embedder with retry.
func (c *RetryingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return withRetry(ctx, c, "embed", func(ctx context.Context) ([]float32, error) {
		return c.inner.Embed(ctx, text)
	})
}

// Complete calls the inner completion service with retry.
func (c *RetryingClient) Complete(ctx context.Context, turns []Turn) (string, error) {
	return withRetry(ctx, c, "complete", func(ctx context.Context) (string, error) {
		return c.inner.Complete(ctx, turns)
	})
}

// withRetry executes fn with exponential backoff. Each attempt is rate
// limited and runs under its own deadline so a hung upstream maps to
// ErrTimeout instead of blocking the session forever.
func withRetry[T any](ctx context.Context, c *RetryingClient, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := c.cfg.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("rate limit wait: %w", err)
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if c.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}
		result, err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			if attempt > 0 {
				c.logger.Debug("upstream call succeeded after retry",
					"op", op, "attempts", attempt+1, "elapsed", time.Since(start))
			}
			return result, nil
		}

		// The caller's context expiring is not an upstream timeout.
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: %w", op, ctx.Err())
		}

		lastErr = err
		if !retryableError(err) {
			return zero, err
		}
		if attempt == c.cfg.MaxRetries {
			break
		}

		c.logger.Debug("retrying upstream call",
			"op", op, "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.cfg.MaxInterval)
		}
	}

	return zero, fmt.Errorf("%s after %d retries (elapsed: %v): %w",
		op, c.cfg.MaxRetries, time.Since(start), lastErr)
}
