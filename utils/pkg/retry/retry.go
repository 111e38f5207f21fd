package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Defaults to IsRetryable.
	Retryable func(error) bool

	// OnRetry is called before sleeping ahead of attempt number `next`.
	OnRetry func(next int, backoff time.Duration, err error)
}

// DefaultConfig returns the default retry configuration for ledger reads.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseBackoff: 250 * time.Millisecond,
		MaxBackoff:  4 * time.Second,
	}
}

// Do executes fn with exponential backoff. Returns the last error if all attempts fail.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoValue(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoValue is Do for functions that produce a value.
func DoValue[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			backoff := calculateBackoff(cfg.BaseBackoff, cfg.MaxBackoff, attempt-1)
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, backoff, lastErr)
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}

		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !retryable(err) {
			return zero, err
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// IsRetryable reports whether err looks transient: network failures, throttling,
// 5xx responses and RPC nodes that are temporarily behind.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	type hasStatusCode interface {
		StatusCode() int
	}
	var sc hasStatusCode
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"connection closed",
	"broken pipe",
	"eof",
	"timeout",
	"temporary failure",
	"service unavailable",
	"rate limit",
	"too many requests",
	"node is behind",
	"node is unhealthy",
}

// calculateBackoff returns base * 2^attempt capped at max, scaled by a random
// factor in [0.5, 1.0).
func calculateBackoff(base, max time.Duration, attempt int) time.Duration {
	backoff := base * time.Duration(1<<uint(attempt))
	if backoff > max || backoff <= 0 {
		backoff = max
	}
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(float64(backoff) * jitter)
}
