package llmservice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"
)

type RetryPolicy string

const (
	// RetryAll retries every failure except caller cancellation.
	RetryAll RetryPolicy = "all"
	// RetryTransient only retries rate limits, 5xx replies, timeouts and
	// empty replies.
	RetryTransient RetryPolicy = "transient"
)

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Policy     RetryPolicy
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
		Policy:     RetryAll,
	}
}

// Retry runs fn until it succeeds, fails permanently or MaxRetries retries
// are spent, sleeping with exponential backoff and full jitter in between.
// It returns the number of attempts made.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) (int, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return attempts, lastErr
		}

		attempts++
		lastErr = fn(ctx)
		if lastErr == nil {
			return attempts, nil
		}
		if attempt == cfg.MaxRetries || !cfg.retryable(lastErr) {
			break
		}

		select {
		case <-ctx.Done():
			return attempts, fmt.Errorf("%w (after %v)", ctx.Err(), lastErr)
		case <-time.After(backoff(attempt, cfg.BaseDelay, cfg.MaxDelay)):
		}
	}
	return attempts, lastErr
}

func (c RetryConfig) retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if c.Policy == RetryTransient {
		return IsTransient(err)
	}
	return true
}

// IsTransient reports whether err looks like a failure worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrEmptyResponse) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, code := range []string{"429", "500", "502", "503", "504", "rate limit", "timeout"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// backoff = rand(0, min(maxDelay, baseDelay * 2^attempt)), at least 1ms.
func backoff(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	exp := float64(baseDelay) * math.Pow(2, float64(attempt))
	if exp > float64(maxDelay) {
		exp = float64(maxDelay)
	}
	d := time.Duration(rand.Float64() * exp)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}
