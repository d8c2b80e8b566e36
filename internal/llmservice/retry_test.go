package llmservice

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	attempts, err := Retry(ctx, fastRetry(5, RetryAll), func(context.Context) error {
		calls++
		cancel()
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetry_NoAttemptOnDoneContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts, err := Retry(ctx, fastRetry(3, RetryAll), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("API returned unexpected status code: 429")))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.True(t, IsTransient(ErrEmptyResponse))
	assert.False(t, IsTransient(errors.New("invalid request: model not found")))
	assert.False(t, IsTransient(nil))
}

func TestBackoff_Bounds(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := backoff(attempt, 10*time.Millisecond, 50*time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Millisecond)
		assert.LessOrEqual(t, d, 50*time.Millisecond)
	}
}
