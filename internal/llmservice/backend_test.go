package llmservice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organized-data/internal/llmservice/llmtest"
)

func fastRetry(maxRetries int, policy RetryPolicy) RetryConfig {
	return RetryConfig{MaxRetries: maxRetries, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Policy: policy}
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]string{}
	}
	c.data[key] = value
	return nil
}

func TestGenerate_ReturnsFirstChoice(t *testing.T) {
	model := llmtest.Script("hello")
	b := NewBackend("m", model, WithTemperature(0.3))

	out, err := b.Generate(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, []string{"say hello"}, model.Prompts())
	assert.Equal(t, []float64{0.3}, model.Temperatures())
}

func TestGenerate_RetriesThenSucceeds(t *testing.T) {
	model := llmtest.New(func(_ context.Context, _ string, n int) (string, error) {
		if n < 2 {
			return "", errors.New("503 service unavailable")
		}
		return "ok", nil
	})
	b := NewBackend("m", model, WithRetryConfig(fastRetry(3, RetryAll)))

	out, err := b.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, model.Calls())
}

func TestGenerate_ExhaustedRetries(t *testing.T) {
	cause := errors.New("502 bad gateway")
	model := llmtest.New(func(context.Context, string, int) (string, error) { return "", cause })
	b := NewBackend("m", model, WithRetryConfig(fastRetry(2, RetryAll)))

	_, err := b.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendInvocation)
	assert.ErrorIs(t, err, cause)

	var be *BackendInvocationError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "m", be.Model)
	assert.Equal(t, -1, be.Chunk)
	assert.Equal(t, 3, be.Attempts)
	assert.Equal(t, 3, model.Calls())
}

func TestGenerate_TransientPolicySkipsPermanentErrors(t *testing.T) {
	model := llmtest.New(func(context.Context, string, int) (string, error) {
		return "", errors.New("401 invalid api key")
	})
	b := NewBackend("m", model, WithRetryConfig(fastRetry(3, RetryTransient)))

	_, err := b.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrBackendInvocation)
	assert.Equal(t, 1, model.Calls())
}

func TestGenerate_EmptyResponse(t *testing.T) {
	model := &llmtest.Empty{Model: llmtest.Model{Respond: func(context.Context, string, int) (string, error) { return "", nil }}}
	b := NewBackend("m", model, WithRetryConfig(fastRetry(1, RetryTransient)))

	_, err := b.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, 2, model.Calls())
}

func TestGenerate_ConcurrencyBoundQueues(t *testing.T) {
	var current, peak int32
	release := make(chan struct{})
	model := llmtest.New(func(context.Context, string, int) (string, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&current, -1)
		return "done", nil
	})
	b := NewBackend("m", model, WithMaxConcurrency(2))

	const callers = 6
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Generate(context.Background(), "p")
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&current) == 2 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&peak))
	assert.Equal(t, callers, model.Calls())
}

func TestGenerate_CancelledWhileQueued(t *testing.T) {
	release := make(chan struct{})
	model := llmtest.New(func(context.Context, string, int) (string, error) {
		<-release
		return "done", nil
	})
	b := NewBackend("m", model, WithMaxConcurrency(1))

	go func() { _, _ = b.Generate(context.Background(), "first") }()
	require.Eventually(t, func() bool { return model.Calls() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := b.Generate(ctx, "second")
	close(release)

	assert.ErrorIs(t, err, ErrBackendInvocation)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, model.Calls())
}

func TestGenerate_CacheAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	cache := &memCache{}
	model := llmtest.Script("cached answer")
	b := NewBackend("m", model, WithCache(cache), WithMetrics(metrics))

	for i := 0; i < 2; i++ {
		out, err := b.Generate(context.Background(), "same prompt")
		require.NoError(t, err)
		assert.Equal(t, "cached answer", out)
	}

	assert.Equal(t, 1, model.Calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CallsTotal.WithLabelValues("m", statusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CallsTotal.WithLabelValues("m", statusCacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Attempts.WithLabelValues("m")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.InFlight.WithLabelValues("m")))
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("m", 0.8, "prompt")
	assert.Equal(t, a, CacheKey("m", 0.8, "prompt"))
	assert.NotEqual(t, a, CacheKey("m", 0.2, "prompt"))
	assert.NotEqual(t, a, CacheKey("other", 0.8, "prompt"))
	assert.NotEqual(t, a, CacheKey("m", 0.8, "prompt!"))
}
