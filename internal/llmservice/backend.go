package llmservice

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/semaphore"

	"organized-data/internal/models"
)

// Backend is one configured model endpoint with its own concurrency gate,
// retry budget and optional response cache.
type Backend struct {
	name           string
	model          llms.Model
	temperature    float64
	maxConcurrency int
	retry          RetryConfig
	sem            *semaphore.Weighted
	cache          Cache
	metrics        *Metrics
	logger         zerolog.Logger
}

type BackendOption func(*Backend)

func WithTemperature(t float64) BackendOption {
	return func(b *Backend) { b.temperature = t }
}

// WithMaxConcurrency bounds in-flight calls; callers over the bound wait.
func WithMaxConcurrency(n int) BackendOption {
	return func(b *Backend) {
		if n > 0 {
			b.maxConcurrency = n
		}
	}
}

func WithMaxRetries(n int) BackendOption {
	return func(b *Backend) { b.retry.MaxRetries = n }
}

func WithRetryConfig(cfg RetryConfig) BackendOption {
	return func(b *Backend) { b.retry = cfg }
}

func WithCache(c Cache) BackendOption {
	return func(b *Backend) { b.cache = c }
}

func WithMetrics(m *Metrics) BackendOption {
	return func(b *Backend) { b.metrics = m }
}

func WithLogger(l zerolog.Logger) BackendOption {
	return func(b *Backend) { b.logger = l }
}

func NewBackend(name string, model llms.Model, opts ...BackendOption) *Backend {
	b := &Backend{
		name:           name,
		model:          model,
		temperature:    models.DefaultTemperature,
		maxConcurrency: models.DefaultMaxConcurrency,
		retry:          DefaultRetryConfig(),
		logger:         log.Logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.sem = semaphore.NewWeighted(int64(b.maxConcurrency))
	b.logger = b.logger.With().Str("model", name).Logger()
	return b
}

func (b *Backend) Name() string             { return b.name }
func (b *Backend) Temperature() float64     { return b.temperature }
func (b *Backend) MaxConcurrency() int      { return b.maxConcurrency }
func (b *Backend) RetryConfig() RetryConfig { return b.retry }

// Generate sends prompt as a single human message and returns the text of
// the first choice. Failures come back as *BackendInvocationError.
func (b *Backend) Generate(ctx context.Context, prompt string) (string, error) {
	started := time.Now()

	var key string
	if b.cache != nil {
		key = CacheKey(b.name, b.temperature, prompt)
		if out, ok, err := b.cache.Get(ctx, key); err != nil {
			b.logger.Warn().Err(err).Msg("Cache lookup failed")
		} else if ok {
			b.metrics.observe(b.name, statusCacheHit, 0, started)
			b.logger.Debug().Msg("Cache hit")
			return out, nil
		}
	}

	if err := b.sem.Acquire(ctx, 1); err != nil {
		b.metrics.observe(b.name, statusError, 0, started)
		return "", &BackendInvocationError{Model: b.name, Chunk: -1, Err: err}
	}
	b.metrics.inFlight(b.name, 1)
	defer func() {
		b.metrics.inFlight(b.name, -1)
		b.sem.Release(1)
	}()

	messages := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}
	var output string
	attempts, err := Retry(ctx, b.retry, func(ctx context.Context) error {
		res, err := b.model.GenerateContent(ctx, messages, llms.WithTemperature(b.temperature))
		if err != nil {
			b.logger.Debug().Err(err).Msg("Model call failed")
			return err
		}
		if res == nil || len(res.Choices) == 0 {
			return ErrEmptyResponse
		}
		output = res.Choices[0].Content
		return nil
	})
	if err != nil {
		b.metrics.observe(b.name, statusError, attempts, started)
		b.logger.Error().Err(err).Int("attempts", attempts).Dur("elapsed", time.Since(started)).Msg("Backend invocation failed")
		return "", &BackendInvocationError{Model: b.name, Chunk: -1, Attempts: attempts, Err: err}
	}

	b.metrics.observe(b.name, statusSuccess, attempts, started)
	b.logger.Debug().Int("attempts", attempts).Int("output_len", len(output)).Dur("elapsed", time.Since(started)).Msg("Backend invocation done")

	if b.cache != nil {
		if err := b.cache.Set(ctx, key, output); err != nil {
			b.logger.Warn().Err(err).Msg("Cache store failed")
		}
	}
	return output, nil
}
