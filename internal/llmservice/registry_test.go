package llmservice

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organized-data/internal/config"
	"organized-data/internal/llmservice/llmtest"
)

func TestRegistry_Resolve(t *testing.T) {
	backends := map[string]*Backend{"llama-3.1-70b-versatile": NewBackend("llama-3.1-70b-versatile", llmtest.Echo())}
	r := NewRegistry(backends)

	// later changes to the caller's map do not leak in
	backends["late"] = NewBackend("late", llmtest.Echo())

	b, err := r.Resolve("llama-3.1-70b-versatile")
	require.NoError(t, err)
	assert.Equal(t, "llama-3.1-70b-versatile", b.Name())

	_, err = r.Resolve("late")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLLMNotAvailable))

	var na *LLMNotAvailableError
	require.True(t, errors.As(err, &na))
	assert.Equal(t, "late", na.Model)
	assert.Equal(t, "model late is not available", err.Error())

	assert.Equal(t, []string{"llama-3.1-70b-versatile"}, r.Models())
}

func TestNewRegistryFromConfig(t *testing.T) {
	temp := 0.1
	retries := 1
	r, err := NewRegistryFromConfig([]config.LLMConfig{
		{
			Name: "llama-3.1-70b-versatile", Provider: "groq", Model: "llama-3.1-70b-versatile", Key: "gsk-test",
			Temperature: &temp, MaxConcurrency: 4, MaxRetries: &retries, RetryPolicy: "transient", Timeout: 5 * time.Second,
		},
		{
			Name: "local", Provider: "ollama", Model: "llama3.2", MaxConcurrency: 2, RetryPolicy: "all",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"llama-3.1-70b-versatile", "local"}, r.Models())

	groq, err := r.Resolve("llama-3.1-70b-versatile")
	require.NoError(t, err)
	assert.Equal(t, 0.1, groq.Temperature())
	assert.Equal(t, 4, groq.MaxConcurrency())
	assert.Equal(t, 1, groq.RetryConfig().MaxRetries)
	assert.Equal(t, RetryTransient, groq.RetryConfig().Policy)
	assert.Equal(t, 5*time.Second, groq.RetryConfig().MaxDelay)

	local, err := r.Resolve("local")
	require.NoError(t, err)
	assert.Equal(t, 3, local.RetryConfig().MaxRetries)

	_, err = NewRegistryFromConfig([]config.LLMConfig{{Name: "x", Provider: "bedrock"}})
	assert.Error(t, err)
}
