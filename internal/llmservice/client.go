package llmservice

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"organized-data/internal/config"
)

const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	ollamaBaseURL = "http://localhost:11434"
)

// NewModel creates the langchaingo client behind one configured backend.
// Groq speaks the OpenAI wire protocol, so both go through llms/openai.
func NewModel(llmConfig config.LLMConfig) (llms.Model, error) {
	log.Debug().
		Str("name", llmConfig.Name).
		Str("provider", llmConfig.Provider).
		Str("model", llmConfig.Model).
		Str("base_url", llmConfig.BaseURL).
		Msg("Creating llm client")

	httpClient := &http.Client{Timeout: llmConfig.Timeout}

	switch llmConfig.Provider {
	case "groq", "openai":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
			openai.WithHTTPClient(httpClient),
		}
		baseURL := llmConfig.BaseURL
		if baseURL == "" && llmConfig.Provider == "groq" {
			baseURL = groqBaseURL
		}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		return openai.New(opts...)
	case "ollama":
		baseURL := llmConfig.BaseURL
		if baseURL == "" {
			baseURL = ollamaBaseURL
		}
		return ollama.New(
			ollama.WithServerURL(baseURL),
			ollama.WithModel(llmConfig.Model),
			ollama.WithHTTPClient(httpClient),
		)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", llmConfig.Provider)
	}
}
