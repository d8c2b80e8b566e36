// Package llmtest provides an in-memory llms.Model for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// RespondFunc produces the reply for the n-th call (0-based).
type RespondFunc func(ctx context.Context, prompt string, n int) (string, error)

// Model records every prompt it receives and answers through Respond.
type Model struct {
	Respond RespondFunc

	mu      sync.Mutex
	prompts []string
	temps   []float64
}

func New(respond RespondFunc) *Model {
	return &Model{Respond: respond}
}

// Echo answers with the prompt itself, which makes it deterministic.
func Echo() *Model {
	return New(func(_ context.Context, prompt string, _ int) (string, error) {
		return prompt, nil
	})
}

// Script answers with replies in order and repeats the last one.
func Script(replies ...string) *Model {
	return New(func(_ context.Context, _ string, n int) (string, error) {
		if n >= len(replies) {
			n = len(replies) - 1
		}
		return replies[n], nil
	})
}

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	var parts []string
	for _, msg := range messages {
		for _, p := range msg.Parts {
			if tc, ok := p.(llms.TextContent); ok {
				parts = append(parts, tc.Text)
			}
		}
	}
	prompt := strings.Join(parts, "\n")

	m.mu.Lock()
	n := len(m.prompts)
	m.prompts = append(m.prompts, prompt)
	m.temps = append(m.temps, opts.Temperature)
	m.mu.Unlock()

	out, err := m.Respond(ctx, prompt, n)
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: out}}}, nil
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *Model) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func (m *Model) Temperatures() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.temps...)
}

// Empty answers with no choices at all.
type Empty struct{ Model }

func (e *Empty) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if _, err := e.Model.GenerateContent(ctx, messages, options...); err != nil {
		return nil, err
	}
	return &llms.ContentResponse{}, nil
}
