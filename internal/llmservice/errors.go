package llmservice

import (
	"errors"
	"fmt"
)

var (
	ErrLLMNotAvailable   = errors.New("llm not available")
	ErrBackendInvocation = errors.New("backend invocation failed")
	// ErrEmptyResponse marks a model reply without any choice.
	ErrEmptyResponse = errors.New("empty response from model")
)

type LLMNotAvailableError struct {
	Model string
}

func (e *LLMNotAvailableError) Error() string {
	return fmt.Sprintf("model %s is not available", e.Model)
}

func (e *LLMNotAvailableError) Unwrap() error { return ErrLLMNotAvailable }

// BackendInvocationError wraps the last error of a backend call once its
// retries are spent. Chunk is the refine chunk index, or -1.
type BackendInvocationError struct {
	Model    string
	Chunk    int
	Attempts int
	Err      error
}

func (e *BackendInvocationError) Error() string {
	if e.Chunk >= 0 {
		return fmt.Sprintf("%s: model %s, chunk %d, %d attempt(s): %v", ErrBackendInvocation, e.Model, e.Chunk, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: model %s, %d attempt(s): %v", ErrBackendInvocation, e.Model, e.Attempts, e.Err)
}

// Unwrap exposes both the sentinel and the cause, so errors.Is works for
// ErrBackendInvocation and for context errors alike.
func (e *BackendInvocationError) Unwrap() []error { return []error{ErrBackendInvocation, e.Err} }
