package llmservice

import (
	"fmt"
	"sort"

	"organized-data/internal/config"
)

// Registry maps model identifiers to backends. Its contents are fixed at
// construction.
type Registry struct {
	backends map[string]*Backend
}

func NewRegistry(backends map[string]*Backend) *Registry {
	bs := make(map[string]*Backend, len(backends))
	for k, v := range backends {
		bs[k] = v
	}
	return &Registry{backends: bs}
}

// NewRegistryFromConfig builds one backend per configured llm. shared is
// applied to every backend before its own tuning.
func NewRegistryFromConfig(cfgs []config.LLMConfig, shared ...BackendOption) (*Registry, error) {
	backends := make(map[string]*Backend, len(cfgs))
	for _, c := range cfgs {
		model, err := NewModel(c)
		if err != nil {
			return nil, fmt.Errorf("llm %s: %w", c.Name, err)
		}

		retry := DefaultRetryConfig()
		retry.Policy = RetryPolicy(c.RetryPolicy)
		if c.MaxRetries != nil {
			retry.MaxRetries = *c.MaxRetries
		}
		if c.Timeout > 0 && c.Timeout < retry.MaxDelay {
			retry.MaxDelay = c.Timeout
		}

		opts := append([]BackendOption{}, shared...)
		opts = append(opts,
			WithMaxConcurrency(c.MaxConcurrency),
			WithRetryConfig(retry),
		)
		if c.Temperature != nil {
			opts = append(opts, WithTemperature(*c.Temperature))
		}
		backends[c.Name] = NewBackend(c.Name, model, opts...)
	}
	return &Registry{backends: backends}, nil
}

// Resolve is a pure lookup; an unknown identifier is never retryable.
func (r *Registry) Resolve(model string) (*Backend, error) {
	b, ok := r.backends[model]
	if !ok {
		return nil, &LLMNotAvailableError{Model: model}
	}
	return b, nil
}

// Models returns the registered identifiers, sorted.
func (r *Registry) Models() []string {
	out := make([]string, 0, len(r.backends))
	for k := range r.backends {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
