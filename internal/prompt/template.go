// Package prompt wraps langchaingo prompt templates with the variable contract
// the extraction orchestrator relies on: a template declares its placeholders
// and refuses to render unless every one of them is bound.
package prompt

import (
	"fmt"
	"slices"
	"sort"

	"github.com/tmc/langchaingo/prompts"
)

// Template is an f-string style template ({name} placeholders, {{ and }} for
// literal braces) plus the names it declares.
type Template struct {
	inner prompts.PromptTemplate
}

// New builds a template and checks that it renders with exactly the declared
// variables.
func New(template string, variables []string) (Template, error) {
	vars := slices.Clone(variables)
	sort.Strings(vars)
	vars = slices.Compact(vars)

	if err := prompts.CheckValidTemplate(template, prompts.TemplateFormatFString, vars); err != nil {
		return Template{}, fmt.Errorf("invalid prompt template: %w", err)
	}
	return Template{inner: prompts.PromptTemplate{
		Template:       template,
		TemplateFormat: prompts.TemplateFormatFString,
		InputVariables: vars,
	}}, nil
}

// Must is New for package-level templates known to be valid.
func Must(template string, variables []string) Template {
	t, err := New(template, variables)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Template) Text() string { return t.inner.Template }

// DeclaredVariables returns the declared placeholder names, sorted.
func (t Template) DeclaredVariables() []string {
	return slices.Clone(t.inner.InputVariables)
}

func (t Template) RequiresVariable(name string) bool {
	_, found := slices.BinarySearch(t.inner.InputVariables, name)
	return found
}

// Validate reports declared names without a value and values without a
// declared name. It never renders.
func (t Template) Validate(values map[string]any) error {
	var missing, extra []string
	for _, name := range t.inner.InputVariables {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range values {
		if !t.RequiresVariable(name) {
			extra = append(extra, name)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	return &FormatError{Missing: missing, Extra: extra}
}

// Bind keeps only the values the template declares.
func (t Template) Bind(values map[string]any) map[string]any {
	out := make(map[string]any, len(t.inner.InputVariables))
	for _, name := range t.inner.InputVariables {
		if v, ok := values[name]; ok {
			out[name] = v
		}
	}
	return out
}

// Format validates values and renders the template.
func (t Template) Format(values map[string]any) (string, error) {
	if err := t.Validate(values); err != nil {
		return "", err
	}
	out, err := t.inner.Format(values)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPromptTemplateFormat, err)
	}
	return out, nil
}
