package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// Template roles used by refine extraction when a required placeholder is
// missing.
const (
	InitialPromptTemplate = "initialPromptTemplate"
	RefinePromptTemplate  = "refinePromptTemplate"
)

var (
	ErrPromptTemplateFormat = errors.New("prompt template format error")
	ErrMissingInputVariable = errors.New("missing input variable")
)

// FormatError reports chain values that do not fill a template's declared
// placeholders exactly.
type FormatError struct {
	Missing []string
	Extra   []string
}

func (e *FormatError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing value for "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unexpected value for "+strings.Join(e.Extra, ", "))
	}
	return fmt.Sprintf("%s: %s", ErrPromptTemplateFormat, strings.Join(parts, "; "))
}

func (e *FormatError) Unwrap() error { return ErrPromptTemplateFormat }

// MissingInputVariableError is returned when a refine template does not
// declare a placeholder the refine loop needs to fill.
type MissingInputVariableError struct {
	Template string
	Variable string
}

func (e *MissingInputVariableError) Error() string {
	return fmt.Sprintf("%s must have input variable %q", e.Template, e.Variable)
}

func (e *MissingInputVariableError) Unwrap() error { return ErrMissingInputVariable }
