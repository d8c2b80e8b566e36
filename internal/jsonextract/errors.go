package jsonextract

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidJSONSchema = errors.New("invalid json schema")
	ErrInvalidJSONOutput = errors.New("invalid json output")
)

// InvalidJSONOutputError is returned when the model answer is not JSON or
// does not conform to the caller's schema.
type InvalidJSONOutputError struct {
	Output string
	Err    error
}

func (e *InvalidJSONOutputError) Error() string {
	return fmt.Sprintf("the model output is not valid json for the schema: %v", e.Err)
}

func (e *InvalidJSONOutputError) Unwrap() []error { return []error{ErrInvalidJSONOutput, e.Err} }
