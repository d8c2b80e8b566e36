package extraction

import (
	"errors"
	"fmt"
	"strings"

	"organized-data/internal/llmservice"
)

var (
	ErrRefineReservedChainValues = errors.New("refine chain values use reserved keys")
	// ErrEmptyDocument is returned by refine extraction when the input yields
	// no chunk at all.
	ErrEmptyDocument = errors.New("document has no text to extract from")
)

type RefineReservedChainValuesError struct {
	Reserved []string
}

func (e *RefineReservedChainValuesError) Error() string {
	return fmt.Sprintf("chain values must not contain %s: they are set by the refine loop",
		strings.Join(e.Reserved, " or "))
}

func (e *RefineReservedChainValuesError) Unwrap() error { return ErrRefineReservedChainValues }

// atChunk tags a backend failure with the refine chunk it happened on.
func atChunk(err error, chunk int) error {
	var be *llmservice.BackendInvocationError
	if !errors.As(err, &be) {
		return fmt.Errorf("chunk %d: %w", chunk, err)
	}
	tagged := *be
	tagged.Chunk = chunk
	return &tagged
}
