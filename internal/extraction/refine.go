package extraction

import (
	"context"
	"maps"

	"github.com/tmc/langchaingo/schema"

	"organized-data/internal/models"
	"organized-data/internal/parser"
	"organized-data/internal/prompt"
)

// RefineInput is the text a refine extraction walks through. Documents, when
// set, are used as the chunks as-is; otherwise Document is split. A zero
// ChunkSize and Overlap select the orchestrator's chunking.
type RefineInput struct {
	Document  string
	Documents []schema.Document
	ChunkSize int
	Overlap   int
}

type RefineResult struct {
	Output            string
	IntermediateSteps []string
	Chunks            int
}

var reservedKeys = []string{models.ContextKey, models.ExistingAnswerKey}

// GenerateRefineOutput extracts from a long text one chunk at a time. The
// first chunk is rendered with initial, every later chunk with refine and the
// answer so far. Calls are strictly sequential; any failure aborts the run
// and no partial answer is returned.
func (o *Orchestrator) GenerateRefineOutput(ctx context.Context, model string, initial, refine prompt.Template, values map[string]any, input RefineInput) (res *RefineResult, err error) {
	run := o.startRun(model, ModeRefine)
	defer func() {
		var out string
		if res != nil {
			out = res.Output
		}
		o.finishRun(ctx, run, out, err)
	}()

	backend, err := o.registry.Resolve(model)
	if err != nil {
		return nil, err
	}
	if err := validateRefine(initial, refine, values); err != nil {
		return nil, err
	}
	chunks, err := o.chunks(input)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}
	run.Chunks = len(chunks)

	logger := o.logger.With().Str("run_id", run.ID).Str("model", model).Logger()
	answer := ""
	steps := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vals := maps.Clone(values)
		if vals == nil {
			vals = map[string]any{}
		}
		vals[models.ContextKey] = chunk.Content
		tmpl := initial
		if i > 0 {
			tmpl = refine
			vals[models.ExistingAnswerKey] = answer
		}

		text, err := tmpl.Format(tmpl.Bind(vals))
		if err != nil {
			return nil, err
		}
		run.LLMCalls++
		out, err := backend.Generate(ctx, text)
		if err != nil {
			return nil, atChunk(err, i)
		}
		logger.Debug().Int("chunk", i).Int("chunks", len(chunks)).Int("answer_len", len(out)).Msg("Refined answer")

		answer = out
		steps = append(steps, out)
	}

	return &RefineResult{Output: answer, IntermediateSteps: steps, Chunks: len(chunks)}, nil
}

func validateRefine(initial, refine prompt.Template, values map[string]any) error {
	for _, key := range reservedKeys {
		if _, ok := values[key]; ok {
			return &RefineReservedChainValuesError{Reserved: reservedKeys}
		}
	}

	if !initial.RequiresVariable(models.ContextKey) {
		return &prompt.MissingInputVariableError{Template: prompt.InitialPromptTemplate, Variable: models.ContextKey}
	}
	for _, key := range reservedKeys {
		if !refine.RequiresVariable(key) {
			return &prompt.MissingInputVariableError{Template: prompt.RefinePromptTemplate, Variable: key}
		}
	}

	// The reserved keys are filled per chunk; everything else must come from
	// the caller.
	first := withReserved(values, models.ContextKey)
	if err := initial.Validate(initial.Bind(first)); err != nil {
		return err
	}
	later := withReserved(values, reservedKeys...)
	return refine.Validate(refine.Bind(later))
}

func withReserved(values map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(values)+len(keys))
	maps.Copy(out, values)
	for _, key := range keys {
		out[key] = ""
	}
	return out
}

func (o *Orchestrator) chunks(input RefineInput) ([]models.Chunk, error) {
	if len(input.Documents) > 0 {
		return parser.SplitDocuments(input.Documents), nil
	}

	size, overlap := input.ChunkSize, input.Overlap
	if size == 0 && overlap == 0 {
		size, overlap = o.chunkSize, o.overlap
	}
	chunker, err := parser.NewChunker(size, overlap)
	if err != nil {
		return nil, err
	}
	return chunker.Split(input.Document)
}
