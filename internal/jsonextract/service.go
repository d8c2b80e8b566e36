// Package jsonextract turns free text into a JSON document that conforms to
// a caller supplied JSON schema.
package jsonextract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"organized-data/internal/extraction"
	"organized-data/internal/models"
	"organized-data/internal/prompt"
)

var (
	codeFence = regexp.MustCompile(models.CodeFenceRegex)
	thinkTag  = regexp.MustCompile(models.ThinkTag)

	schemaPrompt        = prompt.Must(models.JSONSchemaPromptTemplate, []string{models.ContextKey, models.JSONSchemaKey})
	schemaInitialPrompt = prompt.Must(models.JSONSchemaInitialPromptTemplate, []string{models.ContextKey, models.JSONSchemaKey})
	schemaRefinePrompt  = prompt.Must(models.JSONSchemaRefinePromptTemplate, []string{models.ContextKey, models.ExistingAnswerKey, models.JSONSchemaKey})
)

type Service struct {
	orchestrator *extraction.Orchestrator
	logger       zerolog.Logger
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(o *extraction.Orchestrator, opts ...Option) *Service {
	s := &Service{orchestrator: o, logger: log.Logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Models() []string {
	return s.orchestrator.Models()
}

// ExtractWithSchema asks model for the data of text in one call and returns
// the compacted JSON answer.
func (s *Service) ExtractWithSchema(ctx context.Context, text, model, jsonSchema string) (json.RawMessage, error) {
	compiled, err := compileSchema(jsonSchema)
	if err != nil {
		return nil, err
	}

	out, err := s.orchestrator.GenerateOutput(ctx, model, schemaPrompt, map[string]any{
		models.ContextKey:    text,
		models.JSONSchemaKey: jsonSchema,
	})
	if err != nil {
		return nil, err
	}
	return s.parseOutput(out, compiled)
}

// ExtractWithSchemaAndRefine walks text chunk by chunk, refining the JSON
// answer at every step. Zero params select the default chunking.
func (s *Service) ExtractWithSchemaAndRefine(ctx context.Context, text, model, jsonSchema string, params models.RefineParams) (json.RawMessage, error) {
	compiled, err := compileSchema(jsonSchema)
	if err != nil {
		return nil, err
	}

	res, err := s.orchestrator.GenerateRefineOutput(ctx, model, schemaInitialPrompt, schemaRefinePrompt,
		map[string]any{models.JSONSchemaKey: jsonSchema},
		extraction.RefineInput{Document: text, ChunkSize: params.ChunkSize, Overlap: params.Overlap})
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("model", model).Int("chunks", res.Chunks).Msg("Refined json extraction")
	return s.parseOutput(res.Output, compiled)
}

func compileSchema(jsonSchema string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(jsonSchema)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSONSchema, err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSONSchema, err)
	}
	return compiled, nil
}

func (s *Service) parseOutput(out string, compiled *jsonschema.Schema) (json.RawMessage, error) {
	cleaned := CleanOutput(out)

	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		s.logger.Warn().Err(err).Msg("Model answer is not json")
		return nil, &InvalidJSONOutputError{Output: out, Err: err}
	}
	if err := compiled.Validate(v); err != nil {
		s.logger.Warn().Err(err).Msg("Model answer does not match the schema")
		return nil, &InvalidJSONOutputError{Output: out, Err: err}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(cleaned)); err != nil {
		return nil, &InvalidJSONOutputError{Output: out, Err: err}
	}
	return buf.Bytes(), nil
}

// CleanOutput drops reasoning blocks and a surrounding markdown code fence
// from a model answer.
func CleanOutput(out string) string {
	out = thinkTag.ReplaceAllString(out, "")
	if m := codeFence.FindStringSubmatch(out); m != nil {
		return m[1]
	}
	return strings.TrimSpace(out)
}
