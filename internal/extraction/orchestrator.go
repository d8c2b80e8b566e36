// Package extraction runs prompt templates against the configured models,
// either once over a short text or chunk by chunk over a long one.
package extraction

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"organized-data/internal/helper"
	"organized-data/internal/llmservice"
	"organized-data/internal/models"
	"organized-data/internal/prompt"
)

type Mode string

const (
	ModeSingle Mode = "single"
	ModeRefine Mode = "refine"
)

// Run summarizes one extraction for a Recorder.
type Run struct {
	ID       string
	Model    string
	Mode     Mode
	Chunks   int
	LLMCalls int
	Output   string
	Err      error
	Started  time.Time
	Duration time.Duration
}

// Recorder receives every finished run. Recording failures are logged and
// never change the extraction result.
type Recorder interface {
	Record(ctx context.Context, run Run) error
}

type Orchestrator struct {
	registry  *llmservice.Registry
	chunkSize int
	overlap   int
	recorder  Recorder
	logger    zerolog.Logger
}

type Option func(*Orchestrator)

// WithChunking sets the chunking used when a refine call does not choose
// its own.
func WithChunking(chunkSize, overlap int) Option {
	return func(o *Orchestrator) {
		o.chunkSize = chunkSize
		o.overlap = overlap
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func New(registry *llmservice.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:  registry,
		chunkSize: models.DefaultChunkSize,
		overlap:   models.DefaultChunkOverlap,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Models() []string {
	return o.registry.Models()
}

// GenerateOutput renders tmpl with values and returns the raw model output
// of a single call. Unknown models and unbound placeholders fail before any
// call is made.
func (o *Orchestrator) GenerateOutput(ctx context.Context, model string, tmpl prompt.Template, values map[string]any) (out string, err error) {
	run := o.startRun(model, ModeSingle)
	defer func() { o.finishRun(ctx, run, out, err) }()

	backend, err := o.registry.Resolve(model)
	if err != nil {
		return "", err
	}
	text, err := tmpl.Format(values)
	if err != nil {
		return "", err
	}

	run.Chunks = 1
	run.LLMCalls = 1
	return backend.Generate(ctx, text)
}

func (o *Orchestrator) startRun(model string, mode Mode) *Run {
	id, err := helper.GenerateUUID()
	if err != nil {
		o.logger.Warn().Err(err).Msg("Could not generate run id")
	}
	return &Run{ID: id, Model: model, Mode: mode, Started: time.Now()}
}

func (o *Orchestrator) finishRun(ctx context.Context, run *Run, out string, err error) {
	run.Output = out
	run.Err = err
	run.Duration = time.Since(run.Started)

	ev := o.logger.Info()
	if err != nil {
		ev = o.logger.Warn().Err(err)
	}
	ev.Str("run_id", run.ID).
		Str("model", run.Model).
		Str("mode", string(run.Mode)).
		Int("chunks", run.Chunks).
		Int("llm_calls", run.LLMCalls).
		Dur("elapsed", run.Duration).
		Msg("Extraction finished")

	if o.recorder == nil {
		return
	}
	if rerr := o.recorder.Record(context.WithoutCancel(ctx), *run); rerr != nil {
		o.logger.Error().Err(rerr).Str("run_id", run.ID).Msg("Error recording extraction run")
	}
}
