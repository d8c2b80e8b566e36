// Package server exposes the JSON extraction over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"organized-data/internal/extraction"
	"organized-data/internal/jsonextract"
	"organized-data/internal/llmservice"
	"organized-data/internal/models"
	"organized-data/internal/parser"
	"organized-data/internal/prompt"
)

// Extractor is the part of jsonextract.Service the handlers use.
type Extractor interface {
	Models() []string
	ExtractWithSchema(ctx context.Context, text, model, jsonSchema string) (json.RawMessage, error)
	ExtractWithSchemaAndRefine(ctx context.Context, text, model, jsonSchema string, params models.RefineParams) (json.RawMessage, error)
}

// DefaultMaxBodyBytes bounds JSON request bodies.
const DefaultMaxBodyBytes = 10 << 20

type Option func(*handler)

// WithFetcher sets the fetcher behind the PDF endpoints. Its size cap also
// applies to uploads.
func WithFetcher(f *parser.Fetcher) Option {
	return func(h *handler) { h.fetcher = f }
}

func WithMaxBodyBytes(n int64) Option {
	return func(h *handler) { h.maxBody = n }
}

// WithGatherer serves the metrics of g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *handler) { h.gatherer = g }
}

func WithLogger(l zerolog.Logger) Option {
	return func(h *handler) { h.logger = l }
}

type handler struct {
	extractor Extractor
	fetcher   *parser.Fetcher
	gatherer  prometheus.Gatherer
	logger    zerolog.Logger
	maxBody   int64
}

func NewRouter(extractor Extractor, opts ...Option) *chi.Mux {
	h := &handler{extractor: extractor, logger: log.Logger, maxBody: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(h)
	}
	if h.fetcher == nil {
		h.fetcher = parser.NewFetcher(parser.WithFetchLogger(h.logger))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/models", h.listModels)
		r.Post("/organized-data/json/schema", h.extractSchema)
		r.Post("/parsers/pdf/upload", h.parsePDFUpload)
		r.Post("/parsers/pdf/url", h.parsePDFURL)
	})
	return r
}

// ListenAndServe serves handler on addr until ctx is done, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info().Msg("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (h *handler) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"models": h.extractor.Models()})
}

func (h *handler) extractSchema(w http.ResponseWriter, r *http.Request) {
	var req SchemaRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	schema, err := req.schemaText()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var out json.RawMessage
	if req.Refine.Enabled {
		out, err = h.extractor.ExtractWithSchemaAndRefine(r.Context(), req.Text, req.Model, schema, req.Refine.Params)
	} else {
		out, err = h.extractor.ExtractWithSchema(r.Context(), req.Text, req.Model, schema)
	}
	if err != nil {
		h.writeExtractionError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SchemaResponse{
		Model:  req.Model,
		Refine: req.Refine.Enabled,
		Output: string(out),
	})
}

// decode reads a JSON body of at most maxBody bytes into v and answers the
// request itself when that fails.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *handler) writeExtractionError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := h.logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("Extraction failed")
		writeError(w, status, http.StatusText(status))
		return
	}
	logger.Warn().Err(err).Int("status", status).Msg("Extraction rejected")
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, jsonextract.ErrInvalidJSONOutput),
		errors.Is(err, parser.ErrPDFNotParsed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, llmservice.ErrLLMNotAvailable),
		errors.Is(err, prompt.ErrPromptTemplateFormat),
		errors.Is(err, prompt.ErrMissingInputVariable),
		errors.Is(err, extraction.ErrRefineReservedChainValues),
		errors.Is(err, extraction.ErrEmptyDocument),
		errors.Is(err, parser.ErrChunkingConfig),
		errors.Is(err, jsonextract.ErrInvalidJSONSchema),
		errors.Is(err, parser.ErrPDFExtension),
		errors.Is(err, parser.ErrPDFSize),
		errors.Is(err, parser.ErrPDFMagicNumber),
		errors.Is(err, parser.ErrPDFFetch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("HTTP request")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
