package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organized-data/internal/extraction"
	"organized-data/internal/jsonextract"
	"organized-data/internal/llmservice"
	"organized-data/internal/llmservice/llmtest"
	"organized-data/internal/models"
	"organized-data/internal/parser"
	"organized-data/internal/prompt"
)

const (
	testModel    = "llama-3.1-70b-versatile"
	personSchema = `{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`
)

func newTestServer(t *testing.T, model *llmtest.Model, opts ...Option) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := llmservice.NewMetrics(reg)
	registry := llmservice.NewRegistry(map[string]*llmservice.Backend{
		testModel: llmservice.NewBackend(testModel, model,
			llmservice.WithMaxRetries(0),
			llmservice.WithMetrics(metrics),
			llmservice.WithLogger(zerolog.Nop())),
	})
	o := extraction.New(registry, extraction.WithLogger(zerolog.Nop()))
	svc := jsonextract.NewService(o, jsonextract.WithLogger(zerolog.Nop()))

	srv := httptest.NewServer(NewRouter(svc, append([]Option{WithGatherer(reg), WithLogger(zerolog.Nop())}, opts...)...))
	t.Cleanup(srv.Close)
	return srv
}

func postSchema(t *testing.T, srv *httptest.Server, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/organized-data/json/schema", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, llmtest.Echo())

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
}

func TestListModels(t *testing.T) {
	srv := newTestServer(t, llmtest.Echo())

	resp, err := http.Get(srv.URL + "/v1/models")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{testModel}, out["models"])
}

func TestExtractSchema(t *testing.T) {
	model := llmtest.Script("```json\n{\"name\": \"John Doe\"}\n```")
	srv := newTestServer(t, model)

	body := fmt.Sprintf(`{"text":"My name is John Doe.","model":%q,"jsonSchema":%q}`, testModel, personSchema)
	status, out := postSchema(t, srv, body)
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, testModel, out["model"])
	assert.Equal(t, false, out["refine"])
	assert.JSONEq(t, `{"name":"John Doe"}`, out["output"].(string))
	assert.Equal(t, 1, model.Calls())

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	metrics, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "llm_calls_total")
}

func TestExtractSchema_SchemaAsObjectWithRefine(t *testing.T) {
	model := llmtest.Script(`{"name": "John"}`, `{"name": "John Doe"}`)
	srv := newTestServer(t, model)

	text := strings.Repeat("a", 60) + "\n\n" + strings.Repeat("b", 60)
	body := fmt.Sprintf(`{"text":%q,"model":%q,"jsonSchema":%s,"refine":{"chunkSize":100,"overlap":0}}`, text, testModel, personSchema)
	status, out := postSchema(t, srv, body)
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, true, out["refine"])
	assert.JSONEq(t, `{"name":"John Doe"}`, out["output"].(string))
	assert.Equal(t, 2, model.Calls())
}

func TestExtractSchema_Errors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		answer string
		status int
	}{
		{"malformed body", `{"text":`, "", http.StatusBadRequest},
		{"missing text", fmt.Sprintf(`{"model":%q,"jsonSchema":%q}`, testModel, personSchema), "", http.StatusBadRequest},
		{"schema string not json", fmt.Sprintf(`{"text":"t","model":%q,"jsonSchema":"nope"}`, testModel), "", http.StatusBadRequest},
		{"bad refine type", fmt.Sprintf(`{"text":"t","model":%q,"jsonSchema":%q,"refine":"yes"}`, testModel, personSchema), "", http.StatusBadRequest},
		{"bad refine params", fmt.Sprintf(`{"text":"t","model":%q,"jsonSchema":%q,"refine":{"chunkSize":10,"overlap":20}}`, testModel, personSchema), "", http.StatusBadRequest},
		{"unknown model", fmt.Sprintf(`{"text":"t","model":"gpt-4","jsonSchema":%q}`, personSchema), "", http.StatusBadRequest},
		{"invalid schema", fmt.Sprintf(`{"text":"t","model":%q,"jsonSchema":{"type":12}}`, testModel), "", http.StatusBadRequest},
		{"invalid output", fmt.Sprintf(`{"text":"t","model":%q,"jsonSchema":%q}`, testModel, personSchema), "I could not find a name.", http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, llmtest.Script(tc.answer))

			status, out := postSchema(t, srv, tc.body)
			assert.Equal(t, tc.status, status)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestExtractSchema_BackendFailureHidesCause(t *testing.T) {
	model := llmtest.New(func(context.Context, string, int) (string, error) {
		return "", errors.New("dial tcp 10.0.0.1:443: connection refused")
	})
	srv := newTestServer(t, model)

	body := fmt.Sprintf(`{"text":"t","model":%q,"jsonSchema":%q}`, testModel, personSchema)
	status, out := postSchema(t, srv, body)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal Server Error", out["error"])
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&llmservice.LLMNotAvailableError{Model: "x"}, http.StatusBadRequest},
		{&prompt.FormatError{Missing: []string{"a"}}, http.StatusBadRequest},
		{&prompt.MissingInputVariableError{Template: prompt.RefinePromptTemplate, Variable: "context"}, http.StatusBadRequest},
		{&extraction.RefineReservedChainValuesError{}, http.StatusBadRequest},
		{extraction.ErrEmptyDocument, http.StatusBadRequest},
		{&parser.ChunkingConfigError{ChunkSize: 1, Overlap: 1}, http.StatusBadRequest},
		{&jsonextract.InvalidJSONOutputError{Err: errors.New("x")}, http.StatusUnprocessableEntity},
		{&llmservice.BackendInvocationError{Model: "x", Chunk: 2, Err: errors.New("boom")}, http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusInternalServerError},
		{parser.ErrPDFNotParsed, http.StatusUnprocessableEntity},
		{parser.ErrPDFExtension, http.StatusBadRequest},
		{parser.ErrPDFSize, http.StatusBadRequest},
		{parser.ErrPDFMagicNumber, http.StatusBadRequest},
		{fmt.Errorf("%w: status 404", parser.ErrPDFFetch), http.StatusBadRequest},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, statusFor(tc.err), tc.err.Error())
	}
}

func TestRefineOption(t *testing.T) {
	cases := map[string]RefineOption{
		`true`:                           {Enabled: true},
		`false`:                          {},
		`null`:                           {},
		`{"chunkSize":500,"overlap":50}`: {Enabled: true, Params: models.RefineParams{ChunkSize: 500, Overlap: 50}},
	}
	for in, want := range cases {
		var got RefineOption
		require.NoError(t, json.Unmarshal([]byte(in), &got), in)
		assert.Equal(t, want, got, in)

		if in != "null" {
			b, err := json.Marshal(got)
			require.NoError(t, err)
			assert.JSONEq(t, in, string(b))
		}
	}

	var got RefineOption
	assert.Error(t, json.Unmarshal([]byte(`"yes"`), &got))
}

func TestExtractSchema_BodyTooLarge(t *testing.T) {
	model := llmtest.Echo()
	srv := newTestServer(t, model, WithMaxBodyBytes(64))

	body := fmt.Sprintf(`{"text":%q,"model":%q,"jsonSchema":%q}`, strings.Repeat("x", 200), testModel, personSchema)
	status, out := postSchema(t, srv, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Contains(t, out["error"], "64 bytes")
	assert.Equal(t, 0, model.Calls())
}
