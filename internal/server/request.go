package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"organized-data/internal/models"
)

type SchemaRequest struct {
	Text       string          `json:"text"`
	Model      string          `json:"model"`
	JSONSchema json.RawMessage `json:"jsonSchema"`
	Refine     RefineOption    `json:"refine"`
}

type SchemaResponse struct {
	Model  string `json:"model"`
	Refine bool   `json:"refine"`
	Output string `json:"output"`
}

// RefineOption accepts either a boolean or an object with chunkSize and
// overlap. An object turns refine on.
type RefineOption struct {
	Enabled bool
	Params  models.RefineParams
}

func (o *RefineOption) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*o = RefineOption{}
		return nil
	}
	var enabled bool
	if err := json.Unmarshal(data, &enabled); err == nil {
		*o = RefineOption{Enabled: enabled}
		return nil
	}
	var params models.RefineParams
	if err := json.Unmarshal(data, &params); err != nil {
		return errors.New("refine must be a boolean or an object with chunkSize and overlap")
	}
	*o = RefineOption{Enabled: true, Params: params}
	return nil
}

func (o RefineOption) MarshalJSON() ([]byte, error) {
	if o.Enabled && o.Params != (models.RefineParams{}) {
		return json.Marshal(o.Params)
	}
	return json.Marshal(o.Enabled)
}

func (r *SchemaRequest) validate() error {
	if r.Text == "" {
		return errors.New("text is required")
	}
	if r.Model == "" {
		return errors.New("model is required")
	}
	if len(r.JSONSchema) == 0 {
		return errors.New("jsonSchema is required")
	}
	if p := r.Refine.Params; r.Refine.Enabled && p != (models.RefineParams{}) {
		if p.ChunkSize <= 0 || p.Overlap < 0 || p.ChunkSize <= p.Overlap {
			return fmt.Errorf("refine needs chunkSize > 0, overlap >= 0 and chunkSize > overlap, got %d and %d", p.ChunkSize, p.Overlap)
		}
	}
	return nil
}

// schemaText accepts the schema either as a JSON object or as a string that
// holds one.
func (r *SchemaRequest) schemaText() (string, error) {
	var s string
	if err := json.Unmarshal(r.JSONSchema, &s); err == nil {
		if !json.Valid([]byte(s)) {
			return "", errors.New("jsonSchema must be valid json")
		}
		return s, nil
	}
	return string(r.JSONSchema), nil
}
