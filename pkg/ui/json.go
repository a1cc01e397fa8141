package ui

import (
	"encoding/json"
	"io"
)

// JSONRenderer encodes every result as one indented JSON document.
type JSONRenderer struct {
	encoder *json.Encoder
}

func NewJSONRenderer(w io.Writer) *JSONRenderer {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return &JSONRenderer{encoder: encoder}
}

func (r *JSONRenderer) RenderResult(result interface{}) error {
	return r.encoder.Encode(result)
}

func (r *JSONRenderer) RenderError(err error) error {
	return r.encoder.Encode(map[string]string{"error": err.Error()})
}

func (r *JSONRenderer) RenderMessage(msg string) error {
	return r.encoder.Encode(map[string]string{"message": msg})
}
