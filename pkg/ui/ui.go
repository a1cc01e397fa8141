// Package ui renders command results for the terminal, as plain text or
// as JSON.
package ui

import (
	"io"
	"os"

	"github.com/arthur-debert/modman/pkg/errors"
)

// Renderer writes command results, errors and messages to one stream.
type Renderer interface {
	// RenderResult renders a result returned by pkg/commands.
	RenderResult(result interface{}) error
	RenderError(err error) error
	RenderMessage(msg string) error
}

// NewRenderer creates a renderer for format. FormatAuto inspects w when it
// is a file and falls back to terminal output otherwise.
func NewRenderer(format Format, w io.Writer) (Renderer, error) {
	switch format {
	case FormatAuto:
		if f, ok := w.(*os.File); ok {
			return NewRenderer(DetectFormat(f), w)
		}
		return NewRenderer(FormatTerminal, w)
	case FormatTerminal:
		return NewTerminalRenderer(w), nil
	case FormatText:
		return NewTextRenderer(w), nil
	case FormatJSON:
		return NewJSONRenderer(w), nil
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown format: %v", format)
	}
}
