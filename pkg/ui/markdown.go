package ui

import (
	"github.com/charmbracelet/glamour"
)

// RenderReadme formats a mod readme for the terminal. Markdown goes
// through glamour; other formats, and anything glamour rejects, are
// returned as they are.
func RenderReadme(text, format string, width int) string {
	if format != "md" {
		return text
	}

	options := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		options = append(options, glamour.WithWordWrap(width))
	}
	renderer, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return text
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return rendered
}
