package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	accentColor  = lipgloss.AdaptiveColor{Light: "#007ACC", Dark: "#3D9EFF"}
	headingColor = lipgloss.AdaptiveColor{Light: "#212529", Dark: "#F8F9FA"}
	mutedColor   = lipgloss.AdaptiveColor{Light: "#6C757D", Dark: "#ADB5BD"}
	successColor = lipgloss.AdaptiveColor{Light: "#28A745", Dark: "#4CDD76"}
	errorColor   = lipgloss.AdaptiveColor{Light: "#DC3545", Dark: "#FF6B7D"}
	warningColor = lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFD54F"}
)

// Styles are the lipgloss styles of one output stream. They are bound to
// a renderer so the color profile follows the stream, not os.Stdout.
type Styles struct {
	Title   lipgloss.Style
	Mod     lipgloss.Style
	Path    lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
}

// NewStyles builds the palette on r.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:   r.NewStyle().Foreground(headingColor).Bold(true),
		Mod:     r.NewStyle().Foreground(accentColor).Bold(true),
		Path:    r.NewStyle().Foreground(accentColor),
		Value:   r.NewStyle().Foreground(headingColor),
		Muted:   r.NewStyle().Foreground(mutedColor),
		Success: r.NewStyle().Foreground(successColor).Bold(true),
		Error:   r.NewStyle().Foreground(errorColor).Bold(true),
		Warning: r.NewStyle().Foreground(warningColor),
	}
}
