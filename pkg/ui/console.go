package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/arthur-debert/modman/pkg/commands"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/pterm/pterm"
)

// ConsoleRenderer lays results out as lines for a human reader. The text
// variant uses the same layout with an ASCII color profile and bracketed
// labels instead of pterm badges.
type ConsoleRenderer struct {
	w      io.Writer
	styles Styles
	rich   bool
	// Width wraps markdown readmes; zero leaves them unwrapped.
	Width int
}

// NewTerminalRenderer renders with colors, badges and glamour readmes.
func NewTerminalRenderer(w io.Writer) *ConsoleRenderer {
	return &ConsoleRenderer{w: w, styles: NewStyles(lipgloss.NewRenderer(w)), rich: true, Width: 80}
}

// NewTextRenderer renders without any escape sequences.
func NewTextRenderer(w io.Writer) *ConsoleRenderer {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(termenv.Ascii)
	return &ConsoleRenderer{w: w, styles: NewStyles(r)}
}

func (r *ConsoleRenderer) RenderResult(result interface{}) error {
	var b strings.Builder
	switch v := result.(type) {
	case *commands.OperationResult:
		r.operations(&b, v)
	case *commands.ListResult:
		r.list(&b, v)
	case *commands.OwnerResult:
		r.owner(&b, v)
	case *commands.VerifyResult:
		r.verify(&b, v)
	case *commands.ArchiveListing:
		r.listing(&b, v)
	case *commands.InfoResult:
		r.info(&b, v)
	default:
		fmt.Fprintf(&b, "%+v\n", result)
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *ConsoleRenderer) RenderError(err error) error {
	_, werr := fmt.Fprintf(r.w, "%s %s\n", r.badge(pterm.Error), err)
	return werr
}

func (r *ConsoleRenderer) RenderMessage(msg string) error {
	_, err := fmt.Fprintf(r.w, "%s %s\n", r.badge(pterm.Info), msg)
	return err
}

func (r *ConsoleRenderer) badge(p pterm.PrefixPrinter) string {
	label := strings.TrimSpace(p.Prefix.Text)
	if !r.rich {
		return "[" + label + "]"
	}
	return p.Prefix.Style.Sprint(" " + label + " ")
}

func (r *ConsoleRenderer) operations(b *strings.Builder, res *commands.OperationResult) {
	for _, op := range res.Results {
		status := r.badge(pterm.Success)
		if !op.Success {
			status = r.badge(pterm.Error)
		}
		fmt.Fprintf(b, "%s %s\n", status, r.styles.Mod.Render(op.Mod))
		for _, line := range strings.Split(op.Message, "\n") {
			fmt.Fprintf(b, "  %s\n", line)
		}
		if op.Success {
			if c := counts(op.Files, op.Settings, op.Shaders); c != "" {
				fmt.Fprintf(b, "  %s\n", r.styles.Muted.Render(c))
			}
		}
		for _, p := range op.Skipped {
			fmt.Fprintf(b, "  %s %s\n", r.styles.Muted.Render("kept"), r.styles.Path.Render(p))
		}
		for _, w := range op.Warnings {
			fmt.Fprintf(b, "  %s %s\n", r.badge(pterm.Warning), r.styles.Warning.Render(w))
		}
	}
	if n := res.Failed(); n > 0 && len(res.Results) > 1 {
		fmt.Fprintf(b, "\n%s\n", r.styles.Error.Render(fmt.Sprintf("%d of %d failed", n, len(res.Results))))
	}
}

func (r *ConsoleRenderer) list(b *strings.Builder, res *commands.ListResult) {
	if len(res.Mods) == 0 {
		fmt.Fprintln(b, r.styles.Muted.Render("No mods found"))
		return
	}
	section := ""
	for _, m := range res.Mods {
		title := "Available"
		if m.Installed {
			title = "Installed"
		}
		if title != section {
			if section != "" {
				b.WriteString("\n")
			}
			fmt.Fprintln(b, r.styles.Title.Render(title))
			section = title
		}
		line := "  " + r.styles.Mod.Render(m.Name)
		if m.Version != "" {
			line += " " + r.styles.Value.Render(m.Version)
		}
		if m.Installed {
			if c := counts(m.Files, m.Settings, m.Shaders); c != "" {
				line += "  " + r.styles.Muted.Render(c)
			}
			if m.Archive == "" {
				line += "  " + r.styles.Warning.Render("archive missing")
			}
		}
		fmt.Fprintln(b, line)
	}
}

func (r *ConsoleRenderer) owner(b *strings.Builder, res *commands.OwnerResult) {
	fmt.Fprintln(b, r.styles.Title.Render(res.Resource))
	if len(res.Layers) == 0 {
		fmt.Fprintf(b, "  %s\n", r.styles.Muted.Render("not owned by any mod"))
		return
	}
	for i := len(res.Layers) - 1; i >= 0; i-- {
		l := res.Layers[i]
		name := r.styles.Mod.Render(l.Owner)
		if l.Original {
			name = r.styles.Muted.Render("original")
		}
		marker := " "
		if i == len(res.Layers)-1 {
			marker = "*"
		}
		fmt.Fprintf(b, "%s %s  %s\n", marker, name, r.styles.Value.Render(l.Value))
	}
}

func (r *ConsoleRenderer) verify(b *strings.Builder, res *commands.VerifyResult) {
	for _, p := range res.Problems {
		fmt.Fprintf(b, "%s %s  %s %s\n", r.badge(pterm.Error), r.styles.Path.Render(p.Path), r.styles.Error.Render(p.Problem), r.styles.Muted.Render("("+p.Owner+")"))
	}
	if res.OK() {
		fmt.Fprintf(b, "%s %s\n", r.badge(pterm.Success), plural(res.Checked, "file")+" match the install log")
		return
	}
	fmt.Fprintf(b, "\n%s\n", r.styles.Error.Render(fmt.Sprintf("%s, %s checked", plural(len(res.Problems), "problem"), plural(res.Checked, "file"))))
}

func (r *ConsoleRenderer) listing(b *strings.Builder, res *commands.ArchiveListing) {
	title := res.Path
	if res.Dir != "" {
		title += " " + res.Dir
	}
	fmt.Fprintf(b, "%s %s\n", r.styles.Title.Render(title), r.styles.Muted.Render("("+res.Format+")"))
	for _, e := range res.Entries {
		switch {
		case e.Dir:
			fmt.Fprintf(b, "  %s\n", r.styles.Path.Render(e.Name))
		case e.Nested:
			fmt.Fprintf(b, "  %s  %s\n", r.styles.Mod.Render(e.Name), r.styles.Muted.Render(fmt.Sprintf("%d bytes, archive", e.Size)))
		default:
			fmt.Fprintf(b, "  %s  %s\n", e.Name, r.styles.Muted.Render(fmt.Sprintf("%d bytes", e.Size)))
		}
	}
}

func (r *ConsoleRenderer) info(b *strings.Builder, res *commands.InfoResult) {
	title := r.styles.Title.Render(res.Name)
	if res.Version != "" {
		title += " " + r.styles.Value.Render(res.Version)
	}
	fmt.Fprintln(b, title)

	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(b, "  %-12s %s\n", label, value)
		}
	}
	field("Author", res.Author)
	field("Website", res.Website)
	field("Email", res.Email)
	field("Archive", r.styles.Path.Render(res.Path))
	field("Key", res.Key)
	installed := "no"
	if res.Installed {
		installed = "yes"
	}
	field("Installed", installed)
	field("Files", fmt.Sprint(res.Files))
	field("Prefix", res.PathPrefix)
	switch {
	case res.HasScript:
		field("Script", "yes")
	case res.LegacyScript != "":
		field("Script", r.styles.Warning.Render(res.LegacyScript+" (not supported)"))
	}
	field("Screenshot", res.Screenshot)
	if res.Description != "" {
		fmt.Fprintf(b, "\n%s\n", res.Description)
	}

	if res.Readme != nil {
		fmt.Fprintf(b, "\n%s\n", r.styles.Title.Render(res.Readme.Path))
		text := res.Readme.Text
		if r.rich {
			text = RenderReadme(text, res.Readme.Format, r.Width)
		}
		b.WriteString(strings.TrimRight(text, "\n") + "\n")
	}
}

func counts(files, settings, shaders int) string {
	var parts []string
	if files > 0 {
		parts = append(parts, plural(files, "file"))
	}
	if settings > 0 {
		parts = append(parts, plural(settings, "setting"))
	}
	if shaders > 0 {
		parts = append(parts, plural(shaders, "shader"))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
