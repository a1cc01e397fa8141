package conflict

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/arthur-debert/modman/pkg/errors"
)

// ConsolePrompter asks on a terminal.
type ConsolePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsolePrompter creates a prompter reading answers from in.
func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{in: bufio.NewReader(in), out: out}
}

var fileAnswers = map[string]Result{
	"y":  ApplyOnce,
	"n":  SkipOnce,
	"ya": ApplyAll,
	"na": SkipAll,
	"yf": ApplyFolder,
	"nf": SkipFolder,
	"ym": ApplyMod,
	"nm": SkipMod,
}

var shaderAnswers = map[string]bool{
	"y":   true,
	"yes": true,
	"n":   false,
	"no":  false,
}

var textAnswers = map[string]TextResult{
	"y":  Yes,
	"n":  No,
	"ya": YesToAll,
	"na": NoToAll,
}

// OverwriteFile shows the file question. An empty answer means SkipOnce.
func (p *ConsolePrompter) OverwriteFile(c FileConflict) (Result, error) {
	if c.Owner != "" {
		_, _ = fmt.Fprintf(p.out, "Data file '%s' has already been installed by '%s'\n", c.Path, c.Owner)
	} else {
		_, _ = fmt.Fprintf(p.out, "Data file '%s' already exists.\n", c.Path)
	}
	choices := "[y]es [n]o [ya] yes to all [na] no to all [yf] yes to folder [nf] no to folder"
	if c.Owner != "" {
		choices += " [ym] yes to mod [nm] no to mod"
	}

	for {
		answer, err := p.ask("Overwrite with this mod's file? " + choices + ": ")
		if err != nil {
			return SkipOnce, err
		}
		if answer == "" {
			return SkipOnce, nil
		}
		if r, ok := fileAnswers[answer]; ok && (c.Owner != "" || (r != ApplyMod && r != SkipMod)) {
			return r, nil
		}
		_, _ = fmt.Fprintf(p.out, "Unrecognised answer %q\n", answer)
	}
}

// OverwriteSetting shows the settings question. An empty answer means No.
func (p *ConsolePrompter) OverwriteSetting(c SettingConflict) (TextResult, error) {
	if c.Owner != "" {
		_, _ = fmt.Fprintf(p.out, "Key '%s' in section '%s' of %s has already been overwritten by '%s'\n",
			c.Key.Key, c.Key.Section, c.Key.File, c.Owner)
	} else {
		_, _ = fmt.Fprintf(p.out, "The mod wants to modify key '%s' in section '%s' of %s.\n",
			c.Key.Key, c.Key.Section, c.Key.File)
	}
	_, _ = fmt.Fprintf(p.out, "Current value '%s', new value '%s'\n", c.OldValue, c.NewValue)

	for {
		answer, err := p.ask("Allow the change? [y]es [n]o [ya] yes to all [na] no to all: ")
		if err != nil {
			return No, err
		}
		if answer == "" {
			return No, nil
		}
		if r, ok := textAnswers[answer]; ok {
			return r, nil
		}
		_, _ = fmt.Fprintf(p.out, "Unrecognised answer %q\n", answer)
	}
}

// OverwriteShader shows the shader question. An empty answer means no.
func (p *ConsolePrompter) OverwriteShader(c ShaderConflict) (bool, error) {
	_, _ = fmt.Fprintf(p.out, "Shader '%s' in package %d has already been modified by '%s'\n",
		c.Key.Name, c.Key.Package, c.Owner)
	for {
		answer, err := p.ask("Overwrite the changes? [y/N]: ")
		if err != nil {
			return false, err
		}
		if answer == "" {
			return false, nil
		}
		if r, ok := shaderAnswers[answer]; ok {
			return r, nil
		}
		_, _ = fmt.Fprintf(p.out, "Unrecognised answer %q\n", answer)
	}
}

func (p *ConsolePrompter) ask(question string) (string, error) {
	_, _ = fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", errors.Wrap(err, errors.ErrCancelled, "failed to read user input")
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}

// ScriptedPrompter replays fixed answers, for non-interactive runs and tests.
// When a queue runs out the matching Default is used.
type ScriptedPrompter struct {
	Files   []Result
	Texts   []TextResult
	Shaders []bool

	DefaultFile   Result
	DefaultText   TextResult
	DefaultShader bool

	// Asked records every file path and settings key that was prompted for.
	Asked []string
}

func (s *ScriptedPrompter) OverwriteFile(c FileConflict) (Result, error) {
	s.Asked = append(s.Asked, c.Path)
	if len(s.Files) == 0 {
		return s.DefaultFile, nil
	}
	r := s.Files[0]
	s.Files = s.Files[1:]
	return r, nil
}

func (s *ScriptedPrompter) OverwriteSetting(c SettingConflict) (TextResult, error) {
	s.Asked = append(s.Asked, c.Key.String())
	if len(s.Texts) == 0 {
		return s.DefaultText, nil
	}
	r := s.Texts[0]
	s.Texts = s.Texts[1:]
	return r, nil
}

func (s *ScriptedPrompter) OverwriteShader(c ShaderConflict) (bool, error) {
	s.Asked = append(s.Asked, c.Key.String())
	if len(s.Shaders) == 0 {
		return s.DefaultShader, nil
	}
	r := s.Shaders[0]
	s.Shaders = s.Shaders[1:]
	return r, nil
}
