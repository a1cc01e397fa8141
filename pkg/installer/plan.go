package installer

import (
	"bytes"
	"encoding/base64"
	"io"

	"github.com/arthur-debert/modman/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Plan is a mod's fomod/script.yaml: an ordered list of steps run through
// the ScriptAPI.
type Plan struct {
	Steps []Step `yaml:"steps"`
}

// Step holds exactly one action.
type Step struct {
	Install       string       `yaml:"install,omitempty"`
	InstallFolder string       `yaml:"install_folder,omitempty"`
	Copy          *CopyStep    `yaml:"copy,omitempty"`
	Write         *WriteStep   `yaml:"write,omitempty"`
	EditSetting   *SettingStep `yaml:"edit_setting,omitempty"`
	EditShader    *ShaderStep  `yaml:"edit_shader,omitempty"`
	// Optional skips install, copy and edit_shader steps whose source file
	// is not in the mod instead of failing.
	Optional bool `yaml:"optional,omitempty"`
}

type CopyStep struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// WriteStep generates a data file from Text, or from Base64 for binary content.
type WriteStep struct {
	Path   string `yaml:"path"`
	Text   string `yaml:"text,omitempty"`
	Base64 string `yaml:"base64,omitempty"`
}

type SettingStep struct {
	File    string `yaml:"file"`
	Section string `yaml:"section"`
	Key     string `yaml:"key"`
	Value   string `yaml:"value"`
}

// ShaderStep replaces a shader with the bytes of a file in the mod.
type ShaderStep struct {
	Package int    `yaml:"package"`
	Name    string `yaml:"name"`
	From    string `yaml:"from"`
}

// ParsePlan decodes and validates an install plan. Unknown keys are errors.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.ErrScript, "install plan is not valid")
	}
	for i, s := range plan.Steps {
		if err := s.validate(); err != nil {
			return nil, errors.Wrapf(err, errors.ErrScript, "step %d", i+1)
		}
	}
	return &plan, nil
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{
		s.Install != "",
		s.InstallFolder != "",
		s.Copy != nil,
		s.Write != nil,
		s.EditSetting != nil,
		s.EditShader != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

func (s Step) validate() error {
	if n := s.actions(); n != 1 {
		return errors.Newf(errors.ErrScript, "a step needs exactly one action, found %d", n)
	}
	switch {
	case s.Copy != nil && (s.Copy.From == "" || s.Copy.To == ""):
		return errors.New(errors.ErrScript, "copy needs from and to")
	case s.Write != nil && s.Write.Path == "":
		return errors.New(errors.ErrScript, "write needs a path")
	case s.Write != nil && s.Write.Text != "" && s.Write.Base64 != "":
		return errors.New(errors.ErrScript, "write takes text or base64, not both")
	case s.EditSetting != nil && (s.EditSetting.File == "" || s.EditSetting.Key == ""):
		return errors.New(errors.ErrScript, "edit_setting needs file and key")
	case s.EditShader != nil && (s.EditShader.Name == "" || s.EditShader.From == ""):
		return errors.New(errors.ErrScript, "edit_shader needs name and from")
	}
	return nil
}

// Run executes the plan against api. It stops at the first error.
func (p *Plan) Run(api ScriptAPI) error {
	for i, s := range p.Steps {
		if err := s.run(api); err != nil {
			return errors.Wrapf(err, errors.ErrScript, "install plan failed at step %d", i+1)
		}
	}
	return nil
}

func (s Step) run(api ScriptAPI) error {
	skip := func(from string) bool {
		return s.Optional && !api.ModFileExists(from)
	}

	switch {
	case s.Install != "":
		if skip(s.Install) {
			return nil
		}
		_, err := api.InstallFile(s.Install)
		return err
	case s.InstallFolder != "":
		for _, f := range api.ModFiles(s.InstallFolder) {
			if _, err := api.InstallFile(f); err != nil {
				return err
			}
		}
		return nil
	case s.Copy != nil:
		if skip(s.Copy.From) {
			return nil
		}
		_, err := api.CopyDataFile(s.Copy.From, s.Copy.To)
		return err
	case s.Write != nil:
		data := []byte(s.Write.Text)
		if s.Write.Base64 != "" {
			var err error
			if data, err = base64.StdEncoding.DecodeString(s.Write.Base64); err != nil {
				return errors.Wrapf(err, errors.ErrScript, "invalid base64 for %s", s.Write.Path)
			}
		}
		_, err := api.GenerateDataFile(s.Write.Path, data)
		return err
	case s.EditSetting != nil:
		e := s.EditSetting
		_, err := api.EditSetting(e.File, e.Section, e.Key, e.Value)
		return err
	case s.EditShader != nil:
		e := s.EditShader
		if skip(e.From) {
			return nil
		}
		data, err := api.ReadModFile(e.From)
		if err != nil {
			return err
		}
		_, err = api.EditShader(e.Package, e.Name, data)
		return err
	}
	return errors.New(errors.ErrScript, "empty step")
}
