// Package settings reads and edits game settings files (INI). Sections and
// keys are matched case-insensitively while the file keeps the casing it
// was written with.
package settings

import (
	"bytes"
	stderrors "errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/types"
	"gopkg.in/ini.v1"
)

var loadOptions = ini.LoadOptions{
	IgnoreInlineComment:     true,
	SkipUnrecognizableLines: true,
	AllowBooleanKeys:        true,
}

// Document is one parsed settings file.
type Document struct {
	file *ini.File
}

// Parse reads an INI document. Empty input gives an empty document.
func Parse(data []byte) (*Document, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrSettings, "failed to parse settings file")
	}
	return &Document{file: f}, nil
}

func (d *Document) section(name string) *ini.Section {
	for _, s := range d.file.Sections() {
		if strings.EqualFold(s.Name(), name) {
			return s
		}
	}
	return nil
}

func keyIn(s *ini.Section, name string) *ini.Key {
	for _, k := range s.Keys() {
		if strings.EqualFold(k.Name(), name) {
			return k
		}
	}
	return nil
}

// Get returns the value of key in section.
func (d *Document) Get(section, key string) (string, bool) {
	s := d.section(section)
	if s == nil {
		return "", false
	}
	k := keyIn(s, key)
	if k == nil {
		return "", false
	}
	return k.Value(), true
}

// Set writes value, creating the section or key when missing.
func (d *Document) Set(section, key, value string) error {
	s := d.section(section)
	if s == nil {
		var err error
		if s, err = d.file.NewSection(section); err != nil {
			return errors.Wrapf(err, errors.ErrSettings, "failed to add section %s", section)
		}
	}
	if k := keyIn(s, key); k != nil {
		k.SetValue(value)
		return nil
	}
	if _, err := s.NewKey(key, value); err != nil {
		return errors.Wrapf(err, errors.ErrSettings, "failed to add key %s", key)
	}
	return nil
}

// Delete removes key and reports whether it existed.
func (d *Document) Delete(section, key string) bool {
	s := d.section(section)
	if s == nil {
		return false
	}
	k := keyIn(s, key)
	if k == nil {
		return false
	}
	s.DeleteKey(k.Name())
	return true
}

// Bytes renders the document with the library's default layout
// ("key = value"). The game trims the spaces around both sides.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.file.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, errors.ErrSettings, "failed to render settings file")
	}
	return buf.Bytes(), nil
}

// PathResolver maps a logical settings-file name to a path.
type PathResolver func(name string) (string, error)

// Editor reads and writes settings through a filesystem, normally an open
// transaction, so every edit is staged with the rest of the operation.
type Editor struct {
	fsys    types.FS
	resolve PathResolver
}

// NewEditor creates an Editor.
func NewEditor(fsys types.FS, resolve PathResolver) *Editor {
	return &Editor{fsys: fsys, resolve: resolve}
}

func (e *Editor) load(file string) (string, *Document, error) {
	p, err := e.resolve(file)
	if err != nil {
		return "", nil, err
	}
	data, err := e.fsys.ReadFile(p)
	if err != nil {
		if !stderrors.Is(err, fs.ErrNotExist) {
			return "", nil, errors.Wrapf(err, errors.ErrSettings, "failed to read %s", p)
		}
		data = nil
	}
	doc, err := Parse(data)
	if err != nil {
		return "", nil, errors.Wrapf(err, errors.ErrSettings, "failed to parse %s", p)
	}
	return p, doc, nil
}

// Read returns the current value of a key.
func (e *Editor) Read(file, section, key string) (string, bool, error) {
	_, doc, err := e.load(file)
	if err != nil {
		return "", false, err
	}
	v, ok := doc.Get(section, key)
	return v, ok, nil
}

// Write sets a key, creating the settings file if it does not exist.
func (e *Editor) Write(file, section, key, value string) error {
	p, doc, err := e.load(file)
	if err != nil {
		return err
	}
	if err := doc.Set(section, key, value); err != nil {
		return err
	}
	return e.save(p, doc)
}

// Delete removes a key. Deleting a missing key is not an error.
func (e *Editor) Delete(file, section, key string) error {
	p, doc, err := e.load(file)
	if err != nil {
		return err
	}
	if !doc.Delete(section, key) {
		return nil
	}
	return e.save(p, doc)
}

func (e *Editor) save(p string, doc *Document) error {
	data, err := doc.Bytes()
	if err != nil {
		return err
	}
	if err := e.fsys.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", filepath.Dir(p))
	}
	if err := e.fsys.WriteFile(p, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to write %s", p)
	}
	return nil
}
