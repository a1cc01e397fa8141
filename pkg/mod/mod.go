// Package mod opens mod packages: an archive (or unpacked directory) holding
// game data files, optional metadata under fomod/ and an optional install
// plan. Wrapper directories that some authors pack their files into are
// detected and hidden, so every path a Mod reports is relative to the real
// root of the mod's data.
package mod

import (
	"context"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/arthur-debert/modman/pkg/archive"
	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/installlog"
	"github.com/arthur-debert/modman/pkg/logging"
	"github.com/arthur-debert/modman/pkg/paths"
	"github.com/arthur-debert/modman/pkg/types"
	"github.com/rs/zerolog"
)

// MetaDir holds a mod's metadata and install plan. Its files are never
// installed.
const MetaDir = "fomod"

var (
	// ScriptNames are the install plans modman can run, in lookup order.
	ScriptNames = []string{"script.yaml", "script.yml"}

	// LegacyScriptNames are install scripts of other managers. A mod that
	// only carries one of these cannot be installed by modman.
	LegacyScriptNames = []string{"script.cs", "script.vb", "script.py", "script.txt", "ModuleConfig.xml"}

	// ReadmeExtensions are searched in order.
	ReadmeExtensions = []string{".txt", ".md", ".rtf", ".html", ".htm"}

	// ScreenshotExtensions are searched in order.
	ScreenshotExtensions = []string{".png", ".jpg", ".bmp"}
)

// Options tune wrapper-directory detection.
type Options struct {
	// StopFolders end detection when the only top-level directory has one of these names.
	StopFolders []string
	// Plugins are extensions (without dot) that mark the real root.
	Plugins []string
}

// DefaultOptions returns the detection settings for Bethesda-style games.
func DefaultOptions() Options {
	return Options{
		StopFolders: []string{"fomod", "textures", "meshes", "music", "shaders", "video", "facegen", "menus", "lodsettings", "lsdata", "sound"},
		Plugins:     []string{"esp", "esm", "bsa"},
	}
}

// Mod is an opened mod package.
type Mod struct {
	mu       sync.Mutex
	archive  *archive.Archive
	path     string
	baseName string
	opts     Options
	logger   zerolog.Logger

	Info

	prefix string
	// moved maps the lowercase exposed name of a file found in a stripped
	// wrapper level to its archive name
	moved      map[string]string
	movedNames []string

	scriptPath     string
	legacyScript   string
	readmePath     string
	screenshotPath string
	hasInfo        bool
	active         bool
}

// BaseName returns the file name of a mod archive without its extension.
// Archive paths use the innermost file.
func BaseName(p string) string {
	name := p
	if _, inner, ok := archive.ParsePath(p); ok {
		name = inner
	}
	name = path.Base(filepath.ToSlash(name))
	return strings.TrimSuffix(name, path.Ext(name))
}

// Open opens the mod at p and reads its metadata.
func Open(fsys types.FS, p string, opts Options) (*Mod, error) {
	a, err := archive.Open(fsys, p)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrModInvalid, "failed to open mod %s", p)
	}

	base := BaseName(p)
	m := &Mod{
		archive:  a,
		path:     p,
		baseName: base,
		opts:     opts,
		logger:   logging.GetLogger("mod").With().Str("mod", base).Logger(),
		Info:     defaultInfo(base),
	}
	m.findPathPrefix()
	a.OnFilesChanged(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.findPathPrefix()
	})

	m.scriptPath = m.firstExisting(prefixed(MetaDir+"/", ScriptNames))
	m.legacyScript = m.firstExisting(prefixed(MetaDir+"/", LegacyScriptNames))
	m.readmePath = m.firstExisting(suffixed("readme - "+base, ReadmeExtensions))
	if m.readmePath == "" {
		m.readmePath = m.firstExisting(suffixed("docs/readme - "+base, ReadmeExtensions))
	}
	m.screenshotPath = m.firstExisting(suffixed(MetaDir+"/screenshot", ScreenshotExtensions))

	if err := m.loadInfo(); err != nil {
		_ = a.Close()
		return nil, err
	}
	m.logger.Debug().
		Str("prefix", m.prefix).
		Int("moved", len(m.movedNames)).
		Bool("script", m.scriptPath != "").
		Msg("Opened mod")
	return m, nil
}

func prefixed(prefix string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = prefix + n
	}
	return out
}

func suffixed(stem string, exts []string) []string {
	out := make([]string, len(exts))
	for i, e := range exts {
		out[i] = stem + e
	}
	return out
}

func (m *Mod) firstExisting(candidates []string) string {
	for _, c := range candidates {
		if m.containsFile(c) {
			return c
		}
	}
	return ""
}

func (m *Mod) loadInfo() error {
	if data, err := m.readFile(MetaDir + "/info.xml"); err == nil {
		if err := ParseInfoXML(data, &m.Info); err != nil {
			return errors.Wrapf(err, errors.ErrModInvalid, "mod %s has invalid metadata", m.baseName)
		}
		m.hasInfo = true
		return nil
	}
	if data, err := m.readFile(MetaDir + "/info.toml"); err == nil {
		if err := ParseInfoTOML(data, &m.Info); err != nil {
			return errors.Wrapf(err, errors.ErrModInvalid, "mod %s has invalid metadata", m.baseName)
		}
		m.hasInfo = true
	}
	return nil
}

// findPathPrefix strips single wrapper directories from the top of the
// archive until a plugin shows up or the only directory is a stop folder.
// A wrapper named data is always stripped. Files lying in a stripped level
// are exposed at the root under de-duplicated names.
func (m *Mod) findPathPrefix() {
	m.moved = make(map[string]string)
	m.movedNames = nil

	prefix := ""
	for {
		dirs := m.archive.Directories(prefix, false)
		if len(dirs) != 1 {
			break
		}
		name := path.Base(dirs[0])
		if m.hasPluginIn(prefix) && !strings.EqualFold(name, "data") {
			break
		}
		if m.isStopFolder(name) {
			break
		}

		files, _ := m.archive.Files(prefix, "", false)
		for _, f := range files {
			exposed := path.Base(f)
			ext := path.Ext(exposed)
			stem := strings.TrimSuffix(exposed, ext)
			for i := 1; m.moved[strings.ToLower(exposed)] != ""; i++ {
				exposed = stem + " " + strconv.Itoa(i) + ext
			}
			m.moved[strings.ToLower(exposed)] = f
			m.movedNames = append(m.movedNames, exposed)
		}
		prefix = dirs[0]
	}
	m.prefix = prefix
}

func (m *Mod) hasPluginIn(dir string) bool {
	for _, ext := range m.opts.Plugins {
		files, err := m.archive.Files(dir, "*."+ext, false)
		if err == nil && len(files) > 0 {
			return true
		}
	}
	return false
}

func (m *Mod) isStopFolder(name string) bool {
	for _, s := range m.opts.StopFolders {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

func (m *Mod) isPlugin(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	for _, p := range m.opts.Plugins {
		if ext == p {
			return true
		}
	}
	return false
}

// adjust maps a mod-relative path to its name inside the archive.
func (m *Mod) adjust(p string) string {
	p = paths.CleanRelative(p)
	if stored, ok := m.moved[strings.ToLower(p)]; ok {
		return stored
	}
	if m.prefix == "" {
		return p
	}
	return path.Join(m.prefix, p)
}

// Path returns the path the mod was opened from.
func (m *Mod) Path() string { return m.path }

// BaseName returns the archive name without extension.
func (m *Mod) BaseName() string { return m.baseName }

// Key returns the ledger key of the mod.
func (m *Mod) Key() string { return installlog.ModKey(m.baseName) }

// Archive returns the underlying container.
func (m *Mod) Archive() *archive.Archive { return m.archive }

// PathPrefix returns the wrapper directories hidden from mod paths.
func (m *Mod) PathPrefix() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefix
}

// Record returns the ledger description of the mod.
func (m *Mod) Record() installlog.ModRecord {
	return installlog.ModRecord{
		Key:            m.Key(),
		Name:           m.Name,
		Version:        m.Version,
		MachineVersion: m.MachineVersion,
	}
}

// ContainsFile reports whether the mod has a file at the mod-relative path p.
func (m *Mod) ContainsFile(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.containsFile(p)
}

func (m *Mod) containsFile(p string) bool {
	if _, ok := m.moved[strings.ToLower(paths.CleanRelative(p))]; ok {
		return true
	}
	return m.archive.ContainsFile(m.adjust(p))
}

// IsDirectory reports whether the mod has a directory at p.
func (m *Mod) IsDirectory(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.archive.IsDirectory(m.adjust(p))
}

// ReadFile returns the bytes of the mod-relative file p.
func (m *Mod) ReadFile(p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readFile(p)
}

func (m *Mod) readFile(p string) ([]byte, error) {
	data, err := m.archive.ReadFile(m.adjust(p))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrArchiveRead, "failed to read %s from mod %s", p, m.baseName).
			WithDetail("file", p)
	}
	return data, nil
}

// FileList returns every installable file, relative to the mod root and
// sorted. Files under fomod/ are excluded.
func (m *Mod) FileList() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fileList("")
}

// FilesIn returns the installable files below the mod-relative directory dir.
func (m *Mod) FilesIn(dir string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fileList(paths.CleanRelative(dir))
}

func (m *Mod) fileList(dir string) []string {
	root := strings.ToLower(m.prefix)
	var out []string
	for _, name := range m.archive.FileNames() {
		rel := name
		if root != "" {
			if !strings.HasPrefix(strings.ToLower(name), root+"/") {
				continue
			}
			rel = name[len(root)+1:]
		}
		if isMeta(rel) {
			continue
		}
		out = append(out, rel)
	}
	out = append(out, m.movedNames...)

	if dir != "" {
		want := strings.ToLower(dir) + "/"
		filtered := out[:0]
		for _, f := range out {
			if strings.HasPrefix(strings.ToLower(f), want) {
				filtered = append(filtered, f)
			}
		}
		out = filtered
	}
	sort.Strings(out)
	return out
}

func isMeta(rel string) bool {
	first, _, _ := strings.Cut(rel, "/")
	return strings.EqualFold(first, MetaDir) && strings.Contains(rel, "/")
}

// RequiresScript reports whether plugins sit in subdirectories, which a
// basic install would put in the wrong place.
func (m *Mod) RequiresScript() bool {
	for _, f := range m.FileList() {
		if m.isPlugin(f) && strings.Contains(f, "/") {
			return true
		}
	}
	return false
}

// HasInfo reports whether the mod carried metadata.
func (m *Mod) HasInfo() bool { return m.hasInfo }

// HasScript reports whether the mod has an install plan modman can run.
func (m *Mod) HasScript() bool { return m.scriptPath != "" }

// LegacyScript returns the path of an install script modman cannot run, if any.
func (m *Mod) LegacyScript() string { return m.legacyScript }

// Script returns the install plan document.
func (m *Mod) Script() ([]byte, error) {
	if m.scriptPath == "" {
		return nil, errors.Newf(errors.ErrNotFound, "mod %s has no install plan", m.baseName)
	}
	return m.ReadFile(m.scriptPath)
}

// Readme is a mod's readme document.
type Readme struct {
	Path   string
	Format string
	Text   string
}

// HasReadme reports whether a readme was found.
func (m *Mod) HasReadme() bool { return m.readmePath != "" }

// Readme returns the readme document.
func (m *Mod) Readme() (*Readme, error) {
	if m.readmePath == "" {
		return nil, errors.Newf(errors.ErrNotFound, "mod %s has no readme", m.baseName)
	}
	data, err := m.ReadFile(m.readmePath)
	if err != nil {
		return nil, err
	}
	return &Readme{
		Path:   m.readmePath,
		Format: strings.TrimPrefix(strings.ToLower(path.Ext(m.readmePath)), "."),
		Text:   string(data),
	}, nil
}

// HasScreenshot reports whether a screenshot was found.
func (m *Mod) HasScreenshot() bool { return m.screenshotPath != "" }

// ScreenshotPath returns the mod-relative screenshot path, if any.
func (m *Mod) ScreenshotPath() string { return m.screenshotPath }

// Active reports whether the mod is installed.
func (m *Mod) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// SetActive flips the installed flag.
func (m *Mod) SetActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = active
}

// BeginReadOnly keeps one decoder open until EndReadOnly.
func (m *Mod) BeginReadOnly(ctx context.Context, progress types.Progress) error {
	return m.archive.BeginReadOnlyTransaction(ctx, progress)
}

// EndReadOnly releases the decoder held by BeginReadOnly.
func (m *Mod) EndReadOnly() {
	m.archive.EndReadOnlyTransaction()
}

// Close releases the mod.
func (m *Mod) Close() error {
	return m.archive.Close()
}
