// Package archive gives uniform access to mod containers: zip, PBO, RAR,
// tarballs and plain directories, including containers nested inside other
// containers through arch:<outer>//<inner> paths.
package archive

import (
	"context"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/logging"
	"github.com/arthur-debert/modman/pkg/types"
	"github.com/rs/zerolog"
)

// Archive is an opened container. The file index is built at open time and
// rebuilt after every edit.
type Archive struct {
	mu     sync.Mutex
	fsys   types.FS
	path   string
	format Format
	logger zerolog.Logger

	files map[string]Entry // key -> entry
	dirs  map[string]string // key -> cased directory path
	names []string          // stored names, sorted

	session   *session
	observers []func()
}

// Open indexes the container at p, which may be a disk path, a directory or
// an archive path.
func Open(fsys types.FS, p string) (*Archive, error) {
	a := &Archive{
		fsys:   fsys,
		path:   p,
		logger: logging.GetLogger("archive").With().Str("archive", p).Logger(),
	}
	if err := a.reindex(); err != nil {
		return nil, err
	}
	return a, nil
}

// IsArchive reports whether p can be opened as a container. Files whose
// extension is listed in skip are never probed.
func IsArchive(fsys types.FS, p string, skip []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(normalizeEntry(p))), ".")
	for _, s := range skip {
		if ext == s {
			return false
		}
	}
	c, err := openPath(fsys, p)
	if err != nil {
		return false
	}
	_ = c.close()
	return c.format() != FormatDir
}

func (a *Archive) reindex() error {
	c, err := openPath(a.fsys, a.path)
	if err != nil {
		return err
	}
	defer func() { _ = c.close() }()

	a.format = c.format()
	a.files = make(map[string]Entry)
	a.dirs = make(map[string]string)
	a.names = a.names[:0]
	for _, e := range c.entries() {
		name := normalizeEntry(e.Name)
		if name == "" {
			continue
		}
		a.files[key(name)] = Entry{Name: name, Size: e.Size}
		a.names = append(a.names, name)
		for dir := path.Dir(name); dir != "."; dir = path.Dir(dir) {
			if _, seen := a.dirs[key(dir)]; seen {
				break
			}
			a.dirs[key(dir)] = dir
		}
	}
	sort.Strings(a.names)
	a.logger.Debug().Str("format", a.format.String()).Int("files", len(a.names)).Msg("Indexed archive")
	return nil
}

// Path returns the path the archive was opened from.
func (a *Archive) Path() string { return a.path }

// Format returns the detected container format.
func (a *Archive) Format() Format { return a.format }

// Editable reports whether ReplaceFile and DeleteFile can succeed.
// Nested archives are never editable.
func (a *Archive) Editable() bool {
	return a.format.Editable() && !IsArchivePath(a.path)
}

// OnFilesChanged registers fn to run after the index is rebuilt.
func (a *Archive) OnFilesChanged(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

// FileNames returns every file in the archive, sorted.
func (a *Archive) FileNames() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.names...)
}

// Entry returns index information for a file.
func (a *Archive) Entry(name string) (Entry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.files[key(name)]
	return e, ok
}

// ContainsFile reports whether the archive holds a file at name.
func (a *Archive) ContainsFile(name string) bool {
	_, ok := a.Entry(name)
	return ok
}

// IsDirectory reports whether name is a directory inside the archive.
func (a *Archive) IsDirectory(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := key(name)
	if k == "" {
		return true
	}
	_, ok := a.dirs[k]
	return ok
}

// Directories lists the directories directly below dir, or every directory
// below it when recursive is set.
func (a *Archive) Directories(dir string, recursive bool) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []string
	for _, d := range a.dirs {
		if below(d, dir, recursive) {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// Files lists the files in dir whose base name matches pattern (path.Match
// syntax, case-insensitive; empty matches everything).
func (a *Archive) Files(dir, pattern string, recursive bool) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pattern = strings.ToLower(pattern)
	if pattern != "" {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, errors.Wrapf(err, errors.ErrInvalidInput, "bad file pattern %q", pattern)
		}
	}

	var out []string
	for _, name := range a.names {
		if !below(name, dir, recursive) {
			continue
		}
		if pattern != "" {
			if ok, _ := path.Match(pattern, strings.ToLower(path.Base(name))); !ok {
				continue
			}
		}
		out = append(out, name)
	}
	return out, nil
}

func below(name, dir string, recursive bool) bool {
	parent := key(path.Dir(name))
	if parent == "." {
		parent = ""
	}
	want := key(dir)
	if parent == want {
		return true
	}
	return recursive && (want == "" || strings.HasPrefix(parent, want+"/"))
}

// ReadFile returns the bytes of a file. Inside a read-only transaction the
// shared decoder is used; otherwise the container is opened for this read.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	a.mu.Lock()
	entry, ok := a.files[key(name)]
	s := a.session
	a.mu.Unlock()

	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "file %s not found in %s", name, filepath.Base(DiskPath(a.path))).
			WithDetail("file", name)
	}
	if s != nil {
		return s.read(entry.Name)
	}

	c, err := openPath(a.fsys, a.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.close() }()

	stored, found := lookup(c.entries(), entry.Name)
	if !found {
		return nil, errors.Newf(errors.ErrNotFound, "file %s not found in %s", name, a.path)
	}
	data, err := c.read(stored)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrArchiveRead, "failed to read %s from %s", name, a.path)
	}
	return data, nil
}

// ReplaceFile writes data to name, adding the entry when missing.
func (a *Archive) ReplaceFile(ctx context.Context, name string, data []byte) error {
	name = normalizeEntry(name)
	return a.modify(ctx, "replace", map[string]edit{key(name): {name: name, data: data}}, nil)
}

// DeleteFile removes name from the archive.
func (a *Archive) DeleteFile(ctx context.Context, name string) error {
	if !a.ContainsFile(name) {
		return errors.Newf(errors.ErrNotFound, "file %s not found in %s", name, a.path)
	}
	return a.modify(ctx, "delete", nil, map[string]bool{key(name): true})
}

func (a *Archive) modify(ctx context.Context, op string, replace map[string]edit, remove map[string]bool) error {
	if err := a.applyEdit(ctx, op, replace, remove); err != nil {
		return err
	}

	a.mu.Lock()
	observers := append([]func(){}, a.observers...)
	a.mu.Unlock()
	for _, fn := range observers {
		fn()
	}
	return nil
}

func (a *Archive) applyEdit(ctx context.Context, op string, replace map[string]edit, remove map[string]bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		return errors.New(errors.ErrInvalidState, "cannot modify an archive during a read-only transaction")
	}
	if !a.Editable() {
		return errors.Newf(errors.ErrUnsupported, "cannot modify archive of type %s", a.format).
			WithDetail("archive", a.path)
	}

	var err error
	switch a.format {
	case FormatDir:
		err = a.modifyDir(replace, remove)
	case FormatZip, FormatPBO:
		err = a.rewrite(ctx, replace, remove)
	}
	if err != nil {
		return errors.Wrapf(err, errors.ErrArchiveWrite, "failed to %s in %s", op, a.path)
	}
	return a.reindex()
}

func (a *Archive) rewrite(ctx context.Context, replace map[string]edit, remove map[string]bool) error {
	data, err := a.fsys.ReadFile(a.path)
	if err != nil {
		return err
	}

	var out []byte
	if a.format == FormatZip {
		out, err = rewriteZip(data, replace, remove)
	} else {
		out, err = rewritePBO(ctx, data, replace, remove)
	}
	if err != nil {
		return err
	}

	info, err := a.fsys.Stat(a.path)
	if err != nil {
		return err
	}
	return a.fsys.WriteFile(a.path, out, info.Mode().Perm())
}

func (a *Archive) modifyDir(replace map[string]edit, remove map[string]bool) error {
	dir := &dirContainer{fsys: a.fsys, root: a.path}
	for k := range remove {
		if err := a.fsys.Remove(dir.abs(a.files[k].Name)); err != nil {
			return err
		}
	}
	for k, e := range replace {
		name := e.name
		if existing, ok := a.files[k]; ok {
			name = existing.Name
		}
		target := dir.abs(name)
		if err := a.fsys.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := a.fsys.WriteFile(target, e.data, 0644); err != nil {
			return err
		}
	}
	return nil
}

// Close ends any read-only transaction still running.
func (a *Archive) Close() error {
	a.EndReadOnlyTransaction()
	return nil
}
