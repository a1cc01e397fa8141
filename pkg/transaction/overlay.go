package transaction

import (
	"bytes"
	stderrors "errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type nodeKind int

const (
	kindFile nodeKind = iota + 1
	kindDir
	kindGone
)

// node is the staged state of one path. An opaque directory was created
// where the base had been removed, so base children below it are hidden.
type node struct {
	kind   nodeKind
	data   []byte
	perm   fs.FileMode
	opaque bool
}

type overlay map[string]*node

func cleanPath(p string) string {
	return filepath.Clean(p)
}

// lookup returns the staged node deciding p, or nil when the base decides.
// A gone node is returned when p itself or one of its ancestors is hidden.
func (o overlay) lookup(p string) *node {
	if n, ok := o[p]; ok {
		return n
	}
	for d := filepath.Dir(p); ; d = filepath.Dir(d) {
		if n, ok := o[d]; ok {
			switch {
			case n.kind == kindGone, n.kind == kindFile:
				return &node{kind: kindGone}
			case n.opaque:
				return &node{kind: kindGone}
			}
		}
		if d == filepath.Dir(d) {
			return nil
		}
	}
}

// drop forgets every staged node strictly below p.
func (o overlay) drop(p string) {
	prefix := p + string(filepath.Separator)
	if p == string(filepath.Separator) {
		prefix = p
	}
	for k := range o {
		if strings.HasPrefix(k, prefix) {
			delete(o, k)
		}
	}
}

// children lists the staged nodes directly inside dir.
func (o overlay) children(dir string) map[string]*node {
	out := make(map[string]*node)
	for k, n := range o {
		if k != dir && filepath.Dir(k) == dir {
			out[filepath.Base(k)] = n
		}
	}
	return out
}

// stagedInfo describes a staged file or directory.
type stagedInfo struct {
	name string
	n    *node
}

func (i stagedInfo) Name() string { return i.name }
func (i stagedInfo) Size() int64  { return int64(len(i.n.data)) }
func (i stagedInfo) Mode() fs.FileMode {
	if i.n.kind == kindDir {
		return i.n.perm | fs.ModeDir
	}
	return i.n.perm
}
func (i stagedInfo) ModTime() time.Time { return time.Time{} }
func (i stagedInfo) IsDir() bool        { return i.n.kind == kindDir }
func (i stagedInfo) Sys() any           { return nil }

func notExist(op, p string) error {
	return &fs.PathError{Op: op, Path: p, Err: fs.ErrNotExist}
}

func isNotExist(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist)
}

// Stat reports the staged state of name.
func (t *Tx) Stat(name string) (fs.FileInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stat(cleanPath(name))
}

func (t *Tx) stat(p string) (fs.FileInfo, error) {
	if n := t.staged.lookup(p); n != nil {
		if n.kind == kindGone {
			return nil, notExist("stat", p)
		}
		return stagedInfo{name: filepath.Base(p), n: n}, nil
	}
	return t.base.Stat(p)
}

// ReadFile returns staged bytes when name was written in this transaction.
func (t *Tx) ReadFile(name string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readFile(cleanPath(name))
}

func (t *Tx) readFile(p string) ([]byte, error) {
	if n := t.staged.lookup(p); n != nil {
		switch n.kind {
		case kindGone:
			return nil, notExist("open", p)
		case kindDir:
			return nil, &fs.PathError{Op: "read", Path: p, Err: stderrors.New("is a directory")}
		}
		return bytes.Clone(n.data), nil
	}
	return t.base.ReadFile(p)
}

// ReadDir merges the base listing with staged changes.
func (t *Tx) ReadDir(name string) ([]fs.DirEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readDir(cleanPath(name))
}

func (t *Tx) readDir(p string) ([]fs.DirEntry, error) {
	info, err := t.stat(p)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "readdir", Path: p, Err: stderrors.New("not a directory")}
	}

	entries := make(map[string]fs.DirEntry)
	if n := t.staged.lookup(p); n == nil || !n.opaque {
		base, err := t.base.ReadDir(p)
		if err != nil && !isNotExist(err) {
			return nil, err
		}
		for _, e := range base {
			entries[e.Name()] = e
		}
	}
	for name, n := range t.staged.children(p) {
		if n.kind == kindGone {
			delete(entries, name)
			continue
		}
		entries[name] = fs.FileInfoToDirEntry(stagedInfo{name: name, n: n})
	}

	out := make([]fs.DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

// WriteFile stages a full write. The parent directory must exist in the
// staged view.
func (t *Tx) WriteFile(name string, data []byte, perm fs.FileMode) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.writeFile(cleanPath(name), data, perm)
}

func (t *Tx) writeFile(p string, data []byte, perm fs.FileMode) error {
	parent, err := t.stat(filepath.Dir(p))
	if err != nil {
		return &fs.PathError{Op: "write", Path: p, Err: err}
	}
	if !parent.IsDir() {
		return &fs.PathError{Op: "write", Path: p, Err: stderrors.New("parent is not a directory")}
	}
	if info, err := t.stat(p); err == nil && info.IsDir() {
		return &fs.PathError{Op: "write", Path: p, Err: stderrors.New("is a directory")}
	}

	t.staged[p] = &node{kind: kindFile, data: bytes.Clone(data), perm: perm}
	t.record(op{Kind: opWrite, Path: p, Data: bytes.Clone(data), Perm: uint32(perm)})
	return nil
}

// MkdirAll stages creation of p and its missing parents.
func (t *Tx) MkdirAll(p string, perm fs.FileMode) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}

	p = cleanPath(p)
	var missing []string
	for d := p; ; d = filepath.Dir(d) {
		info, err := t.stat(d)
		if err == nil {
			if !info.IsDir() {
				return &fs.PathError{Op: "mkdir", Path: d, Err: stderrors.New("not a directory")}
			}
			break
		}
		if !isNotExist(err) {
			return err
		}
		missing = append(missing, d)
		if d == filepath.Dir(d) {
			break
		}
	}
	if len(missing) == 0 {
		return nil
	}

	// a directory missing from the staged view has no base children left to show
	for _, d := range missing {
		t.staged[d] = &node{kind: kindDir, perm: perm, opaque: true}
	}
	t.record(op{Kind: opMkdir, Path: p, Perm: uint32(perm)})
	return nil
}

// Remove stages deletion of a file or an empty directory.
func (t *Tx) Remove(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}

	p := cleanPath(name)
	info, err := t.stat(p)
	if err != nil {
		return &fs.PathError{Op: "remove", Path: p, Err: err}
	}
	if info.IsDir() {
		entries, err := t.readDir(p)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			return &fs.PathError{Op: "remove", Path: p, Err: stderrors.New("directory not empty")}
		}
	}
	t.staged.drop(p)
	t.staged[p] = &node{kind: kindGone}
	t.record(op{Kind: opRemove, Path: p})
	return nil
}

// RemoveAll stages recursive deletion. A missing path is not an error.
func (t *Tx) RemoveAll(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}

	p := cleanPath(name)
	if _, err := t.stat(p); err != nil {
		if isNotExist(err) {
			return nil
		}
		return err
	}
	t.staged.drop(p)
	t.staged[p] = &node{kind: kindGone}
	t.record(op{Kind: opRemoveAll, Path: p})
	return nil
}

// Rename stages a file move as a write followed by a delete.
func (t *Tx) Rename(oldpath, newpath string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}

	from, to := cleanPath(oldpath), cleanPath(newpath)
	info, err := t.stat(from)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return &fs.PathError{Op: "rename", Path: from, Err: stderrors.New("is a directory")}
	}
	data, err := t.readFile(from)
	if err != nil {
		return err
	}
	if err := t.writeFile(to, data, info.Mode().Perm()); err != nil {
		return err
	}
	t.staged[from] = &node{kind: kindGone}
	t.record(op{Kind: opRemove, Path: from})
	return nil
}
