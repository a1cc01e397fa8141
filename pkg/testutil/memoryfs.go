package testutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrInjected is returned once a MemoryFS mutation budget is exhausted.
var ErrInjected = errors.New("injected failure")

// MemoryFS implements types.FS with in-memory storage.
// Besides per-path error injection it can fail every mutation after the
// first N, which is how the all-or-nothing tests walk every failure point.
type MemoryFS struct {
	mu    sync.RWMutex
	files map[string]*fileNode

	errorPaths map[string]error

	// budget is the number of mutations still allowed; negative is unlimited
	budget int
	// failIn counts down to a single failing mutation; negative is off
	failIn int

	readCount     int
	mutationCount int
}

type fileNode struct {
	name     string
	mode     os.FileMode
	modTime  time.Time
	content  []byte
	isDir    bool
	children map[string]*fileNode
}

// NewMemoryFS creates a new in-memory filesystem
func NewMemoryFS() *MemoryFS {
	root := &fileNode{
		name:     "/",
		mode:     0755 | os.ModeDir,
		modTime:  time.Now(),
		isDir:    true,
		children: make(map[string]*fileNode),
	}

	return &MemoryFS{
		files:      map[string]*fileNode{"/": root},
		errorPaths: make(map[string]error),
		budget:     -1,
		failIn:     -1,
	}
}

func clean(path string) string {
	if !filepath.IsAbs(path) {
		path = "/" + path
	}
	return filepath.Clean(path)
}

func (m *MemoryFS) getNode(path string) (*fileNode, error) {
	path = clean(path)
	if err, ok := m.errorPaths[path]; ok {
		return nil, err
	}
	node, exists := m.files[path]
	if !exists {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return node, nil
}

// mutate charges one mutation against the budget.
func (m *MemoryFS) mutate(op, path string) error {
	m.mutationCount++
	if err, ok := m.errorPaths[path]; ok {
		return err
	}
	if m.failIn == 0 {
		m.failIn = -1
		return &fs.PathError{Op: op, Path: path, Err: ErrInjected}
	}
	if m.failIn > 0 {
		m.failIn--
	}
	if m.budget == 0 {
		return &fs.PathError{Op: op, Path: path, Err: ErrInjected}
	}
	if m.budget > 0 {
		m.budget--
	}
	return nil
}

func (m *MemoryFS) parentOf(path string) (*fileNode, error) {
	dir := filepath.Dir(path)
	parent, err := m.getNode(dir)
	if err != nil {
		return nil, err
	}
	if !parent.isDir {
		return nil, &fs.PathError{Op: "open", Path: dir, Err: errors.New("not a directory")}
	}
	return parent, nil
}

// ReadFile reads the entire file content
func (m *MemoryFS) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readCount++
	node, err := m.getNode(name)
	if err != nil {
		return nil, err
	}
	if node.isDir {
		return nil, &fs.PathError{Op: "read", Path: name, Err: errors.New("is a directory")}
	}

	content := make([]byte, len(node.content))
	copy(content, node.content)
	return content, nil
}

// WriteFile writes data to a file. The parent directory must exist, as with os.WriteFile.
func (m *MemoryFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := clean(name)
	if err := m.mutate("write", path); err != nil {
		return err
	}

	parent, err := m.parentOf(path)
	if err != nil {
		return err
	}
	if existing, ok := m.files[path]; ok && existing.isDir {
		return &fs.PathError{Op: "write", Path: name, Err: errors.New("is a directory")}
	}

	node := &fileNode{
		name:    filepath.Base(path),
		mode:    perm,
		modTime: time.Now(),
		content: append([]byte(nil), data...),
	}
	parent.children[node.name] = node
	m.files[path] = node
	return nil
}

// Stat returns file info
func (m *MemoryFS) Stat(name string) (os.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, err := m.getNode(name)
	if err != nil {
		return nil, err
	}
	return &fileInfo{node: node, name: filepath.Base(name)}, nil
}

// Remove removes a file or empty directory
func (m *MemoryFS) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := clean(name)
	node, err := m.getNode(path)
	if err != nil {
		return err
	}
	if err := m.mutate("remove", path); err != nil {
		return err
	}
	if node.isDir && len(node.children) > 0 {
		return &fs.PathError{Op: "remove", Path: name, Err: errors.New("directory not empty")}
	}

	parent, err := m.parentOf(path)
	if err != nil {
		return err
	}
	delete(parent.children, filepath.Base(path))
	delete(m.files, path)
	return nil
}

// RemoveAll removes a file or directory recursively
func (m *MemoryFS) RemoveAll(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := clean(name)
	if _, ok := m.files[path]; !ok {
		return nil
	}
	if err := m.mutate("removeall", path); err != nil {
		return err
	}

	for p := range m.files {
		if p == path || strings.HasPrefix(p, path+"/") {
			delete(m.files, p)
		}
	}
	if parent, ok := m.files[filepath.Dir(path)]; ok && path != "/" {
		delete(parent.children, filepath.Base(path))
	}
	return nil
}

// Rename moves a file. Directory renames are not needed by modman and are rejected.
func (m *MemoryFS) Rename(oldpath, newpath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, to := clean(oldpath), clean(newpath)
	node, err := m.getNode(from)
	if err != nil {
		return err
	}
	if node.isDir {
		return &fs.PathError{Op: "rename", Path: oldpath, Err: errors.New("is a directory")}
	}
	if err := m.mutate("rename", to); err != nil {
		return err
	}
	dst, err := m.parentOf(to)
	if err != nil {
		return err
	}
	src, err := m.parentOf(from)
	if err != nil {
		return err
	}

	delete(src.children, filepath.Base(from))
	delete(m.files, from)
	node.name = filepath.Base(to)
	dst.children[node.name] = node
	m.files[to] = node
	return nil
}

// MkdirAll creates a directory and all necessary parents
func (m *MemoryFS) MkdirAll(path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = clean(path)
	if node, ok := m.files[path]; ok {
		if !node.isDir {
			return &fs.PathError{Op: "mkdir", Path: path, Err: errors.New("file exists")}
		}
		return nil
	}
	if err := m.mutate("mkdir", path); err != nil {
		return err
	}

	current := m.files["/"]
	currentPath := "/"
	for _, part := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		next := filepath.Join(currentPath, part)
		child, exists := current.children[part]
		if !exists {
			child = &fileNode{
				name:     part,
				mode:     perm | os.ModeDir,
				modTime:  time.Now(),
				isDir:    true,
				children: make(map[string]*fileNode),
			}
			current.children[part] = child
			m.files[next] = child
		} else if !child.isDir {
			return &fs.PathError{Op: "mkdir", Path: next, Err: errors.New("not a directory")}
		}
		current = child
		currentPath = next
	}
	return nil
}

// ReadDir reads a directory and returns its entries sorted by name
func (m *MemoryFS) ReadDir(name string) ([]fs.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, err := m.getNode(name)
	if err != nil {
		return nil, err
	}
	if !node.isDir {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: errors.New("not a directory")}
	}

	entries := make([]fs.DirEntry, 0, len(node.children))
	for childName, child := range node.children {
		entries = append(entries, fs.FileInfoToDirEntry(&fileInfo{node: child, name: childName}))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// WithError configures the filesystem to return an error for a specific path
func (m *MemoryFS) WithError(path string, err error) *MemoryFS {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errorPaths[clean(path)] = err
	return m
}

// FailAfter lets n more mutations succeed and fails every one after that.
// A negative n removes the limit.
func (m *MemoryFS) FailAfter(n int) *MemoryFS {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.budget = n
	return m
}

// FailOnce lets n more mutations succeed, fails the next one and then
// recovers. Rollback paths can be exercised this way since the restore
// writes after the failure go through.
func (m *MemoryFS) FailOnce(n int) *MemoryFS {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failIn = n
	return m
}

// Stats returns filesystem operation statistics
func (m *MemoryFS) Stats() (reads, mutations int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readCount, m.mutationCount
}

// Snapshot returns every path with its content; directories map to "<dir>".
// Two equal snapshots mean no observable change happened in between.
func (m *MemoryFS) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.files))
	for p, node := range m.files {
		if node.isDir {
			out[p] = "<dir>"
			continue
		}
		out[p] = string(node.content)
	}
	return out
}

// fileInfo implements os.FileInfo
type fileInfo struct {
	node *fileNode
	name string
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return int64(len(fi.node.content)) }
func (fi *fileInfo) Mode() os.FileMode  { return fi.node.mode }
func (fi *fileInfo) ModTime() time.Time { return fi.node.modTime }
func (fi *fileInfo) IsDir() bool        { return fi.node.isDir }
func (fi *fileInfo) Sys() interface{}   { return nil }
