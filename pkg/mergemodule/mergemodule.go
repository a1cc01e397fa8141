// Package mergemodule holds the change set of a single install or uninstall:
// every data file, settings edit and shader edit the operation touched, plus
// the original values it displaced.
//
// A MergeModule is built during an install and merged into the install log on
// success. For uninstalls the install log reconstructs one so the uninstaller
// knows what to reverse.
package mergemodule

import (
	"bytes"

	"github.com/arthur-debert/modman/pkg/paths"
)

// FileEntry is a data file written by the operation. Hash is the BLAKE3
// digest of the bytes written, hex encoded.
type FileEntry struct {
	Path string
	Hash string
}

// SettingEdit is one settings value written by the operation.
type SettingEdit struct {
	Key   SettingKey
	Value string
}

// ShaderEdit is one shader blob written by the operation.
type ShaderEdit struct {
	Key  ShaderKey
	Data []byte
}

// MergeModule collects resources in the order they were first touched.
type MergeModule struct {
	files         orderedSet[string, FileEntry]
	originalFiles orderedSet[string, FileEntry]

	settings         orderedSet[SettingKey, SettingEdit]
	originalSettings orderedSet[SettingKey, SettingEdit]

	shaders         orderedSet[ShaderKey, ShaderEdit]
	originalShaders orderedSet[ShaderKey, ShaderEdit]
}

// New returns an empty MergeModule.
func New() *MergeModule {
	return &MergeModule{}
}

// AddFile records that path was written with content hashing to hash.
// Adding a path twice refreshes its hash.
func (m *MergeModule) AddFile(path, hash string) {
	p := paths.NormalizeResourcePath(path)
	m.files.put(p, FileEntry{Path: p, Hash: hash})
}

// BackupOriginalFile records the hash of a file that existed before any mod
// wrote it. The first backup of a path wins.
func (m *MergeModule) BackupOriginalFile(path, hash string) {
	p := paths.NormalizeResourcePath(path)
	if !m.originalFiles.has(p) {
		m.originalFiles.put(p, FileEntry{Path: p, Hash: hash})
	}
}

// ContainsFile reports whether path has been recorded as written.
func (m *MergeModule) ContainsFile(path string) bool {
	return m.files.has(paths.NormalizeResourcePath(path))
}

// HasOriginalFile reports whether an original value was backed up for path.
func (m *MergeModule) HasOriginalFile(path string) bool {
	return m.originalFiles.has(paths.NormalizeResourcePath(path))
}

// Files returns the written files in insertion order.
func (m *MergeModule) Files() []FileEntry { return m.files.values() }

// OriginalFiles returns the original-value backups in insertion order.
func (m *MergeModule) OriginalFiles() []FileEntry { return m.originalFiles.values() }

// AddSettingEdit records a settings value written by the operation.
func (m *MergeModule) AddSettingEdit(key SettingKey, value string) {
	key = NewSettingKey(key.File, key.Section, key.Key)
	m.settings.put(key, SettingEdit{Key: key, Value: value})
}

// BackupOriginalSetting records the value a key held before any mod edited it.
func (m *MergeModule) BackupOriginalSetting(key SettingKey, value string) {
	key = NewSettingKey(key.File, key.Section, key.Key)
	if !m.originalSettings.has(key) {
		m.originalSettings.put(key, SettingEdit{Key: key, Value: value})
	}
}

func (m *MergeModule) ContainsSettingEdit(key SettingKey) bool {
	return m.settings.has(NewSettingKey(key.File, key.Section, key.Key))
}

func (m *MergeModule) SettingEdits() []SettingEdit         { return m.settings.values() }
func (m *MergeModule) OriginalSettings() []SettingEdit     { return m.originalSettings.values() }
func (m *MergeModule) ShaderEdits() []ShaderEdit           { return m.shaders.values() }
func (m *MergeModule) OriginalShaders() []ShaderEdit       { return m.originalShaders.values() }
func (m *MergeModule) ContainsShaderEdit(k ShaderKey) bool { return m.shaders.has(normShader(k)) }

// AddShaderEdit records a shader blob written by the operation.
func (m *MergeModule) AddShaderEdit(key ShaderKey, data []byte) {
	key = normShader(key)
	m.shaders.put(key, ShaderEdit{Key: key, Data: bytes.Clone(data)})
}

// BackupOriginalShader records the blob a shader held before any mod edited it.
func (m *MergeModule) BackupOriginalShader(key ShaderKey, data []byte) {
	key = normShader(key)
	if !m.originalShaders.has(key) {
		m.originalShaders.put(key, ShaderEdit{Key: key, Data: bytes.Clone(data)})
	}
}

// IsEmpty reports whether nothing has been recorded.
func (m *MergeModule) IsEmpty() bool {
	return m.files.len() == 0 && m.originalFiles.len() == 0 &&
		m.settings.len() == 0 && m.originalSettings.len() == 0 &&
		m.shaders.len() == 0 && m.originalShaders.len() == 0
}

func normShader(k ShaderKey) ShaderKey { return NewShaderKey(k.Package, k.Name) }

// orderedSet is a map that remembers insertion order.
type orderedSet[K comparable, V any] struct {
	index map[K]int
	items []V
}

func (s *orderedSet[K, V]) put(k K, v V) {
	if s.index == nil {
		s.index = make(map[K]int)
	}
	if i, ok := s.index[k]; ok {
		s.items[i] = v
		return
	}
	s.index[k] = len(s.items)
	s.items = append(s.items, v)
}

func (s *orderedSet[K, V]) has(k K) bool {
	_, ok := s.index[k]
	return ok
}

func (s *orderedSet[K, V]) len() int { return len(s.items) }

func (s *orderedSet[K, V]) values() []V {
	return append([]V(nil), s.items...)
}
