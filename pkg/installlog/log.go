// Package installlog is the ownership ledger: for every data file, settings
// key and shader that a mod has written it keeps the stack of owners, oldest
// first, so that uninstalling any mod can restore whatever lies below it.
package installlog

import (
	"bytes"
	"slices"
	"sort"
	"strings"

	"github.com/arthur-debert/modman/pkg/mergemodule"
	"github.com/arthur-debert/modman/pkg/paths"
)

// ModRecord describes an installed mod.
type ModRecord struct {
	Key            string
	Name           string
	Version        string
	MachineVersion string
}

// ModKey derives the ledger key of a mod from its archive base name.
func ModKey(baseName string) string {
	return strings.ToLower(strings.TrimSpace(baseName))
}

// Log is the in-memory ledger. It is not safe for concurrent use; callers
// serialize through the installer lock.
type Log struct {
	mods     []ModRecord
	files    map[string]Stack[string]
	settings map[mergemodule.SettingKey]Stack[string]
	shaders  map[mergemodule.ShaderKey]Stack[[]byte]
}

// New returns an empty ledger.
func New() *Log {
	return &Log{
		files:    make(map[string]Stack[string]),
		settings: make(map[mergemodule.SettingKey]Stack[string]),
		shaders:  make(map[mergemodule.ShaderKey]Stack[[]byte]),
	}
}

// Clone returns a deep copy. Operations work on a clone and the store swaps
// it in after the transaction commits.
func (l *Log) Clone() *Log {
	c := New()
	c.mods = append([]ModRecord(nil), l.mods...)
	same := func(s string) string { return s }
	for k, s := range l.files {
		c.files[k] = s.clone(same)
	}
	for k, s := range l.settings {
		c.settings[k] = s.clone(same)
	}
	for k, s := range l.shaders {
		c.shaders[k] = s.clone(bytes.Clone)
	}
	return c
}

// Mods returns the installed mods in installation order.
func (l *Log) Mods() []ModRecord {
	return append([]ModRecord(nil), l.mods...)
}

// HasMod reports whether a mod with key is installed.
func (l *Log) HasMod(key string) bool {
	_, ok := l.ModRecord(key)
	return ok
}

// ModRecord returns the record of the mod with key.
func (l *Log) ModRecord(key string) (ModRecord, bool) {
	key = ModKey(key)
	for _, m := range l.mods {
		if m.Key == key {
			return m, true
		}
	}
	return ModRecord{}, false
}

func (l *Log) registerMod(rec ModRecord) {
	rec.Key = ModKey(rec.Key)
	for i, m := range l.mods {
		if m.Key == rec.Key {
			l.mods[i] = rec
			return
		}
	}
	l.mods = append(l.mods, rec)
}

func (l *Log) removeMod(key string) {
	out := l.mods[:0]
	for _, m := range l.mods {
		if m.Key != key {
			out = append(out, m)
		}
	}
	l.mods = out
}

// Files returns every tracked data file, sorted.
func (l *Log) Files() []string {
	out := make([]string, 0, len(l.files))
	for p := range l.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// FileStack returns the owners of a data file.
func (l *Log) FileStack(path string) Stack[string] {
	return l.files[paths.NormalizeResourcePath(path)]
}

// CurrentFileOwner returns the mod whose bytes are live at path.
func (l *Log) CurrentFileOwner(path string) (OwnerID, bool) {
	e, ok := l.FileStack(path).Current()
	return e.Owner, ok
}

// PreviousFileOwner returns the owner directly below the current one.
func (l *Log) PreviousFileOwner(path string) (OwnerID, bool) {
	e, ok := l.FileStack(path).Previous()
	return e.Owner, ok
}

// FilesOwnedBy lists the data files in which key holds an entry, sorted.
func (l *Log) FilesOwnedBy(key string) []string {
	owner := ModOwner(key)
	var out []string
	for p, s := range l.files {
		if s.indexOf(owner) >= 0 {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Settings returns every tracked settings key, sorted by its string form.
func (l *Log) Settings() []mergemodule.SettingKey {
	out := make([]mergemodule.SettingKey, 0, len(l.settings))
	for k := range l.settings {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (l *Log) SettingStack(key mergemodule.SettingKey) Stack[string] {
	return l.settings[mergemodule.NewSettingKey(key.File, key.Section, key.Key)]
}

func (l *Log) CurrentSettingOwner(key mergemodule.SettingKey) (OwnerID, bool) {
	e, ok := l.SettingStack(key).Current()
	return e.Owner, ok
}

func (l *Log) PreviousSettingOwner(key mergemodule.SettingKey) (OwnerID, bool) {
	e, ok := l.SettingStack(key).Previous()
	return e.Owner, ok
}

// Shaders returns every tracked shader key, sorted by its string form.
func (l *Log) Shaders() []mergemodule.ShaderKey {
	out := make([]mergemodule.ShaderKey, 0, len(l.shaders))
	for k := range l.shaders {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (l *Log) ShaderStack(key mergemodule.ShaderKey) Stack[[]byte] {
	return l.shaders[mergemodule.NewShaderKey(key.Package, key.Name)]
}

func (l *Log) CurrentShaderOwner(key mergemodule.ShaderKey) (OwnerID, bool) {
	e, ok := l.ShaderStack(key).Current()
	return e.Owner, ok
}

func (l *Log) PreviousShaderOwner(key mergemodule.ShaderKey) (OwnerID, bool) {
	e, ok := l.ShaderStack(key).Previous()
	return e.Owner, ok
}

// Merge records the change set of a successful install by mod.
func (l *Log) Merge(mod ModRecord, mm *mergemodule.MergeModule) {
	l.registerMod(mod)
	owner := ModOwner(mod.Key)

	for _, f := range mm.OriginalFiles() {
		l.files[f.Path] = l.files[f.Path].pushOriginal(f.Hash)
	}
	for _, f := range mm.Files() {
		l.files[f.Path] = l.files[f.Path].push(owner, f.Hash)
	}
	for _, e := range mm.OriginalSettings() {
		l.settings[e.Key] = l.settings[e.Key].pushOriginal(e.Value)
	}
	for _, e := range mm.SettingEdits() {
		l.settings[e.Key] = l.settings[e.Key].push(owner, e.Value)
	}
	for _, e := range mm.OriginalShaders() {
		l.shaders[e.Key] = l.shaders[e.Key].pushOriginal(bytes.Clone(e.Data))
	}
	for _, e := range mm.ShaderEdits() {
		l.shaders[e.Key] = l.shaders[e.Key].push(owner, bytes.Clone(e.Data))
	}
}

// MergeUpgrade records the change set of an in-place upgrade of the mod
// installed as from. The entries of the previous version keep their place
// in every stack and take the new values; resources the new version no
// longer touches lose the mod's entry, and resources it touches for the
// first time get an entry on top. When mod.Key differs from from, every
// entry and the mod record move to the new key.
func (l *Log) MergeUpgrade(from string, mod ModRecord, mm *mergemodule.MergeModule) {
	from = ModKey(from)
	owner := ModOwner(from)

	dropStacks(l.files, owner, func(p string) bool { return !mm.ContainsFile(p) })
	dropStacks(l.settings, owner, func(k mergemodule.SettingKey) bool { return !mm.ContainsSettingEdit(k) })
	dropStacks(l.shaders, owner, func(k mergemodule.ShaderKey) bool { return !mm.ContainsShaderEdit(k) })

	for _, f := range mm.OriginalFiles() {
		l.files[f.Path] = l.files[f.Path].pushOriginal(f.Hash)
	}
	for _, f := range mm.Files() {
		l.files[f.Path] = l.files[f.Path].replace(owner, f.Hash)
	}
	for _, e := range mm.OriginalSettings() {
		l.settings[e.Key] = l.settings[e.Key].pushOriginal(e.Value)
	}
	for _, e := range mm.SettingEdits() {
		l.settings[e.Key] = l.settings[e.Key].replace(owner, e.Value)
	}
	for _, e := range mm.OriginalShaders() {
		l.shaders[e.Key] = l.shaders[e.Key].pushOriginal(bytes.Clone(e.Data))
	}
	for _, e := range mm.ShaderEdits() {
		l.shaders[e.Key] = l.shaders[e.Key].replace(owner, bytes.Clone(e.Data))
	}

	l.renameMod(from, mod)
}

// renameMod replaces the record of from with rec where it stands in the
// installation order and hands its entries to rec's key.
func (l *Log) renameMod(from string, rec ModRecord) {
	rec.Key = ModKey(rec.Key)
	i := slices.IndexFunc(l.mods, func(m ModRecord) bool { return m.Key == from })
	if i < 0 {
		l.registerMod(rec)
		return
	}
	l.mods[i] = rec
	if rec.Key == from {
		return
	}
	renameOwner(l.files, ModOwner(from), ModOwner(rec.Key))
	renameOwner(l.settings, ModOwner(from), ModOwner(rec.Key))
	renameOwner(l.shaders, ModOwner(from), ModOwner(rec.Key))
}

func renameOwner[K comparable, V any](stacks map[K]Stack[V], from, to OwnerID) {
	for _, s := range stacks {
		if i := s.indexOf(from); i >= 0 {
			s[i].Owner = to
		}
	}
}

// Unmerge drops every entry of the mod with key and forgets the mod. Stacks
// that no longer hold any mod entry are dropped. The filesystem is not
// touched; the uninstaller restores live values before calling this.
func (l *Log) Unmerge(key string) {
	key = ModKey(key)
	owner := ModOwner(key)
	unmergeStacks(l.files, owner)
	unmergeStacks(l.settings, owner)
	unmergeStacks(l.shaders, owner)
	l.removeMod(key)
}

func unmergeStacks[K comparable, V any](stacks map[K]Stack[V], owner OwnerID) {
	dropStacks(stacks, owner, func(K) bool { return true })
}

// dropStacks removes owner's entry from the stacks selected by drop.
func dropStacks[K comparable, V any](stacks map[K]Stack[V], owner OwnerID, drop func(K) bool) {
	for k, s := range stacks {
		if s.indexOf(owner) < 0 || !drop(k) {
			continue
		}
		s = s.remove(owner)
		if s.abandoned() {
			delete(stacks, k)
			continue
		}
		stacks[k] = s
	}
}

// MergeModuleFor rebuilds the change set of an installed mod: every
// resource in which it holds an entry, with the value it wrote.
func (l *Log) MergeModuleFor(key string) *mergemodule.MergeModule {
	owner := ModOwner(key)
	mm := mergemodule.New()
	for _, p := range l.Files() {
		if e, ok := l.files[p].Find(owner); ok {
			mm.AddFile(p, e.Value)
		}
	}
	for _, k := range l.Settings() {
		if e, ok := l.settings[k].Find(owner); ok {
			mm.AddSettingEdit(k, e.Value)
		}
	}
	for _, k := range l.Shaders() {
		if e, ok := l.shaders[k].Find(owner); ok {
			mm.AddShaderEdit(k, e.Value)
		}
	}
	return mm
}

// UncoverFile reports what removing key's entry for path would expose.
func (l *Log) UncoverFile(path, key string) (Uncover, Entry[string]) {
	return Uncovered(l.FileStack(path), ModOwner(key))
}

func (l *Log) UncoverSetting(k mergemodule.SettingKey, key string) (Uncover, Entry[string]) {
	return Uncovered(l.SettingStack(k), ModOwner(key))
}

func (l *Log) UncoverShader(k mergemodule.ShaderKey, key string) (Uncover, Entry[[]byte]) {
	return Uncovered(l.ShaderStack(k), ModOwner(key))
}
