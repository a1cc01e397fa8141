// Package conflict decides what happens when an install would overwrite a
// data file, settings value or shader that already exists.
//
// A Resolver lives for one install. It remembers the "all", "folder" and
// "mod" answers given during that install so the user is not asked the same
// question twice; none of that state is persisted.
package conflict

import (
	stderrors "errors"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/logging"
	"github.com/arthur-debert/modman/pkg/mergemodule"
	"github.com/arthur-debert/modman/pkg/paths"
	"github.com/arthur-debert/modman/pkg/types"
	"github.com/rs/zerolog"
)

// FileConflict describes a data file that already exists.
type FileConflict struct {
	// Path is relative to the managed root, forward slashes.
	Path string
	// Owner is the key of the mod that installed the live file, empty when
	// no mod did.
	Owner string
}

// SettingConflict describes a settings value about to change.
type SettingConflict struct {
	Key      mergemodule.SettingKey
	Owner    string
	OldValue string
	NewValue string
}

// ShaderConflict describes a shader owned by another mod.
type ShaderConflict struct {
	Key   mergemodule.ShaderKey
	Owner string
}

// Prompter asks the user. Implementations must only return values defined
// by Result and TextResult.
type Prompter interface {
	OverwriteFile(c FileConflict) (Result, error)
	OverwriteSetting(c SettingConflict) (TextResult, error)
	OverwriteShader(c ShaderConflict) (bool, error)
}

// Resolver applies remembered answers before falling back to the prompter.
type Resolver struct {
	fsys     types.FS
	root     string
	prompter Prompter
	logger   zerolog.Logger

	applyAll, skipAll bool
	applyFolders      map[string]bool
	skipFolders       map[string]bool
	applyMods         map[string]bool
	skipMods          map[string]bool

	applyAllSettings, skipAllSettings bool
	shaderPolicy                      *bool

	prompts int
}

// NewResolver creates a resolver for one operation on the tree below root.
func NewResolver(fsys types.FS, root string, prompter Prompter) *Resolver {
	return &Resolver{
		fsys:         fsys,
		root:         root,
		prompter:     prompter,
		logger:       logging.GetLogger("conflict"),
		applyFolders: make(map[string]bool),
		skipFolders:  make(map[string]bool),
		applyMods:    make(map[string]bool),
		skipMods:     make(map[string]bool),
	}
}

// Preset answers every later question the same way, as "yes to all" or
// "no to all" for files, settings and shaders.
func (r *Resolver) Preset(apply bool) {
	r.applyAll, r.skipAll = apply, !apply
	r.applyAllSettings, r.skipAllSettings = apply, !apply
	r.shaderPolicy = &apply
}

// Prompts returns how many times the prompter was consulted.
func (r *Resolver) Prompts() int { return r.prompts }

// FolderDecision reports the remembered answer for dir, relative to root.
func (r *Resolver) FolderDecision(dir string) (apply, decided bool) {
	k := folderKey(dir)
	if r.applyFolders[k] {
		return true, true
	}
	if r.skipFolders[k] {
		return false, true
	}
	return false, false
}

// ResolveFile reports whether the data file at c.Path may be written.
func (r *Resolver) ResolveFile(c FileConflict) (bool, error) {
	live := filepath.Join(r.root, filepath.FromSlash(c.Path))
	if _, err := r.fsys.Stat(live); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, errors.Wrapf(err, errors.ErrFileAccess, "failed to check %s", c.Path)
	}

	parent := path.Dir(paths.ToSlash(c.Path))
	dir := folderKey(parent)
	switch {
	case r.applyFolders[dir]:
		return true, nil
	case r.skipFolders[dir]:
		return false, nil
	case r.applyAll:
		return true, nil
	case r.skipAll:
		return false, nil
	case c.Owner != "" && r.applyMods[c.Owner]:
		return true, nil
	case c.Owner != "" && r.skipMods[c.Owner]:
		return false, nil
	}

	r.prompts++
	result, err := r.prompter.OverwriteFile(c)
	if err != nil {
		return false, err
	}
	r.logger.Debug().Str("path", c.Path).Str("owner", c.Owner).Stringer("answer", result).Msg("Overwrite answered")

	switch result {
	case ApplyOnce:
		return true, nil
	case SkipOnce:
		return false, nil
	case ApplyAll:
		r.applyAll = true
		return true, nil
	case SkipAll:
		r.skipAll = true
		return false, nil
	case ApplyFolder:
		if err := r.markFolders(parent, r.applyFolders, r.skipFolders); err != nil {
			return false, err
		}
		return true, nil
	case SkipFolder:
		if err := r.markFolders(parent, r.skipFolders, r.applyFolders); err != nil {
			return false, err
		}
		return false, nil
	case ApplyMod:
		if c.Owner != "" {
			r.applyMods[c.Owner] = true
		}
		return true, nil
	case SkipMod:
		if c.Owner != "" {
			r.skipMods[c.Owner] = true
		}
		return false, nil
	default:
		return false, errors.Newf(errors.ErrConflictInvariant, "overwrite prompt returned unknown result %d", int(result))
	}
}

// markFolders records start and every directory below it on disk,
// breadth first. Directories already in other keep their answer and are
// not descended into.
func (r *Resolver) markFolders(start string, set, other map[string]bool) error {
	queue := []string{start}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]
		k := folderKey(dir)
		if other[k] || set[k] {
			continue
		}
		set[k] = true

		entries, err := r.fsys.ReadDir(filepath.Join(r.root, filepath.FromSlash(dir)))
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return errors.Wrapf(err, errors.ErrFileAccess, "failed to list %s", dir)
		}
		for _, e := range entries {
			if e.IsDir() {
				queue = append(queue, path.Join(dir, e.Name()))
			}
		}
	}
	return nil
}

// ResolveSetting reports whether a settings value may be written.
func (r *Resolver) ResolveSetting(c SettingConflict) (bool, error) {
	if r.skipAllSettings {
		return false, nil
	}
	if r.applyAllSettings {
		return true, nil
	}

	r.prompts++
	result, err := r.prompter.OverwriteSetting(c)
	if err != nil {
		return false, err
	}
	switch result {
	case Yes:
		return true, nil
	case No:
		return false, nil
	case YesToAll:
		r.applyAllSettings = true
		return true, nil
	case NoToAll:
		r.skipAllSettings = true
		return false, nil
	default:
		return false, errors.Newf(errors.ErrConflictInvariant, "settings prompt returned unknown result %d", int(result))
	}
}

// SkipAllSettings reports whether the user refused every settings edit.
// Installers check it before reading the old value.
func (r *Resolver) SkipAllSettings() bool { return r.skipAllSettings }

// ResolveShader reports whether a shader owned by another mod may be replaced.
func (r *Resolver) ResolveShader(c ShaderConflict) (bool, error) {
	if r.shaderPolicy != nil {
		return *r.shaderPolicy, nil
	}
	r.prompts++
	return r.prompter.OverwriteShader(c)
}

func folderKey(dir string) string {
	dir = strings.ToLower(path.Clean(strings.ReplaceAll(dir, "\\", "/")))
	if dir == "." || dir == "/" {
		return ""
	}
	return strings.TrimPrefix(dir, "/")
}
