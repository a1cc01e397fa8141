// Package commands implements modman's user-facing operations on top of the
// installer, the install log and the archive layer. Every command takes an
// Environment and returns a result value; rendering is left to pkg/ui.
package commands

import (
	stderrors "errors"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/modman/pkg/archive"
	"github.com/arthur-debert/modman/pkg/config"
	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/installer"
	"github.com/arthur-debert/modman/pkg/installlog"
	"github.com/arthur-debert/modman/pkg/mod"
	"github.com/arthur-debert/modman/pkg/paths"
	"github.com/arthur-debert/modman/pkg/types"
)

// Environment is everything a command needs to run.
type Environment struct {
	FS     types.FS
	Paths  paths.Paths
	Config *config.Config
	Store  *installlog.Store
}

// NewEnvironment wires an environment around the install log at its
// default location.
func NewEnvironment(fsys types.FS, p paths.Paths, cfg *config.Config) *Environment {
	return &Environment{
		FS:     fsys,
		Paths:  p,
		Config: cfg,
		Store:  installlog.NewStore(fsys, p.InstallLogPath()),
	}
}

// ModOptions returns wrapper detection settings from the configuration.
func (e *Environment) ModOptions() mod.Options {
	opts := mod.DefaultOptions()
	if len(e.Config.Archive.StopFolders) > 0 {
		opts.StopFolders = e.Config.Archive.StopFolders
	}
	if len(e.Config.Archive.Plugins) > 0 {
		opts.Plugins = e.Config.Archive.Plugins
	}
	return opts
}

// Installer creates an installer for this environment. An empty policy
// falls back to the configured one.
func (e *Environment) Installer(opts installer.Options) *installer.Installer {
	if opts.Policy == "" {
		opts.Policy = e.Config.Install.Policy
	}
	opts.Streaming = !e.Config.Install.ReadOnly
	return installer.New(e.FS, installer.NewLayout(e.Paths, e.Config), e.Store, opts)
}

// ResolveMod maps a mod argument to the path of its archive. Archive paths
// and existing paths are used as given; anything else is looked up in the
// mods directory, by file name first and then by base name.
func (e *Environment) ResolveMod(name string) (string, error) {
	if archive.IsArchivePath(name) {
		return name, nil
	}
	if _, err := e.FS.Stat(name); err == nil {
		return name, nil
	}
	candidate := e.Paths.ModArchivePath(name)
	if _, err := e.FS.Stat(candidate); err == nil {
		return candidate, nil
	}

	entries, err := e.FS.ReadDir(e.Paths.ModsDir())
	if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to list %s", e.Paths.ModsDir())
	}
	for _, entry := range entries {
		if strings.EqualFold(entry.Name(), name) || strings.EqualFold(mod.BaseName(entry.Name()), name) {
			return filepath.Join(e.Paths.ModsDir(), entry.Name()), nil
		}
	}
	return "", errors.Newf(errors.ErrNotFound, "mod %s not found", name).
		WithDetail("modsDir", e.Paths.ModsDir())
}

// OpenMod resolves and opens a mod, with its active flag taken from the
// install log.
func (e *Environment) OpenMod(name string) (*mod.Mod, error) {
	p, err := e.ResolveMod(name)
	if err != nil {
		return nil, err
	}
	m, err := mod.Open(e.FS, p, e.ModOptions())
	if err != nil {
		return nil, err
	}
	log, err := e.Store.Snapshot()
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	m.SetActive(log.HasMod(m.Key()))
	return m, nil
}

// availableMods lists the archives in the mods directory.
func (e *Environment) availableMods() ([]string, error) {
	dir := e.Paths.ModsDir()
	entries, err := e.FS.ReadDir(dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to list %s", dir)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		p := filepath.Join(dir, entry.Name())
		if archive.IsArchive(e.FS, p, e.Config.Archive.NonArchive) {
			out = append(out, p)
		}
	}
	return out, nil
}

func isNested(fsys types.FS, outer, name string, skip []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if ext == "" {
		return false
	}
	return archive.IsArchive(fsys, archive.GeneratePath(outer, name), skip)
}
