package installer

import (
	"context"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/mod"
	"github.com/arthur-debert/modman/pkg/paths"
)

// ScriptAPI is everything an install plan can do. The plan never touches
// the filesystem except through it.
type ScriptAPI interface {
	// InstallFile installs a file from the mod to the same data path.
	InstallFile(from string) (bool, error)
	// CopyDataFile installs a file from the mod to another data path.
	CopyDataFile(from, to string) (bool, error)
	// GenerateDataFile writes data to a data path.
	GenerateDataFile(to string, data []byte) (bool, error)
	EditSetting(file, section, key, value string) (bool, error)
	EditShader(pkg int, name string, data []byte) (bool, error)

	// CurrentOwner returns the key of the mod owning a data file, if any.
	CurrentOwner(path string) (string, bool)
	// DataFileExists reports whether a data file exists, staged writes included.
	DataFileExists(path string) (bool, error)
	// ModFiles lists the mod's files below dir, "" for all of them.
	ModFiles(dir string) []string
	ModFileExists(path string) bool
	ReadModFile(path string) ([]byte, error)
}

// InstallOptions tune one install.
type InstallOptions struct {
	// Reinstall runs the install even when the mod is already installed.
	Reinstall bool
}

// Install installs an opened mod. The mod's active flag is set only when
// the whole install committed.
func (in *Installer) Install(ctx context.Context, m *mod.Mod, opts InstallOptions) *Result {
	res := in.run(ctx, KindInstall, m.Key(), func(op *operation) error {
		if op.ledger.HasMod(op.modKey) && !opts.Reinstall {
			return errors.Newf(errors.ErrModAlreadyActive, "mod %s is already installed", op.modKey)
		}
		return op.install(m)
	})
	if res.Success {
		m.SetActive(true)
	}
	return res
}

func (op *operation) install(m *mod.Mod) error {
	if !op.streaming {
		if err := m.BeginReadOnly(op.ctx, op.progress); err != nil {
			return err
		}
		defer m.EndReadOnly()
	}

	api := &scriptContext{op: op, mod: m}
	switch {
	case m.HasScript():
		data, err := m.Script()
		if err != nil {
			return err
		}
		plan, err := ParsePlan(data)
		if err != nil {
			return err
		}
		op.logger.Debug().Int("steps", len(plan.Steps)).Msg("Running install plan")
		if err := plan.Run(api); err != nil {
			return err
		}
	case m.LegacyScript() != "":
		return errors.Newf(errors.ErrUnsupported, "install script %s cannot be run; add fomod/script.yaml", m.LegacyScript())
	default:
		if m.RequiresScript() {
			op.warn("mod %s has plugins in subdirectories and no install plan; installing every file as is", m.BaseName())
		}
		if err := op.basicInstall(api); err != nil {
			return err
		}
	}

	if op.upgrade {
		if err := op.reconcile(); err != nil {
			return err
		}
		if m.Key() != op.modKey {
			if err := op.renameBackups(m.Key()); err != nil {
				return err
			}
		}
		op.ledger.MergeUpgrade(op.modKey, m.Record(), op.mm)
		return nil
	}
	op.ledger.Merge(m.Record(), op.mm)
	return nil
}

// basicInstall copies every file of the mod outside fomod/.
func (op *operation) basicInstall(api ScriptAPI) error {
	files := api.ModFiles("")
	op.progress.Start("Installing "+op.modKey, len(files))
	defer op.progress.Done()
	for _, f := range files {
		op.progress.Step(f)
		if _, err := api.InstallFile(f); err != nil {
			return err
		}
	}
	return nil
}

// scriptContext binds the ScriptAPI to one install.
type scriptContext struct {
	op  *operation
	mod *mod.Mod
}

func (s *scriptContext) InstallFile(from string) (bool, error) {
	return s.CopyDataFile(from, from)
}

func (s *scriptContext) CopyDataFile(from, to string) (bool, error) {
	if err := paths.ValidateRelativePath(to); err != nil {
		return false, err
	}
	data, err := s.ReadModFile(from)
	if err != nil {
		return false, err
	}
	return s.op.writeDataFile(to, data)
}

func (s *scriptContext) GenerateDataFile(to string, data []byte) (bool, error) {
	return s.op.writeDataFile(to, data)
}

func (s *scriptContext) EditSetting(file, section, key, value string) (bool, error) {
	return s.op.editSetting(file, section, key, value)
}

func (s *scriptContext) EditShader(pkg int, name string, data []byte) (bool, error) {
	return s.op.editShader(pkg, name, data)
}

func (s *scriptContext) CurrentOwner(path string) (string, bool) {
	owner, ok := s.op.ledger.CurrentFileOwner(path)
	if !ok || owner.IsOriginal() {
		return "", false
	}
	return owner.Key(), true
}

func (s *scriptContext) DataFileExists(path string) (bool, error) {
	_, live, err := s.op.gamePath(path)
	if err != nil {
		return false, err
	}
	return exists(s.op.tx, live)
}

func (s *scriptContext) ModFiles(dir string) []string {
	if dir == "" {
		return s.mod.FileList()
	}
	return s.mod.FilesIn(dir)
}

func (s *scriptContext) ModFileExists(path string) bool {
	return s.mod.ContainsFile(path)
}

func (s *scriptContext) ReadModFile(path string) ([]byte, error) {
	if !s.mod.ContainsFile(path) {
		return nil, errors.Newf(errors.ErrFileNotFound, "file not found in mod: %s", path).
			WithDetail("file", path)
	}
	return s.mod.ReadFile(path)
}
