package installer

import (
	"context"
	"path"
	"path/filepath"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/installlog"
	"github.com/arthur-debert/modman/pkg/mod"
)

// UpgradeOptions tune one upgrade.
type UpgradeOptions struct {
	// Replaces is the base name the installed version was recorded under.
	// Empty means the new archive's own base name.
	Replaces string
	// Force runs the upgrade even when the installed version matches, which
	// reapplies the mod without moving it in the stacks.
	Force bool
}

// Upgrade replaces an installed mod with another version of it. Resources
// the mod held keep their place under any mod installed since, and the
// resources the new version no longer writes are reverted as an uninstall
// would. When the archive's base name differs from the installed one the
// mod is recorded under the new name from then on.
func (in *Installer) Upgrade(ctx context.Context, m *mod.Mod, opts UpgradeOptions) *Result {
	from := m.Key()
	if opts.Replaces != "" {
		from = installlog.ModKey(opts.Replaces)
	}
	res := in.run(ctx, KindUpgrade, from, func(op *operation) error {
		rec, ok := op.ledger.ModRecord(op.modKey)
		if !ok {
			return errors.Newf(errors.ErrModNotActive, "mod %s is not installed", op.modKey)
		}
		if m.Key() != op.modKey && op.ledger.HasMod(m.Key()) {
			return errors.Newf(errors.ErrModAlreadyActive, "mod %s is already installed", m.Key())
		}
		if !opts.Force && rec.Version != "" && rec.Version == m.Version {
			op.logger.Info().Str("version", rec.Version).Msg("Already at this version")
			op.result.UpToDate = true
			return nil
		}
		op.upgrade = true
		op.previous = op.ledger.MergeModuleFor(op.modKey)
		return op.install(m)
	})
	if res.Success {
		m.SetActive(true)
	}
	return res
}

// reconcile reverts what the previous version wrote and the new one did
// not.
func (op *operation) reconcile() error {
	for _, f := range op.previous.Files() {
		if op.mm.ContainsFile(f.Path) {
			continue
		}
		if err := op.uninstallFile(f.Path); err != nil {
			return err
		}
	}
	for _, e := range op.previous.SettingEdits() {
		if op.mm.ContainsSettingEdit(e.Key) {
			continue
		}
		if err := op.uneditSetting(e.Key); err != nil {
			return err
		}
	}
	for _, e := range op.previous.ShaderEdits() {
		if op.mm.ContainsShaderEdit(e.Key) {
			continue
		}
		if err := op.uneditShader(e.Key); err != nil {
			return err
		}
	}
	return nil
}

// renameBackups moves the mod's backup copies to the names they take under
// the key to.
func (op *operation) renameBackups(to string) error {
	me := installlog.ModOwner(op.modKey)
	for _, f := range op.mm.Files() {
		if held, current := heldBy(op.ledger.FileStack(f.Path), me); !held || current {
			continue
		}
		dir, err := op.backupDir(f.Path)
		if err != nil {
			return err
		}
		own, name, err := op.findBackup(dir, me, path.Base(f.Path))
		if err != nil {
			return err
		}
		if own == "" {
			continue
		}
		if err := op.tx.Copy(own, filepath.Join(dir, backupName(installlog.ModOwner(to), name))); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "failed to rename %s", own)
		}
		if err := op.tx.Remove(own); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "failed to remove %s", own)
		}
	}
	return nil
}

// heldBy reports whether the previous version of the mod wrote a resource
// and, if so, whether it is still the current owner.
func heldBy[V any](s installlog.Stack[V], me installlog.OwnerID) (held, current bool) {
	if _, ok := s.Find(me); !ok {
		return false, false
	}
	top, _ := s.Current()
	return true, top.Owner == me
}

// upgradeDataFile writes the new bytes of a data file the mod already holds:
// live when it is on top, otherwise over its own backup so the mod above
// keeps the game.
func (op *operation) upgradeDataFile(rel, live string, data []byte) error {
	me := installlog.ModOwner(op.modKey)
	_, current := heldBy(op.ledger.FileStack(rel), me)

	target := live
	if !current {
		dir, err := op.backupDir(rel)
		if err != nil {
			return err
		}
		own, _, err := op.findBackup(dir, me, filepath.Base(live))
		if err != nil {
			return err
		}
		target = own
		if target == "" {
			target = filepath.Join(dir, backupName(me, filepath.Base(live)))
		}
	}

	if err := op.tx.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", filepath.Dir(target))
	}
	if err := op.tx.WriteFile(target, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to write %s", rel)
	}
	op.mm.AddFile(rel, HashBytes(data))
	op.result.Files++
	op.logger.Debug().Str("path", rel).Bool("live", current).Msg("Upgraded file")
	return nil
}
