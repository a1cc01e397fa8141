package installer

import (
	"context"
	"path/filepath"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/installlog"
	"github.com/arthur-debert/modman/pkg/mod"
)

// Uninstall removes the mod with the given base name. The mod's archive is
// not needed: everything to undo comes from the install log.
func (in *Installer) Uninstall(ctx context.Context, baseName string) *Result {
	key := installlog.ModKey(baseName)
	return in.run(ctx, KindUninstall, key, func(op *operation) error {
		return op.uninstall()
	})
}

// UninstallMod removes an opened mod and clears its active flag on success.
func (in *Installer) UninstallMod(ctx context.Context, m *mod.Mod) *Result {
	res := in.Uninstall(ctx, m.BaseName())
	if res.Success {
		m.SetActive(false)
	}
	return res
}

func (op *operation) uninstall() error {
	if !op.ledger.HasMod(op.modKey) {
		return errors.Newf(errors.ErrModNotActive, "mod %s is not installed", op.modKey)
	}

	mm := op.ledger.MergeModuleFor(op.modKey)
	for _, f := range mm.Files() {
		if err := op.uninstallFile(f.Path); err != nil {
			return err
		}
	}
	for _, e := range mm.SettingEdits() {
		if err := op.uneditSetting(e.Key); err != nil {
			return err
		}
	}
	for _, e := range mm.ShaderEdits() {
		if err := op.uneditShader(e.Key); err != nil {
			return err
		}
	}

	op.ledger.Unmerge(op.modKey)
	return nil
}

// uninstallFile removes the mod's version of a data file. When the mod
// still owns the live file it is deleted and whatever lay below is put
// back; otherwise only the mod's backup copy goes away.
func (op *operation) uninstallFile(p string) error {
	if err := op.checkContext(); err != nil {
		return err
	}
	rel, live, err := op.gamePath(p)
	if err != nil {
		return err
	}
	me := installlog.ModOwner(op.modKey)
	backups, err := op.backupDir(rel)
	if err != nil {
		return err
	}

	found, err := exists(op.tx, live)
	if err != nil {
		return err
	}
	if owner, ok := op.ledger.CurrentFileOwner(rel); found && ok && owner == me {
		if err := op.tx.Remove(live); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "failed to remove %s", rel)
		}
		if err := op.uncover(rel, live, backups); err != nil {
			return err
		}
		op.result.Files++
	}

	own, _, err := op.findBackup(backups, me, filepath.Base(live))
	if err != nil {
		return err
	}
	if own != "" {
		if err := op.tx.Remove(own); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "failed to remove %s", own)
		}
		return op.pruneEmpty(backups, op.layout.OverwritesDir)
	}
	return nil
}

// uncover restores the file that the mod's version superseded.
func (op *operation) uncover(rel, live, backups string) error {
	uncover, below := op.ledger.UncoverFile(rel, op.modKey)
	if uncover == installlog.NeverTracked {
		return op.pruneEmpty(filepath.Dir(live), op.layout.GameDir)
	}

	backup, name, err := op.findBackup(backups, below.Owner, filepath.Base(live))
	if err != nil {
		return err
	}
	if backup == "" {
		op.warn("backup of %s for %s is missing from %s; the file was removed", rel, below.Owner, backups)
		return op.pruneEmpty(filepath.Dir(live), op.layout.GameDir)
	}

	if err := op.tx.Copy(backup, filepath.Join(filepath.Dir(live), name)); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to restore %s", rel)
	}
	if err := op.tx.Remove(backup); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to remove %s", backup)
	}
	op.logger.Debug().Str("path", rel).Stringer("owner", below.Owner).Msg("Restored superseded file")
	return op.pruneEmpty(backups, op.layout.OverwritesDir)
}
