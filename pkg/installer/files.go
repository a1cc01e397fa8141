package installer

import (
	stderrors "errors"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/modman/pkg/conflict"
	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/filesystem"
	"github.com/arthur-debert/modman/pkg/installlog"
	"github.com/arthur-debert/modman/pkg/internal/hashutil"
	"github.com/arthur-debert/modman/pkg/paths"
	"github.com/arthur-debert/modman/pkg/types"
)

// HashBytes returns the hex BLAKE3 digest recorded in the install log.
func HashBytes(data []byte) string {
	return hashutil.Sum(data)
}

func isNotExist(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist)
}

func exists(fsys types.FS, p string) (bool, error) {
	if _, err := fsys.Stat(p); err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, errors.ErrFileAccess, "failed to check %s", p)
	}
	return true, nil
}

func isDir(fsys types.FS, p string) (bool, error) {
	info, err := fsys.Stat(p)
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, errors.ErrFileAccess, "failed to check %s", p)
	}
	return info.IsDir(), nil
}

func backupName(owner installlog.OwnerID, name string) string {
	return owner.String() + "_" + name
}

// gamePath resolves a data path supplied by a mod to its live location.
// It returns the case-resolved relative path with it.
func (op *operation) gamePath(rel string) (string, string, error) {
	if err := paths.ValidateRelativePath(rel); err != nil {
		return "", "", err
	}
	return filesystem.LivePath(op.tx, op.layout.GameDir, rel)
}

// backupDir returns the overwrites directory mirroring the directory of rel.
func (op *operation) backupDir(rel string) (string, error) {
	dir := path.Dir(rel)
	if dir == "." {
		return op.layout.OverwritesDir, nil
	}
	cased, err := filesystem.ResolveCase(op.tx, op.layout.OverwritesDir, dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(op.layout.OverwritesDir, filepath.FromSlash(cased)), nil
}

// findBackup looks for owner's copy of the file named name in dir and
// returns its path with the cased name of the file it preserves.
func (op *operation) findBackup(dir string, owner installlog.OwnerID, name string) (string, string, error) {
	entries, err := op.tx.ReadDir(dir)
	if err != nil {
		if isNotExist(err) {
			return "", "", nil
		}
		return "", "", errors.Wrapf(err, errors.ErrFileAccess, "failed to list %s", dir)
	}
	want := backupName(owner, name)
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), want) {
			return filepath.Join(dir, e.Name()), e.Name()[len(owner.String())+1:], nil
		}
	}
	return "", "", nil
}

// writeDataFile is the body of every file primitive. It reports false when
// an overwrite answer kept the existing file.
func (op *operation) writeDataFile(to string, data []byte) (bool, error) {
	if err := op.checkContext(); err != nil {
		return false, err
	}
	rel, live, err := op.gamePath(to)
	if err != nil {
		return false, err
	}
	logger := op.logger.With().Str("path", rel).Logger()

	if op.upgrade {
		if held, _ := heldBy(op.ledger.FileStack(rel), installlog.ModOwner(op.modKey)); held {
			if err := op.upgradeDataFile(rel, live, data); err != nil {
				return false, err
			}
			return true, nil
		}
	}

	parent := filepath.Dir(live)
	parentExists, err := isDir(op.tx, parent)
	if err != nil {
		return false, err
	}
	if !parentExists {
		if err := op.tx.MkdirAll(parent, 0755); err != nil {
			return false, errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", parent)
		}
	} else if !op.mm.ContainsFile(rel) {
		var ownerKey string
		owner, owned := op.ledger.CurrentFileOwner(rel)
		if owned && !owner.IsOriginal() {
			ownerKey = owner.Key()
		}
		ok, err := op.resolver.ResolveFile(conflict.FileConflict{Path: rel, Owner: ownerKey})
		if err != nil {
			return false, err
		}
		if !ok {
			logger.Debug().Msg("Kept existing file")
			op.result.Skipped = append(op.result.Skipped, rel)
			return false, nil
		}

		found, err := exists(op.tx, live)
		if err != nil {
			return false, err
		}
		if found {
			if err := op.supersede(rel, live, ownerKey); err != nil {
				return false, err
			}
		}
	}

	if err := op.tx.WriteFile(live, data, 0644); err != nil {
		return false, errors.Wrapf(err, errors.ErrFileWrite, "failed to write %s", rel)
	}
	op.mm.AddFile(rel, HashBytes(data))
	op.result.Files++
	logger.Debug().Int("bytes", len(data)).Msg("Installed file")
	return true, nil
}

// supersede moves the live file out of the way before it is overwritten.
// A file the installing mod already owns is replaced without a backup.
func (op *operation) supersede(rel, live, ownerKey string) error {
	me := installlog.ModOwner(op.modKey)
	if ownerKey != op.modKey {
		prev := installlog.Original
		if ownerKey != "" {
			prev = installlog.ModOwner(ownerKey)
		} else {
			existing, err := op.tx.ReadFile(live)
			if err != nil {
				return errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", rel)
			}
			op.mm.BackupOriginalFile(rel, HashBytes(existing))
		}

		dir, err := op.backupDir(rel)
		if err != nil {
			return err
		}
		if err := op.tx.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", dir)
		}
		name := filepath.Base(live)
		if err := op.tx.Copy(live, filepath.Join(dir, backupName(prev, name))); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "failed to back up %s", rel)
		}

		// reinstalling under another mod leaves our old backup stale
		if _, held := op.ledger.FileStack(rel).Find(me); held {
			stale, _, err := op.findBackup(dir, me, name)
			if err != nil {
				return err
			}
			if stale != "" {
				if err := op.tx.Remove(stale); err != nil {
					return errors.Wrapf(err, errors.ErrFileWrite, "failed to remove %s", stale)
				}
			}
		}
	}

	if err := op.tx.Remove(live); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to remove %s", rel)
	}
	return nil
}

// pruneEmpty removes dir and its parents while they are empty, stopping
// before stop.
func (op *operation) pruneEmpty(dir, stop string) error {
	for dir != stop && paths.ContainsPath(stop, dir) {
		removed, err := op.tx.RemoveEmptyDir(dir)
		if err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "failed to remove %s", dir)
		}
		if !removed {
			return nil
		}
		dir = filepath.Dir(dir)
	}
	return nil
}
