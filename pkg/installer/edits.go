package installer

import (
	"github.com/arthur-debert/modman/pkg/conflict"
	"github.com/arthur-debert/modman/pkg/installlog"
	"github.com/arthur-debert/modman/pkg/mergemodule"
)

// editSetting writes one settings value. It reports false when the edit was
// refused.
func (op *operation) editSetting(file, section, key, value string) (bool, error) {
	if err := op.checkContext(); err != nil {
		return false, err
	}

	k := mergemodule.NewSettingKey(file, section, key)
	if op.upgrade {
		if held, current := heldBy(op.ledger.SettingStack(k), installlog.ModOwner(op.modKey)); held {
			if current {
				if err := op.settings.Write(file, section, key, value); err != nil {
					return false, err
				}
			}
			op.mm.AddSettingEdit(k, value)
			op.result.Settings++
			op.logger.Debug().Stringer("setting", k).Bool("live", current).Msg("Upgraded setting")
			return true, nil
		}
	}
	if op.resolver.SkipAllSettings() {
		return false, nil
	}

	owner, owned := op.ledger.CurrentSettingOwner(k)
	old, had, err := op.settings.Read(file, section, key)
	if err != nil {
		return false, err
	}

	var ownerKey string
	if owned && !owner.IsOriginal() {
		ownerKey = owner.Key()
	}
	ok, err := op.resolver.ResolveSetting(conflict.SettingConflict{
		Key:      k,
		Owner:    ownerKey,
		OldValue: old,
		NewValue: value,
	})
	if err != nil || !ok {
		return false, err
	}

	if ownerKey == "" && had {
		op.mm.BackupOriginalSetting(k, old)
	}
	if err := op.settings.Write(file, section, key, value); err != nil {
		return false, err
	}
	op.mm.AddSettingEdit(k, value)
	op.result.Settings++
	op.logger.Debug().Stringer("setting", k).Str("value", value).Msg("Edited setting")
	return true, nil
}

// editShader replaces one shader blob. It reports false when replacing
// another mod's shader was refused.
func (op *operation) editShader(pkg int, name string, data []byte) (bool, error) {
	if err := op.checkContext(); err != nil {
		return false, err
	}

	k := mergemodule.NewShaderKey(pkg, name)
	if op.upgrade {
		if held, current := heldBy(op.ledger.ShaderStack(k), installlog.ModOwner(op.modKey)); held {
			if current {
				if _, err := op.shaders.Replace(k, data); err != nil {
					return false, err
				}
			}
			op.mm.AddShaderEdit(k, data)
			op.result.Shaders++
			op.logger.Debug().Stringer("shader", k).Bool("live", current).Msg("Upgraded shader")
			return true, nil
		}
	}
	owner, owned := op.ledger.CurrentShaderOwner(k)
	if owned && !owner.IsOriginal() && owner.Key() != op.modKey {
		ok, err := op.resolver.ResolveShader(conflict.ShaderConflict{Key: k, Owner: owner.Key()})
		if err != nil || !ok {
			return false, err
		}
	}

	old, err := op.shaders.Replace(k, data)
	if err != nil {
		return false, err
	}
	if !owned {
		op.mm.BackupOriginalShader(k, old)
	}
	op.mm.AddShaderEdit(k, data)
	op.result.Shaders++
	op.logger.Debug().Stringer("shader", k).Int("bytes", len(data)).Msg("Edited shader")
	return true, nil
}

// uneditSetting reverts a settings value the mod still owns. A value
// another mod has since overwritten is left alone.
func (op *operation) uneditSetting(k mergemodule.SettingKey) error {
	if err := op.checkContext(); err != nil {
		return err
	}
	me := installlog.ModOwner(op.modKey)
	if owner, ok := op.ledger.CurrentSettingOwner(k); !ok || owner != me {
		return nil
	}

	switch uncover, below := op.ledger.UncoverSetting(k, op.modKey); uncover {
	case installlog.HadPriorMod, installlog.HadOriginal:
		if err := op.settings.Write(k.File, k.Section, k.Key, below.Value); err != nil {
			return err
		}
	case installlog.NeverTracked:
		if err := op.settings.Delete(k.File, k.Section, k.Key); err != nil {
			return err
		}
	}
	op.result.Settings++
	op.logger.Debug().Stringer("setting", k).Msg("Reverted setting")
	return nil
}

// uneditShader puts back the blob below the mod's, when it still owns the
// shader.
func (op *operation) uneditShader(k mergemodule.ShaderKey) error {
	if err := op.checkContext(); err != nil {
		return err
	}
	me := installlog.ModOwner(op.modKey)
	if owner, ok := op.ledger.CurrentShaderOwner(k); !ok || owner != me {
		return nil
	}

	switch uncover, below := op.ledger.UncoverShader(k, op.modKey); uncover {
	case installlog.HadPriorMod, installlog.HadOriginal:
		if _, err := op.shaders.Replace(k, below.Value); err != nil {
			return err
		}
	case installlog.NeverTracked:
		op.warn("no earlier version of shader %s is recorded; it keeps the uninstalled mod's data", k)
		return nil
	}
	op.result.Shaders++
	op.logger.Debug().Stringer("shader", k).Msg("Reverted shader")
	return nil
}
