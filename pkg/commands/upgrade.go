package commands

import (
	"context"
	"strings"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/installer"
	"github.com/arthur-debert/modman/pkg/installlog"
	"github.com/arthur-debert/modman/pkg/logging"
	"github.com/arthur-debert/modman/pkg/mod"
)

// UpgradeOptions defines the options for UpgradeMods.
type UpgradeOptions struct {
	// Mods are the archives holding the new versions.
	Mods []string
	// Replaces names the installed mod to upgrade. It needs exactly one mod;
	// otherwise each archive replaces the installed mod with its base name
	// or, failing that, the installed mod with the same display name.
	Replaces string
	// Force upgrades mods whose installed version already matches.
	Force     bool
	Installer installer.Options
}

// UpgradeMods upgrades each mod in place in its own transaction.
func UpgradeMods(ctx context.Context, env *Environment, opts UpgradeOptions) (*OperationResult, error) {
	log := logging.GetLogger("commands.upgrade")
	log.Debug().Strs("mods", opts.Mods).Str("replaces", opts.Replaces).Bool("force", opts.Force).Msg("Executing command")

	if opts.Replaces != "" && len(opts.Mods) != 1 {
		return nil, errors.New(errors.ErrInvalidInput, "a replaced mod can only be named when upgrading one mod")
	}

	mods := make([]*mod.Mod, 0, len(opts.Mods))
	defer func() {
		for _, m := range mods {
			_ = m.Close()
		}
	}()
	for _, name := range opts.Mods {
		m, err := env.OpenMod(name)
		if err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}

	in := env.Installer(opts.Installer)
	result := &OperationResult{}
	for _, m := range mods {
		if err := ctx.Err(); err != nil {
			break
		}
		replaces := opts.Replaces
		if replaces == "" {
			found, err := installedVersionOf(env, m)
			if err != nil {
				return nil, err
			}
			replaces = found
		}
		log.Debug().Str("mod", m.Key()).Str("replaces", replaces).Msg("Upgrading")
		result.Results = append(result.Results, in.Upgrade(ctx, m, installer.UpgradeOptions{
			Replaces: replaces,
			Force:    opts.Force,
		}))
	}

	log.Info().Int("mods", len(result.Results)).Int("failed", result.Failed()).Msg("Command finished")
	return result, nil
}

// installedVersionOf finds the installed mod m upgrades: the one recorded
// under m's base name, else the only one with the same display name.
func installedVersionOf(env *Environment, m *mod.Mod) (string, error) {
	ledger, err := env.Store.Snapshot()
	if err != nil {
		return "", err
	}
	if ledger.HasMod(m.Key()) {
		return m.Key(), nil
	}
	var matches []installlog.ModRecord
	for _, rec := range ledger.Mods() {
		if rec.Name != "" && strings.EqualFold(rec.Name, m.Name) {
			matches = append(matches, rec)
		}
	}
	switch len(matches) {
	case 0:
		return m.Key(), nil
	case 1:
		return matches[0].Key, nil
	default:
		return "", errors.Newf(errors.ErrInvalidInput, "several installed mods are named %s; name the one to replace", m.Name)
	}
}
