package commands

import (
	"context"

	"github.com/arthur-debert/modman/pkg/installer"
	"github.com/arthur-debert/modman/pkg/logging"
	"github.com/arthur-debert/modman/pkg/mod"
)

// InstallOptions defines the options for InstallMods.
type InstallOptions struct {
	// Mods are names in the mods directory, paths or archive paths.
	Mods []string
	// Reinstall installs mods that are already installed again.
	Reinstall bool
	// Installer carries the prompter, policy and progress sink.
	Installer installer.Options
}

// OperationResult collects the outcome of one operation per mod.
type OperationResult struct {
	Results []*installer.Result
}

// Failed counts the operations that did not succeed.
func (r *OperationResult) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Success {
			n++
		}
	}
	return n
}

// InstallMods installs each mod in its own transaction. Every mod is opened
// before the first one is installed, so a typo installs nothing.
func InstallMods(ctx context.Context, env *Environment, opts InstallOptions) (*OperationResult, error) {
	log := logging.GetLogger("commands.install")
	log.Debug().Strs("mods", opts.Mods).Bool("reinstall", opts.Reinstall).Msg("Executing command")

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
		result.Results = append(result.Results, in.Install(ctx, m, installer.InstallOptions{Reinstall: opts.Reinstall}))
	}

	log.Info().Int("mods", len(result.Results)).Int("failed", result.Failed()).Msg("Command finished")
	return result, nil
}

// UninstallOptions defines the options for UninstallMods.
type UninstallOptions struct {
	// Mods are names, paths or base names of installed mods. The archive
	// does not need to exist.
	Mods      []string
	Installer installer.Options
}

// UninstallMods uninstalls each mod in its own transaction.
func UninstallMods(ctx context.Context, env *Environment, opts UninstallOptions) (*OperationResult, error) {
	log := logging.GetLogger("commands.uninstall")
	log.Debug().Strs("mods", opts.Mods).Msg("Executing command")

	in := env.Installer(opts.Installer)
	result := &OperationResult{}
	for _, name := range opts.Mods {
		if err := ctx.Err(); err != nil {
			break
		}
		base := name
		if p, err := env.ResolveMod(name); err == nil {
			base = mod.BaseName(p)
		}
		result.Results = append(result.Results, in.Uninstall(ctx, base))
	}

	log.Info().Int("mods", len(result.Results)).Int("failed", result.Failed()).Msg("Command finished")
	return result, nil
}

// Recover replays a journal left by an interrupted commit.
func Recover(ctx context.Context, env *Environment) (bool, error) {
	return env.Installer(installer.Options{}).Recover(ctx)
}
