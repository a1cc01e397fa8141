package modman

import (
	"fmt"

	"github.com/arthur-debert/modman/internal/version"
	"github.com/arthur-debert/modman/pkg/commands"
	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newInstallCmd(g *globalOptions) *cobra.Command {
	var reinstall bool
	cmd := &cobra.Command{
		Use:               "install <mod>...",
		Short:             MsgInstallShort,
		Long:              MsgInstallLong,
		Example:           MsgInstallExample,
		GroupID:           "mods",
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: modNamesCompletion(g),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			opts, err := s.installerOptions(cmd)
			if err != nil {
				return err
			}

			log.Info().Strs("mods", args).Bool("reinstall", reinstall).Str("policy", opts.Policy).Msg("Installing mods")
			result, err := commands.InstallMods(cmd.Context(), s.env, commands.InstallOptions{
				Mods:      args,
				Reinstall: reinstall,
				Installer: opts,
			})
			if err != nil {
				return err
			}
			return s.render(result, failures(result))
		},
	}
	cmd.Flags().BoolVar(&reinstall, "reinstall", false, MsgFlagReinstall)
	addPolicyFlags(cmd.Flags())
	return cmd
}

func newUpgradeCmd(g *globalOptions) *cobra.Command {
	var replaces string
	var force bool
	cmd := &cobra.Command{
		Use:               "upgrade <mod>...",
		Short:             MsgUpgradeShort,
		Long:              MsgUpgradeLong,
		Example:           MsgUpgradeExample,
		GroupID:           "mods",
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: modNamesCompletion(g),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			opts, err := s.installerOptions(cmd)
			if err != nil {
				return err
			}

			log.Info().Strs("mods", args).Str("replaces", replaces).Bool("force", force).Msg("Upgrading mods")
			result, err := commands.UpgradeMods(cmd.Context(), s.env, commands.UpgradeOptions{
				Mods:      args,
				Replaces:  replaces,
				Force:     force,
				Installer: opts,
			})
			if err != nil {
				return err
			}
			return s.render(result, failures(result))
		},
	}
	cmd.Flags().StringVar(&replaces, "replaces", "", MsgFlagReplaces)
	cmd.Flags().BoolVar(&force, "force", false, MsgFlagForce)
	addPolicyFlags(cmd.Flags())
	return cmd
}

func newUninstallCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "uninstall <mod>...",
		Aliases:           []string{"remove"},
		Short:             MsgUninstallShort,
		Long:              MsgUninstallLong,
		GroupID:           "mods",
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: modNamesCompletion(g),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			opts, err := s.installerOptions(cmd)
			if err != nil {
				return err
			}

			log.Info().Strs("mods", args).Msg("Uninstalling mods")
			result, err := commands.UninstallMods(cmd.Context(), s.env, commands.UninstallOptions{
				Mods:      args,
				Installer: opts,
			})
			if err != nil {
				return err
			}
			return s.render(result, failures(result))
		},
	}
	addPolicyFlags(cmd.Flags())
	return cmd
}

func failures(result *commands.OperationResult) error {
	if n := result.Failed(); n > 0 {
		return errors.Newf(errors.ErrTransaction, MsgErrOpsFailed, n, len(result.Results))
	}
	return nil
}

func newRecoverCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "recover",
		Short:   MsgRecoverShort,
		Long:    MsgRecoverLong,
		GroupID: "mods",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			recovered, err := commands.Recover(cmd.Context(), s.env)
			if err != nil {
				return err
			}
			if recovered {
				return s.renderer.RenderMessage(MsgRecovered)
			}
			return s.renderer.RenderMessage(MsgNothingPending)
		},
	}
}

func newListCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   MsgListShort,
		Long:    MsgListLong,
		GroupID: "inspect",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			result, err := commands.ListMods(s.env)
			if err != nil {
				return err
			}
			return s.render(result, nil)
		},
	}
}

func newOwnerCmd(g *globalOptions) *cobra.Command {
	var q commands.OwnerQuery
	cmd := &cobra.Command{
		Use:     "owner [path]",
		Short:   MsgOwnerShort,
		Long:    MsgOwnerLong,
		Example: MsgOwnerExample,
		GroupID: "inspect",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				q.Path = args[0]
			}
			given := 0
			for _, v := range []string{q.Path, q.Setting, q.Shader} {
				if v != "" {
					given++
				}
			}
			if given != 1 {
				return errors.New(errors.ErrInvalidInput, MsgErrOwnerQuery)
			}

			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			result, err := commands.Owner(s.env, q)
			if err != nil {
				return err
			}
			return s.render(result, nil)
		},
	}
	cmd.Flags().StringVar(&q.Setting, "setting", "", MsgFlagSetting)
	cmd.Flags().StringVar(&q.Shader, "shader", "", MsgFlagShader)
	return cmd
}

func newVerifyCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "verify",
		Short:   MsgVerifyShort,
		Long:    MsgVerifyLong,
		GroupID: "inspect",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			result, err := commands.Verify(s.env)
			if err != nil {
				return err
			}
			var problems error
			if !result.OK() {
				problems = errors.Newf(errors.ErrInvalidState, MsgErrVerify, len(result.Problems))
			}
			return s.render(result, problems)
		},
	}
}

func newLsCmd(g *globalOptions) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:               "ls <archive> [dir]",
		Short:             MsgLsShort,
		Long:              MsgLsLong,
		Example:           MsgLsExample,
		GroupID:           "inspect",
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: modNamesCompletion(g),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			opts := commands.ListArchiveOptions{Path: args[0], Recursive: recursive}
			if len(args) == 2 {
				opts.Dir = args[1]
			}
			result, err := commands.ListArchive(s.env, opts)
			if err != nil {
				return err
			}
			return s.render(result, nil)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, MsgFlagRecursive)
	return cmd
}

func newInfoCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:               "info <mod>",
		Short:             MsgInfoShort,
		GroupID:           "inspect",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: modNamesCompletion(g),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			result, err := commands.ModInfo(s.env, args[0])
			if err != nil {
				return err
			}
			return s.render(result, nil)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), MsgVersionFormat, version.Version, version.Commit, version.Date)
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 MsgCompletionShort,
		Long:                  MsgCompletionLong,
		GroupID:               "misc",
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}
