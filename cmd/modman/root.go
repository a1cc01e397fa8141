// Package modman holds the modman command line. main/ builds the binary.
package modman

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/arthur-debert/modman/internal/version"
	"github.com/arthur-debert/modman/pkg/commands"
	"github.com/arthur-debert/modman/pkg/config"
	"github.com/arthur-debert/modman/pkg/conflict"
	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/filesystem"
	"github.com/arthur-debert/modman/pkg/installer"
	"github.com/arthur-debert/modman/pkg/logging"
	"github.com/arthur-debert/modman/pkg/paths"
	"github.com/arthur-debert/modman/pkg/ui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	verbosity int
	config    string
	game      string
	format    string
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	initTemplateFormatting()

	g := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:     "modman",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logFile := ""
			if p, err := paths.New(g.game); err == nil {
				logFile = p.LogFilePath()
			}
			// Failures are already logged to the console.
			_ = logging.Setup(g.verbosity, logFile)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errors.New(errors.ErrInvalidInput, MsgErrNoCommand)
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&g.verbosity, "verbose", "v", MsgFlagVerbose)
	flags.StringVar(&g.config, "config", "", MsgFlagConfig)
	flags.StringVar(&g.game, "game", "", MsgFlagGame)
	flags.StringVar(&g.format, "format", "auto", MsgFlagFormat)

	rootCmd.AddGroup(&cobra.Group{ID: "mods", Title: "MODS:"})
	rootCmd.AddGroup(&cobra.Group{ID: "inspect", Title: "INSPECT:"})
	rootCmd.AddGroup(&cobra.Group{ID: "misc", Title: "MISC:"})
	rootCmd.SetUsageTemplate(MsgUsageTemplate)
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(newInstallCmd(g))
	rootCmd.AddCommand(newUpgradeCmd(g))
	rootCmd.AddCommand(newUninstallCmd(g))
	rootCmd.AddCommand(newRecoverCmd(g))
	rootCmd.AddCommand(newListCmd(g))
	rootCmd.AddCommand(newOwnerCmd(g))
	rootCmd.AddCommand(newVerifyCmd(g))
	rootCmd.AddCommand(newLsCmd(g))
	rootCmd.AddCommand(newInfoCmd(g))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// session is what a command works with once flags are resolved.
type session struct {
	env      *commands.Environment
	renderer ui.Renderer
}

// open resolves directories and configuration and picks the renderer.
// The game directory comes from --game, MODMAN_GAME_DIR, game.root in the
// config file, then the current directory.
func (g *globalOptions) open(cmd *cobra.Command) (*session, error) {
	p, err := paths.New(g.game)
	if err != nil {
		return nil, fmt.Errorf(MsgErrInitPaths, err)
	}
	configPath := g.config
	if configPath == "" {
		configPath = p.ConfigFilePath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf(MsgErrLoadConfig, err)
	}

	gameDir := g.game
	if p.UsedFallback() && cfg.Game.Root != "" {
		gameDir = cfg.Game.Root
	}
	p, err = paths.New(gameDir, paths.WithModsDir(cfg.Mods.Dir))
	if err != nil {
		return nil, fmt.Errorf(MsgErrInitPaths, err)
	}
	if p.UsedFallback() {
		fmt.Fprintf(cmd.ErrOrStderr(), MsgFallbackWarning, p.GameDir())
	}

	format, err := ui.ParseFormat(g.format)
	if err != nil {
		return nil, err
	}
	renderer, err := ui.NewRenderer(format, cmd.OutOrStdout())
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("game", p.GameDir()).
		Str("mods", p.ModsDir()).
		Str("config", configPath).
		Msg("Session opened")
	return &session{
		env:      commands.NewEnvironment(filesystem.NewOS(), p, cfg),
		renderer: renderer,
	}, nil
}

// addPolicyFlags registers --yes and --no.
func addPolicyFlags(fs *pflag.FlagSet) {
	fs.BoolP("yes", "y", false, MsgFlagYes)
	fs.BoolP("no", "n", false, MsgFlagNo)
}

// policyFromFlags returns the conflict policy chosen on the command line,
// or "" when neither --yes nor --no was given.
func policyFromFlags(fs *pflag.FlagSet) (string, error) {
	yes, _ := fs.GetBool("yes")
	no, _ := fs.GetBool("no")
	switch {
	case yes && no:
		return "", errors.New(errors.ErrInvalidInput, MsgErrPolicyFlags)
	case yes:
		return config.PolicyYes, nil
	case no:
		return config.PolicyNo, nil
	}
	return "", nil
}

// installerOptions builds the installer options for install and uninstall.
// Without --yes or --no, an interactive stdin is asked and anything else
// falls back to the configured policy.
func (s *session) installerOptions(cmd *cobra.Command) (installer.Options, error) {
	policy, err := policyFromFlags(cmd.Flags())
	if err != nil {
		return installer.Options{}, err
	}
	if policy == "" && isTerminal(cmd.InOrStdin()) {
		policy = config.PolicyPrompt
	}
	opts := installer.Options{
		Policy:   policy,
		Prompter: conflict.NewConsolePrompter(cmd.InOrStdin(), cmd.ErrOrStderr()),
	}
	if isTerminal(cmd.ErrOrStderr()) {
		opts.Progress = ui.NewProgressBar(cmd.ErrOrStderr())
	}
	return opts, nil
}

func isTerminal(v interface{}) bool {
	f, ok := v.(*os.File)
	return ok && ui.IsTerminal(f)
}

// modNamesCompletion completes mod names from the mods directory and the
// install log.
func modNamesCompletion(g *globalOptions) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		s, err := g.open(cmd)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		result, err := commands.ListMods(s.env)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}

		given := make(map[string]bool, len(args))
		for _, a := range args {
			given[a] = true
		}
		var names []string
		for _, m := range result.Mods {
			name := m.Key
			if m.Archive != "" {
				name = filepath.Base(m.Archive)
			}
			if !given[name] {
				names = append(names, name)
			}
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}

// render writes a result, and returns err when the result describes a
// failure so the process exits non-zero.
func (s *session) render(result interface{}, err error) error {
	if rerr := s.renderer.RenderResult(result); rerr != nil {
		return rerr
	}
	return err
}
