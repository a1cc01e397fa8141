package modman

import (
	_ "embed"
	"strings"
)

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort       = "Install and uninstall game mods transactionally"
	MsgInstallShort    = "Install mods"
	MsgUninstallShort  = "Uninstall mods"
	MsgUpgradeShort    = "Upgrade installed mods in place"
	MsgListShort       = "List installed and available mods"
	MsgListLong        = "List shows the installed mods with the resources they own, then the archives in the mods directory that are not installed."
	MsgOwnerShort      = "Show which mods wrote a file, setting or shader"
	MsgOwnerLong       = "Owner prints the ownership stack of one resource, newest first. The first line is the value currently in place."
	MsgVerifyShort     = "Check the game directory against the install log"
	MsgLsShort         = "List the contents of a mod archive"
	MsgLsLong          = "Ls lists the contents of an archive, directories first. Entries that are archives themselves can be listed with an arch: path."
	MsgInfoShort       = "Show a mod's metadata and readme"
	MsgRecoverShort    = "Finish an interrupted transaction"
	MsgVersionShort    = "Print version information"
	MsgCompletionShort = "Generate shell completion script"

	// Status messages
	MsgRecovered      = "Recovered an interrupted transaction."
	MsgNothingPending = "No interrupted transaction found."
	MsgVersionFormat  = "modman version %s\n  commit: %s\n  built:  %s\n"

	// Error messages
	MsgErrInitPaths   = "failed to initialize paths: %w"
	MsgErrLoadConfig  = "failed to load configuration: %w"
	MsgErrOpsFailed   = "%d of %d operations failed"
	MsgErrVerify      = "%d problems found"
	MsgErrPolicyFlags = "--yes and --no cannot be combined"
	MsgErrOwnerQuery  = "give exactly one of a path, --setting or --shader"
	MsgErrNoCommand   = "no command specified"

	// Flag descriptions
	MsgFlagVerbose   = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagConfig    = "Config file (default $XDG_CONFIG_HOME/modman/config.toml)"
	MsgFlagGame      = "Game directory (default MODMAN_GAME_DIR or the current directory)"
	MsgFlagFormat    = "Output format: auto, term, text or json"
	MsgFlagYes       = "Replace every conflicting file, setting and shader"
	MsgFlagNo        = "Keep every conflicting file, setting and shader"
	MsgFlagReinstall = "Install mods that are already installed again"
	MsgFlagReplaces  = "Installed mod the new version replaces"
	MsgFlagForce     = "Upgrade even when the installed version matches"
	MsgFlagSetting   = "Settings key, as file:[section]key"
	MsgFlagShader    = "Shader, as sdp:<package>/<name>"
	MsgFlagRecursive = "List every file below the directory"
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/install-long.txt
	msgInstallLongRaw string
	MsgInstallLong    = strings.TrimSpace(msgInstallLongRaw)

	//go:embed msgs/install-example.txt
	msgInstallExampleRaw string
	MsgInstallExample    = strings.TrimRight(msgInstallExampleRaw, "\n")

	//go:embed msgs/upgrade-long.txt
	msgUpgradeLongRaw string
	MsgUpgradeLong    = strings.TrimSpace(msgUpgradeLongRaw)

	//go:embed msgs/upgrade-example.txt
	msgUpgradeExampleRaw string
	MsgUpgradeExample    = strings.TrimRight(msgUpgradeExampleRaw, "\n")

	//go:embed msgs/uninstall-long.txt
	msgUninstallLongRaw string
	MsgUninstallLong    = strings.TrimSpace(msgUninstallLongRaw)

	//go:embed msgs/owner-example.txt
	msgOwnerExampleRaw string
	MsgOwnerExample    = strings.TrimRight(msgOwnerExampleRaw, "\n")

	//go:embed msgs/ls-example.txt
	msgLsExampleRaw string
	MsgLsExample    = strings.TrimRight(msgLsExampleRaw, "\n")

	//go:embed msgs/verify-long.txt
	msgVerifyLongRaw string
	MsgVerifyLong    = strings.TrimSpace(msgVerifyLongRaw)

	//go:embed msgs/recover-long.txt
	msgRecoverLongRaw string
	MsgRecoverLong    = strings.TrimSpace(msgRecoverLongRaw)

	//go:embed msgs/completion-long.txt
	msgCompletionLongRaw string
	MsgCompletionLong    = strings.TrimSpace(msgCompletionLongRaw)

	//go:embed msgs/fallback-warning.txt
	msgFallbackWarningRaw string
	MsgFallbackWarning    = strings.TrimSpace(msgFallbackWarningRaw) + "\n"

	//go:embed msgs/usage-template.txt
	msgUsageTemplateRaw string
	MsgUsageTemplate    = strings.TrimSpace(msgUsageTemplateRaw) + "\n"
)
