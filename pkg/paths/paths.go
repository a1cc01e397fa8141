// Package paths provides centralized path handling for modman.
// It implements XDG Base Directory specification compliance and
// provides a consistent API for all path operations in the codebase.
package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/internal/hashutil"
)

// Environment variable names
const (
	// EnvGameDir is the managed root: the game's data directory mods install into
	EnvGameDir = "MODMAN_GAME_DIR"

	// EnvDataDir overrides the XDG data directory for modman
	EnvDataDir = "MODMAN_DATA_DIR"

	// EnvConfigDir overrides the XDG config directory for modman
	EnvConfigDir = "MODMAN_CONFIG_DIR"

	// EnvCacheDir overrides the XDG cache directory for modman
	EnvCacheDir = "MODMAN_CACHE_DIR"

	// EnvStateDir overrides the XDG state directory for modman
	EnvStateDir = "MODMAN_STATE_DIR"

	// EnvModsDir overrides where mod archives are looked up
	EnvModsDir = "MODMAN_MODS_DIR"

	// EnvHome is the standard home directory variable
	EnvHome = "HOME"
)

// Default directories and files
// These constants define modman's on-disk datastore layout and are not
// user-configurable. User-configurable paths live in pkg/config.
const (
	// AppDirName is the directory name for modman-specific files
	AppDirName = "modman"

	// ConfigFileName is the user configuration file inside ConfigDir
	ConfigFileName = "config.toml"

	// GamesDirName holds one directory per managed game, inside DataDir
	// and StateDir
	GamesDirName = "games"

	// InstallLogFileName is the ownership ledger inside GameDataDir
	InstallLogFileName = "InstallLog.xml"

	// OverwritesDirName holds backups of values replaced by installs
	OverwritesDirName = "overwrites"

	// ModsDirName is the default mod archive directory inside DataDir
	ModsDirName = "mods"

	// JournalFileName is the crash-recovery journal inside GameStateDir
	JournalFileName = "transaction.journal"

	// LogFileName is the name of the log file
	LogFileName = "modman.log"
)

// Paths provides centralized path management for modman
type Paths interface {
	GameDir() string
	GameID() string
	UsedFallback() bool
	DataDir() string
	ConfigDir() string
	CacheDir() string
	StateDir() string
	ModsDir() string
	GameDataDir() string
	GameStateDir() string
	ConfigFilePath() string
	InstallLogPath() string
	OverwritesDir() string
	JournalPath() string
	LogFilePath() string
	GamePath(rel string) (string, error)
	ModArchivePath(name string) string
}

type paths struct {
	gameDir      string
	gameID       string
	usedFallback bool

	xdgData   string
	xdgConfig string
	xdgCache  string
	xdgState  string
	modsDir   string
}

// Option adjusts the directories chosen by New.
type Option func(*paths)

// WithModsDir sets the mods directory from configuration. MODMAN_MODS_DIR
// still takes precedence.
func WithModsDir(dir string) Option {
	return func(p *paths) {
		if dir != "" && os.Getenv(EnvModsDir) == "" {
			p.modsDir = expandHome(dir)
		}
	}
}

// New creates a new Paths instance rooted at gameDir.
// If gameDir is empty, MODMAN_GAME_DIR is used, then the current directory.
func New(gameDir string, opts ...Option) (Paths, error) {
	p := &paths{}

	if gameDir == "" {
		gameDir = os.Getenv(EnvGameDir)
	}
	if gameDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to get current directory")
		}
		gameDir = cwd
		p.usedFallback = true
	}

	absRoot, err := filepath.Abs(expandHome(gameDir))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to get absolute path for game directory")
	}
	p.gameDir = absRoot
	p.gameID = gameID(absRoot)

	p.setupXDGDirs()
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// setupXDGDirs initializes XDG directories, respecting environment overrides
func (p *paths) setupXDGDirs() {
	p.xdgData = dirFromEnv(EnvDataDir, filepath.Join(xdg.DataHome, AppDirName))
	p.xdgConfig = dirFromEnv(EnvConfigDir, filepath.Join(xdg.ConfigHome, AppDirName))
	p.xdgCache = dirFromEnv(EnvCacheDir, filepath.Join(xdg.CacheHome, AppDirName))
	p.xdgState = dirFromEnv(EnvStateDir, filepath.Join(xdg.StateHome, AppDirName))
	p.modsDir = dirFromEnv(EnvModsDir, filepath.Join(p.xdgData, ModsDirName))
}

// gameID names the per-game data and state directories: the root's base
// name for readability plus a digest of the whole path, so two games with
// the same folder name stay apart.
func gameID(root string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(filepath.Base(root)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "-"):
			b.WriteByte('-')
		}
	}
	name := strings.TrimSuffix(b.String(), "-")
	if name == "" {
		name = "game"
	}
	return name + "-" + hashutil.Sum([]byte(filepath.Clean(root)))[:12]
}

func dirFromEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return expandHome(v)
	}
	return fallback
}

// expandHome expands ~ to the home directory
func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv(EnvHome)
		if homeDir == "" {
			return path
		}
	}

	if len(path) == 1 {
		return homeDir
	}
	if path[1] == '/' || path[1] == filepath.Separator {
		return filepath.Join(homeDir, path[2:])
	}

	// ~something (not the user's home)
	return path
}

// GameDir returns the managed root every data file path is relative to
func (p *paths) GameDir() string {
	return p.gameDir
}

// GameID identifies the game directory among every game modman manages
func (p *paths) GameID() string {
	return p.gameID
}

// UsedFallback returns true if the current working directory was used as the game dir
func (p *paths) UsedFallback() bool {
	return p.usedFallback
}

func (p *paths) DataDir() string   { return p.xdgData }
func (p *paths) ConfigDir() string { return p.xdgConfig }
func (p *paths) CacheDir() string  { return p.xdgCache }
func (p *paths) StateDir() string  { return p.xdgState }
func (p *paths) ModsDir() string   { return p.modsDir }

// GameDataDir holds the ledger and backups of the current game
func (p *paths) GameDataDir() string {
	return filepath.Join(p.xdgData, GamesDirName, p.gameID)
}

// GameStateDir holds the transaction journal of the current game
func (p *paths) GameStateDir() string {
	return filepath.Join(p.xdgState, GamesDirName, p.gameID)
}

func (p *paths) ConfigFilePath() string {
	return filepath.Join(p.xdgConfig, ConfigFileName)
}

func (p *paths) InstallLogPath() string {
	return filepath.Join(p.GameDataDir(), InstallLogFileName)
}

func (p *paths) OverwritesDir() string {
	return filepath.Join(p.GameDataDir(), OverwritesDirName)
}

func (p *paths) JournalPath() string {
	return filepath.Join(p.GameStateDir(), JournalFileName)
}

func (p *paths) LogFilePath() string {
	return filepath.Join(p.xdgState, LogFileName)
}

// GamePath maps a mod-relative data path onto the game directory.
// Paths that would escape the game directory are rejected with UNSAFE_PATH.
func (p *paths) GamePath(rel string) (string, error) {
	return JoinSafe(p.gameDir, rel)
}

// ModArchivePath resolves a mod archive name. Absolute names are returned unchanged.
func (p *paths) ModArchivePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.modsDir, name)
}
