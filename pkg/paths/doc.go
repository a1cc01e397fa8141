// Package paths provides centralized path handling for modman.
//
// It resolves the managed game directory and the XDG directories modman
// keeps its own state in, and it validates the relative paths mods ask to
// write so nothing lands outside the game directory.
//
// # Environment Variables
//
//   - MODMAN_GAME_DIR: the game data directory mods install into
//   - MODMAN_DATA_DIR: override XDG data directory (default: $XDG_DATA_HOME/modman)
//   - MODMAN_CONFIG_DIR: override XDG config directory (default: $XDG_CONFIG_HOME/modman)
//   - MODMAN_CACHE_DIR: override XDG cache directory (default: $XDG_CACHE_HOME/modman)
//   - MODMAN_STATE_DIR: override XDG state directory (default: $XDG_STATE_HOME/modman)
//   - MODMAN_MODS_DIR: mod archive directory (default: $MODMAN_DATA_DIR/mods)
//
// # Layout
//
//   - Data: games/<id>/InstallLog.xml (ownership ledger), games/<id>/overwrites/
//     (superseded values), mods/
//   - State: games/<id>/transaction.journal (crash recovery), modman.log
//
// <id> is GameID: the game directory's base name plus a digest of its
// absolute path, so every game keeps its own ledger and backups.
//   - Config: config.toml
package paths
