// Package config loads modman's configuration.
//
// Values are layered in this order, later layers winning:
//
//  1. embedded/defaults.toml, compiled into the binary
//  2. the user file, $XDG_CONFIG_HOME/modman/config.toml by default
//  3. MODMAN_<SECTION>_<KEY> environment variables
//
// The settings section maps the logical settings-file names install scripts
// use ("game", "prefs") to the real INI files, so no file name is hard-coded
// in the installer.
package config
