package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/modman/pkg/errors"
)

// Config is the resolved modman configuration.
type Config struct {
	Game     Game     `koanf:"game"`
	Mods     Mods     `koanf:"mods"`
	Settings Settings `koanf:"settings"`
	Shaders  Shaders  `koanf:"shaders"`
	Archive  Archive  `koanf:"archive"`
	Install  Install  `koanf:"install"`
}

type Game struct {
	Root string `koanf:"root"`
}

type Mods struct {
	Dir string `koanf:"dir"`
}

// Settings maps the logical settings-file names used by install scripts to files on disk.
type Settings struct {
	Dir   string            `koanf:"dir"`
	Files map[string]string `koanf:"files"`
}

type Shaders struct {
	Dir     string `koanf:"dir"`
	Pattern string `koanf:"pattern"`
}

type Archive struct {
	NonArchive  []string `koanf:"nonarchive"`
	StopFolders []string `koanf:"stopfolders"`
	Plugins     []string `koanf:"plugins"`
}

type Install struct {
	Policy   string `koanf:"policy"`
	ReadOnly bool   `koanf:"readonly"`
}

// Conflict policies
const (
	PolicyPrompt = "prompt"
	PolicyYes    = "yes"
	PolicyNo     = "no"
)

// SettingsFile resolves a logical settings-file name to an absolute path.
// Names are matched case-insensitively.
func (c *Config) SettingsFile(name, gameDir string) (string, error) {
	for logical, file := range c.Settings.Files {
		if !strings.EqualFold(logical, name) {
			continue
		}
		if filepath.IsAbs(file) {
			return file, nil
		}
		dir := c.Settings.Dir
		if dir == "" {
			dir = gameDir
		}
		return filepath.Join(dir, file), nil
	}
	return "", errors.Newf(errors.ErrSettings, "unknown settings file %q", name).
		WithDetail("known", c.settingsNames())
}

func (c *Config) settingsNames() []string {
	names := make([]string, 0, len(c.Settings.Files))
	for name := range c.Settings.Files {
		names = append(names, name)
	}
	return names
}

// ShaderPackagePath returns the package file for a package number.
func (c *Config) ShaderPackagePath(gameDir string, pkg int) string {
	dir := c.Shaders.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(gameDir, dir)
	}
	return filepath.Join(dir, fmt.Sprintf(c.Shaders.Pattern, pkg))
}

func (c *Config) validate() error {
	switch c.Install.Policy {
	case PolicyPrompt, PolicyYes, PolicyNo:
	default:
		return errors.Newf(errors.ErrConfigParse, "install.policy must be prompt, yes or no, got %q", c.Install.Policy)
	}
	if !strings.Contains(c.Shaders.Pattern, "%") {
		return errors.Newf(errors.ErrConfigParse, "shaders.pattern must contain a number verb, got %q", c.Shaders.Pattern)
	}
	return nil
}
