package commands

import (
	"github.com/arthur-debert/modman/pkg/logging"
	"github.com/arthur-debert/modman/pkg/mod"
)

// InfoResult describes one mod archive.
type InfoResult struct {
	mod.Info
	Key       string
	Path      string
	Installed bool
	Files     int
	// PathPrefix is the wrapper directory stripped from the archive, if any.
	PathPrefix     string
	HasScript      bool
	LegacyScript   string
	RequiresScript bool
	Screenshot     string
	// Readme is nil when the mod has none.
	Readme *mod.Readme
}

// ModInfo reads the metadata and readme of a mod.
func ModInfo(env *Environment, name string) (*InfoResult, error) {
	log := logging.GetLogger("commands.info")
	log.Debug().Str("mod", name).Msg("Executing command")

	m, err := env.OpenMod(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = m.Close() }()

	result := &InfoResult{
		Info:           m.Info,
		Key:            m.Key(),
		Path:           m.Path(),
		Installed:      m.Active(),
		Files:          len(m.FileList()),
		PathPrefix:     m.PathPrefix(),
		HasScript:      m.HasScript(),
		LegacyScript:   m.LegacyScript(),
		RequiresScript: m.RequiresScript(),
		Screenshot:     m.ScreenshotPath(),
	}
	if m.HasReadme() {
		if result.Readme, err = m.Readme(); err != nil {
			return nil, err
		}
	}
	return result, nil
}
