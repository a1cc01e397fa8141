package commands

import (
	"sort"
	"strings"

	"github.com/arthur-debert/modman/pkg/installlog"
	"github.com/arthur-debert/modman/pkg/logging"
	"github.com/arthur-debert/modman/pkg/mod"
)

// ModEntry is one row of the mod list.
type ModEntry struct {
	installlog.ModRecord
	Installed bool
	// Archive is the path of the mod's archive in the mods directory, empty
	// when an installed mod's archive is gone.
	Archive  string
	Files    int
	Settings int
	Shaders  int
}

// ListResult is the output of ListMods.
type ListResult struct {
	Mods []ModEntry
}

// ListMods lists installed mods with the resources they own, followed by
// the archives in the mods directory that are not installed.
func ListMods(env *Environment) (*ListResult, error) {
	log := logging.GetLogger("commands.list")
	log.Debug().Msg("Executing command")

	ledger, err := env.Store.Snapshot()
	if err != nil {
		return nil, err
	}
	archives, err := env.availableMods()
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]string, len(archives))
	for _, p := range archives {
		byKey[installlog.ModKey(mod.BaseName(p))] = p
	}

	result := &ListResult{}
	for _, rec := range ledger.Mods() {
		mm := ledger.MergeModuleFor(rec.Key)
		result.Mods = append(result.Mods, ModEntry{
			ModRecord: rec,
			Installed: true,
			Archive:   byKey[rec.Key],
			Files:     len(ledger.FilesOwnedBy(rec.Key)),
			Settings:  len(mm.SettingEdits()),
			Shaders:   len(mm.ShaderEdits()),
		})
		delete(byKey, rec.Key)
	}
	for key, p := range byKey {
		result.Mods = append(result.Mods, ModEntry{
			ModRecord: installlog.ModRecord{Key: key, Name: mod.BaseName(p)},
			Archive:   p,
		})
	}
	sort.SliceStable(result.Mods, func(i, j int) bool {
		a, b := result.Mods[i], result.Mods[j]
		if a.Installed != b.Installed {
			return a.Installed
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	log.Info().Int("mods", len(result.Mods)).Msg("Command finished")
	return result, nil
}
