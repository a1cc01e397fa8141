// pkg/commands/commands_test.go
// TEST TYPE: Business Logic Integration
// DEPENDENCIES: OS filesystem in t.TempDir, embedded default config, zip fixtures
// PURPOSE: Test the install, upgrade, uninstall, list, owner, verify, ls and info commands end to end

package commands_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/modman/pkg/commands"
	"github.com/arthur-debert/modman/pkg/config"
	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/filesystem"
	"github.com/arthur-debert/modman/pkg/installer"
	"github.com/arthur-debert/modman/pkg/paths"
	"github.com/arthur-debert/modman/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	*commands.Environment
	root string
	game string
	mods string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	game := filepath.Join(root, "game")
	mods := filepath.Join(root, "mods")
	t.Setenv(paths.EnvDataDir, filepath.Join(root, "data"))
	t.Setenv(paths.EnvStateDir, filepath.Join(root, "state"))
	t.Setenv(paths.EnvConfigDir, filepath.Join(root, "config"))
	t.Setenv(paths.EnvModsDir, mods)
	require.NoError(t, os.MkdirAll(game, 0755))
	require.NoError(t, os.MkdirAll(mods, 0755))

	p, err := paths.New(game)
	require.NoError(t, err)
	env := commands.NewEnvironment(filesystem.NewOS(), p, config.Default())
	return &testEnv{Environment: env, root: root, game: game, mods: mods}
}

func (e *testEnv) addMod(t *testing.T, file string, files testutil.Files) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.mods, file), testutil.ZipBytes(t, files), 0644))
}

func (e *testEnv) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.game, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

var yes = installer.Options{Policy: config.PolicyYes}

func texture(name, content string) testutil.Files {
	return testutil.Files{
		"fomod/info.xml":   "<fomod><Name>" + name + "</Name><Version MachineVersion=\"2.0.0.0\">2.0</Version></fomod>",
		"data/texture.dds": content,
	}
}

func TestInstallListOwnerUninstall(t *testing.T) {
	env := newTestEnv(t)
	env.addMod(t, "Alpha.zip", texture("Alpha", "A"))
	env.addMod(t, "Beta.zip", texture("Beta", "B"))
	env.addMod(t, "Gamma.zip", texture("Gamma", "G"))
	ctx := context.Background()

	res, err := commands.InstallMods(ctx, env.Environment, commands.InstallOptions{Mods: []string{"alpha", "Beta.zip"}, Installer: yes})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Zero(t, res.Failed())
	assert.Equal(t, "B", env.read(t, "data/texture.dds"))

	list, err := commands.ListMods(env.Environment)
	require.NoError(t, err)
	require.Len(t, list.Mods, 3)
	assert.Equal(t, "Alpha", list.Mods[0].Name)
	assert.Equal(t, "2.0", list.Mods[0].Version)
	assert.True(t, list.Mods[0].Installed)
	assert.Equal(t, 1, list.Mods[0].Files)
	assert.Equal(t, filepath.Join(env.mods, "Alpha.zip"), list.Mods[0].Archive)
	assert.Equal(t, "Beta", list.Mods[1].Name)
	assert.Equal(t, "Gamma", list.Mods[2].Name)
	assert.False(t, list.Mods[2].Installed)

	owner, err := commands.Owner(env.Environment, commands.OwnerQuery{Path: "Data\\Texture.dds"})
	require.NoError(t, err)
	assert.Equal(t, "data/texture.dds", owner.Resource)
	require.Len(t, owner.Layers, 2)
	assert.Equal(t, "alpha", owner.Layers[0].Owner)
	top, ok := owner.Current()
	require.True(t, ok)
	assert.Equal(t, "beta", top.Owner)
	assert.Equal(t, installer.HashBytes([]byte("B")), top.Value)

	res, err = commands.UninstallMods(ctx, env.Environment, commands.UninstallOptions{Mods: []string{"beta"}, Installer: yes})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.True(t, res.Results[0].Success, res.Results[0].Message)
	assert.Equal(t, "A", env.read(t, "data/texture.dds"))

	// the archive is not needed to uninstall
	require.NoError(t, os.Remove(filepath.Join(env.mods, "Alpha.zip")))
	res, err = commands.UninstallMods(ctx, env.Environment, commands.UninstallOptions{Mods: []string{"Alpha"}, Installer: yes})
	require.NoError(t, err)
	assert.True(t, res.Results[0].Success, res.Results[0].Message)
	assert.NoFileExists(t, filepath.Join(env.game, "data", "texture.dds"))

	list, err = commands.ListMods(env.Environment)
	require.NoError(t, err)
	for _, m := range list.Mods {
		assert.False(t, m.Installed, m.Name)
	}
}

func TestInstallUnknownModInstallsNothing(t *testing.T) {
	env := newTestEnv(t)
	env.addMod(t, "Alpha.zip", texture("Alpha", "A"))

	_, err := commands.InstallMods(context.Background(), env.Environment, commands.InstallOptions{Mods: []string{"alpha", "missing"}, Installer: yes})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
	assert.NoFileExists(t, filepath.Join(env.game, "data", "texture.dds"))
}

func TestInstallReportsFailurePerMod(t *testing.T) {
	env := newTestEnv(t)
	env.addMod(t, "Alpha.zip", texture("Alpha", "A"))
	env.addMod(t, "Broken.zip", testutil.Files{"fomod/script.yaml": "steps:\n  - install: nothing.esp\n"})

	res, err := commands.InstallMods(context.Background(), env.Environment, commands.InstallOptions{Mods: []string{"broken", "alpha"}, Installer: yes})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, 1, res.Failed())
	assert.False(t, res.Results[0].Success)
	assert.Contains(t, res.Results[0].Message, "The mod was not installed.")
	assert.True(t, res.Results[1].Success)
}

func TestUpgradeByDisplayName(t *testing.T) {
	env := newTestEnv(t)
	env.addMod(t, "Alpha.zip", texture("Alpha", "A"))
	env.addMod(t, "Beta.zip", texture("Beta", "B"))
	env.addMod(t, "Alpha-3.zip", testutil.Files{
		"fomod/info.xml":   "<fomod><Name>Alpha</Name><Version>3.0</Version></fomod>",
		"data/texture.dds": "A3",
	})
	ctx := context.Background()

	_, err := commands.InstallMods(ctx, env.Environment, commands.InstallOptions{Mods: []string{"alpha", "beta"}, Installer: yes})
	require.NoError(t, err)

	res, err := commands.UpgradeMods(ctx, env.Environment, commands.UpgradeOptions{Mods: []string{"Alpha-3"}, Installer: yes})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	require.True(t, res.Results[0].Success, res.Results[0].Message)
	assert.Equal(t, "B", env.read(t, "data/texture.dds"))

	owner, err := commands.Owner(env.Environment, commands.OwnerQuery{Path: "data/texture.dds"})
	require.NoError(t, err)
	require.Len(t, owner.Layers, 2)
	assert.Equal(t, "alpha-3", owner.Layers[0].Owner)
	assert.Equal(t, installer.HashBytes([]byte("A3")), owner.Layers[0].Value)

	res, err = commands.UninstallMods(ctx, env.Environment, commands.UninstallOptions{Mods: []string{"beta"}, Installer: yes})
	require.NoError(t, err)
	require.True(t, res.Results[0].Success, res.Results[0].Message)
	assert.Equal(t, "A3", env.read(t, "data/texture.dds"))
}

func TestUpgradeReplacesNeedsOneMod(t *testing.T) {
	env := newTestEnv(t)
	_, err := commands.UpgradeMods(context.Background(), env.Environment, commands.UpgradeOptions{
		Mods:     []string{"a", "b"},
		Replaces: "c",
	})
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestOwnerOfSetting(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.game, "Fallout.ini"), []byte("[Display]\nfDefaultFOV=75\n"), 0644))
	env.addMod(t, "Fov.zip", testutil.Files{
		"fomod/script.yaml": "steps:\n  - edit_setting: {file: game, section: Display, key: fDefaultFOV, value: \"90\"}\n",
	})

	res, err := commands.InstallMods(context.Background(), env.Environment, commands.InstallOptions{Mods: []string{"fov"}, Installer: yes})
	require.NoError(t, err)
	require.True(t, res.Results[0].Success, res.Results[0].Message)
	assert.Contains(t, env.read(t, "Fallout.ini"), "fDefaultFOV")

	owner, err := commands.Owner(env.Environment, commands.OwnerQuery{Setting: "GAME:[display]fdefaultfov"})
	require.NoError(t, err)
	assert.Equal(t, commands.ResourceSetting, owner.Kind)
	require.Len(t, owner.Layers, 2)
	assert.True(t, owner.Layers[0].Original)
	assert.Equal(t, "75", owner.Layers[0].Value)
	assert.Equal(t, commands.Layer{Owner: "fov", Value: "90"}, owner.Layers[1])

	owner, err = commands.Owner(env.Environment, commands.OwnerQuery{Shader: "sdp:1/none.pso"})
	require.NoError(t, err)
	assert.Empty(t, owner.Layers)

	_, err = commands.Owner(env.Environment, commands.OwnerQuery{Path: "../escape"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrUnsafePath))
	_, err = commands.Owner(env.Environment, commands.OwnerQuery{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestParseSettingKey(t *testing.T) {
	k, err := commands.ParseSettingKey("prefs:[General]iSize W")
	require.NoError(t, err)
	assert.Equal(t, "prefs", k.File)
	assert.Equal(t, "general", k.Section)
	assert.Equal(t, "isize w", k.Key)

	for _, bad := range []string{"", "prefs", "prefs:General]x", "prefs:[General]", ":[a]b"} {
		_, err := commands.ParseSettingKey(bad)
		assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput), bad)
	}
}

func TestVerify(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Join(env.game, "data"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(env.game, "data", "texture.dds"), []byte("vanilla"), 0644))
	env.addMod(t, "Alpha.zip", texture("Alpha", "A"))
	env.addMod(t, "Beta.zip", texture("Beta", "B"))

	_, err := commands.InstallMods(context.Background(), env.Environment, commands.InstallOptions{Mods: []string{"alpha", "beta"}, Installer: yes})
	require.NoError(t, err)

	result, err := commands.Verify(env.Environment)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Checked)
	assert.True(t, result.OK(), result.Problems)

	live := filepath.Join(env.game, "data", "texture.dds")
	require.NoError(t, os.WriteFile(live, []byte("edited"), 0644))
	require.NoError(t, os.Remove(filepath.Join(env.Paths.OverwritesDir(), "data", "alpha_texture.dds")))
	require.NoError(t, os.WriteFile(filepath.Join(env.Paths.OverwritesDir(), "data", "ORIGINAL_VALUES_texture.dds"), []byte("x"), 0644))

	result, err = commands.Verify(env.Environment)
	require.NoError(t, err)
	assert.ElementsMatch(t, []commands.VerifyProblem{
		{Path: "data/texture.dds", Owner: "beta", Problem: commands.ProblemModified},
		{Path: "data/texture.dds", Owner: "alpha", Problem: commands.ProblemBackupMissing},
		{Path: "data/texture.dds", Owner: "ORIGINAL_VALUES", Problem: commands.ProblemBackupModified},
	}, result.Problems)

	require.NoError(t, os.Remove(live))
	result, err = commands.Verify(env.Environment)
	require.NoError(t, err)
	assert.Contains(t, result.Problems, commands.VerifyProblem{Path: "data/texture.dds", Owner: "beta", Problem: commands.ProblemMissing})
}

func TestListArchive(t *testing.T) {
	env := newTestEnv(t)
	inner := testutil.ZipBytes(t, testutil.Files{"plugin.esp": "p"})
	outer := testutil.ZipBytesRaw(t, map[string][]byte{
		"bundle/inner.zip":  inner,
		"bundle/readme.txt": []byte("hello"),
		"top.esp":           []byte("top"),
	})
	require.NoError(t, os.WriteFile(filepath.Join(env.mods, "Outer.zip"), outer, 0644))

	listing, err := commands.ListArchive(env.Environment, commands.ListArchiveOptions{Path: "outer"})
	require.NoError(t, err)
	assert.Equal(t, "zip", listing.Format)
	require.Len(t, listing.Entries, 2)
	assert.Equal(t, commands.ArchiveEntry{Name: "bundle/", Dir: true}, listing.Entries[0])
	assert.Equal(t, commands.ArchiveEntry{Name: "top.esp", Size: 3}, listing.Entries[1])

	listing, err = commands.ListArchive(env.Environment, commands.ListArchiveOptions{Path: "outer", Dir: "bundle"})
	require.NoError(t, err)
	require.Len(t, listing.Entries, 2)
	assert.Equal(t, "inner.zip", listing.Entries[0].Name)
	assert.True(t, listing.Entries[0].Nested)
	assert.False(t, listing.Entries[1].Nested)

	nested := "arch:" + filepath.Join(env.mods, "Outer.zip") + "//bundle/inner.zip"
	listing, err = commands.ListArchive(env.Environment, commands.ListArchiveOptions{Path: nested, Recursive: true})
	require.NoError(t, err)
	require.Len(t, listing.Entries, 1)
	assert.Equal(t, "plugin.esp", listing.Entries[0].Name)
}

func TestModInfo(t *testing.T) {
	env := newTestEnv(t)
	env.addMod(t, "Alpha.zip", testutil.Files{
		"fomod/info.xml":       "<fomod><Name>Alpha Textures</Name><Author>someone</Author></fomod>",
		"readme - Alpha.md":    "# Alpha\n",
		"data/texture.dds":     "A",
		"fomod/script.yaml":    "steps: []\n",
		"fomod/screenshot.png": "png",
	})

	info, err := commands.ModInfo(env.Environment, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "Alpha Textures", info.Name)
	assert.Equal(t, "someone", info.Author)
	assert.Equal(t, "alpha", info.Key)
	assert.False(t, info.Installed)
	assert.True(t, info.HasScript)
	assert.Equal(t, "fomod/screenshot.png", info.Screenshot)
	require.NotNil(t, info.Readme)
	assert.Equal(t, "md", info.Readme.Format)
	assert.Equal(t, "# Alpha\n", info.Readme.Text)

	_, err = commands.ModInfo(env.Environment, "nope")
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestRecoverWithoutJournal(t *testing.T) {
	env := newTestEnv(t)
	recovered, err := commands.Recover(context.Background(), env.Environment)
	require.NoError(t, err)
	assert.False(t, recovered)
}
