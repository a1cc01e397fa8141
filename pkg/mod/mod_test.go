// pkg/mod/mod_test.go
// TEST TYPE: Unit Tests
// DEPENDENCIES: MemoryFS, in-memory archive builders
// PURPOSE: Test wrapper detection, metadata loading and file listing of mod packages

package mod

import (
	"testing"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openZip(t *testing.T, name string, files testutil.Files) *Mod {
	t.Helper()
	fs := testutil.NewMemoryFS()
	testutil.WriteFile(t, fs, "/mods/"+name, testutil.ZipBytes(t, files))
	m, err := Open(fs, "/mods/"+name, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestWrapperDirectoriesAreStripped(t *testing.T) {
	m := openZip(t, "Better Water.zip", testutil.Files{
		"Better Water v2/readme.txt":             "read me",
		"Better Water v2/Data/water.esp":         "plugin",
		"Better Water v2/Data/textures/wave.dds": "texture",
	})

	assert.Equal(t, "Better Water v2/Data", m.PathPrefix())
	assert.Equal(t, []string{"readme.txt", "textures/wave.dds", "water.esp"}, m.FileList())
	assert.True(t, m.ContainsFile("Textures/Wave.dds"))

	data, err := m.ReadFile("readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "read me", string(data))
	data, err = m.ReadFile("water.esp")
	require.NoError(t, err)
	assert.Equal(t, "plugin", string(data))
}

func TestStopFolderEndsDetection(t *testing.T) {
	m := openZip(t, "tex.zip", testutil.Files{
		"textures/a.dds": "a",
		"textures/b.dds": "b",
	})
	assert.Equal(t, "", m.PathPrefix())
	assert.Equal(t, []string{"textures/a.dds", "textures/b.dds"}, m.FileList())
}

func TestDataWrapperIsStrippedEvenWithPlugins(t *testing.T) {
	m := openZip(t, "mixed.zip", testutil.Files{
		"mixed.esp":            "root plugin",
		"Data/meshes/rock.nif": "mesh",
	})
	assert.Equal(t, "Data", m.PathPrefix())
	assert.Equal(t, []string{"meshes/rock.nif", "mixed.esp"}, m.FileList())
}

func TestMovedFilesAreDeduplicated(t *testing.T) {
	m := openZip(t, "dup.zip", testutil.Files{
		"readme.txt":            "outer",
		"a/readme.txt":          "inner",
		"a/b/textures/rock.dds": "rock",
	})
	assert.Equal(t, "a/b", m.PathPrefix())
	assert.Equal(t, []string{"readme 1.txt", "readme.txt", "textures/rock.dds"}, m.FileList())

	data, err := m.ReadFile("readme 1.txt")
	require.NoError(t, err)
	assert.Equal(t, "inner", string(data))
}

func TestMetadataFromInfoXML(t *testing.T) {
	m := openZip(t, "Alpha.zip", testutil.Files{
		"fomod/info.xml": `<?xml version="1.0"?>
<fomod>
  <Name>Alpha Textures</Name>
  <Version MachineVersion="2.1">2.1 beta</Version>
  <Author>someone</Author>
  <Description>Sharper rocks.</Description>
  <MinFommVersion>0.13</MinFommVersion>
  <Groups><element>textures</element><element>landscape</element></Groups>
</fomod>`,
		"fomod/script.yaml":         "steps: []",
		"fomod/screenshot.jpg":      "jpg",
		"Readme - Alpha.txt":        "hello",
		"textures/rock.dds":         "rock",
		"textures/plugins/deep.esp": "deep",
	})

	assert.True(t, m.HasInfo())
	assert.Equal(t, "Alpha Textures", m.Name)
	assert.Equal(t, "2.1 beta", m.Version)
	assert.Equal(t, "2.1.0.0", m.MachineVersion)
	assert.Equal(t, "0.13.0.0", m.MinManagerVersion)
	assert.Equal(t, []string{"textures", "landscape"}, m.Groups)
	assert.Equal(t, "alpha", m.Key())

	assert.True(t, m.HasScript())
	script, err := m.Script()
	require.NoError(t, err)
	assert.Equal(t, "steps: []", string(script))

	assert.True(t, m.HasScreenshot())
	assert.Equal(t, "fomod/screenshot.jpg", m.ScreenshotPath())

	readme, err := m.Readme()
	require.NoError(t, err)
	assert.Equal(t, "txt", readme.Format)
	assert.Equal(t, "hello", readme.Text)

	assert.True(t, m.RequiresScript())
	assert.NotContains(t, m.FileList(), "fomod/info.xml")

	rec := m.Record()
	assert.Equal(t, "alpha", rec.Key)
	assert.Equal(t, "Alpha Textures", rec.Name)
	assert.Equal(t, "2.1.0.0", rec.MachineVersion)
}

func TestMetadataFromInfoTOML(t *testing.T) {
	m := openZip(t, "Beta.zip", testutil.Files{
		"fomod/info.toml": `name = "Beta"
version = "3"
machine_version = "3.0.1"
groups = ["weapons"]
`,
		"docs/Readme - Beta.md": "# Beta",
		"beta.esp":              "p",
	})

	assert.Equal(t, "Beta", m.Name)
	assert.Equal(t, "3", m.Version)
	assert.Equal(t, "3.0.1.0", m.MachineVersion)
	assert.Equal(t, DefaultAuthor, m.Author)
	assert.Equal(t, []string{"weapons"}, m.Groups)
	assert.False(t, m.HasScript())
	assert.False(t, m.RequiresScript())

	readme, err := m.Readme()
	require.NoError(t, err)
	assert.Equal(t, "md", readme.Format)
}

func TestDefaults(t *testing.T) {
	m := openZip(t, "Plain Mod.zip", testutil.Files{"plain.esp": "p"})

	assert.False(t, m.HasInfo())
	assert.Equal(t, "Plain Mod", m.Name)
	assert.Equal(t, DefaultVersion, m.Version)
	assert.Equal(t, DefaultMachineVersion, m.MachineVersion)
	assert.False(t, m.HasReadme())
	assert.False(t, m.HasScreenshot())

	_, err := m.Readme()
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
	_, err = m.Script()
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))

	assert.False(t, m.Active())
	m.SetActive(true)
	assert.True(t, m.Active())
}

func TestLegacyScriptDetected(t *testing.T) {
	m := openZip(t, "old.zip", testutil.Files{
		"fomod/script.cs": "class Script {}",
		"old.esp":         "p",
	})
	assert.False(t, m.HasScript())
	assert.Equal(t, "fomod/script.cs", m.LegacyScript())
}

func TestInvalidMetadata(t *testing.T) {
	tests := map[string]testutil.Files{
		"wrong root":       {"fomod/info.xml": "<mod><Name>x</Name></mod>"},
		"no root":          {"fomod/info.xml": "no markup here"},
		"bad version":      {"fomod/info.xml": `<fomod><Version MachineVersion="one.two">1</Version></fomod>`},
		"unknown toml key": {"fomod/info.toml": `colour = "red"`},
	}
	for name, files := range tests {
		t.Run(name, func(t *testing.T) {
			fs := testutil.NewMemoryFS()
			testutil.WriteFile(t, fs, "/mods/bad.zip", testutil.ZipBytes(t, files))
			_, err := Open(fs, "/mods/bad.zip", DefaultOptions())
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrModInvalid))
		})
	}
}

func TestOpenMissingArchive(t *testing.T) {
	_, err := Open(testutil.NewMemoryFS(), "/mods/none.zip", DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrModInvalid))
}

func TestFilesIn(t *testing.T) {
	m := openZip(t, "dirs.zip", testutil.Files{
		"meshes/a.nif":     "a",
		"meshes/sub/b.nif": "b",
		"textures/c.dds":   "c",
	})
	assert.Equal(t, []string{"meshes/a.nif", "meshes/sub/b.nif"}, m.FilesIn("Meshes"))
	assert.True(t, m.IsDirectory("meshes/sub"))
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"/mods/Alpha.zip":                       "Alpha",
		"/mods/My Mod v1.2.7z":                  "My Mod v1.2",
		"arch:/mods/pack.zip//inner/Beta.pbo":   "Beta",
		"arch:arch:/m/a.zip//b.zip//deep/C.rar": "C",
		"/mods/unpacked":                        "unpacked",
	}
	for in, want := range tests {
		assert.Equal(t, want, BaseName(in), in)
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1.0", "1.0.0.0", false},
		{"1.2.3.4", "1.2.3.4", false},
		{" 0.13 ", "0.13.0.0", false},
		{"1", "", true},
		{"1.2.3.4.5", "", true},
		{"1.x", "", true},
		{"1.-2", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeVersion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, -1, CompareVersions("1.0.0.0", "1.0.1.0"))
	assert.Equal(t, 1, CompareVersions("2.0.0.0", "1.9.9.9"))
	assert.Equal(t, 0, CompareVersions("1.2.0.0", "1.2.0.0"))
}
