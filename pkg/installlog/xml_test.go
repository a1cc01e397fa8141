// pkg/installlog/xml_test.go
// TEST TYPE: Unit Tests
// DEPENDENCIES: MemoryFS
// PURPOSE: Test ledger persistence, legacy upgrade and the lazy store

package installlog

import (
	"testing"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/mergemodule"
	"github.com/arthur-debert/modman/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populated() *Log {
	l := New()
	setting := mergemodule.NewSettingKey("game", "general", "bvalue")
	shader := mergemodule.NewShaderKey(19, "water.pso")

	alpha := mergemodule.New()
	alpha.AddFile("data/texture.dds", "aaaa")
	alpha.BackupOriginalFile("data/texture.dds", "0000")
	alpha.AddSettingEdit(setting, "1")
	alpha.BackupOriginalSetting(setting, "0")
	alpha.AddShaderEdit(shader, []byte{0xde, 0xad})
	alpha.BackupOriginalShader(shader, []byte{0xbe, 0xef})
	l.Merge(ModRecord{Key: "alpha", Name: "Alpha", Version: "1.0", MachineVersion: "1.0.0.0"}, alpha)

	beta := mergemodule.New()
	beta.AddFile("data/texture.dds", "bbbb")
	beta.AddFile("data/meshes/rock.nif", "")
	l.Merge(ModRecord{Key: "beta", Name: "Beta"}, beta)
	return l
}

func TestMarshalRoundTrip(t *testing.T) {
	l := populated()

	data, err := l.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), `<installLog fileVersion="1.0.0">`)
	assert.Contains(t, string(data), `<original hash="0000"/>`)
	assert.Contains(t, string(data), `<edit key="sdp:19/water.pso">`)
	assert.Contains(t, string(data), `<version machineVersion="1.0.0.0">1.0</version>`)

	loaded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, l.Mods(), loaded.Mods())
	assert.Equal(t, l.Files(), loaded.Files())
	for _, p := range l.Files() {
		assert.Equal(t, l.FileStack(p), loaded.FileStack(p), p)
	}
	for _, k := range l.Settings() {
		assert.Equal(t, l.SettingStack(k), loaded.SettingStack(k))
	}
	for _, k := range l.Shaders() {
		assert.Equal(t, l.ShaderStack(k), loaded.ShaderStack(k))
	}

	again, err := loaded.Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestUnmarshalEmpty(t *testing.T) {
	l, err := Unmarshal([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, l.Mods())
}

func TestUnmarshalLegacyDocument(t *testing.T) {
	legacy := `<?xml version="1.0" encoding="utf-8"?>
<installLog fileVersion="0.5.0.0">
  <modList>
    <mod name="ORIGINAL_VALUES" key="x1y2z3w4"/>
    <mod name="FOMM" key="fommkey1"/>
    <mod name="Better Water" key="q8r7s6t5"><version machineVersion="2.1">2.1</version></mod>
  </modList>
  <dataFiles>
    <file path="Textures\Water\Foam.DDS">
      <installingMods>
        <mod key="x1y2z3w4"/>
        <mod key="q8r7s6t5"/>
      </installingMods>
    </file>
  </dataFiles>
  <iniEdits>
    <ini file="Fallout.ini" section="Water" key="bUseWaterShader">
      <installingMods><mod key="x1y2z3w4">0</mod><mod key="q8r7s6t5">1</mod></installingMods>
    </ini>
  </iniEdits>
  <gameSpecificEdits>
    <edit key="sdp:19/WATER.pso"><installingMods><mod key="q8r7s6t5">0a0b</mod></installingMods></edit>
    <edit key="other:thing"><installingMods><mod key="q8r7s6t5">zz</mod></installingMods></edit>
  </gameSpecificEdits>
</installLog>`

	l, err := Unmarshal([]byte(legacy))
	require.NoError(t, err)

	require.Len(t, l.Mods(), 1)
	rec := l.Mods()[0]
	assert.Equal(t, ModRecord{Key: "better water", Name: "Better Water", Version: "2.1", MachineVersion: "2.1"}, rec)

	stack := l.FileStack("textures/water/foam.dds")
	assert.Equal(t, []string{"ORIGINAL_VALUES", "better water"}, owners(stack))

	setting := mergemodule.NewSettingKey("fallout.ini", "water", "busewatershader")
	assert.Equal(t, []string{"ORIGINAL_VALUES", "better water"}, owners(l.SettingStack(setting)))

	shader := l.ShaderStack(mergemodule.NewShaderKey(19, "water.pso"))
	require.Len(t, shader, 1)
	assert.Equal(t, []byte{0x0a, 0x0b}, shader[0].Value)
}

func TestUnmarshalLegacySdpElements(t *testing.T) {
	doc := `<installLog>
  <modList><mod name="alpha" key="k1"/></modList>
  <sdpEdits><sdp package="4" shader="Sky.vso"><installingMods><mod key="k1">ff</mod></installingMods></sdp></sdpEdits>
</installLog>`
	l, err := Unmarshal([]byte(doc))
	require.NoError(t, err)
	owner, ok := l.CurrentShaderOwner(mergemodule.NewShaderKey(4, "sky.vso"))
	require.True(t, ok)
	assert.Equal(t, ModOwner("alpha"), owner)
}

func TestUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not xml", "<installLog"},
		{"wrong root", "<other/>"},
		{"unknown owner", `<installLog fileVersion="1.0.0"><dataFiles><file path="a"><installingMods><mod key="ghost"/></installingMods></file></dataFiles></installLog>`},
		{"bad hex", `<installLog fileVersion="1.0.0"><modList><mod name="A" key="a"/></modList><sdpEdits><edit key="sdp:1/a"><installingMods><mod key="a">xyz</mod></installingMods></edit></sdpEdits></installLog>`},
		{"bad shader key", `<installLog fileVersion="1.0.0"><sdpEdits><sdp package="x" shader="a"/></sdpEdits></installLog>`},
		{"file without path", `<installLog fileVersion="1.0.0"><dataFiles><file/></dataFiles></installLog>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrLedgerFormat))
		})
	}
}

func TestStore(t *testing.T) {
	fs := testutil.NewMemoryFS()
	require.NoError(t, fs.MkdirAll("/data", 0755))
	store := NewStore(fs, "/data/InstallLog.xml")

	l, err := store.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, l.Mods())

	l.Merge(ModRecord{Key: "alpha"}, fileModule("a.esp", "h"))
	fresh, err := store.Snapshot()
	require.NoError(t, err)
	assert.False(t, fresh.HasMod("alpha"), "snapshots are private until replaced")

	store.Replace(l)
	fresh, err = store.Snapshot()
	require.NoError(t, err)
	assert.True(t, fresh.HasMod("alpha"))

	data, err := populated().Marshal()
	require.NoError(t, err)
	require.NoError(t, fs.WriteFile("/data/InstallLog.xml", data, 0644))
	store.Invalidate()
	fresh, err = store.Snapshot()
	require.NoError(t, err)
	assert.True(t, fresh.HasMod("beta"))
}

func TestStoreCorruptDocument(t *testing.T) {
	fs := testutil.NewMemoryFS()
	testutil.WriteFile(t, fs, "/data/InstallLog.xml", []byte("<broken"))

	_, err := NewStore(fs, "/data/InstallLog.xml").Snapshot()
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrLedgerLoad))
	assert.True(t, errors.IsErrorCode(err, errors.ErrLedgerFormat))
}
