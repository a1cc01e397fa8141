// pkg/mergemodule/mergemodule_test.go
// TEST TYPE: Unit Tests
// DEPENDENCIES: None
// PURPOSE: Test change-set bookkeeping and resource key normalization

package mergemodule

import (
	"testing"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiles(t *testing.T) {
	m := New()
	assert.True(t, m.IsEmpty())

	m.AddFile("Data\\Textures\\Sky.dds", "h1")
	m.AddFile("data/meshes/rock.nif", "h2")
	m.AddFile("DATA/textures/sky.DDS", "h3")

	assert.False(t, m.IsEmpty())
	assert.True(t, m.ContainsFile("data/textures/sky.dds"))
	assert.False(t, m.ContainsFile("data/textures/cloud.dds"))
	assert.Equal(t, []FileEntry{
		{Path: "data/textures/sky.dds", Hash: "h3"},
		{Path: "data/meshes/rock.nif", Hash: "h2"},
	}, m.Files())

	m.BackupOriginalFile("data/textures/sky.dds", "orig")
	m.BackupOriginalFile("Data/Textures/Sky.dds", "later")
	assert.True(t, m.HasOriginalFile("DATA/TEXTURES/SKY.DDS"))
	assert.Equal(t, []FileEntry{{Path: "data/textures/sky.dds", Hash: "orig"}}, m.OriginalFiles())
}

func TestFilesReturnsCopy(t *testing.T) {
	m := New()
	m.AddFile("a.esp", "h")
	files := m.Files()
	files[0].Hash = "changed"
	assert.Equal(t, "h", m.Files()[0].Hash)
}

func TestSettingEdits(t *testing.T) {
	m := New()
	key := NewSettingKey("Game", "General", "bUseHardDriveCache")
	assert.Equal(t, SettingKey{File: "game", Section: "general", Key: "buseharddrivecache"}, key)
	assert.Equal(t, "game:[general]buseharddrivecache", key.String())

	m.AddSettingEdit(SettingKey{File: "GAME", Section: "general", Key: "bUseHardDriveCache"}, "1")
	m.BackupOriginalSetting(key, "0")
	m.BackupOriginalSetting(key, "ignored")

	assert.True(t, m.ContainsSettingEdit(key))
	assert.Equal(t, []SettingEdit{{Key: key, Value: "1"}}, m.SettingEdits())
	assert.Equal(t, []SettingEdit{{Key: key, Value: "0"}}, m.OriginalSettings())
}

func TestShaderEdits(t *testing.T) {
	m := New()
	key := NewShaderKey(19, "Water.PSO")
	data := []byte{1, 2, 3}

	m.AddShaderEdit(key, data)
	data[0] = 9
	m.BackupOriginalShader(NewShaderKey(19, "water.pso"), []byte{7})

	assert.True(t, m.ContainsShaderEdit(ShaderKey{Package: 19, Name: "WATER.pso"}))
	require.Len(t, m.ShaderEdits(), 1)
	assert.Equal(t, []byte{1, 2, 3}, m.ShaderEdits()[0].Data)
	assert.Equal(t, []byte{7}, m.OriginalShaders()[0].Data)
}

func TestShaderKeyRoundTrip(t *testing.T) {
	key := NewShaderKey(19, "water.pso")
	assert.Equal(t, "sdp:19/water.pso", key.String())

	parsed, err := ParseShaderKey("SDP:19/Water.pso")
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	for _, bad := range []string{"19/water.pso", "sdp:/water.pso", "sdp:x/water.pso", "sdp:19/", "sdp:-1/a"} {
		t.Run(bad, func(t *testing.T) {
			_, err := ParseShaderKey(bad)
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
		})
	}
}
