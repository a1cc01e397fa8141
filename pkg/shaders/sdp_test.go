// pkg/shaders/sdp_test.go
// TEST TYPE: Unit Tests
// DEPENDENCIES: MemoryFS
// PURPOSE: Test shader package decoding, encoding and editing

package shaders

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/mergemodule"
	"github.com/arthur-debert/modman/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePackage(t *testing.T) []byte {
	t.Helper()
	p := &Package{Header: 0x64, Shaders: []Shader{
		{Name: "WATER.PSO", Data: []byte{1, 2, 3}},
		{Name: "sky.vso", Data: []byte{4}},
	}}
	data, err := p.Bytes()
	require.NoError(t, err)
	return data
}

func TestLayout(t *testing.T) {
	data := samplePackage(t)

	assert.Equal(t, int32(0x64), int32(binary.LittleEndian.Uint32(data[0:])))
	assert.Equal(t, int32(2), int32(binary.LittleEndian.Uint32(data[4:])))
	assert.Equal(t, len(data)-12, int(binary.LittleEndian.Uint32(data[8:])))
	assert.Equal(t, "WATER.PSO", string(data[12:21]))
	assert.Equal(t, byte(0), data[21])
	assert.Equal(t, int32(3), int32(binary.LittleEndian.Uint32(data[12+nameSize:])))
	assert.Len(t, data, 12+2*(nameSize+4)+4)
}

func TestParseRoundTrip(t *testing.T) {
	data := samplePackage(t)

	p, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, p.Shaders, 2)
	assert.Equal(t, "WATER.PSO", p.Shaders[0].Name)

	blob, ok := p.Get("water.pso")
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, blob)

	old, err := p.Replace("Sky.VSO", []byte{9, 9})
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, old)

	_, err = p.Replace("missing", nil)
	assert.True(t, errors.IsErrorCode(err, errors.ErrShader))

	again, err := p.Bytes()
	require.NoError(t, err)
	parsed, err := Parse(again)
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
}

func TestParseErrors(t *testing.T) {
	good := samplePackage(t)
	tests := map[string][]byte{
		"short header":   good[:8],
		"truncated name": good[:20],
		"truncated data": good[:len(good)-1],
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(data)
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrShader))
		})
	}
}

func TestEditor(t *testing.T) {
	fs := testutil.NewMemoryFS()
	testutil.WriteFile(t, fs, "/game/shaders/shaderpackage019.sdp", samplePackage(t))
	e := NewEditor(fs, func(pkg int) string { return fmt.Sprintf("/game/shaders/shaderpackage%03d.sdp", pkg) })
	key := mergemodule.NewShaderKey(19, "Water.pso")

	live, err := e.Read(key)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, live)

	old, err := e.Replace(key, []byte{7, 7, 7, 7})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, old)

	live, err = e.Read(key)
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 7, 7, 7}, live)

	_, err = e.Read(mergemodule.NewShaderKey(19, "nope"))
	assert.True(t, errors.IsErrorCode(err, errors.ErrShader))

	_, err = e.Replace(mergemodule.NewShaderKey(3, "water.pso"), []byte{1})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrShader))
}
