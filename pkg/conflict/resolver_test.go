// pkg/conflict/resolver_test.go
// TEST TYPE: Unit Tests
// DEPENDENCIES: MemoryFS, ScriptedPrompter
// PURPOSE: Test overwrite decisions, remembered answers and prompt parsing

package conflict

import (
	"bytes"
	"strings"
	"testing"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/mergemodule"
	"github.com/arthur-debert/modman/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGame(t *testing.T) *testutil.MemoryFS {
	t.Helper()
	fs := testutil.NewMemoryFS()
	for _, p := range []string{
		"/game/Data/Textures/a.dds",
		"/game/Data/Textures/b.dds",
		"/game/Data/Textures/Sub/c.dds",
		"/game/Data/Textures/Sub/Deep/d.dds",
		"/game/Data/Textures/Sub/Deep/e.dds",
		"/game/Data/Meshes/x.nif",
	} {
		testutil.WriteFile(t, fs, p, []byte("live"))
	}
	return fs
}

func TestResolveFileMissingTarget(t *testing.T) {
	prompter := &ScriptedPrompter{DefaultFile: SkipOnce}
	r := NewResolver(setupGame(t), "/game", prompter)

	ok, err := r.ResolveFile(FileConflict{Path: "Data/Textures/new.dds"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, r.Prompts())
}

func TestResolveFileOnceAnswers(t *testing.T) {
	prompter := &ScriptedPrompter{Files: []Result{ApplyOnce, SkipOnce}}
	r := NewResolver(setupGame(t), "/game", prompter)

	ok, err := r.ResolveFile(FileConflict{Path: "Data/Textures/a.dds"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ResolveFile(FileConflict{Path: "Data/Textures/a.dds"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, r.Prompts())
}

func TestResolveFileAllAnswers(t *testing.T) {
	tests := []struct {
		name   string
		answer Result
		want   bool
	}{
		{"apply all", ApplyAll, true},
		{"skip all", SkipAll, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(setupGame(t), "/game", &ScriptedPrompter{Files: []Result{tt.answer}})
			for _, p := range []string{"Data/Textures/a.dds", "Data/Meshes/x.nif", "Data/Textures/Sub/c.dds"} {
				ok, err := r.ResolveFile(FileConflict{Path: p})
				require.NoError(t, err)
				assert.Equal(t, tt.want, ok, p)
			}
			assert.Equal(t, 1, r.Prompts())
		})
	}
}

func TestApplyFolderPropagates(t *testing.T) {
	prompter := &ScriptedPrompter{Files: []Result{ApplyFolder}, DefaultFile: SkipOnce}
	r := NewResolver(setupGame(t), "/game", prompter)

	files := []string{
		"Data/Textures/a.dds",
		"Data/Textures/b.dds",
		"Data/Textures/Sub/c.dds",
		"Data/Textures/Sub/Deep/d.dds",
		"Data/Textures/Sub/Deep/e.dds",
	}
	for _, p := range files {
		ok, err := r.ResolveFile(FileConflict{Path: p, Owner: "alpha"})
		require.NoError(t, err)
		assert.True(t, ok, p)
	}
	assert.Equal(t, 1, r.Prompts(), "one prompt answers the whole subtree")

	for _, dir := range []string{"data/textures", "Data/Textures/Sub", "data/textures/sub/deep"} {
		apply, decided := r.FolderDecision(dir)
		assert.True(t, decided, dir)
		assert.True(t, apply, dir)
	}
	_, decided := r.FolderDecision("Data/Meshes")
	assert.False(t, decided)

	ok, err := r.ResolveFile(FileConflict{Path: "Data/Meshes/x.nif"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, r.Prompts())
}

func TestSkipFolderKeepsEarlierApplyFolder(t *testing.T) {
	prompter := &ScriptedPrompter{Files: []Result{ApplyFolder, SkipFolder}}
	r := NewResolver(setupGame(t), "/game", prompter)

	ok, err := r.ResolveFile(FileConflict{Path: "Data/Textures/Sub/c.dds"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ResolveFile(FileConflict{Path: "Data/Textures/a.dds"})
	require.NoError(t, err)
	assert.False(t, ok)

	apply, decided := r.FolderDecision("Data/Textures/Sub/Deep")
	assert.True(t, decided)
	assert.True(t, apply, "directories answered earlier keep their answer")

	apply, decided = r.FolderDecision("Data/Textures")
	assert.True(t, decided)
	assert.False(t, apply)
}

func TestModAnswers(t *testing.T) {
	prompter := &ScriptedPrompter{Files: []Result{SkipMod, ApplyOnce}}
	r := NewResolver(setupGame(t), "/game", prompter)

	ok, err := r.ResolveFile(FileConflict{Path: "Data/Textures/a.dds", Owner: "alpha"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.ResolveFile(FileConflict{Path: "Data/Textures/b.dds", Owner: "alpha"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Prompts())

	ok, err = r.ResolveFile(FileConflict{Path: "Data/Textures/b.dds", Owner: "beta"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, r.Prompts())
}

func TestInvalidResultIsInvariantViolation(t *testing.T) {
	r := NewResolver(setupGame(t), "/game", &ScriptedPrompter{Files: []Result{Result(42)}, Texts: []TextResult{TextResult(9)}})

	_, err := r.ResolveFile(FileConflict{Path: "Data/Textures/a.dds"})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConflictInvariant))

	_, err = r.ResolveSetting(SettingConflict{Key: mergemodule.NewSettingKey("game", "a", "b")})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConflictInvariant))
}

func TestResolveSetting(t *testing.T) {
	key := mergemodule.NewSettingKey("game", "general", "bvalue")
	prompter := &ScriptedPrompter{Texts: []TextResult{No, YesToAll}}
	r := NewResolver(setupGame(t), "/game", prompter)

	ok, err := r.ResolveSetting(SettingConflict{Key: key})
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 0; i < 3; i++ {
		ok, err = r.ResolveSetting(SettingConflict{Key: key})
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 2, r.Prompts())

	r = NewResolver(setupGame(t), "/game", &ScriptedPrompter{Texts: []TextResult{NoToAll}})
	_, _ = r.ResolveSetting(SettingConflict{Key: key})
	assert.True(t, r.SkipAllSettings())
	ok, err = r.ResolveSetting(SettingConflict{Key: key})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPreset(t *testing.T) {
	prompter := &ScriptedPrompter{DefaultFile: SkipOnce}
	r := NewResolver(setupGame(t), "/game", prompter)
	r.Preset(true)

	ok, err := r.ResolveFile(FileConflict{Path: "Data/Textures/a.dds"})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.ResolveShader(ShaderConflict{Key: mergemodule.NewShaderKey(1, "a"), Owner: "beta"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, prompter.Asked)

	r = NewResolver(setupGame(t), "/game", prompter)
	r.Preset(false)
	ok, err = r.ResolveSetting(SettingConflict{Key: mergemodule.NewSettingKey("game", "a", "b")})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsolePrompter(t *testing.T) {
	in := strings.NewReader("what\nyf\n\nya\nn\ny\n")
	var out bytes.Buffer
	p := NewConsolePrompter(in, &out)

	r, err := p.OverwriteFile(FileConflict{Path: "Data/a.dds", Owner: "alpha"})
	require.NoError(t, err)
	assert.Equal(t, ApplyFolder, r)
	assert.Contains(t, out.String(), "has already been installed by 'alpha'")
	assert.Contains(t, out.String(), `Unrecognised answer "what"`)

	r, err = p.OverwriteFile(FileConflict{Path: "Data/b.dds"})
	require.NoError(t, err)
	assert.Equal(t, SkipOnce, r)

	tr, err := p.OverwriteSetting(SettingConflict{Key: mergemodule.NewSettingKey("game", "display", "iSize"), OldValue: "1", NewValue: "2"})
	require.NoError(t, err)
	assert.Equal(t, YesToAll, tr)
	assert.Contains(t, out.String(), "Current value '1', new value '2'")

	tr, err = p.OverwriteSetting(SettingConflict{Key: mergemodule.NewSettingKey("game", "display", "iSize")})
	require.NoError(t, err)
	assert.Equal(t, No, tr)

	yes, err := p.OverwriteShader(ShaderConflict{Key: mergemodule.NewShaderKey(2, "sky.vso"), Owner: "beta"})
	require.NoError(t, err)
	assert.True(t, yes)

	_, err = p.OverwriteFile(FileConflict{Path: "Data/c.dds"})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCancelled))
}

func TestConsolePrompterRejectsModAnswerWithoutOwner(t *testing.T) {
	var out bytes.Buffer
	p := NewConsolePrompter(strings.NewReader("ym\nn\n"), &out)

	r, err := p.OverwriteFile(FileConflict{Path: "Data/a.dds"})
	require.NoError(t, err)
	assert.Equal(t, SkipOnce, r)
	assert.NotContains(t, out.String(), "yes to mod")
}

func TestConsolePrompterShaderAnswers(t *testing.T) {
	conflict := ShaderConflict{Key: mergemodule.NewShaderKey(19, "water.pso"), Owner: "alpha"}

	t.Run("unrecognised answer asks again", func(t *testing.T) {
		var out bytes.Buffer
		p := NewConsolePrompter(strings.NewReader("maybe\nNo\n"), &out)

		yes, err := p.OverwriteShader(conflict)
		require.NoError(t, err)
		assert.False(t, yes)
		assert.Contains(t, out.String(), `Unrecognised answer "maybe"`)
		assert.Equal(t, 2, strings.Count(out.String(), "Overwrite the changes?"))
	})

	t.Run("answer without newline at end of input", func(t *testing.T) {
		p := NewConsolePrompter(strings.NewReader("yes"), &bytes.Buffer{})

		yes, err := p.OverwriteShader(conflict)
		require.NoError(t, err)
		assert.True(t, yes)
	})

	t.Run("input ends before an answer", func(t *testing.T) {
		p := NewConsolePrompter(strings.NewReader("maybe\n"), &bytes.Buffer{})

		_, err := p.OverwriteShader(conflict)
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrCancelled))
	})
}

func TestResultStrings(t *testing.T) {
	assert.Equal(t, "apply-folder", ApplyFolder.String())
	assert.Equal(t, "invalid", Result(99).String())
	assert.Equal(t, "no-to-all", NoToAll.String())
}
