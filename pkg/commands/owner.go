package commands

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/installer"
	"github.com/arthur-debert/modman/pkg/installlog"
	"github.com/arthur-debert/modman/pkg/logging"
	"github.com/arthur-debert/modman/pkg/mergemodule"
	"github.com/arthur-debert/modman/pkg/paths"
)

// Resource kinds tracked by the install log.
const (
	ResourceFile    = "file"
	ResourceSetting = "setting"
	ResourceShader  = "shader"
)

// OwnerQuery names one resource. Exactly one field is set.
type OwnerQuery struct {
	// Path is a data file path relative to the game directory.
	Path string
	// Setting is file:[section]key, as printed by the install log.
	Setting string
	// Shader is sdp:<package>/<name>.
	Shader string
}

// Layer is one entry of an ownership stack.
type Layer struct {
	Owner    string
	Original bool
	// Value is the recorded hash for files, the value for settings and a
	// size and hash summary for shaders.
	Value string
}

// OwnerResult is the ownership stack of one resource, oldest first.
type OwnerResult struct {
	Kind     string
	Resource string
	Layers   []Layer
}

// Current returns the top layer, if any.
func (r *OwnerResult) Current() (Layer, bool) {
	if len(r.Layers) == 0 {
		return Layer{}, false
	}
	return r.Layers[len(r.Layers)-1], true
}

// ParseSettingKey parses the file:[section]key form.
func ParseSettingKey(s string) (mergemodule.SettingKey, error) {
	file, rest, ok := strings.Cut(s, ":")
	if !ok || file == "" || !strings.HasPrefix(rest, "[") {
		return mergemodule.SettingKey{}, errors.Newf(errors.ErrInvalidInput, "setting %q is not in file:[section]key form", s)
	}
	section, key, ok := strings.Cut(rest[1:], "]")
	if !ok || key == "" {
		return mergemodule.SettingKey{}, errors.Newf(errors.ErrInvalidInput, "setting %q is not in file:[section]key form", s)
	}
	return mergemodule.NewSettingKey(file, section, key), nil
}

// Owner returns the ownership stack of a data file, settings key or shader.
func Owner(env *Environment, q OwnerQuery) (*OwnerResult, error) {
	log := logging.GetLogger("commands.owner")

	ledger, err := env.Store.Snapshot()
	if err != nil {
		return nil, err
	}

	var result *OwnerResult
	switch {
	case q.Path != "":
		if err := paths.ValidateRelativePath(q.Path); err != nil {
			return nil, err
		}
		rel := paths.NormalizeResourcePath(q.Path)
		result = &OwnerResult{Kind: ResourceFile, Resource: rel}
		result.Layers = layers(ledger.FileStack(rel), func(v string) string { return v })
	case q.Setting != "":
		k, err := ParseSettingKey(q.Setting)
		if err != nil {
			return nil, err
		}
		result = &OwnerResult{Kind: ResourceSetting, Resource: k.String()}
		result.Layers = layers(ledger.SettingStack(k), func(v string) string { return v })
	case q.Shader != "":
		k, err := mergemodule.ParseShaderKey(q.Shader)
		if err != nil {
			return nil, err
		}
		result = &OwnerResult{Kind: ResourceShader, Resource: k.String()}
		result.Layers = layers(ledger.ShaderStack(k), func(v []byte) string {
			return fmt.Sprintf("%d bytes, %s", len(v), installer.HashBytes(v)[:16])
		})
	default:
		return nil, errors.New(errors.ErrInvalidInput, "a file path, setting or shader is required")
	}

	log.Debug().Str("resource", result.Resource).Int("layers", len(result.Layers)).Msg("Command finished")
	return result, nil
}

func layers[V any](s installlog.Stack[V], format func(V) string) []Layer {
	out := make([]Layer, len(s))
	for i, e := range s {
		out[i] = Layer{Owner: e.Owner.String(), Original: e.Owner.IsOriginal(), Value: format(e.Value)}
	}
	return out
}
