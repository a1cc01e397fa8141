package mergemodule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arthur-debert/modman/pkg/errors"
)

// SettingKey identifies one key in one settings file. All parts are stored
// lowercase so comparisons are case-insensitive.
type SettingKey struct {
	File    string
	Section string
	Key     string
}

// NewSettingKey builds a normalized SettingKey.
func NewSettingKey(file, section, key string) SettingKey {
	return SettingKey{
		File:    strings.ToLower(strings.TrimSpace(file)),
		Section: strings.ToLower(strings.TrimSpace(section)),
		Key:     strings.ToLower(strings.TrimSpace(key)),
	}
}

func (k SettingKey) String() string {
	return fmt.Sprintf("%s:[%s]%s", k.File, k.Section, k.Key)
}

// ShaderKey identifies one shader inside a numbered shader package.
type ShaderKey struct {
	Package int
	Name    string
}

const shaderPrefix = "sdp:"

// NewShaderKey builds a normalized ShaderKey.
func NewShaderKey(pkg int, name string) ShaderKey {
	return ShaderKey{Package: pkg, Name: strings.ToLower(strings.TrimSpace(name))}
}

// String renders the key as sdp:<package>/<name>, the form stored in the ledger.
func (k ShaderKey) String() string {
	return fmt.Sprintf("%s%d/%s", shaderPrefix, k.Package, k.Name)
}

// ParseShaderKey parses the sdp:<package>/<name> form.
func ParseShaderKey(s string) (ShaderKey, error) {
	if !strings.HasPrefix(strings.ToLower(s), shaderPrefix) {
		return ShaderKey{}, errors.Newf(errors.ErrInvalidInput, "shader key %q lacks the %s prefix", s, shaderPrefix)
	}
	body := s[len(shaderPrefix):]
	idx := strings.Index(body, "/")
	if idx <= 0 || idx == len(body)-1 {
		return ShaderKey{}, errors.Newf(errors.ErrInvalidInput, "malformed shader key %q", s)
	}
	pkg, err := strconv.Atoi(body[:idx])
	if err != nil || pkg < 0 {
		return ShaderKey{}, errors.Newf(errors.ErrInvalidInput, "malformed shader package in %q", s)
	}
	return NewShaderKey(pkg, body[idx+1:]), nil
}
