package paths

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/modman/pkg/errors"
)

// invalidChars are rejected in data paths regardless of platform, so a
// ledger written on one system stays valid on another.
const invalidChars = "<>:\"|?*"

// ValidateRelativePath checks that a path supplied by a mod or its install
// script stays inside the directory it is resolved against.
func ValidateRelativePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return errors.New(errors.ErrInvalidInput, "path cannot be empty")
	}

	if strings.ContainsRune(p, 0) {
		return errors.Newf(errors.ErrUnsafePath, "path contains null bytes: %q", p)
	}

	slashed := ToSlash(p)
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(p) || hasDriveLetter(slashed) {
		return errors.Newf(errors.ErrUnsafePath, "path must be relative: %s", p)
	}

	if strings.ContainsAny(slashed, invalidChars) {
		return errors.Newf(errors.ErrUnsafePath, "path contains invalid characters: %s", p)
	}

	for _, r := range slashed {
		if r < 32 {
			return errors.Newf(errors.ErrUnsafePath, "path contains control characters: %q", p)
		}
	}

	cleaned := path.Clean(slashed)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return errors.Newf(errors.ErrUnsafePath, "path escapes its root: %s", p)
	}

	return nil
}

// ToSlash converts both separator styles to forward slashes.
func ToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// NormalizeResourcePath returns the ledger identity of a data path:
// forward slashes, cleaned, no leading separator, lowercase.
func NormalizeResourcePath(p string) string {
	cleaned := path.Clean(ToSlash(p))
	cleaned = strings.TrimPrefix(cleaned, "./")
	cleaned = strings.TrimLeft(cleaned, "/")
	if cleaned == "." {
		return ""
	}
	return strings.ToLower(cleaned)
}

// CleanRelative cleans a relative path keeping its case.
func CleanRelative(p string) string {
	cleaned := path.Clean(ToSlash(p))
	cleaned = strings.TrimLeft(strings.TrimPrefix(cleaned, "./"), "/")
	if cleaned == "." {
		return ""
	}
	return cleaned
}

// JoinSafe validates rel and joins it onto root.
func JoinSafe(root, rel string) (string, error) {
	if err := ValidateRelativePath(rel); err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(CleanRelative(rel))), nil
}

// ContainsPath reports whether child is parent or lies under it.
func ContainsPath(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func hasDriveLetter(p string) bool {
	return len(p) >= 2 && p[1] == ':' &&
		((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}
