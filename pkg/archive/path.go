package archive

import (
	"path/filepath"
	"strings"
)

// Prefix marks a path that points inside an archive: arch:<outer>//<inner>.
// The outer part may itself be an archive path, so chains nest.
const Prefix = "arch:"

const separator = "//"

// IsArchivePath reports whether p uses the arch: scheme.
func IsArchivePath(p string) bool {
	return strings.HasPrefix(p, Prefix)
}

// ParsePath splits an archive path into the path of the containing archive
// and the path of the file inside it. The split happens at the last "//",
// so the outer part keeps any nesting.
func ParsePath(p string) (outer, inner string, ok bool) {
	if !IsArchivePath(p) {
		return "", "", false
	}
	body := strings.TrimPrefix(p, Prefix)
	idx := strings.LastIndex(body, separator)
	if idx < 0 {
		return "", "", false
	}
	return body[:idx], body[idx+len(separator):], true
}

// GeneratePath builds the archive path of inner inside the archive at outer.
func GeneratePath(outer, inner string) string {
	return Prefix + outer + separator + inner
}

// ChangeDirectory moves the on-disk archive at the root of an archive path
// chain into dir, keeping every inner component. A plain path has its
// directory replaced.
func ChangeDirectory(p, dir string) string {
	outer, inner, ok := ParsePath(p)
	if !ok {
		return filepath.Join(dir, filepath.Base(p))
	}
	return GeneratePath(ChangeDirectory(outer, dir), inner)
}

// DiskPath returns the on-disk file at the root of an archive path chain.
func DiskPath(p string) string {
	for {
		outer, _, ok := ParsePath(p)
		if !ok {
			return p
		}
		p = outer
	}
}

// normalizeEntry converts an entry name to forward slashes with no leading
// or trailing separator. Case is preserved.
func normalizeEntry(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.Trim(name, "/")
	for strings.Contains(name, "//") {
		name = strings.ReplaceAll(name, "//", "/")
	}
	return name
}

func key(name string) string {
	return strings.ToLower(normalizeEntry(name))
}
