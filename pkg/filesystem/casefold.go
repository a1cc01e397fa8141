package filesystem

import (
	stderrors "errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/paths"
	"github.com/arthur-debert/modman/pkg/types"
)

// ResolveCase maps rel onto what already exists below root, matching each
// component case-insensitively. Components that do not exist keep the case
// they were given. An exact match wins over a case-insensitive one. The
// result is relative, with forward slashes.
func ResolveCase(fsys types.FS, root, rel string) (string, error) {
	parts := strings.Split(paths.CleanRelative(rel), "/")
	cur := root
	out := make([]string, 0, len(parts))
	for i, part := range parts {
		entries, err := fsys.ReadDir(cur)
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				out = append(out, parts[i:]...)
				break
			}
			return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to list %s", cur)
		}
		name := part
		for _, e := range entries {
			if e.Name() == part {
				name = part
				break
			}
			if strings.EqualFold(e.Name(), part) {
				name = e.Name()
			}
		}
		out = append(out, name)
		cur = filepath.Join(cur, name)
	}
	return strings.Join(out, "/"), nil
}

// LivePath resolves rel below root case-insensitively and returns the
// cased relative path together with the absolute one.
func LivePath(fsys types.FS, root, rel string) (string, string, error) {
	cased, err := ResolveCase(fsys, root, rel)
	if err != nil {
		return "", "", err
	}
	return cased, filepath.Join(root, filepath.FromSlash(cased)), nil
}
