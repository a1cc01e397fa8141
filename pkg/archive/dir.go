package archive

import (
	"path"
	"path/filepath"

	"github.com/arthur-debert/modman/pkg/types"
)

// dirContainer treats an unpacked mod directory like an archive.
type dirContainer struct {
	fsys types.FS
	root string
	list []Entry
}

func openDir(fsys types.FS, root string) (*dirContainer, error) {
	c := &dirContainer{fsys: fsys, root: root}
	if err := c.walk(""); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *dirContainer) walk(rel string) error {
	entries, err := c.fsys.ReadDir(filepath.Join(c.root, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}
	for _, e := range entries {
		child := path.Join(rel, e.Name())
		if e.IsDir() {
			if err := c.walk(child); err != nil {
				return err
			}
			continue
		}
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		}
		c.list = append(c.list, Entry{Name: child, Size: size})
	}
	return nil
}

func (c *dirContainer) format() Format   { return FormatDir }
func (c *dirContainer) entries() []Entry { return c.list }
func (c *dirContainer) close() error     { return nil }

func (c *dirContainer) read(name string) ([]byte, error) {
	return c.fsys.ReadFile(c.abs(name))
}

func (c *dirContainer) abs(name string) string {
	return filepath.Join(c.root, filepath.FromSlash(normalizeEntry(name)))
}
