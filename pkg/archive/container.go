package archive

import (
	stderrors "errors"
	"io/fs"
	"path"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/types"
)

// Entry is one file stored in a container.
type Entry struct {
	Name string
	Size int64
}

// container is an opened decoder over one archive.
type container interface {
	format() Format
	entries() []Entry
	// read returns the bytes of the entry stored under name (exact case).
	read(name string) ([]byte, error)
	close() error
}

// sequential containers can only be read front to back; the read-only
// session preloads them.
type sequential interface {
	container
	readAll(visit func(name string, data []byte) error) error
}

// openPath opens the container at p. Archive paths are resolved
// recursively: every intermediate container is closed before this returns,
// whatever the outcome.
func openPath(fsys types.FS, p string) (container, error) {
	outer, inner, ok := ParsePath(p)
	if !ok {
		return openDisk(fsys, p)
	}

	parent, err := openPath(fsys, outer)
	if err != nil {
		return nil, err
	}
	defer func() { _ = parent.close() }()

	stored, found := lookup(parent.entries(), inner)
	if !found {
		return nil, errors.Newf(errors.ErrNotFound, "%s not found in %s", inner, outer)
	}
	data, err := parent.read(stored)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrArchiveRead, "failed to extract %s from %s", inner, outer)
	}
	return openBytes(inner, data)
}

func openDisk(fsys types.FS, p string) (container, error) {
	info, err := fsys.Stat(p)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, errors.ErrNotFound, "archive %s not found", p)
		}
		return nil, errors.Wrapf(err, errors.ErrArchiveOpen, "failed to open %s", p)
	}
	if info.IsDir() {
		return openDir(fsys, p)
	}
	data, err := fsys.ReadFile(p)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrArchiveOpen, "failed to read %s", p)
	}
	return openBytes(p, data)
}

func openBytes(name string, data []byte) (container, error) {
	format, compression := detect(name, data)
	var (
		c   container
		err error
	)
	switch format {
	case FormatZip:
		c, err = openZip(data)
	case FormatPBO:
		c, err = openPBO(data)
	case FormatRAR:
		c, err = openRAR(data)
	case FormatTar:
		c, err = openTar(data, compression)
	default:
		return nil, errors.Newf(errors.ErrArchiveOpen, "%s is not a recognised archive", path.Base(normalizeEntry(name)))
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrArchiveOpen, "failed to open %s archive %s", format, name)
	}
	return c, nil
}

// lookup finds the stored name of an entry, ignoring case and separator style.
func lookup(entries []Entry, name string) (string, bool) {
	want := key(name)
	for _, e := range entries {
		if key(e.Name) == want {
			return e.Name, true
		}
	}
	return "", false
}

func errEntryMissing(name string) error {
	return errors.Newf(errors.ErrNotFound, "entry %s not found", name)
}

// edit is a pending replacement of one entry. name keeps the caller's case
// for entries that do not exist yet.
type edit struct {
	name string
	data []byte
}
