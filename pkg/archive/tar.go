package archive

import (
	"archive/tar"
	"bytes"
	"io"
)

// tarContainer reads plain or compressed tarballs. Like RAR it is
// sequential and read-only.
type tarContainer struct {
	data        []byte
	compression Compression
	list        []Entry
}

func openTar(data []byte, compression Compression) (*tarContainer, error) {
	c := &tarContainer{data: data, compression: compression}
	err := c.scan(func(h *tar.Header, _ io.Reader) (bool, error) {
		c.list = append(c.list, Entry{Name: normalizeEntry(h.Name), Size: h.Size})
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *tarContainer) scan(visit func(h *tar.Header, r io.Reader) (bool, error)) error {
	stream, release, err := decompressor(c.compression, bytes.NewReader(c.data))
	if err != nil {
		return err
	}
	defer release()

	tr := tar.NewReader(stream)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if h.Typeflag != tar.TypeReg {
			continue
		}
		more, err := visit(h, tr)
		if err != nil || !more {
			return err
		}
	}
}

func (c *tarContainer) format() Format   { return FormatTar }
func (c *tarContainer) entries() []Entry { return c.list }
func (c *tarContainer) close() error     { return nil }

func (c *tarContainer) read(name string) ([]byte, error) {
	var out []byte
	found := false
	err := c.scan(func(h *tar.Header, r io.Reader) (bool, error) {
		if normalizeEntry(h.Name) != name {
			return true, nil
		}
		data, err := io.ReadAll(r)
		out, found = data, true
		return false, err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errEntryMissing(name)
	}
	return out, nil
}

func (c *tarContainer) readAll(visit func(name string, data []byte) error) error {
	return c.scan(func(h *tar.Header, r io.Reader) (bool, error) {
		data, err := io.ReadAll(r)
		if err != nil {
			return false, err
		}
		return true, visit(normalizeEntry(h.Name), data)
	})
}
