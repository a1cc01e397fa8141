package archive

import (
	"bytes"
	"io"

	"github.com/nwaples/rardecode/v2"
)

// rarContainer is read-only; RAR can only be decoded front to back, so
// every read rescans the in-memory stream.
type rarContainer struct {
	data []byte
	list []Entry
}

func openRAR(data []byte) (*rarContainer, error) {
	c := &rarContainer{data: data}
	err := c.scan(func(h *rardecode.FileHeader, _ io.Reader) (bool, error) {
		c.list = append(c.list, Entry{Name: normalizeEntry(h.Name), Size: h.UnPackedSize})
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// scan walks every file header; visit returns false to stop.
func (c *rarContainer) scan(visit func(h *rardecode.FileHeader, r io.Reader) (bool, error)) error {
	r, err := rardecode.NewReader(bytes.NewReader(c.data))
	if err != nil {
		return err
	}
	for {
		h, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if h.IsDir {
			continue
		}
		more, err := visit(h, r)
		if err != nil || !more {
			return err
		}
	}
}

func (c *rarContainer) format() Format   { return FormatRAR }
func (c *rarContainer) entries() []Entry { return c.list }
func (c *rarContainer) close() error     { return nil }

func (c *rarContainer) read(name string) ([]byte, error) {
	var out []byte
	found := false
	err := c.scan(func(h *rardecode.FileHeader, r io.Reader) (bool, error) {
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

func (c *rarContainer) readAll(visit func(name string, data []byte) error) error {
	return c.scan(func(h *rardecode.FileHeader, r io.Reader) (bool, error) {
		data, err := io.ReadAll(r)
		if err != nil {
			return false, err
		}
		return true, visit(normalizeEntry(h.Name), data)
	})
}
