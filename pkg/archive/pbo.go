package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"

	"github.com/woozymasta/pbo"
)

type pboContainer struct {
	r    *pbo.Reader
	list []Entry
}

func openPBO(data []byte) (*pboContainer, error) {
	r, err := pbo.NewReaderFromReaderAt(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	c := &pboContainer{r: r}
	for _, e := range r.Entries() {
		size := int64(e.DataSize)
		if e.OriginalSize != 0 {
			size = int64(e.OriginalSize)
		}
		c.list = append(c.list, Entry{Name: pbo.NormalizePath(e.Path), Size: size})
	}
	return c, nil
}

func (c *pboContainer) format() Format   { return FormatPBO }
func (c *pboContainer) entries() []Entry { return c.list }
func (c *pboContainer) close() error     { return c.r.Close() }

func (c *pboContainer) read(name string) ([]byte, error) {
	data, err := c.r.ReadEntry(name)
	if errors.Is(err, pbo.ErrEntryNotFound) {
		return nil, errEntryMissing(name)
	}
	return data, err
}

// rewritePBO repacks a PBO with entries replaced, added or removed.
// Header pairs (prefix, product, version) are carried over.
func rewritePBO(ctx context.Context, data []byte, replace map[string]edit, remove map[string]bool) ([]byte, error) {
	c, err := openPBO(data)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.close() }()

	contents := make(map[string]edit)
	for _, e := range c.list {
		k := key(e.Name)
		if remove[k] {
			continue
		}
		if _, ok := replace[k]; ok {
			continue
		}
		payload, err := c.read(e.Name)
		if err != nil {
			return nil, err
		}
		contents[k] = edit{name: e.Name, data: payload}
	}
	for k, e := range replace {
		if existing, ok := lookup(c.list, k); ok {
			e.name = existing
		}
		contents[k] = e
	}

	keys := make([]string, 0, len(contents))
	for k := range contents {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	inputs := make([]pbo.Input, 0, len(keys))
	for _, k := range keys {
		e := contents[k]
		inputs = append(inputs, pbo.Input{
			Path:     e.name,
			SizeHint: int64(len(e.data)),
			Open: func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(e.data)), nil
			},
		})
	}

	out := &seekBuffer{}
	if _, err := pbo.Pack(ctx, out, inputs, pbo.PackOptions{Headers: c.r.Headers()}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// seekBuffer is an in-memory io.WriteSeeker; pbo.Pack seeks back to patch offsets.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	copy(s.buf[s.pos:], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = s.pos
	case io.SeekEnd:
		base = len(s.buf)
	default:
		return 0, errors.New("seekBuffer: invalid whence")
	}
	next := base + int(offset)
	if next < 0 {
		return 0, errors.New("seekBuffer: negative position")
	}
	s.pos = next
	return int64(next), nil
}

func (s *seekBuffer) Bytes() []byte { return s.buf }
