package archive

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zip"
)

type zipContainer struct {
	r    *zip.Reader
	list []Entry
}

func openZip(data []byte) (*zipContainer, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	c := &zipContainer{r: r}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		c.list = append(c.list, Entry{Name: f.Name, Size: int64(f.UncompressedSize64)})
	}
	return c, nil
}

func (c *zipContainer) format() Format   { return FormatZip }
func (c *zipContainer) entries() []Entry { return c.list }
func (c *zipContainer) close() error     { return nil }

func (c *zipContainer) read(name string) ([]byte, error) {
	for _, f := range c.r.File {
		if f.Name != name {
			continue
		}
		return readZipFile(f)
	}
	return nil, errEntryMissing(name)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// rewriteZip produces a new zip with the given entries replaced, added or
// removed. Untouched entries keep their name, timestamp and compression method.
func rewriteZip(data []byte, replace map[string]edit, remove map[string]bool) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	written := make(map[string]bool)

	for _, f := range r.File {
		k := key(f.Name)
		if remove[k] {
			continue
		}
		if e, ok := replace[k]; ok {
			if err := writeZipEntry(w, f.FileHeader, e.data); err != nil {
				return nil, err
			}
			written[k] = true
			continue
		}
		content, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		if err := writeZipEntry(w, f.FileHeader, content); err != nil {
			return nil, err
		}
	}

	for k, e := range replace {
		if written[k] {
			continue
		}
		if err := writeZipEntry(w, zip.FileHeader{Name: e.name, Method: zip.Deflate}, e.data); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeZipEntry(w *zip.Writer, header zip.FileHeader, content []byte) error {
	fh := &zip.FileHeader{
		Name:     header.Name,
		Method:   header.Method,
		Modified: header.Modified,
	}
	fw, err := w.CreateHeader(fh)
	if err != nil {
		return err
	}
	_, err = fw.Write(content)
	return err
}
