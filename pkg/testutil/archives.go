package testutil

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/arthur-debert/modman/pkg/types"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/woozymasta/pbo"
)

// Files maps archive entry names to their content.
type Files map[string]string

func (f Files) sortedNames() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ZipBytes builds a zip archive in memory.
func ZipBytes(t *testing.T, files Files) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range files.sortedNames() {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := io.WriteString(fw, files[name]); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// ZipBytesRaw is ZipBytes for binary content, used to nest archives.
func ZipBytesRaw(t *testing.T, files map[string][]byte) []byte {
	t.Helper()

	converted := make(Files, len(files))
	for name, data := range files {
		converted[name] = string(data)
	}
	return ZipBytes(t, converted)
}

// PBOBytes builds a PBO archive through the pbo packer.
func PBOBytes(t *testing.T, files Files) []byte {
	t.Helper()

	inputs := make([]pbo.Input, 0, len(files))
	for _, name := range files.sortedNames() {
		content := files[name]
		inputs = append(inputs, pbo.Input{
			Path:     name,
			SizeHint: int64(len(content)),
			Open: func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader([]byte(content))), nil
			},
		})
	}

	out := filepath.Join(t.TempDir(), "fixture.pbo")
	opts := pbo.PackOptions{Headers: []pbo.HeaderPair{{Key: "prefix", Value: "fixture"}}}
	if _, err := pbo.PackFile(context.Background(), out, inputs, opts); err != nil {
		t.Fatalf("pbo pack: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read packed pbo: %v", err)
	}
	return data
}

// TarBytes builds a tarball compressed with "", "gz", "xz", "zst" or "lz4".
func TarBytes(t *testing.T, files Files, compression string) []byte {
	t.Helper()

	var raw bytes.Buffer
	tw := tar.NewWriter(&raw)
	for _, name := range files.sortedNames() {
		content := files[name]
		hdr := &tar.Header{Name: name, Mode: 0644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %s: %v", name, err)
		}
		if _, err := io.WriteString(tw, content); err != nil {
			t.Fatalf("tar write %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}

	var out bytes.Buffer
	var w io.WriteCloser
	switch compression {
	case "":
		return raw.Bytes()
	case "gz":
		w = gzip.NewWriter(&out)
	case "xz":
		xw, err := xz.NewWriter(&out)
		if err != nil {
			t.Fatalf("xz writer: %v", err)
		}
		w = xw
	case "zst":
		zw, err := zstd.NewWriter(&out)
		if err != nil {
			t.Fatalf("zstd writer: %v", err)
		}
		w = zw
	case "lz4":
		w = lz4.NewWriter(&out)
	default:
		t.Fatalf("unknown compression %q", compression)
	}
	if _, err := w.Write(raw.Bytes()); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("compress close: %v", err)
	}
	return out.Bytes()
}

// WriteFile creates path with content, creating parent directories.
func WriteFile(t *testing.T, fsys types.FS, path string, content []byte) {
	t.Helper()

	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := fsys.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadString reads path or fails the test.
func ReadString(t *testing.T, fsys types.FS, path string) string {
	t.Helper()

	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// Exists reports whether path exists.
func Exists(fsys types.FS, path string) bool {
	_, err := fsys.Stat(path)
	return err == nil
}
