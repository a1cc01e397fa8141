package archive

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Format identifies a container type.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatPBO
	FormatRAR
	FormatTar
	FormatDir
)

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatPBO:
		return "pbo"
	case FormatRAR:
		return "rar"
	case FormatTar:
		return "tar"
	case FormatDir:
		return "directory"
	default:
		return "unknown"
	}
}

// Editable reports whether entries of this format can be replaced or deleted.
func (f Format) Editable() bool {
	return f == FormatZip || f == FormatPBO || f == FormatDir
}

// Compression wraps a tar stream.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionXZ
	CompressionZstd
	CompressionLZ4
)

var (
	magicZip      = []byte("PK\x03\x04")
	magicZipEmpty = []byte("PK\x05\x06")
	magicRAR      = []byte("Rar!\x1a\x07")
	magicGzip     = []byte{0x1f, 0x8b}
	magicXZ       = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicZstd     = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicLZ4      = []byte{0x04, 0x22, 0x4d, 0x18}
)

// detect sniffs the format of an archive held in memory. The name is only
// consulted for PBO files, which carry no reliable magic number.
func detect(name string, data []byte) (Format, Compression) {
	switch {
	case bytes.HasPrefix(data, magicZip), bytes.HasPrefix(data, magicZipEmpty):
		return FormatZip, CompressionNone
	case bytes.HasPrefix(data, magicRAR):
		return FormatRAR, CompressionNone
	case bytes.HasPrefix(data, magicGzip):
		return FormatTar, CompressionGzip
	case bytes.HasPrefix(data, magicXZ):
		return FormatTar, CompressionXZ
	case bytes.HasPrefix(data, magicZstd):
		return FormatTar, CompressionZstd
	case bytes.HasPrefix(data, magicLZ4):
		return FormatTar, CompressionLZ4
	case len(data) > 262 && string(data[257:262]) == "ustar":
		return FormatTar, CompressionNone
	}
	if strings.EqualFold(filepath.Ext(name), ".pbo") {
		return FormatPBO, CompressionNone
	}
	return FormatUnknown, CompressionNone
}

// decompressor returns a reader producing the plain tar stream and a func
// releasing decoder resources.
func decompressor(c Compression, r io.Reader) (io.Reader, func(), error) {
	switch c {
	case CompressionGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gz, func() { _ = gz.Close() }, nil
	case CompressionXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, func() {}, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case CompressionLZ4:
		return lz4.NewReader(r), func() {}, nil
	default:
		return r, func() {}, nil
	}
}
