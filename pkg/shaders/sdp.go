// Package shaders edits compiled shaders stored in shader packages (.sdp).
//
// A package is little-endian: a header word, the shader count, the size of
// everything after the first twelve bytes, then for each shader a 256-byte
// NUL padded name, its size and its bytes.
package shaders

import (
	"bytes"
	"encoding/binary"
	stderrors "errors"
	"io"
	"io/fs"
	"strings"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/mergemodule"
	"github.com/arthur-debert/modman/pkg/types"
)

const nameSize = 0x100

// Shader is one entry of a package.
type Shader struct {
	Name string
	Data []byte
}

// Package is a parsed shader package.
type Package struct {
	Header  int32
	Shaders []Shader
}

// Parse decodes a shader package.
func Parse(data []byte) (*Package, error) {
	r := bytes.NewReader(data)
	var head struct {
		Header int32
		Count  int32
		Size   int32
	}
	if err := binary.Read(r, binary.LittleEndian, &head); err != nil {
		return nil, errors.Wrap(err, errors.ErrShader, "shader package header is truncated")
	}
	if head.Count < 0 {
		return nil, errors.Newf(errors.ErrShader, "shader package declares %d shaders", head.Count)
	}

	p := &Package{Header: head.Header, Shaders: make([]Shader, 0, head.Count)}
	for i := int32(0); i < head.Count; i++ {
		var name [nameSize]byte
		if _, err := io.ReadFull(r, name[:]); err != nil {
			return nil, errors.Wrapf(err, errors.ErrShader, "shader %d name is truncated", i)
		}
		var size int32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, errors.Wrapf(err, errors.ErrShader, "shader %d size is truncated", i)
		}
		if size < 0 || int64(size) > int64(r.Len()) {
			return nil, errors.Newf(errors.ErrShader, "shader %d has invalid size %d", i, size)
		}
		blob := make([]byte, size)
		if _, err := io.ReadFull(r, blob); err != nil {
			return nil, errors.Wrapf(err, errors.ErrShader, "shader %d data is truncated", i)
		}
		if n := bytes.IndexByte(name[:], 0); n >= 0 {
			p.Shaders = append(p.Shaders, Shader{Name: string(name[:n]), Data: blob})
		} else {
			p.Shaders = append(p.Shaders, Shader{Name: string(name[:]), Data: blob})
		}
	}
	return p, nil
}

func (p *Package) index(name string) int {
	for i, s := range p.Shaders {
		if strings.EqualFold(s.Name, name) {
			return i
		}
	}
	return -1
}

// Get returns the bytes of the named shader.
func (p *Package) Get(name string) ([]byte, bool) {
	i := p.index(name)
	if i < 0 {
		return nil, false
	}
	return bytes.Clone(p.Shaders[i].Data), true
}

// Replace swaps the bytes of the named shader and returns the old bytes.
func (p *Package) Replace(name string, data []byte) ([]byte, error) {
	i := p.index(name)
	if i < 0 {
		return nil, errors.Newf(errors.ErrShader, "shader %s not found in package", name)
	}
	old := p.Shaders[i].Data
	p.Shaders[i].Data = bytes.Clone(data)
	return old, nil
}

// Bytes encodes the package.
func (p *Package) Bytes() ([]byte, error) {
	var body bytes.Buffer
	for _, s := range p.Shaders {
		if len(s.Name) >= nameSize {
			return nil, errors.Newf(errors.ErrShader, "shader name %q is too long", s.Name)
		}
		var name [nameSize]byte
		copy(name[:], s.Name)
		body.Write(name[:])
		_ = binary.Write(&body, binary.LittleEndian, int32(len(s.Data)))
		body.Write(s.Data)
	}

	var out bytes.Buffer
	_ = binary.Write(&out, binary.LittleEndian, []int32{p.Header, int32(len(p.Shaders)), int32(body.Len())})
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// PathFunc maps a package number to its file.
type PathFunc func(pkg int) string

// Editor reads and replaces shaders through a filesystem, normally an open
// transaction.
type Editor struct {
	fsys types.FS
	path PathFunc
}

// NewEditor creates an Editor.
func NewEditor(fsys types.FS, path PathFunc) *Editor {
	return &Editor{fsys: fsys, path: path}
}

func (e *Editor) load(key mergemodule.ShaderKey) (string, *Package, error) {
	p := e.path(key.Package)
	data, err := e.fsys.ReadFile(p)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return "", nil, errors.Wrapf(err, errors.ErrShader, "shader package %d not found", key.Package).
				WithDetail("path", p)
		}
		return "", nil, errors.Wrapf(err, errors.ErrShader, "failed to read shader package %s", p)
	}
	pkg, err := Parse(data)
	if err != nil {
		return "", nil, errors.Wrapf(err, errors.ErrShader, "failed to parse shader package %s", p)
	}
	return p, pkg, nil
}

// Read returns the live bytes of a shader.
func (e *Editor) Read(key mergemodule.ShaderKey) ([]byte, error) {
	_, pkg, err := e.load(key)
	if err != nil {
		return nil, err
	}
	data, ok := pkg.Get(key.Name)
	if !ok {
		return nil, errors.Newf(errors.ErrShader, "shader %s not found", key)
	}
	return data, nil
}

// Replace writes new bytes for a shader and returns the bytes it replaced.
func (e *Editor) Replace(key mergemodule.ShaderKey, data []byte) ([]byte, error) {
	p, pkg, err := e.load(key)
	if err != nil {
		return nil, err
	}
	old, err := pkg.Replace(key.Name, data)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrShader, "failed to edit %s", key)
	}
	out, err := pkg.Bytes()
	if err != nil {
		return nil, err
	}
	info, err := e.fsys.Stat(p)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrShader, "failed to stat %s", p)
	}
	if err := e.fsys.WriteFile(p, out, info.Mode().Perm()); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileWrite, "failed to write %s", p)
	}
	return old, nil
}
