package inputs

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/codec"
	"github.com/richinsley/goshaderchain/logx"
)

// ImageInput is a static 2D texture decoded from a file or supplied as
// pixels. It is decoded and uploaded once and cached until Reset.
type ImageInput struct {
	b       *backend.Backend
	path    string
	src     *codec.Image
	sampler *Sampler

	tex       *backend.Handle
	format    backend.Enum
	res       [3]float32
	mipmapped bool
}

// NewImage returns an input that decodes path on first use.
func NewImage(b *backend.Backend, path string, s *Sampler) *ImageInput {
	if s == nil {
		s = NewSampler()
	}
	return &ImageInput{b: b, path: path, sampler: s}
}

// NewImageData returns an input over already decoded pixels.
func NewImageData(b *backend.Backend, m *codec.Image, s *Sampler) *ImageInput {
	in := NewImage(b, "", s)
	in.src = m
	return in
}

// SetPath changes the source file and drops the current texture.
func (in *ImageInput) SetPath(path string) {
	in.Reset()
	in.path = path
	in.src = nil
}

// Path returns the source file, empty for in-memory images.
func (in *ImageInput) Path() string { return in.path }

func (in *ImageInput) Load() (backend.Enum, error) {
	if in.tex.Present() {
		return in.format, nil
	}
	m := in.src
	if m == nil {
		var err error
		if m, err = codec.Open(in.path); err != nil {
			return backend.None, err
		}
	}
	if err := m.Validate(); err != nil {
		return backend.None, err
	}
	m = prepare(m, in.sampler)
	f, err := imageFormat(m, in.sampler)
	if err != nil {
		return backend.None, err
	}
	tex, err := in.b.MakeTexture(backend.Texture2D)
	if err != nil {
		return backend.None, err
	}
	if err := tex.Image2D(backend.Texture2D, 0, f.Internal, int32(m.Width), int32(m.Height), f.Format, f.Type, m.Pix); err != nil {
		tex.Release()
		return backend.None, fmt.Errorf("upload %s: %w", in.name(), err)
	}
	if err := in.sampler.Apply(tex); err != nil {
		tex.Release()
		return backend.None, err
	}
	logx.Logger().Debug("inputs: image loaded", "source", in.name(),
		"width", m.Width, "height", m.Height, "format", f.Internal.String(), "vflip", in.sampler.VFlip)
	in.tex = tex
	in.format = f.Internal
	in.res = [3]float32{float32(m.Width), float32(m.Height), 1}
	in.mipmapped = false
	return in.format, nil
}

func (in *ImageInput) name() string {
	if in.path == "" {
		return "<memory>"
	}
	return in.path
}

func (in *ImageInput) Use() (*backend.Handle, error) {
	if _, err := in.Load(); err != nil {
		return nil, err
	}
	if in.sampler.NeedsMipmaps() && !in.mipmapped {
		if err := in.tex.GenerateMipmap(); err != nil {
			return nil, err
		}
		in.mipmapped = true
	}
	return in.tex, nil
}

func (in *ImageInput) Reset() {
	in.tex.Release()
	in.tex = nil
	in.mipmapped = false
}

func (in *ImageInput) Sampler() *Sampler        { return in.sampler }
func (in *ImageInput) Target() backend.Enum     { return backend.Texture2D }
func (in *ImageInput) Resolution() [3]float32   { return in.res }
func (in *ImageInput) SamplerType() string      { return samplerType(backend.Texture2D) }

// CubemapFaces returns the six face files of a Shadertoy cubemap: the
// first face is path itself and face i is name_i.ext.
func CubemapFaces(path string) [6]string {
	var faces [6]string
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	faces[0] = path
	for i := 1; i < 6; i++ {
		faces[i] = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
	return faces
}

// CubemapInput is a static cube map built from six square faces in
// +X, -X, +Y, -Y, +Z, -Z order.
type CubemapInput struct {
	b       *backend.Backend
	paths   [6]string
	src     [6]*codec.Image
	sampler *Sampler

	tex       *backend.Handle
	format    backend.Enum
	res       [3]float32
	mipmapped bool
}

// NewCubemap returns an input that decodes the six face files on first use.
func NewCubemap(b *backend.Backend, faces [6]string, s *Sampler) *CubemapInput {
	if s == nil {
		s = NewSampler()
	}
	return &CubemapInput{b: b, paths: faces, sampler: s}
}

// NewCubemapData returns a cube map over decoded faces.
func NewCubemapData(b *backend.Backend, faces [6]*codec.Image, s *Sampler) *CubemapInput {
	in := NewCubemap(b, [6]string{}, s)
	in.src = faces
	return in
}

func (in *CubemapInput) Load() (backend.Enum, error) {
	if in.tex.Present() {
		return in.format, nil
	}
	var faces [6]*codec.Image
	for i := range faces {
		m := in.src[i]
		if m == nil {
			var err error
			if m, err = codec.Open(in.paths[i]); err != nil {
				return backend.None, fmt.Errorf("cubemap face %d: %w", i, err)
			}
		}
		if err := m.Validate(); err != nil {
			return backend.None, fmt.Errorf("cubemap face %d: %w", i, err)
		}
		if m.Width != m.Height {
			return backend.None, fmt.Errorf("cubemap face %d is %dx%d, faces must be square", i, m.Width, m.Height)
		}
		if i > 0 && (m.Width != faces[0].Width || m.Elem != faces[0].Elem || m.Channels != faces[0].Channels) {
			return backend.None, fmt.Errorf("cubemap face %d does not match face 0", i)
		}
		faces[i] = prepare(m, in.sampler)
	}
	f, err := imageFormat(faces[0], in.sampler)
	if err != nil {
		return backend.None, err
	}
	tex, err := in.b.MakeTexture(backend.TextureCubeMap)
	if err != nil {
		return backend.None, err
	}
	size := int32(faces[0].Width)
	for i, m := range faces {
		face := backend.TextureCubeMapPositiveX + backend.Enum(i)
		if err := tex.Image2D(face, 0, f.Internal, size, size, f.Format, f.Type, m.Pix); err != nil {
			tex.Release()
			return backend.None, fmt.Errorf("upload cubemap face %d: %w", i, err)
		}
	}
	if err := in.sampler.Apply(tex); err != nil {
		tex.Release()
		return backend.None, err
	}
	logx.Logger().Debug("inputs: cubemap loaded", "source", in.paths[0], "size", size, "format", f.Internal.String())
	in.tex = tex
	in.format = f.Internal
	in.res = [3]float32{float32(size), float32(size), 1}
	in.mipmapped = false
	return in.format, nil
}

func (in *CubemapInput) Use() (*backend.Handle, error) {
	if _, err := in.Load(); err != nil {
		return nil, err
	}
	if in.sampler.NeedsMipmaps() && !in.mipmapped {
		if err := in.tex.GenerateMipmap(); err != nil {
			return nil, err
		}
		in.mipmapped = true
	}
	return in.tex, nil
}

func (in *CubemapInput) Reset() {
	in.tex.Release()
	in.tex = nil
	in.mipmapped = false
}

func (in *CubemapInput) Sampler() *Sampler      { return in.sampler }
func (in *CubemapInput) Target() backend.Enum   { return backend.TextureCubeMap }
func (in *CubemapInput) Resolution() [3]float32 { return in.res }
func (in *CubemapInput) SamplerType() string    { return samplerType(backend.TextureCubeMap) }
