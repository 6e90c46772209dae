package inputs

import (
	"fmt"

	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/codec"
	"github.com/richinsley/goshaderchain/logx"
)

// VolumeInput is a 3D texture loaded from a Shadertoy .bin volume.
type VolumeInput struct {
	b       *backend.Backend
	path    string
	src     *codec.Image
	sampler *Sampler

	tex       *backend.Handle
	format    backend.Enum
	res       [3]float32
	mipmapped bool
}

// NewVolume returns an input that decodes the .bin file at path on first
// use.
func NewVolume(b *backend.Backend, path string, s *Sampler) *VolumeInput {
	if s == nil {
		s = NewSampler()
	}
	return &VolumeInput{b: b, path: path, sampler: s}
}

// NewVolumeData returns an input over decoded voxels.
func NewVolumeData(b *backend.Backend, m *codec.Image, s *Sampler) *VolumeInput {
	in := NewVolume(b, "", s)
	in.src = m
	return in
}

func (in *VolumeInput) Load() (backend.Enum, error) {
	if in.tex.Present() {
		return in.format, nil
	}
	m := in.src
	if m == nil {
		var err error
		if m, err = codec.OpenVolume(in.path); err != nil {
			return backend.None, err
		}
	}
	if err := m.Validate(); err != nil {
		return backend.None, err
	}
	f, err := FormatFor(m.Elem, m.Channels)
	if err != nil {
		return backend.None, fmt.Errorf("volume %s: %w", in.path, err)
	}
	tex, err := in.b.MakeTexture(backend.Texture3D)
	if err != nil {
		return backend.None, err
	}
	if err := tex.Image3D(0, f.Internal, int32(m.Width), int32(m.Height), int32(m.Depth), f.Format, f.Type, m.Pix); err != nil {
		tex.Release()
		return backend.None, fmt.Errorf("upload volume: %w", err)
	}
	if err := in.sampler.Apply(tex); err != nil {
		tex.Release()
		return backend.None, err
	}
	logx.Logger().Debug("inputs: volume loaded", "source", in.path,
		"width", m.Width, "height", m.Height, "depth", m.Depth, "format", f.Internal.String())
	in.tex = tex
	in.format = f.Internal
	in.res = [3]float32{float32(m.Width), float32(m.Height), float32(m.Depth)}
	in.mipmapped = false
	return in.format, nil
}

func (in *VolumeInput) Use() (*backend.Handle, error) {
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

func (in *VolumeInput) Reset() {
	in.tex.Release()
	in.tex = nil
	in.mipmapped = false
}

func (in *VolumeInput) Sampler() *Sampler      { return in.sampler }
func (in *VolumeInput) Target() backend.Enum   { return backend.Texture3D }
func (in *VolumeInput) Resolution() [3]float32 { return in.res }
func (in *VolumeInput) SamplerType() string    { return samplerType(backend.Texture3D) }
