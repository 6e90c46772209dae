package inputs

import (
	"github.com/richinsley/goshaderchain/backend"
)

// Param is an explicit sampler parameter applied after the filter and wrap
// modes, e.g. TEXTURE_LOD_BIAS.
type Param struct {
	Name  backend.Enum
	Value int32
}

// Sampler holds filtering and wrapping for one channel binding. It is backed
// by a sampler object that is created on first bind and rewritten only when
// a setter changed something.
type Sampler struct {
	MinFilter backend.Enum
	MagFilter backend.Enum
	WrapS     backend.Enum
	WrapT     backend.Enum
	WrapR     backend.Enum
	Params    []Param

	// Upload options honoured by media inputs.
	VFlip bool
	SRGB  bool
	Float bool

	obj   *backend.Handle
	dirty bool
}

// NewSampler returns linear filtering with repeat wrapping.
func NewSampler() *Sampler {
	return &Sampler{
		MinFilter: backend.Linear,
		MagFilter: backend.Linear,
		WrapS:     backend.Repeat,
		WrapT:     backend.Repeat,
		WrapR:     backend.Repeat,
		dirty:     true,
	}
}

// ParseSampler maps Shadertoy sampler strings. filter is "mipmap",
// "linear" or "nearest"; wrap is "repeat" or "clamp". Unknown values keep
// the defaults.
func ParseSampler(filter, wrap string) *Sampler {
	s := NewSampler()
	switch filter {
	case "mipmap":
		s.MinFilter, s.MagFilter = backend.LinearMipmapLinear, backend.Linear
	case "nearest":
		s.MinFilter, s.MagFilter = backend.Nearest, backend.Nearest
	}
	if wrap == "clamp" {
		s.WrapS, s.WrapT, s.WrapR = backend.ClampToEdge, backend.ClampToEdge, backend.ClampToEdge
	}
	return s
}

// SetFilter sets the minification and magnification filters.
func (s *Sampler) SetFilter(minFilter, magFilter backend.Enum) error {
	switch minFilter {
	case backend.Nearest, backend.Linear, backend.NearestMipmapNearest, backend.LinearMipmapNearest,
		backend.NearestMipmapLinear, backend.LinearMipmapLinear:
	default:
		return &backend.ValidationError{Field: "min filter", Value: minFilter}
	}
	if magFilter != backend.Nearest && magFilter != backend.Linear {
		return &backend.ValidationError{Field: "mag filter", Value: magFilter}
	}
	s.MinFilter, s.MagFilter = minFilter, magFilter
	s.dirty = true
	return nil
}

// SetWrap sets the wrap mode on all three axes.
func (s *Sampler) SetWrap(mode backend.Enum) error {
	if mode != backend.Repeat && mode != backend.ClampToEdge && mode != backend.MirroredRepeat {
		return &backend.ValidationError{Field: "wrap", Value: mode}
	}
	s.WrapS, s.WrapT, s.WrapR = mode, mode, mode
	s.dirty = true
	return nil
}

// SetParam adds or replaces an explicit parameter.
func (s *Sampler) SetParam(name backend.Enum, value int32) {
	for i := range s.Params {
		if s.Params[i].Name == name {
			s.Params[i].Value = value
			s.dirty = true
			return
		}
	}
	s.Params = append(s.Params, Param{Name: name, Value: value})
	s.dirty = true
}

// NeedsMipmaps reports whether the minification filter samples mip levels.
func (s *Sampler) NeedsMipmaps() bool {
	return backend.NeedsMipmaps(s.MinFilter)
}

func (s *Sampler) params() []Param {
	p := []Param{
		{backend.TextureMinFilter, int32(s.MinFilter)},
		{backend.TextureMagFilter, int32(s.MagFilter)},
		{backend.TextureWrapS, int32(s.WrapS)},
		{backend.TextureWrapT, int32(s.WrapT)},
		{backend.TextureWrapR, int32(s.WrapR)},
	}
	return append(p, s.Params...)
}

// Bind binds the sampler object to unit, creating or updating it first.
func (s *Sampler) Bind(b *backend.Backend, unit uint32) error {
	if !s.obj.Present() {
		obj, err := b.MakeSampler()
		if err != nil {
			return err
		}
		s.obj = obj
		s.dirty = true
	}
	if s.dirty {
		for _, p := range s.params() {
			if err := s.obj.Parameter(p.Name, p.Value); err != nil {
				return err
			}
		}
		s.dirty = false
	}
	return b.BindSampler(unit, s.obj)
}

// Apply writes the parameters onto a texture object. Used for textures
// sampled without a sampler object bound.
func (s *Sampler) Apply(tex *backend.Handle) error {
	for _, p := range s.params() {
		if p.Name == backend.TextureWrapR && tex.Target() != backend.Texture3D && tex.Target() != backend.TextureCubeMap {
			continue
		}
		if err := tex.Parameter(p.Name, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// Release deletes the sampler object.
func (s *Sampler) Release() {
	s.obj.Release()
	s.obj = nil
}
