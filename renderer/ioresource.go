package renderer

import (
	"fmt"

	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/logx"
)

type targetFormat struct {
	format backend.Enum
	typ    backend.Enum
	bpp    int
	float  bool
}

// Color-renderable formats accepted for buffer outputs.
var targetFormats = map[backend.Enum]targetFormat{
	backend.RGBA8:       {backend.RGBA, backend.UnsignedByte, 4, false},
	backend.SRGB8Alpha8: {backend.RGBA, backend.UnsignedByte, 4, false},
	backend.R16F:        {backend.Red, backend.HalfFloat, 2, true},
	backend.RG16F:       {backend.RG, backend.HalfFloat, 4, true},
	backend.RGBA16F:     {backend.RGBA, backend.HalfFloat, 8, true},
	backend.R32F:        {backend.Red, backend.Float, 4, true},
	backend.RG32F:       {backend.RG, backend.Float, 8, true},
	backend.RGBA32F:     {backend.RGBA, backend.Float, 16, true},
}

var targetParams = []struct{ name, value backend.Enum }{
	{backend.TextureMinFilter, backend.Linear},
	{backend.TextureMagFilter, backend.Linear},
	{backend.TextureWrapS, backend.ClampToEdge},
	{backend.TextureWrapT, backend.ClampToEdge},
}

// DefaultFormat is the output format of buffers, matching Shadertoy's
// float buffers.
const DefaultFormat = backend.RGBA32F

// IOResource is the ping-pong texture pair of one buffer output. The front
// texture holds the last completed frame and the back texture is written by
// the next draw. Single-buffered resources own one texture that serves as
// both.
type IOResource struct {
	b      *backend.Backend
	size   Sizer
	format backend.Enum
	single bool

	front, back *backend.Handle
	allocated   Size
}

// NewIOResource returns an unallocated resource. Textures are created by
// Allocate, or lazily by Front and Back.
func NewIOResource(b *backend.Backend, size Sizer, format backend.Enum, single bool) *IOResource {
	if format == backend.None {
		format = DefaultFormat
	}
	return &IOResource{b: b, size: size, format: format, single: single}
}

func (r *IOResource) validate(s Size) error {
	tf, ok := targetFormats[r.format]
	if !ok {
		return &AllocationError{Size: s, Format: r.format.String(), Reason: "format is not color renderable"}
	}
	if tf.float && !r.b.Caps().Has(backend.FeatureFloatRenderTarget) {
		return &AllocationError{Size: s, Format: r.format.String(), Reason: "float render targets not supported"}
	}
	if !s.Valid() {
		return &AllocationError{Size: s, Format: r.format.String(), Reason: "size must be positive"}
	}
	if limit := r.b.Caps().MaxTextureSize; limit > 0 && (s.Width > limit || s.Height > limit) {
		return &AllocationError{Size: s, Format: r.format.String(), Reason: fmt.Sprintf("size exceeds %d", limit)}
	}
	return nil
}

func (r *IOResource) texture(s Size) (*backend.Handle, error) {
	tf := targetFormats[r.format]
	tex, err := r.b.MakeTexture(backend.Texture2D)
	if err != nil {
		return nil, err
	}
	var zero []byte
	if !r.b.Caps().Has(backend.FeatureClearTexImage) {
		zero = make([]byte, s.Width*s.Height*tf.bpp)
	}
	if err := tex.Image2D(backend.Texture2D, 0, r.format, int32(s.Width), int32(s.Height), tf.format, tf.typ, zero); err != nil {
		tex.Release()
		return nil, err
	}
	if zero == nil {
		if err := r.b.ClearTexture(tex, nil); err != nil {
			tex.Release()
			return nil, err
		}
	}
	for _, p := range targetParams {
		if err := tex.Parameter(p.name, int32(p.value)); err != nil {
			tex.Release()
			return nil, err
		}
	}
	return tex, nil
}

// Allocate recreates the textures at the current size and format. The old
// textures are released first, so a failed allocation leaves the resource
// unallocated.
func (r *IOResource) Allocate() error {
	s := r.size.Size()
	r.release()
	if err := r.validate(s); err != nil {
		return err
	}
	front, err := r.texture(s)
	if err != nil {
		return &AllocationError{Size: s, Format: r.format.String(), Reason: "create texture", Err: err}
	}
	back := front
	if !r.single {
		if back, err = r.texture(s); err != nil {
			front.Release()
			return &AllocationError{Size: s, Format: r.format.String(), Reason: "create texture", Err: err}
		}
	}
	r.front, r.back, r.allocated = front, back, s
	logx.Logger().Debug("renderer: io resource allocated", "size", s.String(), "format", r.format.String(), "single", r.single)
	return nil
}

func (r *IOResource) ensure() error {
	if r.Allocated() {
		return nil
	}
	return r.Allocate()
}

// Swap exchanges the roles of front and back. It is a no-op for single
// buffered resources.
func (r *IOResource) Swap() {
	if !r.single {
		r.front, r.back = r.back, r.front
	}
}

// Front returns the texture holding the last completed frame.
func (r *IOResource) Front() (*backend.Handle, error) {
	if err := r.ensure(); err != nil {
		return nil, err
	}
	return r.front, nil
}

// Back returns the texture the next draw writes.
func (r *IOResource) Back() (*backend.Handle, error) {
	if err := r.ensure(); err != nil {
		return nil, err
	}
	return r.back, nil
}

func (r *IOResource) Allocated() bool { return r.front.Present() }

// AllocatedSize returns the size of the current textures.
func (r *IOResource) AllocatedSize() Size { return r.allocated }

func (r *IOResource) Single() bool { return r.single }

func (r *IOResource) Format() backend.Enum { return r.format }

// SetFormat changes the format. Existing textures are released and the
// next Allocate, Front or Back recreates them.
func (r *IOResource) SetFormat(format backend.Enum) {
	if format == r.format {
		return
	}
	r.format = format
	r.release()
}

// SetSize replaces the size source. Textures are not reallocated.
func (r *IOResource) SetSize(size Sizer) { r.size = size }

func (r *IOResource) release() {
	if r.back != r.front {
		r.back.Release()
	}
	r.front.Release()
	r.front, r.back = nil, nil
	r.allocated = Size{}
}

// Release frees the textures.
func (r *IOResource) Release() { r.release() }
