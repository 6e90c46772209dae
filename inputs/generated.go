package inputs

import (
	"fmt"

	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/logx"
)

// hash32 is a small integer finalizer; generated patterns must be identical
// across runs and platforms, so no math/rand.
func hash32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}

// GenerateNoise returns width*height RGBA8 pixels of white noise. When
// period is positive the pattern tiles every period pixels on both axes.
// A non-positive size yields no pixels.
func GenerateNoise(width, height, period int, seed uint32) []byte {
	if width <= 0 || height <= 0 {
		return nil
	}
	pix := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			px, py := x, y
			if period > 0 {
				px, py = x%period, y%period
			}
			h := hash32(seed ^ hash32(uint32(px)+hash32(uint32(py))))
			o := (y*width + x) * 4
			pix[o+0] = byte(h)
			pix[o+1] = byte(h >> 8)
			pix[o+2] = byte(h >> 16)
			pix[o+3] = byte(h >> 24)
		}
	}
	return pix
}

func checker(width, height, period int, on, off [4]byte) []byte {
	if width <= 0 || height <= 0 {
		return nil
	}
	if period <= 0 {
		period = 1
	}
	pix := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := off
			if (x/period+y/period)%2 == 0 {
				c = on
			}
			copy(pix[(y*width+x)*4:], c[:])
		}
	}
	return pix
}

// GenerateChecker returns width*height RGBA8 pixels of a white and black
// checkerboard with period pixel cells. The top-left cell is white.
func GenerateChecker(width, height, period int) []byte {
	return checker(width, height, period, [4]byte{0xFF, 0xFF, 0xFF, 0xFF}, [4]byte{0, 0, 0, 0xFF})
}

// generated is the shared implementation of procedural RGBA8 inputs.
type generated struct {
	b       *backend.Backend
	sampler *Sampler
	kind    string
	width   int
	height  int
	period  int
	pixels  func() []byte

	tex       *backend.Handle
	mipmapped bool
}

func (g *generated) Load() (backend.Enum, error) {
	if g.tex.Present() {
		return backend.RGBA8, nil
	}
	if g.width <= 0 || g.height <= 0 {
		return backend.None, fmt.Errorf("%s input: invalid size %dx%d", g.kind, g.width, g.height)
	}
	tex, err := g.b.MakeTexture(backend.Texture2D)
	if err != nil {
		return backend.None, err
	}
	if err := tex.Image2D(backend.Texture2D, 0, backend.RGBA8, int32(g.width), int32(g.height), backend.RGBA, backend.UnsignedByte, g.pixels()); err != nil {
		tex.Release()
		return backend.None, err
	}
	if err := g.sampler.Apply(tex); err != nil {
		tex.Release()
		return backend.None, err
	}
	logx.Logger().Debug("inputs: generated", "kind", g.kind, "width", g.width, "height", g.height, "period", g.period)
	g.tex = tex
	g.mipmapped = false
	return backend.RGBA8, nil
}

func (g *generated) Use() (*backend.Handle, error) {
	if _, err := g.Load(); err != nil {
		return nil, err
	}
	if g.sampler.NeedsMipmaps() && !g.mipmapped {
		if err := g.tex.GenerateMipmap(); err != nil {
			return nil, err
		}
		g.mipmapped = true
	}
	return g.tex, nil
}

func (g *generated) Reset() {
	g.tex.Release()
	g.tex = nil
	g.mipmapped = false
}

// SetSize changes the generation parameters. The texture is regenerated on
// next use.
func (g *generated) SetSize(width, height, period int) {
	g.Reset()
	g.width, g.height, g.period = width, height, period
}

func (g *generated) Sampler() *Sampler    { return g.sampler }
func (g *generated) Target() backend.Enum { return backend.Texture2D }
func (g *generated) SamplerType() string  { return samplerType(backend.Texture2D) }

func (g *generated) Resolution() [3]float32 {
	return [3]float32{float32(g.width), float32(g.height), 1}
}

// NoiseInput is a procedural white noise texture.
type NoiseInput struct {
	generated
	seed uint32
}

// NewNoise returns a width x height noise input. period <= 0 disables
// tiling.
func NewNoise(b *backend.Backend, width, height, period int, seed uint32, s *Sampler) *NoiseInput {
	if s == nil {
		s = NewSampler()
	}
	n := &NoiseInput{seed: seed}
	n.generated = generated{b: b, sampler: s, kind: "noise", width: width, height: height, period: period}
	n.pixels = func() []byte { return GenerateNoise(n.width, n.height, n.period, n.seed) }
	return n
}

// CheckerInput is a procedural black and white checkerboard.
type CheckerInput struct {
	generated
}

// NewChecker returns a width x height checkerboard with period pixel cells.
func NewChecker(b *backend.Backend, width, height, period int, s *Sampler) *CheckerInput {
	if s == nil {
		s = NewSampler()
	}
	c := &CheckerInput{}
	c.generated = generated{b: b, sampler: s, kind: "checker", width: width, height: height, period: period}
	c.pixels = func() []byte { return GenerateChecker(c.width, c.height, c.period) }
	return c
}

// Error placeholder geometry.
const (
	ErrorSize   = 64
	ErrorPeriod = 8
)

// ErrorInput is the magenta and black checkerboard bound in place of any
// input that fails to resolve. One instance is shared by a whole chain.
type ErrorInput struct {
	generated
}

// NewErrorInput returns the placeholder with nearest filtering.
func NewErrorInput(b *backend.Backend) *ErrorInput {
	s := NewSampler()
	s.MinFilter, s.MagFilter = backend.Nearest, backend.Nearest
	e := &ErrorInput{}
	e.generated = generated{b: b, sampler: s, kind: "error", width: ErrorSize, height: ErrorSize, period: ErrorPeriod}
	e.pixels = func() []byte {
		return checker(ErrorSize, ErrorSize, ErrorPeriod, [4]byte{0xFF, 0, 0xFF, 0xFF}, [4]byte{0, 0, 0, 0xFF})
	}
	return e
}
