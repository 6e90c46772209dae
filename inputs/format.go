package inputs

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/codec"
)

// Format is the texture format triple used for an upload.
type Format struct {
	Internal backend.Enum
	Format   backend.Enum
	Type     backend.Enum
}

var (
	normFormats    = [4]backend.Enum{backend.Red, backend.RG, backend.RGB, backend.RGBA}
	integerFormats = [4]backend.Enum{backend.RedInteger, backend.RGInteger, backend.RGBInteger, backend.RGBAInteger}

	internalFormats = map[codec.ElementType][4]backend.Enum{
		codec.Uint8:   {backend.R8, backend.RG8, backend.RGB8, backend.RGBA8},
		codec.Uint16:  {backend.R16UI, backend.RG16UI, backend.RGB16UI, backend.RGBA16UI},
		codec.Uint32:  {backend.R32UI, backend.RG32UI, backend.RGB32UI, backend.RGBA32UI},
		codec.Half:    {backend.R16F, backend.RG16F, backend.RGB16F, backend.RGBA16F},
		codec.Float32: {backend.R32F, backend.RG32F, backend.RGB32F, backend.RGBA32F},
	}

	pixelTypes = map[codec.ElementType]backend.Enum{
		codec.Uint8:   backend.UnsignedByte,
		codec.Uint16:  backend.UnsignedShort,
		codec.Uint32:  backend.UnsignedInt,
		codec.Half:    backend.HalfFloat,
		codec.Float32: backend.Float,
	}
)

// FormatFor maps an element type and channel count to a texture format.
// 16 and 32-bit integer data maps to the unnormalized integer formats.
func FormatFor(elem codec.ElementType, channels int) (Format, error) {
	internal, ok := internalFormats[elem]
	if !ok {
		return Format{}, fmt.Errorf("no texture format for element type %s", elem)
	}
	if channels < 1 || channels > 4 {
		return Format{}, fmt.Errorf("no texture format for %d channels", channels)
	}
	f := Format{Internal: internal[channels-1], Format: normFormats[channels-1], Type: pixelTypes[elem]}
	if elem == codec.Uint16 || elem == codec.Uint32 {
		f.Format = integerFormats[channels-1]
	}
	return f, nil
}

// imageFormat picks the upload format for sampled media, applying the
// sampler's sRGB and float options to 8-bit data.
func imageFormat(m *codec.Image, s *Sampler) (Format, error) {
	f, err := FormatFor(m.Elem, m.Channels)
	if err != nil {
		return f, err
	}
	if m.Elem != codec.Uint8 {
		return f, nil
	}
	switch {
	case s.Float:
		f.Internal = [4]backend.Enum{backend.R16F, backend.RG16F, backend.RGB16F, backend.RGBA16F}[m.Channels-1]
	case s.SRGB && m.Channels == 4:
		f.Internal = backend.SRGB8Alpha8
	case s.SRGB && m.Channels == 3:
		f.Internal = backend.SRGB8
	}
	return f, nil
}

// prepare returns a copy of m ready for sampling: integer data wider than
// 8 bits is normalized to float so sampler2D reads it, and rows are flipped
// when the sampler asks for it.
func prepare(m *codec.Image, s *Sampler) *codec.Image {
	out := m
	if m.Elem == codec.Uint16 || m.Elem == codec.Uint32 {
		out = m.Normalized()
	}
	if s.VFlip {
		if out == m {
			c := *m
			c.Pix = append([]byte(nil), m.Pix...)
			out = &c
		}
		out.FlipVertical()
	}
	return out
}

// float32Bytes encodes samples as little-endian bytes for upload.
func float32Bytes(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}
