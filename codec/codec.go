// Package codec decodes texture sources into tightly packed pixel data.
//
// Still images go through the standard library decoders plus the bmp, tiff
// and webp decoders from golang.org/x/image. The container is sniffed with
// h2non/filetype first so unsupported media fails with a useful message
// instead of "image: unknown format".
package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ElementType is the storage type of one channel.
type ElementType uint8

const (
	Uint8 ElementType = iota + 1
	Uint16
	Uint32
	Half
	Float32
)

// Size returns the element size in bytes.
func (t ElementType) Size() int {
	switch t {
	case Uint8:
		return 1
	case Uint16, Half:
		return 2
	case Uint32, Float32:
		return 4
	}
	return 0
}

func (t ElementType) String() string {
	switch t {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Half:
		return "half"
	case Float32:
		return "float32"
	}
	return fmt.Sprintf("ElementType(%d)", uint8(t))
}

// ErrUnsupported is returned for media the codec cannot decode.
var ErrUnsupported = errors.New("codec: unsupported format")

// Image is decoded pixel data, rows packed without padding, first row at
// the top. Depth is 1 for 2D images.
type Image struct {
	Pix      []byte
	Width    int
	Height   int
	Depth    int
	Channels int
	Elem     ElementType
}

// Stride returns the number of bytes in one row.
func (m *Image) Stride() int {
	return m.Width * m.Channels * m.Elem.Size()
}

// Validate checks that Pix holds a full image.
func (m *Image) Validate() error {
	if m.Width <= 0 || m.Height <= 0 || m.Depth <= 0 {
		return fmt.Errorf("codec: invalid size %dx%dx%d", m.Width, m.Height, m.Depth)
	}
	if m.Channels < 1 || m.Channels > 4 {
		return fmt.Errorf("codec: invalid channel count %d", m.Channels)
	}
	if m.Elem.Size() == 0 {
		return fmt.Errorf("codec: invalid element type %d", m.Elem)
	}
	if want := m.Stride() * m.Height * m.Depth; len(m.Pix) < want {
		return fmt.Errorf("codec: pixel data too short: have %d bytes, want %d", len(m.Pix), want)
	}
	return nil
}

// FlipVertical reverses row order in place, per depth slice.
func (m *Image) FlipVertical() {
	stride := m.Stride()
	tmp := make([]byte, stride)
	slice := stride * m.Height
	for z := 0; z < m.Depth; z++ {
		base := z * slice
		for y := 0; y < m.Height/2; y++ {
			top := m.Pix[base+y*stride : base+(y+1)*stride]
			bot := m.Pix[base+(m.Height-1-y)*stride : base+(m.Height-y)*stride]
			copy(tmp, top)
			copy(top, bot)
			copy(bot, tmp)
		}
	}
}

// Normalized returns a Float32 copy of unsigned integer data scaled to
// [0, 1]. Other element types are returned unchanged.
func (m *Image) Normalized() *Image {
	var limit float64
	switch m.Elem {
	case Uint8:
		limit = 0xFF
	case Uint16:
		limit = 0xFFFF
	case Uint32:
		limit = 0xFFFFFFFF
	default:
		return m
	}
	size := m.Elem.Size()
	n := len(m.Pix) / size
	out := &Image{Width: m.Width, Height: m.Height, Depth: m.Depth, Channels: m.Channels, Elem: Float32, Pix: make([]byte, n*4)}
	for i := 0; i < n; i++ {
		var v float64
		switch m.Elem {
		case Uint8:
			v = float64(m.Pix[i])
		case Uint16:
			v = float64(binary.LittleEndian.Uint16(m.Pix[i*2:]))
		case Uint32:
			v = float64(binary.LittleEndian.Uint32(m.Pix[i*4:]))
		}
		binary.LittleEndian.PutUint32(out.Pix[i*4:], math.Float32bits(float32(v/limit)))
	}
	return out
}

// FromImage converts a decoded image. Grayscale stays single channel,
// 16-bit sources keep their precision and everything else becomes RGBA8.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	switch s := src.(type) {
	case *image.Gray:
		m := &Image{Width: w, Height: h, Depth: 1, Channels: 1, Elem: Uint8, Pix: make([]byte, w*h)}
		for y := 0; y < h; y++ {
			copy(m.Pix[y*w:(y+1)*w], s.Pix[y*s.Stride:y*s.Stride+w])
		}
		return m
	case *image.Gray16:
		m := &Image{Width: w, Height: h, Depth: 1, Channels: 1, Elem: Uint16, Pix: make([]byte, w*h*2)}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := s.Gray16At(b.Min.X+x, b.Min.Y+y).Y
				binary.LittleEndian.PutUint16(m.Pix[(y*w+x)*2:], v)
			}
		}
		return m
	case *image.RGBA64, *image.NRGBA64:
		m := &Image{Width: w, Height: h, Depth: 1, Channels: 4, Elem: Uint16, Pix: make([]byte, w*h*8)}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, a := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
				o := (y*w + x) * 8
				binary.LittleEndian.PutUint16(m.Pix[o:], uint16(r))
				binary.LittleEndian.PutUint16(m.Pix[o+2:], uint16(g))
				binary.LittleEndian.PutUint16(m.Pix[o+4:], uint16(bl))
				binary.LittleEndian.PutUint16(m.Pix[o+6:], uint16(a))
			}
		}
		return m
	}
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(rgba, rgba.Bounds(), src, b.Min, xdraw.Src)
	return &Image{Width: w, Height: h, Depth: 1, Channels: 4, Elem: Uint8, Pix: rgba.Pix}
}

// Decode sniffs and decodes an image stream. It returns the detected
// format extension.
func Decode(r io.Reader) (*Image, string, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(261)
	if len(head) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrUnsupported)
	}
	kind, _ := filetype.Match(head)
	if kind != filetype.Unknown && !filetype.IsImage(head) {
		return nil, kind.Extension, fmt.Errorf("%w: %s is not an image", ErrUnsupported, kind.MIME.Value)
	}
	img, format, err := image.Decode(br)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, kind.Extension, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		return nil, format, fmt.Errorf("codec: decode %s: %w", format, err)
	}
	return FromImage(img), format, nil
}

// Open decodes the image file at path.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, _, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
