package renderer

import "fmt"

// Size is a render size in pixels. A Size is an owned Sizer.
type Size struct {
	Width  int
	Height int
}

func (s Size) Size() Size { return s }

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool { return s.Width > 0 && s.Height > 0 }

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// Resolution returns the iResolution value for s.
func (s Size) Resolution() [3]float32 {
	return [3]float32{float32(s.Width), float32(s.Height), 1}
}

// Sizer reports a render size. Members holding a referencing Sizer see
// changes made to the referenced size, but textures are only resized by an
// explicit Allocate.
type Sizer interface {
	Size() Size
}

// Viewport is a mutable size shared by reference between members.
type Viewport struct {
	size Size
}

func NewViewport(width, height int) *Viewport {
	return &Viewport{size: Size{width, height}}
}

func (v *Viewport) Size() Size { return v.size }

// Set changes the size and reports whether it differs from the old one.
func (v *Viewport) Set(width, height int) bool {
	s := Size{width, height}
	if s == v.size {
		return false
	}
	v.size = s
	return true
}

// SizeFunc adapts a function, such as a window's framebuffer size query,
// to a Sizer.
type SizeFunc func() (int, int)

func (f SizeFunc) Size() Size {
	w, h := f()
	return Size{w, h}
}
