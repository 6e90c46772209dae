// Package inputs provides the texture sources a buffer can bind to its
// iChannel samplers: other buffers' outputs, decoded media, procedural
// patterns, an audio spectrum and the error placeholder.
package inputs

import (
	"errors"
	"fmt"

	"github.com/richinsley/goshaderchain/backend"
)

// Input is a bindable texture source.
type Input interface {
	// Load performs one-time setup (decode, generate, allocate) and returns
	// the internal format of the texture. Calling it again after a
	// successful load is cheap.
	Load() (backend.Enum, error)
	// Use returns the texture to bind for the current frame, loading it
	// first if needed. Mipmaps are regenerated when the sampler needs them.
	Use() (*backend.Handle, error)
	// Reset releases owned backend resources. The next Load or Use starts
	// over.
	Reset()
	// Sampler returns the sampler parameters used when binding the input.
	Sampler() *Sampler
	// Target returns the texture target (TEXTURE_2D, TEXTURE_3D, ...).
	Target() backend.Enum
	// Resolution returns the iChannelResolution value for the input.
	Resolution() [3]float32
	// SamplerType returns the GLSL sampler type declared for the channel.
	SamplerType() string
}

// ErrUnresolved is matched by every ResolveError.
var ErrUnresolved = errors.New("input unresolved")

// ResolveError reports a buffer output that could not be resolved.
type ResolveError struct {
	Member string
	Output string
	Reason string
	Err    error
}

func (e *ResolveError) Error() string {
	what := e.Member
	if e.Output != "" {
		what += "." + e.Output
	}
	if e.Err != nil {
		return fmt.Sprintf("resolve %s: %s: %v", what, e.Reason, e.Err)
	}
	return fmt.Sprintf("resolve %s: %s", what, e.Reason)
}

func (e *ResolveError) Is(target error) bool { return target == ErrUnresolved }

func (e *ResolveError) Unwrap() error { return e.Err }

func samplerType(target backend.Enum) string {
	switch target {
	case backend.TextureCubeMap:
		return "samplerCube"
	case backend.Texture3D:
		return "sampler3D"
	}
	return "sampler2D"
}

// refreshMipmaps regenerates the mip chain of tex when s samples mip levels.
func refreshMipmaps(tex *backend.Handle, s *Sampler) error {
	if !s.NeedsMipmaps() {
		return nil
	}
	return tex.GenerateMipmap()
}
