//go:build !linux || !cgo

package headless

import (
	"errors"

	"github.com/richinsley/goshaderchain/graphics"
)

// ErrUnsupported is returned where EGL pbuffer contexts are unavailable.
var ErrUnsupported = errors.New("headless: EGL rendering is only supported on linux")

// Context is unavailable on this platform.
type Context struct{ graphics.Context }

func New(width, height int) (*Context, error) {
	return nil, ErrUnsupported
}
