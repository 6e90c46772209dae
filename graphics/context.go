// Package graphics describes the window a renderer draws into.
package graphics

// Context is a window owning the current OpenGL context. Its default
// framebuffer receives the final image.
type Context interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	// EndFrame presents the default framebuffer and polls events.
	EndFrame()
	GetFramebufferSize() (int, int)
	// Time returns seconds since the window system was initialized.
	Time() float64
	// GetMouseInput returns the current mouse state: x, y, clickX, clickY
	GetMouseInput() [4]float32
	SetTitle(title string)
}
