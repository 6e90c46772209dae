// Package glfwcontext provides the desktop window the viewer renders into.
package glfwcontext

import (
	"runtime"

	glfw "github.com/go-gl/glfw/v3.3/glfw"

	"github.com/richinsley/goshaderchain/logx"
	"github.com/richinsley/goshaderchain/options"
)

// Context is a GLFW window owning an OpenGL 4.1 core context.
type Context struct {
	win   *glfw.Window
	mouse mouseTracker
	keys  map[glfw.Key]func()
}

// New opens a window of the configured size. Recording gets a hidden window
// that only serves as the GL context.
func New(o *options.ShaderOptions, title string) (*Context, error) {
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	visible, resizable := glfw.True, glfw.True
	if o.Recording() {
		visible, resizable = glfw.False, glfw.False
	}
	glfw.WindowHint(glfw.Visible, visible)
	glfw.WindowHint(glfw.Resizable, resizable)

	win, err := glfw.CreateWindow(o.Width, o.Height, title, nil, nil)
	if err != nil {
		return nil, err
	}
	c := &Context{win: win, keys: map[glfw.Key]func(){}}
	win.SetKeyCallback(c.onKeyEvent)
	logx.Logger().Debug("glfw: window created", "width", o.Width, "height", o.Height, "hidden", o.Recording())
	return c, nil
}

// OnKey runs f whenever key is pressed. Escape always closes the window.
func (c *Context) OnKey(key glfw.Key, f func()) {
	c.keys[key] = f
}

func (c *Context) onKeyEvent(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	if key == glfw.KeyEscape {
		w.SetShouldClose(true)
		return
	}
	if f := c.keys[key]; f != nil {
		f()
	}
}

func (c *Context) SetTitle(title string) { c.win.SetTitle(title) }

// GetMouseInput returns iMouse in framebuffer pixels with a bottom-left
// origin.
func (c *Context) GetMouseInput() [4]float32 {
	fbw, fbh := c.win.GetFramebufferSize()
	ww, wh := c.win.GetSize()
	sx, sy := 1.0, 1.0
	if ww > 0 && wh > 0 {
		sx, sy = float64(fbw)/float64(ww), float64(fbh)/float64(wh)
	}
	x, y := c.win.GetCursorPos()
	down := c.win.GetMouseButton(glfw.MouseButtonLeft) == glfw.Press
	return c.mouse.update(x*sx, y*sy, down, fbh)
}

func (c *Context) MakeCurrent()                   { c.win.MakeContextCurrent() }
func (c *Context) Shutdown()                      { c.win.Destroy() }
func (c *Context) ShouldClose() bool              { return c.win.ShouldClose() }
func (c *Context) GetFramebufferSize() (int, int) { return c.win.GetFramebufferSize() }
func (c *Context) Time() float64                  { return glfw.GetTime() }

func (c *Context) EndFrame() {
	c.win.SwapBuffers()
	glfw.PollEvents()
}

// InitGraphics initializes GLFW on the calling thread, which must stay the
// main thread.
func InitGraphics() error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return err
	}
	logx.Logger().Debug("glfw: initialized", "version", glfw.GetVersionString())
	return nil
}

func TerminateGraphics() {
	glfw.Terminate()
	logx.Logger().Debug("glfw: terminated")
}
