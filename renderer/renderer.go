package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/richinsley/goshaderchain/api"
	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/graphics"
	"github.com/richinsley/goshaderchain/logx"
	"github.com/richinsley/goshaderchain/shader"
)

// ErrStop ends Run without an error when returned by a FrameHook.
var ErrStop = errors.New("renderer: stop")

// ErrNoScene is returned when rendering before a scene was loaded.
var ErrNoScene = errors.New("renderer: no scene loaded")

// statsInterval is how often GPU timings are logged at debug level.
const statsInterval = 300

// FrameHook runs on the render thread after a frame was rendered and
// before the window swaps buffers.
type FrameHook func(r *Renderer) error

type RendererOption func(*Renderer)

// WithFixedStep advances time by 1/fps per frame instead of following the
// window clock, so recordings do not depend on render speed.
func WithFixedStep(fps int) RendererOption {
	return func(r *Renderer) {
		if fps > 0 {
			r.step = 1 / float64(fps)
		}
	}
}

// Renderer shows a scene in a window. It computes the frame input, keeps
// the buffers sized to the window, renders the chain and presents its
// output.
type Renderer struct {
	win  graphics.Context
	ctx  *Context
	cfg  SceneConfig
	step float64

	scene   *Scene
	blit    *shader.Program
	present *backend.DrawState
	size    Size

	start   float64
	date    time.Time
	last    float64
	frame   int
	pixels  []byte
	waiting bool
}

// NewRenderer prepares rendering into win. A nil cfg.Size follows the
// window's framebuffer size.
func NewRenderer(win graphics.Context, ctx *Context, cfg SceneConfig, opts ...RendererOption) (*Renderer, error) {
	if cfg.Size == nil {
		cfg.Size = SizeFunc(win.GetFramebufferSize)
	}
	r := &Renderer{win: win, ctx: ctx, cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	blit, err := ctx.Compiler().Compile(shader.VertexTemplate(), shader.BlitTemplate(false))
	if err != nil {
		return nil, fmt.Errorf("failed to create blit program: %w", err)
	}
	r.blit = blit
	r.present = ctx.Backend().MakeDrawState()
	return r, nil
}

// Scene returns the scene being shown, nil before the first Load.
func (r *Renderer) Scene() *Scene { return r.scene }

// Frame returns the number of frames rendered since the scene was loaded.
func (r *Renderer) Frame() int { return r.frame }

// Load builds a scene from args and shows it from time zero. When loading
// fails the current scene keeps running and the error is returned.
func (r *Renderer) Load(args *api.ShaderArgs) error {
	scene, err := LoadScene(r.ctx, args, r.cfg)
	if err != nil {
		if r.scene != nil {
			logx.Logger().Error("renderer: reload failed, keeping current scene", "title", r.scene.Title, "error", err)
		}
		return err
	}
	if r.scene != nil {
		r.scene.Release()
	}
	r.scene = scene
	r.size = r.cfg.Size.Size()
	r.frame = 0
	r.start = r.win.Time()
	r.date = time.Now()
	r.last = 0
	r.win.SetTitle(scene.Title)
	return nil
}

func (r *Renderer) frameInput() FrameInput {
	var t float64
	date := time.Now()
	if r.step > 0 {
		t = float64(r.frame) * r.step
		date = r.date.Add(time.Duration(t * float64(time.Second)))
	} else {
		t = r.win.Time() - r.start
	}
	dt := t - r.last
	if r.frame == 0 {
		dt = r.step
	}
	in := FrameInput{
		Time:       t,
		TimeDelta:  dt,
		Frame:      r.frame,
		Mouse:      r.win.GetMouseInput(),
		Date:       date,
		SampleRate: float64(r.scene.SampleRate()),
	}
	for i := range in.ChannelTime {
		in.ChannelTime[i] = t
	}
	return in
}

// resize reallocates the chain's textures when the render size changed.
// It reports false while the size is empty, e.g. for a minimized window.
func (r *Renderer) resize() (bool, error) {
	s := r.cfg.Size.Size()
	if !s.Valid() {
		if !r.waiting {
			logx.Logger().Debug("renderer: empty viewport, pausing", "size", s)
			r.waiting = true
		}
		return false, nil
	}
	r.waiting = false
	if s == r.size {
		return true, nil
	}
	logx.Logger().Debug("renderer: resizing", "from", r.size, "to", s)
	r.size = s
	if err := r.scene.Chain.Allocate(); err != nil {
		return false, err
	}
	return true, nil
}

// RenderFrame renders one frame of the scene and presents it. Frames are
// skipped, without advancing, while the viewport is empty.
func (r *Renderer) RenderFrame() error {
	if r.scene == nil {
		return ErrNoScene
	}
	ok, err := r.resize()
	if err != nil || !ok {
		return err
	}
	in := r.frameInput()
	if err := r.ctx.Render(r.scene.Chain, in); err != nil {
		return err
	}
	if err := r.Present(); err != nil {
		return err
	}
	r.last = in.Time
	r.frame++
	if r.frame%statsInterval == 0 {
		r.logStats()
	}
	return nil
}

// Present copies the chain output to the window when the output member
// renders offscreen. Members drawing to the default framebuffer are
// already on screen.
func (r *Renderer) Present() error {
	out := r.scene.Chain.Output()
	if out == nil || out.Policy() == DefaultFramebuffer {
		return nil
	}
	tex, err := out.OutputTexture(0)
	if err != nil {
		return err
	}
	b := r.ctx.Backend()
	w, h := r.win.GetFramebufferSize()
	if err := b.BindDefaultFramebuffer(); err != nil {
		return err
	}
	if err := b.SetViewport(0, 0, int32(w), int32(h)); err != nil {
		return err
	}
	if err := b.UseProgram(r.blit.Handle()); err != nil {
		return err
	}
	if err := r.present.Apply(); err != nil {
		return err
	}
	if err := b.BindTextureUnit(0, backend.Texture2D, tex); err != nil {
		return err
	}
	if err := b.BindSampler(0, nil); err != nil {
		return err
	}
	if _, err := r.blit.SetUniform("u_texture", shader.Int(0)); err != nil {
		return err
	}
	if err := r.ctx.drawQuad(); err != nil {
		return err
	}
	return b.BindTextureUnit(0, backend.Texture2D, nil)
}

// ReadFrame reads the last rendered output as RGBA8 rows, bottom row
// first. The returned slice is reused by the next call.
func (r *Renderer) ReadFrame() ([]byte, Size, error) {
	if r.scene == nil {
		return nil, Size{}, ErrNoScene
	}
	pixels, size, err := r.scene.Chain.ReadOutput(r.pixels)
	if err != nil {
		return nil, Size{}, err
	}
	r.pixels = pixels
	return pixels, size, nil
}

func (r *Renderer) logStats() {
	log := logx.Logger()
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	for _, m := range r.scene.Chain.Members() {
		d, err := m.Buffer().ElapsedTime()
		if err != nil {
			continue
		}
		log.Debug("renderer: gpu time", "member", m.ID(), "frame", r.frame, "elapsed", d)
	}
}

// Run renders until the window is closed or hook returns an error.
// Returning ErrStop from hook ends Run cleanly.
func (r *Renderer) Run(hook FrameHook) error {
	for !r.win.ShouldClose() {
		if err := r.RenderFrame(); err != nil {
			return err
		}
		if hook != nil {
			if err := hook(r); err != nil {
				if errors.Is(err, ErrStop) {
					return nil
				}
				return err
			}
		}
		r.win.EndFrame()
	}
	return nil
}

// Shutdown releases the scene and the presentation program. The context
// and the window belong to the caller.
func (r *Renderer) Shutdown() {
	r.scene.Release()
	r.scene = nil
	if r.blit != nil {
		r.blit.Release()
		r.blit = nil
	}
}
