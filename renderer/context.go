package renderer

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/inputs"
	"github.com/richinsley/goshaderchain/logx"
	"github.com/richinsley/goshaderchain/shader"
)

var quadVertices = []float32{
	-1.0, 1.0, -1.0, -1.0, 1.0, -1.0,
	-1.0, 1.0, 1.0, -1.0, 1.0, 1.0,
}

// FrameInput is the per-frame state supplied by the caller.
type FrameInput struct {
	Time        float64
	TimeDelta   float64
	Frame       int
	Mouse       [4]float32
	Date        time.Time
	SampleRate  float64
	ChannelTime [4]float64
}

// FrameUniforms are the Shadertoy uniforms shared by every buffer of a
// frame.
type FrameUniforms struct {
	Time        float32
	TimeDelta   float32
	FrameRate   float32
	Frame       int32
	Mouse       [4]float32
	Date        [4]float32
	SampleRate  float32
	ChannelTime [4]float32
}

// Uniforms converts the input to uniform values. iDate holds the year,
// the zero based month, the day and the seconds since midnight.
func (in FrameInput) Uniforms() FrameUniforms {
	u := FrameUniforms{
		Time:       float32(in.Time),
		TimeDelta:  float32(in.TimeDelta),
		Frame:      int32(in.Frame),
		Mouse:      in.Mouse,
		SampleRate: float32(in.SampleRate),
	}
	if in.TimeDelta > 0 {
		u.FrameRate = float32(1 / in.TimeDelta)
	}
	if !in.Date.IsZero() {
		d := in.Date
		midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
		u.Date = [4]float32{float32(d.Year()), float32(d.Month() - 1), float32(d.Day()), float32(d.Sub(midnight).Seconds())}
	}
	for i, t := range in.ChannelTime {
		u.ChannelTime[i] = float32(t)
	}
	return u
}

// ContextOption configures a Context.
type ContextOption func(*contextConfig)

type contextConfig struct {
	errorInput inputs.Input
	noError    bool
	format     backend.Enum
	compiler   []shader.CompilerOption
}

// WithErrorInput replaces the input bound in place of failing inputs. A
// nil input leaves failing channels unbound.
func WithErrorInput(in inputs.Input) ContextOption {
	return func(c *contextConfig) {
		c.errorInput = in
		c.noError = in == nil
	}
}

// WithFormat sets the default output format of buffers initialized without
// one.
func WithFormat(format backend.Enum) ContextOption {
	return func(c *contextConfig) { c.format = format }
}

// WithTranslator compiles fragment shaders through t.
func WithTranslator(t shader.Translator) ContextOption {
	return func(c *contextConfig) { c.compiler = append(c.compiler, shader.WithTranslator(t)) }
}

// WithVersion sets the version header of natively compiled shaders.
func WithVersion(v string) ContextOption {
	return func(c *contextConfig) { c.compiler = append(c.compiler, shader.WithVersion(v)) }
}

// Context holds what the buffers of a chain share: the backend, the shader
// compiler, the full-screen quad, the error input and the uniforms of the
// frame being rendered.
type Context struct {
	b          *backend.Backend
	compiler   *shader.Compiler
	errorInput inputs.Input
	ownError   bool
	format     backend.Enum

	vao, vbo *backend.Handle
	frame    FrameUniforms
}

// NewContext creates the shared resources on b. The backend's context
// must be current.
func NewContext(b *backend.Backend, opts ...ContextOption) (*Context, error) {
	var cfg contextConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx := &Context{
		b:        b,
		compiler: shader.NewCompiler(b, cfg.compiler...),
		format:   cfg.format,
	}
	if ctx.format == backend.None {
		ctx.format = DefaultFormat
	}
	switch {
	case cfg.errorInput != nil:
		ctx.errorInput = cfg.errorInput
	case !cfg.noError:
		ctx.errorInput = inputs.NewErrorInput(b)
		ctx.ownError = true
	}

	vbo, err := b.MakeBuffer(backend.ArrayBuffer)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 4*len(quadVertices))
	for i, v := range quadVertices {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}
	if err := vbo.Data(data, backend.StaticDraw); err != nil {
		vbo.Release()
		return nil, err
	}
	vao, err := b.MakeVertexArray()
	if err != nil {
		vbo.Release()
		return nil, err
	}
	if err := vao.AttribPointer(vbo, 0, 2, backend.Float, 2*4, 0); err != nil {
		vao.Release()
		vbo.Release()
		return nil, fmt.Errorf("quad vertex array: %w", err)
	}
	ctx.vao, ctx.vbo = vao, vbo
	return ctx, nil
}

func (ctx *Context) Backend() *backend.Backend { return ctx.b }

func (ctx *Context) Compiler() *shader.Compiler { return ctx.compiler }

// ErrorInput returns the input substituted for failing channels, nil if
// failing channels are left unbound.
func (ctx *Context) ErrorInput() inputs.Input { return ctx.errorInput }

// Frame returns the uniforms of the current frame.
func (ctx *Context) Frame() FrameUniforms { return ctx.frame }

func (ctx *Context) drawQuad() error {
	if err := ctx.b.BindVertexArray(ctx.vao); err != nil {
		return err
	}
	return ctx.b.Draw(backend.Triangles, 0, int32(len(quadVertices)/2))
}

// Init initializes chain against this context.
func (ctx *Context) Init(chain *SwapChain) error {
	return chain.Init(ctx)
}

// Render sets the frame uniforms from in and renders chain.
func (ctx *Context) Render(chain *SwapChain, in FrameInput) error {
	ctx.frame = in.Uniforms()
	return chain.Render()
}

// Release frees the quad and the error input if the context created it.
func (ctx *Context) Release() {
	ctx.vao.Release()
	ctx.vbo.Release()
	ctx.vao, ctx.vbo = nil, nil
	if ctx.ownError {
		ctx.errorInput.Reset()
	}
	logx.Logger().Debug("renderer: context released")
}
