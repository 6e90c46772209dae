package renderer

import (
	"errors"
	"fmt"
	"time"

	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/inputs"
	"github.com/richinsley/goshaderchain/logx"
	"github.com/richinsley/goshaderchain/shader"
)

// ErrNotInitialized is returned when rendering a buffer before Init.
var ErrNotInitialized = errors.New("buffer not initialized")

// binding is one iChannel slot.
type binding struct {
	input   inputs.Input
	name    string
	sampler *inputs.Sampler
	failing bool
}

func (bd *binding) samplerFor(in inputs.Input) *inputs.Sampler {
	if bd.sampler != nil && in == bd.input {
		return bd.sampler
	}
	return in.Sampler()
}

// BindingOption configures an input binding.
type BindingOption func(*binding)

// WithBindingName names the binding, for diagnostics.
func WithBindingName(name string) BindingOption {
	return func(bd *binding) { bd.name = name }
}

// WithSamplerOverride samples the input with s instead of its own sampler.
// Mipmap regeneration still follows the input's sampler.
func WithSamplerOverride(s *inputs.Sampler) BindingOption {
	return func(bd *binding) { bd.sampler = s }
}

// BufferOption configures a Buffer.
type BufferOption func(*Buffer)

// WithCommon sets the code shared by all buffers of a shader.
func WithCommon(code string) BufferOption {
	return func(buf *Buffer) { buf.common = code }
}

// WithOutputs names the fragment outputs. Each output gets its own texture
// pair and color attachment, in order.
func WithOutputs(names ...string) BufferOption {
	return func(buf *Buffer) { buf.outputs = append([]string(nil), names...) }
}

// WithDrawState registers a function that configures the draw state when
// the buffer is initialized.
func WithDrawState(setup func(*backend.DrawState) error) BufferOption {
	return func(buf *Buffer) { buf.setup = append(buf.setup, setup) }
}

// WithParts registers a function that edits the fragment parts before
// compilation, e.g. to insert code before the user part.
func WithParts(edit func(*shader.Parts) error) BufferOption {
	return func(buf *Buffer) { buf.edits = append(buf.edits, edit) }
}

// Buffer is one shader pass: a program drawn over a full-screen quad into
// its output textures, reading up to shader.NumChannels inputs.
type Buffer struct {
	id      string
	code    string
	common  string
	outputs []string
	setup   []func(*backend.DrawState) error
	edits   []func(*shader.Parts) error

	inputs   [shader.NumChannels]*binding
	declared [shader.NumChannels]string
	stale    bool

	uniforms map[string]shader.Value

	ctx     *Context
	size    Sizer
	policy  SwapPolicy
	program *shader.Program
	draw    *backend.DrawState
	io      []*IOResource
	fb      *backend.Handle
	checked bool
	query   *backend.Handle
	queried bool
	frame   FrameUniforms
}

// NewBuffer returns an uninitialized buffer running code, which defines
// mainImage.
func NewBuffer(id, code string, opts ...BufferOption) *Buffer {
	buf := &Buffer{
		id:       id,
		code:     code,
		outputs:  []string{shader.DefaultOutput},
		uniforms: make(map[string]shader.Value),
	}
	for _, opt := range opts {
		opt(buf)
	}
	if len(buf.outputs) == 0 {
		buf.outputs = []string{shader.DefaultOutput}
	}
	return buf
}

func (buf *Buffer) ID() string { return buf.id }

// Code returns the user code.
func (buf *Buffer) Code() string { return buf.code }

// SetCode replaces the user code. The program is rebuilt on the next
// Render.
func (buf *Buffer) SetCode(code string) {
	buf.code = code
	buf.stale = true
}

// Outputs returns the output names.
func (buf *Buffer) Outputs() []string { return buf.outputs }

// SetInput binds in to channel. A nil input clears the channel. If the
// buffer is initialized and the sampler type of the channel changes, the
// program is rebuilt on the next Render.
func (buf *Buffer) SetInput(channel int, in inputs.Input, opts ...BindingOption) error {
	if channel < 0 || channel >= shader.NumChannels {
		return fmt.Errorf("buffer %q: channel %d out of range [0, %d)", buf.id, channel, shader.NumChannels)
	}
	if in == nil {
		buf.inputs[channel] = nil
	} else {
		bd := &binding{input: in}
		for _, opt := range opts {
			opt(bd)
		}
		buf.inputs[channel] = bd
	}
	if buf.program != nil && buf.samplerType(channel) != buf.declared[channel] {
		buf.stale = true
	}
	return nil
}

// Input returns the input bound to channel, nil if none.
func (buf *Buffer) Input(channel int) inputs.Input {
	if channel < 0 || channel >= shader.NumChannels || buf.inputs[channel] == nil {
		return nil
	}
	return buf.inputs[channel].input
}

func (buf *Buffer) samplerType(channel int) string {
	if bd := buf.inputs[channel]; bd != nil {
		return bd.input.SamplerType()
	}
	return "sampler2D"
}

// Program returns the linked program, nil before Init.
func (buf *Buffer) Program() *shader.Program { return buf.program }

// DrawState returns the draw state, nil before Init.
func (buf *Buffer) DrawState() *backend.DrawState { return buf.draw }

// Uniforms returns the frame uniforms of the last render.
func (buf *Buffer) Uniforms() FrameUniforms { return buf.frame }

// Policy returns the swap policy the buffer was initialized with.
func (buf *Buffer) Policy() SwapPolicy { return buf.policy }

// Initialized reports whether Init succeeded.
func (buf *Buffer) Initialized() bool { return buf.program != nil }

func (buf *Buffer) compile(ctx *Context) (*shader.Program, error) {
	decls := make([]shader.ChannelDecl, shader.NumChannels)
	for i := range decls {
		decls[i] = shader.ChannelDecl{Index: i, Type: buf.samplerType(i)}
	}
	outputs := buf.outputs
	if buf.policy == DefaultFramebuffer {
		outputs = outputs[:1]
	}
	fs := shader.FragmentTemplate(decls, buf.common, buf.code, outputs)
	for _, edit := range buf.edits {
		if err := edit(fs); err != nil {
			return nil, fmt.Errorf("buffer %q: edit parts: %w", buf.id, err)
		}
	}
	prog, err := ctx.compiler.Compile(shader.VertexTemplate(), fs)
	if err != nil {
		return nil, fmt.Errorf("buffer %q: %w", buf.id, err)
	}
	for i, d := range decls {
		buf.declared[i] = d.Type
	}
	buf.stale = false
	return prog, nil
}

// Init compiles the program and allocates the render targets for size and
// policy. Calling Init again releases the previous resources first. A
// compile or link error leaves the buffer uninitialized.
func (buf *Buffer) Init(ctx *Context, size Sizer, policy SwapPolicy, format backend.Enum) error {
	buf.release()
	buf.ctx, buf.size, buf.policy = ctx, size, policy
	b := ctx.b

	if policy == DefaultFramebuffer && len(buf.outputs) > 1 {
		logx.Logger().Warn("renderer: default framebuffer buffer writes only its first output",
			"buffer", buf.id, "outputs", len(buf.outputs))
	}
	prog, err := buf.compile(ctx)
	if err != nil {
		return err
	}
	buf.program = prog

	buf.draw = b.MakeDrawState()
	for _, setup := range buf.setup {
		if err := setup(buf.draw); err != nil {
			buf.release()
			return fmt.Errorf("buffer %q: draw state: %w", buf.id, err)
		}
	}

	if policy != DefaultFramebuffer {
		if format == backend.None {
			format = ctx.format
		}
		for range buf.outputs {
			io := NewIOResource(b, size, format, policy == SingleBuffer)
			buf.io = append(buf.io, io)
		}
		if err := buf.AllocateTextures(); err != nil {
			buf.release()
			return err
		}
		fb, err := b.MakeFramebuffer()
		if err != nil {
			buf.release()
			return err
		}
		buf.fb = fb
		attachments := make([]backend.Enum, len(buf.outputs))
		for i := range attachments {
			attachments[i] = backend.ColorAttachment0 + backend.Enum(i)
		}
		if err := fb.DrawBuffers(attachments); err != nil {
			buf.release()
			return err
		}
	}

	if b.Caps().Has(backend.FeatureTimerQuery) {
		q, err := b.MakeQuery(backend.TimeElapsed)
		if err != nil {
			buf.release()
			return err
		}
		buf.query = q
	}

	for i, bd := range buf.inputs {
		if bd == nil {
			continue
		}
		// Buffer references usually resolve only once their member exists.
		if _, err := bd.input.Load(); err != nil && !errors.Is(err, inputs.ErrUnresolved) {
			logx.Logger().Warn("renderer: input failed to load", "buffer", buf.id, "channel", i, "error", err)
		}
	}
	for name, v := range buf.uniforms {
		if _, err := buf.program.SetUniform(name, v); err != nil {
			buf.release()
			return fmt.Errorf("buffer %q: uniform %s: %w", buf.id, name, err)
		}
	}
	logx.Logger().Info("renderer: buffer initialized", "buffer", buf.id, "size", size.Size().String(),
		"policy", policy.String(), "outputs", len(buf.outputs))
	return nil
}

// AllocateTextures reallocates the output textures at the current size,
// e.g. after the referenced size changed.
func (buf *Buffer) AllocateTextures() error {
	for i, io := range buf.io {
		if err := io.Allocate(); err != nil {
			var ae *AllocationError
			if errors.As(err, &ae) {
				ae.Member = buf.id
			}
			return fmt.Errorf("output %d: %w", i, err)
		}
	}
	buf.checked = false
	return nil
}

// SetUniform stores v for name and writes it to the program if it declares
// the uniform. It reports whether the program declares it.
func (buf *Buffer) SetUniform(name string, v shader.Value) (bool, error) {
	buf.uniforms[name] = v
	if buf.program == nil {
		return false, nil
	}
	return buf.program.SetUniform(name, v)
}

// Uniform returns a value stored by SetUniform.
func (buf *Buffer) Uniform(name string) (shader.Value, bool) {
	v, ok := buf.uniforms[name]
	return v, ok
}

// resolve returns the input and texture to bind for a channel. Failures
// are logged once per failing streak and replaced by the context's error
// input, or by no texture when the context has none.
func (buf *Buffer) resolve(channel int, bd *binding) (inputs.Input, *backend.Handle, error) {
	tex, err := bd.input.Use()
	if err == nil {
		if bd.failing {
			logx.Logger().Info("renderer: input recovered", "buffer", buf.id, "channel", channel)
			bd.failing = false
		}
		return bd.input, tex, nil
	}
	if !bd.failing {
		logx.Logger().Warn("renderer: input unavailable, substituting", "buffer", buf.id, "channel", channel,
			"binding", bd.name, "error", err)
		bd.failing = true
	}
	sub := buf.ctx.errorInput
	if sub == nil {
		return nil, nil, nil
	}
	tex, err = sub.Use()
	if err != nil {
		return nil, nil, fmt.Errorf("buffer %q: error input: %w", buf.id, err)
	}
	return sub, tex, nil
}

func (buf *Buffer) unbind(unit uint32) error {
	if err := buf.ctx.b.BindTextureUnit(unit, backend.Texture2D, nil); err != nil {
		return err
	}
	return buf.ctx.b.BindSampler(unit, nil)
}

func (buf *Buffer) bindInputs() ([shader.NumChannels][3]float32, error) {
	var res [shader.NumChannels][3]float32
	b := buf.ctx.b
	for i, bd := range buf.inputs {
		unit := uint32(i)
		if bd == nil {
			if err := buf.unbind(unit); err != nil {
				return res, err
			}
			continue
		}
		in, tex, err := buf.resolve(i, bd)
		if err != nil {
			return res, err
		}
		if in == nil {
			if err := buf.unbind(unit); err != nil {
				return res, err
			}
			continue
		}
		if err := b.BindTextureUnit(unit, in.Target(), tex); err != nil {
			return res, err
		}
		if err := bd.samplerFor(in).Bind(b, unit); err != nil {
			return res, err
		}
		res[i] = in.Resolution()
	}
	return res, nil
}

func (buf *Buffer) bindTarget() (Size, error) {
	b := buf.ctx.b
	if buf.policy == DefaultFramebuffer {
		return buf.size.Size(), b.BindDefaultFramebuffer()
	}
	for i, io := range buf.io {
		back, err := io.Back()
		if err != nil {
			return Size{}, err
		}
		if err := buf.fb.AttachTexture(backend.ColorAttachment0+backend.Enum(i), back); err != nil {
			return Size{}, err
		}
	}
	if !buf.checked {
		if err := buf.fb.CheckComplete(); err != nil {
			return Size{}, fmt.Errorf("buffer %q: %w", buf.id, err)
		}
		buf.checked = true
	}
	return buf.io[0].AllocatedSize(), b.BindFramebuffer(buf.fb)
}

func (buf *Buffer) setFrameUniforms(size Size, res [shader.NumChannels][3]float32) error {
	f := buf.ctx.frame
	p := buf.program
	values := []struct {
		name string
		v    shader.Value
	}{
		{"iResolution", shader.Vec3(size.Resolution())},
		{"iTime", shader.Float(f.Time)},
		{"iTimeDelta", shader.Float(f.TimeDelta)},
		{"iFrameRate", shader.Float(f.FrameRate)},
		{"iFrame", shader.Int(f.Frame)},
		{"iMouse", shader.Vec4(f.Mouse)},
		{"iDate", shader.Vec4(f.Date)},
		{"iSampleRate", shader.Float(f.SampleRate)},
		{"iChannelTime", shader.Floats(f.ChannelTime[:])},
		{"iChannelResolution", shader.Vec3s(res[:])},
	}
	for i := 0; i < shader.NumChannels; i++ {
		values = append(values, struct {
			name string
			v    shader.Value
		}{fmt.Sprintf("iChannel%d", i), shader.Int(i)})
	}
	for _, u := range values {
		if _, err := p.SetUniform(u.name, u.v); err != nil {
			return fmt.Errorf("buffer %q: uniform %s: %w", buf.id, u.name, err)
		}
	}
	buf.frame = f
	return nil
}

// Render draws one frame: inputs are resolved and bound, the draw state is
// applied, the quad is drawn into the back textures under a timer query and
// the textures are swapped. Input failures are not returned.
func (buf *Buffer) Render() error {
	if buf.program == nil {
		return fmt.Errorf("buffer %q: %w", buf.id, ErrNotInitialized)
	}
	ctx := buf.ctx
	b := ctx.b
	if buf.stale {
		prog, err := buf.compile(ctx)
		if err != nil {
			return err
		}
		buf.program.Release()
		buf.program = prog
		for name, v := range buf.uniforms {
			if _, err := prog.SetUniform(name, v); err != nil {
				return err
			}
		}
	}

	res, err := buf.bindInputs()
	if err != nil {
		return err
	}
	size, err := buf.bindTarget()
	if err != nil {
		return err
	}
	if err := b.SetViewport(0, 0, int32(size.Width), int32(size.Height)); err != nil {
		return err
	}
	if err := b.UseProgram(buf.program.Handle()); err != nil {
		return err
	}
	if err := buf.setFrameUniforms(size, res); err != nil {
		return err
	}
	if err := buf.draw.Apply(); err != nil {
		return err
	}
	if buf.query != nil {
		if err := buf.query.Begin(); err != nil {
			return err
		}
	}
	if err := ctx.drawQuad(); err != nil {
		return err
	}
	if buf.query != nil {
		if err := buf.query.End(); err != nil {
			return err
		}
		buf.queried = true
	}
	for _, io := range buf.io {
		io.Swap()
	}
	return nil
}

// ElapsedTime waits for the timer query of the last render and returns
// the GPU time it took. It returns zero when timer queries are unsupported
// or nothing was rendered yet.
func (buf *Buffer) ElapsedTime() (time.Duration, error) {
	if buf.query == nil || !buf.queried {
		return 0, nil
	}
	for {
		ok, err := buf.query.Available()
		if err != nil {
			return 0, err
		}
		if ok {
			break
		}
	}
	ns, err := buf.query.Result()
	if err != nil {
		return 0, err
	}
	return time.Duration(ns), nil
}

// output returns the IOResource of output i.
func (buf *Buffer) output(i int) (*IOResource, error) {
	if i < 0 || i >= len(buf.io) {
		return nil, fmt.Errorf("buffer %q: output %d not allocated", buf.id, i)
	}
	return buf.io[i], nil
}

// ReadPixels reads output 0 of the last completed frame as RGBA8, or the
// presentation surface for default framebuffer buffers. dst is reused when
// large enough.
func (buf *Buffer) ReadPixels(dst []byte) ([]byte, Size, error) {
	if buf.program == nil {
		return nil, Size{}, fmt.Errorf("buffer %q: %w", buf.id, ErrNotInitialized)
	}
	b := buf.ctx.b
	var size Size
	if buf.policy == DefaultFramebuffer {
		size = buf.size.Size()
		if err := b.BindDefaultFramebuffer(); err != nil {
			return nil, size, err
		}
	} else {
		front, err := buf.io[0].Front()
		if err != nil {
			return nil, size, err
		}
		size = buf.io[0].AllocatedSize()
		if err := buf.fb.AttachTexture(backend.ColorAttachment0, front); err != nil {
			return nil, size, err
		}
		if err := b.BindFramebuffer(buf.fb); err != nil {
			return nil, size, err
		}
	}
	n := size.Width * size.Height * 4
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	if err := b.ReadPixels(0, 0, int32(size.Width), int32(size.Height), backend.RGBA, backend.UnsignedByte, dst); err != nil {
		return nil, size, err
	}
	return dst, size, nil
}

func (buf *Buffer) release() {
	if buf.program != nil {
		buf.program.Release()
		buf.program = nil
	}
	for _, io := range buf.io {
		io.Release()
	}
	buf.io = nil
	buf.fb.Release()
	buf.fb = nil
	buf.query.Release()
	buf.query = nil
	buf.queried = false
	buf.checked = false
	buf.draw = nil
}

// Release frees the program and render targets. Inputs are shared and left
// alone.
func (buf *Buffer) Release() {
	buf.release()
	logx.Logger().Debug("renderer: buffer released", "buffer", buf.id)
}
