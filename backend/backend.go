// Package backend is the capability interface between the render core and a
// concrete graphics API. A Backend wraps one provider API, hands out owning
// Handles for GPU objects and optionally tracks bind state so redundant calls
// never reach the driver.
//
// A Backend is not safe for concurrent use; it belongs to the goroutine that
// holds the graphics context (see runtime.LockOSThread).
package backend

import (
	"github.com/richinsley/goshaderchain/logx"
)

// Option configures a Backend.
type Option func(*Backend)

// WithStateTracking turns bind elision on or off. It is on by default.
// Providers whose contexts can be touched by foreign code, such as WebGL,
// should turn it off so every call is forwarded.
func WithStateTracking(on bool) Option {
	return func(b *Backend) {
		b.tracking = on
	}
}

// Backend is the façade the core uses for every GPU operation.
type Backend struct {
	api      API
	caps     Caps
	tracking bool
	live     [KindVertexArray + 1]int
	st       stateCache
}

type unitTarget struct {
	unit   uint32
	target Enum
}

// stateCache mirrors the bindings last issued through the Backend. Entries
// that are missing are unknown and always forwarded.
type stateCache struct {
	unitKnown   bool
	activeUnit  uint32
	textures    map[unitTarget]uint32
	samplers    map[uint32]uint32
	fbKnown     bool
	framebuffer uint32
	progKnown   bool
	program     uint32
	vaoKnown    bool
	vao         uint32
	vpKnown     bool
	viewport    [4]int32
	enabled     map[Enum]bool
}

func (s *stateCache) reset() {
	*s = stateCache{
		textures: make(map[unitTarget]uint32),
		samplers: make(map[uint32]uint32),
		enabled:  make(map[Enum]bool),
	}
}

// New wraps a provider API.
func New(api API, opts ...Option) *Backend {
	b := &Backend{
		api:      api,
		caps:     api.Caps(),
		tracking: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.st.reset()
	logx.Logger().Debug("backend: created", "provider", b.caps.Name, "state_tracking", b.tracking)
	return b
}

// API returns the wrapped provider. Calls made directly on it bypass state
// tracking; call Invalidate afterwards if they change bindings.
func (b *Backend) API() API { return b.api }

// Caps returns the provider capabilities.
func (b *Backend) Caps() Caps { return b.caps }

// StateTracking reports whether redundant binds are elided.
func (b *Backend) StateTracking() bool { return b.tracking }

// Invalidate forgets all cached bindings.
func (b *Backend) Invalidate() { b.st.reset() }

// Live returns the number of objects of kind currently owned by handles.
func (b *Backend) Live(kind Kind) int {
	if int(kind) >= len(b.live) {
		return 0
	}
	return b.live[kind]
}

// Check reads the provider error state and converts a latched error into an
// *OperationError. All latched errors are drained; the first is reported.
func (b *Backend) Check(op string) error {
	code := b.api.GetError()
	if code == NoError {
		return nil
	}
	for i := 0; i < 8; i++ {
		if b.api.GetError() == NoError {
			break
		}
	}
	return &OperationError{Op: op, Code: code, Cause: ErrorName(code)}
}

func (b *Backend) create(kind Kind, target Enum) (*Handle, error) {
	id := b.api.Create(kind, target)
	if err := b.Check("create " + kind.String()); err != nil {
		if id != 0 {
			b.api.Delete(kind, id)
		}
		return nil, err
	}
	if id == 0 {
		return nil, &OperationError{Op: "create " + kind.String(), Code: OutOfMemory, Cause: "provider returned no object"}
	}
	b.live[kind]++
	logx.Logger().Debug("backend: create", "kind", kind.String(), "target", target.String(), "id", id)
	return &Handle{b: b, kind: kind, target: target, id: id, present: true}, nil
}

func (b *Backend) destroy(h *Handle) {
	b.forget(h.kind, h.id)
	b.api.Delete(h.kind, h.id)
	b.live[h.kind]--
	logx.Logger().Debug("backend: delete", "kind", h.kind.String(), "id", h.id)
}

// forget drops cache entries naming a deleted object. Deleting a bound
// object reverts the binding to zero in GL.
func (b *Backend) forget(kind Kind, id uint32) {
	switch kind {
	case KindTexture:
		for k, v := range b.st.textures {
			if v == id {
				b.st.textures[k] = 0
			}
		}
	case KindSampler:
		for k, v := range b.st.samplers {
			if v == id {
				b.st.samplers[k] = 0
			}
		}
	case KindFramebuffer:
		if b.st.framebuffer == id {
			b.st.framebuffer = 0
		}
	case KindProgram:
		if b.st.program == id {
			b.st.program = 0
		}
	case KindVertexArray:
		if b.st.vao == id {
			b.st.vao = 0
		}
	}
}

// MakeTexture creates a texture for target (TEXTURE_2D, TEXTURE_3D,
// TEXTURE_CUBE_MAP, ...).
func (b *Backend) MakeTexture(target Enum) (*Handle, error) { return b.create(KindTexture, target) }

// MakeBuffer creates a buffer object bound at target.
func (b *Backend) MakeBuffer(target Enum) (*Handle, error) { return b.create(KindBuffer, target) }

// MakeProgram creates an empty program object.
func (b *Backend) MakeProgram() (*Handle, error) { return b.create(KindProgram, None) }

// MakeQuery creates a query object for target, e.g. TIME_ELAPSED.
func (b *Backend) MakeQuery(target Enum) (*Handle, error) { return b.create(KindQuery, target) }

// MakeFramebuffer creates a framebuffer object.
func (b *Backend) MakeFramebuffer() (*Handle, error) { return b.create(KindFramebuffer, None) }

// MakeSampler creates a sampler object.
func (b *Backend) MakeSampler() (*Handle, error) { return b.create(KindSampler, None) }

// MakeShader creates a shader object for stage.
func (b *Backend) MakeShader(stage Enum) (*Handle, error) { return b.create(KindShader, stage) }

// MakeVertexArray creates a vertex array object.
func (b *Backend) MakeVertexArray() (*Handle, error) { return b.create(KindVertexArray, None) }

// MakeDrawState returns a DrawState with default values bound to b.
func (b *Backend) MakeDrawState() *DrawState { return newDrawState(b) }

func (b *Backend) activeTexture(unit uint32) {
	if b.tracking && b.st.unitKnown && b.st.activeUnit == unit {
		return
	}
	b.api.ActiveTexture(unit)
	b.st.unitKnown = true
	b.st.activeUnit = unit
}

func (b *Backend) bindTexture(target Enum, id uint32) {
	if !b.st.unitKnown {
		// The unit is unknown, so the cache key would be a guess.
		b.api.BindTexture(target, id)
		return
	}
	key := unitTarget{b.st.activeUnit, target}
	if cur, ok := b.st.textures[key]; b.tracking && ok && cur == id {
		return
	}
	b.api.BindTexture(target, id)
	b.st.textures[key] = id
}

// minTextureUnits is the fragment texture unit count every GL 3.3 and
// WebGL2 implementation provides.
const minTextureUnits = 16

// scratchUnit is the texture unit used to bind textures for editing, kept
// apart from the units inputs are bound to for drawing.
func (b *Backend) scratchUnit() uint32 {
	if n := b.caps.MaxTextureUnits; n > 0 {
		return uint32(n - 1)
	}
	return minTextureUnits - 1
}

// editTexture binds a texture on the scratch unit ahead of an upload or a
// parameter change.
func (b *Backend) editTexture(target Enum, id uint32) {
	b.activeTexture(b.scratchUnit())
	b.bindTexture(target, id)
}

func (b *Backend) bindFramebuffer(id uint32) {
	if b.tracking && b.st.fbKnown && b.st.framebuffer == id {
		return
	}
	b.api.BindFramebuffer(Framebuffer, id)
	b.st.fbKnown = true
	b.st.framebuffer = id
}

func (b *Backend) useProgram(id uint32) {
	if b.tracking && b.st.progKnown && b.st.program == id {
		return
	}
	b.api.UseProgram(id)
	b.st.progKnown = true
	b.st.program = id
}

func (b *Backend) bindVertexArray(id uint32) {
	if b.tracking && b.st.vaoKnown && b.st.vao == id {
		return
	}
	b.api.BindVertexArray(id)
	b.st.vaoKnown = true
	b.st.vao = id
}

func (b *Backend) checkUnit(unit uint32) error {
	if limit := b.caps.MaxTextureUnits; limit > 0 && int(unit) >= limit {
		return &OperationError{Op: "active texture", Code: InvalidValue, Cause: "texture unit out of range"}
	}
	return nil
}

// ActiveTexture selects the texture unit affected by later texture binds.
func (b *Backend) ActiveTexture(unit uint32) error {
	if err := b.checkUnit(unit); err != nil {
		return err
	}
	b.activeTexture(unit)
	return b.Check("active texture")
}

// BindTextureUnit binds tex to target on unit. A nil tex unbinds the unit;
// a non-nil handle that owns nothing is a NullResourceError.
func (b *Backend) BindTextureUnit(unit uint32, target Enum, tex *Handle) error {
	if err := b.checkUnit(unit); err != nil {
		return err
	}
	var id uint32
	if tex != nil {
		var err error
		if id, err = tex.use("bind texture unit", KindTexture); err != nil {
			return err
		}
	}
	b.activeTexture(unit)
	b.bindTexture(target, id)
	return b.Check("bind texture unit")
}

// BindSampler binds a sampler object to unit. A nil sampler unbinds it.
func (b *Backend) BindSampler(unit uint32, sampler *Handle) error {
	var id uint32
	if sampler != nil {
		var err error
		if id, err = sampler.use("bind sampler", KindSampler); err != nil {
			return err
		}
	}
	if cur, ok := b.st.samplers[unit]; b.tracking && ok && cur == id {
		return nil
	}
	b.api.BindSampler(unit, id)
	b.st.samplers[unit] = id
	return b.Check("bind sampler")
}

// SetViewport sets the viewport rectangle.
func (b *Backend) SetViewport(x, y, width, height int32) error {
	vp := [4]int32{x, y, width, height}
	if b.tracking && b.st.vpKnown && b.st.viewport == vp {
		return nil
	}
	b.api.Viewport(x, y, width, height)
	b.st.vpKnown = true
	b.st.viewport = vp
	return b.Check("viewport")
}

// BindDefaultFramebuffer makes the presentation surface the render target.
func (b *Backend) BindDefaultFramebuffer() error {
	b.bindFramebuffer(0)
	return b.Check("bind default framebuffer")
}

// BindFramebuffer makes fb the render target.
func (b *Backend) BindFramebuffer(fb *Handle) error {
	id, err := fb.use("bind framebuffer", KindFramebuffer)
	if err != nil {
		return err
	}
	b.bindFramebuffer(id)
	return b.Check("bind framebuffer")
}

// UseProgram installs p for subsequent draws and uniform updates.
func (b *Backend) UseProgram(p *Handle) error {
	id, err := p.use("use program", KindProgram)
	if err != nil {
		return err
	}
	b.useProgram(id)
	return b.Check("use program")
}

// BindVertexArray binds va.
func (b *Backend) BindVertexArray(va *Handle) error {
	id, err := va.use("bind vertex array", KindVertexArray)
	if err != nil {
		return err
	}
	b.bindVertexArray(id)
	return b.Check("bind vertex array")
}

// SetCapability enables or disables a fixed-function capability.
func (b *Backend) SetCapability(capability Enum, on bool) error {
	if !IsCapability(capability) {
		return &ValidationError{Field: "capability", Value: capability}
	}
	if cur, ok := b.st.enabled[capability]; b.tracking && ok && cur == on {
		return nil
	}
	if on {
		b.api.Enable(capability)
	} else {
		b.api.Disable(capability)
	}
	b.st.enabled[capability] = on
	return b.Check("set capability " + capability.String())
}

// Draw issues a non-indexed draw call.
func (b *Backend) Draw(mode Enum, first, count int32) error {
	b.api.DrawArrays(mode, first, count)
	return b.Check("draw arrays")
}

// MemoryBarrier orders shader memory accesses. Providers without the
// feature ignore the call.
func (b *Backend) MemoryBarrier(bits Enum) error {
	if bits == None {
		return nil
	}
	if !b.caps.Has(FeatureMemoryBarrier) {
		logx.Logger().Debug("backend: memory barrier unsupported, skipped", "bits", bits.String())
		return nil
	}
	b.api.MemoryBarrier(bits)
	return b.Check("memory barrier")
}

// PolygonMode sets the rasterization mode for both faces. Providers without
// the feature accept only FILL.
func (b *Backend) PolygonMode(mode Enum) error {
	if !b.caps.Has(FeaturePolygonMode) {
		if mode != Fill {
			logx.Logger().Debug("backend: polygon mode unsupported, using fill", "mode", mode.String())
		}
		return nil
	}
	b.api.PolygonMode(FrontAndBack, mode)
	return b.Check("polygon mode")
}

// ClearTexture zeroes level 0 of tex. It uses ClearTexImage when available
// and otherwise clears through fb, which is left bound.
func (b *Backend) ClearTexture(tex *Handle, fb *Handle) error {
	id, err := tex.use("clear texture", KindTexture)
	if err != nil {
		return err
	}
	if b.caps.Has(FeatureClearTexImage) {
		b.api.ClearTexImage(id, 0, RGBA, Float)
		return b.Check("clear texture")
	}
	if err := fb.AttachTexture(ColorAttachment0, tex); err != nil {
		return err
	}
	b.api.ClearColor(0, 0, 0, 0)
	b.api.Clear(ColorBufferBit)
	return b.Check("clear texture")
}

// ReadPixels reads a rectangle of the bound framebuffer into dst.
func (b *Backend) ReadPixels(x, y, width, height int32, format, typ Enum, dst []byte) error {
	b.api.ReadPixels(x, y, width, height, format, typ, dst)
	return b.Check("read pixels")
}
