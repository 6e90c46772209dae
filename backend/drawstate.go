package backend

// DrawState is the fixed-function configuration applied before a draw.
// Setters validate their arguments and leave the state unchanged on error,
// so an invalid value can never reach Apply.
type DrawState struct {
	b *Backend

	enabled map[Enum]bool

	blendEqRGB   Enum
	blendEqAlpha Enum
	srcRGB       Enum
	dstRGB       Enum
	srcAlpha     Enum
	dstAlpha     Enum

	clearColor   [4]float32
	clearDepth   float64
	clearStencil int32
	clearBits    Enum

	depthFunc   Enum
	barrier     Enum
	polygonMode Enum
}

func newDrawState(b *Backend) *DrawState {
	return &DrawState{
		b:            b,
		enabled:      make(map[Enum]bool),
		blendEqRGB:   FuncAdd,
		blendEqAlpha: FuncAdd,
		srcRGB:       One,
		dstRGB:       Zero,
		srcAlpha:     One,
		dstAlpha:     Zero,
		clearDepth:   1,
		clearBits:    ColorBufferBit,
		depthFunc:    Less,
		polygonMode:  Fill,
	}
}

// Enable turns a capability on for subsequent draws.
func (s *DrawState) Enable(capability Enum) error {
	if !IsCapability(capability) {
		return &ValidationError{Field: "enable", Value: capability}
	}
	s.enabled[capability] = true
	return nil
}

// Disable turns a capability off.
func (s *DrawState) Disable(capability Enum) error {
	if !IsCapability(capability) {
		return &ValidationError{Field: "disable", Value: capability}
	}
	delete(s.enabled, capability)
	return nil
}

// Enabled reports whether capability is on.
func (s *DrawState) Enabled(capability Enum) bool { return s.enabled[capability] }

// SetBlendModeRGB sets the blend equation for the color channels.
func (s *DrawState) SetBlendModeRGB(mode Enum) error {
	if !IsBlendEquation(mode) {
		return &ValidationError{Field: "blend mode rgb", Value: mode}
	}
	s.blendEqRGB = mode
	return nil
}

// SetBlendModeAlpha sets the blend equation for the alpha channel.
func (s *DrawState) SetBlendModeAlpha(mode Enum) error {
	if !IsBlendEquation(mode) {
		return &ValidationError{Field: "blend mode alpha", Value: mode}
	}
	s.blendEqAlpha = mode
	return nil
}

// BlendModeRGB returns the color blend equation.
func (s *DrawState) BlendModeRGB() Enum { return s.blendEqRGB }

// BlendModeAlpha returns the alpha blend equation.
func (s *DrawState) BlendModeAlpha() Enum { return s.blendEqAlpha }

// SetBlendFunc sets separate source and destination factors.
func (s *DrawState) SetBlendFunc(srcRGB, dstRGB, srcAlpha, dstAlpha Enum) error {
	for _, f := range [...]Enum{srcRGB, dstRGB, srcAlpha, dstAlpha} {
		if !IsBlendFactor(f) {
			return &ValidationError{Field: "blend func", Value: f}
		}
	}
	s.srcRGB, s.dstRGB, s.srcAlpha, s.dstAlpha = srcRGB, dstRGB, srcAlpha, dstAlpha
	return nil
}

// BlendFunc returns the blend factors.
func (s *DrawState) BlendFunc() (srcRGB, dstRGB, srcAlpha, dstAlpha Enum) {
	return s.srcRGB, s.dstRGB, s.srcAlpha, s.dstAlpha
}

// SetClearColor sets the color written by a color clear.
func (s *DrawState) SetClearColor(r, g, b, a float32) {
	s.clearColor = [4]float32{r, g, b, a}
}

// ClearColor returns the clear color.
func (s *DrawState) ClearColor() [4]float32 { return s.clearColor }

// SetClearDepth sets the depth clear value, clamped to [0, 1].
func (s *DrawState) SetClearDepth(d float64) {
	s.clearDepth = min(max(d, 0), 1)
}

// ClearDepth returns the depth clear value.
func (s *DrawState) ClearDepth() float64 { return s.clearDepth }

// SetClearStencil sets the stencil clear value.
func (s *DrawState) SetClearStencil(v int32) { s.clearStencil = v }

// ClearStencil returns the stencil clear value.
func (s *DrawState) ClearStencil() int32 { return s.clearStencil }

// SetClearBits selects the buffers cleared before drawing. Zero disables
// the clear.
func (s *DrawState) SetClearBits(bits Enum) error {
	if bits&^ClearMask != 0 {
		return &ValidationError{Field: "clear bits", Value: bits}
	}
	s.clearBits = bits
	return nil
}

// ClearBits returns the clear mask.
func (s *DrawState) ClearBits() Enum { return s.clearBits }

// SetDepthFunc sets the depth comparison.
func (s *DrawState) SetDepthFunc(fn Enum) error {
	if !IsComparison(fn) {
		return &ValidationError{Field: "depth func", Value: fn}
	}
	s.depthFunc = fn
	return nil
}

// DepthFunc returns the depth comparison.
func (s *DrawState) DepthFunc() Enum { return s.depthFunc }

// SetMemoryBarrier sets the barrier issued before drawing. Zero disables it.
func (s *DrawState) SetMemoryBarrier(bits Enum) error {
	if !IsBarrierMask(bits) {
		return &ValidationError{Field: "memory barrier", Value: bits}
	}
	s.barrier = bits
	return nil
}

// MemoryBarrier returns the barrier bits.
func (s *DrawState) MemoryBarrier() Enum { return s.barrier }

// SetPolygonMode sets the rasterization mode.
func (s *DrawState) SetPolygonMode(mode Enum) error {
	if !IsPolygonMode(mode) {
		return &ValidationError{Field: "polygon mode", Value: mode}
	}
	s.polygonMode = mode
	return nil
}

// PolygonMode returns the rasterization mode.
func (s *DrawState) PolygonMode() Enum { return s.polygonMode }

// Apply issues the state to the backend and clears the bound framebuffer.
func (s *DrawState) Apply() error {
	b := s.b
	if err := b.MemoryBarrier(s.barrier); err != nil {
		return err
	}
	for _, c := range capabilities {
		if err := b.SetCapability(c, s.enabled[c]); err != nil {
			return err
		}
	}
	if s.enabled[Blend] {
		b.api.BlendEquationSeparate(s.blendEqRGB, s.blendEqAlpha)
		b.api.BlendFuncSeparate(s.srcRGB, s.dstRGB, s.srcAlpha, s.dstAlpha)
	}
	if s.enabled[DepthTest] {
		b.api.DepthFunc(s.depthFunc)
	}
	if err := b.Check("apply draw state"); err != nil {
		return err
	}
	if err := b.PolygonMode(s.polygonMode); err != nil {
		return err
	}
	if s.clearBits == 0 {
		return nil
	}
	if s.clearBits&ColorBufferBit != 0 {
		c := s.clearColor
		b.api.ClearColor(c[0], c[1], c[2], c[3])
	}
	if s.clearBits&DepthBufferBit != 0 {
		b.api.ClearDepth(s.clearDepth)
	}
	if s.clearBits&StencilBufferBit != 0 {
		b.api.ClearStencil(s.clearStencil)
	}
	b.api.Clear(s.clearBits)
	return b.Check("clear")
}
