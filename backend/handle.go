package backend

// Handle exclusively owns one backend object. The object is deleted exactly
// once, by Release. Handles must not be copied by value; use Move to
// transfer ownership, which leaves the source empty.
//
// A nil *Handle is treated as an empty handle.
type Handle struct {
	b       *Backend
	kind    Kind
	target  Enum
	id      uint32
	present bool
}

// Kind returns the object kind.
func (h *Handle) Kind() Kind {
	if h == nil {
		return 0
	}
	return h.kind
}

// Target returns the target the object was created for (texture target,
// shader stage, query target, buffer binding).
func (h *Handle) Target() Enum {
	if h == nil {
		return None
	}
	return h.target
}

// Present reports whether the handle currently owns an object.
func (h *Handle) Present() bool {
	return h != nil && h.present
}

// ID returns the backend object name.
func (h *Handle) ID() (uint32, error) {
	if !h.Present() {
		return 0, &NullResourceError{Kind: h.Kind(), Op: "id"}
	}
	return h.id, nil
}

// Move transfers ownership to a new handle. The receiver becomes empty.
// Moving an empty handle returns an empty handle.
func (h *Handle) Move() *Handle {
	if h == nil {
		return &Handle{}
	}
	n := &Handle{b: h.b, kind: h.kind, target: h.target, id: h.id, present: h.present}
	h.id = 0
	h.present = false
	return n
}

// Release deletes the owned object. Releasing an empty handle does nothing.
func (h *Handle) Release() {
	if !h.Present() {
		return
	}
	h.b.destroy(h)
	h.id = 0
	h.present = false
}

func (h *Handle) use(op string, kinds ...Kind) (uint32, error) {
	if !h.Present() {
		return 0, &NullResourceError{Kind: h.Kind(), Op: op}
	}
	if len(kinds) > 0 {
		match := false
		for _, k := range kinds {
			if k == h.kind {
				match = true
				break
			}
		}
		if !match {
			return 0, &OperationError{Op: op, Code: InvalidOperation, Cause: "not supported on a " + h.kind.String()}
		}
	}
	return h.id, nil
}

// Bind binds the object to its natural binding point.
func (h *Handle) Bind() error {
	id, err := h.use("bind")
	if err != nil {
		return err
	}
	b := h.b
	switch h.kind {
	case KindTexture:
		b.bindTexture(h.target, id)
	case KindFramebuffer:
		b.bindFramebuffer(id)
	case KindProgram:
		b.useProgram(id)
	case KindVertexArray:
		b.bindVertexArray(id)
	case KindBuffer:
		b.api.BindBuffer(h.target, id)
	default:
		return &OperationError{Op: "bind", Code: InvalidOperation, Cause: h.kind.String() + " has no binding point"}
	}
	return b.Check("bind " + h.kind.String())
}

// Parameter sets an integer texture or sampler parameter.
func (h *Handle) Parameter(pname Enum, value int32) error {
	id, err := h.use("parameter", KindTexture, KindSampler)
	if err != nil {
		return err
	}
	if h.kind == KindSampler {
		h.b.api.SamplerParameteri(id, pname, value)
	} else {
		h.b.editTexture(h.target, id)
		h.b.api.TexParameteri(h.target, pname, value)
	}
	return h.b.Check("parameter " + pname.String())
}

// Image2D uploads level data. target is the handle target, or a cube map
// face for cube map textures. pixels may be nil to only allocate storage.
func (h *Handle) Image2D(target Enum, level int32, internalFormat Enum, width, height int32, format, typ Enum, pixels []byte) error {
	id, err := h.use("image 2D", KindTexture)
	if err != nil {
		return err
	}
	h.b.editTexture(h.target, id)
	h.b.api.TexImage2D(target, level, internalFormat, width, height, format, typ, pixels)
	return h.b.Check("image 2D")
}

// Image3D uploads a volume level.
func (h *Handle) Image3D(level int32, internalFormat Enum, width, height, depth int32, format, typ Enum, pixels []byte) error {
	id, err := h.use("image 3D", KindTexture)
	if err != nil {
		return err
	}
	h.b.editTexture(h.target, id)
	h.b.api.TexImage3D(h.target, level, internalFormat, width, height, depth, format, typ, pixels)
	return h.b.Check("image 3D")
}

// SubImage2D replaces a region of level data.
func (h *Handle) SubImage2D(level, x, y, width, height int32, format, typ Enum, pixels []byte) error {
	id, err := h.use("sub image 2D", KindTexture)
	if err != nil {
		return err
	}
	h.b.editTexture(h.target, id)
	h.b.api.TexSubImage2D(h.target, level, x, y, width, height, format, typ, pixels)
	return h.b.Check("sub image 2D")
}

// GenerateMipmap regenerates the mip chain from level 0.
func (h *Handle) GenerateMipmap() error {
	id, err := h.use("generate mipmap", KindTexture)
	if err != nil {
		return err
	}
	h.b.editTexture(h.target, id)
	h.b.api.GenerateMipmap(h.target)
	return h.b.Check("generate mipmap")
}

// AttachTexture attaches level 0 of tex to the framebuffer.
func (h *Handle) AttachTexture(attachment Enum, tex *Handle) error {
	id, err := h.use("attach texture", KindFramebuffer)
	if err != nil {
		return err
	}
	texID, err := tex.use("attach texture", KindTexture)
	if err != nil {
		return err
	}
	h.b.bindFramebuffer(id)
	h.b.api.FramebufferTexture2D(Framebuffer, attachment, tex.target, texID, 0)
	return h.b.Check("attach texture")
}

// DrawBuffers selects the color attachments written by fragment outputs.
func (h *Handle) DrawBuffers(attachments []Enum) error {
	id, err := h.use("draw buffers", KindFramebuffer)
	if err != nil {
		return err
	}
	h.b.bindFramebuffer(id)
	h.b.api.DrawBuffers(attachments)
	return h.b.Check("draw buffers")
}

// CheckComplete verifies framebuffer completeness.
func (h *Handle) CheckComplete() error {
	id, err := h.use("check framebuffer", KindFramebuffer)
	if err != nil {
		return err
	}
	h.b.bindFramebuffer(id)
	if st := h.b.api.CheckFramebufferStatus(Framebuffer); st != FramebufferComplete {
		return &OperationError{Op: "check framebuffer", Code: st, Cause: "framebuffer is not complete"}
	}
	return h.b.Check("check framebuffer")
}

// Data uploads buffer contents.
func (h *Handle) Data(data []byte, usage Enum) error {
	id, err := h.use("buffer data", KindBuffer)
	if err != nil {
		return err
	}
	h.b.api.BindBuffer(h.target, id)
	h.b.api.BufferData(h.target, data, usage)
	return h.b.Check("buffer data")
}

// Begin starts a query of the handle's target.
func (h *Handle) Begin() error {
	id, err := h.use("begin query", KindQuery)
	if err != nil {
		return err
	}
	h.b.api.BeginQuery(h.target, id)
	return h.b.Check("begin query")
}

// End ends the active query of the handle's target.
func (h *Handle) End() error {
	if _, err := h.use("end query", KindQuery); err != nil {
		return err
	}
	h.b.api.EndQuery(h.target)
	return h.b.Check("end query")
}

// Available reports whether the query result can be read without stalling.
func (h *Handle) Available() (bool, error) {
	id, err := h.use("query available", KindQuery)
	if err != nil {
		return false, err
	}
	ok := h.b.api.QueryResultAvailable(id)
	return ok, h.b.Check("query available")
}

// Result reads the query result.
func (h *Handle) Result() (uint64, error) {
	id, err := h.use("query result", KindQuery)
	if err != nil {
		return 0, err
	}
	v := h.b.api.QueryResult(id)
	return v, h.b.Check("query result")
}

// Source replaces the shader's source strings. Each string keeps its own
// line numbering in compiler diagnostics.
func (h *Handle) Source(sources ...string) error {
	id, err := h.use("shader source", KindShader)
	if err != nil {
		return err
	}
	h.b.api.ShaderSource(id, sources)
	return h.b.Check("shader source")
}

// Compile compiles the shader and returns the status and info log. A failed
// compile is not an error here; the caller decides how to report the log.
func (h *Handle) Compile() (bool, string, error) {
	id, err := h.use("compile shader", KindShader)
	if err != nil {
		return false, "", err
	}
	h.b.api.CompileShader(id)
	ok, log := h.b.api.ShaderStatus(id)
	return ok, log, h.b.Check("compile shader")
}

// Attach attaches a shader object to the program.
func (h *Handle) Attach(shader *Handle) error {
	id, err := h.use("attach shader", KindProgram)
	if err != nil {
		return err
	}
	sid, err := shader.use("attach shader", KindShader)
	if err != nil {
		return err
	}
	h.b.api.AttachShader(id, sid)
	return h.b.Check("attach shader")
}

// Detach detaches a shader object from the program.
func (h *Handle) Detach(shader *Handle) error {
	id, err := h.use("detach shader", KindProgram)
	if err != nil {
		return err
	}
	sid, err := shader.use("detach shader", KindShader)
	if err != nil {
		return err
	}
	h.b.api.DetachShader(id, sid)
	return h.b.Check("detach shader")
}

// Link links the program and returns the status and info log.
func (h *Handle) Link() (bool, string, error) {
	id, err := h.use("link program", KindProgram)
	if err != nil {
		return false, "", err
	}
	h.b.api.LinkProgram(id)
	ok, log := h.b.api.ProgramStatus(id)
	return ok, log, h.b.Check("link program")
}

// Uniforms returns the active uniforms of a linked program.
func (h *Handle) Uniforms() ([]UniformInfo, error) {
	id, err := h.use("active uniforms", KindProgram)
	if err != nil {
		return nil, err
	}
	u := h.b.api.ActiveUniforms(id)
	return u, h.b.Check("active uniforms")
}

// UniformLocation returns the location of a uniform, -1 if it is not
// active.
func (h *Handle) UniformLocation(name string) (int32, error) {
	id, err := h.use("uniform location", KindProgram)
	if err != nil {
		return -1, err
	}
	loc := h.b.api.UniformLocation(id, name)
	return loc, h.b.Check("uniform location")
}

// Uniformf sets a float uniform of 1 to 4 components. The program is made
// current first. Location -1 is ignored.
func (h *Handle) Uniformf(loc int32, v ...float32) error {
	return h.uniform("uniform float", loc, func() { h.b.api.Uniformf(loc, v...) })
}

// Uniformi sets an int or sampler uniform of 1 to 4 components.
func (h *Handle) Uniformi(loc int32, v ...int32) error {
	return h.uniform("uniform int", loc, func() { h.b.api.Uniformi(loc, v...) })
}

// Uniformfv sets a float array or vector array uniform.
func (h *Handle) Uniformfv(loc int32, components int, v []float32) error {
	return h.uniform("uniform array", loc, func() { h.b.api.Uniformfv(loc, components, v) })
}

func (h *Handle) uniform(op string, loc int32, set func()) error {
	id, err := h.use(op, KindProgram)
	if err != nil {
		return err
	}
	if loc < 0 {
		return nil
	}
	h.b.useProgram(id)
	set()
	return h.b.Check(op)
}

// Binary returns the provider's binary representation of a linked program.
func (h *Handle) Binary() (Enum, []byte, error) {
	id, err := h.use("program binary", KindProgram)
	if err != nil {
		return None, nil, err
	}
	if !h.b.caps.Has(FeatureProgramBinary) {
		return None, nil, &OperationError{Op: "program binary", Code: InvalidOperation, Cause: "not supported by " + h.b.caps.Name}
	}
	format, data := h.b.api.ProgramBinary(id)
	return format, data, h.b.Check("program binary")
}

// AttribPointer binds buf to the vertex array and describes a float vertex
// attribute read from it.
func (h *Handle) AttribPointer(buf *Handle, index uint32, size int32, typ Enum, stride, offset int32) error {
	id, err := h.use("vertex attrib pointer", KindVertexArray)
	if err != nil {
		return err
	}
	bid, err := buf.use("vertex attrib pointer", KindBuffer)
	if err != nil {
		return err
	}
	h.b.bindVertexArray(id)
	h.b.api.BindBuffer(buf.target, bid)
	h.b.api.EnableVertexAttribArray(index)
	h.b.api.VertexAttribPointer(index, size, typ, false, stride, offset)
	return h.b.Check("vertex attrib pointer")
}
