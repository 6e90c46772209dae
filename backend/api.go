package backend

// Kind identifies the type of a backend object.
type Kind uint8

const (
	KindTexture Kind = iota + 1
	KindBuffer
	KindFramebuffer
	KindRenderbuffer
	KindQuery
	KindProgram
	KindShader
	KindSampler
	KindVertexArray
)

func (k Kind) String() string {
	switch k {
	case KindTexture:
		return "texture"
	case KindBuffer:
		return "buffer"
	case KindFramebuffer:
		return "framebuffer"
	case KindRenderbuffer:
		return "renderbuffer"
	case KindQuery:
		return "query"
	case KindProgram:
		return "program"
	case KindShader:
		return "shader"
	case KindSampler:
		return "sampler"
	case KindVertexArray:
		return "vertex array"
	}
	return "unknown"
}

// Feature is a bit set of optional provider capabilities.
type Feature uint32

const (
	FeatureTimerQuery Feature = 1 << iota
	FeatureImageLoadStore
	FeatureClearTexImage
	FeaturePolygonMode
	FeatureMemoryBarrier
	FeatureProgramBinary
	FeatureFloatRenderTarget
)

// Caps describes what a provider supports. Optional calls must be
// feature-tested against Caps before use.
type Caps struct {
	Features        Feature
	MaxTextureSize  int
	MaxTextureUnits int
	// Name is a human readable description, e.g. the GL_VERSION string.
	Name string
}

// Has reports whether all of f are supported.
func (c Caps) Has(f Feature) bool {
	return c.Features&f == f
}

// UniformInfo describes an active uniform reported by program reflection.
type UniformInfo struct {
	Name string
	Type Enum
	Size int32
}

// API is the raw call surface of a concrete graphics API. Implementations
// live in backend/opengl (desktop) and backend/webgl (browser); the core only
// reaches them through a Backend.
//
// Calls do not return errors: like the underlying APIs, failures are latched
// and reported by GetError.
type API interface {
	Caps() Caps
	GetError() Enum

	// Create allocates an object of the given kind. target selects the
	// object type for polymorphic kinds (shader stage, query target);
	// it is ignored otherwise. Zero means allocation failed.
	Create(kind Kind, target Enum) uint32
	Delete(kind Kind, id uint32)

	ActiveTexture(unit uint32)
	BindTexture(target Enum, texture uint32)
	TexImage2D(target Enum, level int32, internalFormat Enum, width, height int32, format, typ Enum, pixels []byte)
	TexImage3D(target Enum, level int32, internalFormat Enum, width, height, depth int32, format, typ Enum, pixels []byte)
	TexSubImage2D(target Enum, level, x, y, width, height int32, format, typ Enum, pixels []byte)
	TexParameteri(target, pname Enum, param int32)
	GenerateMipmap(target Enum)
	ClearTexImage(texture uint32, level int32, format, typ Enum)

	BindSampler(unit, sampler uint32)
	SamplerParameteri(sampler uint32, pname Enum, param int32)

	BindFramebuffer(target Enum, framebuffer uint32)
	FramebufferTexture2D(target, attachment, texTarget Enum, texture uint32, level int32)
	DrawBuffers(attachments []Enum)
	CheckFramebufferStatus(target Enum) Enum
	ReadPixels(x, y, width, height int32, format, typ Enum, dst []byte)

	ShaderSource(shader uint32, sources []string)
	CompileShader(shader uint32)
	ShaderStatus(shader uint32) (ok bool, log string)
	AttachShader(program, shader uint32)
	DetachShader(program, shader uint32)
	LinkProgram(program uint32)
	ProgramStatus(program uint32) (ok bool, log string)
	UseProgram(program uint32)
	ActiveUniforms(program uint32) []UniformInfo
	UniformLocation(program uint32, name string) int32
	Uniformf(location int32, v ...float32)
	Uniformi(location int32, v ...int32)
	Uniformfv(location int32, components int, v []float32)
	ProgramBinary(program uint32) (format Enum, data []byte)

	BindBuffer(target Enum, buffer uint32)
	BufferData(target Enum, data []byte, usage Enum)
	BindVertexArray(array uint32)
	EnableVertexAttribArray(index uint32)
	VertexAttribPointer(index uint32, size int32, typ Enum, normalized bool, stride, offset int32)

	BeginQuery(target Enum, query uint32)
	EndQuery(target Enum)
	QueryResultAvailable(query uint32) bool
	QueryResult(query uint32) uint64

	Enable(capability Enum)
	Disable(capability Enum)
	BlendEquationSeparate(modeRGB, modeAlpha Enum)
	BlendFuncSeparate(srcRGB, dstRGB, srcAlpha, dstAlpha Enum)
	ClearColor(r, g, b, a float32)
	ClearDepth(depth float64)
	ClearStencil(s int32)
	Clear(mask Enum)
	DepthFunc(fn Enum)
	PolygonMode(face, mode Enum)
	MemoryBarrier(bits Enum)
	Viewport(x, y, width, height int32)
	DrawArrays(mode Enum, first, count int32)
}
