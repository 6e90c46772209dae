package backend

import "fmt"

// Enum is a graphics API enumerant. Values follow the OpenGL/WebGL2 numbering
// so providers can pass them through unchanged.
type Enum uint32

const (
	None Enum = 0
	Zero Enum = 0
	One  Enum = 1

	// Errors.
	NoError                     Enum = 0
	InvalidEnum                 Enum = 0x0500
	InvalidValue                Enum = 0x0501
	InvalidOperation            Enum = 0x0502
	OutOfMemory                 Enum = 0x0505
	InvalidFramebufferOperation Enum = 0x0506

	// Texture targets.
	Texture2D               Enum = 0x0DE1
	Texture3D               Enum = 0x806F
	Texture2DArray          Enum = 0x8C1A
	TextureCubeMap          Enum = 0x8513
	TextureCubeMapPositiveX Enum = 0x8515
	Texture0                Enum = 0x84C0

	// Texture and sampler parameters.
	TextureMagFilter Enum = 0x2800
	TextureMinFilter Enum = 0x2801
	TextureWrapS     Enum = 0x2802
	TextureWrapT     Enum = 0x2803
	TextureWrapR     Enum = 0x8072
	TextureBaseLevel Enum = 0x813C
	TextureMaxLevel  Enum = 0x813D
	TextureLODBias   Enum = 0x8501

	Nearest              Enum = 0x2600
	Linear               Enum = 0x2601
	NearestMipmapNearest Enum = 0x2700
	LinearMipmapNearest  Enum = 0x2701
	NearestMipmapLinear  Enum = 0x2702
	LinearMipmapLinear   Enum = 0x2703
	Repeat               Enum = 0x2901
	ClampToEdge          Enum = 0x812F
	MirroredRepeat       Enum = 0x8370

	// Pixel formats.
	Red          Enum = 0x1903
	RG           Enum = 0x8227
	RGB          Enum = 0x1907
	RGBA         Enum = 0x1908
	RedInteger   Enum = 0x8D94
	RGInteger    Enum = 0x8228
	RGBInteger   Enum = 0x8D98
	RGBAInteger  Enum = 0x8D99
	R8           Enum = 0x8229
	RG8          Enum = 0x822B
	RGB8         Enum = 0x8051
	RGBA8        Enum = 0x8058
	SRGB8        Enum = 0x8C41
	SRGB8Alpha8  Enum = 0x8C43
	R16F         Enum = 0x822D
	RG16F        Enum = 0x822F
	RGB16F       Enum = 0x881B
	RGBA16F      Enum = 0x881A
	R32F         Enum = 0x822E
	RG32F        Enum = 0x8230
	RGB32F       Enum = 0x8815
	RGBA32F      Enum = 0x8814
	R8UI         Enum = 0x8232
	RG8UI        Enum = 0x8238
	RGB8UI       Enum = 0x8D7D
	RGBA8UI      Enum = 0x8D7C
	R16UI        Enum = 0x8234
	RG16UI       Enum = 0x823A
	RGB16UI      Enum = 0x8D77
	RGBA16UI     Enum = 0x8D76
	R32UI        Enum = 0x8236
	RG32UI       Enum = 0x823C
	RGB32UI      Enum = 0x8D71
	RGBA32UI     Enum = 0x8D70
	Depth24      Enum = 0x81A6
	DepthStencil Enum = 0x84F9

	// Pixel types.
	Byte          Enum = 0x1400
	UnsignedByte  Enum = 0x1401
	Short         Enum = 0x1402
	UnsignedShort Enum = 0x1403
	Int           Enum = 0x1404
	UnsignedInt   Enum = 0x1405
	Float         Enum = 0x1406
	HalfFloat     Enum = 0x140B

	// Buffers.
	ArrayBuffer        Enum = 0x8892
	ElementArrayBuffer Enum = 0x8893
	PixelPackBuffer    Enum = 0x88EB
	UniformBuffer      Enum = 0x8A11
	StreamRead         Enum = 0x88E1
	StaticDraw         Enum = 0x88E4
	DynamicDraw        Enum = 0x88E8

	// Framebuffers.
	Framebuffer         Enum = 0x8D40
	ReadFramebuffer     Enum = 0x8CA8
	DrawFramebuffer     Enum = 0x8CA9
	ColorAttachment0    Enum = 0x8CE0
	DepthAttachment     Enum = 0x8D00
	FramebufferComplete Enum = 0x8CD5

	// Shader stages.
	FragmentShader Enum = 0x8B30
	VertexShader   Enum = 0x8B31
	GeometryShader Enum = 0x8DD9
	ComputeShader  Enum = 0x91B9

	// Queries.
	QueryResult          Enum = 0x8866
	QueryResultAvailable Enum = 0x8867
	TimeElapsed          Enum = 0x88BF
	SamplesPassed        Enum = 0x8914
	AnySamplesPassed     Enum = 0x8C2F

	// Capabilities.
	CullFace         Enum = 0x0B44
	DepthTest        Enum = 0x0B71
	StencilTest      Enum = 0x0B90
	Dither           Enum = 0x0BD0
	Blend            Enum = 0x0BE2
	ScissorTest      Enum = 0x0C11
	Multisample      Enum = 0x809D
	ProgramPointSize Enum = 0x8642
	FramebufferSRGB  Enum = 0x8DB9

	// Blend equations.
	FuncAdd             Enum = 0x8006
	Min                 Enum = 0x8007
	Max                 Enum = 0x8008
	FuncSubtract        Enum = 0x800A
	FuncReverseSubtract Enum = 0x800B

	// Blend factors.
	SrcColor              Enum = 0x0300
	OneMinusSrcColor      Enum = 0x0301
	SrcAlpha              Enum = 0x0302
	OneMinusSrcAlpha      Enum = 0x0303
	DstAlpha              Enum = 0x0304
	OneMinusDstAlpha      Enum = 0x0305
	DstColor              Enum = 0x0306
	OneMinusDstColor      Enum = 0x0307
	SrcAlphaSaturate      Enum = 0x0308
	ConstantColor         Enum = 0x8001
	OneMinusConstantColor Enum = 0x8002
	ConstantAlpha         Enum = 0x8003
	OneMinusConstantAlpha Enum = 0x8004

	// Comparison functions.
	Never    Enum = 0x0200
	Less     Enum = 0x0201
	Equal    Enum = 0x0202
	LEqual   Enum = 0x0203
	Greater  Enum = 0x0204
	NotEqual Enum = 0x0205
	GEqual   Enum = 0x0206
	Always   Enum = 0x0207

	// Clear bits.
	DepthBufferBit   Enum = 0x0100
	StencilBufferBit Enum = 0x0400
	ColorBufferBit   Enum = 0x4000

	// Memory barrier bits.
	VertexAttribArrayBarrierBit  Enum = 0x0001
	ElementArrayBarrierBit       Enum = 0x0002
	UniformBarrierBit            Enum = 0x0004
	TextureFetchBarrierBit       Enum = 0x0008
	ShaderImageAccessBarrierBit  Enum = 0x0020
	CommandBarrierBit            Enum = 0x0040
	PixelBufferBarrierBit        Enum = 0x0080
	TextureUpdateBarrierBit      Enum = 0x0100
	BufferUpdateBarrierBit       Enum = 0x0200
	FramebufferBarrierBit        Enum = 0x0400
	TransformFeedbackBarrierBit  Enum = 0x0800
	AtomicCounterBarrierBit      Enum = 0x1000
	ShaderStorageBarrierBit      Enum = 0x2000
	ClientMappedBufferBarrierBit Enum = 0x4000
	QueryBufferBarrierBit        Enum = 0x8000
	AllBarrierBits               Enum = 0xFFFFFFFF

	// Polygon modes.
	FrontAndBack Enum = 0x0408
	Point        Enum = 0x1B00
	Line         Enum = 0x1B01
	Fill         Enum = 0x1B02

	// Primitives.
	Triangles     Enum = 0x0004
	TriangleStrip Enum = 0x0005

	// Uniform types.
	FloatVec2   Enum = 0x8B50
	FloatVec3   Enum = 0x8B51
	FloatVec4   Enum = 0x8B52
	IntVec2     Enum = 0x8B53
	IntVec3     Enum = 0x8B54
	IntVec4     Enum = 0x8B55
	Bool        Enum = 0x8B56
	FloatMat3   Enum = 0x8B5B
	FloatMat4   Enum = 0x8B5C
	Sampler2D   Enum = 0x8B5E
	Sampler3D   Enum = 0x8B5F
	SamplerCube Enum = 0x8B60
)

var enumNames = map[Enum]string{
	InvalidEnum:                 "INVALID_ENUM",
	InvalidValue:                "INVALID_VALUE",
	InvalidOperation:            "INVALID_OPERATION",
	OutOfMemory:                 "OUT_OF_MEMORY",
	InvalidFramebufferOperation: "INVALID_FRAMEBUFFER_OPERATION",
	Texture2D:                   "TEXTURE_2D",
	Texture3D:                   "TEXTURE_3D",
	TextureCubeMap:              "TEXTURE_CUBE_MAP",
	RGBA8:                       "RGBA8",
	RGBA16F:                     "RGBA16F",
	RGBA32F:                     "RGBA32F",
	SRGB8Alpha8:                 "SRGB8_ALPHA8",
	FragmentShader:              "FRAGMENT_SHADER",
	VertexShader:                "VERTEX_SHADER",
	ComputeShader:               "COMPUTE_SHADER",
	GeometryShader:              "GEOMETRY_SHADER",
	TimeElapsed:                 "TIME_ELAPSED",
	Blend:                       "BLEND",
	DepthTest:                   "DEPTH_TEST",
	CullFace:                    "CULL_FACE",
	ScissorTest:                 "SCISSOR_TEST",
	StencilTest:                 "STENCIL_TEST",
	FuncAdd:                     "FUNC_ADD",
	FuncSubtract:                "FUNC_SUBTRACT",
	FuncReverseSubtract:         "FUNC_REVERSE_SUBTRACT",
	Min:                         "MIN",
	Max:                         "MAX",
	Less:                        "LESS",
	LEqual:                      "LEQUAL",
	Always:                      "ALWAYS",
}

func (e Enum) String() string {
	if s, ok := enumNames[e]; ok {
		return s
	}
	return fmt.Sprintf("0x%04X", uint32(e))
}

// StageName returns the lower-case shader stage name used in diagnostics.
func StageName(stage Enum) string {
	switch stage {
	case VertexShader:
		return "vertex"
	case FragmentShader:
		return "fragment"
	case GeometryShader:
		return "geometry"
	case ComputeShader:
		return "compute"
	}
	return stage.String()
}

var capabilities = []Enum{Blend, CullFace, DepthTest, ScissorTest, StencilTest, FramebufferSRGB, ProgramPointSize}

// IsCapability reports whether e may be passed to Enable/Disable.
func IsCapability(e Enum) bool {
	for _, c := range capabilities {
		if c == e {
			return true
		}
	}
	return false
}

// IsBlendEquation reports whether e is a blend equation mode.
func IsBlendEquation(e Enum) bool {
	switch e {
	case FuncAdd, FuncSubtract, FuncReverseSubtract, Min, Max:
		return true
	}
	return false
}

// IsBlendFactor reports whether e is a blend source/destination factor.
func IsBlendFactor(e Enum) bool {
	switch e {
	case Zero, One, SrcColor, OneMinusSrcColor, SrcAlpha, OneMinusSrcAlpha,
		DstAlpha, OneMinusDstAlpha, DstColor, OneMinusDstColor, SrcAlphaSaturate,
		ConstantColor, OneMinusConstantColor, ConstantAlpha, OneMinusConstantAlpha:
		return true
	}
	return false
}

// IsComparison reports whether e is a depth/stencil comparison function.
func IsComparison(e Enum) bool {
	return e >= Never && e <= Always
}

// ClearMask is the set of valid clear bits.
const ClearMask = ColorBufferBit | DepthBufferBit | StencilBufferBit

// barrierMask is the union of all individual memory barrier bits.
const barrierMask Enum = 0xFFFF

// IsBarrierMask reports whether bits is AllBarrierBits or a combination of
// known barrier bits.
func IsBarrierMask(bits Enum) bool {
	return bits == AllBarrierBits || bits&^barrierMask == 0
}

// IsPolygonMode reports whether e is POINT, LINE or FILL.
func IsPolygonMode(e Enum) bool {
	return e == Point || e == Line || e == Fill
}

// NeedsMipmaps reports whether a minification filter samples mip levels.
func NeedsMipmaps(minFilter Enum) bool {
	switch minFilter {
	case NearestMipmapNearest, LinearMipmapNearest, NearestMipmapLinear, LinearMipmapLinear:
		return true
	}
	return false
}

// ErrorName returns a readable cause for a GetError code.
func ErrorName(code Enum) string {
	switch code {
	case InvalidEnum:
		return "an unacceptable value is specified for an enumerated argument"
	case InvalidValue:
		return "a numeric argument is out of range"
	case InvalidOperation:
		return "the specified operation is not allowed in the current state"
	case InvalidFramebufferOperation:
		return "the framebuffer object is not complete"
	case OutOfMemory:
		return "there is not enough memory left to execute the command"
	}
	return ""
}
