//go:build !js

// Package opengl is the desktop provider, backed by OpenGL 4.1 core.
package opengl

import (
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/richinsley/goshaderchain/backend"
)

var (
	initOnce sync.Once
	initErr  error
)

// GL is a backend.API over the current OpenGL context. Create it on the
// thread that owns the context, after the context is made current.
type GL struct {
	caps backend.Caps
	// pending holds errors raised by the provider itself, such as calls to
	// entry points 4.1 does not have. They are reported before GL errors.
	pending []backend.Enum
}

var _ backend.API = (*GL)(nil)

// New loads the GL entry points and queries the context capabilities.
func New() (*GL, error) {
	initOnce.Do(func() {
		initErr = gl.Init()
	})
	if initErr != nil {
		return nil, fmt.Errorf("opengl: init: %w", initErr)
	}
	g := &GL{}
	var maxSize, maxUnits int32
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &maxSize)
	gl.GetIntegerv(gl.MAX_COMBINED_TEXTURE_IMAGE_UNITS, &maxUnits)
	g.caps = backend.Caps{
		// 4.1 core has timer queries, polygon mode and program binaries.
		// Image load/store, ClearTexImage and glMemoryBarrier arrive later.
		Features: backend.FeatureTimerQuery | backend.FeaturePolygonMode |
			backend.FeatureProgramBinary | backend.FeatureFloatRenderTarget,
		MaxTextureSize:  int(maxSize),
		MaxTextureUnits: int(maxUnits),
		Name:            "OpenGL " + gl.GoStr(gl.GetString(gl.VERSION)),
	}
	return g, nil
}

// NewBackend is New wrapped in a state-tracking backend.
func NewBackend(opts ...backend.Option) (*backend.Backend, error) {
	g, err := New()
	if err != nil {
		return nil, err
	}
	return backend.New(g, opts...), nil
}

func ptr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

func (g *GL) unsupported() {
	g.pending = append(g.pending, backend.InvalidOperation)
}

func (g *GL) Caps() backend.Caps { return g.caps }

func (g *GL) GetError() backend.Enum {
	if len(g.pending) > 0 {
		code := g.pending[0]
		g.pending = g.pending[1:]
		return code
	}
	return backend.Enum(gl.GetError())
}

func (g *GL) Create(kind backend.Kind, target backend.Enum) uint32 {
	var id uint32
	switch kind {
	case backend.KindTexture:
		gl.GenTextures(1, &id)
	case backend.KindBuffer:
		gl.GenBuffers(1, &id)
	case backend.KindFramebuffer:
		gl.GenFramebuffers(1, &id)
	case backend.KindRenderbuffer:
		gl.GenRenderbuffers(1, &id)
	case backend.KindQuery:
		gl.GenQueries(1, &id)
	case backend.KindProgram:
		id = gl.CreateProgram()
	case backend.KindShader:
		id = gl.CreateShader(uint32(target))
	case backend.KindSampler:
		gl.GenSamplers(1, &id)
	case backend.KindVertexArray:
		gl.GenVertexArrays(1, &id)
	}
	return id
}

func (g *GL) Delete(kind backend.Kind, id uint32) {
	switch kind {
	case backend.KindTexture:
		gl.DeleteTextures(1, &id)
	case backend.KindBuffer:
		gl.DeleteBuffers(1, &id)
	case backend.KindFramebuffer:
		gl.DeleteFramebuffers(1, &id)
	case backend.KindRenderbuffer:
		gl.DeleteRenderbuffers(1, &id)
	case backend.KindQuery:
		gl.DeleteQueries(1, &id)
	case backend.KindProgram:
		gl.DeleteProgram(id)
	case backend.KindShader:
		gl.DeleteShader(id)
	case backend.KindSampler:
		gl.DeleteSamplers(1, &id)
	case backend.KindVertexArray:
		gl.DeleteVertexArrays(1, &id)
	}
}

func (g *GL) ActiveTexture(unit uint32) { gl.ActiveTexture(gl.TEXTURE0 + unit) }

func (g *GL) BindTexture(target backend.Enum, texture uint32) {
	gl.BindTexture(uint32(target), texture)
}

func (g *GL) TexImage2D(target backend.Enum, level int32, internalFormat backend.Enum, width, height int32, format, typ backend.Enum, pixels []byte) {
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(uint32(target), level, int32(internalFormat), width, height, 0, uint32(format), uint32(typ), ptr(pixels))
}

func (g *GL) TexImage3D(target backend.Enum, level int32, internalFormat backend.Enum, width, height, depth int32, format, typ backend.Enum, pixels []byte) {
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage3D(uint32(target), level, int32(internalFormat), width, height, depth, 0, uint32(format), uint32(typ), ptr(pixels))
}

func (g *GL) TexSubImage2D(target backend.Enum, level, x, y, width, height int32, format, typ backend.Enum, pixels []byte) {
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexSubImage2D(uint32(target), level, x, y, width, height, uint32(format), uint32(typ), ptr(pixels))
}

func (g *GL) TexParameteri(target, pname backend.Enum, param int32) {
	gl.TexParameteri(uint32(target), uint32(pname), param)
}

func (g *GL) GenerateMipmap(target backend.Enum) { gl.GenerateMipmap(uint32(target)) }

// ClearTexImage is GL 4.4; callers feature-test FeatureClearTexImage.
func (g *GL) ClearTexImage(texture uint32, level int32, format, typ backend.Enum) { g.unsupported() }

func (g *GL) BindSampler(unit, sampler uint32) { gl.BindSampler(unit, sampler) }

func (g *GL) SamplerParameteri(sampler uint32, pname backend.Enum, param int32) {
	gl.SamplerParameteri(sampler, uint32(pname), param)
}

func (g *GL) BindFramebuffer(target backend.Enum, framebuffer uint32) {
	gl.BindFramebuffer(uint32(target), framebuffer)
}

func (g *GL) FramebufferTexture2D(target, attachment, texTarget backend.Enum, texture uint32, level int32) {
	gl.FramebufferTexture2D(uint32(target), uint32(attachment), uint32(texTarget), texture, level)
}

func (g *GL) DrawBuffers(attachments []backend.Enum) {
	if len(attachments) == 0 {
		return
	}
	bufs := make([]uint32, len(attachments))
	for i, a := range attachments {
		bufs[i] = uint32(a)
	}
	gl.DrawBuffers(int32(len(bufs)), &bufs[0])
}

func (g *GL) CheckFramebufferStatus(target backend.Enum) backend.Enum {
	return backend.Enum(gl.CheckFramebufferStatus(uint32(target)))
}

func (g *GL) ReadPixels(x, y, width, height int32, format, typ backend.Enum, dst []byte) {
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(x, y, width, height, uint32(format), uint32(typ), ptr(dst))
}

func (g *GL) ShaderSource(shader uint32, sources []string) {
	if len(sources) == 0 {
		return
	}
	terminated := make([]string, len(sources))
	for i, s := range sources {
		terminated[i] = s + "\x00"
	}
	csources, free := gl.Strs(terminated...)
	gl.ShaderSource(shader, int32(len(terminated)), csources, nil)
	free()
}

func (g *GL) CompileShader(shader uint32) { gl.CompileShader(shader) }

func (g *GL) ShaderStatus(shader uint32) (bool, string) {
	var status, logLength int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
	var log string
	if logLength > 0 {
		log = strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		log = strings.TrimRight(log, "\x00")
	}
	return status == gl.TRUE, log
}

func (g *GL) AttachShader(program, shader uint32) { gl.AttachShader(program, shader) }

func (g *GL) DetachShader(program, shader uint32) { gl.DetachShader(program, shader) }

func (g *GL) LinkProgram(program uint32) {
	gl.ProgramParameteri(program, gl.PROGRAM_BINARY_RETRIEVABLE_HINT, gl.TRUE)
	gl.LinkProgram(program)
}

func (g *GL) ProgramStatus(program uint32) (bool, string) {
	var status, logLength int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
	var log string
	if logLength > 0 {
		log = strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		log = strings.TrimRight(log, "\x00")
	}
	return status == gl.TRUE, log
}

func (g *GL) UseProgram(program uint32) { gl.UseProgram(program) }

func (g *GL) ActiveUniforms(program uint32) []backend.UniformInfo {
	var count, maxLen int32
	gl.GetProgramiv(program, gl.ACTIVE_UNIFORMS, &count)
	gl.GetProgramiv(program, gl.ACTIVE_UNIFORM_MAX_LENGTH, &maxLen)
	if count == 0 || maxLen == 0 {
		return nil
	}
	out := make([]backend.UniformInfo, 0, count)
	buf := make([]uint8, maxLen+1)
	for i := int32(0); i < count; i++ {
		var length, size int32
		var typ uint32
		gl.GetActiveUniform(program, uint32(i), maxLen, &length, &size, &typ, &buf[0])
		out = append(out, backend.UniformInfo{
			Name: string(buf[:length]),
			Type: backend.Enum(typ),
			Size: size,
		})
	}
	return out
}

func (g *GL) UniformLocation(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}

func (g *GL) Uniformf(location int32, v ...float32) {
	switch len(v) {
	case 1:
		gl.Uniform1f(location, v[0])
	case 2:
		gl.Uniform2f(location, v[0], v[1])
	case 3:
		gl.Uniform3f(location, v[0], v[1], v[2])
	case 4:
		gl.Uniform4f(location, v[0], v[1], v[2], v[3])
	default:
		g.pending = append(g.pending, backend.InvalidValue)
	}
}

func (g *GL) Uniformi(location int32, v ...int32) {
	switch len(v) {
	case 1:
		gl.Uniform1i(location, v[0])
	case 2:
		gl.Uniform2i(location, v[0], v[1])
	case 3:
		gl.Uniform3i(location, v[0], v[1], v[2])
	case 4:
		gl.Uniform4i(location, v[0], v[1], v[2], v[3])
	default:
		g.pending = append(g.pending, backend.InvalidValue)
	}
}

func (g *GL) Uniformfv(location int32, components int, v []float32) {
	if len(v) == 0 || components <= 0 {
		return
	}
	count := int32(len(v) / components)
	switch components {
	case 1:
		gl.Uniform1fv(location, count, &v[0])
	case 2:
		gl.Uniform2fv(location, count, &v[0])
	case 3:
		gl.Uniform3fv(location, count, &v[0])
	case 4:
		gl.Uniform4fv(location, count, &v[0])
	default:
		g.pending = append(g.pending, backend.InvalidValue)
	}
}

func (g *GL) ProgramBinary(program uint32) (backend.Enum, []byte) {
	var n int32
	gl.GetProgramiv(program, gl.PROGRAM_BINARY_LENGTH, &n)
	if n <= 0 {
		return backend.None, nil
	}
	data := make([]byte, n)
	var length int32
	var format uint32
	gl.GetProgramBinary(program, n, &length, &format, unsafe.Pointer(&data[0]))
	return backend.Enum(format), data[:length]
}

func (g *GL) BindBuffer(target backend.Enum, buffer uint32) { gl.BindBuffer(uint32(target), buffer) }

func (g *GL) BufferData(target backend.Enum, data []byte, usage backend.Enum) {
	gl.BufferData(uint32(target), len(data), ptr(data), uint32(usage))
}

func (g *GL) BindVertexArray(array uint32) { gl.BindVertexArray(array) }

func (g *GL) EnableVertexAttribArray(index uint32) { gl.EnableVertexAttribArray(index) }

func (g *GL) VertexAttribPointer(index uint32, size int32, typ backend.Enum, normalized bool, stride, offset int32) {
	gl.VertexAttribPointer(index, size, uint32(typ), normalized, stride, gl.PtrOffset(int(offset)))
}

func (g *GL) BeginQuery(target backend.Enum, query uint32) { gl.BeginQuery(uint32(target), query) }

func (g *GL) EndQuery(target backend.Enum) { gl.EndQuery(uint32(target)) }

func (g *GL) QueryResultAvailable(query uint32) bool {
	var available int32
	gl.GetQueryObjectiv(query, gl.QUERY_RESULT_AVAILABLE, &available)
	return available == gl.TRUE
}

func (g *GL) QueryResult(query uint32) uint64 {
	var v uint64
	gl.GetQueryObjectui64v(query, gl.QUERY_RESULT, &v)
	return v
}

func (g *GL) Enable(capability backend.Enum)  { gl.Enable(uint32(capability)) }
func (g *GL) Disable(capability backend.Enum) { gl.Disable(uint32(capability)) }

func (g *GL) BlendEquationSeparate(modeRGB, modeAlpha backend.Enum) {
	gl.BlendEquationSeparate(uint32(modeRGB), uint32(modeAlpha))
}

func (g *GL) BlendFuncSeparate(srcRGB, dstRGB, srcAlpha, dstAlpha backend.Enum) {
	gl.BlendFuncSeparate(uint32(srcRGB), uint32(dstRGB), uint32(srcAlpha), uint32(dstAlpha))
}

func (g *GL) ClearColor(r, gr, b, a float32) { gl.ClearColor(r, gr, b, a) }
func (g *GL) ClearDepth(depth float64)       { gl.ClearDepth(depth) }
func (g *GL) ClearStencil(s int32)           { gl.ClearStencil(s) }
func (g *GL) Clear(mask backend.Enum)        { gl.Clear(uint32(mask)) }
func (g *GL) DepthFunc(fn backend.Enum)      { gl.DepthFunc(uint32(fn)) }

func (g *GL) PolygonMode(face, mode backend.Enum) { gl.PolygonMode(uint32(face), uint32(mode)) }

// MemoryBarrier is GL 4.2; callers feature-test FeatureMemoryBarrier.
func (g *GL) MemoryBarrier(bits backend.Enum) { g.unsupported() }

func (g *GL) Viewport(x, y, width, height int32) { gl.Viewport(x, y, width, height) }

func (g *GL) DrawArrays(mode backend.Enum, first, count int32) {
	gl.DrawArrays(uint32(mode), first, count)
}
