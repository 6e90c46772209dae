//go:build js && wasm

// Package webgl is the browser provider, backed by a WebGL2 rendering
// context through syscall/js.
//
// WebGL objects are JavaScript values; the provider maps them to integer
// names so the core can treat both providers alike.
package webgl

import (
	"errors"
	"strings"
	"syscall/js"

	"github.com/richinsley/goshaderchain/backend"
)

// GL is a backend.API over a WebGL2RenderingContext.
type GL struct {
	gl      js.Value
	caps    backend.Caps
	objects map[uint32]js.Value
	locs    map[int32]js.Value
	next    uint32
	nextLoc int32
	pending []backend.Enum
}

var _ backend.API = (*GL)(nil)

// New wraps a WebGL2 context, typically canvas.getContext("webgl2").
func New(ctx js.Value) (*GL, error) {
	if ctx.IsUndefined() || ctx.IsNull() {
		return nil, errors.New("webgl: no WebGL2 context")
	}
	g := &GL{
		gl:      ctx,
		objects: make(map[uint32]js.Value),
		locs:    make(map[int32]js.Value),
		next:    1,
		nextLoc: 0,
	}
	g.caps = backend.Caps{
		MaxTextureSize:  ctx.Call("getParameter", 0x0D33).Int(), // MAX_TEXTURE_SIZE
		MaxTextureUnits: ctx.Call("getParameter", 0x8B4D).Int(), // MAX_COMBINED_TEXTURE_IMAGE_UNITS
		Name:            "WebGL " + ctx.Call("getParameter", 0x1F02).String(),
	}
	if !ctx.Call("getExtension", "EXT_color_buffer_float").IsNull() {
		g.caps.Features |= backend.FeatureFloatRenderTarget
	}
	return g, nil
}

// NewBackend wraps New in a backend with state tracking disabled. Browser
// contexts are shared with page scripts, so cached bindings cannot be
// trusted.
func NewBackend(ctx js.Value) (*backend.Backend, error) {
	g, err := New(ctx)
	if err != nil {
		return nil, err
	}
	return backend.New(g, backend.WithStateTracking(false)), nil
}

func e(v backend.Enum) int { return int(uint32(v)) }

func (g *GL) obj(id uint32) js.Value {
	if id == 0 {
		return js.Null()
	}
	if v, ok := g.objects[id]; ok {
		return v
	}
	g.pending = append(g.pending, backend.InvalidValue)
	return js.Null()
}

func (g *GL) unsupported() {
	g.pending = append(g.pending, backend.InvalidOperation)
}

// view copies b into a typed array matching the pixel type.
func view(b []byte, typ backend.Enum) js.Value {
	if len(b) == 0 {
		return js.Null()
	}
	u8 := js.Global().Get("Uint8Array").New(len(b))
	js.CopyBytesToJS(u8, b)
	buf := u8.Get("buffer")
	switch typ {
	case backend.Float:
		return js.Global().Get("Float32Array").New(buf, 0, len(b)/4)
	case backend.HalfFloat, backend.UnsignedShort:
		return js.Global().Get("Uint16Array").New(buf, 0, len(b)/2)
	case backend.UnsignedInt:
		return js.Global().Get("Uint32Array").New(buf, 0, len(b)/4)
	case backend.Short:
		return js.Global().Get("Int16Array").New(buf, 0, len(b)/2)
	case backend.Int:
		return js.Global().Get("Int32Array").New(buf, 0, len(b)/4)
	case backend.Byte:
		return js.Global().Get("Int8Array").New(buf)
	}
	return u8
}

func float32Array(v []float32) js.Value {
	arr := js.Global().Get("Float32Array").New(len(v))
	for i, x := range v {
		arr.SetIndex(i, x)
	}
	return arr
}

func (g *GL) Caps() backend.Caps { return g.caps }

func (g *GL) GetError() backend.Enum {
	if len(g.pending) > 0 {
		code := g.pending[0]
		g.pending = g.pending[1:]
		return code
	}
	return backend.Enum(g.gl.Call("getError").Int())
}

func (g *GL) Create(kind backend.Kind, target backend.Enum) uint32 {
	var v js.Value
	switch kind {
	case backend.KindTexture:
		v = g.gl.Call("createTexture")
	case backend.KindBuffer:
		v = g.gl.Call("createBuffer")
	case backend.KindFramebuffer:
		v = g.gl.Call("createFramebuffer")
	case backend.KindRenderbuffer:
		v = g.gl.Call("createRenderbuffer")
	case backend.KindQuery:
		v = g.gl.Call("createQuery")
	case backend.KindProgram:
		v = g.gl.Call("createProgram")
	case backend.KindShader:
		v = g.gl.Call("createShader", e(target))
	case backend.KindSampler:
		v = g.gl.Call("createSampler")
	case backend.KindVertexArray:
		v = g.gl.Call("createVertexArray")
	default:
		return 0
	}
	if v.IsNull() || v.IsUndefined() {
		return 0
	}
	id := g.next
	g.next++
	g.objects[id] = v
	return id
}

func (g *GL) Delete(kind backend.Kind, id uint32) {
	v, ok := g.objects[id]
	if !ok {
		return
	}
	delete(g.objects, id)
	switch kind {
	case backend.KindTexture:
		g.gl.Call("deleteTexture", v)
	case backend.KindBuffer:
		g.gl.Call("deleteBuffer", v)
	case backend.KindFramebuffer:
		g.gl.Call("deleteFramebuffer", v)
	case backend.KindRenderbuffer:
		g.gl.Call("deleteRenderbuffer", v)
	case backend.KindQuery:
		g.gl.Call("deleteQuery", v)
	case backend.KindProgram:
		g.gl.Call("deleteProgram", v)
	case backend.KindShader:
		g.gl.Call("deleteShader", v)
	case backend.KindSampler:
		g.gl.Call("deleteSampler", v)
	case backend.KindVertexArray:
		g.gl.Call("deleteVertexArray", v)
	}
}

func (g *GL) ActiveTexture(unit uint32) {
	g.gl.Call("activeTexture", e(backend.Texture0)+int(unit))
}

func (g *GL) BindTexture(target backend.Enum, texture uint32) {
	g.gl.Call("bindTexture", e(target), g.obj(texture))
}

func (g *GL) TexImage2D(target backend.Enum, level int32, internalFormat backend.Enum, width, height int32, format, typ backend.Enum, pixels []byte) {
	g.gl.Call("pixelStorei", 0x0CF5, 1) // UNPACK_ALIGNMENT
	g.gl.Call("texImage2D", e(target), level, e(internalFormat), width, height, 0, e(format), e(typ), view(pixels, typ))
}

func (g *GL) TexImage3D(target backend.Enum, level int32, internalFormat backend.Enum, width, height, depth int32, format, typ backend.Enum, pixels []byte) {
	g.gl.Call("pixelStorei", 0x0CF5, 1)
	g.gl.Call("texImage3D", e(target), level, e(internalFormat), width, height, depth, 0, e(format), e(typ), view(pixels, typ))
}

func (g *GL) TexSubImage2D(target backend.Enum, level, x, y, width, height int32, format, typ backend.Enum, pixels []byte) {
	g.gl.Call("pixelStorei", 0x0CF5, 1)
	g.gl.Call("texSubImage2D", e(target), level, x, y, width, height, e(format), e(typ), view(pixels, typ))
}

func (g *GL) TexParameteri(target, pname backend.Enum, param int32) {
	g.gl.Call("texParameteri", e(target), e(pname), param)
}

func (g *GL) GenerateMipmap(target backend.Enum) { g.gl.Call("generateMipmap", e(target)) }

func (g *GL) ClearTexImage(texture uint32, level int32, format, typ backend.Enum) { g.unsupported() }

func (g *GL) BindSampler(unit, sampler uint32) { g.gl.Call("bindSampler", unit, g.obj(sampler)) }

func (g *GL) SamplerParameteri(sampler uint32, pname backend.Enum, param int32) {
	g.gl.Call("samplerParameteri", g.obj(sampler), e(pname), param)
}

func (g *GL) BindFramebuffer(target backend.Enum, framebuffer uint32) {
	g.gl.Call("bindFramebuffer", e(target), g.obj(framebuffer))
}

func (g *GL) FramebufferTexture2D(target, attachment, texTarget backend.Enum, texture uint32, level int32) {
	g.gl.Call("framebufferTexture2D", e(target), e(attachment), e(texTarget), g.obj(texture), level)
}

func (g *GL) DrawBuffers(attachments []backend.Enum) {
	arr := make([]any, len(attachments))
	for i, a := range attachments {
		arr[i] = e(a)
	}
	g.gl.Call("drawBuffers", js.ValueOf(arr))
}

func (g *GL) CheckFramebufferStatus(target backend.Enum) backend.Enum {
	return backend.Enum(g.gl.Call("checkFramebufferStatus", e(target)).Int())
}

func (g *GL) ReadPixels(x, y, width, height int32, format, typ backend.Enum, dst []byte) {
	u8 := js.Global().Get("Uint8Array").New(len(dst))
	g.gl.Call("pixelStorei", 0x0D05, 1) // PACK_ALIGNMENT
	if typ == backend.UnsignedByte {
		g.gl.Call("readPixels", x, y, width, height, e(format), e(typ), u8)
	} else {
		g.gl.Call("readPixels", x, y, width, height, e(format), e(typ), view(dst, typ))
	}
	js.CopyBytesToGo(dst, u8)
}

// ShaderSource joins the sources: WebGL accepts a single string.
func (g *GL) ShaderSource(shader uint32, sources []string) {
	g.gl.Call("shaderSource", g.obj(shader), strings.Join(sources, ""))
}

func (g *GL) CompileShader(shader uint32) { g.gl.Call("compileShader", g.obj(shader)) }

func (g *GL) ShaderStatus(shader uint32) (bool, string) {
	s := g.obj(shader)
	ok := g.gl.Call("getShaderParameter", s, 0x8B81).Bool() // COMPILE_STATUS
	log := g.gl.Call("getShaderInfoLog", s)
	if log.IsNull() {
		return ok, ""
	}
	return ok, log.String()
}

func (g *GL) AttachShader(program, shader uint32) {
	g.gl.Call("attachShader", g.obj(program), g.obj(shader))
}

func (g *GL) DetachShader(program, shader uint32) {
	g.gl.Call("detachShader", g.obj(program), g.obj(shader))
}

func (g *GL) LinkProgram(program uint32) { g.gl.Call("linkProgram", g.obj(program)) }

func (g *GL) ProgramStatus(program uint32) (bool, string) {
	p := g.obj(program)
	ok := g.gl.Call("getProgramParameter", p, 0x8B82).Bool() // LINK_STATUS
	log := g.gl.Call("getProgramInfoLog", p)
	if log.IsNull() {
		return ok, ""
	}
	return ok, log.String()
}

func (g *GL) UseProgram(program uint32) { g.gl.Call("useProgram", g.obj(program)) }

func (g *GL) ActiveUniforms(program uint32) []backend.UniformInfo {
	p := g.obj(program)
	n := g.gl.Call("getProgramParameter", p, 0x8B86).Int() // ACTIVE_UNIFORMS
	out := make([]backend.UniformInfo, 0, n)
	for i := 0; i < n; i++ {
		info := g.gl.Call("getActiveUniform", p, i)
		if info.IsNull() {
			continue
		}
		out = append(out, backend.UniformInfo{
			Name: info.Get("name").String(),
			Type: backend.Enum(info.Get("type").Int()),
			Size: int32(info.Get("size").Int()),
		})
	}
	return out
}

func (g *GL) UniformLocation(program uint32, name string) int32 {
	loc := g.gl.Call("getUniformLocation", g.obj(program), name)
	if loc.IsNull() {
		return -1
	}
	id := g.nextLoc
	g.nextLoc++
	g.locs[id] = loc
	return id
}

func (g *GL) loc(location int32) (js.Value, bool) {
	v, ok := g.locs[location]
	return v, ok
}

func (g *GL) Uniformf(location int32, v ...float32) {
	l, ok := g.loc(location)
	if !ok || len(v) < 1 || len(v) > 4 {
		return
	}
	args := []any{l}
	for _, x := range v {
		args = append(args, x)
	}
	g.gl.Call("uniform"+string(rune('0'+len(v)))+"f", args...)
}

func (g *GL) Uniformi(location int32, v ...int32) {
	l, ok := g.loc(location)
	if !ok || len(v) < 1 || len(v) > 4 {
		return
	}
	args := []any{l}
	for _, x := range v {
		args = append(args, x)
	}
	g.gl.Call("uniform"+string(rune('0'+len(v)))+"i", args...)
}

func (g *GL) Uniformfv(location int32, components int, v []float32) {
	l, ok := g.loc(location)
	if !ok || components < 1 || components > 4 {
		return
	}
	g.gl.Call("uniform"+string(rune('0'+components))+"fv", l, float32Array(v))
}

// ProgramBinary is not exposed by WebGL.
func (g *GL) ProgramBinary(program uint32) (backend.Enum, []byte) {
	g.unsupported()
	return backend.None, nil
}

func (g *GL) BindBuffer(target backend.Enum, buffer uint32) {
	g.gl.Call("bindBuffer", e(target), g.obj(buffer))
}

func (g *GL) BufferData(target backend.Enum, data []byte, usage backend.Enum) {
	g.gl.Call("bufferData", e(target), view(data, backend.UnsignedByte), e(usage))
}

func (g *GL) BindVertexArray(array uint32) { g.gl.Call("bindVertexArray", g.obj(array)) }

func (g *GL) EnableVertexAttribArray(index uint32) { g.gl.Call("enableVertexAttribArray", index) }

func (g *GL) VertexAttribPointer(index uint32, size int32, typ backend.Enum, normalized bool, stride, offset int32) {
	g.gl.Call("vertexAttribPointer", index, size, e(typ), normalized, stride, offset)
}

func (g *GL) BeginQuery(target backend.Enum, query uint32) {
	g.gl.Call("beginQuery", e(target), g.obj(query))
}

func (g *GL) EndQuery(target backend.Enum) { g.gl.Call("endQuery", e(target)) }

func (g *GL) QueryResultAvailable(query uint32) bool {
	return g.gl.Call("getQueryParameter", g.obj(query), e(backend.QueryResultAvailable)).Bool()
}

func (g *GL) QueryResult(query uint32) uint64 {
	return uint64(g.gl.Call("getQueryParameter", g.obj(query), e(backend.QueryResult)).Float())
}

func (g *GL) Enable(capability backend.Enum)  { g.gl.Call("enable", e(capability)) }
func (g *GL) Disable(capability backend.Enum) { g.gl.Call("disable", e(capability)) }

func (g *GL) BlendEquationSeparate(modeRGB, modeAlpha backend.Enum) {
	g.gl.Call("blendEquationSeparate", e(modeRGB), e(modeAlpha))
}

func (g *GL) BlendFuncSeparate(srcRGB, dstRGB, srcAlpha, dstAlpha backend.Enum) {
	g.gl.Call("blendFuncSeparate", e(srcRGB), e(dstRGB), e(srcAlpha), e(dstAlpha))
}

func (g *GL) ClearColor(r, gr, b, a float32) { g.gl.Call("clearColor", r, gr, b, a) }
func (g *GL) ClearDepth(depth float64)       { g.gl.Call("clearDepth", depth) }
func (g *GL) ClearStencil(s int32)           { g.gl.Call("clearStencil", s) }
func (g *GL) Clear(mask backend.Enum)        { g.gl.Call("clear", e(mask)) }
func (g *GL) DepthFunc(fn backend.Enum)      { g.gl.Call("depthFunc", e(fn)) }

func (g *GL) PolygonMode(face, mode backend.Enum) { g.unsupported() }

func (g *GL) MemoryBarrier(bits backend.Enum) { g.unsupported() }

func (g *GL) Viewport(x, y, width, height int32) { g.gl.Call("viewport", x, y, width, height) }

func (g *GL) DrawArrays(mode backend.Enum, first, count int32) {
	g.gl.Call("drawArrays", e(mode), first, count)
}
