// Package backendtest provides an in-memory backend.API for tests that run
// without a GPU. The fake allocates object names, tracks bindings and
// texture shapes, reflects uniforms from shader source and records every
// call so tests can assert on exactly what reached the provider.
package backendtest

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/richinsley/goshaderchain/backend"
)

// Call is one recorded API call.
type Call struct {
	Name string
	Args []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s%v", c.Name, c.Args)
}

// Texture is the fake's view of a texture object.
type Texture struct {
	Target   backend.Enum
	Internal backend.Enum
	Width    int32
	Height   int32
	Depth    int32
	Uploads  int
	Mipmaps  int
	Params   map[backend.Enum]int32
	Cleared  int
	LastData []byte
}

// Draw is a snapshot of the bindings at a DrawArrays call.
type Draw struct {
	Framebuffer uint32
	// Target is the texture attached to color attachment 0 of Framebuffer,
	// zero for the default framebuffer.
	Target   uint32
	Program  uint32
	Viewport [4]int32
	// Units maps texture unit to the texture bound on it.
	Units map[uint32]uint32
	Count int32
}

type shaderObj struct {
	stage    backend.Enum
	sources  []string
	compiled bool
	log      string
}

type programObj struct {
	shaders  []uint32
	linked   bool
	log      string
	uniforms []backend.UniformInfo
	locs     map[string]int32
}

type unitTarget struct {
	unit   uint32
	target backend.Enum
}

// Fake implements backend.API.
type Fake struct {
	CapsValue backend.Caps

	// FailCompile makes compilation fail for any shader whose sources
	// contain the substring.
	FailCompile string
	// FailLink makes linking fail when any attached shader contains it.
	FailLink string
	// QueryPolls is the number of availability polls before a query result
	// is ready.
	QueryPolls int
	// ElapsedNS is the value returned for TIME_ELAPSED queries.
	ElapsedNS uint64

	Calls []Call
	Draws []Draw

	nextID   uint32
	live     map[uint32]backend.Kind
	errs     []backend.Enum
	failOn   map[string]backend.Enum
	textures map[uint32]*Texture
	shaders  map[uint32]*shaderObj
	programs map[uint32]*programObj
	queries  map[uint32]int
	attach   map[uint32]uint32
	uniforms map[int32][]float32
	nextLoc  int32

	activeUnit  uint32
	units       map[unitTarget]uint32
	framebuffer uint32
	program     uint32
	viewport    [4]int32
	enabled     map[backend.Enum]bool
}

var _ backend.API = (*Fake)(nil)

// AllFeatures is the feature set reported by New.
const AllFeatures = backend.FeatureTimerQuery | backend.FeatureImageLoadStore |
	backend.FeatureClearTexImage | backend.FeaturePolygonMode | backend.FeatureMemoryBarrier |
	backend.FeatureProgramBinary | backend.FeatureFloatRenderTarget

// New returns a fake reporting every feature.
func New() *Fake {
	return &Fake{
		CapsValue: backend.Caps{
			Features:        AllFeatures,
			MaxTextureSize:  8192,
			MaxTextureUnits: 16,
			Name:            "fake",
		},
		QueryPolls: 2,
		ElapsedNS:  1_000_000,
		nextID:     1,
		live:       make(map[uint32]backend.Kind),
		failOn:     make(map[string]backend.Enum),
		textures:   make(map[uint32]*Texture),
		shaders:    make(map[uint32]*shaderObj),
		programs:   make(map[uint32]*programObj),
		queries:    make(map[uint32]int),
		attach:     make(map[uint32]uint32),
		uniforms:   make(map[int32][]float32),
		units:      make(map[unitTarget]uint32),
		enabled:    make(map[backend.Enum]bool),
		nextLoc:    1,
	}
}

// NewBackend returns a Backend over a fresh fake.
func NewBackend(opts ...backend.Option) (*backend.Backend, *Fake) {
	f := New()
	return backend.New(f, opts...), f
}

func (f *Fake) record(name string, args ...any) {
	f.Calls = append(f.Calls, Call{Name: name, Args: args})
	if code, ok := f.failOn[name]; ok {
		delete(f.failOn, name)
		f.errs = append(f.errs, code)
	}
}

func (f *Fake) latch(code backend.Enum) {
	f.errs = append(f.errs, code)
}

// FailOn latches code after the next call named name.
func (f *Fake) FailOn(name string, code backend.Enum) {
	f.failOn[name] = code
}

// InjectError latches code immediately.
func (f *Fake) InjectError(code backend.Enum) {
	f.latch(code)
}

// ResetCalls clears the call and draw logs.
func (f *Fake) ResetCalls() {
	f.Calls = nil
	f.Draws = nil
}

// Count returns how many recorded calls are named name.
func (f *Fake) Count(name string) int {
	n := 0
	for _, c := range f.Calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// Names returns the recorded call names in order.
func (f *Fake) Names() []string {
	out := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		out[i] = c.Name
	}
	return out
}

// Live returns the number of live objects of kind.
func (f *Fake) Live(kind backend.Kind) int {
	n := 0
	for _, k := range f.live {
		if k == kind {
			n++
		}
	}
	return n
}

// Alive reports whether id names a live object.
func (f *Fake) Alive(id uint32) bool {
	_, ok := f.live[id]
	return ok
}

// Texture returns the state of texture id, nil if unknown.
func (f *Fake) Texture(id uint32) *Texture { return f.textures[id] }

// Bound returns the texture bound to target on unit, 0 when none.
func (f *Fake) Bound(unit uint32, target backend.Enum) uint32 {
	return f.units[unitTarget{unit, target}]
}

// Enabled reports whether a capability was last enabled.
func (f *Fake) Enabled(capability backend.Enum) bool { return f.enabled[capability] }

// Uniform returns the last value set on a program's uniform.
func (f *Fake) Uniform(program uint32, name string) ([]float32, bool) {
	p, ok := f.programs[program]
	if !ok {
		return nil, false
	}
	loc, ok := p.locs[name]
	if !ok {
		return nil, false
	}
	v, ok := f.uniforms[loc]
	return v, ok
}

// ShaderSources returns the sources given to a shader object.
func (f *Fake) ShaderSources(id uint32) []string {
	if s, ok := f.shaders[id]; ok {
		return s.sources
	}
	return nil
}

// Programs returns the ids of linked programs in ascending order.
func (f *Fake) Programs() []uint32 {
	var ids []uint32
	for id, p := range f.programs {
		if p.linked {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *Fake) Caps() backend.Caps { return f.CapsValue }

func (f *Fake) GetError() backend.Enum {
	if len(f.errs) == 0 {
		return backend.NoError
	}
	code := f.errs[0]
	f.errs = f.errs[1:]
	return code
}

func (f *Fake) Create(kind backend.Kind, target backend.Enum) uint32 {
	id := f.nextID
	f.nextID++
	f.record("Create", kind, target)
	f.live[id] = kind
	switch kind {
	case backend.KindTexture:
		f.textures[id] = &Texture{Target: target, Params: make(map[backend.Enum]int32)}
	case backend.KindShader:
		f.shaders[id] = &shaderObj{stage: target}
	case backend.KindProgram:
		f.programs[id] = &programObj{locs: make(map[string]int32)}
	case backend.KindQuery:
		f.queries[id] = 0
	}
	return id
}

func (f *Fake) Delete(kind backend.Kind, id uint32) {
	f.record("Delete", kind, id)
	if k, ok := f.live[id]; !ok || k != kind {
		f.latch(backend.InvalidValue)
		return
	}
	delete(f.live, id)
	delete(f.textures, id)
	delete(f.shaders, id)
	delete(f.programs, id)
	delete(f.queries, id)
	delete(f.attach, id)
	for k, v := range f.units {
		if v == id && kind == backend.KindTexture {
			f.units[k] = 0
		}
	}
	if kind == backend.KindFramebuffer && f.framebuffer == id {
		f.framebuffer = 0
	}
	if kind == backend.KindProgram && f.program == id {
		f.program = 0
	}
}

func (f *Fake) ActiveTexture(unit uint32) {
	f.record("ActiveTexture", unit)
	f.activeUnit = unit
}

func (f *Fake) BindTexture(target backend.Enum, texture uint32) {
	f.record("BindTexture", target, texture)
	if texture != 0 && f.live[texture] != backend.KindTexture {
		f.latch(backend.InvalidOperation)
		return
	}
	f.units[unitTarget{f.activeUnit, target}] = texture
}

func (f *Fake) boundTexture(target backend.Enum) *Texture {
	bind := target
	if target >= backend.TextureCubeMapPositiveX && target < backend.TextureCubeMapPositiveX+6 {
		bind = backend.TextureCubeMap
	}
	return f.textures[f.units[unitTarget{f.activeUnit, bind}]]
}

func (f *Fake) validSize(w, h int32) bool {
	return w > 0 && h > 0 && int(w) <= f.CapsValue.MaxTextureSize && int(h) <= f.CapsValue.MaxTextureSize
}

func (f *Fake) TexImage2D(target backend.Enum, level int32, internalFormat backend.Enum, width, height int32, format, typ backend.Enum, pixels []byte) {
	f.record("TexImage2D", target, level, internalFormat, width, height, format, typ)
	t := f.boundTexture(target)
	if t == nil {
		f.latch(backend.InvalidOperation)
		return
	}
	if !f.validSize(width, height) || internalFormat == backend.None {
		f.latch(backend.InvalidValue)
		return
	}
	if level == 0 {
		t.Internal, t.Width, t.Height, t.Depth = internalFormat, width, height, 1
	}
	t.Uploads++
	t.LastData = pixels
}

func (f *Fake) TexImage3D(target backend.Enum, level int32, internalFormat backend.Enum, width, height, depth int32, format, typ backend.Enum, pixels []byte) {
	f.record("TexImage3D", target, level, internalFormat, width, height, depth, format, typ)
	t := f.boundTexture(target)
	if t == nil {
		f.latch(backend.InvalidOperation)
		return
	}
	if !f.validSize(width, height) || depth <= 0 {
		f.latch(backend.InvalidValue)
		return
	}
	if level == 0 {
		t.Internal, t.Width, t.Height, t.Depth = internalFormat, width, height, depth
	}
	t.Uploads++
	t.LastData = pixels
}

func (f *Fake) TexSubImage2D(target backend.Enum, level, x, y, width, height int32, format, typ backend.Enum, pixels []byte) {
	f.record("TexSubImage2D", target, level, x, y, width, height)
	t := f.boundTexture(target)
	if t == nil {
		f.latch(backend.InvalidOperation)
		return
	}
	if x+width > t.Width || y+height > t.Height {
		f.latch(backend.InvalidValue)
		return
	}
	t.Uploads++
	t.LastData = pixels
}

func (f *Fake) TexParameteri(target, pname backend.Enum, param int32) {
	f.record("TexParameteri", target, pname, param)
	if t := f.boundTexture(target); t != nil {
		t.Params[pname] = param
	} else {
		f.latch(backend.InvalidOperation)
	}
}

func (f *Fake) GenerateMipmap(target backend.Enum) {
	f.record("GenerateMipmap", target)
	if t := f.boundTexture(target); t != nil {
		t.Mipmaps++
	} else {
		f.latch(backend.InvalidOperation)
	}
}

func (f *Fake) ClearTexImage(texture uint32, level int32, format, typ backend.Enum) {
	f.record("ClearTexImage", texture, level)
	if t, ok := f.textures[texture]; ok {
		t.Cleared++
	} else {
		f.latch(backend.InvalidOperation)
	}
}

func (f *Fake) BindSampler(unit, sampler uint32) {
	f.record("BindSampler", unit, sampler)
}

func (f *Fake) SamplerParameteri(sampler uint32, pname backend.Enum, param int32) {
	f.record("SamplerParameteri", sampler, pname, param)
}

func (f *Fake) BindFramebuffer(target backend.Enum, framebuffer uint32) {
	f.record("BindFramebuffer", target, framebuffer)
	if framebuffer != 0 && f.live[framebuffer] != backend.KindFramebuffer {
		f.latch(backend.InvalidOperation)
		return
	}
	f.framebuffer = framebuffer
}

func (f *Fake) FramebufferTexture2D(target, attachment, texTarget backend.Enum, texture uint32, level int32) {
	f.record("FramebufferTexture2D", attachment, texTarget, texture)
	if f.framebuffer == 0 {
		f.latch(backend.InvalidOperation)
		return
	}
	if attachment == backend.ColorAttachment0 {
		f.attach[f.framebuffer] = texture
	}
}

func (f *Fake) DrawBuffers(attachments []backend.Enum) {
	f.record("DrawBuffers", len(attachments))
}

func (f *Fake) CheckFramebufferStatus(target backend.Enum) backend.Enum {
	f.record("CheckFramebufferStatus")
	if f.framebuffer == 0 {
		return backend.FramebufferComplete
	}
	tex, ok := f.attach[f.framebuffer]
	if !ok || tex == 0 {
		// FRAMEBUFFER_INCOMPLETE_MISSING_ATTACHMENT
		return backend.Enum(0x8CD7)
	}
	if t := f.textures[tex]; t == nil || t.Width == 0 {
		// FRAMEBUFFER_INCOMPLETE_ATTACHMENT
		return backend.Enum(0x8CD6)
	}
	return backend.FramebufferComplete
}

// ReadPixels fills dst with the low byte of the texture attached to the
// bound framebuffer, or 0xFF for the default framebuffer.
func (f *Fake) ReadPixels(x, y, width, height int32, format, typ backend.Enum, dst []byte) {
	f.record("ReadPixels", x, y, width, height)
	v := byte(0xFF)
	if f.framebuffer != 0 {
		v = byte(f.attach[f.framebuffer])
	}
	for i := range dst {
		dst[i] = v
	}
}

func (f *Fake) ShaderSource(shader uint32, sources []string) {
	f.record("ShaderSource", shader, len(sources))
	if s, ok := f.shaders[shader]; ok {
		s.sources = append([]string(nil), sources...)
	} else {
		f.latch(backend.InvalidValue)
	}
}

// failure returns a driver style log pointing at the first source and line
// containing needle.
func failure(sources []string, needle, what string) (string, bool) {
	if needle == "" {
		return "", false
	}
	for i, src := range sources {
		if !strings.Contains(src, needle) {
			continue
		}
		line := 1 + strings.Count(src[:strings.Index(src, needle)], "\n")
		return fmt.Sprintf("ERROR: %d:%d: '%s' : %s\nERROR: 1 compilation errors. No code generated.\n", i, line, needle, what), true
	}
	return "", false
}

func (f *Fake) CompileShader(shader uint32) {
	f.record("CompileShader", shader)
	s, ok := f.shaders[shader]
	if !ok {
		f.latch(backend.InvalidValue)
		return
	}
	if log, failed := failure(s.sources, f.FailCompile, "syntax error"); failed {
		s.compiled, s.log = false, log
		return
	}
	s.compiled, s.log = true, ""
}

func (f *Fake) ShaderStatus(shader uint32) (bool, string) {
	s, ok := f.shaders[shader]
	if !ok {
		return false, ""
	}
	return s.compiled, s.log
}

func (f *Fake) AttachShader(program, shader uint32) {
	f.record("AttachShader", program, shader)
	if p, ok := f.programs[program]; ok {
		p.shaders = append(p.shaders, shader)
	}
}

func (f *Fake) DetachShader(program, shader uint32) {
	f.record("DetachShader", program, shader)
	if p, ok := f.programs[program]; ok {
		for i, s := range p.shaders {
			if s == shader {
				p.shaders = append(p.shaders[:i], p.shaders[i+1:]...)
				break
			}
		}
	}
}

var uniformDecl = regexp.MustCompile(`(?m)^\s*uniform\s+(?:(?:lowp|mediump|highp)\s+)?(\w+)\s+(\w+)\s*(?:\[\s*(\d+)\s*\])?\s*;`)

var uniformTypes = map[string]backend.Enum{
	"float":       backend.Float,
	"vec2":        backend.FloatVec2,
	"vec3":        backend.FloatVec3,
	"vec4":        backend.FloatVec4,
	"int":         backend.Int,
	"ivec2":       backend.IntVec2,
	"ivec3":       backend.IntVec3,
	"ivec4":       backend.IntVec4,
	"bool":        backend.Bool,
	"mat3":        backend.FloatMat3,
	"mat4":        backend.FloatMat4,
	"sampler2D":   backend.Sampler2D,
	"sampler3D":   backend.Sampler3D,
	"samplerCube": backend.SamplerCube,
}

func (f *Fake) LinkProgram(program uint32) {
	f.record("LinkProgram", program)
	p, ok := f.programs[program]
	if !ok {
		f.latch(backend.InvalidValue)
		return
	}
	var sources []string
	for _, id := range p.shaders {
		s := f.shaders[id]
		if s == nil || !s.compiled {
			p.linked, p.log = false, "error: attached shader is not compiled\n"
			return
		}
		sources = append(sources, s.sources...)
	}
	if log, failed := failure(sources, f.FailLink, "undefined symbol"); failed {
		p.linked, p.log = false, strings.Replace(log, "compilation", "link", 1)
		return
	}
	p.uniforms = p.uniforms[:0]
	p.locs = make(map[string]int32)
	seen := make(map[string]bool)
	for _, src := range sources {
		for _, m := range uniformDecl.FindAllStringSubmatch(src, -1) {
			typ, ok := uniformTypes[m[1]]
			if !ok || seen[m[2]] {
				continue
			}
			seen[m[2]] = true
			name := m[2]
			size := int32(1)
			if m[3] != "" {
				n, _ := strconv.Atoi(m[3])
				size = int32(n)
				name += "[0]"
			}
			p.uniforms = append(p.uniforms, backend.UniformInfo{Name: name, Type: typ, Size: size})
			p.locs[m[2]] = f.nextLoc
			f.nextLoc += size
		}
	}
	p.linked, p.log = true, ""
}

func (f *Fake) ProgramStatus(program uint32) (bool, string) {
	p, ok := f.programs[program]
	if !ok {
		return false, ""
	}
	return p.linked, p.log
}

func (f *Fake) UseProgram(program uint32) {
	f.record("UseProgram", program)
	if program != 0 {
		if p, ok := f.programs[program]; !ok || !p.linked {
			f.latch(backend.InvalidOperation)
			return
		}
	}
	f.program = program
}

func (f *Fake) ActiveUniforms(program uint32) []backend.UniformInfo {
	if p, ok := f.programs[program]; ok {
		return append([]backend.UniformInfo(nil), p.uniforms...)
	}
	return nil
}

func (f *Fake) UniformLocation(program uint32, name string) int32 {
	p, ok := f.programs[program]
	if !ok {
		return -1
	}
	if loc, ok := p.locs[strings.TrimSuffix(name, "[0]")]; ok {
		return loc
	}
	return -1
}

func (f *Fake) setUniform(name string, location int32, v []float32) {
	f.record(name, location)
	if location < 0 {
		return
	}
	if f.program == 0 {
		f.latch(backend.InvalidOperation)
		return
	}
	f.uniforms[location] = v
}

func (f *Fake) Uniformf(location int32, v ...float32) {
	f.setUniform("Uniformf", location, append([]float32(nil), v...))
}

func (f *Fake) Uniformi(location int32, v ...int32) {
	fv := make([]float32, len(v))
	for i, x := range v {
		fv[i] = float32(x)
	}
	f.setUniform("Uniformi", location, fv)
}

func (f *Fake) Uniformfv(location int32, components int, v []float32) {
	f.setUniform("Uniformfv", location, append([]float32(nil), v...))
}

// ProgramBinary returns a recognisable blob naming the program.
func (f *Fake) ProgramBinary(program uint32) (backend.Enum, []byte) {
	f.record("ProgramBinary", program)
	if p, ok := f.programs[program]; !ok || !p.linked {
		f.latch(backend.InvalidOperation)
		return backend.None, nil
	}
	return backend.Enum(0xFA4E), []byte(fmt.Sprintf("program:%d", program))
}

func (f *Fake) BindBuffer(target backend.Enum, buffer uint32) {
	f.record("BindBuffer", target, buffer)
}

func (f *Fake) BufferData(target backend.Enum, data []byte, usage backend.Enum) {
	f.record("BufferData", target, len(data), usage)
}

func (f *Fake) BindVertexArray(array uint32) {
	f.record("BindVertexArray", array)
}

func (f *Fake) EnableVertexAttribArray(index uint32) {
	f.record("EnableVertexAttribArray", index)
}

func (f *Fake) VertexAttribPointer(index uint32, size int32, typ backend.Enum, normalized bool, stride, offset int32) {
	f.record("VertexAttribPointer", index, size, typ, normalized, stride, offset)
}

func (f *Fake) BeginQuery(target backend.Enum, query uint32) {
	f.record("BeginQuery", target, query)
	if _, ok := f.queries[query]; !ok {
		f.latch(backend.InvalidOperation)
		return
	}
	f.queries[query] = 0
}

func (f *Fake) EndQuery(target backend.Enum) {
	f.record("EndQuery", target)
}

func (f *Fake) QueryResultAvailable(query uint32) bool {
	f.record("QueryResultAvailable", query)
	n, ok := f.queries[query]
	if !ok {
		f.latch(backend.InvalidOperation)
		return false
	}
	n++
	f.queries[query] = n
	return n >= f.QueryPolls
}

func (f *Fake) QueryResult(query uint32) uint64 {
	f.record("QueryResult", query)
	return f.ElapsedNS
}

func (f *Fake) Enable(capability backend.Enum) {
	f.record("Enable", capability)
	f.enabled[capability] = true
}

func (f *Fake) Disable(capability backend.Enum) {
	f.record("Disable", capability)
	f.enabled[capability] = false
}

func (f *Fake) BlendEquationSeparate(modeRGB, modeAlpha backend.Enum) {
	f.record("BlendEquationSeparate", modeRGB, modeAlpha)
}

func (f *Fake) BlendFuncSeparate(srcRGB, dstRGB, srcAlpha, dstAlpha backend.Enum) {
	f.record("BlendFuncSeparate", srcRGB, dstRGB, srcAlpha, dstAlpha)
}

func (f *Fake) ClearColor(r, g, b, a float32) { f.record("ClearColor", r, g, b, a) }

func (f *Fake) ClearDepth(depth float64) { f.record("ClearDepth", depth) }

func (f *Fake) ClearStencil(s int32) { f.record("ClearStencil", s) }

func (f *Fake) Clear(mask backend.Enum) {
	f.record("Clear", mask)
	if tex := f.attach[f.framebuffer]; f.framebuffer != 0 && tex != 0 {
		if t := f.textures[tex]; t != nil {
			t.Cleared++
		}
	}
}

func (f *Fake) DepthFunc(fn backend.Enum) { f.record("DepthFunc", fn) }

func (f *Fake) PolygonMode(face, mode backend.Enum) { f.record("PolygonMode", face, mode) }

func (f *Fake) MemoryBarrier(bits backend.Enum) { f.record("MemoryBarrier", bits) }

func (f *Fake) Viewport(x, y, width, height int32) {
	f.record("Viewport", x, y, width, height)
	f.viewport = [4]int32{x, y, width, height}
}

func (f *Fake) DrawArrays(mode backend.Enum, first, count int32) {
	f.record("DrawArrays", mode, first, count)
	if f.program == 0 {
		f.latch(backend.InvalidOperation)
		return
	}
	d := Draw{
		Framebuffer: f.framebuffer,
		Program:     f.program,
		Viewport:    f.viewport,
		Units:       make(map[uint32]uint32),
		Count:       count,
	}
	if f.framebuffer != 0 {
		d.Target = f.attach[f.framebuffer]
	}
	for k, v := range f.units {
		if v != 0 {
			d.Units[k.unit] = v
		}
	}
	f.Draws = append(f.Draws, d)
}
