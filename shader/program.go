package shader

import (
	"strings"

	"github.com/richinsley/goshaderchain/backend"
)

// Value is a uniform value. Implementations are Float, Int, Vec2, Vec3,
// Vec4, Floats and Vec3s.
type Value interface {
	set(h *backend.Handle, loc int32) error
}

type (
	Float float32
	Int   int32
	Vec2  [2]float32
	Vec3  [3]float32
	Vec4  [4]float32
	// Floats sets a float array uniform.
	Floats []float32
	// Vec3s sets a vec3 array uniform.
	Vec3s [][3]float32
)

func (v Float) set(h *backend.Handle, loc int32) error { return h.Uniformf(loc, float32(v)) }
func (v Int) set(h *backend.Handle, loc int32) error   { return h.Uniformi(loc, int32(v)) }
func (v Vec2) set(h *backend.Handle, loc int32) error  { return h.Uniformf(loc, v[:]...) }
func (v Vec3) set(h *backend.Handle, loc int32) error  { return h.Uniformf(loc, v[:]...) }
func (v Vec4) set(h *backend.Handle, loc int32) error  { return h.Uniformf(loc, v[:]...) }
func (v Floats) set(h *backend.Handle, loc int32) error {
	return h.Uniformfv(loc, 1, v)
}

func (v Vec3s) set(h *backend.Handle, loc int32) error {
	flat := make([]float32, 0, len(v)*3)
	for _, e := range v {
		flat = append(flat, e[:]...)
	}
	return h.Uniformfv(loc, 3, flat)
}

type uniform struct {
	loc  int32
	typ  backend.Enum
	size int32
}

// Program is a linked program with its reflected uniform table. Uniform
// names are the names declared in source; translated names are resolved
// internally.
type Program struct {
	h        *backend.Handle
	uniforms map[string]uniform
}

func newProgram(h *backend.Handle, mapped map[string]string) (*Program, error) {
	infos, err := h.Uniforms()
	if err != nil {
		return nil, err
	}
	reverse := make(map[string]string, len(mapped))
	for declared, m := range mapped {
		reverse[m] = declared
	}
	p := &Program{h: h, uniforms: make(map[string]uniform, len(infos))}
	for _, info := range infos {
		active := info.Name
		base := strings.TrimSuffix(active, "[0]")
		name := base
		if d, ok := reverse[base]; ok {
			name = d
		}
		loc, err := h.UniformLocation(active)
		if err != nil {
			return nil, err
		}
		p.uniforms[name] = uniform{loc: loc, typ: info.Type, size: info.Size}
	}
	return p, nil
}

// Handle returns the program object.
func (p *Program) Handle() *backend.Handle { return p.h }

// Has reports whether name is an active uniform.
func (p *Program) Has(name string) bool {
	_, ok := p.uniforms[name]
	return ok
}

// Location returns the location of an active uniform, or -1.
func (p *Program) Location(name string) int32 {
	if u, ok := p.uniforms[name]; ok {
		return u.loc
	}
	return -1
}

// Type returns the reflected type of an active uniform.
func (p *Program) Type(name string) (backend.Enum, bool) {
	u, ok := p.uniforms[name]
	return u.typ, ok
}

// Uniforms returns the active uniform names.
func (p *Program) Uniforms() []string {
	out := make([]string, 0, len(p.uniforms))
	for name := range p.uniforms {
		out = append(out, name)
	}
	return out
}

// SetUniform writes v to name. Uniforms optimized out by the compiler are
// skipped and reported as false.
func (p *Program) SetUniform(name string, v Value) (bool, error) {
	u, ok := p.uniforms[name]
	if !ok {
		return false, nil
	}
	if err := v.set(p.h, u.loc); err != nil {
		return false, err
	}
	return true, nil
}

// Binary is a driver program binary.
type Binary struct {
	Format backend.Enum
	Data   []byte
}

// Binary retrieves the linked program binary, where the provider supports it.
func (p *Program) Binary() (Binary, error) {
	format, data, err := p.h.Binary()
	if err != nil {
		return Binary{}, err
	}
	return Binary{Format: format, Data: data}, nil
}

func (p *Program) Release() {
	p.h.Release()
}
