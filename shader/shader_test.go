package shader

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/backend/backendtest"
)

const userCode = `void mainImage(out vec4 c, in vec2 p) {
    c = vec4(iTime);
}
`

func TestPartsEditing(t *testing.T) {
	p := NewParts(Part{"a", "A"}, Part{"c", "C"})
	require.NoError(t, p.InsertBefore("c", "b", "B"))
	require.NoError(t, p.InsertAfter("c", "d", "D"))
	require.NoError(t, p.Append("e", "E"))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, p.Names())

	assert.ErrorIs(t, p.Append("a", "again"), ErrDuplicatePart)
	assert.ErrorIs(t, p.InsertAfter("missing", "x", ""), ErrNoPart)
	assert.ErrorIs(t, p.Replace("missing", ""), ErrNoPart)

	c := p.Clone()
	require.NoError(t, c.Replace("a", "changed"))
	assert.True(t, c.Remove("e"))
	assert.False(t, c.Remove("e"))
	src, _ := p.Get("a")
	assert.Equal(t, "A", src)
	assert.Equal(t, 5, p.Len())
	assert.Equal(t, 4, c.Len())

	assert.Panics(t, func() { NewParts(Part{"x", ""}, Part{"x", ""}) })
}

func TestAssembleLineTable(t *testing.T) {
	p := NewParts(Part{"a", "one\ntwo"}, Part{"empty", ""}, Part{"c", "three\n"})
	src, table := p.Assemble()
	assert.Equal(t, "one\ntwo\nthree\n", src)

	r, ok := table.Range("a")
	require.True(t, ok)
	assert.Equal(t, LineRange{"a", 1, 2}, r)
	r, _ = table.Range("empty")
	assert.Equal(t, LineRange{"empty", 3, 2}, r)

	name, line, ok := table.Locate(3)
	require.True(t, ok)
	assert.Equal(t, "c", name)
	assert.Equal(t, 1, line)

	name, line, _ = table.Locate(2)
	assert.Equal(t, "a", name)
	assert.Equal(t, 2, line)

	_, _, ok = table.Locate(4)
	assert.False(t, ok)
}

func TestTemplates(t *testing.T) {
	fs := FragmentTemplate([]ChannelDecl{{Index: 2, Type: "samplerCube"}}, "float k;", userCode, []string{"a", "b"})
	assert.Equal(t, []string{PartVersion, PartPrecision, PartUniforms, PartChannels, PartHelpers, PartCommon, PartUser, PartMain}, fs.Names())

	ch, _ := fs.Get(PartChannels)
	assert.Contains(t, ch, "uniform samplerCube iChannel2;")
	assert.Contains(t, ch, "uniform sampler2D iChannel3;")

	decl, _ := fs.Get(PartUniforms)
	assert.Contains(t, decl, "layout(location = 1) out vec4 b;")
	main, _ := fs.Get(PartMain)
	assert.Contains(t, main, "mainImage(a, gl_FragCoord.xy)")

	blit, _ := BlitTemplate(true).Get(PartMain)
	assert.Contains(t, blit, "1.0 - frag_uv.y")
}

func TestRewriteLog(t *testing.T) {
	names := []string{"version", "precision", "user"}
	tests := []struct {
		in, want string
	}{
		{"ERROR: 2:3: 'x' : syntax error", "ERROR: user:3: 'x' : syntax error"},
		{"0:12(5): error: undeclared", "version:12(5): error: undeclared"},
		{"1(7) : error C0000: bad", "precision(7) : error C0000: bad"},
		{"ERROR: 9:1: out of range", "ERROR: 9:1: out of range"},
		{"ERROR: 1 compilation errors.", "ERROR: 1 compilation errors."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RewriteLog(tt.in, names))
	}
}

func TestRewriteAssembledLog(t *testing.T) {
	p := NewParts(Part{"head", "a\nb\n"}, Part{"user", "c\nd\ne\n"})
	_, table := p.Assemble()
	assert.Equal(t, "ERROR: user:2: 'd' : undeclared", RewriteAssembledLog("ERROR: 0:4: 'd' : undeclared", table))
	assert.Equal(t, "head(1) : error", RewriteAssembledLog("0(1) : error", table))
	assert.Equal(t, "ERROR: 0:40: eof", RewriteAssembledLog("ERROR: 0:40: eof", table))
}

func TestCompileAndSetUniforms(t *testing.T) {
	b, f := backendtest.NewBackend()
	c := NewCompiler(b, WithVersion(VersionGL410))

	p, err := c.Compile(VertexTemplate(), FragmentTemplate(nil, "", userCode, nil))
	require.NoError(t, err)
	defer p.Release()

	assert.True(t, p.Has("iTime"))
	assert.True(t, p.Has("iChannelTime"))
	assert.True(t, p.Has("iChannel0"))
	assert.False(t, p.Has("iChannelTime[0]"))
	typ, _ := p.Type("iResolution")
	assert.Equal(t, backend.FloatVec3, typ)

	id, err := p.Handle().ID()
	require.NoError(t, err)

	ok, err := p.SetUniform("iTime", Float(1.5))
	require.NoError(t, err)
	assert.True(t, ok)
	v, _ := f.Uniform(id, "iTime")
	assert.Equal(t, []float32{1.5}, v)

	_, err = p.SetUniform("iChannelResolution", Vec3s{{1, 2, 1}, {3, 4, 1}})
	require.NoError(t, err)
	v, _ = f.Uniform(id, "iChannelResolution")
	assert.Equal(t, []float32{1, 2, 1, 3, 4, 1}, v)

	ok, err = p.SetUniform("notThere", Int(3))
	require.NoError(t, err)
	assert.False(t, ok)

	var sources []int
	for _, call := range f.Calls {
		if call.Name == "ShaderSource" {
			sources = append(sources, call.Args[1].(int))
		}
	}
	assert.Equal(t, []int{2, 8}, sources)
	assert.Equal(t, 0, b.Live(backend.KindShader))
}

func TestCompileErrorNamesPart(t *testing.T) {
	b, f := backendtest.NewBackend()
	f.FailCompile = "bogus_call"
	c := NewCompiler(b)

	user := "void mainImage(out vec4 c, in vec2 p) {\n    bogus_call();\n}\n"
	_, err := c.Compile(VertexTemplate(), FragmentTemplate(nil, "", user, nil))
	var ce *CompilationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, backend.FragmentShader, ce.Stage)
	assert.Contains(t, ce.Log, "user:2: 'bogus_call'")
	assert.Contains(t, err.Error(), "fragment")
	assert.Equal(t, 0, b.Live(backend.KindShader))
	assert.Equal(t, 0, b.Live(backend.KindProgram))
}

func TestLinkError(t *testing.T) {
	b, f := backendtest.NewBackend()
	f.FailLink = "missing_fn"
	c := NewCompiler(b)

	_, err := c.Compile(VertexTemplate(), FragmentTemplate(nil, "float missing_fn();", userCode, nil))
	var le *LinkError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Log, "undefined symbol")
	assert.Equal(t, 0, b.Live(backend.KindProgram))
}

type fakeTranslator struct {
	calls int
	err   error
}

func (t *fakeTranslator) Translate(src string) (*Translation, error) {
	t.calls++
	if t.err != nil {
		return nil, t.err
	}
	code := "#version 410 core\nuniform float _uiTime;\nuniform sampler2D _uiChannel0;\nout vec4 fragColor;\nvoid main() {}\n"
	return &Translation{Code: code, Names: map[string]string{"iTime": "_uiTime", "iChannel0": "_uiChannel0"}}, nil
}

func TestCompileThroughTranslator(t *testing.T) {
	b, f := backendtest.NewBackend()
	tr := &fakeTranslator{}
	c := NewCompiler(b, WithTranslator(tr), WithVersion(VersionGL410))
	require.True(t, c.Translating())

	p, err := c.Compile(VertexTemplate(), FragmentTemplate(nil, "", userCode, nil))
	require.NoError(t, err)
	defer p.Release()
	assert.Equal(t, 1, tr.calls)
	assert.True(t, p.Has("iTime"))
	assert.True(t, p.Has("iChannel0"))
	assert.False(t, p.Has("_uiTime"))

	var sources []int
	for _, call := range f.Calls {
		if call.Name == "ShaderSource" {
			sources = append(sources, call.Args[1].(int))
		}
	}
	assert.Equal(t, []int{2, 1}, sources)
}

func TestTranslatorErrorMapsToPart(t *testing.T) {
	b, _ := backendtest.NewBackend()
	fs := FragmentTemplate(nil, "", userCode, nil)
	_, table := fs.Assemble()
	r, ok := table.Range(PartUser)
	require.True(t, ok)

	tr := &fakeTranslator{err: fmt.Errorf("ERROR: 0:%d: 'iTme' : undeclared identifier", r.Start+1)}
	c := NewCompiler(b, WithTranslator(tr))
	_, err := c.Compile(VertexTemplate(), fs)
	var ce *CompilationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Log, "user:2: 'iTme'")
}

func TestProgramBinary(t *testing.T) {
	b, _ := backendtest.NewBackend()
	p, err := NewCompiler(b).Compile(VertexTemplate(), BlitTemplate(false))
	require.NoError(t, err)
	id, _ := p.Handle().ID()

	bin, err := p.Binary()
	require.NoError(t, err)
	assert.Equal(t, backend.Enum(0xFA4E), bin.Format)
	assert.Equal(t, fmt.Sprintf("program:%d", id), string(bin.Data))

	f := backendtest.New()
	f.CapsValue.Features &^= backend.FeatureProgramBinary
	nb := backend.New(f)
	p2, err := NewCompiler(nb).Compile(VertexTemplate(), BlitTemplate(false))
	require.NoError(t, err)
	_, err = p2.Binary()
	var oe *backend.OperationError
	assert.ErrorAs(t, err, &oe)
}
