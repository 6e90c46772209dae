// Package shader assembles, compiles and links buffer programs.
//
// Sources are kept as ordered named parts so that compiler diagnostics can
// be reported against the part they came from rather than an opaque source
// index.
package shader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/logx"
)

// CompilationError carries the rewritten compiler log of a stage.
type CompilationError struct {
	Stage backend.Enum
	Log   string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("%s shader compilation failed:\n%s", backend.StageName(e.Stage), e.Log)
}

// LinkError carries the raw program link log.
type LinkError struct {
	Log string
}

func (e *LinkError) Error() string {
	return "program link failed:\n" + e.Log
}

// Translation is the output of a Translator.
type Translation struct {
	Code string
	// Names maps declared uniform names to the names in Code.
	Names map[string]string
}

// Translator converts WebGL2 fragment shaders into the provider's dialect.
// Errors that carry "0:line:" diagnostics refer to the single assembled
// source.
type Translator interface {
	Translate(src string) (*Translation, error)
}

// Compiler builds programs on one backend.
type Compiler struct {
	b       *backend.Backend
	tr      Translator
	version string
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithTranslator compiles fragment stages through t. Parts are concatenated
// and translated before compilation. The vertex stage is always native and
// takes the version set by WithVersion.
func WithTranslator(t Translator) CompilerOption {
	return func(c *Compiler) { c.tr = t }
}

// WithVersion sets the #version line of natively compiled stages.
func WithVersion(v string) CompilerOption {
	return func(c *Compiler) { c.version = v }
}

func NewCompiler(b *backend.Backend, opts ...CompilerOption) *Compiler {
	c := &Compiler{b: b, version: VersionWebGL2}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the backend programs are created on.
func (c *Compiler) Backend() *backend.Backend { return c.b }

// Translating reports whether a translator is installed.
func (c *Compiler) Translating() bool { return c.tr != nil }

// Matches "0:12", "ERROR: 3:7" and the "0(12)" form.
var diagRef = regexp.MustCompile(`(?m)(^|[\s:])(\d+)(:(\d+)|\((\d+)\))`)

// RewriteLog replaces source indices in a multi-source compiler log with
// part names. Indices outside names are left alone.
func RewriteLog(log string, names []string) string {
	return diagRef.ReplaceAllStringFunc(log, func(m string) string {
		sub := diagRef.FindStringSubmatch(m)
		i, err := strconv.Atoi(sub[2])
		if err != nil || i < 0 || i >= len(names) {
			return m
		}
		return sub[1] + names[i] + sub[3]
	})
}

// RewriteAssembledLog maps "index:line" references in a log about a single
// assembled source back to "part:line" using the line table.
func RewriteAssembledLog(log string, table LineTable) string {
	return diagRef.ReplaceAllStringFunc(log, func(m string) string {
		sub := diagRef.FindStringSubmatch(m)
		if sub[2] != "0" {
			return m
		}
		ln := sub[4]
		if ln == "" {
			ln = sub[5]
		}
		line, err := strconv.Atoi(ln)
		if err != nil {
			return m
		}
		name, local, ok := table.Locate(line)
		if !ok {
			return m
		}
		if sub[4] != "" {
			return fmt.Sprintf("%s%s:%d", sub[1], name, local)
		}
		return fmt.Sprintf("%s%s(%d)", sub[1], name, local)
	})
}

// stage is one prepared shader stage.
type stage struct {
	kind    backend.Enum
	sources []string
	names   []string
	table   LineTable
	mapped  map[string]string
}

func (c *Compiler) prepare(kind backend.Enum, parts *Parts) (*stage, error) {
	parts = parts.Clone()
	translate := c.tr != nil && kind == backend.FragmentShader
	if _, ok := parts.Get(PartVersion); ok && !translate {
		if err := parts.Replace(PartVersion, c.version); err != nil {
			return nil, err
		}
	}
	st := &stage{kind: kind, names: parts.Names()}
	if !translate {
		st.sources = parts.Sources()
		return st, nil
	}
	src, table := parts.Assemble()
	st.table = table
	tr, err := c.tr.Translate(src)
	if err != nil {
		return nil, &CompilationError{Stage: kind, Log: RewriteAssembledLog(err.Error(), table)}
	}
	st.sources = []string{tr.Code}
	st.names = []string{"translated"}
	st.mapped = tr.Names
	return st, nil
}

func (c *Compiler) compile(st *stage) (*backend.Handle, error) {
	sh, err := c.b.MakeShader(st.kind)
	if err != nil {
		return nil, err
	}
	if err := sh.Source(st.sources...); err != nil {
		sh.Release()
		return nil, err
	}
	ok, log, err := sh.Compile()
	if err != nil {
		sh.Release()
		return nil, err
	}
	if !ok {
		sh.Release()
		return nil, &CompilationError{Stage: st.kind, Log: RewriteLog(log, st.names)}
	}
	return sh, nil
}

// Compile builds and links a program from vertex and fragment parts.
// Compilation errors are *CompilationError, link errors *LinkError.
func (c *Compiler) Compile(vs, fs *Parts) (*Program, error) {
	vst, err := c.prepare(backend.VertexShader, vs)
	if err != nil {
		return nil, err
	}
	fst, err := c.prepare(backend.FragmentShader, fs)
	if err != nil {
		return nil, err
	}
	vsh, err := c.compile(vst)
	if err != nil {
		return nil, err
	}
	defer vsh.Release()
	fsh, err := c.compile(fst)
	if err != nil {
		return nil, err
	}
	defer fsh.Release()

	prog, err := c.b.MakeProgram()
	if err != nil {
		return nil, err
	}
	for _, sh := range []*backend.Handle{vsh, fsh} {
		if err := prog.Attach(sh); err != nil {
			prog.Release()
			return nil, err
		}
	}
	ok, log, err := prog.Link()
	if err != nil {
		prog.Release()
		return nil, err
	}
	if !ok {
		prog.Release()
		return nil, &LinkError{Log: log}
	}
	for _, sh := range []*backend.Handle{vsh, fsh} {
		if err := prog.Detach(sh); err != nil {
			prog.Release()
			return nil, err
		}
	}
	p, err := newProgram(prog, fst.mapped)
	if err != nil {
		prog.Release()
		return nil, err
	}
	logx.Logger().Debug("shader: program linked", "uniforms", len(p.uniforms), "translated", c.tr != nil,
		"parts", strings.Join(fst.names, ","))
	return p, nil
}
