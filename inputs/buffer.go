package inputs

import (
	"errors"
	"fmt"

	"github.com/richinsley/goshaderchain/backend"
)

// OutputSource is a chain member seen through a buffer-output reference.
type OutputSource interface {
	// OutputNames lists the member's outputs in attachment order.
	OutputNames() []string
	// OutputTexture returns the texture a reader sees for output i this
	// frame.
	OutputTexture(i int) (*backend.Handle, error)
	// OutputResolution returns the member's render size as a channel
	// resolution.
	OutputResolution() [3]float32
	// OutputFormat returns the internal format of the member's outputs.
	OutputFormat() backend.Enum
}

// OutputTable resolves member ids at render time. It holds no reference to
// a member past the call, so removed members simply stop resolving.
type OutputTable interface {
	Lookup(id string) (OutputSource, bool)
}

// ErrNoOutputs is the cause reported for members without owned textures.
var ErrNoOutputs = errors.New("member has no output textures")

// BufferInput reads another chain member's output. The target is looked up
// by id on every use; the resolved output index is cached and revalidated
// against the output name before reuse.
type BufferInput struct {
	table   OutputTable
	member  string
	output  string
	index   int
	sampler *Sampler

	cached int
	res    [3]float32
	format backend.Enum
}

// NewBufferInput references output (by name) of member. An empty output
// name selects the first output.
func NewBufferInput(table OutputTable, member, output string, s *Sampler) *BufferInput {
	if s == nil {
		s = NewSampler()
	}
	return &BufferInput{table: table, member: member, output: output, sampler: s, cached: -1}
}

// NewBufferInputIndex references output index of member.
func NewBufferInputIndex(table OutputTable, member string, index int, s *Sampler) *BufferInput {
	in := NewBufferInput(table, member, "", s)
	in.index = index
	return in
}

// SetTarget retargets the reference and drops the cached index.
func (in *BufferInput) SetTarget(member, output string) {
	in.member, in.output, in.index = member, output, 0
	in.Reset()
}

// SetTable rebinds the reference to another chain.
func (in *BufferInput) SetTable(table OutputTable) {
	in.table = table
	in.Reset()
}

// Table returns the chain the reference resolves against, nil if detached.
func (in *BufferInput) Table() OutputTable { return in.table }

// Member returns the referenced member id.
func (in *BufferInput) Member() string { return in.member }

// Output returns the referenced output name, empty when addressed by index.
func (in *BufferInput) Output() string { return in.output }

func (in *BufferInput) fail(reason string, err error) error {
	return &ResolveError{Member: in.member, Output: in.output, Reason: reason, Err: err}
}

// resolve finds the member and the output index, reusing the cached index
// while the name at that slot still matches.
func (in *BufferInput) resolve() (OutputSource, int, error) {
	if in.table == nil {
		return nil, -1, in.fail("not attached to a chain", nil)
	}
	src, ok := in.table.Lookup(in.member)
	if !ok || src == nil {
		return nil, -1, in.fail("no such member", nil)
	}
	names := src.OutputNames()
	if len(names) == 0 {
		return nil, -1, in.fail("output lookup failed", ErrNoOutputs)
	}
	if in.output == "" {
		if in.index < 0 || in.index >= len(names) {
			return nil, -1, in.fail(fmt.Sprintf("output index %d out of range [0, %d)", in.index, len(names)), nil)
		}
		return src, in.index, nil
	}
	if in.cached >= 0 && in.cached < len(names) && names[in.cached] == in.output {
		return src, in.cached, nil
	}
	in.cached = -1
	for i, name := range names {
		if name == in.output {
			in.cached = i
			return src, i, nil
		}
	}
	return nil, -1, in.fail("no such output", nil)
}

func (in *BufferInput) Load() (backend.Enum, error) {
	src, _, err := in.resolve()
	if err != nil {
		return backend.None, err
	}
	in.format = src.OutputFormat()
	in.res = src.OutputResolution()
	return in.format, nil
}

func (in *BufferInput) Use() (*backend.Handle, error) {
	src, i, err := in.resolve()
	if err != nil {
		return nil, err
	}
	tex, err := src.OutputTexture(i)
	if err != nil {
		return nil, in.fail("output lookup failed", err)
	}
	if !tex.Present() {
		return nil, in.fail("output not allocated", backend.ErrNullResource)
	}
	in.format = src.OutputFormat()
	in.res = src.OutputResolution()
	// Buffer contents change every frame.
	if err := refreshMipmaps(tex, in.sampler); err != nil {
		return nil, err
	}
	return tex, nil
}

// Reset drops the cached resolution. The referenced textures belong to the
// target member.
func (in *BufferInput) Reset() {
	in.cached = -1
	in.res = [3]float32{}
	in.format = backend.None
}

func (in *BufferInput) Sampler() *Sampler      { return in.sampler }
func (in *BufferInput) Target() backend.Enum   { return backend.Texture2D }
func (in *BufferInput) Resolution() [3]float32 { return in.res }
func (in *BufferInput) SamplerType() string    { return samplerType(backend.Texture2D) }
