package renderer

import (
	"errors"
	"fmt"

	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/inputs"
	"github.com/richinsley/goshaderchain/logx"
	"github.com/richinsley/goshaderchain/shader"
)

// SwapPolicy selects how a member stores its outputs.
type SwapPolicy int

const (
	// DoubleBuffer renders into a back texture and swaps after the draw, so
	// readers always see the previous completed frame.
	DoubleBuffer SwapPolicy = iota
	// SingleBuffer renders into one texture per output.
	SingleBuffer
	// DefaultFramebuffer renders into the presentation surface and owns no
	// textures.
	DefaultFramebuffer
)

func (p SwapPolicy) String() string {
	switch p {
	case DoubleBuffer:
		return "double"
	case SingleBuffer:
		return "single"
	case DefaultFramebuffer:
		return "default"
	}
	return fmt.Sprintf("SwapPolicy(%d)", int(p))
}

// ParseSwapPolicy parses the String form of a policy.
func ParseSwapPolicy(s string) (SwapPolicy, error) {
	switch s {
	case "double", "":
		return DoubleBuffer, nil
	case "single":
		return SingleBuffer, nil
	case "default":
		return DefaultFramebuffer, nil
	}
	return 0, fmt.Errorf("unknown swap policy %q", s)
}

// Member is a buffer placed in a chain with its size and swap policy.
type Member struct {
	buffer   *Buffer
	size     Sizer
	policy   SwapPolicy
	rendered bool
}

// NewMember pairs buf with size and policy. A nil size is a zero Size and
// fails allocation.
func NewMember(buf *Buffer, size Sizer, policy SwapPolicy) *Member {
	if size == nil {
		size = Size{}
	}
	return &Member{buffer: buf, size: size, policy: policy}
}

func (m *Member) ID() string         { return m.buffer.ID() }
func (m *Member) Buffer() *Buffer    { return m.buffer }
func (m *Member) Size() Sizer        { return m.size }
func (m *Member) Policy() SwapPolicy { return m.policy }

// SetSize replaces the size source. The textures are resized by the next
// Allocate.
func (m *Member) SetSize(size Sizer) {
	m.size = size
	m.buffer.size = size
	for _, io := range m.buffer.io {
		io.SetSize(size)
	}
}

func (m *Member) OutputNames() []string {
	if m.policy == DefaultFramebuffer || len(m.buffer.io) == 0 {
		return nil
	}
	return m.buffer.outputs
}

// OutputTexture returns the texture holding the previous frame of output
// i. Once the member has rendered in the current pass its front and back
// have swapped, so the previous frame is in the back texture.
func (m *Member) OutputTexture(i int) (*backend.Handle, error) {
	if m.policy == DefaultFramebuffer {
		return nil, inputs.ErrNoOutputs
	}
	io, err := m.buffer.output(i)
	if err != nil {
		return nil, err
	}
	if m.rendered {
		return io.Back()
	}
	return io.Front()
}

func (m *Member) OutputResolution() [3]float32 {
	if len(m.buffer.io) > 0 && m.buffer.io[0].Allocated() {
		return m.buffer.io[0].AllocatedSize().Resolution()
	}
	return m.size.Size().Resolution()
}

func (m *Member) OutputFormat() backend.Enum {
	if len(m.buffer.io) == 0 {
		return backend.None
	}
	return m.buffer.io[0].Format()
}

// SwapChain is an ordered list of members rendered in sequence each frame.
// Members read each other's outputs through BufferInputs resolved by id.
type SwapChain struct {
	format   backend.Enum
	members  []*Member
	uniforms map[string]shader.Value
}

// NewSwapChain returns an empty chain whose members allocate outputs in
// format. None selects DefaultFormat.
func NewSwapChain(format backend.Enum) *SwapChain {
	if format == backend.None {
		format = DefaultFormat
	}
	return &SwapChain{format: format, uniforms: make(map[string]shader.Value)}
}

// Format returns the output format of the members.
func (c *SwapChain) Format() backend.Enum { return c.format }

// PushBack appends m. Ids must be unique.
func (c *SwapChain) PushBack(m *Member) error {
	if _, ok := c.member(m.ID()); ok {
		return &DuplicateMemberError{ID: m.ID()}
	}
	c.members = append(c.members, m)
	return nil
}

// EmplaceBack creates a member for buf and appends it.
func (c *SwapChain) EmplaceBack(buf *Buffer, size Sizer, policy SwapPolicy) (*Member, error) {
	m := NewMember(buf, size, policy)
	if err := c.PushBack(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Members returns the members in render order.
func (c *SwapChain) Members() []*Member { return c.members }

func (c *SwapChain) Len() int { return len(c.members) }

func (c *SwapChain) member(id string) (*Member, bool) {
	for _, m := range c.members {
		if m.ID() == id {
			return m, true
		}
	}
	return nil, false
}

// Member returns the member with id.
func (c *SwapChain) Member(id string) (*Member, bool) { return c.member(id) }

// Lookup implements inputs.OutputTable.
func (c *SwapChain) Lookup(id string) (inputs.OutputSource, bool) {
	m, ok := c.member(id)
	if !ok {
		return nil, false
	}
	return m, true
}

// Remove takes the member with id out of the chain without releasing it.
// Inputs referencing it fail to resolve from then on.
func (c *SwapChain) Remove(id string) (*Member, bool) {
	for i, m := range c.members {
		if m.ID() == id {
			c.members = append(c.members[:i], c.members[i+1:]...)
			return m, true
		}
	}
	return nil, false
}

// attach points detached buffer references at c.
func (c *SwapChain) attach() {
	for _, m := range c.members {
		for i := 0; i < shader.NumChannels; i++ {
			if bi, ok := m.buffer.Input(i).(*inputs.BufferInput); ok && bi.Table() == nil {
				bi.SetTable(c)
			}
		}
	}
}

// Init initializes every member in order and stops at the first error.
func (c *SwapChain) Init(ctx *Context) error {
	c.attach()
	for _, m := range c.members {
		if err := m.buffer.Init(ctx, m.size, m.policy, c.format); err != nil {
			return err
		}
		for name, v := range c.uniforms {
			if _, err := m.buffer.SetUniform(name, v); err != nil {
				return fmt.Errorf("member %q: uniform %s: %w", m.ID(), name, err)
			}
		}
	}
	logx.Logger().Debug("renderer: swap chain initialized", "members", len(c.members))
	return nil
}

// Render renders every member in order.
func (c *SwapChain) Render() error {
	c.clearRendered()
	defer c.clearRendered()
	for _, m := range c.members {
		if err := m.buffer.Render(); err != nil {
			return fmt.Errorf("member %q: %w", m.ID(), err)
		}
		m.rendered = true
	}
	return nil
}

func (c *SwapChain) clearRendered() {
	for _, m := range c.members {
		m.rendered = false
	}
}

// Allocate reallocates the textures of every member at its current size.
func (c *SwapChain) Allocate() error {
	for _, m := range c.members {
		if err := m.buffer.AllocateTextures(); err != nil {
			return err
		}
	}
	return nil
}

// SetUniform sets a custom uniform on every member and keeps it for
// members initialized later. It returns how many programs declare it.
func (c *SwapChain) SetUniform(name string, v shader.Value) (int, error) {
	c.uniforms[name] = v
	n := 0
	var errs []error
	for _, m := range c.members {
		ok, err := m.buffer.SetUniform(name, v)
		if err != nil {
			errs = append(errs, fmt.Errorf("member %q: %w", m.ID(), err))
		}
		if ok {
			n++
		}
	}
	return n, errors.Join(errs...)
}

// Output returns the last member, whose front texture is the chain's
// result. It is nil for an empty chain.
func (c *SwapChain) Output() *Member {
	if len(c.members) == 0 {
		return nil
	}
	return c.members[len(c.members)-1]
}

// Release releases every member's buffer.
func (c *SwapChain) Release() {
	for _, m := range c.members {
		m.buffer.Release()
	}
}

// ErrEmptyChain is returned when reading the output of a chain without
// members.
var ErrEmptyChain = errors.New("swap chain has no members")

// ReadOutput reads the last completed frame of the output member as RGBA8
// rows, bottom row first. dst is reused when large enough.
func (c *SwapChain) ReadOutput(dst []byte) ([]byte, Size, error) {
	m := c.Output()
	if m == nil {
		return nil, Size{}, ErrEmptyChain
	}
	return m.buffer.ReadPixels(dst)
}
