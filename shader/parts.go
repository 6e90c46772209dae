package shader

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoPart is returned when an anchor or part name does not exist.
	ErrNoPart = errors.New("no such part")
	// ErrDuplicatePart is returned when adding a name that already exists.
	ErrDuplicatePart = errors.New("duplicate part")
)

// Part is one named fragment of a shader stage's source.
type Part struct {
	Name   string
	Source string
}

// Parts is an ordered list of named source fragments.
type Parts struct {
	list []Part
}

// NewParts returns a list holding parts in order. Duplicate names panic.
func NewParts(parts ...Part) *Parts {
	p := &Parts{}
	for _, part := range parts {
		if err := p.Append(part.Name, part.Source); err != nil {
			panic(err)
		}
	}
	return p
}

func (p *Parts) index(name string) int {
	for i, part := range p.list {
		if part.Name == name {
			return i
		}
	}
	return -1
}

func (p *Parts) insert(at int, name, src string) error {
	if p.index(name) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicatePart, name)
	}
	p.list = append(p.list, Part{})
	copy(p.list[at+1:], p.list[at:])
	p.list[at] = Part{Name: name, Source: src}
	return nil
}

// Append adds a part at the end.
func (p *Parts) Append(name, src string) error {
	return p.insert(len(p.list), name, src)
}

// InsertBefore adds a part immediately before anchor.
func (p *Parts) InsertBefore(anchor, name, src string) error {
	i := p.index(anchor)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNoPart, anchor)
	}
	return p.insert(i, name, src)
}

// InsertAfter adds a part immediately after anchor.
func (p *Parts) InsertAfter(anchor, name, src string) error {
	i := p.index(anchor)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNoPart, anchor)
	}
	return p.insert(i+1, name, src)
}

// Replace changes the source of an existing part.
func (p *Parts) Replace(name, src string) error {
	i := p.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNoPart, name)
	}
	p.list[i].Source = src
	return nil
}

// Remove deletes a part and reports whether it existed.
func (p *Parts) Remove(name string) bool {
	i := p.index(name)
	if i < 0 {
		return false
	}
	p.list = append(p.list[:i], p.list[i+1:]...)
	return true
}

// Get returns the source of a part.
func (p *Parts) Get(name string) (string, bool) {
	if i := p.index(name); i >= 0 {
		return p.list[i].Source, true
	}
	return "", false
}

// Names returns the part names in order.
func (p *Parts) Names() []string {
	out := make([]string, len(p.list))
	for i, part := range p.list {
		out[i] = part.Name
	}
	return out
}

// Len returns the number of parts.
func (p *Parts) Len() int { return len(p.list) }

// Clone returns an independent copy.
func (p *Parts) Clone() *Parts {
	return &Parts{list: append([]Part(nil), p.list...)}
}

func terminated(src string) string {
	if src == "" || strings.HasSuffix(src, "\n") {
		return src
	}
	return src + "\n"
}

// Sources returns one newline-terminated string per part, for providers
// that take a list of source strings.
func (p *Parts) Sources() []string {
	out := make([]string, len(p.list))
	for i, part := range p.list {
		out[i] = terminated(part.Source)
	}
	return out
}

// LineRange is the span of one part in an assembled source. Lines are
// 1-based and End is inclusive; an empty part has End == Start-1.
type LineRange struct {
	Name  string
	Start int
	End   int
}

// LineTable maps assembled source lines back to parts.
type LineTable []LineRange

// Locate returns the part containing an assembled line and the line number
// within that part.
func (t LineTable) Locate(line int) (string, int, bool) {
	for _, r := range t {
		if line >= r.Start && line <= r.End {
			return r.Name, line - r.Start + 1, true
		}
	}
	return "", 0, false
}

// Range returns the line range of a part.
func (t LineTable) Range(name string) (LineRange, bool) {
	for _, r := range t {
		if r.Name == name {
			return r, true
		}
	}
	return LineRange{}, false
}

// Assemble concatenates the parts and returns the line table.
func (p *Parts) Assemble() (string, LineTable) {
	var sb strings.Builder
	table := make(LineTable, 0, len(p.list))
	line := 1
	for _, src := range p.Sources() {
		n := strings.Count(src, "\n")
		table = append(table, LineRange{Start: line, End: line + n - 1})
		sb.WriteString(src)
		line += n
	}
	for i := range table {
		table[i].Name = p.list[i].Name
	}
	return sb.String(), table
}
