// Package eventfunc builds event-script function bodies.
//
// A Function is an append-only instruction list with named labels and
// pending jumps. Jump distances are resolved when the bytes are requested, so
// blocks can be nested without computing offsets by hand.
package eventfunc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fortiblox/eventforge/pkg/eventcmd"
)

var (
	// ErrNotJump is returned when a jump is recorded on a non-jump opcode.
	ErrNotJump = errors.New("instruction is not a jump")

	// ErrJumpDirection is returned when a jump points the wrong way.
	ErrJumpDirection = errors.New("jump target in wrong direction")

	// ErrJumpRange is returned when a resolved distance exceeds one byte.
	ErrJumpRange = errors.New("jump distance out of range")

	// ErrDuplicateLabel is returned when a label is defined twice.
	ErrDuplicateLabel = errors.New("duplicate label")

	// ErrUnknownLabel is returned when a jump names an undefined label.
	ErrUnknownLabel = errors.New("unknown label")
)

type jumpRecord struct {
	from    int    // instruction index
	toPos   int    // target byte offset, used when toLabel is empty
	toLabel string // target label
}

// Function is a function body under construction.
type Function struct {
	ins     []eventcmd.Instruction
	offsets []int
	size    int
	labels  map[string]int
	jumps   []jumpRecord
	err     error
}

// New returns an empty Function.
func New() *Function {
	return &Function{labels: make(map[string]int)}
}

// FromBytes decodes an existing function body. Jumps already present keep
// their encoded distances.
func FromBytes(b []byte) (*Function, error) {
	f := New()
	for pos := 0; pos < len(b); {
		ins, err := eventcmd.Decode(b, pos)
		if err != nil {
			return nil, err
		}
		f.Add(ins)
		pos += ins.Len()
	}
	return f, nil
}

// Of builds a Function from a list of instructions.
func Of(ins ...eventcmd.Instruction) *Function {
	return New().Add(ins...)
}

// Err returns the first error recorded while building.
func (f *Function) Err() error {
	return f.err
}

func (f *Function) fail(err error) {
	if f.err == nil {
		f.err = err
	}
}

// Len returns the current size in bytes.
func (f *Function) Len() int {
	return f.size
}

// Instructions returns the instructions with resolved jump distances.
func (f *Function) Instructions() ([]eventcmd.Instruction, error) {
	if err := f.resolve(); err != nil {
		return nil, err
	}
	out := make([]eventcmd.Instruction, len(f.ins))
	for i, in := range f.ins {
		out[i] = in.Clone()
	}
	return out, nil
}

// Add appends instructions.
func (f *Function) Add(ins ...eventcmd.Instruction) *Function {
	for _, in := range ins {
		f.offsets = append(f.offsets, f.size)
		f.ins = append(f.ins, in.Clone())
		f.size += in.Len()
	}
	return f
}

// Append appends another function, carrying over its labels and jumps.
func (f *Function) Append(g *Function) *Function {
	if g.err != nil {
		f.fail(g.err)
	}
	baseIdx, basePos := len(f.ins), f.size
	for name, pos := range g.labels {
		if _, ok := f.labels[name]; ok {
			f.fail(fmt.Errorf("%w: %q", ErrDuplicateLabel, name))
			continue
		}
		f.labels[name] = pos + basePos
	}
	for _, j := range g.jumps {
		j.from += baseIdx
		if j.toLabel == "" {
			j.toPos += basePos
		}
		f.jumps = append(f.jumps, j)
	}
	return f.Add(g.ins...)
}

// SetLabel names the current end of the function.
func (f *Function) SetLabel(name string) *Function {
	if _, ok := f.labels[name]; ok {
		f.fail(fmt.Errorf("%w: %q", ErrDuplicateLabel, name))
		return f
	}
	f.labels[name] = f.size
	return f
}

// JumpToLabel appends a jump whose distance is resolved against label.
func (f *Function) JumpToLabel(ins eventcmd.Instruction, label string) *Function {
	if !ins.Op.IsJump() {
		f.fail(fmt.Errorf("%w: %s", ErrNotJump, ins.Op))
		return f
	}
	f.jumps = append(f.jumps, jumpRecord{from: len(f.ins), toLabel: label})
	return f.Add(ins)
}

func (f *Function) jumpHere(from int) {
	f.jumps = append(f.jumps, jumpRecord{from: from, toPos: f.size})
}

// AddIf appends
//
//	if cond { block }
//
// with cond's distance pointing past the block.
func (f *Function) AddIf(cond eventcmd.Instruction, block *Function) *Function {
	if !cond.Op.IsForwardJump() {
		f.fail(fmt.Errorf("%w: %s", ErrNotJump, cond.Op))
		return f
	}
	from := len(f.ins)
	f.Add(cond)
	f.Append(block)
	f.jumpHere(from)
	return f
}

// AddIfElse appends
//
//	    if cond { ifBlock; goto after }
//	    elseBlock
//	after:
func (f *Function) AddIfElse(cond eventcmd.Instruction, ifBlock, elseBlock *Function) *Function {
	if !cond.Op.IsForwardJump() {
		f.fail(fmt.Errorf("%w: %s", ErrNotJump, cond.Op))
		return f
	}
	from := len(f.ins)
	f.Add(cond)
	f.Append(ifBlock)
	over := len(f.ins)
	f.Add(eventcmd.JumpForward(0))
	f.jumpHere(from)
	f.Append(elseBlock)
	f.jumpHere(over)
	return f
}

// AddWhile appends
//
//	start: if cond { block; goto start }
func (f *Function) AddWhile(cond eventcmd.Instruction, block *Function) *Function {
	if !cond.Op.IsForwardJump() {
		f.fail(fmt.Errorf("%w: %s", ErrNotJump, cond.Op))
		return f
	}
	start := f.size
	from := len(f.ins)
	f.Add(cond)
	f.Append(block)
	back := len(f.ins)
	f.Add(eventcmd.JumpBack(0))
	f.jumps = append(f.jumps, jumpRecord{from: back, toPos: start})
	f.jumpHere(from)
	return f
}

// Bytes resolves every jump and returns the encoded function.
func (f *Function) Bytes() ([]byte, error) {
	if err := f.resolve(); err != nil {
		return nil, err
	}
	return eventcmd.Bytes(f.ins...), nil
}

func (f *Function) resolve() error {
	if f.err != nil {
		return f.err
	}
	for _, j := range f.jumps {
		to := j.toPos
		if j.toLabel != "" {
			pos, ok := f.labels[j.toLabel]
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownLabel, j.toLabel)
			}
			to = pos
		}
		in := &f.ins[j.from]
		from := f.offsets[j.from]
		last := from + in.Len() - 1

		var d int
		if in.Op.IsBackJump() {
			d = last - to
		} else {
			d = to - last
		}
		if d < 0 {
			return fmt.Errorf("%w: %s at 0x%04X to 0x%04X", ErrJumpDirection, in.Op, from, to)
		}
		if d > 0xFF {
			return fmt.Errorf("%w: %s at 0x%04X spans %d bytes", ErrJumpRange, in.Op, from, d)
		}
		in.Args[len(in.Args)-1] = d
	}
	return nil
}

// String lists the function with conditional blocks indented.
func (f *Function) String() string {
	if err := f.resolve(); err != nil {
		return "error: " + err.Error()
	}
	names := make(map[int]string, len(f.labels))
	for name, pos := range f.labels {
		names[pos] = name
	}

	var sb strings.Builder
	indent := 0
	var closes []int
	for i, in := range f.ins {
		pos := f.offsets[i]
		for k := 0; k < len(closes); {
			if closes[k] == pos {
				indent--
				closes = append(closes[:k], closes[k+1:]...)
				continue
			}
			k++
		}
		fmt.Fprintf(&sb, "%-8s%s[%04X] %s\n", names[pos], strings.Repeat("    ", indent), pos, in)
		if eventcmd.Conditionals.Contains(in.Op) {
			if target, ok := in.JumpTarget(pos); ok {
				indent++
				closes = append(closes, target)
			}
		}
	}
	return sb.String()
}
