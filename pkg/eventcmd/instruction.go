package eventcmd

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Decoding errors.
var (
	// ErrTruncated is returned when an instruction runs past the buffer.
	ErrTruncated = errors.New("instruction truncated")

	// ErrBadLayout is returned when a dynamic layout discriminator is invalid.
	ErrBadLayout = errors.New("invalid operand layout")

	// ErrOperandRange is returned when an operand does not fit its width.
	ErrOperandRange = errors.New("operand out of range")
)

// DecodeError records where decoding failed.
type DecodeError struct {
	Pos int
	Op  Opcode
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode 0x%02X at 0x%04X: %v", byte(e.Op), e.Pos, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Instruction is one decoded event command.
type Instruction struct {
	Op      Opcode
	Args    []int
	Widths  []int
	Payload []byte
}

// New builds an instruction with op's default layout. Dynamic opcodes need
// Decode or an explicit Widths slice instead.
func New(op Opcode, args ...int) Instruction {
	return Instruction{
		Op:     op,
		Args:   args,
		Widths: slices.Clone(table[op].Layout.Widths),
	}
}

// Decode decodes the instruction at buf[pos].
func Decode(buf []byte, pos int) (Instruction, error) {
	if pos < 0 || pos >= len(buf) {
		return Instruction{}, &DecodeError{Pos: pos, Err: ErrTruncated}
	}
	op := Opcode(buf[pos])
	layout, err := LayoutAt(buf, pos)
	if err != nil {
		return Instruction{}, &DecodeError{Pos: pos, Op: op, Err: err}
	}
	if pos+1+layout.Size() > len(buf) {
		return Instruction{}, &DecodeError{Pos: pos, Op: op, Err: ErrTruncated}
	}

	ins := Instruction{
		Op:     op,
		Args:   make([]int, len(layout.Widths)),
		Widths: slices.Clone(layout.Widths),
	}
	off := pos + 1
	for i, width := range layout.Widths {
		ins.Args[i] = readLE(buf[off : off+width])
		off += width
	}
	if layout.Payload > 0 {
		ins.Payload = slices.Clone(buf[off : off+layout.Payload])
	}
	return ins, nil
}

// Len returns the encoded length of buf[pos]'s instruction without decoding
// its operands.
func Len(buf []byte, pos int) (int, error) {
	layout, err := LayoutAt(buf, pos)
	if err == nil && pos+1+layout.Size() > len(buf) {
		err = ErrTruncated
	}
	if err != nil {
		de := &DecodeError{Pos: pos, Err: err}
		if pos >= 0 && pos < len(buf) {
			de.Op = Opcode(buf[pos])
		}
		return 0, de
	}
	return 1 + layout.Size(), nil
}

// Len returns the encoded length in bytes.
func (i Instruction) Len() int {
	n := 1 + len(i.Payload)
	for _, w := range i.Widths {
		n += w
	}
	return n
}

// Encode returns the encoded instruction.
func (i Instruction) Encode() []byte {
	return i.AppendTo(make([]byte, 0, i.Len()))
}

// AppendTo appends the encoded instruction to dst.
func (i Instruction) AppendTo(dst []byte) []byte {
	dst = append(dst, byte(i.Op))
	for k, width := range i.Widths {
		v := 0
		if k < len(i.Args) {
			v = i.Args[k]
		}
		for b := 0; b < width; b++ {
			dst = append(dst, byte(v>>(8*b)))
		}
	}
	return append(dst, i.Payload...)
}

// Validate checks that every operand fits its width and that the encoding
// decodes back to the same shape.
func (i Instruction) Validate() error {
	if len(i.Args) != len(i.Widths) {
		return fmt.Errorf("%w: %d args for %d operands", ErrOperandRange, len(i.Args), len(i.Widths))
	}
	for k, width := range i.Widths {
		if i.Args[k] < 0 || i.Args[k] >= 1<<(8*width) {
			return fmt.Errorf("%w: operand %d of %s is 0x%X (width %d)",
				ErrOperandRange, k, i.Op, i.Args[k], width)
		}
	}
	enc := i.Encode()
	n, err := Len(enc, 0)
	if err != nil {
		return err
	}
	if n != len(enc) {
		return fmt.Errorf("%w: %s encodes to %d bytes but decodes as %d",
			ErrBadLayout, i.Op, len(enc), n)
	}
	return nil
}

// Equal reports exact equality.
func (i Instruction) Equal(o Instruction) bool {
	return i.Op == o.Op &&
		slices.Equal(i.Args, o.Args) &&
		slices.Equal(i.Widths, o.Widths) &&
		bytes.Equal(i.Payload, o.Payload)
}

// Matches is Equal, except that two instances of the same jump opcode match
// regardless of their distance operand.
func (i Instruction) Matches(o Instruction) bool {
	if i.Op != o.Op || !i.Op.IsJump() {
		return i.Equal(o)
	}
	if len(i.Args) == 0 || len(o.Args) == 0 {
		return i.Equal(o)
	}
	return slices.Equal(i.Args[:len(i.Args)-1], o.Args[:len(o.Args)-1]) &&
		slices.Equal(i.Widths, o.Widths)
}

// JumpDistance returns the distance operand of a jump.
func (i Instruction) JumpDistance() (int, bool) {
	if !i.Op.IsJump() || len(i.Args) == 0 {
		return 0, false
	}
	return i.Args[len(i.Args)-1], true
}

// WithJumpDistance returns a copy of the jump with its distance replaced.
func (i Instruction) WithJumpDistance(d int) Instruction {
	c := i.Clone()
	if len(c.Args) > 0 {
		c.Args[len(c.Args)-1] = d
	}
	return c
}

// JumpTarget returns the byte the jump at pos lands on. Forward jumps measure
// from their own last byte to the target's first byte; backward jumps measure
// from their own last byte to the target's last byte.
func (i Instruction) JumpTarget(pos int) (int, bool) {
	d, ok := i.JumpDistance()
	if !ok {
		return 0, false
	}
	last := pos + i.Len() - 1
	if i.Op.IsBackJump() {
		return last - d, true
	}
	return last + d, true
}

// Clone returns a deep copy.
func (i Instruction) Clone() Instruction {
	return Instruction{
		Op:      i.Op,
		Args:    slices.Clone(i.Args),
		Widths:  slices.Clone(i.Widths),
		Payload: slices.Clone(i.Payload),
	}
}

// String renders the instruction the way disassembly listings show it.
func (i Instruction) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%02X %s", byte(i.Op), table[i.Op].Name)
	for k, arg := range i.Args {
		width := 1
		if k < len(i.Widths) {
			width = i.Widths[k]
		}
		fmt.Fprintf(&sb, " %0*X", 2*width, arg)
	}
	if len(i.Payload) > 0 {
		fmt.Fprintf(&sb, " [% X]", i.Payload)
	}
	return sb.String()
}

func readLE(b []byte) int {
	v := 0
	for k := len(b) - 1; k >= 0; k-- {
		v = v<<8 | int(b[k])
	}
	return v
}

// Bytes concatenates the encodings of ins.
func Bytes(ins ...Instruction) []byte {
	var out []byte
	for _, in := range ins {
		out = in.AppendTo(out)
	}
	return out
}
