package eventcmd

import (
	"encoding/binary"
	"fmt"
)

// Each dynamic opcode reads its discriminator from the byte(s) following the
// opcode. A discriminator value without a known layout decodes with the
// default single-operand layout.

// colorMathLayout handles 0x2E. The high nibble of the first operand is the
// mode.
func colorMathLayout(buf []byte, pos int) (Layout, error) {
	b, err := byteAt(buf, pos+1)
	if err != nil {
		return Layout{}, err
	}
	switch b >> 4 {
	case 4, 5:
		return w(1, 1, 1, 1, 1), nil
	case 8:
		return w(1, 1, 2), nil
	}
	return w(1), nil
}

// memCopyLayout handles 0x4E. The third operand holds the copy length plus
// two, and that many bytes minus two follow the operands.
func memCopyLayout(buf []byte, pos int) (Layout, error) {
	if pos+6 > len(buf) {
		return Layout{}, ErrTruncated
	}
	n := int(binary.LittleEndian.Uint16(buf[pos+4:pos+6])) - 2
	if n < 0 {
		return Layout{}, fmt.Errorf("%w: memory copy length %d", ErrBadLayout, n+2)
	}
	return Layout{Widths: []int{2, 1, 2}, Payload: n}, nil
}

// paletteLayout handles 0x88. Mode 8 carries an inline palette whose length
// plus two is the second operand.
func paletteLayout(buf []byte, pos int) (Layout, error) {
	b, err := byteAt(buf, pos+1)
	if err != nil {
		return Layout{}, err
	}
	switch b >> 4 {
	case 0:
		return w(1), nil
	case 2, 3:
		return w(1, 1, 1), nil
	case 4, 5:
		return w(1, 1, 1, 1), nil
	case 8:
		size, err := byteAt(buf, pos+2)
		if err != nil {
			return Layout{}, err
		}
		if size < 2 {
			return Layout{}, fmt.Errorf("%w: palette length %d", ErrBadLayout, size)
		}
		return Layout{Widths: []int{1, 1, 1}, Payload: int(size) - 2}, nil
	}
	return w(1), nil
}

// colorAddLayout handles 0xF1. A zero color takes no intensity operand.
func colorAddLayout(buf []byte, pos int) (Layout, error) {
	b, err := byteAt(buf, pos+1)
	if err != nil {
		return Layout{}, err
	}
	if b == 0 {
		return w(1), nil
	}
	return w(1, 1), nil
}

// mode7Layout handles 0xFF. Two scenes take extra operands.
func mode7Layout(buf []byte, pos int) (Layout, error) {
	b, err := byteAt(buf, pos+1)
	if err != nil {
		return Layout{}, err
	}
	switch b {
	case 0x90:
		return w(1, 1, 1, 1), nil
	case 0x97:
		return w(1, 1, 1), nil
	}
	return w(1), nil
}

func byteAt(buf []byte, i int) (byte, error) {
	if i < 0 || i >= len(buf) {
		return 0, ErrTruncated
	}
	return buf[i], nil
}

// LayoutAt returns the operand layout of the instruction starting at buf[pos].
func LayoutAt(buf []byte, pos int) (Layout, error) {
	if pos < 0 || pos >= len(buf) {
		return Layout{}, ErrTruncated
	}
	def := &table[buf[pos]]
	if def.dynamic == nil {
		return def.Layout, nil
	}
	return def.dynamic(buf, pos)
}
