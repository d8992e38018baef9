// Package ctcompress implements the LZ77 variant the game uses for event
// scripts and other packed data.
//
// A packet starts with the 16-bit length of its main body. The body is a
// series of groups: one header byte, then eight items. A clear header bit is
// a literal byte; a set bit is a two-byte back-reference holding an offset in
// the low bits and a copy length minus three in the high bits. The byte after
// the main body is a flag: its top bits select the reference width and its low
// six bits, when non-zero, announce an addendum group whose end offset follows
// in the next two bytes.
package ctcompress

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Format limits.
const (
	// MaxOutput bounds a decompressed packet.
	MaxOutput = 0x10000

	smallWidthFlag = 0xC0

	smallOffsetMask = 0x07FF
	smallLenShift   = 3
	largeOffsetMask = 0x0FFF
	largeLenShift   = 4

	minMatch = 3
	maxMatch = 34
	window   = smallOffsetMask
)

var (
	// ErrCorrupt is returned when a packet cannot be decoded.
	ErrCorrupt = errors.New("corrupt compressed packet")

	// ErrTooLarge is returned when data does not fit the format's 16-bit
	// lengths.
	ErrTooLarge = errors.New("data too large to compress")
)

type reader struct {
	buf []byte
}

func (r reader) u8(at int) (int, error) {
	if at < 0 || at >= len(r.buf) {
		return 0, fmt.Errorf("%w: read at 0x%06X past end", ErrCorrupt, at)
	}
	return int(r.buf[at]), nil
}

func (r reader) u16(at int) (int, error) {
	if at < 0 || at+2 > len(r.buf) {
		return 0, fmt.Errorf("%w: read at 0x%06X past end", ErrCorrupt, at)
	}
	return int(binary.LittleEndian.Uint16(r.buf[at:])), nil
}

// Decompress decodes the packet starting at buf[addr].
func Decompress(buf []byte, addr int) ([]byte, error) {
	r := reader{buf}
	mainLen, err := r.u16(addr)
	if err != nil {
		return nil, err
	}
	src := addr + 2
	end := src + mainLen
	flag, err := r.u8(end)
	if err != nil {
		return nil, err
	}
	offMask, lenShift := largeOffsetMask, largeLenShift
	if flag&smallWidthFlag != 0 {
		offMask, lenShift = smallOffsetMask, smallLenShift
	}

	out := make([]byte, 0, 0x2000)
	for {
		if src == end {
			flag, err := r.u8(src)
			if err != nil {
				return nil, err
			}
			if flag&0x3F == 0 {
				return out, nil
			}
			next, err := r.u16(src + 1)
			if err != nil {
				return nil, err
			}
			if addr+next <= src+3 {
				return nil, fmt.Errorf("%w: addendum end 0x%04X does not advance", ErrCorrupt, next)
			}
			end = addr + next
			src += 3
		}

		header, err := r.u8(src)
		if err != nil {
			return nil, err
		}
		src++
		for bit := 0; bit < 8 && src < end; bit++ {
			if header&(1<<bit) == 0 {
				b, err := r.u8(src)
				if err != nil {
					return nil, err
				}
				if len(out) >= MaxOutput {
					return nil, fmt.Errorf("%w: output exceeds 0x%X bytes", ErrCorrupt, MaxOutput)
				}
				out = append(out, byte(b))
				src++
				continue
			}
			ref, err := r.u16(src)
			if err != nil {
				return nil, err
			}
			src += 2
			off := ref & offMask
			n := ref>>8>>lenShift + minMatch
			if off == 0 || off > len(out) {
				return nil, fmt.Errorf("%w: back-reference offset 0x%X at output 0x%X", ErrCorrupt, off, len(out))
			}
			if len(out)+n > MaxOutput {
				return nil, fmt.Errorf("%w: output exceeds 0x%X bytes", ErrCorrupt, MaxOutput)
			}
			from := len(out) - off
			for k := 0; k < n; k++ {
				out = append(out, out[from+k])
			}
		}
		if src > end {
			return nil, fmt.Errorf("%w: group overruns its section end 0x%06X", ErrCorrupt, end)
		}
	}
}

// CompressedLength returns the size of the packet starting at buf[addr],
// including its trailing flag byte.
func CompressedLength(buf []byte, addr int) (int, error) {
	r := reader{buf}
	mainLen, err := r.u16(addr)
	if err != nil {
		return 0, err
	}
	n := 2 + mainLen
	for {
		flag, err := r.u8(addr + n)
		if err != nil {
			return 0, err
		}
		if flag&0x3F == 0 {
			return n + 1, nil
		}
		next, err := r.u16(addr + n + 1)
		if err != nil {
			return 0, err
		}
		if next <= n {
			return 0, fmt.Errorf("%w: addendum end 0x%04X does not advance", ErrCorrupt, next)
		}
		n = next
	}
}

// Compress encodes src in the small-width form with greedy longest matches.
func Compress(src []byte) ([]byte, error) {
	if len(src) > MaxOutput {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(src))
	}
	m := newMatcher(src)
	out := make([]byte, 2, len(src)+len(src)/8+8)
	pos := 0
	for {
		headerPos := len(out)
		out = append(out, 0)
		for bit := 0; bit < 8; bit++ {
			if pos == len(src) {
				return finish(out, headerPos, bit)
			}
			n, off := m.longest(pos)
			if n >= minMatch {
				out[headerPos] |= 1 << bit
				out = binary.LittleEndian.AppendUint16(out, uint16(off|(n-minMatch)<<11))
				m.skip(pos, n)
				pos += n
				continue
			}
			out = append(out, src[pos])
			m.skip(pos, 1)
			pos++
		}
	}
}

// finish terminates the stream. A partly filled group becomes the addendum:
// it moves down three bytes to make room for the flag and its end offset.
func finish(out []byte, headerPos, bit int) ([]byte, error) {
	mainLen := headerPos - 2
	if bit == 0 {
		out[headerPos] = smallWidthFlag
		out = out[:headerPos+1]
	} else {
		out[headerPos] |= byte(0xFF << bit)
		group := append([]byte(nil), out[headerPos:]...)
		end := len(out) + 3
		if end > 0xFFFF {
			return nil, fmt.Errorf("%w: packet of %d bytes", ErrTooLarge, end+1)
		}
		out = append(out[:headerPos], smallWidthFlag|byte(bit))
		out = binary.LittleEndian.AppendUint16(out, uint16(end))
		out = append(out, group...)
		out = append(out, smallWidthFlag)
	}
	if mainLen > 0xFFFF {
		return nil, fmt.Errorf("%w: main body of %d bytes", ErrTooLarge, mainLen)
	}
	binary.LittleEndian.PutUint16(out, uint16(mainLen))
	return out, nil
}

// matcher finds back-references with hash chains over three-byte prefixes.
type matcher struct {
	src  []byte
	head []int32
	prev []int32
}

const hashBits = 14

func newMatcher(src []byte) *matcher {
	m := &matcher{
		src:  src,
		head: make([]int32, 1<<hashBits),
		prev: make([]int32, len(src)),
	}
	for i := range m.head {
		m.head[i] = -1
	}
	return m
}

func (m *matcher) hash(pos int) int {
	v := uint32(m.src[pos])<<16 | uint32(m.src[pos+1])<<8 | uint32(m.src[pos+2])
	return int((v * 2654435761) >> (32 - hashBits))
}

func (m *matcher) insert(pos int) {
	if pos+minMatch > len(m.src) {
		return
	}
	h := m.hash(pos)
	m.prev[pos] = m.head[h]
	m.head[h] = int32(pos)
}

func (m *matcher) skip(pos, n int) {
	for i := pos; i < pos+n; i++ {
		m.insert(i)
	}
}

// longest returns the longest match for src[pos:] within the window and its
// offset. Nearer candidates win ties.
func (m *matcher) longest(pos int) (int, int) {
	if pos+minMatch > len(m.src) {
		return 0, 0
	}
	limit := min(maxMatch, len(m.src)-pos)
	best, bestOff := 0, 0
	for cand := int(m.head[m.hash(pos)]); cand >= 0 && pos-cand <= window; cand = int(m.prev[cand]) {
		n := 0
		for n < limit && m.src[cand+n] == m.src[pos+n] {
			n++
		}
		if n > best {
			best, bestOff = n, pos-cand
			if best == limit {
				break
			}
		}
	}
	return best, bestOff
}
