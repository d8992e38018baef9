// Package script holds one location's event script and edits it in place.
//
// A script buffer starts with a pointer table, 16 little-endian 16-bit
// function offsets per object, followed by the instruction stream. Offsets
// are relative to the start of the buffer. Every edit keeps the table and all
// jump distances consistent with the bytes that moved, so the buffer is valid
// after each call returns.
//
// Scripts are not safe for concurrent use. Callers that share one Script
// across goroutines must serialize access, as session.Session does.
package script

import (
	"encoding/binary"
	"slices"

	"github.com/fortiblox/eventforge/internal/types"
	"github.com/fortiblox/eventforge/pkg/eventcmd"
)

// Size limits.
const (
	MaxObjects   = types.MaxObjects
	NumFunctions = types.NumFunctions
	SlotSize     = types.ObjectTableSize

	// MaxLen is the largest buffer whose offsets fit the 16-bit table.
	MaxLen = 0xFFFF
)

// Script is a decoded event script.
type Script struct {
	data       []byte
	numObjects int

	strings         [][]byte
	stringsModified bool
}

// New wraps a decoded buffer holding numObjects objects. The buffer is
// copied.
func New(numObjects int, data []byte) (*Script, error) {
	if numObjects < 0 || numObjects > MaxObjects {
		return nil, capacityf("%d objects (max %d)", numObjects, MaxObjects)
	}
	if len(data) < numObjects*SlotSize {
		return nil, structuref("buffer of %d bytes cannot hold a %d-object table", len(data), numObjects)
	}
	if len(data) > MaxLen {
		return nil, capacityf("buffer of %d bytes exceeds 0x%X", len(data), MaxLen)
	}
	s := &Script{data: slices.Clone(data), numObjects: numObjects}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

// Empty returns a script with no objects.
func Empty() *Script {
	return &Script{data: []byte{}}
}

// FromPacket decodes the on-ROM form: one object-count byte followed by the
// buffer.
func FromPacket(packet []byte) (*Script, error) {
	if len(packet) == 0 {
		return nil, structuref("empty script packet")
	}
	return New(int(packet[0]), packet[1:])
}

// Packet returns the on-ROM form of the script.
func (s *Script) Packet() []byte {
	out := make([]byte, 0, len(s.data)+1)
	out = append(out, byte(s.numObjects))
	return append(out, s.data...)
}

// Clone returns a deep copy.
func (s *Script) Clone() *Script {
	c := &Script{
		data:            slices.Clone(s.data),
		numObjects:      s.numObjects,
		stringsModified: s.stringsModified,
	}
	c.strings = make([][]byte, len(s.strings))
	for i, str := range s.strings {
		c.strings[i] = slices.Clone(str)
	}
	return c
}

// Data returns the buffer. Callers must not modify it.
func (s *Script) Data() []byte {
	return s.data
}

// Len returns the buffer length.
func (s *Script) Len() int {
	return len(s.data)
}

// NumObjects returns the number of objects.
func (s *Script) NumObjects() int {
	return s.numObjects
}

// TableSize returns the size of the pointer table in bytes.
func (s *Script) TableSize() int {
	return s.numObjects * SlotSize
}

// Digest returns the BLAKE3 digest of the on-ROM form.
func (s *Script) Digest() types.Digest {
	return types.ComputeDigest(s.Packet())
}

// BodyStart is where the instruction stream begins: function 0 of object 0,
// or the end of an empty table.
func (s *Script) BodyStart() int {
	if s.numObjects == 0 {
		return 0
	}
	return s.ptr(0)
}

// ptr reads table entry i (object i/16, function i%16).
func (s *Script) ptr(i int) int {
	return int(binary.LittleEndian.Uint16(s.data[2*i:]))
}

func (s *Script) setPtr(i, v int) {
	binary.LittleEndian.PutUint16(s.data[2*i:], uint16(v))
}

func (s *Script) numSlots() int {
	return s.numObjects * NumFunctions
}

// Check verifies the pointer table: every offset lies in [table end,
// len(data)] and object starts never decrease.
func (s *Script) Check() error {
	table := s.TableSize()
	for i := 0; i < s.numSlots(); i++ {
		if v := s.ptr(i); v < table || v > len(s.data) {
			return structuref("object %d function %d offset 0x%04X outside [0x%04X, 0x%04X]",
				i/NumFunctions, i%NumFunctions, v, table, len(s.data))
		}
	}
	for obj := 1; obj < s.numObjects; obj++ {
		if s.ptr(obj*NumFunctions) < s.ptr((obj-1)*NumFunctions) {
			return structuref("object %d starts before object %d", obj, obj-1)
		}
	}
	return nil
}

// Verify runs Check and then decodes the whole instruction stream. Every
// stored function offset must fall on an instruction boundary.
func (s *Script) Verify() error {
	if err := s.Check(); err != nil {
		return err
	}
	starts := make(map[int]bool)
	err := s.Walk(s.BodyStart(), ToEnd, func(pos int, _ eventcmd.Instruction) bool {
		starts[pos] = true
		return true
	})
	if err != nil {
		return err
	}
	for i := 0; i < s.numSlots(); i++ {
		if v := s.ptr(i); v != len(s.data) && !starts[v] {
			return structuref("object %d function %d offset 0x%04X splits an instruction",
				i/NumFunctions, i%NumFunctions, v)
		}
	}
	return nil
}

func (s *Script) checkObject(obj int) error {
	if obj < 0 || obj >= s.numObjects {
		return &RangeError{What: "object", Index: obj, Limit: s.numObjects}
	}
	return nil
}

func (s *Script) checkFunction(obj, fn int) error {
	if err := s.checkObject(obj); err != nil {
		return err
	}
	if fn < 0 || fn >= NumFunctions {
		return &RangeError{What: "function", Index: fn, Limit: NumFunctions}
	}
	return nil
}
