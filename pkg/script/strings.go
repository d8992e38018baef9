package script

import (
	"encoding/binary"
	"slices"

	"github.com/fortiblox/eventforge/pkg/eventcmd"
)

// Strings returns copies of the script's strings. Each string carries its
// 0x00 terminator.
func (s *Script) Strings() [][]byte {
	out := make([][]byte, len(s.strings))
	for i, str := range s.strings {
		out[i] = slices.Clone(str)
	}
	return out
}

// NumStrings returns the size of the string table.
func (s *Script) NumStrings() int {
	return len(s.strings)
}

// StringAt returns a copy of string i.
func (s *Script) StringAt(i int) ([]byte, error) {
	if i < 0 || i >= len(s.strings) {
		return nil, &RangeError{What: "string", Index: i, Limit: len(s.strings)}
	}
	return slices.Clone(s.strings[i]), nil
}

// AddString appends str to the string table and returns its index.
func (s *Script) AddString(str []byte) int {
	s.strings = append(s.strings, slices.Clone(str))
	s.stringsModified = true
	return len(s.strings) - 1
}

// SetString replaces string i.
func (s *Script) SetString(i int, str []byte) error {
	if i < 0 || i >= len(s.strings) {
		return &RangeError{What: "string", Index: i, Limit: len(s.strings)}
	}
	s.strings[i] = slices.Clone(str)
	s.stringsModified = true
	return nil
}

// SetStrings replaces the whole table without marking it modified. Loaders
// use it after decoding a script whose strings already live in the ROM.
func (s *Script) SetStrings(strs [][]byte) {
	s.strings = make([][]byte, len(strs))
	for i, str := range strs {
		s.strings[i] = slices.Clone(str)
	}
	s.stringsModified = false
}

// StringsModified reports whether the table changed since it was loaded or
// last written.
func (s *Script) StringsModified() bool {
	return s.stringsModified
}

// MarkStringsModified forces the table to be written on the next flush.
func (s *Script) MarkStringsModified() {
	s.stringsModified = true
}

// MarkStringsClean records that the table has been written.
func (s *Script) MarkStringsClean() {
	s.stringsModified = false
}

// StringIndex returns the ROM pointer carried by the last string-index
// instruction in object 0. ok is false when there is none.
func (s *Script) StringIndex() (int, bool, error) {
	if s.numObjects == 0 {
		return 0, false, nil
	}
	start, end := s.objectRange(0)
	ptr, ok := 0, false
	err := s.Walk(start, end, func(_ int, ins eventcmd.Instruction) bool {
		if ins.Op == eventcmd.OpStringIndex {
			ptr, ok = ins.Args[0], true
		}
		return true
	})
	return ptr, ok, err
}

// SetStringIndex points the script at a string bank. The string-index
// instruction in function 0 of object 0 is rewritten in place, or inserted
// at the top of that function when the script has strings but no index.
func (s *Script) SetStringIndex(romPtr int) error {
	ins := eventcmd.SetStringIndex(romPtr)
	if err := ins.Validate(); err != nil {
		return structuref("%v", err)
	}
	if s.numObjects == 0 {
		return &RangeError{What: "object", Index: 0, Limit: 0}
	}
	start := s.ptr(0)
	end, err := s.FunctionEnd(0, 0)
	if err != nil {
		return err
	}
	pos, _, err := s.LookupCommand(eventcmd.StringIndex, start, end)
	if err != nil {
		return err
	}
	if pos < 0 {
		if len(s.strings) == 0 {
			return nil
		}
		return s.InsertCommands(ins.Encode(), start)
	}
	copy(s.data[pos:], ins.Encode())
	return nil
}

// stringRefs returns the operand offsets of every string command.
func (s *Script) stringRefs(start, end int) ([]int, error) {
	var refs []int
	err := s.Walk(start, end, func(pos int, ins eventcmd.Instruction) bool {
		if eventcmd.StringCommands.Contains(ins.Op) {
			refs = append(refs, pos+1)
		}
		return true
	})
	return refs, err
}

// ObjectStrings returns the strings referenced by text commands in obj,
// keyed by string index.
func (s *Script) ObjectStrings(obj int) (map[int][]byte, error) {
	if err := s.checkObject(obj); err != nil {
		return nil, err
	}
	start, end := s.objectRange(obj)
	refs, err := s.stringRefs(start, end)
	if err != nil {
		return nil, err
	}
	out := make(map[int][]byte, len(refs))
	for _, at := range refs {
		i := int(s.data[at])
		str, err := s.StringAt(i)
		if err != nil {
			return nil, err
		}
		out[i] = str
	}
	return out, nil
}

// ReadStrings fills the table from a string bank. read returns the string
// stored under a bank index. Only indices the script uses are read; they are
// renumbered densely in ascending order, and the table is marked modified if
// that changed any operand.
func (s *Script) ReadStrings(read func(index int) ([]byte, error)) error {
	refs, err := s.stringRefs(s.BodyStart(), ToEnd)
	if err != nil {
		return err
	}
	s.strings = nil
	s.stringsModified = false
	if len(refs) == 0 {
		return nil
	}

	var used []int
	for _, at := range refs {
		used = append(used, int(s.data[at]))
	}
	slices.Sort(used)
	used = slices.Compact(used)

	remap := make(map[int]int, len(used))
	strs := make([][]byte, 0, len(used))
	for i, idx := range used {
		str, err := read(idx)
		if err != nil {
			return err
		}
		remap[idx] = i
		strs = append(strs, str)
	}
	for _, at := range refs {
		if n := remap[int(s.data[at])]; n != int(s.data[at]) {
			s.data[at] = byte(n)
			s.stringsModified = true
		}
	}
	s.strings = strs
	return nil
}

// StringBankLen is the size of the bank StringBank builds.
func (s *Script) StringBankLen() int {
	n := 2 * len(s.strings)
	for _, str := range s.strings {
		n += len(str)
	}
	return n
}

// StringBank encodes the table for storage at file address addr: one 16-bit
// bank-local pointer per string, then the strings back to back. The block
// must not cross a bank boundary.
func (s *Script) StringBank(addr int) []byte {
	out := make([]byte, 2*len(s.strings), s.StringBankLen())
	pos := addr%0x10000 + 2*len(s.strings)
	for i, str := range s.strings {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(pos))
		pos += len(str)
	}
	for _, str := range s.strings {
		out = append(out, str...)
	}
	return out
}
