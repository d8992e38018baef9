package script

import (
	"fmt"

	"github.com/fortiblox/eventforge/pkg/eventcmd"
)

// ToEnd as an end bound searches to the end of the buffer. Any negative start
// searches from the start of the instruction stream.
const ToEnd = -1

func (s *Script) bounds(start, end int) (int, int) {
	if start < 0 {
		start = s.BodyStart()
	}
	if end < 0 || end > len(s.data) {
		end = len(s.data)
	}
	return start, end
}

// Walk decodes instructions from start until end, calling fn for each. fn
// returns false to stop early.
func (s *Script) Walk(start, end int, fn func(pos int, ins eventcmd.Instruction) bool) error {
	start, end = s.bounds(start, end)
	for pos := start; pos < end; {
		ins, err := eventcmd.Decode(s.data, pos)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStructure, err)
		}
		if !fn(pos, ins) {
			return nil
		}
		pos += ins.Len()
	}
	return nil
}

// LookupCommand returns the first instruction in [start, end) whose opcode
// is in ops. pos is -1 when there is none.
func (s *Script) LookupCommand(ops eventcmd.Set, start, end int) (int, eventcmd.Instruction, error) {
	found, hit := -1, eventcmd.Instruction{}
	err := s.Walk(start, end, func(pos int, ins eventcmd.Instruction) bool {
		if ops.Contains(ins.Op) {
			found, hit = pos, ins
			return false
		}
		return true
	})
	if err != nil {
		return -1, eventcmd.Instruction{}, err
	}
	return found, hit, nil
}

// FindCommand is LookupCommand but returns ErrNotFound when nothing matches.
func (s *Script) FindCommand(ops eventcmd.Set, start, end int) (int, eventcmd.Instruction, error) {
	pos, ins, err := s.LookupCommand(ops, start, end)
	if err != nil {
		return pos, ins, err
	}
	if pos < 0 {
		return pos, ins, fmt.Errorf("%w: opcodes %v in [0x%04X, 0x%04X)", ErrNotFound, ops.Opcodes(), start, end)
	}
	return pos, ins, nil
}

// LookupExactCommand returns the position of the first instruction in
// [start, end) that matches want. Jumps match regardless of distance.
func (s *Script) LookupExactCommand(want eventcmd.Instruction, start, end int) (int, error) {
	found := -1
	err := s.Walk(start, end, func(pos int, ins eventcmd.Instruction) bool {
		if ins.Matches(want) {
			found = pos
			return false
		}
		return true
	})
	if err != nil {
		return -1, err
	}
	return found, nil
}

// FindExactCommand is LookupExactCommand but returns ErrNotFound when
// nothing matches.
func (s *Script) FindExactCommand(want eventcmd.Instruction, start, end int) (int, error) {
	pos, err := s.LookupExactCommand(want, start, end)
	if err != nil {
		return pos, err
	}
	if pos < 0 {
		return pos, fmt.Errorf("%w: %s", ErrNotFound, want)
	}
	return pos, nil
}

// FindAll returns the positions of every instruction in [start, end) whose
// opcode is in ops.
func (s *Script) FindAll(ops eventcmd.Set, start, end int) ([]int, error) {
	var out []int
	err := s.Walk(start, end, func(pos int, ins eventcmd.Instruction) bool {
		if ops.Contains(ins.Op) {
			out = append(out, pos)
		}
		return true
	})
	return out, err
}

// CommandAt decodes the instruction at pos.
func (s *Script) CommandAt(pos int) (eventcmd.Instruction, error) {
	ins, err := eventcmd.Decode(s.data, pos)
	if err != nil {
		return ins, fmt.Errorf("%w: %w", ErrStructure, err)
	}
	return ins, nil
}
