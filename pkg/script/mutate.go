package script

import (
	"slices"

	"github.com/fortiblox/eventforge/pkg/eventcmd"
)

// checkStream verifies that b is a whole number of instructions.
func checkStream(b []byte) error {
	for pos := 0; pos < len(b); {
		n, err := eventcmd.Len(b, pos)
		if err != nil {
			return structuref("inserted bytes: %v", err)
		}
		pos += n
	}
	return nil
}

// InsertCommands splices b into the instruction stream at pos. Jumps whose
// span crosses pos grow by len(b) and table entries past pos move with the
// code. A jump whose block ends exactly at pos is left alone, so inserting
// at a block's end places the bytes after the block.
func (s *Script) InsertCommands(b []byte, pos int) error {
	if len(b) == 0 {
		return nil
	}
	if pos < s.BodyStart() || pos > len(s.data) {
		return structuref("insert position 0x%04X outside [0x%04X, 0x%04X]", pos, s.BodyStart(), len(s.data))
	}
	if err := checkStream(b); err != nil {
		return err
	}
	if err := s.checkGrowth(len(b)); err != nil {
		return err
	}
	var (
		r   relocation
		err error
	)
	if r.jumps, err = s.planJumps(pos, pos, len(b)); err != nil {
		return err
	}
	if r.ptrs, err = s.planPointers(pos, len(b)); err != nil {
		return err
	}
	r.apply(s)
	s.data = slices.Insert(s.data, pos, b...)
	return nil
}

// DeleteCommands removes n instructions starting at pos.
func (s *Script) DeleteCommands(pos, n int) error {
	if pos < s.BodyStart() || pos >= len(s.data) {
		return structuref("delete position 0x%04X outside [0x%04X, 0x%04X)", pos, s.BodyStart(), len(s.data))
	}
	end := pos
	for i := 0; i < n; i++ {
		if end >= len(s.data) {
			return structuref("deleting %d commands at 0x%04X runs past the end", n, pos)
		}
		l, err := eventcmd.Len(s.data, end)
		if err != nil {
			return structuref("%v", err)
		}
		end += l
	}
	return s.cut(pos, end)
}

// cut removes [start, end), which must be whole instructions.
func (s *Script) cut(start, end int) error {
	l := end - start
	if l <= 0 {
		return nil
	}
	var (
		r   relocation
		err error
	)
	if r.jumps, err = s.planJumps(start, end, -l); err != nil {
		return err
	}
	if r.ptrs, err = s.planPointers(start, -l); err != nil {
		return err
	}
	r.apply(s)
	s.data = slices.Delete(s.data, start, end)
	return nil
}

// DeleteCommandsRange removes the instructions that exactly cover
// [start, end). If an instruction straddles end nothing is removed.
func (s *Script) DeleteCommandsRange(start, end int) error {
	if start < s.BodyStart() || end > len(s.data) || start > end {
		return structuref("delete range [0x%04X, 0x%04X) outside the body", start, end)
	}
	pos := start
	for pos < end {
		l, err := eventcmd.Len(s.data, pos)
		if err != nil {
			return structuref("%v", err)
		}
		pos += l
	}
	if pos != end {
		return structuref("delete range [0x%04X, 0x%04X) ends inside the instruction at 0x%04X",
			start, end, pos-1)
	}
	return s.transact(func() error {
		for left := end - start; left > 0; {
			l, err := eventcmd.Len(s.data, start)
			if err != nil {
				return structuref("%v", err)
			}
			if err := s.cut(start, start+l); err != nil {
				return err
			}
			left -= l
		}
		return nil
	})
}

// SetFunction replaces the code of function fn of obj with body.
//
// The replaced region runs from the end of the nearest real function before
// fn (or the object start) to the start of the next real function after fn
// (or the object end). fn is pointed at the region start. Other table entries
// are adjusted by where they pointed: below the region they stay, at or past
// its end they shift by the size change, and inside it they are pinned to the
// region start. Empty slots that aliased code before the region are therefore
// untouched, while those that aliased fn keep aliasing it. When the region is
// empty, slots at its start stay there if they lie between fn and the next
// real function, or precede fn and the region opens the object. A fresh
// object's unused functions therefore alias the first body written into it,
// and code-less objects before it keep their place. Jumps are not relocated;
// no jump may cross a function boundary.
func (s *Script) SetFunction(obj, fn int, body []byte) error {
	if err := s.checkFunction(obj, fn); err != nil {
		return err
	}
	if err := checkStream(body); err != nil {
		return err
	}
	slots, err := s.Slots(obj)
	if err != nil {
		return err
	}
	objStart, objEnd := s.objectRange(obj)

	trueStart := objStart
	for prev := fn - 1; prev >= 0; prev-- {
		if slots[prev].Kind == SlotReal {
			trueStart, _ = trueStartAfter(&slots, prev, objEnd)
			break
		}
	}
	trueEnd, nextReal := trueStartAfter(&slots, fn, objEnd)
	if trueEnd < trueStart {
		return structuref("object %d function %d: region end 0x%04X before start 0x%04X",
			obj, fn, trueEnd, trueStart)
	}

	shift := len(body) - (trueEnd - trueStart)
	if err := s.checkGrowth(shift); err != nil {
		return err
	}

	self := obj*NumFunctions + fn
	runEnd := obj*NumFunctions + nextReal
	var ptrs []patch
	for i := 0; i < s.numSlots(); i++ {
		v := s.ptr(i)
		switch {
		case i == self:
			v = trueStart
		case v == trueStart && (i > self && i < runEnd || i < self && trueStart == objStart):
			continue
		case v < trueStart:
			continue
		case v >= trueEnd:
			v += shift
		default:
			v = trueStart
		}
		if v < 0 || v > MaxLen {
			return capacityf("object %d function %d offset would move to 0x%X", i/NumFunctions, i%NumFunctions, v)
		}
		ptrs = append(ptrs, patch{at: i, value: v})
	}

	r := relocation{ptrs: ptrs}
	r.apply(s)
	s.data = slices.Replace(s.data, trueStart, trueEnd, body...)
	return nil
}

// ReplaceCommand replaces every instruction in [start, end) that matches from
// with to and returns how many were replaced.
func (s *Script) ReplaceCommand(from, to eventcmd.Instruction, start, end int) (int, error) {
	if err := to.Validate(); err != nil {
		return 0, structuref("%v", err)
	}
	start, end = s.bounds(start, end)
	repl := to.Encode()
	count := 0
	for {
		pos, err := s.LookupExactCommand(from, start, end)
		if err != nil {
			return count, err
		}
		if pos < 0 {
			return count, nil
		}
		old, err := s.CommandAt(pos)
		if err != nil {
			return count, err
		}
		if err := s.InsertCommands(repl, pos); err != nil {
			return count, err
		}
		if err := s.DeleteCommands(pos+len(repl), 1); err != nil {
			return count, err
		}
		count++
		start = pos + len(repl)
		end += len(repl) - old.Len()
	}
}

// jumpBlock returns the forward jump at pos and its target.
func (s *Script) jumpBlock(pos int) (eventcmd.Instruction, int, error) {
	ins, err := s.CommandAt(pos)
	if err != nil {
		return ins, 0, err
	}
	if !ins.Op.IsForwardJump() {
		return ins, 0, structuref("%s at 0x%04X is not a forward jump", ins.Op, pos)
	}
	target, _ := ins.JumpTarget(pos)
	if target > len(s.data) {
		return ins, 0, structuref("jump at 0x%04X lands past the end at 0x%04X", pos, target)
	}
	return ins, target, nil
}

// JumpBlock returns a copy of the block guarded by the forward jump at pos,
// optionally including the jump itself.
func (s *Script) JumpBlock(pos int, includeCond bool) ([]byte, error) {
	ins, target, err := s.jumpBlock(pos)
	if err != nil {
		return nil, err
	}
	start := pos + ins.Len()
	if includeCond {
		start = pos
	}
	return slices.Clone(s.data[start:target]), nil
}

// DeleteJumpBlock removes the forward jump at pos together with the block it
// skips.
func (s *Script) DeleteJumpBlock(pos int) error {
	_, target, err := s.jumpBlock(pos)
	if err != nil {
		return err
	}
	return s.DeleteCommandsRange(pos, target)
}

// DeleteCommandFromFunction deletes the first instruction with an opcode in
// ops inside function fn of obj. start and end narrow the search when they
// fall inside the function; pass ToEnd to ignore them. It returns the deleted
// position, or -1 when nothing matched.
func (s *Script) DeleteCommandFromFunction(ops eventcmd.Set, obj, fn, start, end int) (int, error) {
	fnStart, err := s.FunctionStart(obj, fn)
	if err != nil {
		return -1, err
	}
	fnEnd, err := s.FunctionEnd(obj, fn)
	if err != nil {
		return -1, err
	}
	if start > fnStart && start < fnEnd {
		fnStart = start
	}
	if end > fnStart && end < fnEnd {
		fnEnd = end
	}
	pos, _, err := s.LookupCommand(ops, fnStart, fnEnd)
	if err != nil || pos < 0 {
		return -1, err
	}
	return pos, s.DeleteCommands(pos, 1)
}
