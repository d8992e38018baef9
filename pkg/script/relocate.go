package script

import (
	"slices"

	"github.com/fortiblox/eventforge/pkg/eventcmd"
)

// patch sets one value: a jump distance byte (at is a buffer offset) or a
// table entry (at is a slot index).
type patch struct {
	at    int
	value int
}

// relocation is a fully validated set of patches. Nothing is written until
// apply, so a failed plan leaves the script untouched.
type relocation struct {
	jumps []patch
	ptrs  []patch
}

func (r *relocation) apply(s *Script) {
	for _, p := range r.jumps {
		s.data[p.at] = byte(p.value)
	}
	for _, p := range r.ptrs {
		s.setPtr(p.at, p.value)
	}
}

// planJumps finds every jump whose span crosses an edit of [before, after)
// and computes its new distance. before == after is an insertion of shift
// bytes; otherwise after-before bytes are removed and shift is negative.
//
// A jump spans [lo, hi] where one end is its command boundary (the command
// start for forward jumps, the byte past it for back jumps) and the other is
// its target. It is patched when lo < before and hi > after for insertions,
// or hi >= after for deletions. Jumps inside a deleted range are skipped.
//
// The walk also checks that before and after fall on instruction boundaries.
func (s *Script) planJumps(before, after, shift int) ([]patch, error) {
	deletion := before != after
	var (
		out                 []patch
		hitBefore, hitAfter bool
		planErr             error
	)
	end := len(s.data)
	hitBefore = before == end
	hitAfter = after == end
	err := s.Walk(s.BodyStart(), end, func(pos int, ins eventcmd.Instruction) bool {
		if pos == before {
			hitBefore = true
		}
		if pos == after {
			hitAfter = true
		}
		if !ins.Op.IsJump() {
			return true
		}
		if deletion && pos >= before && pos < after {
			return true
		}
		target, _ := ins.JumpTarget(pos)
		bound := pos
		if ins.Op.IsBackJump() {
			bound = pos + ins.Len()
		}
		lo, hi := min(bound, target), max(bound, target)
		crosses := hi > after
		if deletion {
			crosses = hi >= after
		}
		if lo >= before || !crosses {
			return true
		}
		dist, _ := ins.JumpDistance()
		nd := dist + shift
		if nd < 0 || nd > 0xFF {
			planErr = capacityf("jump at 0x%04X: distance %d out of range after shifting by %d", pos, nd, shift)
			return false
		}
		out = append(out, patch{at: pos + ins.Len() - 1, value: nd})
		return true
	})
	if err != nil {
		return nil, err
	}
	if planErr != nil {
		return nil, planErr
	}
	if !hitBefore || !hitAfter {
		return nil, structuref("[0x%04X, 0x%04X) is not on instruction boundaries", before, after)
	}
	return out, nil
}

// planPointers shifts every table entry greater than thresh. A negative
// thresh shifts every entry. When shift removes bytes after thresh, entries
// inside the removed span collapse onto thresh.
func (s *Script) planPointers(thresh, shift int) ([]patch, error) {
	var out []patch
	for i := 0; i < s.numSlots(); i++ {
		v := s.ptr(i)
		if v <= thresh {
			continue
		}
		nv := v + shift
		if shift < 0 && v < thresh-shift {
			nv = thresh
		}
		if nv < 0 || nv > MaxLen {
			return nil, capacityf("object %d function %d offset 0x%04X shifted by %d leaves the 16-bit range",
				i/NumFunctions, i%NumFunctions, v, shift)
		}
		out = append(out, patch{at: i, value: nv})
	}
	return out, nil
}

// shiftAllPointers adds delta to every table entry. Used when the table
// itself grows or shrinks by one object.
func (s *Script) shiftAllPointers(delta int) {
	for i := 0; i < s.numSlots(); i++ {
		s.setPtr(i, s.ptr(i)+delta)
	}
}

func (s *Script) checkGrowth(n int) error {
	if len(s.data)+n > MaxLen {
		return capacityf("script would grow to %d bytes (max %d)", len(s.data)+n, MaxLen)
	}
	return nil
}

// transact runs fn and restores the buffer if it fails.
func (s *Script) transact(fn func() error) error {
	data, n := slices.Clone(s.data), s.numObjects
	if err := fn(); err != nil {
		s.data, s.numObjects = data, n
		return err
	}
	return nil
}
