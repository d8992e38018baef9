package script

import (
	"encoding/binary"
	"slices"

	"github.com/fortiblox/eventforge/pkg/eventcmd"
)

func (s *Script) checkRoom() error {
	if s.numObjects >= MaxObjects {
		return capacityf("script already has %d objects", MaxObjects)
	}
	return nil
}

// insertSlot writes a table slot for a new object at index at. The buffer
// grows by SlotSize; callers shift existing entries first.
func (s *Script) insertSlot(at int, ptrs [NumFunctions]int) {
	var slot [SlotSize]byte
	for fn, v := range ptrs {
		binary.LittleEndian.PutUint16(slot[2*fn:], uint16(v))
	}
	s.data = slices.Insert(s.data, at*SlotSize, slot[:]...)
	s.numObjects++
}

// AppendEmptyObject adds an object with no code after the last one and
// returns its index. Every function of the new object points at the end of
// the buffer.
func (s *Script) AppendEmptyObject() (int, error) {
	if err := s.checkRoom(); err != nil {
		return 0, err
	}
	if err := s.checkGrowth(SlotSize); err != nil {
		return 0, err
	}
	end := len(s.data) + SlotSize
	var ptrs [NumFunctions]int
	for fn := range ptrs {
		ptrs[fn] = end
	}
	s.shiftAllPointers(SlotSize)
	id := s.numObjects
	s.insertSlot(id, ptrs)
	return id, nil
}

// copyPointers rebases src's table slot onto a copy of its code placed at
// base. Slots pointing outside src keep their target, moved by outside. A
// slot at the end of the last object, or of an object with no code, belongs
// to it.
func (s *Script) copyPointers(src, base int, outside func(int) int) [NumFunctions]int {
	start, end := s.objectRange(src)
	own := src == s.numObjects-1 || start == end
	var ptrs [NumFunctions]int
	for fn := range ptrs {
		v := s.ptr(src*NumFunctions + fn)
		if v >= start && (v < end || v == end && own) {
			ptrs[fn] = v - start + base
		} else {
			ptrs[fn] = outside(v)
		}
	}
	return ptrs
}

// AppendCopyObject appends a copy of object src and returns the new index.
func (s *Script) AppendCopyObject(src int) (int, error) {
	if err := s.checkObject(src); err != nil {
		return 0, err
	}
	if err := s.checkRoom(); err != nil {
		return 0, err
	}
	start, end := s.objectRange(src)
	body := slices.Clone(s.data[start:end])
	if err := s.checkGrowth(SlotSize + len(body)); err != nil {
		return 0, err
	}

	ptrs := s.copyPointers(src, len(s.data)+SlotSize, func(v int) int { return v + SlotSize })
	s.shiftAllPointers(SlotSize)
	id := s.numObjects
	s.insertSlot(id, ptrs)
	s.data = append(s.data, body...)
	return id, nil
}

// InsertCopyObject inserts a copy of object src at index at, which may equal
// NumObjects. Objects from at onward move up by one and every object
// reference to them is renumbered, including references inside the copy.
func (s *Script) InsertCopyObject(src, at int) error {
	if err := s.checkObject(src); err != nil {
		return err
	}
	if at < 0 || at > s.numObjects {
		return &RangeError{What: "insert index", Index: at, Limit: s.numObjects + 1}
	}
	if err := s.checkRoom(); err != nil {
		return err
	}
	start, end := s.objectRange(src)
	body := slices.Clone(s.data[start:end])
	if err := s.checkGrowth(SlotSize + len(body)); err != nil {
		return err
	}

	insertPos := len(s.data)
	if at < s.numObjects {
		insertPos = s.ptr(at * NumFunctions)
	}
	n := len(body)

	return s.transact(func() error {
		ptrs := s.copyPointers(src, insertPos, func(v int) int {
			if v >= insertPos {
				return v + n
			}
			return v
		})

		var (
			r   relocation
			err error
		)
		if r.jumps, err = s.planJumps(insertPos, insertPos, n); err != nil {
			return err
		}
		if r.ptrs, err = s.planPointers(insertPos-1, n); err != nil {
			return err
		}
		// Objects before at with no code stay in front of the copy.
		r.ptrs = slices.DeleteFunc(r.ptrs, func(p patch) bool {
			return p.at < at*NumFunctions && s.ptr(p.at) == insertPos &&
				s.ptr(p.at/NumFunctions*NumFunctions) == insertPos
		})
		r.apply(s)
		s.data = slices.Insert(s.data, insertPos, body...)

		s.insertSlot(at, ptrs)
		s.shiftAllPointers(SlotSize)
		_, err = s.ShiftObjectRefs(at, 1)
		return err
	})
}

// RemoveObject deletes obj's code and table slot. References to objects
// after obj are renumbered; references to obj itself are left in place, so
// callers normally run RemoveObjectCalls first. Slots of other objects that
// linked into the removed code are pointed at whatever now follows it.
func (s *Script) RemoveObject(obj int) error {
	if err := s.checkObject(obj); err != nil {
		return err
	}
	start, end := s.objectRange(obj)
	l := end - start
	own := obj * NumFunctions

	return s.transact(func() error {
		for i := 0; i < s.numSlots(); i++ {
			if i >= own && i < own+NumFunctions {
				continue
			}
			switch v := s.ptr(i); {
			case v >= end:
				s.setPtr(i, v-l)
			case v > start:
				s.setPtr(i, start)
			}
		}
		s.data = slices.Delete(s.data, start, end)
		s.data = slices.Delete(s.data, own*2, (own+NumFunctions)*2)
		s.numObjects--
		s.shiftAllPointers(-SlotSize)

		_, err := s.ShiftObjectRefs(obj+1, -1)
		return err
	})
}

// RemoveObjectCalls deletes every object-reference instruction (calls,
// drawing toggles and processing toggles) that targets obj and returns how
// many were removed.
func (s *Script) RemoveObjectCalls(obj int) (int, error) {
	if err := s.checkObject(obj); err != nil {
		return 0, err
	}
	count := 0
	err := s.transact(func() error {
		pos := s.BodyStart()
		for {
			found := -1
			err := s.Walk(pos, ToEnd, func(p int, ins eventcmd.Instruction) bool {
				if eventcmd.ObjectRefs.Contains(ins.Op) && ins.Args[0] == 2*obj {
					found = p
					return false
				}
				return true
			})
			if err != nil {
				return err
			}
			if found < 0 {
				return nil
			}
			if err := s.DeleteCommands(found, 1); err != nil {
				return err
			}
			count++
			pos = found
		}
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ShiftObjectRefs adds delta to every object reference naming object from or
// later and returns how many instructions changed.
func (s *Script) ShiftObjectRefs(from, delta int) (int, error) {
	var (
		hits    []int
		planErr error
	)
	err := s.Walk(s.BodyStart(), ToEnd, func(pos int, ins eventcmd.Instruction) bool {
		if !eventcmd.ObjectRefs.Contains(ins.Op) || ins.Args[0] < 2*from {
			return true
		}
		if v := ins.Args[0] + 2*delta; v < 0 || v > 2*(MaxObjects-1) {
			planErr = capacityf("object reference at 0x%04X would become object %d", pos, v/2)
			return false
		}
		hits = append(hits, pos+1)
		return true
	})
	if err != nil {
		return 0, err
	}
	if planErr != nil {
		return 0, planErr
	}
	for _, at := range hits {
		s.data[at] = byte(int(s.data[at]) + 2*delta)
	}
	return len(hits), nil
}
