package script

import "fmt"

// SlotKind classifies a function slot.
type SlotKind int

const (
	// SlotReal slots own independent code inside their object.
	SlotReal SlotKind = iota
	// SlotEmpty slots share their start with an earlier slot of the same
	// object and run that slot's body.
	SlotEmpty
	// SlotLinked slots point outside their own object's range.
	SlotLinked
)

func (k SlotKind) String() string {
	switch k {
	case SlotReal:
		return "real"
	case SlotEmpty:
		return "empty"
	case SlotLinked:
		return "linked"
	}
	return fmt.Sprintf("SlotKind(%d)", int(k))
}

// Slot is the derived state of one function slot.
type Slot struct {
	Kind  SlotKind
	Start int

	// Alias is the earliest earlier function with the same start. Set for
	// SlotEmpty only.
	Alias int

	// Object owns the code a SlotLinked slot points at, or -1 when the
	// target is past every object.
	Object int
}

// Slots classifies all 16 function slots of obj. Function 0 is always real.
// A slot pointing outside the object is linked even when an earlier slot
// shares its start.
func (s *Script) Slots(obj int) ([NumFunctions]Slot, error) {
	var slots [NumFunctions]Slot
	if err := s.checkObject(obj); err != nil {
		return slots, err
	}
	start, end := s.objectRange(obj)
	base := obj * NumFunctions
	for fn := range slots {
		v := s.ptr(base + fn)
		slot := Slot{Kind: SlotReal, Start: v, Alias: -1, Object: obj}
		switch {
		case fn == 0:
		case v < start || v >= end:
			slot.Kind = SlotLinked
			slot.Object = s.objectAt(v)
		default:
			for prev := 0; prev < fn; prev++ {
				if s.ptr(base+prev) == v {
					slot.Kind = SlotEmpty
					slot.Alias = prev
					break
				}
			}
		}
		slots[fn] = slot
	}
	return slots, nil
}

// Slot classifies a single function slot.
func (s *Script) Slot(obj, fn int) (Slot, error) {
	if err := s.checkFunction(obj, fn); err != nil {
		return Slot{}, err
	}
	slots, err := s.Slots(obj)
	if err != nil {
		return Slot{}, err
	}
	return slots[fn], nil
}

// IsReal reports whether function fn of obj owns independent code.
func (s *Script) IsReal(obj, fn int) (bool, error) {
	slot, err := s.Slot(obj, fn)
	return slot.Kind == SlotReal, err
}

// IsEmpty reports whether function fn of obj aliases an earlier function.
func (s *Script) IsEmpty(obj, fn int) (bool, error) {
	slot, err := s.Slot(obj, fn)
	return slot.Kind == SlotEmpty, err
}

// IsLinked reports whether function fn of obj runs another object's code.
func (s *Script) IsLinked(obj, fn int) (bool, error) {
	slot, err := s.Slot(obj, fn)
	return slot.Kind == SlotLinked, err
}

// objectRange returns [start, end) of obj's code. obj must be valid.
func (s *Script) objectRange(obj int) (int, int) {
	start := s.ptr(obj * NumFunctions)
	if obj+1 < s.numObjects {
		return start, s.ptr((obj + 1) * NumFunctions)
	}
	return start, len(s.data)
}

// objectAt returns the object whose range holds offset, or -1.
func (s *Script) objectAt(offset int) int {
	for obj := 0; obj < s.numObjects; obj++ {
		if start, end := s.objectRange(obj); offset >= start && offset < end {
			return obj
		}
	}
	return -1
}

// ObjectStart returns the offset of obj's first function.
func (s *Script) ObjectStart(obj int) (int, error) {
	if err := s.checkObject(obj); err != nil {
		return 0, err
	}
	return s.ptr(obj * NumFunctions), nil
}

// ObjectEnd returns the start of the next object, or len(data) for the last.
func (s *Script) ObjectEnd(obj int) (int, error) {
	if err := s.checkObject(obj); err != nil {
		return 0, err
	}
	start, end := s.objectRange(obj)
	if end < start {
		return 0, structuref("object %d ends at 0x%04X before its start 0x%04X", obj, end, start)
	}
	return end, nil
}

// FunctionStart returns the stored offset of function fn of obj.
func (s *Script) FunctionStart(obj, fn int) (int, error) {
	if err := s.checkFunction(obj, fn); err != nil {
		return 0, err
	}
	return s.ptr(obj*NumFunctions + fn), nil
}

// FunctionEnd returns the nearest offset past the function's start that is
// stored in another slot of this object or any slot of a later object, or
// len(data). The result is never below the start.
func (s *Script) FunctionEnd(obj, fn int) (int, error) {
	start, err := s.FunctionStart(obj, fn)
	if err != nil {
		return 0, err
	}
	end := len(s.data)
	self := obj*NumFunctions + fn
	for i := obj * NumFunctions; i < s.numSlots(); i++ {
		if v := s.ptr(i); i != self && v > start && v < end {
			end = v
		}
	}
	return end, nil
}

// Function returns a copy of the bytes of function fn of obj.
func (s *Script) Function(obj, fn int) ([]byte, error) {
	start, err := s.FunctionStart(obj, fn)
	if err != nil {
		return nil, err
	}
	end, err := s.FunctionEnd(obj, fn)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), s.data[start:end]...), nil
}

// trueStartAfter returns the start of the first real slot after fn in obj,
// or the object's end.
func trueStartAfter(slots *[NumFunctions]Slot, fn, objEnd int) (int, int) {
	for i := fn + 1; i < NumFunctions; i++ {
		if slots[i].Kind == SlotReal {
			return slots[i].Start, i
		}
	}
	return objEnd, NumFunctions
}
