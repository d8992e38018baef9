package types

import (
	"errors"
	"fmt"
)

// Well-known ROM offsets (file offsets, headerless image).
const (
	// LocationDataAddr is the start of the 14-byte location records.
	LocationDataAddr = 0x360000

	// LocationRecordSize is the size of one location record.
	LocationRecordSize = 14

	// LocationEventOffset is the offset of the event index inside a record.
	LocationEventOffset = 8

	// EventPointerTableAddr is the start of the 3-byte event pointer table.
	EventPointerTableAddr = 0x3CF9F0

	// BankSize is the size of one addressable ROM bank.
	BankSize = 0x10000
)

// ErrBadPointer is returned when a pointer falls outside every mapped region.
var ErrBadPointer = errors.New("pointer outside mapped rom")

// ToFilePtr converts a HiROM CPU address to a file offset.
//
// 0xC00000-0xFFFFFF maps to 0x000000-0x3FFFFF. The ExHiROM mirror at
// 0x400000-0x5FFFFF maps onto itself.
func ToFilePtr(ptr uint32) (uint32, error) {
	switch {
	case ptr >= 0xC00000 && ptr <= 0xFFFFFF:
		return ptr - 0xC00000, nil
	case ptr >= 0x400000 && ptr < 0x600000:
		return ptr, nil
	}
	return 0, fmt.Errorf("%w: rom 0x%06X", ErrBadPointer, ptr)
}

// ToRomPtr is the inverse of ToFilePtr.
func ToRomPtr(ptr uint32) (uint32, error) {
	switch {
	case ptr < 0x400000:
		return ptr + 0xC00000, nil
	case ptr < 0x600000:
		return ptr, nil
	}
	return 0, fmt.Errorf("%w: file 0x%06X", ErrBadPointer, ptr)
}

// SameBank reports whether [start, end) lies inside a single ROM bank.
func SameBank(start, end int) bool {
	if end <= start {
		return true
	}
	return start/BankSize == (end-1)/BankSize
}
