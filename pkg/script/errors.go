package script

import (
	"errors"
	"fmt"
)

// Package errors. Specific failures wrap one of these three with %w.
var (
	// ErrNotFound is returned when a bounded search finds nothing.
	ErrNotFound = errors.New("command not found")

	// ErrStructure is returned when the script's pointer table or
	// instruction stream is inconsistent, or a caller passed a position that
	// does not start an instruction.
	ErrStructure = errors.New("structural invariant violation")

	// ErrCapacity is returned when an edit would exceed a hard limit: the
	// object ceiling, a one-byte jump distance, or the 16-bit offset range.
	ErrCapacity = errors.New("capacity exceeded")
)

// RangeError reports an object or function index outside the script.
type RangeError struct {
	What  string
	Index int
	Limit int
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %d out of range [0, %d)", e.What, e.Index, e.Limit)
}

// Unwrap makes RangeError match ErrStructure.
func (e *RangeError) Unwrap() error {
	return ErrStructure
}

// IsNotFound returns true if err reports a failed search.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func structuref(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStructure, fmt.Sprintf(format, args...))
}

func capacityf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCapacity, fmt.Sprintf(format, args...))
}
