// Package types defines the small value types shared across eventforge.
//
// Location and function identifiers follow the game's own numbering. Digests
// are 32-byte content hashes rendered in base58, the same way everywhere they
// are printed or persisted.
package types

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
)

// Size constants for core types.
const (
	DigestSize = 32

	// MaxObjects is the hard ceiling on objects in one script.
	MaxObjects = 0x40

	// NumFunctions is the number of function slots every object owns.
	NumFunctions = 16

	// ObjectTableSize is the size of one object's pointer table slot.
	ObjectTableSize = 2 * NumFunctions

	// MaxLocation is the highest location id present in the location table.
	MaxLocation = 0x1FF
)

var (
	// ErrInvalidDigest is returned when a digest has invalid length.
	ErrInvalidDigest = errors.New("invalid digest: must be 32 bytes")

	// ErrInvalidLocation is returned for location ids outside the table.
	ErrInvalidLocation = errors.New("invalid location id")
)

// LocID identifies a game location. Every location owns one event script.
type LocID uint16

// ParseLocID validates a raw location number.
func ParseLocID(v int) (LocID, error) {
	if v < 0 || v > MaxLocation {
		return 0, fmt.Errorf("%w: 0x%X", ErrInvalidLocation, v)
	}
	return LocID(v), nil
}

// String returns the location id in the 0x-prefixed hex form used in logs.
func (l LocID) String() string {
	return fmt.Sprintf("0x%03X", uint16(l))
}

// FuncID names the well-known function slots of an object.
type FuncID int

// Function slots with engine-defined meaning. Slots 3..15 are free for
// script use.
const (
	FuncStartup  FuncID = 0
	FuncActivate FuncID = 1
	FuncTouch    FuncID = 2
	FuncArb0     FuncID = 3
	FuncArb1     FuncID = 4
	FuncArb2     FuncID = 5
	FuncArb3     FuncID = 6
	FuncArb4     FuncID = 7
	FuncArb5     FuncID = 8
	FuncArb6     FuncID = 9
	FuncArb7     FuncID = 10
	FuncArb8     FuncID = 11
	FuncArb9     FuncID = 12
	FuncArbA     FuncID = 13
	FuncArbB     FuncID = 14
	FuncArbC     FuncID = 15
)

var funcNames = [NumFunctions]string{
	"startup", "activate", "touch",
}

// String returns "startup", "activate", "touch" or "arbN".
func (f FuncID) String() string {
	if f < 0 || int(f) >= NumFunctions {
		return fmt.Sprintf("FuncID(%d)", int(f))
	}
	if name := funcNames[f]; name != "" {
		return name
	}
	return fmt.Sprintf("arb%X", int(f-FuncArb0))
}

// Digest is a 32-byte BLAKE3 content hash.
type Digest [DigestSize]byte

// ComputeDigest hashes data with BLAKE3.
func ComputeDigest(data []byte) Digest {
	return blake3.Sum256(data)
}

// DigestFromBytes creates a Digest from a byte slice.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, ErrInvalidDigest
	}
	copy(d[:], b)
	return d, nil
}

// DigestFromBase58 parses a base58-encoded digest.
func DigestFromBase58(s string) (Digest, error) {
	var d Digest
	data, err := base58.Decode(s)
	if err != nil {
		return d, fmt.Errorf("base58 decode: %w", err)
	}
	return DigestFromBytes(data)
}

// String returns the base58-encoded representation.
func (d Digest) String() string {
	return base58.Encode(d[:])
}

// IsZero returns true if the digest is all zeros.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Bytes returns the digest as a byte slice.
func (d Digest) Bytes() []byte {
	return d[:]
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := DigestFromBase58(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
