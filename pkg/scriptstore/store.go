// Package scriptstore persists edited event scripts between runs, so work on
// a ROM can be checkpointed and resumed without re-applying every edit.
package scriptstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/fortiblox/eventforge/internal/types"
	"github.com/fortiblox/eventforge/pkg/script"
)

var (
	// ErrNotFound is returned when no record exists for a location.
	ErrNotFound = errors.New("script record not found")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("script store closed")

	// ErrCorrupt is returned when a record's content does not match its
	// digest.
	ErrCorrupt = errors.New("script record corrupt")
)

// Store is implemented by the bbolt and badger backends.
type Store interface {
	// Put records s as the current script for loc, edited on top of the ROM
	// identified by rom.
	Put(loc types.LocID, s *script.Script, rom types.Digest) error
	PutRecord(r *Record) error
	Get(loc types.LocID) (*Record, error)
	Delete(loc types.LocID) error

	// List returns the stored locations in ascending order.
	List() ([]types.LocID, error)
	Close() error
}

// Record is the stored form of one script.
type Record struct {
	Loc             types.LocID  `cbor:"1,keyasint"`
	NumObjects      int          `cbor:"2,keyasint"`
	Data            []byte       `cbor:"3,keyasint"`
	Strings         [][]byte     `cbor:"4,keyasint,omitempty"`
	StringsModified bool         `cbor:"5,keyasint,omitempty"`
	Digest          types.Digest `cbor:"6,keyasint"`
	ROM             types.Digest `cbor:"7,keyasint"`
	Saved           int64        `cbor:"8,keyasint"`
}

// NewRecord captures s for loc.
func NewRecord(loc types.LocID, s *script.Script, rom types.Digest) *Record {
	return &Record{
		Loc:             loc,
		NumObjects:      s.NumObjects(),
		Data:            append([]byte(nil), s.Data()...),
		Strings:         s.Strings(),
		StringsModified: s.StringsModified(),
		Digest:          s.Digest(),
		ROM:             rom,
		Saved:           time.Now().UnixNano(),
	}
}

// SavedAt returns when the record was made.
func (r *Record) SavedAt() time.Time {
	return time.Unix(0, r.Saved)
}

// Script rebuilds the script, checking it against the stored digest.
func (r *Record) Script() (*script.Script, error) {
	s, err := script.New(r.NumObjects, r.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: location %s: %v", ErrCorrupt, r.Loc, err)
	}
	if got := s.Digest(); got != r.Digest {
		return nil, fmt.Errorf("%w: location %s digest %s, want %s", ErrCorrupt, r.Loc, got, r.Digest)
	}
	s.SetStrings(r.Strings)
	if r.StringsModified {
		s.MarkStringsModified()
	}
	return s, nil
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("scriptstore: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Marshal encodes the record as canonical CBOR.
func (r *Record) Marshal() ([]byte, error) {
	return encMode.Marshal(r)
}

// UnmarshalRecord decodes a record written by Marshal.
func UnmarshalRecord(data []byte) (*Record, error) {
	var r Record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &r, nil
}

// locKey encodes loc big-endian so keys sort by location.
func locKey(loc types.LocID) []byte {
	var k [2]byte
	binary.BigEndian.PutUint16(k[:], uint16(loc))
	return k[:]
}

func decodeLocKey(k []byte) (types.LocID, bool) {
	if len(k) != 2 {
		return 0, false
	}
	return types.LocID(binary.BigEndian.Uint16(k)), true
}
