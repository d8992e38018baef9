// Package rom holds a Chrono Trigger (US) ROM image in memory and exposes the
// tables eventforge reads and rewrites: the location records, the event
// pointer table and the string banks scripts point into.
package rom

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	"golang.org/x/crypto/sha3"

	"github.com/fortiblox/eventforge/internal/types"
	"github.com/fortiblox/eventforge/pkg/freespace"
)

const (
	// Size is the size of an unheadered image.
	Size = 0x400000

	// CopierHeaderSize is the size of the header some dumps carry.
	CopierHeaderSize = 0x200

	// KnownMD5 is the digest of the unmodified US image.
	KnownMD5 = "a2bc447961e52fd2227baed164f729dc"
)

var (
	// ErrBadChecksum is returned when the image is not the known release.
	ErrBadChecksum = errors.New("rom checksum mismatch")

	// ErrOutOfRange is returned for reads and writes past the image.
	ErrOutOfRange = errors.New("address outside rom image")

	// ErrUnterminated is returned when a string runs off the image.
	ErrUnterminated = errors.New("unterminated string")
)

var log = commonlog.GetLogger("eventforge.rom")

// Image is a ROM image plus the free-space map of its bytes. Everything
// starts out used; callers release ranges they know to be free.
type Image struct {
	data  []byte
	space *freespace.Manager
}

// Load reads an image from disk.
func Load(path string) (*Image, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rom: %w", err)
	}
	img := FromBytes(b)
	log.Infof("loaded %s (%d bytes)", path, len(img.data))
	return img, nil
}

// FromBytes copies b into a new image, dropping a copier header if the size
// says there is one.
func FromBytes(b []byte) *Image {
	if len(b) == Size+CopierHeaderSize {
		log.Debugf("stripping 0x%X-byte copier header", CopierHeaderSize)
		b = b[CopierHeaderSize:]
	}
	data := append([]byte(nil), b...)
	return &Image{
		data:  data,
		space: freespace.New(len(data), freespace.Used),
	}
}

// Bytes returns the image. Callers must not modify it.
func (img *Image) Bytes() []byte {
	return img.data
}

// Len returns the image size.
func (img *Image) Len() int {
	return len(img.data)
}

// Space returns the image's free-space map.
func (img *Image) Space() *freespace.Manager {
	return img.space
}

// Validate checks the image against the known release digest. It only
// passes before any write.
func (img *Image) Validate() error {
	sum := md5.Sum(img.data)
	if got := hex.EncodeToString(sum[:]); got != KnownMD5 {
		return fmt.Errorf("%w: md5 %s", ErrBadChecksum, got)
	}
	return nil
}

// Fingerprint identifies the current contents of the image. Stored scripts
// record it so they are never replayed onto a different base.
func (img *Image) Fingerprint() types.Digest {
	return sha3.Sum256(img.data)
}

func (img *Image) check(off, n int) error {
	if off < 0 || n < 0 || off+n > len(img.data) {
		return fmt.Errorf("%w: [0x%06X, 0x%06X)", ErrOutOfRange, off, off+n)
	}
	return nil
}

// ReadAt implements io.ReaderAt.
func (img *Image) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(img.data)) {
		return 0, io.EOF
	}
	n := copy(p, img.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. Writes never grow the image.
func (img *Image) WriteAt(p []byte, off int64) (int, error) {
	if err := img.check(int(off), len(p)); err != nil {
		return 0, err
	}
	return copy(img.data[off:], p), nil
}

// Slice returns n bytes at off without copying.
func (img *Image) Slice(off, n int) ([]byte, error) {
	if err := img.check(off, n); err != nil {
		return nil, err
	}
	return img.data[off : off+n], nil
}

func (img *Image) u16(off int) (int, error) {
	b, err := img.Slice(off, 2)
	if err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint16(b)), nil
}

// ReadPointer reads the three-byte CPU address at off and returns it as a
// file offset.
func (img *Image) ReadPointer(off int) (int, error) {
	b, err := img.Slice(off, 3)
	if err != nil {
		return 0, err
	}
	ptr := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	file, err := types.ToFilePtr(ptr)
	if err != nil {
		return 0, fmt.Errorf("pointer at 0x%06X: %w", off, err)
	}
	return int(file), nil
}

// WritePointer stores the CPU address of file offset target at off.
func (img *Image) WritePointer(off, target int) error {
	if target < 0 {
		return fmt.Errorf("%w: target 0x%X", ErrOutOfRange, target)
	}
	ptr, err := types.ToRomPtr(uint32(target))
	if err != nil {
		return err
	}
	if err := img.check(off, 3); err != nil {
		return err
	}
	img.data[off] = byte(ptr)
	img.data[off+1] = byte(ptr >> 8)
	img.data[off+2] = byte(ptr >> 16)
	return nil
}

// EventIndex returns the event script index stored in loc's location
// record.
func (img *Image) EventIndex(loc types.LocID) (int, error) {
	off := types.LocationDataAddr + types.LocationRecordSize*int(loc) + types.LocationEventOffset
	idx, err := img.u16(off)
	if err != nil {
		return 0, fmt.Errorf("location %s: %w", loc, err)
	}
	return idx, nil
}

// eventPointerAddr returns where loc's event pointer lives.
func (img *Image) eventPointerAddr(loc types.LocID) (int, error) {
	idx, err := img.EventIndex(loc)
	if err != nil {
		return 0, err
	}
	return types.EventPointerTableAddr + 3*idx, nil
}

// EventPointer returns the file offset of loc's compressed event script.
func (img *Image) EventPointer(loc types.LocID) (int, error) {
	at, err := img.eventPointerAddr(loc)
	if err != nil {
		return 0, err
	}
	return img.ReadPointer(at)
}

// SetEventPointer points loc's event entry at the file offset addr.
func (img *Image) SetEventPointer(loc types.LocID, addr int) error {
	at, err := img.eventPointerAddr(loc)
	if err != nil {
		return err
	}
	return img.WritePointer(at, addr)
}

// ReadString returns the string at off up to and including its 0x00
// terminator.
func (img *Image) ReadString(off int) ([]byte, error) {
	if err := img.check(off, 0); err != nil {
		return nil, err
	}
	for i := off; i < len(img.data); i++ {
		if img.data[i] == 0 {
			return append([]byte(nil), img.data[off:i+1]...), nil
		}
	}
	return nil, fmt.Errorf("%w at 0x%06X", ErrUnterminated, off)
}

// StringBank returns a reader for the string bank whose pointer table
// starts at the CPU address indexPtr. Entry i is a 16-bit pointer into the
// table's own bank.
func (img *Image) StringBank(indexPtr int) func(index int) ([]byte, error) {
	return func(index int) ([]byte, error) {
		table, err := types.ToFilePtr(uint32(indexPtr))
		if err != nil {
			return nil, err
		}
		local, err := img.u16(int(table) + 2*index)
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", index, err)
		}
		bank := indexPtr &^ (types.BankSize - 1)
		file, err := types.ToFilePtr(uint32(bank + local))
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", index, err)
		}
		return img.ReadString(int(file))
	}
}

// Save writes the image to path.
func (img *Image) Save(path string) error {
	if err := os.WriteFile(path, img.data, 0644); err != nil {
		return fmt.Errorf("write rom: %w", err)
	}
	log.Infof("saved %s", path)
	return nil
}
