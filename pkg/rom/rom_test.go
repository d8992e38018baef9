package rom

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fortiblox/eventforge/internal/types"
)

func blankImage() *Image {
	return FromBytes(make([]byte, Size))
}

func TestFromBytesStripsHeader(t *testing.T) {
	b := make([]byte, Size+CopierHeaderSize)
	b[CopierHeaderSize] = 0xAB
	img := FromBytes(b)
	if img.Len() != Size {
		t.Fatalf("Len = 0x%X, want 0x%X", img.Len(), Size)
	}
	if img.Bytes()[0] != 0xAB {
		t.Errorf("first byte = %02X, want AB", img.Bytes()[0])
	}
	if img.Space().FreeSpace() != 0 {
		t.Errorf("new image has free space")
	}

	small := FromBytes([]byte{1, 2, 3})
	if small.Len() != 3 {
		t.Errorf("short image was trimmed to %d bytes", small.Len())
	}
}

func TestValidate(t *testing.T) {
	if err := blankImage().Validate(); !errors.Is(err, ErrBadChecksum) {
		t.Errorf("Validate on blank image = %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	img := blankImage()
	before := img.Fingerprint()
	if _, err := img.WriteAt([]byte{1}, 0x1234); err != nil {
		t.Fatal(err)
	}
	if img.Fingerprint() == before {
		t.Errorf("fingerprint did not change after a write")
	}
}

func TestEventPointer(t *testing.T) {
	img := blankImage()
	loc := types.LocID(0x10)
	rec := types.LocationDataAddr + types.LocationRecordSize*0x10 + types.LocationEventOffset
	if _, err := img.WriteAt([]byte{0x05, 0x00}, int64(rec)); err != nil {
		t.Fatal(err)
	}
	ptrAt := int64(types.EventPointerTableAddr + 3*5)
	if _, err := img.WriteAt([]byte{0x56, 0x34, 0xD2}, ptrAt); err != nil {
		t.Fatal(err)
	}

	idx, err := img.EventIndex(loc)
	if err != nil || idx != 5 {
		t.Fatalf("EventIndex = %d, %v", idx, err)
	}
	addr, err := img.EventPointer(loc)
	if err != nil {
		t.Fatal(err)
	}
	if addr != 0x123456 {
		t.Errorf("EventPointer = 0x%06X, want 0x123456", addr)
	}

	if err := img.SetEventPointer(loc, 0x3F8000); err != nil {
		t.Fatal(err)
	}
	got, _ := img.Slice(int(ptrAt), 3)
	if !bytes.Equal(got, []byte{0x00, 0x80, 0xFF}) {
		t.Errorf("pointer bytes = % X, want 00 80 FF", got)
	}
	if addr, _ := img.EventPointer(loc); addr != 0x3F8000 {
		t.Errorf("EventPointer after set = 0x%06X", addr)
	}
}

func TestReadPointerRejectsUnmapped(t *testing.T) {
	img := blankImage()
	if _, err := img.WriteAt([]byte{0x00, 0x00, 0x7E}, 0x100); err != nil {
		t.Fatal(err)
	}
	if _, err := img.ReadPointer(0x100); !errors.Is(err, types.ErrBadPointer) {
		t.Errorf("ReadPointer err = %v", err)
	}
	if err := img.WritePointer(Size-1, 0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("WritePointer past end err = %v", err)
	}
}

func TestStringBank(t *testing.T) {
	img := blankImage()
	// Pointer table at file 0x3F1000, strings right after it.
	table := []byte{0x04, 0x10, 0x07, 0x10}
	strs := []byte{0xA0, 0xA1, 0x00, 0xB0, 0x00}
	if _, err := img.WriteAt(append(table, strs...), 0x3F1000); err != nil {
		t.Fatal(err)
	}

	read := img.StringBank(0xFF1000)
	tests := []struct {
		index int
		want  []byte
	}{
		{0, []byte{0xA0, 0xA1, 0x00}},
		{1, []byte{0xB0, 0x00}},
	}
	for _, tt := range tests {
		got, err := read(tt.index)
		if err != nil {
			t.Fatalf("string %d: %v", tt.index, err)
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("string %d = % X, want % X", tt.index, got, tt.want)
		}
	}
}

func TestReadStringUnterminated(t *testing.T) {
	img := FromBytes([]byte{0x41, 0x42})
	if _, err := img.ReadString(0); !errors.Is(err, ErrUnterminated) {
		t.Errorf("err = %v, want ErrUnterminated", err)
	}
}

func TestSaveLoad(t *testing.T) {
	img := FromBytes([]byte{1, 2, 3, 4})
	path := filepath.Join(t.TempDir(), "out.sfc")
	if err := img.Save(path); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back.Bytes(), img.Bytes()) {
		t.Errorf("reloaded image differs")
	}
}
