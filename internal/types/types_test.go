package types

import (
	"errors"
	"testing"
)

func TestParseLocID(t *testing.T) {
	if loc, err := ParseLocID(0x1F0); err != nil || loc.String() != "0x1F0" {
		t.Errorf("ParseLocID(0x1F0) = %v, %v", loc, err)
	}
	for _, v := range []int{-1, MaxLocation + 1} {
		if _, err := ParseLocID(v); !errors.Is(err, ErrInvalidLocation) {
			t.Errorf("ParseLocID(%d) err = %v", v, err)
		}
	}
}

func TestFuncIDString(t *testing.T) {
	tests := []struct {
		f    FuncID
		want string
	}{
		{FuncStartup, "startup"},
		{FuncTouch, "touch"},
		{FuncArb0, "arb0"},
		{FuncArbC, "arbC"},
		{FuncID(16), "FuncID(16)"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("FuncID(%d).String() = %q, want %q", int(tt.f), got, tt.want)
		}
	}
}

func TestPointers(t *testing.T) {
	tests := []struct {
		rom, file uint32
	}{
		{0xC00000, 0x000000},
		{0xFF1000, 0x3F1000},
		{0x5F0000, 0x5F0000},
	}
	for _, tt := range tests {
		file, err := ToFilePtr(tt.rom)
		if err != nil || file != tt.file {
			t.Errorf("ToFilePtr(0x%06X) = 0x%06X, %v", tt.rom, file, err)
		}
		rom, err := ToRomPtr(tt.file)
		if err != nil || rom != tt.rom {
			t.Errorf("ToRomPtr(0x%06X) = 0x%06X, %v", tt.file, rom, err)
		}
	}
	if _, err := ToFilePtr(0x200000); !errors.Is(err, ErrBadPointer) {
		t.Errorf("ToFilePtr(0x200000) err = %v", err)
	}
	if _, err := ToRomPtr(0x600000); !errors.Is(err, ErrBadPointer) {
		t.Errorf("ToRomPtr(0x600000) err = %v", err)
	}
}

func TestSameBank(t *testing.T) {
	tests := []struct {
		start, end int
		want       bool
	}{
		{0x3E0000, 0x3F0000, true},
		{0x3EFFF0, 0x3F0001, false},
		{0x10, 0x10, true},
	}
	for _, tt := range tests {
		if got := SameBank(tt.start, tt.end); got != tt.want {
			t.Errorf("SameBank(0x%X, 0x%X) = %v", tt.start, tt.end, got)
		}
	}
}

func TestDigestText(t *testing.T) {
	d := ComputeDigest([]byte("event"))
	if d.IsZero() {
		t.Fatal("digest of non-empty data is zero")
	}
	text, err := d.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var back Digest
	if err := back.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if back != d {
		t.Errorf("text round trip changed the digest")
	}
	if _, err := DigestFromBytes(d.Bytes()[:31]); !errors.Is(err, ErrInvalidDigest) {
		t.Errorf("short digest err = %v", err)
	}
}
