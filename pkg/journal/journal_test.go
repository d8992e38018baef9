package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fortiblox/eventforge/internal/types"
)

func TestRecordEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "flushes.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	at := time.Unix(1700000000, 42)
	entries := []Entry{
		{Loc: 0x10, OldAddr: 0x3F2000, OldLen: 0x120, NewAddr: 0x3E0000, NewLen: 0x130, Digest: types.ComputeDigest([]byte("a")), At: at},
		{Loc: 0x11, OldAddr: 0x3F4000, OldLen: 0x80, NewAddr: 0x3E0200, NewLen: 0x90, Digest: types.ComputeDigest([]byte("b")), At: at},
		{Loc: 0x10, OldAddr: 0x3E0000, OldLen: 0x130, NewAddr: 0x3E0400, NewLen: 0x140, Digest: types.ComputeDigest([]byte("c"))},
	}
	for _, e := range entries {
		if err := j.Record(e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := j.Entries(0x10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("%d entries for 0x10, want 2", len(got))
	}
	if got[0].NewAddr != 0x3E0000 || got[1].NewAddr != 0x3E0400 {
		t.Errorf("entries out of order: %v", got)
	}
	if got[0].Digest != entries[0].Digest || !got[0].At.Equal(at) {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].At.IsZero() {
		t.Errorf("zero time was not stamped")
	}

	all, err := j.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("All returned %d entries", len(all))
	}

	// Reopening keeps the history.
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
	if err := j.Record(entries[0]); !errors.Is(err, ErrClosed) {
		t.Errorf("Record after Close err = %v", err)
	}
	j, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	if all, _ := j.All(); len(all) != 3 {
		t.Errorf("reopened journal has %d entries", len(all))
	}
}

func TestInMemory(t *testing.T) {
	j, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	if err := j.Record(Entry{Loc: 1}); err != nil {
		t.Fatal(err)
	}
	got, err := j.Entries(1)
	if err != nil || len(got) != 1 {
		t.Fatalf("Entries = %v, %v", got, err)
	}
}
