package bundle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/fortiblox/eventforge/internal/types"
	"github.com/fortiblox/eventforge/pkg/eventcmd"
	"github.com/fortiblox/eventforge/pkg/script"
	"github.com/fortiblox/eventforge/pkg/scriptstore"
)

func testScript(t *testing.T, item int) *script.Script {
	t.Helper()
	data := make([]byte, script.SlotSize)
	for fn := 0; fn < script.NumFunctions; fn++ {
		binary.LittleEndian.PutUint16(data[2*fn:], script.SlotSize)
	}
	data = append(data, eventcmd.Bytes(eventcmd.AddItem(item), eventcmd.Return())...)
	s, err := script.New(1, data)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestWriteRead(t *testing.T) {
	rom := types.ComputeDigest([]byte("rom"))
	recs := []*scriptstore.Record{
		scriptstore.NewRecord(1, testScript(t, 1), rom),
		scriptstore.NewRecord(2, testScript(t, 2), rom),
	}

	var buf bytes.Buffer
	if err := Write(&buf, recs); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), Magic) {
		t.Fatalf("bundle does not start with the magic")
	}

	got, err := Read(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(recs) {
		t.Fatalf("read %d records, want %d", len(got), len(recs))
	}
	for i := range recs {
		if got[i].Loc != recs[i].Loc || got[i].Digest != recs[i].Digest || !bytes.Equal(got[i].Data, recs[i].Data) {
			t.Errorf("record %d = %+v, want %+v", i, got[i], recs[i])
		}
	}
}

func TestReadErrors(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte("nope"))); !errors.Is(err, ErrBadMagic) {
		t.Errorf("short input err = %v", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, []*scriptstore.Record{scriptstore.NewRecord(1, testScript(t, 1), types.Digest{})}); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()-4]
	if _, err := Read(bytes.NewReader(truncated)); err == nil {
		t.Errorf("truncated bundle read without error")
	}
}

func TestExportImport(t *testing.T) {
	dir := t.TempDir()
	rom := types.ComputeDigest([]byte("rom"))

	src, err := scriptstore.OpenBolt(scriptstore.DefaultConfig(filepath.Join(dir, "src.db")))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	for _, loc := range []types.LocID{0x05, 0x40, 0x1F0} {
		if err := src.Put(loc, testScript(t, int(loc)&0xFF), rom); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(dir, "scripts.efb")
	n, err := Export(path, src)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("exported %d records", n)
	}

	cfg := scriptstore.DefaultBadgerConfig("")
	cfg.InMemory = true
	dst, err := scriptstore.OpenBadger(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer dst.Close()

	if n, err := Import(path, dst); err != nil || n != 3 {
		t.Fatalf("Import = %d, %v", n, err)
	}
	locs, err := dst.List()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(locs, []types.LocID{0x05, 0x40, 0x1F0}) {
		t.Errorf("imported locations = %v", locs)
	}
	rec, err := dst.Get(0x40)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Script(); err != nil {
		t.Errorf("imported record: %v", err)
	}
}
