// Package bundle moves stored scripts between machines as a single file: a
// magic header followed by a zstd stream of length-prefixed CBOR records.
package bundle

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/tliron/commonlog"

	"github.com/fortiblox/eventforge/pkg/scriptstore"
)

// Magic opens every bundle. The last byte is the format version.
var Magic = []byte("EFBUNDL\x01")

// maxEntry bounds one encoded record. Scripts and their strings fit easily.
const maxEntry = 1 << 20

var (
	// ErrBadMagic is returned for files that are not bundles.
	ErrBadMagic = errors.New("not a script bundle")

	// ErrCorrupt is returned when the stream is damaged.
	ErrCorrupt = errors.New("corrupt script bundle")
)

var log = commonlog.GetLogger("eventforge.bundle")

// Write encodes recs to w.
func Write(w io.Writer, recs []*scriptstore.Record) error {
	if _, err := w.Write(Magic); err != nil {
		return err
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	var prefix []byte
	for _, r := range recs {
		data, err := r.Marshal()
		if err != nil {
			enc.Close()
			return fmt.Errorf("encode %s: %w", r.Loc, err)
		}
		prefix = binary.AppendUvarint(prefix[:0], uint64(len(data)))
		if _, err := enc.Write(prefix); err != nil {
			enc.Close()
			return err
		}
		if _, err := enc.Write(data); err != nil {
			enc.Close()
			return err
		}
	}
	return enc.Close()
}

// Read decodes every record in a bundle.
func Read(r io.Reader) ([]*scriptstore.Record, error) {
	head := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, head); err != nil || !bytes.Equal(head, Magic) {
		return nil, ErrBadMagic
	}
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	var recs []*scriptstore.Record
	for {
		n, err := binary.ReadUvarint(br)
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrCorrupt, len(recs), err)
		}
		if n > maxEntry {
			return nil, fmt.Errorf("%w: entry %d claims %d bytes", ErrCorrupt, len(recs), n)
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(br, data); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrCorrupt, len(recs), err)
		}
		rec, err := scriptstore.UnmarshalRecord(data)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", len(recs), err)
		}
		recs = append(recs, rec)
	}
}

// Export writes every record in st to path and returns how many there were.
func Export(path string, st scriptstore.Store) (int, error) {
	locs, err := st.List()
	if err != nil {
		return 0, err
	}
	recs := make([]*scriptstore.Record, 0, len(locs))
	for _, loc := range locs {
		rec, err := st.Get(loc)
		if err != nil {
			return 0, fmt.Errorf("location %s: %w", loc, err)
		}
		recs = append(recs, rec)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create bundle: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := Write(bw, recs); err != nil {
		f.Close()
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	log.Infof("exported %d scripts to %s", len(recs), path)
	return len(recs), nil
}

// Import reads the bundle at path into st. Every record is checked against
// its digest before anything is written.
func Import(path string, st scriptstore.Store) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	recs, err := Read(bufio.NewReader(f))
	if err != nil {
		return 0, err
	}
	for _, rec := range recs {
		if _, err := rec.Script(); err != nil {
			return 0, err
		}
	}
	for _, rec := range recs {
		if err := st.PutRecord(rec); err != nil {
			return 0, fmt.Errorf("location %s: %w", rec.Loc, err)
		}
	}
	log.Infof("imported %d scripts from %s", len(recs), path)
	return len(recs), nil
}
