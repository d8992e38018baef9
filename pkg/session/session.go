// Package session caches decoded event scripts for a ROM image and writes
// edited scripts back into free space.
//
// A Session hands out one *script.Script per location. Edits go straight to
// that instance; Flush compresses it, finds room for it and repoints the
// location's event entry. Locations are independent: each has its own lock,
// and flushing one never touches another's bytes.
package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/fortiblox/eventforge/internal/types"
	"github.com/fortiblox/eventforge/pkg/ctcompress"
	"github.com/fortiblox/eventforge/pkg/journal"
	"github.com/fortiblox/eventforge/pkg/rom"
	"github.com/fortiblox/eventforge/pkg/script"
	"github.com/fortiblox/eventforge/pkg/scriptstore"
)

var (
	// ErrForeignRecord is returned when restoring a script saved against a
	// different ROM.
	ErrForeignRecord = errors.New("stored script belongs to a different rom")
)

var log = commonlog.GetLogger("eventforge.session")

// Codec packs and unpacks event scripts.
type Codec interface {
	Decompress(buf []byte, addr int) ([]byte, error)
	CompressedLength(buf []byte, addr int) (int, error)
	Compress(data []byte) ([]byte, error)
}

// LZ is the game's own codec.
type LZ struct{}

// Decompress implements Codec.
func (LZ) Decompress(buf []byte, addr int) ([]byte, error) {
	return ctcompress.Decompress(buf, addr)
}

// CompressedLength implements Codec.
func (LZ) CompressedLength(buf []byte, addr int) (int, error) {
	return ctcompress.CompressedLength(buf, addr)
}

// Compress implements Codec.
func (LZ) Compress(data []byte) ([]byte, error) {
	return ctcompress.Compress(data)
}

// Allocator hands out ROM space. *freespace.Manager implements it.
type Allocator interface {
	Alloc(size, hint int) (int, error)
	Release(start, end int) error
	Reserve(start, end int) error
}

// Journal records flushes. *journal.Journal implements it.
type Journal interface {
	Record(e journal.Entry) error
}

// Store is the part of scriptstore.Store checkpoints need.
type Store interface {
	Put(loc types.LocID, s *script.Script, rom types.Digest) error
	Get(loc types.LocID) (*scriptstore.Record, error)
}

// Config holds session collaborators.
type Config struct {
	// Codec defaults to LZ.
	Codec Codec

	// Allocator defaults to the image's free-space map.
	Allocator Allocator

	// Journal is optional.
	Journal Journal
}

// DefaultConfig returns a configuration using the game's codec and the
// image's own free-space map.
func DefaultConfig() Config {
	return Config{Codec: LZ{}}
}

type entry struct {
	mu     sync.Mutex
	script *script.Script

	// Where the packed script sat when it was loaded.
	addr   int
	length int
}

// Session is the script cache for one ROM image.
type Session struct {
	img  *rom.Image
	cfg  Config
	base types.Digest

	mu      sync.Mutex
	entries map[types.LocID]*entry
}

// New returns a session over img.
func New(img *rom.Image, cfg Config) *Session {
	if cfg.Codec == nil {
		cfg.Codec = LZ{}
	}
	if cfg.Allocator == nil {
		cfg.Allocator = img.Space()
	}
	return &Session{
		img:     img,
		cfg:     cfg,
		base:    img.Fingerprint(),
		entries: make(map[types.LocID]*entry),
	}
}

// Base returns the fingerprint of the image as it was when the session
// started. Checkpoints are tied to it.
func (s *Session) Base() types.Digest {
	return s.base
}

// locate finds loc's packed script in the image.
func (s *Session) locate(loc types.LocID) (addr, length int, err error) {
	addr, err = s.img.EventPointer(loc)
	if err != nil {
		return 0, 0, err
	}
	length, err = s.cfg.Codec.CompressedLength(s.img.Bytes(), addr)
	if err != nil {
		return 0, 0, fmt.Errorf("location %s at 0x%06X: %w", loc, addr, err)
	}
	return addr, length, nil
}

// decode reads loc's script and its strings from the image.
func (s *Session) decode(loc types.LocID) (*entry, error) {
	addr, length, err := s.locate(loc)
	if err != nil {
		return nil, err
	}
	packet, err := s.cfg.Codec.Decompress(s.img.Bytes(), addr)
	if err != nil {
		return nil, fmt.Errorf("location %s at 0x%06X: %w", loc, addr, err)
	}
	sc, err := script.FromPacket(packet)
	if err != nil {
		return nil, fmt.Errorf("location %s: %w", loc, err)
	}
	ptr, ok, err := sc.StringIndex()
	if err != nil {
		return nil, fmt.Errorf("location %s: %w", loc, err)
	}
	if ok {
		if err := sc.ReadStrings(s.img.StringBank(ptr)); err != nil {
			return nil, fmt.Errorf("location %s strings: %w", loc, err)
		}
	}
	log.Debugf("decoded %s: %d objects, %d bytes, %d strings, packed 0x%X bytes at 0x%06X",
		loc, sc.NumObjects(), sc.Len(), sc.NumStrings(), length, addr)
	return &entry{script: sc, addr: addr, length: length}, nil
}

func (s *Session) load(loc types.LocID) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[loc]; ok {
		return e, nil
	}
	e, err := s.decode(loc)
	if err != nil {
		return nil, err
	}
	s.entries[loc] = e
	return e, nil
}

// Script returns loc's script, decoding it on first use. Every call returns
// the same instance until the location is flushed or freed.
func (s *Session) Script(loc types.LocID) (*script.Script, error) {
	e, err := s.load(loc)
	if err != nil {
		return nil, err
	}
	return e.script, nil
}

// With runs fn with exclusive access to loc's script.
func (s *Session) With(loc types.LocID, fn func(*script.Script) error) error {
	e, err := s.load(loc)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.script)
}

// Preload decodes each location ahead of use.
func (s *Session) Preload(locs ...types.LocID) error {
	for _, loc := range locs {
		if _, err := s.load(loc); err != nil {
			return err
		}
	}
	return nil
}

// Set replaces loc's script. The ROM range freed on the next flush is still
// the one loc's event pointer names now.
func (s *Session) Set(loc types.LocID, sc *script.Script) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[loc]; ok {
		s.entries[loc] = &entry{script: sc, addr: e.addr, length: e.length}
		return nil
	}
	addr, length, err := s.locate(loc)
	if err != nil {
		return err
	}
	s.entries[loc] = &entry{script: sc, addr: addr, length: length}
	return nil
}

// Free drops loc's cached script without writing it.
func (s *Session) Free(loc types.LocID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, loc)
}

// Loaded returns the cached locations in ascending order.
func (s *Session) Loaded() []types.LocID {
	s.mu.Lock()
	defer s.mu.Unlock()
	locs := make([]types.LocID, 0, len(s.entries))
	for loc := range s.entries {
		locs = append(locs, loc)
	}
	slices.Sort(locs)
	return locs
}

// Flush writes loc's script into the image and drops it from the cache, so
// the next access decodes what was written. Flushing a location that is not
// loaded does nothing.
//
// The old packed range is released first, so the new copy may reuse it.
// Modified strings get a fresh bank, which must fit inside one ROM bank. If
// any step fails the old range is reserved again, new ranges are released,
// and the cached script is left as it was.
func (s *Session) Flush(loc types.LocID) error {
	s.mu.Lock()
	e, ok := s.entries[loc]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s.mu.Lock()
	current := s.entries[loc] == e
	s.mu.Unlock()
	if !current {
		// Flushed or replaced while we waited.
		return nil
	}

	if err := s.cfg.Allocator.Release(e.addr, e.addr+e.length); err != nil {
		return fmt.Errorf("location %s: release old script: %w", loc, err)
	}
	addr, packed, err := s.write(loc, e)
	if err != nil {
		if rerr := s.cfg.Allocator.Reserve(e.addr, e.addr+e.length); rerr != nil {
			err = errors.Join(err, fmt.Errorf("location %s: reserve old script: %w", loc, rerr))
		}
		return err
	}
	log.Infof("flushed %s: 0x%X bytes at 0x%06X -> 0x%X bytes at 0x%06X", loc, e.length, e.addr, len(packed.data), addr)

	if s.cfg.Journal != nil {
		err := s.cfg.Journal.Record(journal.Entry{
			Loc:     loc,
			OldAddr: e.addr,
			OldLen:  e.length,
			NewAddr: addr,
			NewLen:  len(packed.data),
			Digest:  types.ComputeDigest(packed.packet),
			At:      time.Now(),
		})
		if err != nil {
			log.Warningf("journal %s: %s", loc, err.Error())
		}
	}

	s.mu.Lock()
	if s.entries[loc] == e {
		delete(s.entries, loc)
	}
	s.mu.Unlock()
	return nil
}

// packedScript is a compressed script and the packet it encodes.
type packedScript struct {
	data   []byte
	packet []byte
}

// write places e's script in newly allocated space and repoints loc at it.
// Strings are written through a copy of the script, so a failure leaves the
// cached script untouched, and every range allocated here is released.
func (s *Session) write(loc types.LocID, e *entry) (addr int, packed packedScript, err error) {
	sc := e.script
	var held [][2]int
	defer func() {
		if err == nil {
			return
		}
		for _, r := range held {
			if rerr := s.cfg.Allocator.Release(r[0], r[1]); rerr != nil {
				log.Warningf("release 0x%06X for %s: %s", r[0], loc, rerr.Error())
			}
		}
	}()

	if sc.StringsModified() && sc.NumStrings() > 0 {
		sc = sc.Clone()
		var bank, n int
		bank, n, err = s.writeStrings(loc, sc)
		if n > 0 {
			held = append(held, [2]int{bank, bank + n})
		}
		if err != nil {
			return 0, packed, err
		}
	}

	packed.packet = sc.Packet()
	if packed.data, err = s.cfg.Codec.Compress(packed.packet); err != nil {
		return 0, packed, fmt.Errorf("location %s: compress: %w", loc, err)
	}
	if addr, err = s.cfg.Allocator.Alloc(len(packed.data), 0); err != nil {
		return 0, packed, fmt.Errorf("location %s: %d packed bytes: %w", loc, len(packed.data), err)
	}
	held = append(held, [2]int{addr, addr + len(packed.data)})
	if _, err = s.img.WriteAt(packed.data, int64(addr)); err != nil {
		return 0, packed, fmt.Errorf("location %s: %w", loc, err)
	}
	if err = s.img.SetEventPointer(loc, addr); err != nil {
		return 0, packed, fmt.Errorf("location %s: %w", loc, err)
	}
	return addr, packed, nil
}

// writeStrings stores sc's string table in a new bank and points the
// script's string index at it. It returns the bank's address and length
// whenever space was allocated, even on error.
func (s *Session) writeStrings(loc types.LocID, sc *script.Script) (int, int, error) {
	n := sc.StringBankLen()
	addr, err := s.cfg.Allocator.Alloc(n, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("location %s: %d string bytes: %w", loc, n, err)
	}
	if !types.SameBank(addr, addr+n) {
		return addr, n, fmt.Errorf("location %s: string bank [0x%06X, 0x%06X) crosses a bank", loc, addr, addr+n)
	}
	if _, err := s.img.WriteAt(sc.StringBank(addr), int64(addr)); err != nil {
		return addr, n, fmt.Errorf("location %s: %w", loc, err)
	}
	romPtr, err := types.ToRomPtr(uint32(addr))
	if err != nil {
		return addr, n, err
	}
	if err := sc.SetStringIndex(int(romPtr)); err != nil {
		return addr, n, fmt.Errorf("location %s: set string index: %w", loc, err)
	}
	sc.MarkStringsClean()
	log.Debugf("wrote %d strings for %s at 0x%06X", sc.NumStrings(), loc, addr)
	return addr, n, nil
}

// FlushAll flushes every loaded location in ascending order. It keeps going
// after a failure and returns all errors joined.
func (s *Session) FlushAll() error {
	var errs []error
	for _, loc := range s.Loaded() {
		if err := s.Flush(loc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Checkpoint saves every loaded script to st.
func (s *Session) Checkpoint(st Store) error {
	for _, loc := range s.Loaded() {
		err := s.With(loc, func(sc *script.Script) error {
			return st.Put(loc, sc, s.base)
		})
		if err != nil {
			return fmt.Errorf("checkpoint %s: %w", loc, err)
		}
	}
	return nil
}

// Restore replaces loc's script with the copy saved in st. The copy must
// have been saved against this session's base image.
func (s *Session) Restore(st Store, loc types.LocID) error {
	rec, err := st.Get(loc)
	if err != nil {
		return err
	}
	if rec.ROM != s.base {
		return fmt.Errorf("%w: location %s saved against %s, session base is %s", ErrForeignRecord, loc, rec.ROM, s.base)
	}
	sc, err := rec.Script()
	if err != nil {
		return err
	}
	return s.Set(loc, sc)
}
