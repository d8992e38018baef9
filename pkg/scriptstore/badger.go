package scriptstore

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/fortiblox/eventforge/internal/types"
	"github.com/fortiblox/eventforge/pkg/script"
)

// Key prefixes for BadgerDB storage.
var (
	// prefixScript is the prefix for script records.
	// Key format: prefixScript + location (2 bytes, big-endian)
	prefixScript = []byte{0x01}

	// prefixMeta is the prefix for metadata.
	// Key format: prefixMeta + key name
	prefixMeta = []byte{0x02}

	metaROM = append(append([]byte(nil), prefixMeta...), "rom"...)
)

// BadgerConfig contains configuration for BadgerDB.
type BadgerConfig struct {
	// Path is the directory path for the database.
	Path string

	// InMemory runs the database in memory (for testing).
	InMemory bool

	// SyncWrites ensures writes are synced to disk.
	SyncWrites bool

	// NumCompactors is the number of compaction workers.
	NumCompactors int

	// NumMemtables is the number of memtables.
	NumMemtables int

	// Logger is an optional logger. Set to nil to disable logging.
	Logger badger.Logger
}

// DefaultBadgerConfig returns default configuration.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:          path,
		SyncWrites:    true,
		NumCompactors: 2,
		NumMemtables:  2,
	}
}

// BadgerStore implements Store on BadgerDB. Records are small, so the
// store favours few memtables over write throughput.
type BadgerStore struct {
	db     *badger.DB
	closed atomic.Bool
}

// OpenBadger opens or creates a badger store.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites && !cfg.InMemory).
		WithNumCompactors(cfg.NumCompactors).
		WithNumMemtables(cfg.NumMemtables).
		WithLogger(cfg.Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// scriptKey returns the BadgerDB key for a location's record.
func scriptKey(loc types.LocID) []byte {
	return append(append([]byte(nil), prefixScript...), locKey(loc)...)
}

// Put stores s as loc's record.
func (b *BadgerStore) Put(loc types.LocID, s *script.Script, rom types.Digest) error {
	return b.PutRecord(NewRecord(loc, s, rom))
}

// PutRecord stores r under r.Loc and remembers its ROM fingerprint.
func (b *BadgerStore) PutRecord(r *Record) error {
	if b.closed.Load() {
		return ErrClosed
	}
	data, err := r.Marshal()
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(scriptKey(r.Loc), data); err != nil {
			return err
		}
		return txn.Set(metaROM, append([]byte(nil), r.ROM[:]...))
	})
}

// Get returns loc's record.
func (b *BadgerStore) Get(loc types.LocID) (*Record, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	var rec *Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(scriptKey(loc))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			r, err := UnmarshalRecord(val)
			if err != nil {
				return err
			}
			rec = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes loc's record.
func (b *BadgerStore) Delete(loc types.LocID) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(scriptKey(loc))
	})
}

// List returns the stored locations in ascending order.
func (b *BadgerStore) List() ([]types.LocID, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	var locs []types.LocID
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixScript
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if loc, ok := decodeLocKey(it.Item().Key()[len(prefixScript):]); ok {
				locs = append(locs, loc)
			}
		}
		return nil
	})
	return locs, err
}

// ROM returns the fingerprint of the ROM the last record was made against.
func (b *BadgerStore) ROM() (types.Digest, bool, error) {
	if b.closed.Load() {
		return types.Digest{}, false, ErrClosed
	}
	var (
		d  types.Digest
		ok bool
	)
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaROM)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		d, err = types.DigestFromBytes(v)
		ok = err == nil
		return err
	})
	return d, ok, err
}

// Close closes the database.
func (b *BadgerStore) Close() error {
	if b.closed.Swap(true) {
		return ErrClosed
	}
	return b.db.Close()
}
