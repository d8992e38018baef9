package scriptstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fortiblox/eventforge/internal/types"
	"github.com/fortiblox/eventforge/pkg/script"
)

// Bucket names for BoltDB.
var (
	// bucketScripts stores CBOR records keyed by location.
	bucketScripts = []byte("scripts")

	// bucketMeta stores store-wide values.
	bucketMeta = []byte("meta")
)

// Metadata keys.
var (
	keyROM = []byte("rom")
)

// Config holds BoltDB store options.
type Config struct {
	// Path is the database file.
	Path string

	// NoSync disables fsync after each write (faster but less durable).
	NoSync bool

	// ReadOnly opens the database in read-only mode.
	ReadOnly bool

	// Timeout bounds the wait for the file lock.
	Timeout time.Duration
}

// DefaultConfig returns the default BoltDB configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:    path,
		Timeout: 5 * time.Second,
	}
}

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db     *bolt.DB
	config Config

	mu     sync.RWMutex
	closed bool
}

// OpenBolt creates or opens a store at config.Path.
func OpenBolt(config Config) (*BoltStore, error) {
	// Ensure directory exists.
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	opts := &bolt.Options{
		Timeout:  config.Timeout,
		NoSync:   config.NoSync,
		ReadOnly: config.ReadOnly,
	}
	db, err := bolt.Open(config.Path, 0600, opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &BoltStore{db: db, config: config}
	if !config.ReadOnly {
		if err := store.initBuckets(); err != nil {
			db.Close()
			return nil, fmt.Errorf("init buckets: %w", err)
		}
	}
	return store, nil
}

// initBuckets creates all required buckets.
func (s *BoltStore) initBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketScripts, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func (s *BoltStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Put stores s as loc's record.
func (s *BoltStore) Put(loc types.LocID, sc *script.Script, rom types.Digest) error {
	return s.PutRecord(NewRecord(loc, sc, rom))
}

// PutRecord stores r under r.Loc and remembers its ROM fingerprint.
func (s *BoltStore) PutRecord(r *Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	data, err := r.Marshal()
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketScripts).Put(locKey(r.Loc), data); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyROM, r.ROM[:])
	})
}

// Get returns loc's record.
func (s *BoltStore) Get(loc types.LocID) (*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var rec *Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketScripts)
		if b == nil {
			return ErrNotFound
		}
		data := b.Get(locKey(loc))
		if data == nil {
			return ErrNotFound
		}
		var err error
		rec, err = UnmarshalRecord(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes loc's record. Deleting a missing record is not an error.
func (s *BoltStore) Delete(loc types.LocID) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketScripts).Delete(locKey(loc))
	})
}

// List returns the stored locations in ascending order.
func (s *BoltStore) List() ([]types.LocID, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var locs []types.LocID
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketScripts)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			if loc, ok := decodeLocKey(k); ok {
				locs = append(locs, loc)
			}
			return nil
		})
	})
	return locs, err
}

// ROM returns the fingerprint of the ROM the last record was made against.
func (s *BoltStore) ROM() (types.Digest, bool, error) {
	if err := s.checkOpen(); err != nil {
		return types.Digest{}, false, err
	}
	var (
		d  types.Digest
		ok bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}
		if v := b.Get(keyROM); v != nil {
			var err error
			d, err = types.DigestFromBytes(v)
			ok = err == nil
			return err
		}
		return nil
	})
	return d, ok, err
}

// Close closes the database.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	return s.db.Close()
}
