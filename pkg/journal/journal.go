// Package journal keeps a SQLite history of script flushes: where each
// location's script lived before and after it was rewritten into the ROM.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fortiblox/eventforge/internal/types"
)

// ErrClosed is returned when operating on a closed journal.
var ErrClosed = errors.New("journal closed")

// Entry describes one flush.
type Entry struct {
	Loc     types.LocID
	OldAddr int
	OldLen  int
	NewAddr int
	NewLen  int
	Digest  types.Digest
	At      time.Time
}

// String formats the entry as one log line.
func (e Entry) String() string {
	return fmt.Sprintf("%s [%06X+%X] -> [%06X+%X] %s",
		e.Loc, e.OldAddr, e.OldLen, e.NewAddr, e.NewLen, e.Digest)
}

// Journal is a flush history backed by SQLite.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the journal at path. ":memory:" gives a private
// in-memory journal.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS flushes (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		loc      INTEGER NOT NULL,
		old_addr INTEGER NOT NULL,
		old_len  INTEGER NOT NULL,
		new_addr INTEGER NOT NULL,
		new_len  INTEGER NOT NULL,
		digest   TEXT NOT NULL,
		at       INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS flushes_loc ON flushes (loc)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record appends e. A zero At is stamped with the current time.
func (j *Journal) Record(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := j.db.Exec(
		`INSERT INTO flushes (loc, old_addr, old_len, new_addr, new_len, digest, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int(e.Loc), e.OldAddr, e.OldLen, e.NewAddr, e.NewLen, e.Digest.String(), e.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("recording flush: %w", err)
	}
	return nil
}

// Entries returns loc's flushes, oldest first.
func (j *Journal) Entries(loc types.LocID) ([]Entry, error) {
	return j.query("WHERE loc = ?", int(loc))
}

// All returns every flush, oldest first.
func (j *Journal) All() ([]Entry, error) {
	return j.query("")
}

func (j *Journal) query(where string, args ...any) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, ErrClosed
	}
	rows, err := j.db.Query(
		"SELECT loc, old_addr, old_len, new_addr, new_len, digest, at FROM flushes "+where+" ORDER BY id",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying flushes: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			loc    int
			digest string
			at     int64
		)
		if err := rows.Scan(&loc, &e.OldAddr, &e.OldLen, &e.NewAddr, &e.NewLen, &digest, &at); err != nil {
			return nil, fmt.Errorf("scanning flush: %w", err)
		}
		e.Loc = types.LocID(loc)
		if e.Digest, err = types.DigestFromBase58(digest); err != nil {
			return nil, fmt.Errorf("flush digest: %w", err)
		}
		e.At = time.Unix(0, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}
