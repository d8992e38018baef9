// Package freespace tracks which byte ranges of a ROM image are free for new
// data and hands out first-fit allocations that never cross a bank.
package freespace

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// BankSize is the span no allocation may cross.
const BankSize = 0x10000

var (
	// ErrNoSpace is returned when no free block can hold a request.
	ErrNoSpace = errors.New("not enough free space")

	// ErrBadRange is returned for empty, inverted or out-of-bounds ranges.
	ErrBadRange = errors.New("bad address range")
)

// State is the allocation state of a block.
type State uint8

const (
	// Used bytes hold live data.
	Used State = iota

	// Free bytes may be overwritten.
	Free
)

// String returns the state name.
func (s State) String() string {
	if s == Free {
		return "free"
	}
	return "used"
}

// Block is the half-open range [Start, End) in one state.
type Block struct {
	Start int
	End   int
	State State
}

// Len returns the block size in bytes.
func (b Block) Len() int {
	return b.End - b.Start
}

// String formats the block the way the rest of the tool prints addresses.
func (b Block) String() string {
	return fmt.Sprintf("[%06X, %06X) %s", b.Start, b.End, b.State)
}

// Manager partitions [0, size) into alternating used and free blocks.
// It is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	size   int
	blocks []Block
}

// New returns a manager for size bytes, all in the given state.
func New(size int, initial State) *Manager {
	m := &Manager{size: size}
	if size > 0 {
		m.blocks = []Block{{Start: 0, End: size, State: initial}}
	}
	return m
}

// Size returns the number of bytes managed.
func (m *Manager) Size() int {
	return m.size
}

func (m *Manager) checkRange(start, end int) error {
	if start < 0 || end <= start || end > m.size {
		return fmt.Errorf("%w: [%06X, %06X) in %06X bytes", ErrBadRange, start, end, m.size)
	}
	return nil
}

// MarkBlock sets [start, end) to state. Neighbouring blocks in the same state
// are merged.
func (m *Manager) MarkBlock(start, end int, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRange(start, end); err != nil {
		return err
	}
	m.mark(start, end, state)
	return nil
}

func (m *Manager) mark(start, end int, state State) {
	out := make([]Block, 0, len(m.blocks)+2)
	add := func(b Block) {
		if b.End <= b.Start {
			return
		}
		if n := len(out); n > 0 && out[n-1].State == b.State {
			out[n-1].End = b.End
			return
		}
		out = append(out, b)
	}
	for _, b := range m.blocks {
		if b.End <= start || b.Start >= end {
			add(b)
			continue
		}
		add(Block{Start: b.Start, End: start, State: b.State})
		add(Block{Start: max(b.Start, start), End: min(b.End, end), State: state})
		add(Block{Start: end, End: b.End, State: b.State})
	}
	m.blocks = out
}

// find returns the index of the block holding addr.
func (m *Manager) find(addr int) int {
	return sort.Search(len(m.blocks), func(i int) bool {
		return m.blocks[i].End > addr
	})
}

// IsFree reports whether all of [start, end) is free.
func (m *Manager) IsFree(start, end int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkRange(start, end) != nil {
		return false
	}
	i := m.find(start)
	return i < len(m.blocks) && m.blocks[i].State == Free && m.blocks[i].End >= end
}

// FreeAddr returns the first address at or after hint where size free bytes
// fit inside one bank.
func (m *Manager) FreeAddr(size, hint int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.freeAddr(size, hint)
}

func (m *Manager) freeAddr(size, hint int) (int, error) {
	if size <= 0 || size > BankSize {
		return 0, fmt.Errorf("%w: size 0x%X", ErrBadRange, size)
	}
	hint = max(hint, 0)
	for i := m.find(hint); i < len(m.blocks); i++ {
		b := m.blocks[i]
		if b.State != Free {
			continue
		}
		start := max(b.Start, hint)
		for start+size <= b.End {
			bankEnd := start&^(BankSize-1) + BankSize
			if start+size <= bankEnd {
				return start, nil
			}
			start = bankEnd
		}
	}
	return 0, fmt.Errorf("%w: size 0x%X, hint 0x%06X", ErrNoSpace, size, hint)
}

// Alloc finds room for size bytes at or after hint and marks it used.
func (m *Manager) Alloc(size, hint int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr, err := m.freeAddr(size, hint)
	if err != nil {
		return 0, err
	}
	m.mark(addr, addr+size, Used)
	return addr, nil
}

// Release marks [start, end) free again.
func (m *Manager) Release(start, end int) error {
	return m.MarkBlock(start, end, Free)
}

// Reserve marks [start, end) used, undoing a Release.
func (m *Manager) Reserve(start, end int) error {
	return m.MarkBlock(start, end, Used)
}

// FreeSpace returns the total number of free bytes.
func (m *Manager) FreeSpace() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, b := range m.blocks {
		if b.State == Free {
			total += b.Len()
		}
	}
	return total
}

// Blocks returns a copy of the partition in address order.
func (m *Manager) Blocks() []Block {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Block(nil), m.blocks...)
}
