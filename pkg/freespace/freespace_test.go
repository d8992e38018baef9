package freespace

import (
	"errors"
	"slices"
	"testing"
)

func TestMarkBlockMerges(t *testing.T) {
	m := New(0x1000, Used)

	steps := []struct {
		start, end int
		state      State
		want       []Block
	}{
		{0x100, 0x200, Free, []Block{{0, 0x100, Used}, {0x100, 0x200, Free}, {0x200, 0x1000, Used}}},
		{0x200, 0x300, Free, []Block{{0, 0x100, Used}, {0x100, 0x300, Free}, {0x300, 0x1000, Used}}},
		{0x180, 0x190, Used, []Block{
			{0, 0x100, Used}, {0x100, 0x180, Free}, {0x180, 0x190, Used},
			{0x190, 0x300, Free}, {0x300, 0x1000, Used},
		}},
		{0x000, 0x1000, Free, []Block{{0, 0x1000, Free}}},
		{0x000, 0x10, Used, []Block{{0, 0x10, Used}, {0x10, 0x1000, Free}}},
		{0xFF0, 0x1000, Used, []Block{{0, 0x10, Used}, {0x10, 0xFF0, Free}, {0xFF0, 0x1000, Used}}},
	}

	for i, st := range steps {
		if err := m.MarkBlock(st.start, st.end, st.state); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got := m.Blocks(); !slices.Equal(got, st.want) {
			t.Fatalf("step %d: blocks = %v, want %v", i, got, st.want)
		}
	}
}

func TestMarkBlockBadRange(t *testing.T) {
	m := New(0x100, Free)
	for _, r := range [][2]int{{0x10, 0x10}, {0x20, 0x10}, {-1, 0x10}, {0xF0, 0x101}} {
		if err := m.MarkBlock(r[0], r[1], Used); !errors.Is(err, ErrBadRange) {
			t.Errorf("MarkBlock(%X, %X) err = %v", r[0], r[1], err)
		}
	}
}

func TestFreeAddr(t *testing.T) {
	m := New(0x30000, Used)
	_ = m.MarkBlock(0x0100, 0x0110, Free)
	_ = m.MarkBlock(0xFF00, 0x10200, Free)
	_ = m.MarkBlock(0x20000, 0x20400, Free)

	tests := []struct {
		name       string
		size, hint int
		want       int
		wantErr    error
	}{
		{"fits first block", 0x10, 0, 0x0100, nil},
		{"hint inside free block", 0x08, 0x0104, 0x0104, nil},
		{"too big for first block", 0x20, 0, 0xFF00, nil},
		{"bank crossing moves to next bank", 0x180, 0, 0x10000, nil},
		{"hint skips earlier blocks", 0x10, 0x10300, 0x20000, nil},
		{"nothing fits", 0x500, 0, 0, ErrNoSpace},
		{"zero size", 0, 0, 0, ErrBadRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.FreeAddr(tt.size, tt.hint)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("FreeAddr = 0x%06X, want 0x%06X", got, tt.want)
			}
		})
	}
}

func TestAllocRelease(t *testing.T) {
	m := New(0x20000, Free)
	total := m.FreeSpace()

	a, err := m.Alloc(0x8000, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Alloc(0x9000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if a != 0 || b != 0x10000 {
		t.Errorf("allocations at 0x%X and 0x%X, want 0 and 0x10000", a, b)
	}
	if m.IsFree(a, a+1) || !m.IsFree(0x8000, 0x10000) {
		t.Errorf("IsFree disagrees with the allocations: %v", m.Blocks())
	}
	if got := m.FreeSpace(); got != total-0x11000 {
		t.Errorf("FreeSpace = 0x%X, want 0x%X", got, total-0x11000)
	}

	if err := m.Release(a, a+0x8000); err != nil {
		t.Fatal(err)
	}
	if err := m.Release(b, b+0x9000); err != nil {
		t.Fatal(err)
	}
	if got := m.Blocks(); len(got) != 1 || got[0] != (Block{0, 0x20000, Free}) {
		t.Errorf("blocks after release = %v", got)
	}

	if err := m.Reserve(0x100, 0x200); err != nil {
		t.Fatal(err)
	}
	if m.IsFree(0x100, 0x101) || m.IsFree(0x1FF, 0x200) || !m.IsFree(0x200, 0x300) {
		t.Errorf("blocks after reserve = %v", m.Blocks())
	}
	if err := m.Reserve(0x300, 0x300); !errors.Is(err, ErrBadRange) {
		t.Errorf("Reserve of an empty range err = %v", err)
	}
}
