package script

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fortiblox/eventforge/pkg/eventcmd"
)

func firstJump(t *testing.T, s *Script) (int, int) {
	t.Helper()
	pos, ins, err := s.FindCommand(eventcmd.Jumps, ToEnd, ToEnd)
	if err != nil {
		t.Fatal(err)
	}
	d, _ := ins.JumpDistance()
	return pos, d
}

func TestInsertRelocatesJumps(t *testing.T) {
	// Forward cases: a conditional at 0x20 followed by filler, with the
	// insertion point P = 0x2A.
	forward := func(d int) []eventcmd.Instruction {
		return []eventcmd.Instruction{
			eventcmd.IfHasItem(1, d), // 0x20
			eventcmd.AddGold(1),      // 0x23
			eventcmd.AddItem(2),      // 0x26
			eventcmd.AddItem(3),      // 0x28
			eventcmd.AddItem(4),      // 0x2A
			eventcmd.Return(),        // 0x2C
		}
	}
	loop := []eventcmd.Instruction{
		eventcmd.AddItem(1),  // 0x20
		eventcmd.AddItem(2),  // 0x22
		eventcmd.JumpBack(5), // 0x24, lands on 0x20
		eventcmd.Return(),    // 0x26
	}
	insert := eventcmd.Bytes(eventcmd.AddItem(9), eventcmd.AddItem(10))

	tests := []struct {
		name string
		body []eventcmd.Instruction
		pos  int
		want int
	}{
		{name: "target past insertion", body: forward(10), pos: 0x2A, want: 14},
		{name: "target before insertion", body: forward(6), pos: 0x2A, want: 6},
		{name: "block ends at insertion", body: forward(8), pos: 0x2A, want: 8},
		{name: "insertion before jump", body: forward(10), pos: 0x20, want: 10},
		{name: "insertion inside loop", body: loop, pos: 0x22, want: 9},
		{name: "insertion at loop head", body: loop, pos: 0x20, want: 5},
		{name: "insertion after loop", body: loop, pos: 0x26, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustScript(t, fn0(tt.body...))
			if err := s.InsertCommands(insert, tt.pos); err != nil {
				t.Fatal(err)
			}
			if _, d := firstJump(t, s); d != tt.want {
				t.Errorf("distance = %d, want %d", d, tt.want)
			}
			checkInvariants(t, s)
		})
	}
}

func TestInsertShiftsPointers(t *testing.T) {
	s := mustScript(t,
		fn0(eventcmd.AddItem(1), eventcmd.Return()),
		fn0(eventcmd.Return()),
	)
	insert := eventcmd.Bytes(eventcmd.AddItem(2))

	if err := s.InsertCommands(insert, 0x42); err != nil {
		t.Fatal(err)
	}
	if start, _ := s.ObjectStart(1); start != 0x45 {
		t.Errorf("object 1 start = 0x%04X, want 0x45", start)
	}
	if start, _ := s.FunctionStart(0, 5); start != 0x40 {
		t.Errorf("object 0 function 5 moved to 0x%04X", start)
	}

	// Inserting at an object's start makes the bytes part of that object.
	if err := s.InsertCommands(insert, 0x45); err != nil {
		t.Fatal(err)
	}
	body, _ := s.Function(1, 0)
	want := eventcmd.Bytes(eventcmd.AddItem(2), eventcmd.Return())
	if !bytes.Equal(body, want) {
		t.Errorf("object 1 function 0 = % X, want % X", body, want)
	}
	checkInvariants(t, s)
}

func TestInsertErrors(t *testing.T) {
	long := []eventcmd.Instruction{eventcmd.IfHasItem(1, 251)}
	for i := 0; i < 125; i++ {
		long = append(long, eventcmd.AddItem(1))
	}
	long = append(long, eventcmd.Return())

	tests := []struct {
		name string
		body []eventcmd.Instruction
		ins  []byte
		pos  int
		want error
	}{
		{
			name: "mid instruction",
			body: []eventcmd.Instruction{eventcmd.AddGold(1), eventcmd.Return()},
			ins:  eventcmd.Bytes(eventcmd.Return()),
			pos:  0x21,
			want: ErrStructure,
		},
		{
			name: "inside table",
			body: []eventcmd.Instruction{eventcmd.Return()},
			ins:  eventcmd.Bytes(eventcmd.Return()),
			pos:  0x04,
			want: ErrStructure,
		},
		{
			name: "truncated bytes",
			body: []eventcmd.Instruction{eventcmd.Return()},
			ins:  []byte{byte(eventcmd.OpAddGold), 0x01},
			pos:  0x20,
			want: ErrStructure,
		},
		{
			name: "jump overflow",
			body: long,
			ins:  bytes.Repeat(eventcmd.AddItem(2).Encode(), 5),
			pos:  0x23,
			want: ErrCapacity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustScript(t, fn0(tt.body...))
			before := bytes.Clone(s.Data())
			err := s.InsertCommands(tt.ins, tt.pos)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !bytes.Equal(s.Data(), before) {
				t.Errorf("failed insert modified the script")
			}
		})
	}
}

func TestDeleteCommands(t *testing.T) {
	body := []eventcmd.Instruction{
		eventcmd.IfHasItem(1, 5), // lands on the return
		eventcmd.AddItem(2),
		eventcmd.AddItem(3),
		eventcmd.Return(),
	}
	tests := []struct {
		n    int
		want int
	}{
		{n: 1, want: 3},
		{n: 2, want: 1},
	}
	for _, tt := range tests {
		// Two objects, so the body starts at 0x40.
		s := mustScript(t, fn0(body...), fn0(eventcmd.End()))
		if err := s.DeleteCommands(0x43, tt.n); err != nil {
			t.Fatal(err)
		}
		if _, d := firstJump(t, s); d != tt.want {
			t.Errorf("delete %d: distance = %d, want %d", tt.n, d, tt.want)
		}
		if start, _ := s.ObjectStart(1); start != 0x48-2*tt.n {
			t.Errorf("delete %d: object 1 start = 0x%04X", tt.n, start)
		}
		checkInvariants(t, s)
	}

	s := mustScript(t, fn0(body...))
	if err := s.DeleteCommands(0x25, 3); !errors.Is(err, ErrStructure) {
		t.Errorf("delete past end err = %v", err)
	}
}

func TestDeleteCommandsRange(t *testing.T) {
	s := mustScript(t, fn0(
		eventcmd.IfHasItem(1, 5),
		eventcmd.AddItem(2),
		eventcmd.AddItem(3),
		eventcmd.Return(),
	))
	before := bytes.Clone(s.Data())
	if err := s.DeleteCommandsRange(0x23, 0x24); !errors.Is(err, ErrStructure) {
		t.Fatalf("overshooting range err = %v", err)
	}
	if !bytes.Equal(s.Data(), before) {
		t.Fatalf("failed range delete modified the script")
	}
	if err := s.DeleteCommandsRange(0x23, 0x27); err != nil {
		t.Fatal(err)
	}
	want := eventcmd.Bytes(eventcmd.IfHasItem(1, 1), eventcmd.Return())
	if got := s.Data()[0x20:]; !bytes.Equal(got, want) {
		t.Errorf("body = % X, want % X", got, want)
	}
	checkInvariants(t, s)
}

func TestInverseLaw(t *testing.T) {
	var o0 object
	o0[0] = eventcmd.Bytes(eventcmd.IfHasItem(1, 5), eventcmd.AddItem(2), eventcmd.AddItem(3), eventcmd.Return())
	o0[1] = eventcmd.Bytes(eventcmd.AddItem(4), eventcmd.AddItem(5), eventcmd.JumpBack(5), eventcmd.Return())
	orig := mustScript(t, o0,
		fn0(eventcmd.IfStorylineBelow(0x10, 3), eventcmd.AddItem(6), eventcmd.End()))
	insert := eventcmd.Bytes(eventcmd.AddGold(7), eventcmd.IfHasItem(2, 3), eventcmd.AddItem(8))

	var positions []int
	err := orig.Walk(ToEnd, ToEnd, func(pos int, _ eventcmd.Instruction) bool {
		positions = append(positions, pos)
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	positions = append(positions, orig.Len())

	for _, pos := range positions {
		s := orig.Clone()
		if err := s.InsertCommands(insert, pos); err != nil {
			t.Fatalf("insert at 0x%04X: %v", pos, err)
		}
		checkInvariants(t, s)
		if err := s.DeleteCommandsRange(pos, pos+len(insert)); err != nil {
			t.Fatalf("delete at 0x%04X: %v", pos, err)
		}
		if !bytes.Equal(s.Data(), orig.Data()) {
			t.Errorf("insert then delete at 0x%04X:\n got % X\nwant % X", pos, s.Data(), orig.Data())
		}
	}
}

func TestSetFunctionEmptyAlias(t *testing.T) {
	orig := eventcmd.Bytes(eventcmd.AddItem(1), eventcmd.Return())
	var o object
	o[0] = orig
	s := mustScript(t, o)
	body := eventcmd.Bytes(eventcmd.AddItem(2), eventcmd.AddGold(3))

	if err := s.SetFunction(0, 1, body); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Function(0, 0); !bytes.Equal(got, orig) {
		t.Errorf("function 0 = % X, want % X", got, orig)
	}
	slot, _ := s.Slot(0, 1)
	if slot.Kind != SlotReal {
		t.Errorf("function 1 is %s", slot.Kind)
	}
	if got, _ := s.Function(0, 1); !bytes.Equal(got, body) {
		t.Errorf("function 1 = % X, want % X", got, body)
	}
	slot, _ = s.Slot(0, 2)
	if slot.Kind != SlotEmpty || slot.Alias != 0 || slot.Start != 0x20 {
		t.Errorf("function 2 = %+v, want empty alias of function 0 at 0x20", slot)
	}
	checkInvariants(t, s)
}

func TestSetFunctionShrink(t *testing.T) {
	// Functions 0, 1 and 3 start at 0x40, 0x43 and 0x47; object 1 at 0x49.
	var o object
	o[0] = eventcmd.Bytes(eventcmd.AddItem(1), eventcmd.Return())
	o[1] = eventcmd.Bytes(eventcmd.AddGold(1), eventcmd.Return())
	o[3] = eventcmd.Bytes(eventcmd.AddItem(3))
	s := mustScript(t, o, fn0(eventcmd.End()))
	body := eventcmd.Bytes(eventcmd.Return(), eventcmd.Return())

	if err := s.SetFunction(0, 1, body); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		obj, fn int
		start   int
	}{
		{0, 0, 0x40},
		{0, 1, 0x43},
		{0, 2, 0x43},
		{0, 3, 0x45},
		{0, 4, 0x45},
		{1, 0, 0x47},
	}
	for _, tt := range tests {
		if got, _ := s.FunctionStart(tt.obj, tt.fn); got != tt.start {
			t.Errorf("function (%d, %d) at 0x%04X, want 0x%04X", tt.obj, tt.fn, got, tt.start)
		}
	}
	if slot, _ := s.Slot(0, 2); slot.Kind != SlotEmpty || slot.Alias != 1 {
		t.Errorf("function 2 = %+v, want alias of function 1", slot)
	}
	if got, _ := s.Function(0, 3); !bytes.Equal(got, o[3]) {
		t.Errorf("function 3 = % X", got)
	}
	if got, _ := s.Function(1, 0); !bytes.Equal(got, eventcmd.Bytes(eventcmd.End())) {
		t.Errorf("object 1 = % X", got)
	}
	checkInvariants(t, s)

	if err := s.SetFunction(0, 1, []byte{byte(eventcmd.OpAddGold)}); !errors.Is(err, ErrStructure) {
		t.Errorf("truncated body err = %v", err)
	}
}

func TestSetFunctionAppendedObject(t *testing.T) {
	s := mustScript(t, fn0(eventcmd.Return()))
	id, err := s.AppendEmptyObject()
	if err != nil {
		t.Fatal(err)
	}
	// Object 1 starts at 0x41, the end of the buffer.
	bodies := map[int][]byte{
		0: eventcmd.Bytes(eventcmd.AddItem(1), eventcmd.Return()),
		1: eventcmd.Bytes(eventcmd.AddGold(2), eventcmd.Return()),
		3: eventcmd.Bytes(eventcmd.End()),
	}
	for _, fn := range []int{0, 1, 3} {
		if err := s.SetFunction(id, fn, bodies[fn]); err != nil {
			t.Fatalf("SetFunction(%d, %d): %v", id, fn, err)
		}
		checkInvariants(t, s)
	}

	tests := []struct {
		fn    int
		kind  SlotKind
		start int
	}{
		{0, SlotReal, 0x41},
		{1, SlotReal, 0x44},
		{2, SlotEmpty, 0x41},
		{3, SlotReal, 0x48},
		{4, SlotEmpty, 0x41},
		{15, SlotEmpty, 0x41},
	}
	for _, tt := range tests {
		slot, _ := s.Slot(id, tt.fn)
		if slot.Kind != tt.kind || slot.Start != tt.start {
			t.Errorf("function %d = %+v, want %s at 0x%04X", tt.fn, slot, tt.kind, tt.start)
		}
	}
	for fn, want := range bodies {
		if got, _ := s.Function(id, fn); !bytes.Equal(got, want) {
			t.Errorf("function %d = % X, want % X", fn, got, want)
		}
	}
	if s.Len() != 0x49 {
		t.Errorf("length 0x%X, want 0x49", s.Len())
	}
}

func TestReplaceCommand(t *testing.T) {
	s := mustScript(t, fn0(eventcmd.IfHasItem(1, 3), eventcmd.AddItem(1), eventcmd.Return()))
	n, err := s.ReplaceCommand(eventcmd.AddItem(1), eventcmd.AddGold(5), ToEnd, ToEnd)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("replaced %d, want 1", n)
	}
	want := eventcmd.Bytes(eventcmd.IfHasItem(1, 4), eventcmd.AddGold(5), eventcmd.Return())
	if got := s.Data()[0x20:]; !bytes.Equal(got, want) {
		t.Errorf("body = % X, want % X", got, want)
	}
	checkInvariants(t, s)
}

func TestJumpBlocks(t *testing.T) {
	var o object
	o[0] = eventcmd.Bytes(
		eventcmd.IfHasItem(1, 5), // 0x20
		eventcmd.AddItem(2),      // 0x23
		eventcmd.AddItem(3),      // 0x25
		eventcmd.Return(),        // 0x27
	)
	o[1] = eventcmd.Bytes(eventcmd.End()) // 0x28
	s := mustScript(t, o)

	block, err := s.JumpBlock(0x20, false)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0xCA, 0x02, 0xCA, 0x03}; !bytes.Equal(block, want) {
		t.Errorf("JumpBlock = % X, want % X", block, want)
	}
	block, _ = s.JumpBlock(0x20, true)
	if len(block) != 7 {
		t.Errorf("JumpBlock with condition has %d bytes, want 7", len(block))
	}
	if _, err := s.JumpBlock(0x23, false); !errors.Is(err, ErrStructure) {
		t.Errorf("JumpBlock on AddItem err = %v", err)
	}

	if err := s.DeleteJumpBlock(0x20); err != nil {
		t.Fatal(err)
	}
	if got := s.Data()[0x20:]; !bytes.Equal(got, []byte{0x00, 0xB2}) {
		t.Errorf("body = % X", got)
	}
	if start, _ := s.FunctionStart(0, 1); start != 0x21 {
		t.Errorf("function 1 at 0x%04X, want 0x21", start)
	}
	checkInvariants(t, s)
}

func TestDeleteCommandFromFunction(t *testing.T) {
	var o object
	o[0] = eventcmd.Bytes(eventcmd.AddItem(1), eventcmd.AddGold(2), eventcmd.Return())
	o[1] = eventcmd.Bytes(eventcmd.AddItem(3), eventcmd.Return()) // 0x26
	s := mustScript(t, o)
	items := eventcmd.NewSet(eventcmd.OpAddItem)

	pos, err := s.DeleteCommandFromFunction(items, 0, 1, ToEnd, ToEnd)
	if err != nil || pos != 0x26 {
		t.Fatalf("DeleteCommandFromFunction = %d, %v", pos, err)
	}
	if got, _ := s.Function(0, 1); !bytes.Equal(got, []byte{0x00}) {
		t.Errorf("function 1 = % X", got)
	}
	if got, _ := s.Function(0, 0); !bytes.Equal(got, o[0]) {
		t.Errorf("function 0 changed: % X", got)
	}
	pos, err = s.DeleteCommandFromFunction(items, 0, 1, ToEnd, ToEnd)
	if err != nil || pos != -1 {
		t.Errorf("second delete = %d, %v", pos, err)
	}
}
