package script

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/fortiblox/eventforge/pkg/eventcmd"
)

// filler returns one straight-line instruction.
func filler(r *rand.Rand) []byte {
	switch r.IntN(3) {
	case 0:
		return eventcmd.AddItem(r.IntN(0x100)).Encode()
	case 1:
		return eventcmd.AddGold(r.IntN(1000)).Encode()
	}
	return eventcmd.CallObjFunc(r.IntN(4), r.IntN(NumFunctions), 3, eventcmd.CallSync).Encode()
}

// randomStream returns whole instructions mixing straight code, guarded
// blocks and loops. Every jump stays inside the returned bytes.
func randomStream(r *rand.Rand) []byte {
	var out []byte
	for n := 1 + r.IntN(4); n > 0; n-- {
		var block []byte
		for k := 1 + r.IntN(3); k > 0; k-- {
			block = append(block, filler(r)...)
		}
		switch r.IntN(3) {
		case 0:
			out = append(out, eventcmd.IfHasItem(r.IntN(0x100), len(block)+1).Encode()...)
			out = append(out, block...)
		case 1:
			out = append(out, block...)
			out = append(out, eventcmd.JumpBack(len(block)+1).Encode()...)
		default:
			out = append(out, block...)
		}
	}
	return out
}

func randomBody(r *rand.Rand) []byte {
	return append(randomStream(r), eventcmd.Return().Encode()...)
}

// randomScript builds 1 to 4 objects with real functions, empty aliases and
// links to other objects.
func randomScript(t *testing.T, r *rand.Rand) *Script {
	t.Helper()
	objs := make([]object, 1+r.IntN(4))
	for i := range objs {
		objs[i][0] = randomBody(r)
		for fn := 1; fn < NumFunctions; fn++ {
			if r.IntN(3) == 0 {
				objs[i][fn] = randomBody(r)
			}
		}
	}
	s := mustScript(t, objs...)
	for obj := 1; obj < s.NumObjects(); obj++ {
		if r.IntN(2) == 0 {
			target, _ := s.ObjectStart(r.IntN(s.NumObjects()))
			s.setPtr(obj*NumFunctions+8+r.IntN(8), target)
		}
	}
	return s
}

// boundaries returns every instruction start of the body plus its end.
func boundaries(t *testing.T, s *Script) []int {
	t.Helper()
	var out []int
	err := s.Walk(s.BodyStart(), ToEnd, func(pos int, _ eventcmd.Instruction) bool {
		out = append(out, pos)
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	return append(out, s.Len())
}

// randomEdit applies one random edit. mayFail is set for edits that can be
// refused on valid input because a jump distance would leave its byte.
func randomEdit(t *testing.T, r *rand.Rand, s *Script) (desc string, mayFail bool, err error) {
	t.Helper()
	obj := r.IntN(s.NumObjects())
	room := s.NumObjects() < 12

	switch op := r.IntN(8); {
	case op == 0:
		pos := boundaries(t, s)
		at := pos[r.IntN(len(pos))]
		b := randomStream(r)
		err = s.InsertCommands(b, at)
		if err == nil && !bytes.Equal(s.Data()[at:at+len(b)], b) {
			t.Errorf("inserted bytes missing at 0x%04X", at)
		}
		return fmt.Sprintf("insert %d bytes at 0x%04X", len(b), at), true, err

	case op == 1:
		pos := boundaries(t, s)
		i := r.IntN(len(pos))
		j := min(i+r.IntN(4), len(pos)-1)
		return fmt.Sprintf("delete [0x%04X, 0x%04X)", pos[i], pos[j]), true,
			s.DeleteCommandsRange(pos[i], pos[j])

	case op <= 3:
		fn := r.IntN(NumFunctions)
		body := randomBody(r)
		err = s.SetFunction(obj, fn, body)
		if err == nil {
			if got, _ := s.Function(obj, fn); !bytes.Equal(got, body) {
				t.Errorf("function (%d, %d) = % X, want % X", obj, fn, got, body)
			}
		}
		return fmt.Sprintf("set function (%d, %d)", obj, fn), false, err

	case op == 4 && room:
		_, err = s.AppendEmptyObject()
		return "append empty object", false, err

	case op == 5 && room:
		_, err = s.AppendCopyObject(obj)
		return fmt.Sprintf("append copy of %d", obj), false, err

	case op == 6 && room:
		at := r.IntN(s.NumObjects() + 1)
		return fmt.Sprintf("insert copy of %d at %d", obj, at), true, s.InsertCopyObject(obj, at)

	case s.NumObjects() > 1:
		if _, err := s.RemoveObjectCalls(obj); err != nil {
			return fmt.Sprintf("remove calls to %d", obj), false, err
		}
		n := s.NumObjects()
		err = s.RemoveObject(obj)
		if err == nil && s.NumObjects() != n-1 {
			t.Errorf("%d objects after removing one of %d", s.NumObjects(), n)
		}
		return fmt.Sprintf("remove object %d", obj), false, err
	}
	return "no-op", false, nil
}

func TestRandomEditSequences(t *testing.T) {
	for seed := uint64(1); seed <= 25; seed++ {
		t.Run(fmt.Sprint(seed), func(t *testing.T) {
			r := rand.New(rand.NewPCG(seed, 0x5EED))
			s := randomScript(t, r)
			checkInvariants(t, s)

			for step := 0; step < 60; step++ {
				before := s.Clone()
				desc, mayFail, err := randomEdit(t, r, s)
				if err != nil {
					if !mayFail || !errors.Is(err, ErrCapacity) && !errors.Is(err, ErrStructure) {
						t.Fatalf("step %d, %s: %v", step, desc, err)
					}
					if !bytes.Equal(s.Packet(), before.Packet()) {
						t.Fatalf("step %d, %s: failed edit changed the script", step, desc)
					}
					continue
				}
				if t.Failed() {
					t.Fatalf("step %d, %s", step, desc)
				}
				checkInvariants(t, s)
			}
		})
	}
}
