package script

import (
	"bufio"
	"fmt"
	"io"

	"github.com/fortiblox/eventforge/internal/types"
	"github.com/fortiblox/eventforge/pkg/eventcmd"
)

// Disassemble writes a listing of every object and function. Empty and
// linked slots are listed by reference only.
func (s *Script) Disassemble(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "; %d objects, %d bytes, %d strings\n", s.numObjects, len(s.data), len(s.strings))
	for obj := 0; obj < s.numObjects; obj++ {
		slots, err := s.Slots(obj)
		if err != nil {
			return err
		}
		fmt.Fprintf(bw, "\nobject %02X\n", obj)
		for fn, slot := range slots {
			switch slot.Kind {
			case SlotEmpty:
				fmt.Fprintf(bw, "  func %X = func %X\n", fn, slot.Alias)
				continue
			case SlotLinked:
				fmt.Fprintf(bw, "  func %X -> [%04X] object %d\n", fn, slot.Start, slot.Object)
				continue
			}
			end, err := s.FunctionEnd(obj, fn)
			if err != nil {
				return err
			}
			fmt.Fprintf(bw, "  func %X %s [%04X, %04X)\n", fn, types.FuncID(fn), slot.Start, end)
			err = s.Walk(slot.Start, end, func(pos int, ins eventcmd.Instruction) bool {
				fmt.Fprintf(bw, "    [%04X] %s\n", pos, ins)
				return true
			})
			if err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
