// Package eventcmd defines event-script opcodes and instruction encoding.
//
// An instruction is one opcode byte followed by little-endian integer
// operands. Most opcodes have a fixed operand layout. A handful choose their
// layout from a byte inside the instruction, and two of those carry an inline
// byte payload after their integer operands.
package eventcmd

// Opcode is the first byte of an encoded instruction.
type Opcode byte

// Control flow.
const (
	OpReturn        Opcode = 0x00
	OpCallCont      Opcode = 0x02 // call object function, continue
	OpCallSync      Opcode = 0x03 // call object function, wait for start
	OpCallHalt      Opcode = 0x04 // call object function, wait for end
	OpCallPCCont    Opcode = 0x05
	OpCallPCSync    Opcode = 0x06
	OpCallPCHalt    Opcode = 0x07
	OpRemoveObject  Opcode = 0x0A
	OpDisableProc   Opcode = 0x0B
	OpEnableProc    Opcode = 0x0C
	OpJumpForward   Opcode = 0x10
	OpJumpBack      Opcode = 0x11
	OpIfMem1        Opcode = 0x12
	OpIfMem2        Opcode = 0x13
	OpIfMemMem      Opcode = 0x14
	OpIfMemMem2     Opcode = 0x15
	OpIfLocal       Opcode = 0x16
	OpIfStoryline   Opcode = 0x18
	OpGetResult     Opcode = 0x19
	OpIfResult      Opcode = 0x1A
	OpIfObjVisible  Opcode = 0x27
	OpIfBattleRange Opcode = 0x28
	OpIfButton      Opcode = 0x2D
	OpBreak         Opcode = 0xB1
	OpEnd           Opcode = 0xB2
)

// Opcodes whose operand layout depends on a byte inside the instruction.
const (
	OpColorMath  Opcode = 0x2E
	OpMemCopy    Opcode = 0x4E
	OpPalette    Opcode = 0x88
	OpColorAdd   Opcode = 0xF1
	OpMode7Scene Opcode = 0xFF
)

// Memory and flags.
const (
	OpAssignValToMem Opcode = 0x4F
	OpSetStoryline   Opcode = 0x5A
	OpSetBitScript   Opcode = 0x63
	OpResetBitScript Opcode = 0x64
	OpSetBitLocal    Opcode = 0x65
	OpResetBitLocal  Opcode = 0x66
	OpResetBits      Opcode = 0x67
	OpSetBits        Opcode = 0x69
)

// Objects, text and location.
const (
	OpDrawObjectOn   Opcode = 0x7C
	OpDrawObjectOff  Opcode = 0x7D
	OpLoadPC         Opcode = 0x81
	OpLoadNPC        Opcode = 0x82
	OpLoadEnemy      Opcode = 0x83
	OpDrawOn         Opcode = 0x90
	OpDrawOff        Opcode = 0x91
	OpPause          Opcode = 0xAD
	OpStringIndex    Opcode = 0xB8
	OpPersonalText   Opcode = 0xBB
	OpTextAuto       Opcode = 0xC0
	OpTextTop        Opcode = 0xC1
	OpTextBottom     Opcode = 0xC2
	OpTextDecAuto    Opcode = 0xC3
	OpTextDecBottom  Opcode = 0xC4
	OpSpecialDialog  Opcode = 0xC8
	OpIfHasItem      Opcode = 0xC9
	OpAddItem        Opcode = 0xCA
	OpRemoveItem     Opcode = 0xCB
	OpIfGold         Opcode = 0xCC
	OpAddGold        Opcode = 0xCD
	OpIfRecruited    Opcode = 0xCF
	OpIfActivePC     Opcode = 0xD2
	OpBattle         Opcode = 0xD8
	OpMoveParty      Opcode = 0xD9
	OpChangeLocation Opcode = 0xE0
	OpChangeLocWait  Opcode = 0xE1
	OpExploreMode    Opcode = 0xE3
	OpPlaySong       Opcode = 0xEA
	OpDarken         Opcode = 0xF0
	OpFadeOut        Opcode = 0xF2
)

// Set is a set of opcodes.
type Set [256]bool

// NewSet builds a Set from a list of opcodes.
func NewSet(ops ...Opcode) Set {
	var s Set
	for _, op := range ops {
		s[op] = true
	}
	return s
}

// Contains reports whether op is in the set.
func (s Set) Contains(op Opcode) bool {
	return s[op]
}

// Union returns a set holding every opcode of s and o.
func (s Set) Union(o Set) Set {
	for i, ok := range o {
		if ok {
			s[i] = true
		}
	}
	return s
}

// Opcodes returns the members of s in ascending order.
func (s Set) Opcodes() []Opcode {
	var ops []Opcode
	for i, ok := range s {
		if ok {
			ops = append(ops, Opcode(i))
		}
	}
	return ops
}

// Jump sets. The jump distance is always the last operand and one byte wide.
var (
	ForwardJumps = NewSet(
		0x10, 0x12, 0x13, 0x14, 0x15, 0x16, 0x18, 0x1A, 0x27, 0x28, 0x2D,
		0x30, 0x31, 0x34, 0x35, 0x36, 0x37, 0x38, 0x39, 0x3B, 0x3C, 0x3F,
		0x40, 0x41, 0x42, 0x43, 0x44, 0xC9, 0xCC, 0xCF, 0xD2,
	)
	BackJumps    = NewSet(OpJumpBack)
	Jumps        = ForwardJumps.Union(BackJumps)
	Conditionals = conditionals()
)

func conditionals() Set {
	s := ForwardJumps
	s[OpJumpForward] = false
	return s
}

// Sets of opcodes whose first operand is an object index stored as 2*obj.
var (
	ObjectCalls      = NewSet(OpCallCont, OpCallSync, OpCallHalt)
	ObjectDrawing    = NewSet(OpDrawObjectOn, OpDrawObjectOff)
	ObjectProcessing = NewSet(OpRemoveObject, OpDisableProc, OpEnableProc)
	ObjectRefs       = ObjectCalls.Union(ObjectDrawing).Union(ObjectProcessing)
)

// Text and location sets.
var (
	// StringCommands take a string index as their first operand.
	StringCommands = NewSet(OpPersonalText, OpTextAuto, OpTextTop, OpTextBottom,
		OpTextDecAuto, OpTextDecBottom)
	StringIndex    = NewSet(OpStringIndex)
	ChangeLocation = NewSet(0xDC, 0xDD, 0xDE, 0xDF, 0xE0, 0xE1, 0xE2)
)

// IsJump reports whether op carries a relocatable jump distance.
func (op Opcode) IsJump() bool {
	return Jumps[op]
}

// IsForwardJump reports whether op jumps forward.
func (op Opcode) IsForwardJump() bool {
	return ForwardJumps[op]
}

// IsBackJump reports whether op jumps backward.
func (op Opcode) IsBackJump() bool {
	return BackJumps[op]
}
