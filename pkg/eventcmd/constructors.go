package eventcmd

// CallMode selects how a function call synchronizes with the caller.
type CallMode int

const (
	// CallCont starts the function and continues immediately.
	CallCont CallMode = iota
	// CallSync waits until the callee has started.
	CallSync
	// CallHalt waits until the callee has returned.
	CallHalt
)

// Return ends the current function.
func Return() Instruction { return New(OpReturn) }

// End ends the current object's processing loop.
func End() Instruction { return New(OpEnd) }

// Break yields for one frame.
func Break() Instruction { return New(OpBreak) }

// JumpForward jumps d bytes forward from its own last byte.
func JumpForward(d int) Instruction { return New(OpJumpForward, d) }

// JumpBack jumps d bytes backward from its own last byte.
func JumpBack(d int) Instruction { return New(OpJumpBack, d) }

// CallObjFunc calls function fn of object obj at the given priority.
func CallObjFunc(obj, fn, prio int, mode CallMode) Instruction {
	op := OpCallCont
	switch mode {
	case CallSync:
		op = OpCallSync
	case CallHalt:
		op = OpCallHalt
	}
	return New(op, 2*obj, (prio&0xF)<<4|fn&0xF)
}

// CallPCFunc calls function fn of party member pc.
func CallPCFunc(pc, fn, prio int, mode CallMode) Instruction {
	op := OpCallPCCont
	switch mode {
	case CallSync:
		op = OpCallPCSync
	case CallHalt:
		op = OpCallPCHalt
	}
	return New(op, 2*pc, (prio&0xF)<<4|fn&0xF)
}

// SetObjectDrawing turns drawing of object obj on or off.
func SetObjectDrawing(obj int, on bool) Instruction {
	if on {
		return New(OpDrawObjectOn, 2*obj)
	}
	return New(OpDrawObjectOff, 2*obj)
}

// RemoveObject removes object obj from the location.
func RemoveObject(obj int) Instruction { return New(OpRemoveObject, 2*obj) }

// SetStringIndex points the script's text at a ROM string table.
func SetStringIndex(romPtr int) Instruction { return New(OpStringIndex, romPtr) }

// TextboxPosition selects where a textbox is drawn.
type TextboxPosition int

const (
	TextboxAuto TextboxPosition = iota
	TextboxTop
	TextboxBottom
)

// Textbox shows string idx of the script's string table.
func Textbox(idx int, where TextboxPosition) Instruction {
	switch where {
	case TextboxTop:
		return New(OpTextTop, idx)
	case TextboxBottom:
		return New(OpTextBottom, idx)
	}
	return New(OpTextAuto, idx, 0)
}

// Pause waits for ticks sixteenths of a second.
func Pause(ticks int) Instruction { return New(OpPause, ticks) }

// IfStorylineBelow skips d bytes unless the storyline counter is below v.
func IfStorylineBelow(v, d int) Instruction { return New(OpIfStoryline, v, d) }

// IfHasItem skips d bytes unless the party holds item.
func IfHasItem(item, d int) Instruction { return New(OpIfHasItem, item, d) }

// IfActivePC skips d bytes unless pc is in the active party.
func IfActivePC(pc, d int) Instruction { return New(OpIfActivePC, pc, d) }

// IfRecruited skips d bytes unless pc has been recruited.
func IfRecruited(pc, d int) Instruction { return New(OpIfRecruited, pc, d) }

// GetResult loads the result from 0x7F0200 + 2*slot.
func GetResult(slot int) Instruction { return New(OpGetResult, slot) }

// SetStoryline assigns the storyline counter.
func SetStoryline(v int) Instruction { return New(OpSetStoryline, v) }

// AddItem gives the party one item.
func AddItem(item int) Instruction { return New(OpAddItem, item) }

// RemoveItem takes one item from the party.
func RemoveItem(item int) Instruction { return New(OpRemoveItem, item) }

// AddGold gives the party gold.
func AddGold(amount int) Instruction { return New(OpAddGold, amount) }

// LoadNPC loads an NPC sprite into the current object.
func LoadNPC(npc int) Instruction { return New(OpLoadNPC, npc) }

// LoadEnemy loads enemy into battle slot.
func LoadEnemy(enemy, slot int, static bool) Instruction {
	arg := slot
	if static {
		arg |= 0x80
	}
	return New(OpLoadEnemy, enemy, arg)
}

// Script-local and flag memory ranges.
const (
	LocalMemStart  = 0x7F0000
	ScriptMemStart = 0x7F0200
	ScriptMemEnd   = 0x7F0400
)

// SetFlag sets (or resets) one bit of flag or script memory. Script memory
// is addressed by even words; odd addresses are rounded down.
func SetFlag(addr, bit int, set bool) (Instruction, error) {
	if bit <= 0 || bit&(bit-1) != 0 || bit > 0x80 {
		return Instruction{}, ErrOperandRange
	}
	bitIdx := 0
	for 1<<bitIdx != bit {
		bitIdx++
	}
	switch {
	case addr >= LocalMemStart && addr < ScriptMemStart:
		overflow := 0
		if addr >= LocalMemStart+0x100 {
			overflow = 0x80
		}
		op := OpResetBitLocal
		if set {
			op = OpSetBitLocal
		}
		return New(op, overflow|bitIdx, addr%0x100), nil
	case addr >= ScriptMemStart && addr < ScriptMemEnd:
		op := OpResetBitScript
		if set {
			op = OpSetBitScript
		}
		return New(op, bitIdx, (addr&^1-ScriptMemStart)/2), nil
	}
	return Instruction{}, ErrOperandRange
}

// ChangeLocationCmd moves the party to loc. facing occupies bits 11-12 of the
// location operand.
func ChangeLocationCmd(loc, x, y, facing int, waitVBlank bool) Instruction {
	op := OpChangeLocation
	if waitVBlank {
		op = OpChangeLocWait
	}
	return New(op, (facing&3)<<11|loc, x, y)
}

// ExploreMode enables or disables player control.
func ExploreMode(on bool) Instruction {
	if on {
		return New(OpExploreMode, 1)
	}
	return New(OpExploreMode, 0)
}

// Darken dims the screen.
func Darken(duration int) Instruction { return New(OpDarken, duration) }

// FadeOut fades the screen out.
func FadeOut() Instruction { return New(OpFadeOut) }

// PlaySong starts a music track.
func PlaySong(song int) Instruction { return New(OpPlaySong, song) }

// Battle starts a battle. flags is the two-byte battle flag word.
func Battle(flags int) Instruction { return New(OpBattle, flags) }

// SpecialDialog opens a special dialog such as a name entry.
func SpecialDialog(id int) Instruction { return New(OpSpecialDialog, id) }

// MemCopy copies payload into memory at addr (bank 7E/7F selected by bank).
func MemCopy(addr, bank int, payload []byte) Instruction {
	return Instruction{
		Op:      OpMemCopy,
		Args:    []int{addr, bank, len(payload) + 2},
		Widths:  []int{2, 1, 2},
		Payload: append([]byte(nil), payload...),
	}
}
