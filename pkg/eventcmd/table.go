package eventcmd

// Layout is the operand shape of one instruction: the byte widths of its
// little-endian integer operands and the length of an inline payload that
// follows them.
type Layout struct {
	Widths  []int
	Payload int
}

// Size returns the encoded size of the operands, excluding the opcode.
func (l Layout) Size() int {
	n := l.Payload
	for _, w := range l.Widths {
		n += w
	}
	return n
}

// layoutFunc picks the layout of a dynamic opcode from the bytes at buf[pos:].
// The opcode byte is buf[pos].
type layoutFunc func(buf []byte, pos int) (Layout, error)

// Definition describes one opcode.
type Definition struct {
	Op     Opcode
	Name   string
	Layout Layout // default layout; the only layout for static opcodes

	dynamic layoutFunc
}

// Dynamic reports whether the layout is chosen per instruction.
func (d Definition) Dynamic() bool {
	return d.dynamic != nil
}

func w(widths ...int) Layout {
	return Layout{Widths: widths}
}

// Opcodes the engine treats as crashing; they take no operands.
const colorCrash = "Color Crash"

var table = [256]Definition{
	0x00: {Name: "Return"},
	0x01: {Name: colorCrash},
	0x02: {Name: "Call Event", Layout: w(1, 1)},
	0x03: {Name: "Call Event Sync", Layout: w(1, 1)},
	0x04: {Name: "Call Event Halt", Layout: w(1, 1)},
	0x05: {Name: "Call PC Event", Layout: w(1, 1)},
	0x06: {Name: "Call PC Event Sync", Layout: w(1, 1)},
	0x07: {Name: "Call PC Event Halt", Layout: w(1, 1)},
	0x08: {Name: "Object Activation"},
	0x09: {Name: "Object Deactivation"},
	0x0A: {Name: "Remove Object", Layout: w(1)},
	0x0B: {Name: "Disable Processing", Layout: w(1)},
	0x0C: {Name: "Enable Processing", Layout: w(1)},
	0x0D: {Name: "NPC Movement Properties", Layout: w(1)},
	0x0E: {Name: "NPC Positioning", Layout: w(1)},
	0x0F: {Name: "Set NPC Facing (up)"},

	0x10: {Name: "Jump Forward", Layout: w(1)},
	0x11: {Name: "Jump Backwards", Layout: w(1)},
	0x12: {Name: "If", Layout: w(1, 1, 1, 1)},
	0x13: {Name: "If", Layout: w(1, 2, 1, 1)},
	0x14: {Name: "If", Layout: w(1, 1, 1, 1)},
	0x15: {Name: "If", Layout: w(1, 1, 1, 1)},
	0x16: {Name: "If", Layout: w(1, 1, 1, 1)},
	0x17: {Name: "Set NPC Facing (down)"},
	0x18: {Name: "Check Storyline", Layout: w(1, 1)},
	0x19: {Name: "Get Result", Layout: w(1)},
	0x1A: {Name: "Jump Result", Layout: w(1, 1)},
	0x1B: {Name: "Set NPC Facing (left)"},
	0x1C: {Name: "Get Result", Layout: w(2)},
	0x1D: {Name: "Set NPC Facing (right)"},
	0x1E: {Name: "Set NPC Facing (up)", Layout: w(1)},
	0x1F: {Name: "Set NPC Facing (down)", Layout: w(1)},

	0x20: {Name: "Get PC1", Layout: w(1)},
	0x21: {Name: "Get Object Coords", Layout: w(1, 1, 1)},
	0x22: {Name: "Get PC Coords", Layout: w(1, 1, 1)},
	0x23: {Name: "Get Obj Facing", Layout: w(1, 1)},
	0x24: {Name: "Get PC Facing", Layout: w(1, 1)},
	0x25: {Name: "Set NPC Facing (left)", Layout: w(1)},
	0x26: {Name: "Set NPC Facing (right)", Layout: w(1)},
	0x27: {Name: "Check Object Status", Layout: w(1, 1)},
	0x28: {Name: "Check Battle Range", Layout: w(1, 1)},
	0x29: {Name: "Set NPC Facing (right)", Layout: w(1)},
	0x2A: {Name: "Unknown 0x2A"},
	0x2B: {Name: "Unknown 0x2B"},
	0x2C: {Name: "Unknown 0x2C", Layout: w(1, 1)},
	0x2D: {Name: "Check Button Pressed", Layout: w(1)},
	0x2E: {Name: "Color Math", Layout: w(1), dynamic: colorMathLayout},
	0x2F: {Name: "Unknown 0x2F", Layout: w(1, 1)},

	0x30: {Name: "Jump No Dash", Layout: w(1)},
	0x31: {Name: "Jump No Confirm", Layout: w(1)},
	0x32: {Name: "Unknown 0x32"},
	0x33: {Name: "Change Palette", Layout: w(1)},
	0x34: {Name: "Jump A Button", Layout: w(1)},
	0x35: {Name: "Jump B Button", Layout: w(1)},
	0x36: {Name: "Jump X Button", Layout: w(1)},
	0x37: {Name: "Jump Y Button", Layout: w(1)},
	0x38: {Name: "Jump L Button", Layout: w(1)},
	0x39: {Name: "Jump R Button", Layout: w(1)},
	0x3A: {Name: colorCrash},
	0x3B: {Name: "Jump No Dash", Layout: w(1)},
	0x3C: {Name: "Jump No Confirm", Layout: w(1)},
	0x3D: {Name: colorCrash},
	0x3E: {Name: colorCrash},
	0x3F: {Name: "Jump No A", Layout: w(1)},

	0x40: {Name: "Jump No B", Layout: w(1)},
	0x41: {Name: "Jump No X", Layout: w(1)},
	0x42: {Name: "Jump No Y", Layout: w(1)},
	0x43: {Name: "Jump No L", Layout: w(1)},
	0x44: {Name: "Jump No R", Layout: w(1)},
	0x45: {Name: colorCrash},
	0x46: {Name: colorCrash},
	0x47: {Name: "Animation Limiter", Layout: w(1)},
	0x48: {Name: "Assignment", Layout: w(3, 1)},
	0x49: {Name: "Assignment", Layout: w(3, 1)},
	0x4A: {Name: "Assignment", Layout: w(3, 1)},
	0x4B: {Name: "Assignment", Layout: w(3, 2)},
	0x4C: {Name: "Assignment", Layout: w(3, 1)},
	0x4D: {Name: "Assignment", Layout: w(3, 1)},
	0x4E: {Name: "Memory Copy", Layout: w(2, 1, 2), dynamic: memCopyLayout},
	0x4F: {Name: "Assignment (Val to Mem)", Layout: w(1, 1)},

	0x50: {Name: "Assignment (Val to Mem)", Layout: w(2, 1)},
	0x51: {Name: "Assignment (Mem to Mem)", Layout: w(1, 1)},
	0x52: {Name: "Assignment (Mem to Mem)", Layout: w(1, 1)},
	0x53: {Name: "Assignment (Mem to Mem)", Layout: w(2, 1)},
	0x54: {Name: "Assignment (Mem to Mem)", Layout: w(2, 1)},
	0x55: {Name: "Get Storyline Counter", Layout: w(1)},
	0x56: {Name: "Assignment (Value to Mem)", Layout: w(1, 2)},
	0x57: {Name: "Load Crono"},
	0x58: {Name: "Assignment (Mem to Mem)", Layout: w(1, 2)},
	0x59: {Name: "Assignment (Mem to Mem)", Layout: w(1, 2)},
	0x5A: {Name: "Assign Storyline", Layout: w(1)},
	0x5B: {Name: "Add (Val to Mem)", Layout: w(1, 1)},
	0x5C: {Name: "Load Marle"},
	0x5D: {Name: "Add (Mem to Mem)", Layout: w(1, 1)},
	0x5E: {Name: "Add (Mem to Mem)", Layout: w(1, 1)},
	0x5F: {Name: "Subtract (Val to Mem)", Layout: w(1, 1)},

	0x60: {Name: "Subtract (Val to Mem)", Layout: w(2, 1)},
	0x61: {Name: "Add (Mem to Mem)", Layout: w(1, 1)},
	0x62: {Name: "Load Lucca"},
	0x63: {Name: "Set Bit", Layout: w(1, 1)},
	0x64: {Name: "Reset Bit", Layout: w(1, 1)},
	0x65: {Name: "Set Bit", Layout: w(1, 1)},
	0x66: {Name: "Reset Bit", Layout: w(1, 1)},
	0x67: {Name: "Reset Bits", Layout: w(1, 1)},
	0x68: {Name: "Load Frog"},
	0x69: {Name: "Set Bits", Layout: w(1, 1)},
	0x6A: {Name: "Load Robo"},
	0x6B: {Name: "Toggle Bits", Layout: w(1, 1)},
	0x6C: {Name: "Load Ayla"},
	0x6D: {Name: "Load Magus"},
	0x6E: {Name: colorCrash},
	0x6F: {Name: "Shift Bits", Layout: w(1, 1)},

	0x70: {Name: colorCrash},
	0x71: {Name: "Increment", Layout: w(1)},
	0x72: {Name: "Increment", Layout: w(1)},
	0x73: {Name: "Decrement", Layout: w(1)},
	0x74: {Name: colorCrash},
	0x75: {Name: "Set Byte", Layout: w(1)},
	0x76: {Name: "Set Byte", Layout: w(1)},
	0x77: {Name: "Reset Byte", Layout: w(1)},
	0x78: {Name: colorCrash},
	0x79: {Name: colorCrash},
	0x7A: {Name: "NPC Jump", Layout: w(1, 1, 1)},
	0x7B: {Name: "NPC Jump", Layout: w(1, 1, 1, 1)},
	0x7C: {Name: "Turn Drawing On", Layout: w(1)},
	0x7D: {Name: "Turn Drawing Off", Layout: w(1)},
	0x7E: {Name: "Turn Drawing Off"},
	0x7F: {Name: "Random", Layout: w(1)},

	0x80: {Name: "Load PC", Layout: w(1)},
	0x81: {Name: "Load PC", Layout: w(1)},
	0x82: {Name: "Load NPC", Layout: w(1)},
	0x83: {Name: "Load Enemy", Layout: w(1, 1)},
	0x84: {Name: "NPC Solidity", Layout: w(1)},
	0x85: {Name: colorCrash},
	0x86: {Name: colorCrash},
	0x87: {Name: "Script Speed", Layout: w(1)},
	0x88: {Name: "Mem Copy", Layout: w(1), dynamic: paletteLayout},
	0x89: {Name: "NPC Speed", Layout: w(1)},
	0x8A: {Name: "NPC Speed", Layout: w(1)},
	0x8B: {Name: "Set Object Position", Layout: w(1, 1)},
	0x8C: {Name: "Set Object Position", Layout: w(1, 1)},
	0x8D: {Name: "Set Object Pixel Position", Layout: w(2, 2)},
	0x8E: {Name: "Set Sprite Priority", Layout: w(1)},
	0x8F: {Name: "Follow at Distance", Layout: w(1)},

	0x90: {Name: "Drawing On"},
	0x91: {Name: "Drawing Off"},
	0x92: {Name: "Vector Move", Layout: w(1, 1)},
	0x93: {Name: colorCrash},
	0x94: {Name: "Follow Object", Layout: w(1)},
	0x95: {Name: "Follow PC", Layout: w(1)},
	0x96: {Name: "NPC Move", Layout: w(1, 1)},
	0x97: {Name: "NPC Move", Layout: w(1, 1)},
	0x98: {Name: "Move Toward", Layout: w(1, 1)},
	0x99: {Name: "Move Toward", Layout: w(1, 1)},
	0x9A: {Name: "Move Toward Coordinates", Layout: w(1, 1)},
	0x9B: {Name: colorCrash},
	0x9C: {Name: "Vector Move", Layout: w(1, 1)},
	0x9D: {Name: "Vector Move", Layout: w(1, 1)},
	0x9E: {Name: "Vector Move to Object", Layout: w(1)},
	0x9F: {Name: "Vector Move to Object", Layout: w(1)},

	0xA0: {Name: "Animated Move", Layout: w(1, 1)},
	0xA1: {Name: "Animated Move", Layout: w(1, 1)},
	0xA2: {Name: colorCrash},
	0xA3: {Name: colorCrash},
	0xA4: {Name: colorCrash},
	0xA5: {Name: colorCrash},
	0xA6: {Name: "NPC Facing", Layout: w(1)},
	0xA7: {Name: "NPC Facing", Layout: w(1)},
	0xA8: {Name: "NPC Facing", Layout: w(1)},
	0xA9: {Name: "NPC Facing", Layout: w(1)},
	0xAA: {Name: "Animation", Layout: w(1)},
	0xAB: {Name: "Animation", Layout: w(1)},
	0xAC: {Name: "Static Animation", Layout: w(1)},
	0xAD: {Name: "Pause", Layout: w(1)},
	0xAE: {Name: "Reset Animation"},
	0xAF: {Name: "Exploration Once"},

	0xB0: {Name: "Exploration"},
	0xB1: {Name: "Break"},
	0xB2: {Name: "End"},
	0xB3: {Name: "Animation"},
	0xB4: {Name: "Animation"},
	0xB5: {Name: "Move to Object", Layout: w(1)},
	0xB6: {Name: "Move to PC", Layout: w(1)},
	0xB7: {Name: "Loop Animation", Layout: w(1, 1)},
	0xB8: {Name: "String Index", Layout: w(3)},
	0xB9: {Name: "Pause 1/4"},
	0xBA: {Name: "Pause 1/2"},
	0xBB: {Name: "Personal Textbox", Layout: w(1)},
	0xBC: {Name: "Pause 1"},
	0xBD: {Name: "Pause 2"},
	0xBE: {Name: colorCrash},
	0xBF: {Name: colorCrash},

	0xC0: {Name: "Dec Box Auto", Layout: w(1, 1)},
	0xC1: {Name: "Textbox Top", Layout: w(1)},
	0xC2: {Name: "Textbox Bottom", Layout: w(1)},
	0xC3: {Name: "Dec Box Auto", Layout: w(1, 1)},
	0xC4: {Name: "Dec Box Bottom", Layout: w(1, 1)},
	0xC5: {Name: colorCrash},
	0xC6: {Name: colorCrash},
	0xC7: {Name: "Add Item", Layout: w(1)},
	0xC8: {Name: "Special Dialog", Layout: w(1)},
	0xC9: {Name: "Check Inventory", Layout: w(1, 1)},
	0xCA: {Name: "Add Item", Layout: w(1)},
	0xCB: {Name: "Remove Item", Layout: w(1)},
	0xCC: {Name: "Check Gold", Layout: w(2, 1)},
	0xCD: {Name: "Add Gold", Layout: w(2)},
	0xCE: {Name: "Remove Gold", Layout: w(2)},
	0xCF: {Name: "Check Recruited", Layout: w(1, 1)},

	0xD0: {Name: "Add Reserve", Layout: w(1)},
	0xD1: {Name: "Remove PC", Layout: w(1)},
	0xD2: {Name: "Check Active PC", Layout: w(1, 1)},
	0xD3: {Name: "Add PC to Party", Layout: w(1)},
	0xD4: {Name: "Move to Reserve", Layout: w(1)},
	0xD5: {Name: "Equip Item", Layout: w(1, 1)},
	0xD6: {Name: "Remove Active PC", Layout: w(1)},
	0xD7: {Name: "Get Item Quantity", Layout: w(1, 1)},
	0xD8: {Name: "Battle", Layout: w(2)},
	0xD9: {Name: "Move Party", Layout: w(1, 1, 1, 1, 1, 1)},
	0xDA: {Name: "Party Follow"},
	0xDB: {Name: colorCrash},
	0xDC: {Name: "Change Location", Layout: w(2, 1, 1)},
	0xDD: {Name: "Change Location", Layout: w(2, 1, 1)},
	0xDE: {Name: "Change Location", Layout: w(2, 1, 1)},
	0xDF: {Name: "Change Location", Layout: w(2, 1, 1)},

	0xE0: {Name: "Change Location", Layout: w(2, 1, 1)},
	0xE1: {Name: "Change Location", Layout: w(2, 1, 1)},
	0xE2: {Name: "Change Location", Layout: w(1, 1, 1, 1)},
	0xE3: {Name: "Explore Mode", Layout: w(1)},
	0xE4: {Name: "Copy Tiles", Layout: w(1, 1, 1, 1, 1, 1, 1)},
	0xE5: {Name: "Copy Tiles", Layout: w(1, 1, 1, 1, 1, 1, 1)},
	0xE6: {Name: "Scroll Layers", Layout: w(2, 1, 1)},
	0xE7: {Name: "Scroll Screen", Layout: w(1, 1)},
	0xE8: {Name: "Play Sound", Layout: w(1)},
	0xE9: {Name: colorCrash},
	0xEA: {Name: "Play Song", Layout: w(1)},
	0xEB: {Name: "Change Volume", Layout: w(1, 1)},
	0xEC: {Name: "All Purpose Sound", Layout: w(1, 1, 1)},
	0xED: {Name: "Wait for Silence"},
	0xEE: {Name: "Wait for Song End"},
	0xEF: {Name: colorCrash},

	0xF0: {Name: "Darken Screen", Layout: w(1)},
	0xF1: {Name: "Color Addition", Layout: w(1), dynamic: colorAddLayout},
	0xF2: {Name: "Fade Out"},
	0xF3: {Name: "Wait for Brighten End"},
	0xF4: {Name: "Shake Screen", Layout: w(1)},
	0xF5: {Name: colorCrash},
	0xF6: {Name: colorCrash},
	0xF7: {Name: colorCrash},
	0xF8: {Name: "Restore HP/MP"},
	0xF9: {Name: "Restore HP"},
	0xFA: {Name: "Restore MP"},
	0xFB: {Name: colorCrash},
	0xFC: {Name: colorCrash},
	0xFD: {Name: colorCrash},
	0xFE: {Name: "Unknown Geometry", Layout: w(1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1)},
	0xFF: {Name: "Mode 7 Scene", Layout: w(1), dynamic: mode7Layout},
}

func init() {
	for i := range table {
		table[i].Op = Opcode(i)
	}
}

// Lookup returns the definition of op.
func Lookup(op Opcode) Definition {
	return table[op]
}

// Name returns the human-readable name of op.
func Name(op Opcode) string {
	return table[op].Name
}

// String returns the opcode name.
func (op Opcode) String() string {
	return table[op].Name
}
