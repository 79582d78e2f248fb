package emu

// dmgShades is the default mapping from a 2-bit PPU shade index
// (0=lightest, 3=darkest) to RGB, a pale green-tinted ramp. compatShadeSets
// holds it at index 0 and one classic green-LCD tint at index 1 as an
// alternative; selecting one is a rendering
// preference, not a CGB palette register (spec's Non-goals exclude those).
var dmgShades = [4][3]byte{
	{0xE8, 0xF8, 0xD8},
	{0xA0, 0xC0, 0x98},
	{0x50, 0x78, 0x48},
	{0x10, 0x18, 0x10},
}

var compatShadeSets = [][4][3]byte{
	dmgShades,
	{ // classic green-backlit LCD
		{0x9B, 0xBC, 0x0F},
		{0x8B, 0xAC, 0x0F},
		{0x30, 0x62, 0x30},
		{0x0F, 0x38, 0x0F},
	},
}
