// Package cpu implements the Sharp LR35902 instruction set with exact
// bus-cycle accounting: every memory access and every internal-only delay
// charges the bus directly, so the PPU/timer/serial/DMA peripherals observe
// the same mid-instruction timing real hardware would produce.
package cpu

import (
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/bus"
)

// Mode mirrors the CPU's externally-observable run mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeHalt
	ModeHaltBug
	ModeStop
)

// unallocatedOpcodes have no defined behavior on real hardware; the chip
// locks up executing any of them.
var unallocatedOpcodes = map[byte]bool{
	0xD3: true, 0xDB: true, 0xDD: true, 0xE3: true, 0xE4: true,
	0xEB: true, 0xEC: true, 0xED: true, 0xF4: true, 0xFC: true, 0xFD: true,
}

// CPU implements the SM83 core: registers, flags, interrupt dispatch, and
// the full opcode table including the CB-prefixed bit-manipulation group.
type CPU struct {
	A, F byte
	B, C byte
	D, E byte
	H, L byte

	SP uint16
	PC uint16

	IME        bool
	imePending bool // EI's enable takes effect after the instruction following it

	halted  bool
	haltBug bool // next fetch reads without advancing PC
	stopped bool
	locked  bool // hit an unallocated opcode; only reset escapes

	cycleAccum int // T-cycles charged so far in the current Step call

	bus *bus.Bus
}

// New creates a CPU with PC at 0x0000, as if about to run a boot ROM.
func New(b *bus.Bus) *CPU {
	return &CPU{bus: b, SP: 0xFFFE, PC: 0x0000}
}

func (c *CPU) SetPC(pc uint16)  { c.PC = pc }
func (c *CPU) Bus() *bus.Bus    { return c.bus }
func (c *CPU) Halted() bool     { return c.halted }
func (c *CPU) Locked() bool     { return c.locked }
func (c *CPU) IMEEnabled() bool { return c.IME }

// Mode reports the CPU's current run mode for presenter/debug use.
func (c *CPU) Mode() Mode {
	switch {
	case c.haltBug:
		return ModeHaltBug
	case c.stopped:
		return ModeStop
	case c.halted:
		return ModeHalt
	default:
		return ModeNormal
	}
}

// ResetNoBoot sets registers to typical DMG post-boot state, for running
// without a boot ROM attached.
func (c *CPU) ResetNoBoot() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.PC = 0x0100
	c.IME = false
	c.halted = false
	c.haltBug = false
	c.stopped = false
	c.locked = false
	c.imePending = false
}

const (
	flagZ byte = 1 << 7
	flagN byte = 1 << 6
	flagH byte = 1 << 5
	flagC byte = 1 << 4
)

func (c *CPU) setZNHC(z, n, h, carry bool) {
	var f byte
	if z {
		f |= flagZ
	}
	if n {
		f |= flagN
	}
	if h {
		f |= flagH
	}
	if carry {
		f |= flagC
	}
	c.F = f
}

// --- bus primitives: every call here is the unit of cycle accounting ---

func (c *CPU) read8(addr uint16) byte {
	v := c.bus.Read(addr)
	c.tick4()
	return v
}

func (c *CPU) write8(addr uint16, v byte) {
	c.bus.Write(addr, v)
	c.tick4()
}

// internal charges one machine cycle with no bus transaction, for the
// "free" M-cycles 16-bit ALU ops and branches spend over their 8-bit
// equivalents.
func (c *CPU) internal() { c.tick4() }

func (c *CPU) tick4() {
	c.bus.Tick(4)
	c.cycleAccum += 4
}

func (c *CPU) fetch8() byte {
	if c.haltBug {
		c.haltBug = false
		return c.read8(c.PC) // PC intentionally not advanced: repeats this byte
	}
	v := c.read8(c.PC)
	c.PC++
	return v
}

func (c *CPU) fetch16() uint16 {
	lo := uint16(c.fetch8())
	hi := uint16(c.fetch8())
	return lo | (hi << 8)
}

func (c *CPU) getAF() uint16  { return uint16(c.A)<<8 | uint16(c.F&0xF0) }
func (c *CPU) setAF(v uint16) { c.A = byte(v >> 8); c.F = byte(v) & 0xF0 }
func (c *CPU) getBC() uint16  { return uint16(c.B)<<8 | uint16(c.C) }
func (c *CPU) setBC(v uint16) { c.B = byte(v >> 8); c.C = byte(v) }
func (c *CPU) getDE() uint16  { return uint16(c.D)<<8 | uint16(c.E) }
func (c *CPU) setDE(v uint16) { c.D = byte(v >> 8); c.E = byte(v) }
func (c *CPU) getHL() uint16  { return uint16(c.H)<<8 | uint16(c.L) }
func (c *CPU) setHL(v uint16) { c.H = byte(v >> 8); c.L = byte(v) }

// push16 spends two M-cycles, high byte first, matching real PUSH/CALL/RST
// byte ordering (SP always points at the low byte after a push).
func (c *CPU) push16(v uint16) {
	c.SP--
	c.write8(c.SP, byte(v>>8))
	c.SP--
	c.write8(c.SP, byte(v))
}

func (c *CPU) pop16() uint16 {
	lo := uint16(c.read8(c.SP))
	c.SP++
	hi := uint16(c.read8(c.SP))
	c.SP++
	return lo | (hi << 8)
}

// --- 8-bit ALU helpers, shared by register/immediate/(HL) variants ---

func (c *CPU) add8(a, b byte) (res byte, z, n, h, cy bool) {
	r := uint16(a) + uint16(b)
	res = byte(r)
	z = res == 0
	h = ((a & 0x0F) + (b & 0x0F)) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) adc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := uint16(a) + uint16(b) + uint16(ci)
	res = byte(r)
	z = res == 0
	h = ((a & 0x0F) + (b & 0x0F) + ci) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) sub8(a, b byte) (res byte, z, n, h, cy bool) {
	r := int16(a) - int16(b)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < (b & 0x0F)
	cy = int16(a) < int16(b)
	return
}

func (c *CPU) sbc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	full := int16(a) - int16(b) - int16(ci)
	res = byte(full)
	z = res == 0
	n = true
	h = (int16(a&0x0F) - int16(b&0x0F) - int16(ci)) < 0
	cy = full < 0
	return
}

func (c *CPU) and8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a & b
	z = res == 0
	h = true
	return
}

func (c *CPU) xor8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a ^ b
	z = res == 0
	return
}

func (c *CPU) or8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a | b
	z = res == 0
	return
}

func (c *CPU) cp8(a, b byte) (z, n, h, cy bool) {
	_, z, n, h, cy = c.sub8(a, b)
	return
}

// regGet/regSet implement the 3-bit register index used by both the main
// opcode table (bits 0-2 / 3-5) and the CB-prefixed group: 0-5=B,C,D,E,H,L,
// 6=(HL), 7=A.
func (c *CPU) regGet(idx byte) byte {
	switch idx {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return c.read8(c.getHL())
	default:
		return c.A
	}
}

func (c *CPU) regSet(idx byte, v byte) {
	switch idx {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	case 6:
		c.write8(c.getHL(), v)
	default:
		c.A = v
	}
}

// serviceInterrupt dispatches the highest-priority pending, enabled
// interrupt: 2 internal M-cycles, push PC (high then low), 1 internal
// M-cycle to load the vector. Returns false if nothing was pending.
func (c *CPU) serviceInterrupt() bool {
	ie := c.bus.InterruptEnable()
	ifReg := c.bus.InterruptFlags()
	pending := ie & ifReg
	if pending == 0 {
		return false
	}
	var bit uint
	for bit = 0; bit < 5; bit++ {
		if pending&(1<<bit) != 0 {
			break
		}
	}
	c.internal()
	c.internal()
	c.IME = false
	c.push16(c.PC)
	c.bus.SetInterruptFlags(ifReg &^ (1 << bit))
	c.PC = 0x40 + uint16(bit)*8
	c.internal()
	return true
}

// Step executes one instruction, or dispatches one pending interrupt, and
// returns the number of T-cycles it charged to the bus.
func (c *CPU) Step() int {
	c.cycleAccum = 0

	if c.locked {
		c.internal()
		return c.cycleAccum
	}

	if c.halted {
		// A pending EI still takes effect inside Halt, or the CPU could
		// sleep forever with IME stuck false after EI; HALT.
		if c.imePending {
			c.IME = true
			c.imePending = false
		}
		if c.IME {
			if c.serviceInterrupt() {
				c.halted = false
				return c.cycleAccum
			}
		}
		if c.bus.InterruptEnable()&c.bus.InterruptFlags() != 0 {
			c.halted = false
		} else {
			c.internal()
			return c.cycleAccum
		}
	}

	if c.stopped {
		ifReg := c.bus.InterruptFlags()
		if ifReg&0x10 != 0 { // any joypad IF bit wakes Stop, masked or not
			c.stopped = false
		} else {
			c.internal()
			return c.cycleAccum
		}
	}

	if c.IME {
		if c.serviceInterrupt() {
			return c.cycleAccum
		}
	}

	// EI's enable lands here, after the dispatch check above, so no
	// interrupt can be serviced between EI and the instruction after it.
	if c.imePending {
		c.IME = true
		c.imePending = false
	}

	op := c.fetch8()
	if unallocatedOpcodes[op] {
		c.locked = true
		return c.cycleAccum
	}
	c.execute(op)
	return c.cycleAccum
}

func (c *CPU) execute(op byte) {
	switch op {
	case 0x00: // NOP

	case 0x10: // STOP
		c.PC++ // skip the padding byte without charging a second bus access
		c.stopped = true

	// LD r,d8
	case 0x06:
		c.B = c.fetch8()
	case 0x0E:
		c.C = c.fetch8()
	case 0x16:
		c.D = c.fetch8()
	case 0x1E:
		c.E = c.fetch8()
	case 0x26:
		c.H = c.fetch8()
	case 0x2E:
		c.L = c.fetch8()
	case 0x3E:
		c.A = c.fetch8()

	case 0x76: // HALT
		if !c.IME && c.bus.InterruptEnable()&c.bus.InterruptFlags() != 0 {
			c.haltBug = true
		} else {
			c.halted = true
		}

	// LD r,r' and LD (HL),r / LD r,(HL), 0x40-0x7F except 0x76 (HALT)
	case 0x40, 0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47,
		0x48, 0x49, 0x4A, 0x4B, 0x4C, 0x4D, 0x4E, 0x4F,
		0x50, 0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57,
		0x58, 0x59, 0x5A, 0x5B, 0x5C, 0x5D, 0x5E, 0x5F,
		0x60, 0x61, 0x62, 0x63, 0x64, 0x65, 0x66, 0x67,
		0x68, 0x69, 0x6A, 0x6B, 0x6C, 0x6D, 0x6E, 0x6F,
		0x70, 0x71, 0x72, 0x73, 0x74, 0x75, 0x77,
		0x78, 0x79, 0x7A, 0x7B, 0x7C, 0x7D, 0x7E, 0x7F:
		d := (op >> 3) & 7
		s := op & 7
		c.regSet(d, c.regGet(s))

	// 16-bit loads
	case 0x01:
		c.setBC(c.fetch16())
	case 0x11:
		c.setDE(c.fetch16())
	case 0x21:
		c.setHL(c.fetch16())
	case 0x31:
		c.SP = c.fetch16()
	case 0x08: // LD (a16),SP
		addr := c.fetch16()
		c.write8(addr, byte(c.SP))
		c.write8(addr+1, byte(c.SP>>8))

	case 0x36: // LD (HL),d8
		v := c.fetch8()
		c.write8(c.getHL(), v)

	case 0x02:
		c.write8(c.getBC(), c.A)
	case 0x12:
		c.write8(c.getDE(), c.A)
	case 0x0A:
		c.A = c.read8(c.getBC())
	case 0x1A:
		c.A = c.read8(c.getDE())

	case 0x22: // LD (HL+),A
		hl := c.getHL()
		c.write8(hl, c.A)
		c.setHL(hl + 1)
	case 0x2A: // LD A,(HL+)
		hl := c.getHL()
		c.A = c.read8(hl)
		c.setHL(hl + 1)
	case 0x32: // LD (HL-),A
		hl := c.getHL()
		c.write8(hl, c.A)
		c.setHL(hl - 1)
	case 0x3A: // LD A,(HL-)
		hl := c.getHL()
		c.A = c.read8(hl)
		c.setHL(hl - 1)

	case 0xE0: // LDH (a8),A
		n := uint16(c.fetch8())
		c.write8(0xFF00+n, c.A)
	case 0xF0: // LDH A,(a8)
		n := uint16(c.fetch8())
		c.A = c.read8(0xFF00 + n)
	case 0xE2: // LD (C),A
		c.write8(0xFF00+uint16(c.C), c.A)
	case 0xF2: // LD A,(C)
		c.A = c.read8(0xFF00 + uint16(c.C))

	case 0x07: // RLCA
		cval := (c.A >> 7) & 1
		c.A = (c.A << 1) | cval
		c.setZNHC(false, false, false, cval == 1)
	case 0x0F: // RRCA
		cval := c.A & 1
		c.A = (c.A >> 1) | (cval << 7)
		c.setZNHC(false, false, false, cval == 1)
	case 0x17: // RLA
		cval := (c.A >> 7) & 1
		carry := byte(0)
		if c.F&flagC != 0 {
			carry = 1
		}
		c.A = (c.A << 1) | carry
		c.setZNHC(false, false, false, cval == 1)
	case 0x1F: // RRA
		cval := c.A & 1
		carry := byte(0)
		if c.F&flagC != 0 {
			carry = 1
		}
		c.A = (c.A >> 1) | (carry << 7)
		c.setZNHC(false, false, false, cval == 1)

	case 0x27: // DAA
		a := c.A
		cf := c.F&flagC != 0
		hf := c.F&flagH != 0
		nf := c.F&flagN != 0
		if !nf {
			if cf || a > 0x99 {
				a += 0x60
				cf = true
			}
			if hf || (a&0x0F) > 0x09 {
				a += 0x06
			}
		} else {
			if cf {
				a -= 0x60
			}
			if hf {
				a -= 0x06
			}
		}
		c.A = a
		c.setZNHC(c.A == 0, nf, false, cf)
	case 0x2F: // CPL
		c.A = ^c.A
		c.F = (c.F & (flagZ | flagC)) | flagN | flagH
	case 0x37: // SCF
		c.F = (c.F & flagZ) | flagC
	case 0x3F: // CCF
		cf := c.F&flagC != 0
		c.setZNHC(c.F&flagZ != 0, false, false, !cf)

	// INC/DEC r
	case 0x04, 0x0C, 0x14, 0x1C, 0x24, 0x2C, 0x3C:
		r := (op >> 3) & 7
		old := c.regGet(r)
		v := old + 1
		c.regSet(r, v)
		c.setZNHC(v == 0, false, (old&0x0F) == 0x0F, c.F&flagC != 0)
	case 0x34: // INC (HL)
		addr := c.getHL()
		old := c.read8(addr)
		v := old + 1
		c.write8(addr, v)
		c.setZNHC(v == 0, false, (old&0x0F) == 0x0F, c.F&flagC != 0)
	case 0x05, 0x0D, 0x15, 0x1D, 0x25, 0x2D, 0x3D:
		r := (op >> 3) & 7
		old := c.regGet(r)
		v := old - 1
		c.regSet(r, v)
		c.setZNHC(v == 0, true, (old&0x0F) == 0x00, c.F&flagC != 0)
	case 0x35: // DEC (HL)
		addr := c.getHL()
		old := c.read8(addr)
		v := old - 1
		c.write8(addr, v)
		c.setZNHC(v == 0, true, (old&0x0F) == 0x00, c.F&flagC != 0)

	// ALU A,r
	case 0x80, 0x81, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87:
		r, z, n, h, cy := c.add8(c.A, c.regGet(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0x88, 0x89, 0x8A, 0x8B, 0x8C, 0x8D, 0x8E, 0x8F:
		r, z, n, h, cy := c.adc8(c.A, c.regGet(op&7), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0x90, 0x91, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97:
		r, z, n, h, cy := c.sub8(c.A, c.regGet(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0x98, 0x99, 0x9A, 0x9B, 0x9C, 0x9D, 0x9E, 0x9F:
		r, z, n, h, cy := c.sbc8(c.A, c.regGet(op&7), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6, 0xA7:
		r, z, n, h, cy := c.and8(c.A, c.regGet(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xA8, 0xA9, 0xAA, 0xAB, 0xAC, 0xAD, 0xAE, 0xAF:
		r, z, n, h, cy := c.xor8(c.A, c.regGet(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5, 0xB6, 0xB7:
		r, z, n, h, cy := c.or8(c.A, c.regGet(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xB8, 0xB9, 0xBA, 0xBB, 0xBC, 0xBD, 0xBE, 0xBF:
		z, n, h, cy := c.cp8(c.A, c.regGet(op&7))
		c.setZNHC(z, n, h, cy)

	// ALU A,d8
	case 0xC6:
		r, z, n, h, cy := c.add8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xCE:
		r, z, n, h, cy := c.adc8(c.A, c.fetch8(), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xD6:
		r, z, n, h, cy := c.sub8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xDE:
		r, z, n, h, cy := c.sbc8(c.A, c.fetch8(), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xE6:
		r, z, n, h, cy := c.and8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xEE:
		r, z, n, h, cy := c.xor8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xF6:
		r, z, n, h, cy := c.or8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
	case 0xFE:
		z, n, h, cy := c.cp8(c.A, c.fetch8())
		c.setZNHC(z, n, h, cy)

	case 0xEA: // LD (a16),A
		addr := c.fetch16()
		c.write8(addr, c.A)
	case 0xFA: // LD A,(a16)
		addr := c.fetch16()
		c.A = c.read8(addr)

	case 0xC3: // JP a16
		addr := c.fetch16()
		c.PC = addr
		c.internal()
	case 0xE9: // JP (HL): copies the register, no extra internal cycle
		c.PC = c.getHL()
	case 0x18: // JR r8
		off := int8(c.fetch8())
		c.PC = uint16(int32(c.PC) + int32(off))
		c.internal()

	case 0x20, 0x28, 0x30, 0x38: // JR cc,r8
		off := int8(c.fetch8())
		if c.condTaken(op) {
			c.PC = uint16(int32(c.PC) + int32(off))
			c.internal()
		}

	case 0xCD: // CALL a16
		addr := c.fetch16()
		c.internal()
		c.push16(c.PC)
		c.PC = addr
	case 0xC9: // RET
		c.PC = c.pop16()
		c.internal()
	case 0xD9: // RETI
		c.PC = c.pop16()
		c.internal()
		c.IME = true

	case 0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF: // RST
		c.internal()
		c.push16(c.PC)
		c.PC = uint16(op & 0x38)

	case 0xC4, 0xCC, 0xD4, 0xDC: // CALL cc,a16
		addr := c.fetch16()
		if c.condTaken(op) {
			c.internal()
			c.push16(c.PC)
			c.PC = addr
		}

	case 0xC0, 0xC8, 0xD0, 0xD8: // RET cc
		c.internal()
		if c.condTaken(op) {
			c.PC = c.pop16()
			c.internal()
		}

	case 0xC2, 0xCA, 0xD2, 0xDA: // JP cc,a16
		addr := c.fetch16()
		if c.condTaken(op) {
			c.PC = addr
			c.internal()
		}

	// 16-bit INC/DEC
	case 0x03:
		c.setBC(c.getBC() + 1)
		c.internal()
	case 0x13:
		c.setDE(c.getDE() + 1)
		c.internal()
	case 0x23:
		c.setHL(c.getHL() + 1)
		c.internal()
	case 0x33:
		c.SP++
		c.internal()
	case 0x0B:
		c.setBC(c.getBC() - 1)
		c.internal()
	case 0x1B:
		c.setDE(c.getDE() - 1)
		c.internal()
	case 0x2B:
		c.setHL(c.getHL() - 1)
		c.internal()
	case 0x3B:
		c.SP--
		c.internal()

	case 0x09, 0x19, 0x29, 0x39: // ADD HL,rr
		var rr uint16
		switch op {
		case 0x09:
			rr = c.getBC()
		case 0x19:
			rr = c.getDE()
		case 0x29:
			rr = c.getHL()
		case 0x39:
			rr = c.SP
		}
		hl := c.getHL()
		r := uint32(hl) + uint32(rr)
		h := ((hl & 0x0FFF) + (rr & 0x0FFF)) > 0x0FFF
		c.setHL(uint16(r))
		c.setZNHC(c.F&flagZ != 0, false, h, r > 0xFFFF)
		c.internal()

	case 0xF8: // LD HL,SP+r8
		off := int8(c.fetch8())
		low := byte(c.SP & 0xFF)
		_, _, _, h, cy := c.add8(low, byte(off))
		c.setHL(uint16(int32(int16(c.SP)) + int32(off)))
		c.setZNHC(false, false, h, cy)
		c.internal()
	case 0xF9: // LD SP,HL
		c.SP = c.getHL()
		c.internal()
	case 0xE8: // ADD SP,r8
		off := int8(c.fetch8())
		low := byte(c.SP & 0xFF)
		_, _, _, h, cy := c.add8(low, byte(off))
		c.SP = uint16(int32(int16(c.SP)) + int32(off))
		c.setZNHC(false, false, h, cy)
		c.internal()
		c.internal()

	case 0xF3: // DI
		c.IME = false
		c.imePending = false
	case 0xFB: // EI: enables IME after the instruction following this one
		c.imePending = true

	case 0xCB:
		c.executeCB(c.fetch8())

	case 0xF5: // PUSH AF
		c.internal()
		c.push16(c.getAF())
	case 0xC5: // PUSH BC
		c.internal()
		c.push16(c.getBC())
	case 0xD5: // PUSH DE
		c.internal()
		c.push16(c.getDE())
	case 0xE5: // PUSH HL
		c.internal()
		c.push16(c.getHL())
	case 0xF1: // POP AF
		c.setAF(c.pop16())
	case 0xC1: // POP BC
		c.setBC(c.pop16())
	case 0xD1: // POP DE
		c.setDE(c.pop16())
	case 0xE1: // POP HL
		c.setHL(c.pop16())
	}
}

// condTaken evaluates the cc field (bits 3-4) shared by JR/JP/CALL/RET cc.
func (c *CPU) condTaken(op byte) bool {
	switch (op >> 3) & 3 {
	case 0:
		return c.F&flagZ == 0 // NZ
	case 1:
		return c.F&flagZ != 0 // Z
	case 2:
		return c.F&flagC == 0 // NC
	default:
		return c.F&flagC != 0 // C
	}
}

func (c *CPU) executeCB(cb byte) {
	reg := cb & 7
	opg := (cb >> 6) & 3
	y := (cb >> 3) & 7

	switch opg {
	case 0: // rotate/shift/swap
		v := c.regGet(reg)
		var cflag byte
		switch y {
		case 0: // RLC
			cflag = (v >> 7) & 1
			v = (v << 1) | cflag
		case 1: // RRC
			cflag = v & 1
			v = (v >> 1) | (cflag << 7)
		case 2: // RL
			cflag = (v >> 7) & 1
			cin := byte(0)
			if c.F&flagC != 0 {
				cin = 1
			}
			v = (v << 1) | cin
		case 3: // RR
			cflag = v & 1
			cin := byte(0)
			if c.F&flagC != 0 {
				cin = 1
			}
			v = (v >> 1) | (cin << 7)
		case 4: // SLA
			cflag = (v >> 7) & 1
			v <<= 1
		case 5: // SRA
			cflag = v & 1
			v = (v >> 1) | (v & 0x80)
		case 6: // SWAP
			v = (v << 4) | (v >> 4)
		case 7: // SRL
			cflag = v & 1
			v >>= 1
		}
		c.regSet(reg, v)
		if y == 6 {
			c.setZNHC(v == 0, false, false, false)
		} else {
			c.setZNHC(v == 0, false, false, cflag == 1)
		}
	case 1: // BIT y,r
		v := c.regGet(reg)
		bit := (v >> y) & 1
		c.F = (c.F & flagC) | flagH
		if bit == 0 {
			c.F |= flagZ
		}
	case 2: // RES y,r
		c.regSet(reg, c.regGet(reg)&^(1<<y))
	case 3: // SET y,r
		c.regSet(reg, c.regGet(reg)|(1<<y))
	}
}
