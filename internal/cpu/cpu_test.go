package cpu

import (
	"testing"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/bus"
)

func newCPUWithROM(code []byte) *CPU {
	rom := make([]byte, 0x8000)
	copy(rom, code)
	b := bus.New(rom)
	c := New(b)
	return c
}

func TestCPU_NopAndPC(t *testing.T) {
	c := newCPUWithROM([]byte{0x00}) // NOP
	if cycles := c.Step(); cycles != 4 {
		t.Fatalf("NOP cycles got %d want 4", cycles)
	}
	if c.PC != 1 {
		t.Fatalf("PC after NOP got %#04x want 0x0001", c.PC)
	}
}

func TestCPU_LD_A_d8_And_XOR_A(t *testing.T) {
	c := newCPUWithROM([]byte{0x3E, 0x12, 0xAF}) // LD A,0x12; XOR A
	c.Step()                                     // LD
	if c.A != 0x12 {
		t.Fatalf("A after LD got %02x want 12", c.A)
	}
	c.Step() // XOR A
	if c.A != 0x00 {
		t.Fatalf("A after XOR got %02x want 00", c.A)
	}
	if (c.F & 0x80) == 0 { // Z flag
		t.Fatalf("Z flag not set after XOR A")
	}
}

func TestCPU_LD_a16_A_and_LD_A_a16(t *testing.T) {
	// Program: LD A,0x77; LD (0xC000),A; LD A,0x00; LD A,(0xC000)
	prog := []byte{0x3E, 0x77, 0xEA, 0x00, 0xC0, 0x3E, 0x00, 0xFA, 0x00, 0xC0}
	c := newCPUWithROM(prog)
	c.Step() // LD A,77
	c.Step() // LD (C000),A
	if a := c.bus.Read(0xC000); a != 0x77 {
		t.Fatalf("WRAM at C000 got %02x want 77", a)
	}
	c.Step() // LD A,00
	c.Step() // LD A,(C000)
	if c.A != 0x77 {
		t.Fatalf("A after LD A,(C000) got %02x want 77", c.A)
	}
}

func TestCPU_JP_and_JR(t *testing.T) {
	// JP to 0x0010 then JR -2 to loop
	prog := []byte{0xC3, 0x10, 0x00} // at 0x0000: JP 0x0010
	// Fill until 0x0010 with NOPs
	rom := make([]byte, 0x8000)
	copy(rom, prog)
	for i := 0x0003; i < 0x0010; i++ {
		rom[i] = 0x00
	}
	// at 0x0010: JR -2 (0xFE), which will hop back to 0x0010 itself (infinite)
	rom[0x0010] = 0x18
	rom[0x0011] = 0xFE
	b := bus.New(rom)
	c := New(b)
	cycles := c.Step() // JP
	if cycles != 16 || c.PC != 0x0010 {
		t.Fatalf("JP cycles=%d PC=%#04x want cycles=16 PC=0x0010", cycles, c.PC)
	}
	pcBefore := c.PC
	c.Step()              // JR -2
	if c.PC != pcBefore { // stays at 0x0010
		t.Fatalf("JR -2 PC got %#04x want %#04x", c.PC, pcBefore)
	}
}

func TestCPU_INC_B_Flags(t *testing.T) {
	c := newCPUWithROM([]byte{0x04, 0x04}) // INC B twice
	c.B = 0x0F
	c.F = 0x10 // carry set initially
	c.Step()
	if c.B != 0x10 {
		t.Fatalf("INC B result got %02x want 10", c.B)
	}
	if (c.F & 0x20) == 0 { // H set
		t.Fatalf("INC B should set H flag")
	}
	if (c.F & 0x10) == 0 { // C preserved
		t.Fatalf("INC B should preserve C flag")
	}
	c.B = 0xFF
	c.Step()
	if c.B != 0x00 || (c.F&0x80) == 0 { // Z set
		t.Fatalf("INC B to 0 should set Z flag, B=%02x, F=%02x", c.B, c.F)
	}
}

func TestCPU_LD_16bit_and_LDH(t *testing.T) {
	// Program:
	// LD HL,0xC000; LD (HL),0x5A; LD A,0x00; LD A,(0xFF00+0x00); LD (0xFF00+1),A
	prog := []byte{
		0x21, 0x00, 0xC0, // LD HL, C000
		0x36, 0x5A,       // LD (HL), 5A
		0x3E, 0x00,       // LD A, 00
		0xF0, 0x00,       // LD A, (FF00+0)
		0xE0, 0x01,       // LD (FF00+1), A
	}
	c := newCPUWithROM(prog)
	// Set the joypad select bits so the FF00 read is deterministic
	c.Bus().Write(0xFF00, 0x20) // select dpad so read is deterministic
	c.Bus().Write(0xFF00, 0x30) // select none to keep 0x0F
	c.Bus().Write(0xFF80, 0xA7) // HRAM base

	c.Step(); c.Step(); c.Step(); c.Step(); c.Step()
	if v := c.Bus().Read(0xC000); v != 0x5A {
		t.Fatalf("WRAM C000 got %02x want 5A", v)
	}
	if v := c.Bus().Read(0xFF01); v != c.A {
		t.Fatalf("LDH (FF00+1),A expected write to FF01 with A=%02x got %02x", c.A, v)
	}
}

func TestCPU_InterruptDispatchCyclesAndVector(t *testing.T) {
	rom := make([]byte, 0x8000)
	b := bus.New(rom)
	c := New(b)
	c.IME = true
	b.Write(0xFFFF, 0x01) // enable VBlank
	b.Write(0xFF0F, 0x01) // VBlank pending
	c.PC = 0x1234
	c.SP = 0xFFFE

	cycles := c.Step()
	if cycles != 20 {
		t.Fatalf("interrupt dispatch cycles got %d want 20", cycles)
	}
	if c.PC != 0x0040 {
		t.Fatalf("PC after dispatch got %#04x want 0x0040", c.PC)
	}
	if c.IME {
		t.Fatalf("IME should be cleared on dispatch")
	}
	if got := b.Read(0xFF0F) & 0x01; got != 0 {
		t.Fatalf("VBlank IF bit should be acknowledged")
	}
	if ret := b.Read(0xFFFC); ret != 0x34 || b.Read(0xFFFD) != 0x12 {
		t.Fatalf("pushed return address wrong: lo=%02x hi=%02x", ret, b.Read(0xFFFD))
	}
}

func TestCPU_HaltBugRepeatsNextByte(t *testing.T) {
	// HALT with IME=0 and a pending enabled interrupt: PC fails to advance
	// after the next fetch, so the byte after HALT is consumed twice.
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0x76 // HALT
	rom[0x0001] = 0x3C // INC A
	b := bus.New(rom)
	c := New(b)
	c.IME = false
	b.Write(0xFFFF, 0x01)
	b.Write(0xFF0F, 0x01)

	c.Step() // HALT: bug triggers, doesn't actually halt
	if c.halted {
		t.Fatalf("HALT bug case should not set halted")
	}
	c.Step() // INC A, consumed once but PC doesn't advance
	if c.PC != 0x0001 {
		t.Fatalf("PC after bugged fetch got %#04x want 0x0001", c.PC)
	}
	if c.A != 0x01 {
		t.Fatalf("A after first INC got %02x want 01", c.A)
	}
	c.Step() // same INC A byte executes again
	if c.A != 0x02 {
		t.Fatalf("A after repeated INC got %02x want 02", c.A)
	}
	if c.PC != 0x0002 {
		t.Fatalf("PC after second fetch got %#04x want 0x0002", c.PC)
	}
}

func TestCPU_EIDelayedByOneInstruction(t *testing.T) {
	// With an interrupt already pending, the instruction after EI must
	// execute before the dispatch happens; EI followed by DI therefore
	// never services anything.
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0xFB // EI
	rom[0x0001] = 0x3C // INC A
	b := bus.New(rom)
	c := New(b)
	b.Write(0xFFFF, 0x01)
	b.Write(0xFF0F, 0x01)

	c.Step() // EI
	c.Step() // must be INC A, not the dispatch
	if c.A != 0x01 || c.PC != 0x0002 {
		t.Fatalf("instruction after EI should run before dispatch: A=%02x PC=%#04x", c.A, c.PC)
	}
	c.Step() // now the dispatch fires
	if c.PC != 0x0040 {
		t.Fatalf("expected VBlank vector after EI delay, PC=%#04x", c.PC)
	}

	rom2 := make([]byte, 0x8000)
	rom2[0x0000] = 0xFB // EI
	rom2[0x0001] = 0xF3 // DI
	rom2[0x0002] = 0x00 // NOP
	b2 := bus.New(rom2)
	c2 := New(b2)
	b2.Write(0xFFFF, 0x01)
	b2.Write(0xFF0F, 0x01)
	c2.Step() // EI
	c2.Step() // DI cancels before any dispatch window opens
	c2.Step() // NOP
	if c2.PC != 0x0003 || c2.IME {
		t.Fatalf("EI;DI must not service an interrupt: PC=%#04x IME=%v", c2.PC, c2.IME)
	}
}

func TestCPU_UnallocatedOpcodeLocksUp(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0xD3 // unallocated
	b := bus.New(rom)
	c := New(b)
	c.Step()
	if !c.locked {
		t.Fatalf("expected CPU to lock up on unallocated opcode")
	}
	pc := c.PC
	c.Step()
	if c.PC != pc || !c.locked {
		t.Fatalf("locked CPU should not resume fetching")
	}
}

func TestCPU_DAA_AfterAddition(t *testing.T) {
	c := newCPUWithROM([]byte{0x27}) // DAA
	c.A = 0x45
	c.F = 0 // 0x1B + 0x2A = 0x45, which carries out of bit 3 (H set below)
	// 0x45 isn't a valid BCD-broken value by itself; exercise the half-carry
	// correction path directly as an add of two BCD bytes would leave it.
	c.F = flagH
	c.Step()
	if c.A != 0x4B {
		t.Fatalf("DAA with H set got %02x want 4B", c.A)
	}
}

func TestCPU_CALL_RET(t *testing.T) {
	// 0000: CALL 0005; 0003: NOP; NOP; 0005: RET
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0xCD
	rom[0x0001] = 0x05
	rom[0x0002] = 0x00
	for i := 0x0003; i < 0x0005; i++ { rom[i] = 0x00 }
	rom[0x0005] = 0xC9 // RET
	b := bus.New(rom)
	c := New(b)
	c.Step() // CALL
	if c.PC != 0x0005 {
		t.Fatalf("PC after CALL got %04x want 0005", c.PC)
	}
	retCycles := c.Step()
	if c.PC != 0x0003 || retCycles != 16 {
		t.Fatalf("RET did not return to 0003; PC=%04x cyc=%d", c.PC, retCycles)
	}
}

