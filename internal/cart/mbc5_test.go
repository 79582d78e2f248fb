package cart

import "testing"

func TestMBC5_NineBitROMBanking(t *testing.T) {
	// 8MB ROM = 512 banks; tag the first byte of each bank with its number.
	rom := make([]byte, 512*0x4000)
	for bank := 0; bank < 512; bank++ {
		rom[bank*0x4000] = byte(bank)
		rom[bank*0x4000+1] = byte(bank >> 8)
	}
	m := NewMBC5(rom, 0)

	// Low byte at 0x2000-0x2FFF, bit 8 at 0x3000-0x3FFF
	m.Write(0x2000, 0x42)
	if got := m.Read(0x4000); got != 0x42 {
		t.Fatalf("bank 0x042 read got %02X want 42", got)
	}
	m.Write(0x3000, 0x01)
	if lo, hi := m.Read(0x4000), m.Read(0x4001); lo != 0x42 || hi != 0x01 {
		t.Fatalf("bank 0x142 read got lo=%02X hi=%02X want 42/01", lo, hi)
	}
}

func TestMBC5_BankZeroSelectable(t *testing.T) {
	// Unlike MBC1/MBC3, writing 0 selects bank 0 in the switchable region.
	rom := make([]byte, 4*0x4000)
	rom[0x0000] = 0xA0 // bank 0
	rom[0x4000] = 0xA1 // bank 1
	m := NewMBC5(rom, 0)

	if got := m.Read(0x4000); got != 0xA1 {
		t.Fatalf("default bank read got %02X want A1", got)
	}
	m.Write(0x2000, 0x00)
	if got := m.Read(0x4000); got != 0xA0 {
		t.Fatalf("bank 0 should be selectable on MBC5: got %02X want A0", got)
	}
}

func TestMBC5_RAMBankingAndEnable(t *testing.T) {
	rom := make([]byte, 4*0x4000)
	m := NewMBC5(rom, 128*1024) // 16 RAM banks

	// Disabled RAM reads 0xFF and drops writes.
	m.Write(0xA000, 0x11)
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("disabled RAM read got %02X want FF", got)
	}

	m.Write(0x0000, 0x0A) // enable
	m.Write(0x4000, 0x07) // RAM bank 7
	m.Write(0xA000, 0x77)
	if got := m.Read(0xA000); got != 0x77 {
		t.Fatalf("RAM bank 7 RW failed: got %02X", got)
	}
	m.Write(0x4000, 0x00)
	if got := m.Read(0xA000); got == 0x77 {
		t.Fatalf("bank 0 should not alias bank 7")
	}
}
