// Package emu wires the CPU, bus, and cartridge into a single schedulable
// machine: the scheduler thread described in spec §5 that owns every
// component and advances the world by calling CPU.Step in a loop until a
// frame is ready.
package emu

import (
	"io"
	"os"
	"path/filepath"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/bus"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cpu"
)

// Buttons mirrors the two 4-bit joypad banks as booleans for the presenter
// side; SetButtons packs these into the bus's active-high Joyp* mask.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.Right {
		m |= bus.JoypRight
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Start {
		m |= bus.JoypStart
	}
	return m
}

// Machine owns the bus and CPU for one emulation session and exposes the
// coarse-grained, presenter-facing operations: load a cartridge, step a
// frame, read the framebuffer, and apply input. Nothing outside this
// package reaches into the bus or CPU directly, matching the "CPU step
// owns an exclusive borrow of the world" redesign in spec §9.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	fb [160 * 144 * 4]byte // RGBA, written by render()

	romPath string
	romHdr  *cart.Header

	bootROM []byte
}

// New creates a Machine with no cartridge loaded; LoadCartridge or
// LoadROMFromFile must be called before stepping.
func New(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// SetBootROM stages a 256-byte DMG boot ROM to be installed on the next
// cartridge load (the bus is recreated per-cartridge, so the boot ROM is
// cached here and re-applied).
func (m *Machine) SetBootROM(data []byte) {
	if len(data) < 0x100 {
		return
	}
	m.bootROM = append([]byte(nil), data[:0x100]...)
}

// LoadCartridge builds a fresh Bus and CPU around the given ROM image. When
// no boot ROM is attached (or was previously staged via SetBootROM) the CPU
// is initialized directly to the post-boot register state from spec §3.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	if len(boot) >= 0x100 {
		m.bootROM = append([]byte(nil), boot[:0x100]...)
	}
	if len(rom) >= 0x150 {
		if h, err := cart.ParseHeader(rom); err == nil {
			m.romHdr = h
		}
	} else {
		m.romHdr = nil
	}

	m.bus = bus.New(rom)
	m.cpu = cpu.New(m.bus)

	if m.bootROM != nil {
		m.bus.SetBootROM(m.bootROM)
		m.cpu.SetPC(0x0000)
	} else {
		m.cpu.ResetNoBoot()
	}
	return nil
}

// LoadROMFromFile reads a ROM from disk and loads it, recording the path so
// ROMPath/ROMTitle and battery-RAM save-file derivation have something to
// key off of.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.LoadCartridge(data, m.bootROM); err != nil {
		return err
	}
	if abs, err := filepath.Abs(path); err == nil {
		m.romPath = abs
	} else {
		m.romPath = path
	}
	return nil
}

// ROMPath returns the absolute path LoadROMFromFile loaded, or "" if the
// machine was loaded via LoadCartridge (bytes with no backing file) or not
// loaded at all.
func (m *Machine) ROMPath() string { return m.romPath }

// ROMTitle returns the cartridge header title, or "" if no header was
// parsed (ROM too small, or nothing loaded yet).
func (m *Machine) ROMTitle() string {
	if m.romHdr == nil {
		return ""
	}
	return m.romHdr.Title
}

// SetSerialWriter routes completed serial bytes to w (test harnesses and
// cpurunner use this to watch for blargg/Mooneye pass/fail markers).
func (m *Machine) SetSerialWriter(w io.Writer) {
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// SetButtons applies the host's current button state, delivered once per
// frame per spec §5's single-producer/single-consumer input model.
func (m *Machine) SetButtons(b Buttons) {
	if m.bus != nil {
		m.bus.SetJoypadState(b.mask())
	}
}

// LoadBattery restores persisted cartridge RAM (and, for MBC3, RTC state)
// from a prior SaveBattery call. Returns false if the cartridge has no
// battery-backed RAM to load into.
func (m *Machine) LoadBattery(data []byte) bool {
	if m.bus == nil {
		return false
	}
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok || bb.SaveRAM() == nil {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// SaveBattery returns the cartridge's battery-backed RAM bytes for
// persistence to a .sav file. Returns ok=false if the cartridge has no
// battery RAM.
func (m *Machine) SaveBattery() ([]byte, bool) {
	if m.bus == nil {
		return nil, false
	}
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	data := bb.SaveRAM()
	if data == nil {
		return nil, false
	}
	return data, true
}

// stepUntilFrame runs CPU.Step in a loop — the scheduler loop of spec §5 —
// until the PPU's frame_ready latch fires, then clears it. StepFrame runs
// the same loop; these two are the only places time is advanced. CPU.Step
// internally ticks the bus (and therefore timer/serial/DMA/PPU) for every
// machine cycle it charges.
func (m *Machine) stepUntilFrame() {
	if m.cpu == nil || m.bus == nil {
		return
	}
	p := m.bus.PPU()
	for !p.FrameReady() {
		m.cpu.Step()
	}
	p.Frame() // consumes the latch
}

// StepFrame advances emulation by exactly one 70,224-T-cycle frame and
// blits the result into the RGBA framebuffer returned by Framebuffer.
func (m *Machine) StepFrame() {
	if m.cpu == nil || m.bus == nil {
		return
	}
	p := m.bus.PPU()
	for !p.FrameReady() {
		m.cpu.Step()
	}
	m.render(p.Frame())
}

// StepFrameNoRender advances one frame without paying the shade-to-RGBA
// blit cost, for conformance-ROM harnesses that only watch serial output.
func (m *Machine) StepFrameNoRender() { m.stepUntilFrame() }

// render converts the PPU's 2-bit monochrome shade buffer into the RGBA
// framebuffer a host presenter can blit directly.
func (m *Machine) render(frame [144][160]byte) {
	shades := dmgShades
	if m.cfg.CompatPalette >= 0 && m.cfg.CompatPalette < len(compatShadeSets) {
		shades = compatShadeSets[m.cfg.CompatPalette]
	}
	for y := 0; y < 144; y++ {
		for x := 0; x < 160; x++ {
			c := shades[frame[y][x]&0x03]
			i := (y*160 + x) * 4
			m.fb[i+0] = c[0]
			m.fb[i+1] = c[1]
			m.fb[i+2] = c[2]
			m.fb[i+3] = 0xFF
		}
	}
}

// Framebuffer returns the current RGBA pixel buffer (160*144*4 bytes). The
// returned slice aliases Machine's internal storage; per spec §5 a
// presenter crossing a thread boundary must clone or copy it.
func (m *Machine) Framebuffer() []byte { return m.fb[:] }

// CPULocked reports whether the CPU executed an unallocated opcode and
// locked up (spec §7's only fatal runtime condition).
func (m *Machine) CPULocked() bool { return m.cpu != nil && m.cpu.Locked() }

// ResetPostBoot reinitializes the CPU to the standard post-boot register
// state (spec §3) without touching cartridge RAM/banking state.
func (m *Machine) ResetPostBoot() {
	if m.cpu != nil {
		m.cpu.ResetNoBoot()
	}
}

// ResetWithBoot reinitializes the CPU to run from the staged boot ROM at
// PC=0x0000, if one was attached via SetBootROM; otherwise it behaves like
// ResetPostBoot.
func (m *Machine) ResetWithBoot() {
	if m.cpu == nil {
		return
	}
	if m.bootROM != nil && m.bus != nil {
		m.bus.SetBootROM(m.bootROM)
		m.cpu = cpu.New(m.bus)
		m.cpu.SetPC(0x0000)
	} else {
		m.cpu.ResetNoBoot()
	}
}
