// Package bus wires the CPU-visible 16-bit address space to the cartridge,
// work/high RAM, PPU, and the timer/serial/joypad/DMA/interrupt peripherals.
package bus

import (
	"io"
	"os"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/ppu"
)

// Bus routes every CPU read/write to the component that owns the address.
type Bus struct {
	cart cart.Cartridge

	wram [0x2000]byte // 0xC000-0xDFFF, echoed at 0xE000-0xFDFF
	hram [0x7F]byte   // 0xFF80-0xFFFE

	ppu *ppu.PPU

	ie    byte // 0xFFFF
	ifReg byte // 0xFF0F, lower 5 bits used

	timer  timerState
	serial serialState
	joypad joypadState
	dma    dmaState

	bootROM     []byte
	bootEnabled bool

	debugTimer bool
}

// New constructs a Bus around a ROM-only or auto-detected cartridge.
func New(rom []byte) *Bus {
	return NewWithCartridge(cart.NewCartridge(rom))
}

// NewWithCartridge wires a provided cartridge implementation (used by tests
// that want a specific MBC without going through header auto-detection).
func NewWithCartridge(c cart.Cartridge) *Bus {
	b := &Bus{cart: c}
	b.ppu = ppu.New(func(bit int) { b.requestInterrupt(bit) })
	b.joypad.lastLower4 = 0x0F // nothing pressed at power-on, for correct first-press edge detection
	if os.Getenv("GB_DEBUG_TIMER") != "" {
		b.debugTimer = true
	}
	return b
}

// PPU exposes the internal PPU for presenter-side framebuffer access.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// Cart exposes the cartridge for battery-RAM persistence.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

// requestInterrupt sets an IF bit; shared by every component that raises one.
func (b *Bus) requestInterrupt(bit int) { b.ifReg |= 1 << uint(bit) }

// InterruptEnable/InterruptFlags bypass the DMA bus block: the CPU's
// interrupt check is internal chip state, not a data-bus transaction, so it
// still observes the real IE/IF while DMA is holding the bus.
func (b *Bus) InterruptEnable() byte    { return b.ie }
func (b *Bus) InterruptFlags() byte     { return b.ifReg & 0x1F }
func (b *Bus) SetInterruptFlags(v byte) { b.ifReg = v & 0x1F }

// Read resolves one CPU-visible address to a byte, honoring DMA's bus
// block (invariant 3) and the PPU's mode-gated VRAM/OAM access (invariant 4).
func (b *Bus) Read(addr uint16) byte {
	if b.dma.active && addr <= 0xFF7F {
		return 0xFF
	}
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		return b.wram[(addr-0x2000)-0xC000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		return b.ppu.CPURead(addr)
	case addr >= 0xFEA0 && addr <= 0xFEFF:
		return 0x00
	case addr == 0xFF00:
		return b.joypad.read()
	case addr == 0xFF01, addr == 0xFF02:
		return b.serial.read(addr)
	case addr == 0xFF04, addr == 0xFF05, addr == 0xFF06, addr == 0xFF07:
		return b.timer.read(addr)
	case addr == 0xFF0F:
		return 0xE0 | (b.ifReg & 0x1F)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma.reg
	case addr == 0xFF50:
		if b.bootEnabled {
			return 0x00
		}
		return 0xFF
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return b.ie
	default:
		return 0xFF
	}
}

// Write resolves one CPU-visible address write to the owning component.
func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
	case addr >= 0xE000 && addr <= 0xFDFF:
		b.wram[(addr-0x2000)-0xC000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xFEA0 && addr <= 0xFEFF:
		// unusable range, writes dropped
	case addr == 0xFF00:
		b.joypad.writeSelect(value)
		b.joypad.updateIRQ(b)
	case addr == 0xFF01, addr == 0xFF02:
		b.serial.write(addr, value, b)
	case addr == 0xFF04, addr == 0xFF05, addr == 0xFF06, addr == 0xFF07:
		b.timer.write(addr, value, b, b.debugTimer)
	case addr == 0xFF0F:
		b.ifReg = value & 0x1F
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		b.ppu.CPUWrite(addr, value)
	case addr == 0xFF46:
		b.dma.start(value)
	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
	case addr == 0xFFFF:
		b.ie = value
	}
}

// SetSerialWriter sets a sink that receives each byte the CPU sends over
// serial, once its transfer completes.
func (b *Bus) SetSerialWriter(w io.Writer) { b.serial.sink = w }

// SetBootROM loads a 256-byte DMG boot ROM to overlay 0x0000-0x00FF until a
// nonzero write to 0xFF50 disables it for the rest of the session.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// rawRead reads bypassing the DMA bus block; used only by the DMA engine
// itself to fetch its source bytes, which must succeed while DMA is active.
func (b *Bus) rawRead(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.Read(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		return b.wram[(addr-0x2000)-0xC000]
	default:
		return 0xFF
	}
}

// Tick advances every peripheral by the given number of T-cycles (the CPU
// charges 4 per bus access or internal-only cycle), in the order timer,
// serial, DMA, PPU per §5's per-machine-cycle ordering guarantee.
func (b *Bus) Tick(tcycles int) {
	for i := 0; i < tcycles; i++ {
		b.timer.tickOne(b)
		b.serial.tickOne(b)
		b.dma.tickOne(b)
		if b.ppu != nil {
			b.ppu.Tick(1)
		}
	}
}
