package bus

// dmaState models the OAM DMA engine: a write to 0xFF46 begins a 160-byte
// copy from (value<<8) to OAM, one byte per machine cycle (4 T-cycles).
type dmaState struct {
	reg    byte
	active bool
	src    uint16
	index  int
	sub    int // T-cycles into the current machine cycle
}

func (d *dmaState) start(value byte) {
	d.reg = value
	d.active = true
	d.src = uint16(value) << 8
	d.index = 0
	d.sub = 0
}

// tickOne advances DMA by one T-cycle; every fourth T-cycle it copies the
// next source byte into OAM directly (bypassing PPU mode-gated writes,
// since DMA always reaches OAM regardless of the PPU's current mode).
func (d *dmaState) tickOne(b *Bus) {
	if !d.active {
		return
	}
	d.sub++
	if d.sub < 4 {
		return
	}
	d.sub = 0
	v := b.rawRead(d.src + uint16(d.index))
	b.ppu.OAMWriteDirect(d.index, v)
	d.index++
	if d.index >= 0xA0 {
		d.active = false
	}
}
