// vgm_writer.go - VGM 1.51 register-write capture and byte-exact encoding.
//
// The register-write bookkeeping (state matrix, redundant-write
// suppression, pending-sample accumulation) is grounded on ay_z80_player.go
// and psg_engine.go's PSGEvent capture loop from the teacher; the header
// field layout and delay/command opcode space is grounded on
// asiekierka-vgmswan's VGMHeader and elemir-vgm's command dispatch, adapted
// from PSG chip commands to OPL2/Dual-OPL2/OPL3.
package opl9

import "encoding/binary"

const (
	oplClockHz     = 3579545  // YM3812/OPL2, the historical AdLib clock
	opl3ClockHz    = 14318180 // YMF262/OPL3
	vgmHeaderSize  = 0x100
	vgmVersion151  = 0x00000151
	dualOPL2ClkBit = 0x40000000
)

// RegisterEvent is a single timed register write, expressed as a delay
// (in samples) since the previous event plus the write itself.
type RegisterEvent struct {
	DeltaSamples uint32
	Chip         uint8 // 0 or 1; only meaningful for Dual-OPL2/OPL3 secondary port
	Reg          uint16
	Value        uint8
}

type regWrite struct {
	delta uint32
	chip  uint8
	reg   uint16
	val   uint8
}

type registerState struct {
	written [2][256]bool
	value   [2][256]uint8
}

func lowAddr(addr uint16) uint8 { return uint8(addr & 0xFF) }

// inKeyBand and inVolumeBand identify the two register ranges the spec
// exempts from redundant-write suppression: key on/off and channel volume,
// where a repeated write to the same value is often intentional retrigger
// behaviour rather than a no-op.
func inKeyBand(regLow uint8) bool    { return regLow >= 0xA0 && regLow <= 0xBF }
func inVolumeBand(regLow uint8) bool { return regLow >= 0x40 && regLow <= 0x55 }

// VGMWriter accepts an ordered sequence of timed register writes for a
// single OPL capture session and renders a byte-exact VGM 1.51 stream. It
// infers the chip variant (OPL2, Dual-OPL2, or OPL3) from the writes it
// actually sees, promoting on first evidence and never demoting.
type VGMWriter struct {
	state    registerState
	pending  uint32
	writes   []regWrite
	selected uint8

	usedOPL3Registers bool
	usedOPL3Mode      bool
	usedSecondChip    bool
}

func NewVGMWriter() *VGMWriter { return &VGMWriter{} }

// SelectChip switches which OPL port (0 or 1) subsequent writes target,
// for Dual-OPL2 and OPL3 captures.
func (w *VGMWriter) SelectChip(n uint8) {
	w.selected = n & 1
	if w.selected == 1 {
		w.usedSecondChip = true
	}
}

// AdvanceSamples accumulates elapsed samples since the last write; it does
// not itself emit a delay opcode until the next WriteRegister or Finalize.
func (w *VGMWriter) AdvanceSamples(n uint32) { w.pending += n }

// WriteRegister records a register write at the current sample position,
// applying redundant-write suppression against the per-chip state table.
// It reports whether the write produced a recorded event.
func (w *VGMWriter) WriteRegister(addr uint16, val uint8) bool {
	if addr >= 0x100 {
		w.usedOPL3Registers = true
	}
	if addr == 0x105 && val&0x01 != 0 {
		w.usedOPL3Mode = true
	}

	regLow := lowAddr(addr)
	chip := w.selected
	suppressible := !inKeyBand(regLow) && !inVolumeBand(regLow)
	if suppressible && w.state.written[chip][regLow] && w.state.value[chip][regLow] == val {
		return false
	}

	w.state.written[chip][regLow] = true
	w.state.value[chip][regLow] = val
	w.writes = append(w.writes, regWrite{delta: w.pending, chip: chip, reg: addr, val: val})
	w.pending = 0
	return true
}

// Variant reports the chip variant inferred from writes seen so far.
func (w *VGMWriter) Variant() ChipVariant {
	switch {
	case w.usedOPL3Registers || w.usedOPL3Mode:
		return ChipOPL3
	case w.usedSecondChip:
		return ChipDualOPL2
	default:
		return ChipOPL2
	}
}

// WriteCount reports how many non-suppressed writes have been recorded so
// far, for use as a loop-tracker write index.
func (w *VGMWriter) WriteCount() int { return len(w.writes) }

func appendDelay(buf []byte, n uint32) []byte {
	if n == 0 {
		return buf
	}
	switch {
	case n == 735:
		return append(buf, 0x62)
	case n == 882:
		return append(buf, 0x63)
	case n >= 1 && n <= 16:
		return append(buf, 0x70+byte(n-1))
	case n <= 0xFFFF:
		return append(buf, 0x61, byte(n), byte(n>>8))
	default:
		buf = append(buf, 0x61, 0xFF, 0xFF)
		return appendDelay(buf, n-0xFFFF)
	}
}

func appendCommand(buf []byte, variant ChipVariant, chip uint8, reg uint16, val uint8) []byte {
	regLow := byte(reg & 0xFF)
	switch variant {
	case ChipDualOPL2:
		if chip == 1 {
			return append(buf, 0xAA, regLow, val)
		}
		return append(buf, 0x5A, regLow, val)
	case ChipOPL3:
		if reg >= 0x100 {
			return append(buf, 0x5F, regLow, val)
		}
		return append(buf, 0x5E, regLow, val)
	default: // ChipOPL2
		return append(buf, 0x5A, regLow, val)
	}
}

// Finalize renders the captured session into a complete VGM 1.51 byte
// stream: fixed 256-byte header, encoded event body, end marker, and an
// optional trailing GD3 tag. totalSamples is clamped up to the sum of
// emitted delays if the caller under-reports it.
func (w *VGMWriter) Finalize(totalSamples uint64, loop *LoopPoint, tag *GD3Tag) ([]byte, error) {
	variant := w.Variant()

	body := make([]byte, 0, len(w.writes)*4)
	loopBodyOffset := -1
	var sumDelays uint64

	for i, ev := range w.writes {
		if loop != nil && i == loop.WriteIndex {
			loopBodyOffset = len(body)
		}
		body = appendDelay(body, ev.delta)
		body = appendCommand(body, variant, ev.chip, ev.reg, ev.val)
		sumDelays += uint64(ev.delta)
	}
	if loop != nil && loop.WriteIndex == len(w.writes) {
		loopBodyOffset = len(body)
	}

	body = appendDelay(body, w.pending)
	sumDelays += uint64(w.pending)
	body = append(body, 0x66)

	if totalSamples < sumDelays {
		totalSamples = sumDelays
	}

	var gd3Bytes []byte
	if tag != nil {
		gd3Bytes = tag.Serialize()
	}

	dataStart := vgmHeaderSize
	fileSize := dataStart + len(body) + len(gd3Bytes)
	out := make([]byte, fileSize)
	copy(out[dataStart:], body)
	if gd3Bytes != nil {
		copy(out[dataStart+len(body):], gd3Bytes)
	}

	h := out[:vgmHeaderSize]
	copy(h[0:4], []byte("Vgm "))
	binary.LittleEndian.PutUint32(h[0x04:0x08], uint32(fileSize)-4)
	binary.LittleEndian.PutUint32(h[0x08:0x0C], vgmVersion151)
	binary.LittleEndian.PutUint32(h[0x18:0x1C], uint32(totalSamples))
	binary.LittleEndian.PutUint32(h[0x34:0x38], uint32(dataStart)-0x34)

	if gd3Bytes != nil {
		gd3Start := dataStart + len(body)
		binary.LittleEndian.PutUint32(h[0x14:0x18], uint32(gd3Start-0x14))
	}

	switch variant {
	case ChipOPL2:
		binary.LittleEndian.PutUint32(h[0x50:0x54], oplClockHz)
	case ChipDualOPL2:
		binary.LittleEndian.PutUint32(h[0x50:0x54], oplClockHz|dualOPL2ClkBit)
	case ChipOPL3:
		binary.LittleEndian.PutUint32(h[0x5C:0x60], opl3ClockHz)
	}

	if loop != nil && loopBodyOffset >= 0 {
		loopFileOffset := uint32(dataStart + loopBodyOffset)
		binary.LittleEndian.PutUint32(h[0x1C:0x20], loopFileOffset-0x1C)
		var loopSamples uint32
		if totalSamples > loop.SamplePosition {
			loopSamples = uint32(totalSamples - loop.SamplePosition)
		}
		binary.LittleEndian.PutUint32(h[0x20:0x24], loopSamples)
	}

	return out, nil
}
