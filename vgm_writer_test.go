package opl9

import (
	"encoding/binary"
	"testing"
)

func TestVGMWriter_HeaderMagicAndVersion(t *testing.T) {
	w := NewVGMWriter()
	w.WriteRegister(0x20, 0x01)
	out, err := w.Finalize(1000, nil, nil)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if string(out[0:4]) != "Vgm " {
		t.Fatalf("bad magic: %q", out[0:4])
	}
	if v := binary.LittleEndian.Uint32(out[0x08:0x0C]); v != vgmVersion151 {
		t.Fatalf("version = 0x%X, want 0x%X", v, vgmVersion151)
	}
}

func TestVGMWriter_TwoWritesSeparatedBy735Samples(t *testing.T) {
	w := NewVGMWriter()
	w.WriteRegister(0x20, 0x01)
	w.AdvanceSamples(735)
	w.WriteRegister(0x21, 0x02)
	out, err := w.Finalize(735, nil, nil)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	body := out[vgmHeaderSize:]
	// 5A 20 01, then 0x62 (735-sample shortcut), then 5A 21 02, then 0x66.
	want := []byte{0x5A, 0x20, 0x01, 0x62, 0x5A, 0x21, 0x02, 0x66}
	if len(body) != len(want) {
		t.Fatalf("body = % X, want % X", body, want)
	}
	for i := range want {
		if body[i] != want[i] {
			t.Fatalf("body = % X, want % X", body, want)
		}
	}
}

func TestVGMWriter_RedundantWriteSuppressed(t *testing.T) {
	w := NewVGMWriter()
	w.WriteRegister(0x20, 0x01)
	changed := w.WriteRegister(0x20, 0x01) // same reg, same value: suppressed
	if changed {
		t.Fatal("expected redundant write to be suppressed")
	}
	if got := w.WriteCount(); got != 1 {
		t.Fatalf("WriteCount() = %d, want 1", got)
	}
}

func TestVGMWriter_KeyBandNeverSuppressed(t *testing.T) {
	w := NewVGMWriter()
	w.WriteRegister(0xB0, 0x20) // key band
	changed := w.WriteRegister(0xB0, 0x20)
	if !changed {
		t.Fatal("expected key-band writes to bypass suppression")
	}
	if got := w.WriteCount(); got != 2 {
		t.Fatalf("WriteCount() = %d, want 2", got)
	}
}

func TestVGMWriter_VolumeBandNeverSuppressed(t *testing.T) {
	w := NewVGMWriter()
	w.WriteRegister(0x43, 0x10)
	changed := w.WriteRegister(0x43, 0x10)
	if !changed {
		t.Fatal("expected volume-band writes to bypass suppression")
	}
}

func TestVGMWriter_ChipVariantDetection(t *testing.T) {
	w := NewVGMWriter()
	w.WriteRegister(0x20, 0x01)
	if w.Variant() != ChipOPL2 {
		t.Fatalf("Variant() = %v, want OPL2", w.Variant())
	}

	w2 := NewVGMWriter()
	w2.SelectChip(1)
	w2.WriteRegister(0x20, 0x01)
	if w2.Variant() != ChipDualOPL2 {
		t.Fatalf("Variant() = %v, want Dual-OPL2", w2.Variant())
	}

	w3 := NewVGMWriter()
	w3.WriteRegister(0x105, 0x01)
	if w3.Variant() != ChipOPL3 {
		t.Fatalf("Variant() = %v, want OPL3", w3.Variant())
	}
}

func TestVGMWriter_DualOPL2HeaderClock(t *testing.T) {
	w := NewVGMWriter()
	w.SelectChip(1)
	w.WriteRegister(0x20, 0x01)
	out, err := w.Finalize(100, nil, nil)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	clk := binary.LittleEndian.Uint32(out[0x50:0x54])
	want := uint32(oplClockHz | dualOPL2ClkBit)
	if clk != want {
		t.Fatalf("clock at 0x50 = 0x%X, want 0x%X", clk, want)
	}
}

func TestVGMWriter_LargeDelaySplitsInto16BitChunks(t *testing.T) {
	w := NewVGMWriter()
	w.WriteRegister(0x20, 0x01)
	w.AdvanceSamples(70000) // > 0xFFFF, must split
	w.WriteRegister(0x21, 0x02)
	out, err := w.Finalize(70000, nil, nil)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	body := out[vgmHeaderSize:]
	// 5A 20 01, 61 FF FF (65535), 61 (70000-65535=4465 -> 0x1171 LE), 5A 21 02, 66
	if body[3] != 0x61 || body[4] != 0xFF || body[5] != 0xFF {
		t.Fatalf("expected 0xFFFF chunk, got % X", body[3:6])
	}
}

func TestVGMWriter_LoopBackpatch(t *testing.T) {
	w := NewVGMWriter()
	w.WriteRegister(0x20, 0x01) // write index 0
	w.AdvanceSamples(100)
	w.WriteRegister(0x21, 0x02) // write index 1, sample position 100
	w.AdvanceSamples(50)
	w.WriteRegister(0x22, 0x03) // write index 2

	loop := &LoopPoint{WriteIndex: 1, SamplePosition: 100}
	out, err := w.Finalize(200, loop, nil)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	loopOffsetField := binary.LittleEndian.Uint32(out[0x1C:0x20])
	if loopOffsetField == 0 {
		t.Fatal("expected non-zero loop offset field")
	}
	loopSamples := binary.LittleEndian.Uint32(out[0x20:0x24])
	if loopSamples != 100 {
		t.Fatalf("loop samples = %d, want 100", loopSamples)
	}
	loopFileOffset := loopOffsetField + 0x1C
	// The byte at the loop target should be the start of write index 1's
	// encoding: a delay opcode (100 samples -> 0x61 0x64 0x00) since it's
	// not one of the 735/882 shortcuts and not in the 1-16 range.
	if out[loopFileOffset] != 0x61 {
		t.Fatalf("byte at loop offset = 0x%02X, want 0x61 (delay opcode)", out[loopFileOffset])
	}
}

func TestVGMWriter_GD3OffsetRelativeTo0x14(t *testing.T) {
	w := NewVGMWriter()
	w.WriteRegister(0x20, 0x01)
	tag := &GD3Tag{TitleEN: "Test Song"}
	out, err := w.Finalize(100, nil, tag)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	gd3OffsetField := binary.LittleEndian.Uint32(out[0x14:0x18])
	if gd3OffsetField == 0 {
		t.Fatal("expected non-zero GD3 offset")
	}
	gd3Start := gd3OffsetField + 0x14
	if string(out[gd3Start:gd3Start+4]) != "Gd3 " {
		t.Fatalf("byte at GD3 offset = %q, want \"Gd3 \"", out[gd3Start:gd3Start+4])
	}
}

func TestVGMWriter_TotalSamplesAtLeastSumOfDelays(t *testing.T) {
	w := NewVGMWriter()
	w.WriteRegister(0x20, 0x01)
	w.AdvanceSamples(500)
	w.WriteRegister(0x21, 0x02)
	out, err := w.Finalize(10, nil, nil) // under-report on purpose
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	total := binary.LittleEndian.Uint32(out[0x18:0x1C])
	if total < 500 {
		t.Fatalf("total samples = %d, want >= 500", total)
	}
}
