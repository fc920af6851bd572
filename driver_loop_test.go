package opl9

import "testing"

// scriptedPlayer plays through a fixed order sequence, one entry per Tick,
// then reports done and (optionally) jumps back to an earlier order to
// exercise loop detection.
type scriptedPlayer struct {
	orders  []uint32
	refresh float64
	i       int
}

func (p *scriptedPlayer) OrderIndex() uint32 { return p.orders[p.i] }
func (p *scriptedPlayer) RefreshHz() float64 {
	if p.refresh == 0 {
		return 70
	}
	return p.refresh
}
func (p *scriptedPlayer) Tick() bool {
	p.i++
	return p.i < len(p.orders)-1
}

func TestRunDriverLoop_NoBackwardJumpMeansNoLoop(t *testing.T) {
	// Orders strictly advance (0,1,2), so there is nothing to detect.
	player := &scriptedPlayer{orders: []uint32{0, 1, 2}}
	sink := NewPassiveCaptureChip()
	sink.WriteRegister(0x20, 0x01)

	res, err := RunDriverLoop(player, sink, DriverConfig{MaxLengthSeconds: 10})
	if err != nil {
		t.Fatalf("RunDriverLoop: %v", err)
	}
	if res.TotalSamples == 0 {
		t.Fatal("expected some samples to be generated")
	}
	if res.Loop != nil {
		t.Fatal("no backward jump occurred, expected nil loop")
	}
}

func TestRunDriverLoop_DetectsBackwardJump(t *testing.T) {
	// Orders go 0,1,2,1 (jumps back to 1 at the end): a loop back to order 1.
	// Detection is unconditional -- no config flag is needed to enable it.
	player := &scriptedPlayer{orders: []uint32{0, 1, 2, 1}}
	sink := NewPassiveCaptureChip()

	res, err := RunDriverLoop(player, sink, DriverConfig{MaxLengthSeconds: 10})
	if err != nil {
		t.Fatalf("RunDriverLoop: %v", err)
	}
	if res.Loop == nil {
		t.Fatal("expected a detected loop point")
	}
}

func TestRunDriverLoop_RejectsNilPlayerOrSink(t *testing.T) {
	sink := NewPassiveCaptureChip()
	if _, err := RunDriverLoop(nil, sink, DriverConfig{}); err == nil {
		t.Fatal("expected error for nil player")
	}
	player := &scriptedPlayer{orders: []uint32{0, 1}}
	if _, err := RunDriverLoop(player, nil, DriverConfig{}); err == nil {
		t.Fatal("expected error for nil sink")
	}
}

func TestRunDriverLoop_ClampsInvalidRefreshRate(t *testing.T) {
	player := &scriptedPlayer{orders: []uint32{0, 1}, refresh: 999999} // out of range, must clamp to 70
	sink := NewPassiveCaptureChip()
	res, err := RunDriverLoop(player, sink, DriverConfig{MaxLengthSeconds: 1})
	if err != nil {
		t.Fatalf("RunDriverLoop: %v", err)
	}
	if res.TotalSamples == 0 {
		t.Fatal("expected samples generated with clamped refresh rate")
	}
}
