// types.go - shared value types and the narrow interfaces external callers
// (upstream trackers, FM synthesis backends) implement to plug into the
// capture pipeline.

package opl9

// ChipVariant identifies which OPL generation a capture session exercised.
// It is inferred, never declared up front: a session starts as OPL2 and is
// promoted the first time evidence of Dual-OPL2 or OPL3 usage appears.
type ChipVariant int

const (
	ChipOPL2 ChipVariant = iota
	ChipDualOPL2
	ChipOPL3
)

func (v ChipVariant) String() string {
	switch v {
	case ChipOPL2:
		return "OPL2"
	case ChipDualOPL2:
		return "Dual-OPL2"
	case ChipOPL3:
		return "OPL3"
	default:
		return "unknown"
	}
}

// RegisterSink is the surface an upstream player writes register values
// and pulls audio frames through. Both PassiveCaptureChip and
// ActiveCaptureChip implement it; a player never knows which one it holds.
type RegisterSink interface {
	WriteRegister(addr uint16, val uint8)
	GenerateFrame() (int16, int16)
	SelectChip(n uint8)
	Reset()
}

// UpstreamPlayer is a tracker/sequencer driving a RegisterSink one tick at
// a time. OrderIndex reports its current position in playback order (used
// for online loop detection); RefreshHz reports how many ticks constitute
// one second of playback, which may vary between calls.
type UpstreamPlayer interface {
	Tick() bool
	OrderIndex() uint32
	RefreshHz() float64
}

// FMBackend is an external OPL2/OPL3 emulator that ActiveCaptureChip
// forwards writes to for PCM preview rendering. Actual FM synthesis is out
// of scope for this module; callers supply their own implementation.
type FMBackend interface {
	WriteRegister(addr uint16, val uint8)
	GenerateFrame() (int16, int16)
	Reset()
}
