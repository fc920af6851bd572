// capture_chip.go - the two RegisterSink implementations an upstream
// player writes into: a passive one that only records, and an active one
// that also forwards to a real FM synthesis backend for PCM preview.
//
// Grounded on ay_z80_player.go's split between register capture and audio
// rendering in the same driver loop.
package opl9

// PassiveCaptureChip buffers register writes for VGM export without
// rendering any audio. It is the cheaper of the two sinks and is what a
// pure format-conversion path (no PCM/FM9 audio track requested) should
// use.
type PassiveCaptureChip struct {
	w *VGMWriter
}

func NewPassiveCaptureChip() *PassiveCaptureChip {
	return &PassiveCaptureChip{w: NewVGMWriter()}
}

func (p *PassiveCaptureChip) WriteRegister(addr uint16, val uint8) { p.w.WriteRegister(addr, val) }

func (p *PassiveCaptureChip) GenerateFrame() (int16, int16) {
	p.w.AdvanceSamples(1)
	return 0, 0
}

func (p *PassiveCaptureChip) SelectChip(n uint8) { p.w.SelectChip(n) }

func (p *PassiveCaptureChip) Reset() { p.w = NewVGMWriter() }

func (p *PassiveCaptureChip) WriteCount() int { return p.w.WriteCount() }

// Finalize renders the capture session to a VGM byte stream.
func (p *PassiveCaptureChip) Finalize(totalSamples uint64, loop *LoopPoint, tag *GD3Tag) ([]byte, error) {
	return p.w.Finalize(totalSamples, loop, tag)
}

// ActiveCaptureChip forwards every write to an external FM synthesis
// backend for PCM rendering while independently capturing the same writes
// for VGM export, sharing the redundant-write suppression VGMWriter
// already implements.
type ActiveCaptureChip struct {
	w       *VGMWriter
	backend FMBackend
	pcm     [][2]int16
}

func NewActiveCaptureChip(backend FMBackend) (*ActiveCaptureChip, error) {
	if backend == nil {
		return nil, newErr(ErrUpstreamPlayerRefused, "active capture chip requires a non-nil FM backend")
	}
	return &ActiveCaptureChip{w: NewVGMWriter(), backend: backend}, nil
}

func (a *ActiveCaptureChip) WriteRegister(addr uint16, val uint8) {
	a.backend.WriteRegister(addr, val)
	a.w.WriteRegister(addr, val)
}

func (a *ActiveCaptureChip) GenerateFrame() (int16, int16) {
	l, r := a.backend.GenerateFrame()
	a.pcm = append(a.pcm, [2]int16{l, r})
	a.w.AdvanceSamples(1)
	return l, r
}

func (a *ActiveCaptureChip) SelectChip(n uint8) { a.w.SelectChip(n) }

func (a *ActiveCaptureChip) Reset() {
	a.backend.Reset()
	a.w = NewVGMWriter()
	a.pcm = nil
}

func (a *ActiveCaptureChip) WriteCount() int { return a.w.WriteCount() }

// PCM returns the interleaved-stereo frames rendered since the last Reset.
func (a *ActiveCaptureChip) PCM() [][2]int16 { return a.pcm }

func (a *ActiveCaptureChip) Finalize(totalSamples uint64, loop *LoopPoint, tag *GD3Tag) ([]byte, error) {
	return a.w.Finalize(totalSamples, loop, tag)
}
