// driver_loop.go - the single-threaded, synchronous fractional-sample-
// accumulator driver loop for native OPL/tracker sources.
//
// Grounded on ay_z80_player.go's RenderFrames accumulator
// (acc/samplesPerFrameNum/samplesPerFrameDen) and on
// unified_converter.cpp's refresh-rate clamp and end-of-song loop
// detection (end_order < prev_order, or end_order==0 with prev_order>0).
package opl9

import (
	"fmt"
	"os"
)

// DriverConfig bounds a single conversion run.
type DriverConfig struct {
	MaxLengthSeconds int    // 0 selects the 600s default
	SampleRate       uint32 // 0 selects 44100
}

// DriverResult reports how much was captured and, if a loop was detected,
// where it starts.
type DriverResult struct {
	TotalSamples uint64
	Loop         *LoopPoint
}

// writeCounter is implemented by both capture chips; it is kept separate
// from RegisterSink because an external UpstreamPlayer never needs it.
type writeCounter interface {
	WriteCount() int
}

// RunDriverLoop ticks player once per iteration and then generates that
// tick's share of output frames, converting the player's self-reported
// refresh rate into a sample count via a running fractional accumulator so a non-integer tick rate (e.g. 59.94 Hz) never drifts
// against the fixed 44100 Hz sample clock. It stops when player reports it
// is done or the max length is reached. Whenever playback ends on a
// backward jump in order position, the loop point it resolves to is always
// published in the result — there is no opt-in flag for this, matching the
// unconditional "publish (loop_write_index, loop_sample_position)" contract
// a real loop discovery must honour.
func RunDriverLoop(player UpstreamPlayer, sink RegisterSink, cfg DriverConfig) (*DriverResult, error) {
	if player == nil || sink == nil {
		return nil, newErr(ErrUpstreamPlayerRefused, "driver: nil player or sink")
	}
	counter, ok := sink.(writeCounter)
	if !ok {
		return nil, newErr(ErrUpstreamPlayerRefused, "driver: sink does not support loop tracking")
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 44100
	}
	maxLen := cfg.MaxLengthSeconds
	if maxLen <= 0 {
		maxLen = 600
	}
	maxSamples := uint64(maxLen) * uint64(sampleRate)

	tracker := NewLoopTracker()
	var samplesGenerated uint64
	var fractional float64
	prevOrder := player.OrderIndex()

	for samplesGenerated < maxSamples {
		refresh := player.RefreshHz()
		if refresh <= 0 || refresh > 10000 {
			refresh = 70
		}

		currOrder := player.OrderIndex()
		tracker.Observe(currOrder, samplesGenerated, counter.WriteCount())
		prevOrder = currOrder

		stillPlaying := player.Tick()

		samplesPerTick := float64(sampleRate) / refresh
		fractional += samplesPerTick
		step := uint64(fractional)
		fractional -= float64(step)

		for i := uint64(0); i < step; i++ {
			sink.GenerateFrame()
		}
		samplesGenerated += step

		if !stillPlaying {
			endOrder := player.OrderIndex()
			if endOrder < prevOrder || (endOrder == 0 && prevOrder > 0) {
				if lp := tracker.Lookup(endOrder); lp != nil {
					return &DriverResult{TotalSamples: samplesGenerated, Loop: lp}, nil
				}
				fmt.Fprintf(os.Stderr, "warning: loop target order %d not found in recording\n", endOrder)
			}
			return &DriverResult{TotalSamples: samplesGenerated, Loop: nil}, nil
		}
	}
	return &DriverResult{TotalSamples: samplesGenerated, Loop: nil}, nil
}
