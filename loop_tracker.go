// loop_tracker.go - first-sighting table for online loop-point detection.
//
// Grounded on the order-position bookkeeping in unified_converter.cpp's
// conversion driver: a map from tracker order-index to the sample position
// and VGM write index at which that order was first observed. A later
// backward jump in order resolves through this table into a byte-accurate
// loop point.

package opl9

// LoopPoint names where in an already-written VGM event stream playback
// should resume, and at what sample position that write occurred.
type LoopPoint struct {
	WriteIndex     int
	SamplePosition uint64
}

type loopSighting struct {
	sample     uint64
	writeIndex int
}

// LoopTracker records only the first sighting of each order position; later
// revisits are ignored, since the first sighting is the earliest point a
// jump back to that order could sensibly resume from.
type LoopTracker struct {
	firstSeen map[uint32]loopSighting
}

func NewLoopTracker() *LoopTracker {
	return &LoopTracker{firstSeen: make(map[uint32]loopSighting)}
}

func (t *LoopTracker) Observe(order uint32, sample uint64, writeIndex int) {
	if _, seen := t.firstSeen[order]; !seen {
		t.firstSeen[order] = loopSighting{sample: sample, writeIndex: writeIndex}
	}
}

// Lookup returns the recorded loop point for order, or nil if that order
// position was never observed.
func (t *LoopTracker) Lookup(order uint32) *LoopPoint {
	s, ok := t.firstSeen[order]
	if !ok {
		return nil
	}
	return &LoopPoint{WriteIndex: s.writeIndex, SamplePosition: s.sample}
}
