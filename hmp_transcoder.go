// hmp_transcoder.go - HMIMIDIP (HMP) to Standard MIDI File transcoding.
//
// Grounded on yalue-midi's SMFTrack/SMFHeader chunk-writing shape for the
// output side. The HMP input side has no analogue in the example pack and
// is built from the format's own documented layout: HMP's variable-length
// quantity is the inverse of standard MIDI's — a byte with the top bit
// CLEAR is a continuation byte, and each byte (including the terminal one)
// contributes its low 7 bits at an increasing bit position rather than a
// decreasing one. Getting this backwards silently produces a file that
// looks plausible but plays back with corrupted timing, so the encode and
// decode directions are kept in separate, narrowly-scoped functions rather
// than a single bit-flag-parameterised routine.
package opl9

import (
	"bytes"
	"encoding/binary"
)

const hmpMagic = "HMIMIDIP"

// decodeHMPVarlen reads one HMP-encoded variable-length value starting at
// pos. Continuation bytes have the top bit clear; the terminal byte has it
// set. Each byte's low 7 bits land at bit position 7*i for the i-th byte
// read, so the first byte read is the least significant, not the most.
func decodeHMPVarlen(data []byte, pos int) (uint32, int, error) {
	var value uint32
	var shift uint
	start := pos
	for {
		if pos >= len(data) {
			return 0, pos, newErrAt(ErrBadVarlen, "hmp: truncated varlen", int64(start))
		}
		if shift > 28 {
			return 0, pos, newErrAt(ErrBadVarlen, "hmp: varlen too long", int64(start))
		}
		b := data[pos]
		value |= uint32(b&0x7F) << shift
		pos++
		shift += 7
		if b&0x80 != 0 {
			break
		}
	}
	return value, pos, nil
}

// encodeMIDIVarlen writes v as a standard MIDI variable-length quantity:
// big-endian 7-bit groups, top bit set on every byte except the last.
func encodeMIDIVarlen(v uint32) []byte {
	var tmp [5]byte
	n := 0
	tmp[n] = byte(v & 0x7F)
	n++
	v >>= 7
	for v > 0 {
		tmp[n] = byte(v&0x7F) | 0x80
		n++
		v >>= 7
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = tmp[n-1-i]
	}
	return out
}

func midiDataBytes(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	default:
		return 2
	}
}

const (
	milesLoopStartCC = 110
	milesLoopEndCC   = 111
)

type hmpChunk struct {
	number  uint32
	trackID uint32
	body    []byte
}

// HMPFile is a parsed HMIMIDIP header plus its per-track chunks.
type HMPFile struct {
	Version         int
	BPM             uint32
	SongTimeSeconds uint32
	chunks          []hmpChunk
}

// ParseHMP validates the HMIMIDIP magic, reads the version-dependent
// header, and splits the remainder into per-track chunks. It does not
// interpret event bytes; that happens per chunk in ToStandardMIDI.
func ParseHMP(data []byte) (*HMPFile, error) {
	if len(data) < 8 || string(data[0:8]) != hmpMagic {
		return nil, newErr(ErrBadMagic, "hmp: missing HMIMIDIP magic")
	}
	pos := 8
	version := 1
	padding := 712
	if len(data) >= pos+6 && string(data[pos:pos+6]) == "013195" {
		version = 2
		padding = 840
		pos += 6 + 18
	} else {
		pos += 24
	}

	need := pos + 4 + 12 + 4 + 4 + 4 + 4 + padding
	if len(data) < need {
		return nil, newErrAt(ErrInputTruncated, "hmp: header truncated", int64(len(data)))
	}

	pos += 4 + 12 // file-length, reserved
	chunkCount := binary.LittleEndian.Uint32(data[pos : pos+4])
	pos += 4 + 4 // chunk-count, reserved
	bpm := binary.LittleEndian.Uint32(data[pos : pos+4])
	pos += 4
	songTime := binary.LittleEndian.Uint32(data[pos : pos+4])
	pos += 4
	pos += padding

	f := &HMPFile{Version: version, BPM: bpm, SongTimeSeconds: songTime}
	for i := uint32(0); i < chunkCount; i++ {
		if pos+12 > len(data) {
			break
		}
		number := binary.LittleEndian.Uint32(data[pos : pos+4])
		length := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		trackID := binary.LittleEndian.Uint32(data[pos+8 : pos+12])
		bodyStart := pos + 12
		bodyEnd := pos + int(length)
		if bodyEnd > len(data) || bodyEnd < bodyStart {
			bodyEnd = len(data)
		}
		f.chunks = append(f.chunks, hmpChunk{number: number, trackID: trackID, body: data[bodyStart:bodyEnd]})
		pos = bodyEnd
	}
	return f, nil
}

// transcodeChunk converts one HMP track chunk's event stream into an MTrk
// payload (without the "MTrk"+length wrapper). A parse failure partway
// through truncates the track at the last successfully decoded event
// rather than discarding the whole file, matching the per-track failure
// policy: a corrupt track becomes a short track, not a dropped file.
//
// Tempo meta events and Miles Sound System loop-marker sentinels are
// dropped without being written, but their delta is never lost: it
// accumulates in pendingDelta and is added onto the next event that is
// actually written, so the written stream's timing stays exact even
// though some events in it never appear.
func transcodeChunk(body []byte) []byte {
	var track bytes.Buffer
	pos := 0
	runningStatus := byte(0)
	haveEOT := false
	var pendingDelta uint32

loop:
	for pos < len(body) {
		rawDelta, newPos, err := decodeHMPVarlen(body, pos)
		if err != nil {
			break
		}
		pos = newPos
		delta := pendingDelta + rawDelta
		if pos >= len(body) {
			break
		}

		status := body[pos]
		if status&0x80 != 0 {
			pos++
			runningStatus = status
		} else {
			status = runningStatus
		}

		switch {
		case status == 0xFF:
			if pos >= len(body) {
				break loop
			}
			metaType := body[pos]
			pos++
			if pos >= len(body) {
				break loop
			}
			// Meta-event length is a single raw byte here, not an
			// HMP-varlen field: HMIMIDIP always writes it fixed-width
			// (tempo's is always 0x03, end-of-track's is always 0x00).
			length := int(body[pos])
			pos++
			if pos+length > len(body) {
				break loop
			}
			metaData := body[pos : pos+length]
			pos += length

			if metaType == 0x51 {
				// Tempo meta events are discarded; the HMP header's BPM
				// field is the single source of truth for tempo. Their
				// delta folds forward onto the next written event.
				pendingDelta = delta
				continue
			}

			track.Write(encodeMIDIVarlen(delta))
			track.WriteByte(0xFF)
			track.WriteByte(metaType)
			track.Write(encodeMIDIVarlen(uint32(len(metaData))))
			track.Write(metaData)
			pendingDelta = 0
			if metaType == 0x2F {
				haveEOT = true
				break loop
			}

		case status&0xF0 == 0xB0:
			if pos+2 > len(body) {
				break loop
			}
			controller := body[pos]
			value := body[pos+1]
			pos += 2
			if (controller == milesLoopStartCC || controller == milesLoopEndCC) && value > 0x7F {
				// Miles Sound System loop-marker sentinel: dropped, with
				// its delta folded forward onto the next emitted event.
				pendingDelta = delta
				continue
			}
			track.Write(encodeMIDIVarlen(delta))
			track.WriteByte(status)
			track.WriteByte(controller)
			track.WriteByte(value)
			pendingDelta = 0

		case status >= 0x80 && status <= 0xEF:
			n := midiDataBytes(status)
			if pos+n > len(body) {
				break loop
			}
			dataBytes := body[pos : pos+n]
			pos += n
			track.Write(encodeMIDIVarlen(delta))
			track.WriteByte(status)
			track.Write(dataBytes)
			pendingDelta = 0

		default:
			// Unrecognised status byte: cannot safely resynchronise the
			// remainder of the stream, so stop the track here.
			break loop
		}
	}

	if !haveEOT {
		track.Write([]byte{0x00, 0xFF, 0x2F, 0x00})
	}
	return track.Bytes()
}

func buildTempoEvent(bpm uint32) []byte {
	if bpm == 0 {
		bpm = 120
	}
	usPerQuarter := 60000000 / bpm
	return []byte{0x00, 0xFF, 0x51, 0x03, byte(usPerQuarter >> 16), byte(usPerQuarter >> 8), byte(usPerQuarter)}
}

// ToStandardMIDI renders the parsed HMP as a format-1 Standard MIDI File,
// fixed at 60 ticks per quarter note (HMP's native tick rate), with a
// tempo meta event derived from the header's BPM prepended to the first
// track.
func (f *HMPFile) ToStandardMIDI() []byte {
	var out bytes.Buffer
	out.WriteString("MThd")
	writeBE32(&out, 6)
	writeBE16(&out, 1)
	writeBE16(&out, uint16(len(f.chunks)))
	writeBE16(&out, 60)

	tempo := buildTempoEvent(f.BPM)
	for i, chunk := range f.chunks {
		body := transcodeChunk(chunk.body)
		if i == 0 {
			merged := make([]byte, 0, len(tempo)+len(body))
			merged = append(merged, tempo...)
			merged = append(merged, body...)
			body = merged
		}
		out.WriteString("MTrk")
		writeBE32(&out, uint32(len(body)))
		out.Write(body)
	}
	return out.Bytes()
}

func writeBE32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeBE16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

// TranscodeHMP is the top-level entry point: parse then render.
func TranscodeHMP(data []byte) ([]byte, error) {
	f, err := ParseHMP(data)
	if err != nil {
		return nil, err
	}
	return f.ToStandardMIDI(), nil
}
