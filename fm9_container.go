// fm9_container.go - FM9 container: a gzip member holding VGM+header+FX,
// followed by raw (uncompressed) audio and a fixed-size cover image.
//
// Header layout and offset semantics are grounded byte-for-byte on
// original_source/tools/fm9_extract.py's struct.unpack('<4sBBBBIIII', ...):
// magic, version, flags, audio-format, source-format, audio-offset
// (reserved, always 0 — the real audio position is implicit at end-of-gzip
// and recomputed on read), audio-size, fx-offset (relative to the header's
// own start), fx-size.
package opl9

import (
	"bytes"
	"encoding/binary"
)

const fm9Magic = "FM90"
const fm9HeaderSize = 24

const (
	fm9FlagAudio = 0x01
	fm9FlagFX    = 0x02
	fm9FlagImage = 0x04
)

const (
	AudioFormatNone = 0
	AudioFormatWAV  = 1
	AudioFormatMP3  = 2
)

// Source-format byte ranges. The full ~120-entry per-format registry (a
// substring-to-format lookup table) is a filename-heuristic concern left to
// the external CLI collaborator; these four constants are the range anchors
// FM9Builder.SourceFormat is drawn from when the caller has no more specific
// code on hand, per format_router.go's classification-to-source-format
// mapping.
const (
	SourceFormatPassthrough = 0x01 // .. 0x0F: VGM/VGZ/FM9 itself
	SourceFormatMIDIStyle   = 0x10 // .. 0x1F: HMP, HMI, MIDI, XMI, MUS, KAR
	SourceFormatNativeOPL   = 0x20 // .. 0x5F: RAW/DRO/IMF/WLF-style register dumps
	SourceFormatTracker     = 0x60 // .. 0xA0: S3M/MOD/XM/IT
)

// FM9Header is the 24-byte structure embedded just after the VGM body
// inside the gzip member.
type FM9Header struct {
	Version      uint8
	Flags        uint8
	AudioFormat  uint8
	SourceFormat uint8
	AudioSize    uint32
	FXOffset     uint32
	FXSize       uint32
}

func (h *FM9Header) encode() []byte {
	out := make([]byte, fm9HeaderSize)
	copy(out[0:4], fm9Magic)
	out[4] = h.Version
	out[5] = h.Flags
	out[6] = h.AudioFormat
	out[7] = h.SourceFormat
	binary.LittleEndian.PutUint32(out[8:12], 0) // audio offset stays reserved
	binary.LittleEndian.PutUint32(out[12:16], h.AudioSize)
	binary.LittleEndian.PutUint32(out[16:20], h.FXOffset)
	binary.LittleEndian.PutUint32(out[20:24], h.FXSize)
	return out
}

func decodeFM9Header(b []byte) (*FM9Header, error) {
	if len(b) < fm9HeaderSize || string(b[0:4]) != fm9Magic {
		return nil, newErr(ErrBadMagic, "fm9: bad header magic")
	}
	return &FM9Header{
		Version:      b[4],
		Flags:        b[5],
		AudioFormat:  b[6],
		SourceFormat: b[7],
		AudioSize:    binary.LittleEndian.Uint32(b[12:16]),
		FXOffset:     binary.LittleEndian.Uint32(b[16:20]),
		FXSize:       binary.LittleEndian.Uint32(b[20:24]),
	}, nil
}

// FM9Builder assembles an FM9 container from its component parts. Any
// field left nil/zero is simply omitted; the corresponding flag bit is
// cleared and no space is reserved for it.
type FM9Builder struct {
	VGM          []byte
	SourceFormat uint8
	FX           []byte
	Audio        []byte
	AudioFormat  uint8
	Image        []byte // must be exactly coverBytes if non-nil
}

func (fb *FM9Builder) Build() ([]byte, error) {
	if fb.Image != nil && len(fb.Image) != coverBytes {
		return nil, newErr(ErrImageDecode, "fm9: image payload must be exactly 20000 bytes")
	}

	var flags uint8
	if len(fb.Audio) > 0 {
		flags |= fm9FlagAudio
	}
	if len(fb.FX) > 0 {
		flags |= fm9FlagFX
	}
	if len(fb.Image) > 0 {
		flags |= fm9FlagImage
	}

	hdr := &FM9Header{
		Version:      1,
		Flags:        flags,
		AudioFormat:  fb.AudioFormat,
		SourceFormat: fb.SourceFormat,
		AudioSize:    uint32(len(fb.Audio)),
	}
	if len(fb.FX) > 0 {
		hdr.FXOffset = fm9HeaderSize
		hdr.FXSize = uint32(len(fb.FX))
	}

	compressedPart := make([]byte, 0, len(fb.VGM)+fm9HeaderSize+len(fb.FX))
	compressedPart = append(compressedPart, fb.VGM...)
	compressedPart = append(compressedPart, hdr.encode()...)
	compressedPart = append(compressedPart, fb.FX...)

	gz, err := GzipWrap(compressedPart)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(gz)+len(fb.Audio)+len(fb.Image))
	out = append(out, gz...)
	out = append(out, fb.Audio...)
	out = append(out, fb.Image...)
	return out, nil
}

// FM9Contents is the result of extracting an FM9 (or plain VGZ) file.
type FM9Contents struct {
	VGM    []byte
	Header *FM9Header // nil if this was a plain VGZ with no FM9 extension
	FX     []byte
	Audio  []byte
	Image  []byte
}

// ExtractFM9 reverses FM9Builder.Build. If the gzip member contains no
// "FM90" header, the file is treated as a plain VGZ and only VGM is
// populated.
func ExtractFM9(data []byte) (*FM9Contents, error) {
	if len(data) < 2 || data[0] != 0x1F || data[1] != 0x8B {
		return nil, newErr(ErrBadMagic, "fm9: not gzip-prefixed")
	}
	gzEnd, err := gzipStreamLength(data)
	if err != nil {
		return nil, err
	}
	decompressed, err := GzipUnwrap(data[:gzEnd])
	if err != nil {
		return nil, err
	}

	hdrPos := bytes.Index(decompressed, []byte(fm9Magic))
	if hdrPos == -1 {
		return &FM9Contents{VGM: decompressed}, nil
	}
	if hdrPos+fm9HeaderSize > len(decompressed) {
		return nil, newErr(ErrInputTruncated, "fm9: header truncated")
	}
	hdr, err := decodeFM9Header(decompressed[hdrPos : hdrPos+fm9HeaderSize])
	if err != nil {
		return nil, err
	}
	vgm := decompressed[:hdrPos]

	var fx []byte
	if hdr.Flags&fm9FlagFX != 0 {
		fxStart := hdrPos + int(hdr.FXOffset)
		fxEnd := fxStart + int(hdr.FXSize)
		if fxStart < 0 || fxEnd > len(decompressed) || fxEnd < fxStart {
			return nil, newErr(ErrInputTruncated, "fm9: fx payload truncated")
		}
		fx = decompressed[fxStart:fxEnd]
	}

	tail := data[gzEnd:]
	var audio, img []byte
	off := 0
	if hdr.Flags&fm9FlagAudio != 0 {
		if off+int(hdr.AudioSize) > len(tail) {
			return nil, newErr(ErrInputTruncated, "fm9: audio payload truncated")
		}
		audio = tail[off : off+int(hdr.AudioSize)]
		off += int(hdr.AudioSize)
	}
	if hdr.Flags&fm9FlagImage != 0 {
		if off+coverBytes > len(tail) {
			return nil, newErr(ErrInputTruncated, "fm9: image payload truncated")
		}
		img = tail[off : off+coverBytes]
	}

	return &FM9Contents{VGM: vgm, Header: hdr, FX: fx, Audio: audio, Image: img}, nil
}
